package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/config"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
	httpmiddleware "github.com/smallbiznis/redmine-mcp-gateway/internal/http/middleware"
	authsvc "github.com/smallbiznis/redmine-mcp-gateway/internal/service/auth"
)

const callbackPath = "/oauth/google-callback"

// OAuthHandler serves the authorization server endpoints.
type OAuthHandler struct {
	flow   *authsvc.Flow
	cfg    config.Config
	logger *zap.Logger
}

func NewOAuthHandler(flow *authsvc.Flow, cfg config.Config, logger *zap.Logger) *OAuthHandler {
	if logger == nil {
		logger = zap.L()
	}
	return &OAuthHandler{flow: flow, cfg: cfg, logger: logger}
}

type credentialFormView struct {
	Email       string
	Name        string
	Error       string
	EndpointURL string
	Action      string
}

// Register implements dynamic client registration.
func (h *OAuthHandler) Register(c *gin.Context) {
	var req authsvc.ClientRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_client_metadata", "error_description": "Invalid registration request."})
		return
	}
	resp, err := h.flow.Register(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Authorize stores the client's request in the session and redirects to Google.
func (h *OAuthHandler) Authorize(c *gin.Context) {
	if rt := c.Query("response_type"); rt != "" && rt != "code" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_response_type", "error_description": "Only response_type=code is supported."})
		return
	}
	sessionID := h.ensureSession(c)
	target, err := h.flow.Start(c.Request.Context(), sessionID, authsvc.AuthorizeRequest{
		ClientID:            c.Query("client_id"),
		RedirectURI:         c.Query("redirect_uri"),
		State:               c.Query("state"),
		CodeChallenge:       c.Query("code_challenge"),
		CodeChallengeMethod: c.Query("code_challenge_method"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, target)
}

// GoogleCallback completes the Google leg and either redirects back to the
// client or asks first-time users for their tracker credentials.
func (h *OAuthHandler) GoogleCallback(c *gin.Context) {
	result, err := h.flow.HandleCallback(c.Request.Context(), h.sessionID(c), authsvc.CallbackRequest{
		Code:  c.Query("code"),
		State: c.Query("state"),
		Error: c.Query("error"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.renderResult(c, result, "")
}

// SubmitCredentials handles the credential form post.
func (h *OAuthHandler) SubmitCredentials(c *gin.Context) {
	form := authsvc.CredentialForm{
		EndpointURL: c.PostForm("redmine_url"),
		APIKey:      c.PostForm("redmine_api_key"),
	}
	result, err := h.flow.SubmitCredentials(c.Request.Context(), h.sessionID(c), form)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.renderResult(c, result, form.EndpointURL)
}

// Token exchanges an authorization code for a bearer token.
func (h *OAuthHandler) Token(c *gin.Context) {
	var req struct {
		GrantType    string `form:"grant_type" json:"grant_type"`
		Code         string `form:"code" json:"code"`
		RedirectURI  string `form:"redirect_uri" json:"redirect_uri"`
		ClientID     string `form:"client_id" json:"client_id"`
		ClientSecret string `form:"client_secret" json:"client_secret"`
		CodeVerifier string `form:"code_verifier" json:"code_verifier"`
	}
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid token request."})
		return
	}

	resp, err := h.flow.ExchangeCode(c.Request.Context(), authsvc.TokenRequest{
		GrantType:    req.GrantType,
		Code:         req.Code,
		RedirectURI:  req.RedirectURI,
		ClientID:     req.ClientID,
		ClientSecret: req.ClientSecret,
		CodeVerifier: req.CodeVerifier,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusOK, resp)
}

func (h *OAuthHandler) renderResult(c *gin.Context, result *authsvc.CallbackResult, endpoint string) {
	if result.Prompt == nil {
		c.Redirect(http.StatusFound, result.RedirectURL)
		return
	}
	status := http.StatusOK
	if result.Prompt.Error != "" {
		status = http.StatusBadRequest
	}
	c.HTML(status, credentialFormTemplate, credentialFormView{
		Email:       result.Prompt.Email,
		Name:        result.Prompt.Name,
		Error:       result.Prompt.Error,
		EndpointURL: endpoint,
		Action:      callbackPath,
	})
}

func (h *OAuthHandler) respondError(c *gin.Context, err error) {
	logger := h.logger.With(zap.String("request_id", httpmiddleware.RequestID(c)))
	var oauthErr *authsvc.OAuthError
	switch {
	case errors.As(err, &oauthErr):
		if oauthErr.Status >= http.StatusInternalServerError {
			logger.Error("oauth upstream failure", zap.String("code", oauthErr.Code), zap.Error(err))
		} else {
			logger.Warn("oauth request rejected", zap.String("code", oauthErr.Code), zap.String("description", oauthErr.Description))
		}
		c.JSON(oauthErr.Status, gin.H{"error": oauthErr.Code, "error_description": oauthErr.Description})
	case errors.Is(err, domain.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": err.Error()})
	case errors.Is(err, domain.ErrDecryption):
		logger.Error("stored credential could not be decrypted", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
	default:
		logger.Error("oauth service failure", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Internal server error."})
	}
}

// ensureSession returns the browser session id, minting one when absent.
func (h *OAuthHandler) ensureSession(c *gin.Context) string {
	if id := h.sessionID(c); id != "" {
		return id
	}
	id := uuid.NewString()
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     h.cookieName(),
		Value:    id,
		Path:     "/oauth",
		MaxAge:   int(h.cfg.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.SessionCookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

func (h *OAuthHandler) sessionID(c *gin.Context) string {
	id, err := c.Cookie(h.cookieName())
	if err != nil {
		return ""
	}
	return strings.TrimSpace(id)
}

func (h *OAuthHandler) cookieName() string {
	if h.cfg.SessionCookieName != "" {
		return h.cfg.SessionCookieName
	}
	return "mcp_gateway_session"
}
