package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/service"
)

// WellKnownHandler serves OAuth discovery documents.
type WellKnownHandler struct {
	discovery *service.DiscoveryService
}

func NewWellKnownHandler(discovery *service.DiscoveryService) *WellKnownHandler {
	return &WellKnownHandler{discovery: discovery}
}

func (h *WellKnownHandler) ProtectedResource(c *gin.Context) {
	c.JSON(http.StatusOK, h.discovery.ProtectedResource(c.Request))
}

func (h *WellKnownHandler) AuthorizationServer(c *gin.Context) {
	c.JSON(http.StatusOK, h.discovery.AuthorizationServer(c.Request))
}
