package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/crypto"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
)

// DBTX is the subset of pgxpool.Pool used by the repositories.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Compile-time interface assertions.
var (
	_ CredentialStore  = (*PostgresCredentialStore)(nil)
	_ ClientRepository = (*PostgresClientRepo)(nil)
)

// PostgresCredentialStore implements CredentialStore. Endpoint URL and API key
// are encrypted before every write and decrypted only on FindByUserID.
type PostgresCredentialStore struct {
	db     DBTX
	cipher crypto.Cipher
	now    func() time.Time
}

func NewPostgresCredentialStore(db DBTX, cipher crypto.Cipher) *PostgresCredentialStore {
	return &PostgresCredentialStore{db: db, cipher: cipher, now: time.Now}
}

const selectCredentialSQL = `SELECT user_id, endpoint_url, api_key, created_at, role, is_bot
FROM user_credentials
WHERE user_id = $1`

func (r *PostgresCredentialStore) FindByUserID(ctx context.Context, userID string) (domain.Credential, error) {
	var (
		cred        domain.Credential
		encEndpoint string
		encAPIKey   string
		role        string
	)
	err := r.db.QueryRow(ctx, selectCredentialSQL, userID).Scan(
		&cred.UserID,
		&encEndpoint,
		&encAPIKey,
		&cred.CreatedAt,
		&role,
		&cred.IsBot,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Credential{}, &domain.NotFoundError{Resource: "credential", ID: userID}
		}
		return domain.Credential{}, fmt.Errorf("get credential: %w", err)
	}

	endpoint, err := r.cipher.Decrypt(encEndpoint)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("decrypt endpoint url: %w", err)
	}
	apiKey, err := r.cipher.Decrypt(encAPIKey)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("decrypt api key: %w", err)
	}
	cred.EndpointURL = endpoint
	cred.APIKey = apiKey
	cred.Role = domain.ParseRole(role)
	return cred, nil
}

// role and is_bot only change when opts carries a value.
const upsertCredentialSQL = `INSERT INTO user_credentials (user_id, endpoint_url, api_key, created_at, role, is_bot)
VALUES ($1, $2, $3, $4, COALESCE($5::text, 'user'), COALESCE($6::boolean, false))
ON CONFLICT (user_id) DO UPDATE SET
	endpoint_url = EXCLUDED.endpoint_url,
	api_key = EXCLUDED.api_key,
	role = COALESCE($5::text, user_credentials.role),
	is_bot = COALESCE($6::boolean, user_credentials.is_bot)`

func (r *PostgresCredentialStore) Save(ctx context.Context, cred domain.Credential, opts domain.SaveOptions) error {
	if cred.UserID == "" {
		return domain.NewValidationError("user_id", "must not be empty")
	}
	encEndpoint, err := r.cipher.Encrypt(cred.EndpointURL)
	if err != nil {
		return fmt.Errorf("encrypt endpoint url: %w", err)
	}
	encAPIKey, err := r.cipher.Encrypt(cred.APIKey)
	if err != nil {
		return fmt.Errorf("encrypt api key: %w", err)
	}

	createdAt := cred.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.now().UTC()
	}

	var role *string
	if opts.Role != nil {
		value := string(*opts.Role)
		role = &value
	}

	if _, err := r.db.Exec(ctx, upsertCredentialSQL,
		cred.UserID,
		encEndpoint,
		encAPIKey,
		createdAt,
		role,
		opts.IsBot,
	); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

const existsCredentialSQL = `SELECT EXISTS (SELECT 1 FROM user_credentials WHERE user_id = $1)`

func (r *PostgresCredentialStore) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	if err := r.db.QueryRow(ctx, existsCredentialSQL, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("credential exists: %w", err)
	}
	return exists, nil
}

// PostgresClientRepo implements ClientRepository.
type PostgresClientRepo struct {
	db DBTX
}

func NewPostgresClientRepo(db DBTX) *PostgresClientRepo {
	return &PostgresClientRepo{db: db}
}

const insertClientSQL = `INSERT INTO oauth_clients (id, client_id, client_secret_hash, client_name, redirect_uris)
VALUES ($1, $2, $3, $4, $5)
RETURNING created_at`

func (r *PostgresClientRepo) Create(ctx context.Context, client domain.OAuthClient) (domain.OAuthClient, error) {
	redirects := client.RedirectURIs
	if redirects == nil {
		redirects = []string{}
	}
	if err := r.db.QueryRow(ctx, insertClientSQL,
		client.ID,
		client.ClientID,
		client.ClientSecretHash,
		client.ClientName,
		redirects,
	).Scan(&client.CreatedAt); err != nil {
		return domain.OAuthClient{}, fmt.Errorf("insert client: %w", err)
	}
	return client, nil
}

const selectClientSQL = `SELECT id, client_id, client_secret_hash, client_name, redirect_uris, created_at
FROM oauth_clients
WHERE client_id = $1
LIMIT 1`

func (r *PostgresClientRepo) GetByClientID(ctx context.Context, clientID string) (domain.OAuthClient, error) {
	var client domain.OAuthClient
	err := r.db.QueryRow(ctx, selectClientSQL, clientID).Scan(
		&client.ID,
		&client.ClientID,
		&client.ClientSecretHash,
		&client.ClientName,
		&client.RedirectURIs,
		&client.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.OAuthClient{}, &domain.NotFoundError{Resource: "client", ID: clientID}
		}
		return domain.OAuthClient{}, fmt.Errorf("get client: %w", err)
	}
	return client, nil
}
