package repository

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/crypto"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
)

func TestCredentialStoreEncryptsAtRest(t *testing.T) {
	db := newFakeDB()
	store := NewPostgresCredentialStore(db, newCipher(t))
	ctx := context.Background()

	cred := domain.Credential{UserID: "alice@company.com", EndpointURL: "https://track.example", APIKey: "k1"}
	require.NoError(t, store.Save(ctx, cred, domain.SaveOptions{}))

	row := db.rows["alice@company.com"]
	require.NotEqual(t, cred.EndpointURL, row.endpoint)
	require.NotEqual(t, cred.APIKey, row.apiKey)
	require.NotContains(t, row.endpoint, "track.example")

	got, err := store.FindByUserID(ctx, "alice@company.com")
	require.NoError(t, err)
	require.Equal(t, "https://track.example", got.EndpointURL)
	require.Equal(t, "k1", got.APIKey)
	require.Equal(t, domain.RoleUser, got.Role)
	require.False(t, got.IsBot)
}

func TestCredentialStoreFindMissing(t *testing.T) {
	store := NewPostgresCredentialStore(newFakeDB(), newCipher(t))

	_, err := store.FindByUserID(context.Background(), "ghost@company.com")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCredentialStorePreservesRoleOnResave(t *testing.T) {
	db := newFakeDB()
	store := NewPostgresCredentialStore(db, newCipher(t))
	ctx := context.Background()

	admin := domain.RoleAdmin
	isBot := true
	require.NoError(t, store.Save(ctx, domain.Credential{UserID: "bot@company.com", EndpointURL: "https://a", APIKey: "k1"},
		domain.SaveOptions{Role: &admin, IsBot: &isBot}))

	require.NoError(t, store.Save(ctx, domain.Credential{UserID: "bot@company.com", EndpointURL: "https://b", APIKey: "k2"},
		domain.SaveOptions{}))

	got, err := store.FindByUserID(ctx, "bot@company.com")
	require.NoError(t, err)
	require.Equal(t, "https://b", got.EndpointURL)
	require.Equal(t, "k2", got.APIKey)
	require.Equal(t, domain.RoleAdmin, got.Role)
	require.True(t, got.IsBot)
}

func TestCredentialStoreExists(t *testing.T) {
	store := NewPostgresCredentialStore(newFakeDB(), newCipher(t))
	ctx := context.Background()

	ok, err := store.Exists(ctx, "alice@company.com")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Save(ctx, domain.Credential{UserID: "alice@company.com", EndpointURL: "https://a", APIKey: "k"}, domain.SaveOptions{}))

	ok, err = store.Exists(ctx, "alice@company.com")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestCredentialStoreSurfacesDecryptionError(t *testing.T) {
	db := newFakeDB()
	ctx := context.Background()
	require.NoError(t, NewPostgresCredentialStore(db, newCipher(t)).Save(ctx,
		domain.Credential{UserID: "alice@company.com", EndpointURL: "https://a", APIKey: "k"}, domain.SaveOptions{}))

	other, err := crypto.NewSecretBox(bytes.Repeat([]byte{9}, 32))
	require.NoError(t, err)

	_, err = NewPostgresCredentialStore(db, other).FindByUserID(ctx, "alice@company.com")
	require.ErrorIs(t, err, domain.ErrDecryption)
}

func newCipher(t *testing.T) *crypto.SecretBox {
	t.Helper()
	box, err := crypto.NewSecretBox(bytes.Repeat([]byte{1}, 32))
	require.NoError(t, err)
	return box
}

// ---- fakes ----

type credentialRow struct {
	userID    string
	endpoint  string
	apiKey    string
	createdAt time.Time
	role      string
	isBot     bool
}

type fakeDB struct {
	rows map[string]credentialRow
}

func newFakeDB() *fakeDB {
	return &fakeDB{rows: map[string]credentialRow{}}
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if sql != upsertCredentialSQL {
		return pgconn.CommandTag{}, fmt.Errorf("unexpected exec: %s", sql)
	}
	userID := args[0].(string)
	row, exists := f.rows[userID]
	if !exists {
		row = credentialRow{userID: userID, createdAt: args[3].(time.Time), role: "user"}
	}
	row.endpoint = args[1].(string)
	row.apiKey = args[2].(string)
	if role, _ := args[4].(*string); role != nil {
		row.role = *role
	}
	if isBot, _ := args[5].(*bool); isBot != nil {
		row.isBot = *isBot
	}
	f.rows[userID] = row
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	userID := args[0].(string)
	row, ok := f.rows[userID]
	switch sql {
	case existsCredentialSQL:
		return fakeRow{values: []any{ok}}
	case selectCredentialSQL:
		if !ok {
			return fakeRow{err: pgx.ErrNoRows}
		}
		return fakeRow{values: []any{row.userID, row.endpoint, row.apiKey, row.createdAt, row.role, row.isBot}}
	}
	return fakeRow{err: errors.New("unexpected query")}
}

type fakeRow struct {
	values []any
	err    error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.values[i].(string)
		case *bool:
			*p = r.values[i].(bool)
		case *time.Time:
			*p = r.values[i].(time.Time)
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}
