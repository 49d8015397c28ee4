package cache

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	mr "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain"
	"github.com/smallbiznis/redmine-mcp-gateway/internal/domain/oauth"
)

func newRedis(t *testing.T) (*mr.Miniredis, redis.UniversalClient) {
	t.Helper()
	m, err := mr.Run()
	require.NoError(t, err)
	t.Cleanup(m.Close)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return m, client
}

func TestRedisCodeStore_ConsumeOnce(t *testing.T) {
	_, client := newRedis(t)
	store := NewRedisCodeStore(client, 0)
	ctx := context.Background()

	data := oauth.AuthorizationCodeData{UserID: "alice@company.com", ClientID: "c1", RedirectURI: "https://cb"}
	require.NoError(t, store.Store(ctx, "code-1", data))

	ok, err := store.Exists(ctx, "code-1")
	require.NoError(t, err)
	require.True(t, ok)

	got, err := store.ConsumeOnce(ctx, "code-1")
	require.NoError(t, err)
	require.Equal(t, data.UserID, got.UserID)
	require.Equal(t, data.RedirectURI, got.RedirectURI)

	_, err = store.ConsumeOnce(ctx, "code-1")
	require.ErrorIs(t, err, domain.ErrNotFound)

	ok, err = store.Exists(ctx, "code-1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRedisCodeStore_HashedKey(t *testing.T) {
	m, client := newRedis(t)
	store := NewRedisCodeStore(client, 0)

	require.NoError(t, store.Store(context.Background(), "visible-code", oauth.AuthorizationCodeData{UserID: "u"}))

	keys := m.Keys()
	require.Len(t, keys, 1)
	require.True(t, strings.HasPrefix(keys[0], codeKeyPrefix))
	require.NotContains(t, keys[0], "visible-code")
	require.Equal(t, DefaultCodeTTL, m.TTL(keys[0]))
}

func TestRedisCodeStore_Expiry(t *testing.T) {
	m, client := newRedis(t)
	store := NewRedisCodeStore(client, 0)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, "late", oauth.AuthorizationCodeData{UserID: "u"}))
	m.FastForward(DefaultCodeTTL + time.Second)

	_, err := store.ConsumeOnce(ctx, "late")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRedisCodeStore_ConcurrentConsume(t *testing.T) {
	_, client := newRedis(t)
	store := NewRedisCodeStore(client, 0)
	ctx := context.Background()
	require.NoError(t, store.Store(ctx, "race", oauth.AuthorizationCodeData{UserID: "u"}))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.ConsumeOnce(ctx, "race"); err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, successes)
}

func TestRedisSessionStore(t *testing.T) {
	m, client := newRedis(t)
	store := NewRedisSessionStore(client)
	ctx := context.Background()

	missing, err := store.Load(ctx, "nope")
	require.NoError(t, err)
	require.Nil(t, missing)

	require.NoError(t, store.Save(ctx, "s1", map[string]string{"oauth_state": "xyz"}, time.Minute))
	got, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "xyz", got["oauth_state"])

	m.FastForward(2 * time.Minute)
	got, err = store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Nil(t, got)

	require.NoError(t, store.Save(ctx, "s2", map[string]string{"k": "v"}, time.Minute))
	require.NoError(t, store.Delete(ctx, "s2"))
	got, err = store.Load(ctx, "s2")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRedisReferenceCache(t *testing.T) {
	m, client := newRedis(t)
	cache := NewRedisReferenceCache(client)
	ctx := context.Background()

	type item struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	var out []item
	hit, err := cache.Get(ctx, "projects:x", &out)
	require.NoError(t, err)
	require.False(t, hit)

	require.NoError(t, cache.Set(ctx, "projects:x", []item{{ID: 1, Name: "Ops"}}, 24*time.Hour))
	hit, err = cache.Get(ctx, "projects:x", &out)
	require.NoError(t, err)
	require.True(t, hit)
	require.Equal(t, []item{{ID: 1, Name: "Ops"}}, out)

	m.FastForward(25 * time.Hour)
	hit, err = cache.Get(ctx, "projects:x", &out)
	require.NoError(t, err)
	require.False(t, hit)
}
