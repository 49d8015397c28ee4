package tracker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/smallbiznis/redmine-mcp-gateway/internal/repository"
)

// DefaultReferenceTTL is how long projects and activities stay cached.
const DefaultReferenceTTL = 24 * time.Hour

// CachedClient caches project and activity listings. Issues, time entries
// and the current user always go to the tracker.
type CachedClient struct {
	API
	cache  repository.ReferenceCache
	ttl    time.Duration
	userID string
	logger *zap.Logger
}

// ListProjects is cached per gateway user since membership differs per key.
func (c *CachedClient) ListProjects(ctx context.Context) ([]Project, error) {
	key := "projects:" + c.userID
	var projects []Project
	if c.lookup(ctx, key, &projects) {
		return projects, nil
	}
	projects, err := c.API.ListProjects(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, projects)
	return projects, nil
}

// ListActivities is cached per tracker endpoint.
func (c *CachedClient) ListActivities(ctx context.Context) ([]Activity, error) {
	sum := sha256.Sum256([]byte(c.API.EndpointURL()))
	key := "activities:" + hex.EncodeToString(sum[:8])
	var activities []Activity
	if c.lookup(ctx, key, &activities) {
		return activities, nil
	}
	activities, err := c.API.ListActivities(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, key, activities)
	return activities, nil
}

func (c *CachedClient) lookup(ctx context.Context, key string, dest any) bool {
	hit, err := c.cache.Get(ctx, key, dest)
	if err != nil {
		c.logger.Warn("reference cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (c *CachedClient) store(ctx context.Context, key string, value any) {
	ttl := c.ttl
	if ttl <= 0 {
		ttl = DefaultReferenceTTL
	}
	if err := c.cache.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn("reference cache write failed", zap.String("key", key), zap.Error(err))
	}
}
