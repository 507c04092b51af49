package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/cemetery-api/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, "cemetery", nil)
	ctx := context.Background()

	var dest map[string]int
	assert.ErrorIs(t, repo.Get(ctx, "plots:stats", &dest), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "plots:stats", map[string]int{"total": 1}, time.Minute))
	assert.NoError(t, repo.DeleteByPattern(ctx, "plots:*"))
	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}

func TestCacheRepositoryKeyPrefix(t *testing.T) {
	assert.Equal(t, "cemetery:plots:stats", NewCacheRepository(nil, "cemetery", nil).key("plots:stats"))
	assert.Equal(t, "plots:stats", NewCacheRepository(nil, "", nil).key("plots:stats"))
}
