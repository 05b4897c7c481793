package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Chaibouu/mon-ecole-beta-sub002/pkg/errors"
)

func TestCacheRepositoryWithoutClient(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	var dest map[string]string
	err := repo.Get(ctx, "membership:u1:school-1", &dest)
	assert.ErrorIs(t, err, appErrors.ErrCacheMiss)
	require.NoError(t, repo.Set(ctx, "membership:u1:school-1", map[string]string{"role": "ADMIN"}, time.Minute))
	require.NoError(t, repo.DeleteByPattern(ctx, "membership:u1:*"))
	require.NoError(t, repo.Close())
}

func TestNamespacedKey(t *testing.T) {
	assert.Equal(t, "mon-ecole:membership:u1:school-1", namespaced("membership:u1:school-1"))
}
