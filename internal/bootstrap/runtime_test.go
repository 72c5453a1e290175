package bootstrap

import (
	"testing"

	"devshelf/internal/config"
	"devshelf/internal/models"
	"devshelf/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func devConfig() *config.Config {
	return &config.Config{
		Env:              "development",
		DevBootstrapRoot: true,
		DevRootPassword:  "RootPassword123!",
	}
}

func TestEnsureDevRootAdmin_CreatesRoot(t *testing.T) {
	db := testutil.NewTestDB(t)

	require.NoError(t, EnsureDevRootAdmin(t.Context(), devConfig(), db))

	var root models.User
	require.NoError(t, db.First(&root, 1).Error)
	assert.Equal(t, "devshelf_root", root.Username)
	assert.Equal(t, "root@devshelf.local", root.Email)
	assert.True(t, root.IsAdmin)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(root.Password), []byte("RootPassword123!")))

	// Running again is idempotent.
	require.NoError(t, EnsureDevRootAdmin(t.Context(), devConfig(), db))
	var n int64
	require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestEnsureDevRootAdmin_PromotesExistingUser(t *testing.T) {
	db := testutil.NewTestDB(t)
	existing := testutil.CreateUser(t, db, "alice")
	require.Equal(t, uint(1), existing.ID)
	require.NoError(t, db.Model(existing).Update("is_banned", true).Error)

	require.NoError(t, EnsureDevRootAdmin(t.Context(), devConfig(), db))

	var root models.User
	require.NoError(t, db.First(&root, 1).Error)
	assert.Equal(t, "alice", root.Username, "credentials are kept unless forced")
	assert.True(t, root.IsAdmin)
	assert.False(t, root.IsBanned)

	cfg := devConfig()
	cfg.DevRootForceCredentials = true
	cfg.DevRootUsername = "root"
	require.NoError(t, EnsureDevRootAdmin(t.Context(), cfg, db))
	require.NoError(t, db.First(&root, 1).Error)
	assert.Equal(t, "root", root.Username)
}

func TestEnsureDevRootAdmin_Skipped(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"production", func(c *config.Config) { c.Env = "production" }},
		{"disabled", func(c *config.Config) { c.DevBootstrapRoot = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := testutil.NewTestDB(t)
			cfg := devConfig()
			tt.mutate(cfg)

			require.NoError(t, EnsureDevRootAdmin(t.Context(), cfg, db))

			var n int64
			require.NoError(t, db.Model(&models.User{}).Count(&n).Error)
			assert.Zero(t, n)
		})
	}
}

func TestEnsureDevRootAdmin_RequiresStrongPassword(t *testing.T) {
	db := testutil.NewTestDB(t)

	cfg := devConfig()
	cfg.DevRootPassword = ""
	assert.Error(t, EnsureDevRootAdmin(t.Context(), cfg, db))

	cfg.DevRootPassword = "short"
	assert.Error(t, EnsureDevRootAdmin(t.Context(), cfg, db))
}
