package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, DriverPostgres, cfg.StoreDriver)
	assert.Equal(t, 7, cfg.LoanMaxDays)
	assert.Equal(t, 3*time.Second, cfg.DBTimeout)
	assert.Equal(t, uint(5), cfg.CompensationMaxTries)
	assert.Equal(t, "db/migrations", cfg.MigrationsDir)
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("STORE_DRIVER", " Memory ")
	t.Setenv("LOAN_MAX_DAYS", "14")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test,http://b.test")
	t.Setenv("RECONCILE_INTERVAL", "5s")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, 14, cfg.LoanMaxDays)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, 5*time.Second, cfg.ReconcileInterval)
}

func TestParse_Errors(t *testing.T) {
	t.Run("missing secret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := Parse()
		assert.ErrorContains(t, err, "JWT_SECRET")
	})

	t.Run("bad driver", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("STORE_DRIVER", "mysql")
		_, err := Parse()
		assert.ErrorContains(t, err, "STORE_DRIVER")
	})

	t.Run("zero window", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("LOAN_MAX_DAYS", "0")
		_, err := Parse()
		assert.ErrorContains(t, err, "LOAN_MAX_DAYS")
	})

	t.Run("unparsable value", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("DB_TIMEOUT", "soon")
		_, err := Parse()
		assert.ErrorContains(t, err, "parse env:")
	})
}

func TestLoadEnvFiles_DoesNotOverrideExistingEnv(t *testing.T) {
	tmp := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmp, ".env"), []byte("DB_DSN=from_file\nLOAN_MAX_DAYS=3\n"), 0o644))

	t.Setenv("DB_DSN", "from_env")
	t.Setenv("LOAN_MAX_DAYS", "")
	require.NoError(t, os.Unsetenv("LOAN_MAX_DAYS"))
	t.Chdir(tmp)

	LoadEnvFiles()

	assert.Equal(t, "from_env", os.Getenv("DB_DSN"))
	assert.Equal(t, "3", os.Getenv("LOAN_MAX_DAYS"))
}
