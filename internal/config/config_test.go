package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"HTTP_ADDR", "CART_STORE", "KAFKA_BROKERS", "CORS_ORIGINS", "LOOKUP_TIMEOUT_SECONDS"} {
		t.Setenv(key, "")
	}
	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, CartStoreMemory, cfg.CartStore)
	assert.Equal(t, 5*time.Second, cfg.LookupTimeout)
	assert.Equal(t, []string{"*"}, cfg.CORSOrigins)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "R", cfg.CurrencySymbol)
	assert.Equal(t, 720*time.Hour, cfg.CartTTL)
	assert.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("CART_STORE", "Redis")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SUBMIT_TIMEOUT_SECONDS", "3")
	t.Setenv("CART_TTL_HOURS", "2")
	t.Setenv("RECONCILE_MAX_CONCURRENCY", "not-a-number")

	cfg := FromEnv()
	assert.Equal(t, CartStoreRedis, cfg.CartStore)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 3*time.Second, cfg.SubmitTimeout)
	assert.Equal(t, 2*time.Hour, cfg.CartTTL)
	assert.Equal(t, 8, cfg.ReconcileMaxConcurrency)
}

func TestValidateRejectsUnknownStore(t *testing.T) {
	cfg := FromEnv()
	cfg.CartStore = "sqlite"
	assert.Error(t, cfg.Validate())
}

func TestLoadReadsDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("SHOP_NAME=Test Shop\nHTTP_ADDR=:9999\n"), 0o644))
	t.Setenv("SHOP_NAME", "")
	t.Setenv("HTTP_ADDR", ":7000")
	os.Unsetenv("SHOP_NAME")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Test Shop", cfg.ShopName)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
}

func TestLoadMissingFileIsFine(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}
