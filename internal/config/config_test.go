package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "test-secret")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "chatserver", cfg.AppName)
		assert.Equal(t, "0.0.0.0:8000", cfg.HTTPAddr())
		assert.Equal(t, 24*time.Hour, cfg.AccessTokenTTL())
		assert.Equal(t, 10*time.Second, cfg.EventTimeout)
		assert.Equal(t, 200, cfg.MessageHistoryLimit)
	})

	t.Run("RequiresJWTSecret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "JWT_SECRET")
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "test-secret")
		t.Setenv("HTTP_HOST", "127.0.0.1")
		t.Setenv("HTTP_PORT", "9090")
		t.Setenv("EVENT_TIMEOUT", "3s")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "127.0.0.1:9090", cfg.HTTPAddr())
		assert.Equal(t, 3*time.Second, cfg.EventTimeout)
	})
}

func TestCORSOriginList(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t,
		[]string{"http://localhost:3000", "http://localhost:5173"},
		cfg.CORSOriginList())

	cfg.CORSOrigins = "https://chat.example.com, https://staging.example.com"
	assert.Equal(t,
		[]string{"https://chat.example.com", "https://staging.example.com"},
		cfg.CORSOriginList())
}
