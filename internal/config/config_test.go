package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.ListenAddress)
	assert.Equal(t, 9001, cfg.Server.TCPPort)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, uint(10), cfg.Server.Workers)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Pretty)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("SKOLL_LISTEN_ADDRESS", "127.0.0.1")
	t.Setenv("SKOLL_TCP_PORT", "9100")
	t.Setenv("SKOLL_LOG_LEVEL", "debug")
	t.Setenv("SKOLL_LOG_PRETTY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.ListenAddress)
	assert.Equal(t, 9100, cfg.Server.TCPPort)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.Pretty)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("SKOLL_TCP_PORT", "not-a-port")
	t.Setenv("SKOLL_LOG_PRETTY", "not-a-bool")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Server.TCPPort)
	assert.False(t, cfg.Logging.Pretty)
}
