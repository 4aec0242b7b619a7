package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "test-token")
	t.Setenv("MONGODB_URI", "mongodb://db:27017/")
	t.Setenv("ADMIN_IDS", "123, 456,,789")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "test-token", cfg.DiscordToken)
	assert.Equal(t, "mongodb://db:27017/", cfg.MongoURI)

	assert.True(t, cfg.IsAdmin("123"))
	assert.True(t, cfg.IsAdmin("456"))
	assert.True(t, cfg.IsAdmin("789"))
	assert.False(t, cfg.IsAdmin("999"))
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "")
	t.Setenv("MONGODB_URI", "mongodb://db:27017/")

	_, err := Load()
	require.Error(t, err)

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "DISCORD_TOKEN", cfgErr.Field)
}

func TestLoadDefaultMongoURI(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "test-token")
	t.Setenv("MONGODB_URI", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, defaultMongoURI, cfg.MongoURI)
}

func TestLoadNoAdmins(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "test-token")
	t.Setenv("ADMIN_IDS", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.IsAdmin("123"))
}
