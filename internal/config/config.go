package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const defaultMongoURI = "mongodb://localhost:27017/"

// Config holds all configuration for the bot process.
type Config struct {
	DiscordToken string
	MongoURI     string
	LogLevel     string

	// AdminIDs is the set of user IDs allowed to query leaderboards for
	// an arbitrary guild from outside that guild (e.g. in DMs).
	AdminIDs map[string]struct{}
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// .env file is optional, continue with environment variables
	}

	config := &Config{
		DiscordToken: os.Getenv("DISCORD_TOKEN"),
		MongoURI:     os.Getenv("MONGODB_URI"),
		LogLevel:     os.Getenv("LOG_LEVEL"),
		AdminIDs:     parseAdminIDs(os.Getenv("ADMIN_IDS")),
	}

	if config.DiscordToken == "" {
		return nil, &ConfigError{Field: "DISCORD_TOKEN", Message: "DISCORD_TOKEN is required"}
	}

	if config.MongoURI == "" {
		config.MongoURI = defaultMongoURI
	}

	return config, nil
}

// IsAdmin reports whether the user may override the guild context.
func (c *Config) IsAdmin(userID string) bool {
	_, ok := c.AdminIDs[userID]
	return ok
}

// parseAdminIDs parses a comma-separated allowlist into a set. Blank
// entries are dropped.
func parseAdminIDs(raw string) map[string]struct{} {
	ids := make(map[string]struct{})
	for _, id := range strings.Split(raw, ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			ids[id] = struct{}{}
		}
	}
	return ids
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
