// Package config loads server configuration from the environment.
package config

import (
	"errors"
	"os"
)

// Defaults applied when the corresponding variable is unset.
const (
	defaultPort         = "8080"
	defaultSettingsPath = "guild_settings.yaml"
)

// ServerConfig holds server configuration from environment variables.
type ServerConfig struct {
	DiscordBotToken   string
	Port              string
	PublicURL         string
	GuildSettingsPath string
}

// Load reads configuration from the environment.
func Load() (ServerConfig, error) {
	cfg := ServerConfig{
		DiscordBotToken:   os.Getenv("DISCORD_BOT_TOKEN"),
		Port:              getEnv("PORT", defaultPort),
		PublicURL:         os.Getenv("WEBHOOK_BASE_URL"),
		GuildSettingsPath: getEnv("GUILD_SETTINGS_PATH", defaultSettingsPath),
	}

	if cfg.DiscordBotToken == "" {
		return ServerConfig{}, errors.New("DISCORD_BOT_TOKEN environment variable is required")
	}
	if cfg.PublicURL == "" {
		cfg.PublicURL = "http://localhost:" + cfg.Port
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}
