package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ArrInstance describes one configured automation server (Radarr or Sonarr).
type ArrInstance struct {
	Name   string
	URL    string
	APIKey string
}

// Config holds all application configuration. It is loaded once at startup
// and treated as an immutable snapshot; components receive it explicitly.
type Config struct {
	// Plex
	PlexURL   string
	PlexToken string

	// Automation servers
	RadarrInstances []ArrInstance
	SonarrInstances []ArrInstance

	// Overseerr (request manager)
	OverseerrURL    string
	OverseerrAPIKey string

	// Tautulli (usage statistics)
	TautulliURL    string
	TautulliAPIKey string

	// TMDb (external id lookups)
	TmdbAPIKey string

	// Schedules
	RulesCron       string // rule evaluation + membership sync
	MaintenanceCron string // dwell-time action application

	// Server
	ServerPort string

	// Paths
	DatabaseFile string

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	viper.SetDefault("RULES_CRON", "0 */8 * * *")
	viper.SetDefault("MAINTENANCE_CRON", "30 */12 * * *")
	viper.SetDefault("SERVER_PORT", "8088")
	viper.SetDefault("LOG_LEVEL", "info")

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "curatarr")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		PlexURL:   strings.TrimRight(viper.GetString("PLEX_URL"), "/"),
		PlexToken: viper.GetString("PLEX_TOKEN"),

		RadarrInstances: parseInstances(viper.GetString("RADARR_INSTANCES")),
		SonarrInstances: parseInstances(viper.GetString("SONARR_INSTANCES")),

		OverseerrURL:    strings.TrimRight(viper.GetString("OVERSEERR_URL"), "/"),
		OverseerrAPIKey: viper.GetString("OVERSEERR_API_KEY"),

		TautulliURL:    strings.TrimRight(viper.GetString("TAUTULLI_URL"), "/"),
		TautulliAPIKey: viper.GetString("TAUTULLI_API_KEY"),

		TmdbAPIKey: viper.GetString("TMDB_API_KEY"),

		RulesCron:       viper.GetString("RULES_CRON"),
		MaintenanceCron: viper.GetString("MAINTENANCE_CRON"),

		ServerPort: viper.GetString("SERVER_PORT"),

		DatabaseFile: filepath.Join(configDir, "curatarr.db"),

		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if config.PlexURL == "" {
		return nil, fmt.Errorf("PLEX_URL is required")
	}
	if config.PlexToken == "" {
		return nil, fmt.Errorf("PLEX_TOKEN is required")
	}

	return config, nil
}

// parseInstances parses "name|url|apikey" entries separated by commas, e.g.
// RADARR_INSTANCES="main|http://localhost:7878|abcd,uhd|http://radarr4k:7878|efgh"
func parseInstances(raw string) []ArrInstance {
	if raw == "" {
		return nil
	}

	var out []ArrInstance
	for _, entry := range strings.Split(raw, ",") {
		parts := strings.Split(strings.TrimSpace(entry), "|")
		if len(parts) != 3 {
			continue
		}
		out = append(out, ArrInstance{
			Name:   strings.TrimSpace(parts[0]),
			URL:    strings.TrimRight(strings.TrimSpace(parts[1]), "/"),
			APIKey: strings.TrimSpace(parts[2]),
		})
	}
	return out
}

// HasRadarr reports whether at least one Radarr instance is configured
func (c *Config) HasRadarr() bool { return len(c.RadarrInstances) > 0 }

// HasSonarr reports whether at least one Sonarr instance is configured
func (c *Config) HasSonarr() bool { return len(c.SonarrInstances) > 0 }

// HasOverseerr reports whether Overseerr is configured
func (c *Config) HasOverseerr() bool {
	return c.OverseerrURL != "" && c.OverseerrAPIKey != ""
}

// HasTautulli reports whether Tautulli is configured
func (c *Config) HasTautulli() bool {
	return c.TautulliURL != "" && c.TautulliAPIKey != ""
}

// Radarr returns the named Radarr instance, or nil if it doesn't exist
func (c *Config) Radarr(name string) *ArrInstance {
	for i := range c.RadarrInstances {
		if c.RadarrInstances[i].Name == name {
			return &c.RadarrInstances[i]
		}
	}
	return nil
}

// Sonarr returns the named Sonarr instance, or nil if it doesn't exist
func (c *Config) Sonarr(name string) *ArrInstance {
	for i := range c.SonarrInstances {
		if c.SonarrInstances[i].Name == name {
			return &c.SonarrInstances[i]
		}
	}
	return nil
}
