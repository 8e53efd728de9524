// Package servarr implements clients for the two automation-server kinds.
// Radarr and Sonarr expose structurally identical APIs; the shared pieces
// live on the embedded base client.
package servarr

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/curatarr/curatarr/internal/config"
	"github.com/curatarr/curatarr/internal/services/httpapi"
	"github.com/curatarr/curatarr/internal/utils"
)

// Cache name prefixes; one named cache exists per configured instance so
// flushes can target a whole resolver family.
const (
	RadarrCachePrefix = "radarr-"
	SonarrCachePrefix = "sonarr-"
)

// baseClient carries the request plumbing shared by both server kinds
type baseClient struct {
	api    *httpapi.Client
	name   string
	logger *logrus.Logger
}

func newBaseClient(instance config.ArrInstance, cacheName string, caches *utils.CacheManager, logger *logrus.Logger) baseClient {
	headers := map[string]string{
		"X-Api-Key": instance.APIKey,
	}
	return baseClient{
		api:    httpapi.NewClient(instance.URL+"/api/v3", headers, caches.Get(cacheName), logger),
		name:   instance.Name,
		logger: logger,
	}
}

// Name returns the configured instance name
func (c *baseClient) Name() string { return c.name }

// GetTags retrieves the server's tags; cached, tags change rarely
func (c *baseClient) GetTags(ctx context.Context) ([]Tag, error) {
	var tags []Tag
	if err := c.api.GetJSONCached(ctx, "/tag", utils.ReferenceCacheTTL, &tags); err != nil {
		return nil, fmt.Errorf("failed to get tags: %w", err)
	}
	return tags, nil
}

// GetProfiles retrieves the server's quality profiles; cached
func (c *baseClient) GetProfiles(ctx context.Context) ([]QualityProfile, error) {
	var profiles []QualityProfile
	if err := c.api.GetJSONCached(ctx, "/qualityprofile", utils.ReferenceCacheTTL, &profiles); err != nil {
		return nil, fmt.Errorf("failed to get quality profiles: %w", err)
	}
	return profiles, nil
}

// RunCommand triggers a named command on the server
func (c *baseClient) RunCommand(ctx context.Context, name string, options map[string]any) error {
	body := map[string]any{"name": name}
	for key, value := range options {
		body[key] = value
	}
	if err := c.api.DoJSON(ctx, "POST", "/command", body, nil); err != nil {
		return fmt.Errorf("failed to run command %q: %w", name, err)
	}
	return nil
}

// Manager hands out the configured clients by instance name.
type Manager struct {
	radarr map[string]*RadarrClient
	sonarr map[string]*SonarrClient
	caches *utils.CacheManager
}

// NewManager builds clients for every configured instance
func NewManager(cfg *config.Config, caches *utils.CacheManager, logger *logrus.Logger) *Manager {
	m := &Manager{
		radarr: make(map[string]*RadarrClient),
		sonarr: make(map[string]*SonarrClient),
		caches: caches,
	}
	for _, instance := range cfg.RadarrInstances {
		m.radarr[instance.Name] = NewRadarrClient(instance, caches, logger)
	}
	for _, instance := range cfg.SonarrInstances {
		m.sonarr[instance.Name] = NewSonarrClient(instance, caches, logger)
	}
	return m
}

// Radarr returns the named Radarr client
func (m *Manager) Radarr(name string) (*RadarrClient, error) {
	client, ok := m.radarr[name]
	if !ok {
		return nil, fmt.Errorf("no Radarr instance named %q is configured", name)
	}
	return client, nil
}

// Sonarr returns the named Sonarr client
func (m *Manager) Sonarr(name string) (*SonarrClient, error) {
	client, ok := m.sonarr[name]
	if !ok {
		return nil, fmt.Errorf("no Sonarr instance named %q is configured", name)
	}
	return client, nil
}

// DefaultRadarr returns the single configured Radarr client when exactly
// one exists, used when a collection doesn't pin an instance.
func (m *Manager) DefaultRadarr() *RadarrClient {
	if len(m.radarr) == 1 {
		for _, client := range m.radarr {
			return client
		}
	}
	return nil
}

// DefaultSonarr returns the single configured Sonarr client when exactly
// one exists.
func (m *Manager) DefaultSonarr() *SonarrClient {
	if len(m.sonarr) == 1 {
		for _, client := range m.sonarr {
			return client
		}
	}
	return nil
}

// FlushCaches clears the response caches of every instance of both kinds
func (m *Manager) FlushCaches() {
	m.caches.FlushPrefix(RadarrCachePrefix)
	m.caches.FlushPrefix(SonarrCachePrefix)
}
