package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseInstances(t *testing.T) {
	instances := parseInstances("main|http://localhost:7878/|abcd, uhd|http://radarr4k:7878|efgh")
	assert.Equal(t, []ArrInstance{
		{Name: "main", URL: "http://localhost:7878", APIKey: "abcd"},
		{Name: "uhd", URL: "http://radarr4k:7878", APIKey: "efgh"},
	}, instances)

	assert.Nil(t, parseInstances(""))
	assert.Empty(t, parseInstances("missing|fields"), "malformed entries are skipped")
}

func TestInstanceLookup(t *testing.T) {
	cfg := &Config{
		RadarrInstances: []ArrInstance{{Name: "main"}},
	}
	assert.True(t, cfg.HasRadarr())
	assert.False(t, cfg.HasSonarr())
	assert.NotNil(t, cfg.Radarr("main"))
	assert.Nil(t, cfg.Radarr("uhd"))
	assert.Nil(t, cfg.Sonarr("main"))
}
