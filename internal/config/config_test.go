package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate_RejectsBadPort(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 0},
		Database: DatabaseConfig{URL: "postgres://x"},
		Routing:  RoutingConfig{MaxRounds: 6, TransferRadiusMeters: 300},
	}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidate_RejectsMissingDatabaseURL(t *testing.T) {
	cfg := &Config{
		Server:  ServerConfig{Port: 8080},
		Routing: RoutingConfig{MaxRounds: 6, TransferRadiusMeters: 300},
	}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database.url")
}

func TestValidate_RejectsNonPositiveRoutingKnobs(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 8080},
		Database: DatabaseConfig{URL: "postgres://x"},
		Routing:  RoutingConfig{MaxRounds: 0, TransferRadiusMeters: 0},
	}
	err := cfg.Validate()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "routing.max_rounds")
	assert.Contains(t, err.Error(), "routing.transfer_radius_meters")
}

func TestValidate_AcceptsSaneConfig(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 8080, RequestTimeout: 60},
		Database: DatabaseConfig{URL: "postgres://x"},
		Routing:  RoutingConfig{MaxRounds: 6, TransferRadiusMeters: 300, InterStopSeconds: 180, NearbyBoxDegrees: 0.01},
	}
	assert.NoError(t, cfg.Validate())
}
