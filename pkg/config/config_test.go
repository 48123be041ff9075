package config

import (
	"os"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Expected host 0.0.0.0, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConnections != 1000 {
		t.Errorf("Expected max connections 1000, got %d", cfg.Server.MaxConnections)
	}
	if cfg.Server.RequestTimeout != 30*time.Second {
		t.Errorf("Expected request timeout 30s, got %v", cfg.Server.RequestTimeout)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Expected shutdown timeout 10s, got %v", cfg.Server.ShutdownTimeout)
	}
	if cfg.Server.EnableTLS {
		t.Error("Expected TLS disabled by default")
	}

	if !cfg.REST.Enabled {
		t.Error("Expected REST enabled by default")
	}
	if cfg.REST.Port != 8081 {
		t.Errorf("Expected REST port 8081, got %d", cfg.REST.Port)
	}
	if cfg.Engine.ChunkSizeThreshold != 0.5 {
		t.Errorf("Expected ChunkSizeThreshold=0.5, got %v", cfg.Engine.ChunkSizeThreshold)
	}
	if cfg.Engine.PartialUsersChunkSize != 500 {
		t.Errorf("Expected PartialUsersChunkSize=500, got %d", cfg.Engine.PartialUsersChunkSize)
	}
	if cfg.Engine.AllowChunkOptimization {
		t.Error("Expected chunk optimization disabled by default")
	}
	if cfg.Engine.ScoreMin != 1 || cfg.Engine.ScoreMax != 5 {
		t.Errorf("Expected score range [1,5], got [%v,%v]", cfg.Engine.ScoreMin, cfg.Engine.ScoreMax)
	}

	if !cfg.Cache.Enabled {
		t.Error("Expected cache enabled by default")
	}
	if cfg.Cache.Capacity != 1000 {
		t.Errorf("Expected cache capacity 1000, got %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("Expected cache TTL 5m, got %v", cfg.Cache.TTL)
	}

	if cfg.Dataset.DataDir != "./data" {
		t.Errorf("Expected data dir ./data, got %s", cfg.Dataset.DataDir)
	}
	if cfg.Dataset.MaxDatasets != 100 {
		t.Errorf("Expected max datasets 100, got %d", cfg.Dataset.MaxDatasets)
	}
	if cfg.Dataset.DefaultFormat != "csv" {
		t.Errorf("Expected default format csv, got %s", cfg.Dataset.DefaultFormat)
	}
}

var recoEnvVars = []string{
	"RECO_HOST", "RECO_PORT", "RECO_MAX_CONNECTIONS", "RECO_REQUEST_TIMEOUT", "RECO_ENABLE_TLS",
	"RECO_CHUNK_SIZE_THRESHOLD", "RECO_PARTIAL_USERS_CHUNK_SIZE", "RECO_ALLOW_CHUNK_OPTIMIZATION",
	"RECO_SCORE_MIN", "RECO_SCORE_MAX",
	"RECO_CACHE_ENABLED", "RECO_CACHE_CAPACITY", "RECO_CACHE_TTL",
	"RECO_DATA_DIR", "RECO_MAX_DATASETS", "RECO_DEFAULT_FORMAT",
}

func withCleanEnv(t *testing.T) func() {
	t.Helper()
	original := make(map[string]string)
	for _, key := range recoEnvVars {
		original[key] = os.Getenv(key)
		os.Unsetenv(key)
	}
	return func() {
		for key, value := range original {
			if value == "" {
				os.Unsetenv(key)
			} else {
				os.Setenv(key, value)
			}
		}
	}
}

func TestLoadFromEnv(t *testing.T) {
	defer withCleanEnv(t)()

	os.Setenv("RECO_HOST", "127.0.0.1")
	os.Setenv("RECO_PORT", "9090")
	os.Setenv("RECO_MAX_CONNECTIONS", "5000")
	os.Setenv("RECO_REQUEST_TIMEOUT", "60s")
	os.Setenv("RECO_ENABLE_TLS", "true")

	os.Setenv("RECO_CHUNK_SIZE_THRESHOLD", "0.25")
	os.Setenv("RECO_PARTIAL_USERS_CHUNK_SIZE", "250")
	os.Setenv("RECO_ALLOW_CHUNK_OPTIMIZATION", "true")
	os.Setenv("RECO_SCORE_MIN", "0")
	os.Setenv("RECO_SCORE_MAX", "10")

	os.Setenv("RECO_CACHE_ENABLED", "false")
	os.Setenv("RECO_CACHE_CAPACITY", "5000")
	os.Setenv("RECO_CACHE_TTL", "10m")

	os.Setenv("RECO_DATA_DIR", "/var/lib/recoengine")
	os.Setenv("RECO_MAX_DATASETS", "12")
	os.Setenv("RECO_DEFAULT_FORMAT", "json")

	cfg := LoadFromEnv()

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Expected host 127.0.0.1, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxConnections != 5000 {
		t.Errorf("Expected max connections 5000, got %d", cfg.Server.MaxConnections)
	}
	if cfg.Server.RequestTimeout != 60*time.Second {
		t.Errorf("Expected request timeout 60s, got %v", cfg.Server.RequestTimeout)
	}
	if !cfg.Server.EnableTLS {
		t.Error("Expected TLS enabled")
	}

	if cfg.Engine.ChunkSizeThreshold != 0.25 {
		t.Errorf("Expected ChunkSizeThreshold=0.25, got %v", cfg.Engine.ChunkSizeThreshold)
	}
	if cfg.Engine.PartialUsersChunkSize != 250 {
		t.Errorf("Expected PartialUsersChunkSize=250, got %d", cfg.Engine.PartialUsersChunkSize)
	}
	if !cfg.Engine.AllowChunkOptimization {
		t.Error("Expected chunk optimization enabled")
	}
	if cfg.Engine.ScoreMin != 0 || cfg.Engine.ScoreMax != 10 {
		t.Errorf("Expected score range [0,10], got [%v,%v]", cfg.Engine.ScoreMin, cfg.Engine.ScoreMax)
	}

	if cfg.Cache.Enabled {
		t.Error("Expected cache disabled")
	}
	if cfg.Cache.Capacity != 5000 {
		t.Errorf("Expected cache capacity 5000, got %d", cfg.Cache.Capacity)
	}
	if cfg.Cache.TTL != 10*time.Minute {
		t.Errorf("Expected cache TTL 10m, got %v", cfg.Cache.TTL)
	}

	if cfg.Dataset.DataDir != "/var/lib/recoengine" {
		t.Errorf("Expected data dir /var/lib/recoengine, got %s", cfg.Dataset.DataDir)
	}
	if cfg.Dataset.MaxDatasets != 12 {
		t.Errorf("Expected max datasets 12, got %d", cfg.Dataset.MaxDatasets)
	}
	if cfg.Dataset.DefaultFormat != "json" {
		t.Errorf("Expected default format json, got %s", cfg.Dataset.DefaultFormat)
	}
}

func TestLoadFromEnv_InvalidValues(t *testing.T) {
	defer withCleanEnv(t)()

	os.Setenv("RECO_PORT", "invalid")
	cfg := LoadFromEnv()

	if cfg.Server.Port != 8080 {
		t.Errorf("Expected default port 8080 for invalid value, got %d", cfg.Server.Port)
	}
}

func TestLoadFromEnv_DefaultsWhenNotSet(t *testing.T) {
	defer withCleanEnv(t)()

	cfg := LoadFromEnv()
	defaults := Default()

	if cfg.Server.Host != defaults.Server.Host {
		t.Errorf("Expected default host, got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != defaults.Server.Port {
		t.Errorf("Expected default port, got %d", cfg.Server.Port)
	}
	if cfg.Engine.ChunkSizeThreshold != defaults.Engine.ChunkSizeThreshold {
		t.Errorf("Expected default chunk size threshold, got %v", cfg.Engine.ChunkSizeThreshold)
	}
	if cfg.Cache.Enabled != defaults.Cache.Enabled {
		t.Errorf("Expected default cache enabled, got %v", cfg.Cache.Enabled)
	}
	if cfg.Dataset.DataDir != defaults.Dataset.DataDir {
		t.Errorf("Expected default data dir, got %s", cfg.Dataset.DataDir)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  *Config
		wantErr bool
	}{
		{
			name:    "Valid default config",
			config:  Default(),
			wantErr: false,
		},
		{
			name: "Invalid port (too low)",
			config: &Config{
				Server: ServerConfig{Port: 0},
				Engine: Default().Engine,
				Dataset: Default().Dataset,
			},
			wantErr: true,
		},
		{
			name: "Invalid port (too high)",
			config: &Config{
				Server:  ServerConfig{Port: 70000},
				Engine:  Default().Engine,
				Dataset: Default().Dataset,
			},
			wantErr: true,
		},
		{
			name: "Invalid chunk size threshold (zero)",
			config: &Config{
				Server:  ServerConfig{Port: 8080, MaxConnections: 1},
				Engine:  EngineConfig{ChunkSizeThreshold: 0, PartialUsersChunkSize: 1, ScoreMin: 1, ScoreMax: 5},
				Dataset: Default().Dataset,
			},
			wantErr: true,
		},
		{
			name: "Invalid score range (max <= min)",
			config: &Config{
				Server:  ServerConfig{Port: 8080, MaxConnections: 1},
				Engine:  EngineConfig{ChunkSizeThreshold: 0.5, PartialUsersChunkSize: 1, ScoreMin: 5, ScoreMax: 5},
				Dataset: Default().Dataset,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestServerConfig_Address(t *testing.T) {
	cfg := ServerConfig{
		Host: "localhost",
		Port: 8080,
	}

	addr := cfg.Address()
	expected := "localhost:8080"
	if addr != expected {
		t.Errorf("Expected address %s, got %s", expected, addr)
	}

	defaultCfg := Default()
	addr = defaultCfg.Server.Address()
	expected = "0.0.0.0:8080"
	if addr != expected {
		t.Errorf("Expected default address %s, got %s", expected, addr)
	}
}
