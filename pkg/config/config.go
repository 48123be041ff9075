package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration.
type Config struct {
	Server  ServerConfig
	REST    RESTConfig
	Engine  EngineConfig
	Cache   CacheConfig
	Dataset DatasetConfig
}

// ServerConfig holds REST/gRPC server configuration.
type ServerConfig struct {
	Host            string        // Server host (default: "0.0.0.0")
	Port            int           // Server port (default: 8080)
	MaxConnections  int           // Max concurrent connections
	RequestTimeout  time.Duration // Request timeout
	ShutdownTimeout time.Duration // Graceful shutdown timeout
	EnableTLS       bool          // Enable TLS
	CertFile        string        // TLS certificate file
	KeyFile         string        // TLS key file
}

// RESTConfig holds the REST API surface's configuration, served alongside
// the gRPC health/reflection server.
type RESTConfig struct {
	Enabled bool
	Host    string
	Port    int

	CORSEnabled bool
	CORSOrigins []string

	AuthEnabled bool
	JWTSecret   string
	PublicPaths []string
	AdminPaths  []string

	RateLimitEnabled bool
	RateLimitPerSec  float64
	RateLimitBurst   int
	RateLimitPerIP   bool
	RateLimitPerUser bool
	RateLimitGlobal  bool
}

// EngineConfig holds the chunked matrix engine's tuning knobs.
type EngineConfig struct {
	ChunkSizeThreshold     float64 // 0 < τ <= 1, chunk-size optimization target
	PartialUsersChunkSize  int     // batch size for mean cache top-up
	AllowChunkOptimization bool    // gate for adaptive chunk shrinking
	ScoreMin               float64 // declared minimum rating value
	ScoreMax               float64 // declared maximum rating value
}

// CacheConfig holds prediction cache configuration.
type CacheConfig struct {
	Enabled  bool          // Enable prediction caching
	Capacity int           // Max cache entries
	TTL      time.Duration // Time to live for cache entries
}

// DatasetConfig holds dataset-manager configuration.
type DatasetConfig struct {
	DataDir       string // Data directory path for file-backed datasets
	MaxDatasets   int    // Max number of registered datasets
	DefaultFormat string // Default ingestion format ("csv" or "json")
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			MaxConnections:  1000,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			EnableTLS:       false,
		},
		REST: RESTConfig{
			Enabled:          true,
			Host:             "0.0.0.0",
			Port:             8081,
			CORSEnabled:      false,
			AuthEnabled:      false,
			PublicPaths:      []string{"/v1/health", "/docs"},
			RateLimitEnabled: false,
			RateLimitPerSec:  50,
			RateLimitBurst:   100,
			RateLimitPerIP:   true,
		},
		Engine: EngineConfig{
			ChunkSizeThreshold:     0.5,
			PartialUsersChunkSize: 500,
			AllowChunkOptimization: false,
			ScoreMin:               1,
			ScoreMax:               5,
		},
		Cache: CacheConfig{
			Enabled:  true,
			Capacity: 1000,
			TTL:      5 * time.Minute,
		},
		Dataset: DatasetConfig{
			DataDir:       "./data",
			MaxDatasets:   100,
			DefaultFormat: "csv",
		},
	}
}

// LoadFromEnv loads configuration from RECO_* environment variables,
// falling back to Default() for anything unset.
func LoadFromEnv() *Config {
	cfg := Default()

	if host := os.Getenv("RECO_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if port := os.Getenv("RECO_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Server.Port = p
		}
	}
	if maxConn := os.Getenv("RECO_MAX_CONNECTIONS"); maxConn != "" {
		if mc, err := strconv.Atoi(maxConn); err == nil {
			cfg.Server.MaxConnections = mc
		}
	}
	if timeout := os.Getenv("RECO_REQUEST_TIMEOUT"); timeout != "" {
		if t, err := time.ParseDuration(timeout); err == nil {
			cfg.Server.RequestTimeout = t
		}
	}
	if enableTLS := os.Getenv("RECO_ENABLE_TLS"); enableTLS == "true" {
		cfg.Server.EnableTLS = true
		cfg.Server.CertFile = os.Getenv("RECO_TLS_CERT")
		cfg.Server.KeyFile = os.Getenv("RECO_TLS_KEY")
	}

	if restEnabled := os.Getenv("RECO_REST_ENABLED"); restEnabled == "false" {
		cfg.REST.Enabled = false
	}
	if host := os.Getenv("RECO_REST_HOST"); host != "" {
		cfg.REST.Host = host
	}
	if port := os.Getenv("RECO_REST_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.REST.Port = p
		}
	}
	if cors := os.Getenv("RECO_REST_CORS_ENABLED"); cors == "true" {
		cfg.REST.CORSEnabled = true
	}
	if authEnabled := os.Getenv("RECO_REST_AUTH_ENABLED"); authEnabled == "true" {
		cfg.REST.AuthEnabled = true
		cfg.REST.JWTSecret = os.Getenv("RECO_REST_JWT_SECRET")
	}
	if rl := os.Getenv("RECO_REST_RATE_LIMIT_ENABLED"); rl == "true" {
		cfg.REST.RateLimitEnabled = true
	}

	if threshold := os.Getenv("RECO_CHUNK_SIZE_THRESHOLD"); threshold != "" {
		if v, err := strconv.ParseFloat(threshold, 64); err == nil {
			cfg.Engine.ChunkSizeThreshold = v
		}
	}
	if pu := os.Getenv("RECO_PARTIAL_USERS_CHUNK_SIZE"); pu != "" {
		if v, err := strconv.Atoi(pu); err == nil {
			cfg.Engine.PartialUsersChunkSize = v
		}
	}
	if allow := os.Getenv("RECO_ALLOW_CHUNK_OPTIMIZATION"); allow == "true" {
		cfg.Engine.AllowChunkOptimization = true
	}
	if min := os.Getenv("RECO_SCORE_MIN"); min != "" {
		if v, err := strconv.ParseFloat(min, 64); err == nil {
			cfg.Engine.ScoreMin = v
		}
	}
	if max := os.Getenv("RECO_SCORE_MAX"); max != "" {
		if v, err := strconv.ParseFloat(max, 64); err == nil {
			cfg.Engine.ScoreMax = v
		}
	}

	if cacheEnabled := os.Getenv("RECO_CACHE_ENABLED"); cacheEnabled == "false" {
		cfg.Cache.Enabled = false
	}
	if capacity := os.Getenv("RECO_CACHE_CAPACITY"); capacity != "" {
		if c, err := strconv.Atoi(capacity); err == nil {
			cfg.Cache.Capacity = c
		}
	}
	if ttl := os.Getenv("RECO_CACHE_TTL"); ttl != "" {
		if t, err := time.ParseDuration(ttl); err == nil {
			cfg.Cache.TTL = t
		}
	}

	if dataDir := os.Getenv("RECO_DATA_DIR"); dataDir != "" {
		cfg.Dataset.DataDir = dataDir
	}
	if maxDatasets := os.Getenv("RECO_MAX_DATASETS"); maxDatasets != "" {
		if v, err := strconv.Atoi(maxDatasets); err == nil {
			cfg.Dataset.MaxDatasets = v
		}
	}
	if format := os.Getenv("RECO_DEFAULT_FORMAT"); format != "" {
		cfg.Dataset.DefaultFormat = format
	}

	return cfg
}

// Validate checks if the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.MaxConnections < 1 {
		return fmt.Errorf("invalid max connections: %d (must be > 0)", c.Server.MaxConnections)
	}
	if c.Server.EnableTLS {
		if c.Server.CertFile == "" || c.Server.KeyFile == "" {
			return fmt.Errorf("TLS enabled but cert or key file not specified")
		}
	}

	if c.REST.Enabled {
		if c.REST.Port < 1 || c.REST.Port > 65535 {
			return fmt.Errorf("invalid REST port: %d (must be 1-65535)", c.REST.Port)
		}
		if c.REST.AuthEnabled && c.REST.JWTSecret == "" {
			return fmt.Errorf("REST auth enabled but no JWT secret configured")
		}
	}

	if c.Engine.ChunkSizeThreshold <= 0 || c.Engine.ChunkSizeThreshold > 1 {
		return fmt.Errorf("invalid chunk size threshold: %v (must be in (0, 1])", c.Engine.ChunkSizeThreshold)
	}
	if c.Engine.PartialUsersChunkSize < 1 {
		return fmt.Errorf("invalid partial users chunk size: %d (must be > 0)", c.Engine.PartialUsersChunkSize)
	}
	if c.Engine.ScoreMax <= c.Engine.ScoreMin {
		return fmt.Errorf("invalid score range: [%v, %v] (max must exceed min)", c.Engine.ScoreMin, c.Engine.ScoreMax)
	}

	if c.Cache.Enabled && c.Cache.Capacity < 1 {
		return fmt.Errorf("invalid cache capacity: %d (must be > 0)", c.Cache.Capacity)
	}

	if c.Dataset.DataDir == "" {
		return fmt.Errorf("data directory not specified")
	}

	return nil
}

// Address returns the server address (host:port).
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
