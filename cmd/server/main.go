package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	grpcserver "github.com/arvelius/recoengine/pkg/api/grpc"
	"github.com/arvelius/recoengine/pkg/api/rest"
	"github.com/arvelius/recoengine/pkg/api/rest/middleware"
	"github.com/arvelius/recoengine/pkg/config"
	"github.com/arvelius/recoengine/pkg/dataset"
	"github.com/arvelius/recoengine/pkg/observability"
	"github.com/arvelius/recoengine/pkg/store"
)

var (
	version = "1.0.0"
	commit  = "dev"
)

func main() {
	var (
		showVersion = flag.Bool("version", false, "show version and exit")
		showHelp    = flag.Bool("help", false, "show help and exit")
		configFile  = flag.String("config", "", "path to configuration file (optional)")
		host        = flag.String("host", "", "server host (overrides config/env)")
		port        = flag.Int("port", 0, "server port (overrides config/env)")
	)
	flag.Parse()

	if *showVersion {
		fmt.Printf("Recommendation Engine Server v%s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	if *showHelp {
		showUsage()
		os.Exit(0)
	}

	printBanner()

	cfg := loadConfig(*configFile)

	if *host != "" {
		cfg.Server.Host = *host
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := observability.NewDefaultLogger()
	metrics := observability.NewMetrics()

	log.Println("Initializing recommendation engine server...")

	manager := dataset.NewManager()
	defaultStore := store.NewMemoryStore[string, string](cfg.Engine.ScoreMin, cfg.Engine.ScoreMax, nil, nil)
	if _, err := manager.CreateDataset("default", defaultStore, dataset.DefaultQuota()); err != nil {
		log.Fatalf("Failed to create default dataset: %v", err)
	}

	grpcServer, err := grpcserver.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create gRPC server: %v", err)
	}

	printStartupInfo(cfg)

	errChan := make(chan error, 2)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Println("Starting gRPC health server...")
		if err := grpcServer.Start(); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	var restServer *rest.Server
	if cfg.REST.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()

			time.Sleep(500 * time.Millisecond)

			restConfig := rest.Config{
				Host:        cfg.REST.Host,
				Port:        cfg.REST.Port,
				CORSEnabled: cfg.REST.CORSEnabled,
				CORSOrigins: cfg.REST.CORSOrigins,
				Auth: middleware.AuthConfig{
					Enabled:     cfg.REST.AuthEnabled,
					JWTSecret:   cfg.REST.JWTSecret,
					PublicPaths: cfg.REST.PublicPaths,
					AdminPaths:  cfg.REST.AdminPaths,
				},
				RateLimit: middleware.RateLimitConfig{
					Enabled:        cfg.REST.RateLimitEnabled,
					RequestsPerSec: cfg.REST.RateLimitPerSec,
					Burst:          cfg.REST.RateLimitBurst,
					PerIP:          cfg.REST.RateLimitPerIP,
					PerUser:        cfg.REST.RateLimitPerUser,
					GlobalLimit:    cfg.REST.RateLimitGlobal,
				},
				Cache: rest.CacheConfig{
					Enabled:  cfg.Cache.Enabled,
					Capacity: cfg.Cache.Capacity,
					TTL:      cfg.Cache.TTL,
				},
				ScoreMin: cfg.Engine.ScoreMin,
				ScoreMax: cfg.Engine.ScoreMax,
			}

			var err error
			restServer, err = rest.NewServer(restConfig, manager, logger, metrics)
			if err != nil {
				errChan <- fmt.Errorf("failed to create REST server: %w", err)
				return
			}

			log.Println("Starting REST API server...")
			if err := restServer.Start(); err != nil {
				errChan <- fmt.Errorf("REST server error: %w", err)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	log.Println("Servers are ready. Press Ctrl+C to stop.")
	select {
	case sig := <-sigChan:
		log.Printf("Received signal: %v", sig)
	case err := <-errChan:
		log.Printf("Server error: %v", err)
	}

	log.Println("Shutting down gracefully...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if restServer != nil {
		if err := restServer.Stop(ctx); err != nil {
			log.Printf("Error stopping REST server: %v", err)
		}
	}

	if err := grpcServer.Stop(); err != nil {
		log.Printf("Error stopping gRPC server: %v", err)
	}

	wg.Wait()

	log.Println("Servers stopped. Goodbye!")
}

func loadConfig(configFile string) *config.Config {
	// TODO: support loading from YAML/JSON config file
	if configFile != "" {
		log.Printf("Warning: config file support not yet implemented, using environment variables")
	}

	return config.LoadFromEnv()
}

func printBanner() {
	banner := `
╔═══════════════════════════════════════════════════════════╗
║                                                           ║
║   ____                                                   ║
║  |  _ \ ___  ___ ___                                     ║
║  | |_) / _ \/ __/ _ \                                    ║
║  |  _ <  __/ (_| (_) |                                   ║
║  |_| \_\___|\___\___/                                    ║
║                                                           ║
║   Collaborative-Filtering Recommendation Engine           ║
║                                                           ║
╚═══════════════════════════════════════════════════════════╝
`
	fmt.Println(banner)
	fmt.Printf("Version: %s (commit: %s)\n\n", version, commit)
}

func printStartupInfo(cfg *config.Config) {
	fmt.Println("\n╔════════════════════════════════════════════════════════╗")
	fmt.Println("║            gRPC Server Configuration                   ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Address:          %-35s ║\n", cfg.Server.Address())
	fmt.Printf("║ TLS Enabled:      %-35v ║\n", cfg.Server.EnableTLS)
	fmt.Printf("║ Max Connections:  %-35d ║\n", cfg.Server.MaxConnections)
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║            REST API Configuration                      ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Enabled:          %-35v ║\n", cfg.REST.Enabled)
	if cfg.REST.Enabled {
		fmt.Printf("║ Address:          %-35s ║\n", fmt.Sprintf("%s:%d", cfg.REST.Host, cfg.REST.Port))
		fmt.Printf("║ Auth Enabled:     %-35v ║\n", cfg.REST.AuthEnabled)
		fmt.Printf("║ CORS Enabled:     %-35v ║\n", cfg.REST.CORSEnabled)
		fmt.Printf("║ Rate Limiting:    %-35v ║\n", cfg.REST.RateLimitEnabled)
		if cfg.REST.RateLimitEnabled {
			fmt.Printf("║ Rate:             %-35s ║\n", fmt.Sprintf("%.1f req/s (burst: %d)", cfg.REST.RateLimitPerSec, cfg.REST.RateLimitBurst))
		}
		fmt.Printf("║ API Docs:         %-35s ║\n", fmt.Sprintf("http://%s:%d/docs", cfg.REST.Host, cfg.REST.Port))
	}
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║               Engine Configuration                     ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Chunk Size Threshold:  %-30v ║\n", cfg.Engine.ChunkSizeThreshold)
	fmt.Printf("║ Partial Users Chunk:   %-30d ║\n", cfg.Engine.PartialUsersChunkSize)
	fmt.Printf("║ Chunk Optimization:    %-30v ║\n", cfg.Engine.AllowChunkOptimization)
	fmt.Printf("║ Score Range:           %-30s ║\n", fmt.Sprintf("[%v, %v]", cfg.Engine.ScoreMin, cfg.Engine.ScoreMax))
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Println("║               Cache Configuration                      ║")
	fmt.Println("╠════════════════════════════════════════════════════════╣")
	fmt.Printf("║ Enabled:          %-35v ║\n", cfg.Cache.Enabled)
	fmt.Printf("║ Capacity:         %-35d ║\n", cfg.Cache.Capacity)
	fmt.Printf("║ TTL:              %-35s ║\n", cfg.Cache.TTL)
	fmt.Println("╚════════════════════════════════════════════════════════╝")
	fmt.Println()
}

func showUsage() {
	fmt.Println("Recommendation Engine Server - collaborative-filtering rating prediction")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  recoengine-server [options]")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -help             Show this help message")
	fmt.Println("  -version          Show version information")
	fmt.Println("  -config PATH      Configuration file path (not read; settings come from environment variables)")
	fmt.Println("  -host HOST        Server host (default: 0.0.0.0)")
	fmt.Println("  -port PORT        Server port (default: 8080)")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  RECO_HOST                       Server host")
	fmt.Println("  RECO_PORT                       Server port")
	fmt.Println("  RECO_MAX_CONNECTIONS            Max concurrent connections")
	fmt.Println("  RECO_REQUEST_TIMEOUT            Request timeout (e.g., 30s)")
	fmt.Println("  RECO_ENABLE_TLS                 Enable TLS (true/false)")
	fmt.Println("  RECO_REST_ENABLED               Enable REST API (true/false)")
	fmt.Println("  RECO_REST_PORT                  REST API port")
	fmt.Println("  RECO_CHUNK_SIZE_THRESHOLD       Chunked matrix size optimization target")
	fmt.Println("  RECO_PARTIAL_USERS_CHUNK_SIZE   Mean-cache top-up batch size")
	fmt.Println("  RECO_SCORE_MIN                  Minimum rating value")
	fmt.Println("  RECO_SCORE_MAX                  Maximum rating value")
	fmt.Println("  RECO_CACHE_ENABLED              Enable prediction cache (true/false)")
	fmt.Println("  RECO_CACHE_CAPACITY             Cache capacity")
	fmt.Println("  RECO_CACHE_TTL                  Cache TTL (e.g., 5m)")
	fmt.Println("  RECO_DATA_DIR                   Data directory path")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  # Start with default configuration")
	fmt.Println("  recoengine-server")
	fmt.Println()
	fmt.Println("  # Start on custom port")
	fmt.Println("  recoengine-server -port 9090")
	fmt.Println()
	fmt.Println("  # Start with environment variables")
	fmt.Println("  RECO_PORT=9090 RECO_SCORE_MAX=10 recoengine-server")
	fmt.Println()
	fmt.Println()
}
