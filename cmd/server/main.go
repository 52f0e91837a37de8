package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"forage/internal/api"
	"forage/internal/config"
	"forage/internal/sim"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", os.Getenv("FORAGE_CONFIG"), "YAML config file (defaults plus env when empty)")
	flag.Parse()

	// Load .env file from parent directory
	if err := godotenv.Load("../.env"); err != nil {
		// Try current directory as fallback
		if err := godotenv.Load(".env"); err != nil {
			log.Println("💡 No .env file found, using environment variables only")
		}
	} else {
		log.Println("✅ Loaded environment from ../.env")
	}

	log.Println("🤖 ================================")
	log.Println("🤖  FORAGE - CACHE ARENA")
	log.Println("🤖 ================================")

	appConfig := config.Load()
	if *configPath != "" {
		cfg, err := config.LoadFile(*configPath)
		if err != nil {
			log.Fatalf("❌ Config: %v", err)
		}
		appConfig = cfg
		log.Printf("📄 Config loaded from %s", *configPath)
	}
	if err := appConfig.Validate(); err != nil {
		log.Fatalf("❌ Invalid config: %v", err)
	}

	arenaCfg := appConfig.Arena
	cacheCfg := appConfig.Caches
	serverCfg := appConfig.Server
	log.Printf("🗺️ Arena: %.0fx%.0f @ %.2f, %d blocks, %d robots, seed %d",
		arenaCfg.Width, arenaCfg.Height, arenaCfg.Resolution, arenaCfg.NBlocks, arenaCfg.Robots, arenaCfg.Seed)
	log.Printf("📦 Caches: dim %.2f, dynamic=%t (min %d blocks), static=%t (%d)",
		cacheCfg.Dimension, cacheCfg.Dynamic.Enable, cacheCfg.Dynamic.MinBlocks, cacheCfg.Static.Enable, cacheCfg.Static.Size)

	engine, err := sim.NewEngine(appConfig)
	if err != nil {
		log.Fatalf("❌ Engine: %v", err)
	}

	// Start event log
	if serverCfg.EventLogDir != "" {
		if err := os.MkdirAll(serverCfg.EventLogDir, 0o755); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else if path, err := engine.StartEventLog(serverCfg.EventLogDir, serverCfg.EventLogZstd); err != nil {
			log.Printf("⚠️ Event log disabled: %v", err)
		} else {
			log.Printf("📝 Event log: %s", path)
		}
	}

	// Start debug server
	if err := api.StartDebugServer(api.DefaultObservabilityConfig(serverCfg.DebugPort)); err != nil {
		log.Printf("⚠️ Debug server disabled: %v", err)
	}

	server := api.NewServer(engine, api.ServerOptions{
		Addr:        fmt.Sprintf(":%d", serverCfg.Port),
		RenderScale: api.DefaultRenderScale,
		CORSOrigins: serverCfg.CORSOrigins,
		CreateRateLimit: api.RateLimitConfig{
			RequestsPerSecond: serverCfg.CreateRate,
			Burst:             serverCfg.CreateBurst,
		},
	})

	engine.Start()

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Println("✅ Server ready! Press Ctrl+C to stop.")
	<-quit

	log.Println("🛑 Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	engine.Stop()
	engine.StopEventLog()

	st := engine.GetStats()
	log.Printf("📊 Final: t=%d, %d collected, %d caches live, %d depleted", st.Tick, st.Collected, st.Caches, st.Depleted)
	log.Println("👋 Goodbye!")
}
