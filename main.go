package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stacksave-sync/chain"
	"stacksave-sync/config"
	"stacksave-sync/handlers"
	"stacksave-sync/middleware"
	"stacksave-sync/services"
	"stacksave-sync/store"
	"stacksave-sync/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("❌ Invalid configuration:\n%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mirror, err := openMirror(cfg)
	if err != nil {
		log.Fatal("failed to open mirror store:", err)
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, 30*time.Second)
	client, err := chain.Dial(dialCtx, cfg.ChainWSURL, cfg.Contract)
	cancelDial()
	if err != nil {
		log.Fatal("failed to connect to chain:", err)
	}
	defer client.Close()

	streaks := services.NewStreakCalculator(mirror)
	engine := services.NewReconciliationEngine(client, mirror, streaks)
	manualSync := services.NewManualSyncService(client, mirror)

	supervisor := workers.NewSubscriptionSupervisor(client, engine, workers.SupervisorConfig{
		MaxAttempts: cfg.ReconnectMaxAttempts,
		BaseDelay:   cfg.ReconnectBaseDelay,
	})
	supervisorDone := make(chan struct{})
	go func() {
		defer close(supervisorDone)
		supervisor.Run(ctx)
	}()
	if err := supervisor.StartListening(ctx); err != nil {
		// The supervisor keeps retrying on its own.
		log.Printf("⚠️  Initial subscription failed: %v", err)
	}

	if _, err := workers.StartMaintenanceJobs(ctx, mirror, manualSync, streaks, cfg.ResyncInterval); err != nil {
		log.Fatal("failed to start maintenance scheduler:", err)
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed
	app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOriginsString(),
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	handlers.SetupSyncRoutes(app, supervisor, manualSync)

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%d", cfg.Port)
	log.Printf("✅ Mirror store: %s", cfg.StoreDriver)
	log.Printf("✅ Watching StackSave contract %s", cfg.Contract)
	if cfg.ResyncInterval > 0 {
		log.Printf("✅ Active goal resync running (every %s)", cfg.ResyncInterval)
	}
	log.Printf("✅ CORS configured for origins: %s", cfg.AllowedOriginsString())

	<-ctx.Done()
	log.Println("Shutting down server...")

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	<-supervisorDone
}

func openMirror(cfg *config.Config) (store.MirrorStore, error) {
	if cfg.StoreDriver == "memory" {
		log.Println("⚠️  Using in-memory mirror store, data is lost on restart")
		return store.NewMemoryStore(), nil
	}

	db, err := store.OpenDatabase(cfg.StoreDriver, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(db); err != nil {
		return nil, err
	}
	return store.NewGormStore(db), nil
}
