package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"finsight-be/internal/bootstrap"
	"finsight-be/internal/config"
	"finsight-be/internal/server"
	"finsight-be/internal/tracer"
	"finsight-be/pkg/database"
)

func main() {
	// 0. Tracing (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer func() { _ = shutdownTracer(context.Background()) }()

	// 1. Load Configuration
	cfg := config.Load()

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)
	defer container.Close()

	// 4. Start Background Services
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()

	if err := container.ConsumerService.Consume(bgCtx); err != nil {
		container.Logger.Error("Main", "Change consumer failed to start", map[string]interface{}{"error": err.Error()})
	}
	if container.ActivityConsumer != nil {
		if err := container.ActivityConsumer.Start(bgCtx); err != nil {
			container.Logger.Warn("Main", "Activity consumer failed to start", map[string]interface{}{"error": err.Error()})
		}
	}

	// 5. Initialize Server
	srv := server.New(cfg, container)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		container.Logger.Info("Main", "Shutting down", nil)
		if err := srv.Shutdown(); err != nil {
			container.Logger.Error("Main", "Shutdown failed", map[string]interface{}{"error": err.Error()})
		}
	}()

	// 6. Run Server
	if err := srv.Run(); err != nil {
		log.Printf("Server stopped: %v", err)
	}
}
