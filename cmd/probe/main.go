package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/last-emo-boy/infra-core/pkg/auth"
	"github.com/last-emo-boy/infra-core/pkg/config"
	"github.com/last-emo-boy/infra-core/pkg/probe"
)

func main() {
	log.Println("🔍 Starting InfraCore Probe Poller...")

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load configuration: %v", err)
	}
	log.Printf("📋 Environment: %s", environment)

	storePath := cfg.Console.Database.Path
	if storePath == "" {
		storePath = "./data/probe.db"
	}
	store, err := probe.NewStore(storePath)
	if err != nil {
		log.Fatalf("❌ Failed to open probe store: %v", err)
	}
	defer store.Close()

	authService, err := auth.NewAuth(&cfg.Console)
	if err != nil {
		log.Fatalf("❌ Failed to initialize auth: %v", err)
	}

	pool := probe.NewDialConnPool(cfg.Probe.Resolver)
	work := probe.NewBoundedWorkerPool(workersOrDefault(cfg.Probe.Workers), queueDepthOrDefault(cfg.Probe.QueueDepth))
	poller := probe.NewPoller(pool, work)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	poller.Init(ctx)

	backends, specs, err := store.LoadAll(ctx)
	if err != nil {
		log.Fatalf("❌ Failed to load declared backends: %v", err)
	}
	for i, b := range backends {
		if err := poller.Insert(b, specs[i]); err != nil {
			log.Printf("⚠️ failed to resume polling %s: %v", b.ID, err)
		}
	}
	for _, decl := range cfg.Probe.Backends {
		spec, err := probe.NewSpec(declToRawSpec(decl))
		if err != nil {
			log.Printf("⚠️ skipping backend %s: %v", decl.ID, err)
			continue
		}
		backend := probe.NewBackend(decl.ID, decl.DisplayName, decl.Host, decl.Port)
		if err := poller.Insert(backend, spec); err != nil {
			log.Printf("⚠️ skipping backend %s: %v", decl.ID, err)
			continue
		}
		if err := store.Save(ctx, backend, declToRawSpec(decl)); err != nil {
			log.Printf("⚠️ failed to persist backend %s: %v", decl.ID, err)
		}
	}

	if environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().Unix()})
	})
	probe.NewServer(poller, store, authService).Register(r)

	port := cfg.Probe.Port
	if port == 0 {
		port = 8085
	}
	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", port),
		Handler:        r,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   30 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("🚀 Probe poller API server starting on port %d", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down probe poller...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	poller.Close()
	log.Println("✅ Probe poller shutdown complete")
}

func declToRawSpec(decl config.ProbeBackendConfig) probe.RawSpec {
	raw := probe.RawSpec{
		URL:            decl.URL,
		Request:        decl.Request,
		Window:         decl.Window,
		Threshold:      decl.Threshold,
		Initial:        decl.Initial,
		ExpectedStatus: decl.ExpectedStatus,
	}
	if decl.TimeoutMillis > 0 {
		raw.Timeout = time.Duration(decl.TimeoutMillis) * time.Millisecond
	}
	if decl.IntervalMillis > 0 {
		raw.Interval = time.Duration(decl.IntervalMillis) * time.Millisecond
	}
	return raw
}

func workersOrDefault(n int) int {
	if n <= 0 {
		return 4
	}
	return n
}

func queueDepthOrDefault(n int) int {
	if n <= 0 {
		return 64
	}
	return n
}
