// Command tamsstore starts the storage engine's process: it loads
// configuration, wires a store.Manager, and serves an operational
// admin/health/metrics HTTP surface. It does not serve the TAMS REST API
// itself (see spec's Non-goals) - only the surface an operator or
// orchestrator needs to tell the process is alive and healthy.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jesseVast/tamscore/internal/store"
	"github.com/jesseVast/tamscore/pkg/config"
	"github.com/jesseVast/tamscore/pkg/logger"
)

func main() {
	addr := flag.String("addr", "", "admin HTTP listen address (defaults to :8090)")
	flag.Parse()

	settings, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: settings.LogLevel, Format: settings.LogFormat, Output: settings.LogOutput})

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mgr, err := store.New(rootCtx, settings)
	if err != nil {
		log.Fatalf("initialize store manager: %v", err)
	}
	defer func() {
		if err := mgr.Close(); err != nil {
			log.Errorf("close store manager: %v", err)
		}
	}()

	listenAddr := *addr
	if listenAddr == "" {
		listenAddr = ":8090"
	}

	srv := &http.Server{
		Addr:    listenAddr,
		Handler: newAdminRouter(mgr, log),
	}

	go func() {
		log.Infof("admin surface listening on %s", listenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("admin server: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Infof("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("admin server shutdown: %v", err)
	}
}

// newAdminRouter builds the gin router exposing process health, Prometheus
// metrics, and read-only introspection into the cache/performance/endpoint
// subsystems - the operational surface an orchestrator or operator needs,
// distinct from the TAMS REST API that consumes store.Manager's fields.
func newAdminRouter(mgr *store.Manager, log *logger.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/readyz", func(c *gin.Context) {
		if !mgr.Connection.IsConnected() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "reason": "engine not connected"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(mgr.Metrics.Handler()))

	r.GET("/admin/performance", func(c *gin.Context) {
		c.JSON(http.StatusOK, mgr.Perf.GetPerformanceSummary(15*time.Minute))
	})

	r.GET("/admin/endpoints", func(c *gin.Context) {
		c.JSON(http.StatusOK, mgr.Connection.Pool().GetStats())
	})

	r.GET("/admin/cache", func(c *gin.Context) {
		c.JSON(http.StatusOK, mgr.Cache.GetStats())
	})

	return r
}
