package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dontdude/scanprint/internal/config"
	"github.com/dontdude/scanprint/internal/observability"
	"github.com/dontdude/scanprint/internal/platform/queue"
	"github.com/dontdude/scanprint/internal/platform/web"
)

func main() {
	configPath := flag.String("config", "scanprint.yaml", "path to the YAML config file")
	envFile := flag.String("env", ".env", "path to an optional .env file")
	flag.Parse()

	// 1. Load configuration and initialize logger
	cfg, err := config.Resolve(*configPath, *envFile)
	if err != nil {
		observability.GetLogger().WithError(err).Fatal("Invalid configuration")
	}
	observability.InitLogger(cfg.Logging.Level, cfg.Logging.Format)
	log := observability.GetLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Initialize the job queue, with Redis fan-out when configured
	metrics := observability.NewBrokerMetrics()
	opts := []queue.Option{
		queue.WithPush(cfg.Server.PushEnabled),
		queue.WithSubscriberBuffer(cfg.Server.SubscriberBuffer),
		queue.WithMetrics(metrics),
	}
	var fanout *queue.RedisFanout
	if cfg.Server.RedisAddr != "" {
		fanout, err = queue.NewRedisFanout(cfg.Server.RedisAddr, cfg.Server.RedisChannel)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer fanout.Close()
		opts = append(opts, queue.WithFanout(fanout))
	}
	q := queue.NewMemoryQueue(opts...)
	if fanout != nil {
		go func() {
			if err := q.Run(ctx); err != nil && ctx.Err() == nil {
				log.WithError(err).Error("Fan-out relay stopped")
			}
		}()
	}

	// 3. Setup rate limiter, push hub and router
	limiter := web.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	defer limiter.Stop()
	hub := web.NewHub(q)

	handler := web.NewRouter(web.RouterConfig{
		Queue:            q,
		Hub:              hub,
		Limiter:          limiter,
		MaxPayloadLength: cfg.Server.MaxPayloadLength,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 4. Serve, over TLS when both certificate files are present
	tls := fileExists(cfg.Server.TLSCertFile) && fileExists(cfg.Server.TLSKeyFile)
	go func() {
		var err error
		if tls {
			log.WithField("addr", cfg.Server.Addr).Info("Relay broker starting (HTTPS)")
			err = srv.ListenAndServeTLS(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile)
		} else {
			log.WithField("addr", cfg.Server.Addr).Warn("TLS certificate not found, relay broker starting over plain HTTP; phone cameras require HTTPS")
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	// 5. Graceful shutdown
	<-ctx.Done()
	log.Info("Shutting down relay broker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
	log.WithField("stats", metrics.Snapshot()).Info("Relay broker stopped")
}

func fileExists(path string) bool {
	if path == "" {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
