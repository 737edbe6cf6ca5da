// Command loan-engine serves the loan calculation preview API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/finbook/loan-engine/internal/cache"
	"github.com/finbook/loan-engine/internal/config"
	"github.com/finbook/loan-engine/internal/server"
	"github.com/finbook/loan-engine/pkg/constants"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	flag.Parse()

	// Optional local overrides; absence of the file is not an error.
	_ = godotenv.Load()

	conf, err := config.LoadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		return
	}

	logger, err := conf.Logging.BuildLogger(*logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Validate configuration and display any warnings
	warnings := conf.ValidateConfiguration()
	for _, warning := range warnings {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	paymentCache := buildCache(conf.Cache, logger)

	srv := &http.Server{
		Addr:         conf.Server.Address,
		Handler:      server.NewHandler(logger, conf.Server.MaxBodyBytes, version, paymentCache),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting preview API",
			zap.String("op", "main"),
			zap.String("address", conf.Server.Address),
			zap.String("version", version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed",
				zap.String("op", "main"),
				zap.Error(err),
			)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down",
		zap.String("op", "main"),
	)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown did not complete cleanly",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
}

// buildCache selects the payment cache backend. A configured redis address
// selects redis; otherwise the process-local cache serves.
func buildCache(conf config.CacheConfig, logger *zap.Logger) cache.Cache {
	if conf.RedisAddress == "" {
		return cache.NewMemoryCache(conf.TTL)
	}

	redisCache := cache.NewRedisCache(conf.RedisAddress, conf.TTL)
	pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := redisCache.Ping(pingCtx); err != nil {
		logger.Warn("redis unreachable, falling back to in-memory cache",
			zap.String("op", "main.buildCache"),
			zap.String("address", conf.RedisAddress),
			zap.Error(err),
		)
		_ = redisCache.Close()
		return cache.NewMemoryCache(conf.TTL)
	}

	logger.Info("using redis payment cache",
		zap.String("op", "main.buildCache"),
		zap.String("address", conf.RedisAddress),
	)
	return redisCache
}
