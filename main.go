package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bryan-buckman/binsearch/internal/binsearch"
	"github.com/bryan-buckman/binsearch/internal/config"
	"github.com/bryan-buckman/binsearch/internal/database"
	"github.com/bryan-buckman/binsearch/internal/httpx"
	"github.com/bryan-buckman/binsearch/internal/publisher"
	"github.com/bryan-buckman/binsearch/internal/rss"
	"github.com/bryan-buckman/binsearch/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := setupLogger("info", "text")

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load config")
	}
	logger = setupLogger(cfg.LogLevel, cfg.LogFormat)

	store, err := openStore(cfg.Database)
	if err != nil {
		logger.WithError(err).Fatal("Failed to open database")
	}
	defer store.Close()
	logger.WithField("database", store.DatabaseType()).Info("Connected to database")

	client := httpx.New(cfg.HTTP.Timeout)
	provider := binsearch.New(cfg.Provider, client, logger)
	logger.WithFields(logrus.Fields{
		"provider":   provider.Name(),
		"groups":     cfg.Provider.Groups,
		"categories": cfg.Provider.Categories,
	}).Info("Provider configured")

	updater := rss.NewUpdater(cfg.Provider, rss.NewFetcher(client), store, cfg.Cache.MinInterval, logger)
	if err := updater.LoadState(); err != nil {
		logger.WithError(err).Warn("Unable to restore cache state")
	}

	if cfg.RabbitMQ.URL != "" {
		pub, err := publisher.NewRabbitMQ(cfg.RabbitMQ, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to RabbitMQ")
		}
		defer pub.Close()
		updater.SetNotifier(pub)
	}

	poller := rss.NewPoller(updater, cfg.Cache.PollInterval, logger)
	poller.Start()

	srv := server.New(cfg.Provider, provider, updater, store, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start(cfg.Server.Addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.WithField("signal", sig.String()).Info("Received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.WithError(err).Error("Server error")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("Server shutdown")
	}
	poller.Stop()
	logger.Info("Stopped")
}

func openStore(cfg config.DatabaseConfig) (database.Store, error) {
	if cfg.Driver == "postgres" {
		pg, err := database.NewPostgres(cfg.DSN)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}
	db, err := database.New(cfg.Path)
	if err != nil {
		return nil, err
	}
	return db, nil
}

func setupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger
}
