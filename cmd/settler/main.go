// Command settler runs the numbers-game bet settlement engine.
// It stops gracefully on SIGINT/SIGTERM.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"serotonyl.ru/settlement-engine/internal/app"
	"serotonyl.ru/settlement-engine/internal/config"
)

func main() {
	setupLogging()

	log.Info("=== settler starting ===")

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}

	if level, err := log.ParseLevel(cfg.AppLogLevel); err == nil {
		log.SetLevel(level)
	}
	if cfg.AppEnv == "production" {
		log.SetFormatter(&log.JSONFormatter{})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("initialize application")
	}
	defer application.Close()

	log.Info("=== settler ready ===")

	if err := application.Run(ctx); err != nil {
		log.WithError(err).Error("settler stopped with error")
		application.Close()
		os.Exit(1)
	}
	log.Info("=== settler stopped ===")
}

func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.DebugLevel)
}
