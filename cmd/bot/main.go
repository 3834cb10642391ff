package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"lod-checker/config"
	telegram "lod-checker/internal/api"
	"lod-checker/internal/container"
	"lod-checker/internal/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.ValidateTelegram(); err != nil {
		log.Fatal(err)
	}

	zl, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	// Собираем сервисы приложения
	appContainer := container.New(cfg, zl, nil)

	// Создаём бота
	bot, err := telegram.NewBot(cfg.Telegram.Token, appContainer.Controller, zl)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go appContainer.Controller.RunEviction(ctx, cfg.App.SessionTTL)

	zl.Infof(ctx, "bot is running, model %s", cfg.Gemini.Model)
	if err := bot.Run(ctx); err != nil {
		zl.Errorf(ctx, "bot error: %v", err)
	}
}
