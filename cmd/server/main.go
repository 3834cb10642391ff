package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"lod-checker/config"
	"lod-checker/internal/container"
	"lod-checker/internal/pkg/logger"
	"lod-checker/internal/server"
)

func main() {
	// 1. Загружаем конфиг
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := cfg.ValidateGemini(); err != nil {
		log.Fatalf("Config validation failed: %v", err)
	}

	zl, err := logger.NewZapLogger(cfg.App.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	if cfg.App.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 2. Собираем зависимости и роутер
	appContainer := container.New(cfg, zl, nil)
	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: server.NewRouter(appContainer.Controller, zl),
	}

	ctx := context.Background()

	// Простаивающие сессии удаляются вместе с изображениями и историей
	evictCtx, stopEviction := context.WithCancel(ctx)
	defer stopEviction()
	go appContainer.Controller.RunEviction(evictCtx, cfg.App.SessionTTL)

	// 3. Запускаем HTTP Server
	serverErrChan := make(chan error, 1)
	go func() {
		zl.Infof(ctx, "starting HTTP server on %s", cfg.HTTP.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- err
		}
	}()

	// 4. Корректная остановка
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		zl.Infof(ctx, "received shutdown signal, shutting down")
	case err := <-serverErrChan:
		zl.Errorf(ctx, "HTTP server error: %v", err)
		return
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Errorf(ctx, "HTTP server shutdown error: %v", err)
		return
	}
	zl.Infof(ctx, "HTTP server stopped")
}
