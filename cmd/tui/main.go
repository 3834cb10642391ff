package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"lod-checker/config"
	"lod-checker/internal/container"
	"lod-checker/internal/pkg/logger"
	"lod-checker/internal/tui"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.ValidateGemini(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// терминал занят интерфейсом, лог пишем в файл
	logPath := filepath.Join(os.TempDir(), "lod-checker-tui.log")
	zl, err := logger.NewZapLogger(cfg.App.LogLevel, logPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer zl.Sync()

	appContainer := container.New(cfg, zl, nil)
	if err := tui.Start(context.Background(), appContainer.Controller); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
