package container

import (
	"lod-checker/config"
	app "lod-checker/internal/application"
	"lod-checker/internal/domain/port"
	"lod-checker/internal/infrastructure/gemini"
	"lod-checker/internal/infrastructure/imaging"
	"lod-checker/internal/infrastructure/storage"
	"lod-checker/internal/pkg/logger"
)

// historyLimit сколько отчётов хранится на одну сессию
const historyLimit = 20

type Container struct {
	Config     *config.Config
	Logger     logger.Logger
	Ingestor   *app.Ingestor
	Controller *app.Controller
}

// New собирает зависимости приложения. analyzer можно подменить в тестах;
// nil означает клиент Gemini из настроек.
func New(cfg *config.Config, log logger.Logger, analyzer port.ComplianceAnalyzer) *Container {
	if log == nil {
		log = logger.Nop()
	}
	if analyzer == nil {
		analyzer = gemini.NewClient(gemini.Options{
			APIKey:  cfg.Gemini.APIKey,
			Model:   cfg.Gemini.Model,
			BaseURL: cfg.Gemini.BaseURL,
			Timeout: cfg.Gemini.Timeout,
		}, log)
	}

	sessionRepo := storage.NewMemorySessionRepository(cfg.App.DefaultLOD)
	historyRepo := storage.NewMemoryHistoryRepository(historyLimit)

	ingestor := app.NewIngestor(imaging.NewDecoder(), cfg.App.MaxImageBytes)
	controller := app.NewController(sessionRepo, historyRepo, analyzer, ingestor, log)

	return &Container{
		Config:     cfg,
		Logger:     log,
		Ingestor:   ingestor,
		Controller: controller,
	}
}
