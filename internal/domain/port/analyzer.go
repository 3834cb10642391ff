package port

import (
	"context"

	"lod-checker/internal/domain/entity"
)

// ComplianceAnalyzer внешний сервис, оценивающий элемент модели по целевому LOD
type ComplianceAnalyzer interface {
	// Analyze отправляет изображение и настройки и возвращает разобранный отчёт.
	// Частичный результат не возвращается никогда.
	Analyze(ctx context.Context, req entity.AnalysisRequest) (*entity.AnalysisResult, error)
}
