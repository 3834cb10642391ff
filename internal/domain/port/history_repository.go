package port

import (
	"context"

	"lod-checker/internal/domain/entity"
)

// HistoryRepository хранилище завершённых проверок
type HistoryRepository interface {
	Append(ctx context.Context, item entity.HistoryItem) error

	// List возвращает историю сессии, новые записи первыми
	List(ctx context.Context, sessionID string) ([]entity.HistoryItem, error)

	// Delete удаляет всю историю сессии
	Delete(ctx context.Context, sessionID string) error
}
