package port

import (
	"context"
	"time"

	"lod-checker/internal/domain/entity"
)

// SessionRepository интерфейс хранилища сессий
type SessionRepository interface {
	// Get возвращает сессию по ID, создаёт новую если не найдена
	Get(ctx context.Context, sessionID string) (*entity.Session, error)

	// Find возвращает сессию по ID или ErrSessionNotFound
	Find(ctx context.Context, sessionID string) (*entity.Session, error)

	// Save сохраняет состояние сессии
	Save(ctx context.Context, session *entity.Session) error

	// Delete удаляет сессию
	Delete(ctx context.Context, sessionID string) error

	// ListIdle возвращает ID сессий, которые не менялись с момента before
	ListIdle(ctx context.Context, before time.Time) ([]string, error)
}
