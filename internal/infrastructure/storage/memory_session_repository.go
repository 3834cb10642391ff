package storage

import (
	"context"
	"sync"
	"time"

	"lod-checker/internal/domain/entity"
	"lod-checker/internal/domain/port"
	"lod-checker/internal/pkg/errorx"
)

// MemorySessionRepository in-memory хранилище сессий
type MemorySessionRepository struct {
	mu         sync.RWMutex
	sessions   map[string]*entity.Session
	defaultLOD entity.LODLevel
}

// NewMemorySessionRepository создаёт новое in-memory хранилище
func NewMemorySessionRepository(defaultLOD entity.LODLevel) *MemorySessionRepository {
	return &MemorySessionRepository{
		sessions:   make(map[string]*entity.Session),
		defaultLOD: defaultLOD,
	}
}

// Get возвращает сессию по ID, создаёт новую если не найдена
func (r *MemorySessionRepository) Get(ctx context.Context, sessionID string) (*entity.Session, error) {
	r.mu.RLock()
	session, exists := r.sessions[sessionID]
	r.mu.RUnlock()

	if exists {
		return session, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Пока ждали блокировку, сессию мог создать другой вызов
	if session, exists = r.sessions[sessionID]; exists {
		return session, nil
	}
	session = entity.NewSession(sessionID, r.defaultLOD)
	r.sessions[sessionID] = session

	return session, nil
}

// Find возвращает сессию только если она существует
func (r *MemorySessionRepository) Find(ctx context.Context, sessionID string) (*entity.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	session, exists := r.sessions[sessionID]
	if !exists {
		return nil, errorx.ErrSessionNotFound
	}
	return session, nil
}

// Save сохраняет состояние сессии
func (r *MemorySessionRepository) Save(ctx context.Context, session *entity.Session) error {
	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()

	return nil
}

// Delete удаляет сессию
func (r *MemorySessionRepository) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	delete(r.sessions, sessionID)
	r.mu.Unlock()

	return nil
}

// ListIdle возвращает сессии без изменений с момента before.
// Сессии в Analyzing не возвращаются: их обновит ответ сервиса.
func (r *MemorySessionRepository) ListIdle(ctx context.Context, before time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, session := range r.sessions {
		if session.State != entity.StateAnalyzing && session.UpdatedAt.Before(before) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Проверка реализации интерфейса
var _ port.SessionRepository = (*MemorySessionRepository)(nil)
