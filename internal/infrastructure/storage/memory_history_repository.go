package storage

import (
	"context"
	"sync"

	"lod-checker/internal/domain/entity"
	"lod-checker/internal/domain/port"
)

// MemoryHistoryRepository хранит последние проверки каждой сессии в памяти
type MemoryHistoryRepository struct {
	mu    sync.RWMutex
	items map[string][]entity.HistoryItem
	limit int
}

// NewMemoryHistoryRepository создаёт хранилище; при limit <= 0 без ограничения
func NewMemoryHistoryRepository(limit int) *MemoryHistoryRepository {
	return &MemoryHistoryRepository{
		items: make(map[string][]entity.HistoryItem),
		limit: limit,
	}
}

// Append добавляет запись, самые старые вытесняются при превышении лимита
func (r *MemoryHistoryRepository) Append(ctx context.Context, item entity.HistoryItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := append(r.items[item.SessionID], item)
	if r.limit > 0 && len(list) > r.limit {
		list = list[len(list)-r.limit:]
	}
	r.items[item.SessionID] = list

	return nil
}

// List возвращает копию истории, новые записи первыми
func (r *MemoryHistoryRepository) List(ctx context.Context, sessionID string) ([]entity.HistoryItem, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.items[sessionID]
	out := make([]entity.HistoryItem, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		out = append(out, list[i])
	}
	return out, nil
}

// Delete удаляет историю сессии
func (r *MemoryHistoryRepository) Delete(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	delete(r.items, sessionID)
	r.mu.Unlock()

	return nil
}

var _ port.HistoryRepository = (*MemoryHistoryRepository)(nil)
