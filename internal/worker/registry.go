package worker

import (
	"sync"

	"items_seller/internal/domain/entity"
)

// Сколько последних запусков держим для операторского API.
const historyLimit = 32

// Registry хранит сводки последних запусков в памяти процесса.
type Registry struct {
	mu    sync.RWMutex
	byID  map[string]entity.RunSummary
	order []string
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]entity.RunSummary)}
}

// Store сохраняет сводку, вытесняя самую старую при переполнении.
func (r *Registry) Store(summary entity.RunSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[summary.ID]; !ok {
		r.order = append(r.order, summary.ID)
	}
	r.byID[summary.ID] = summary

	for len(r.order) > historyLimit {
		delete(r.byID, r.order[0])
		r.order = r.order[1:]
	}
}

// Latest возвращает сводку последнего запуска.
func (r *Registry) Latest() (entity.RunSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.order) == 0 {
		return entity.RunSummary{}, false
	}
	return r.byID[r.order[len(r.order)-1]], true
}

// Get возвращает сводку по идентификатору запуска.
func (r *Registry) Get(id string) (entity.RunSummary, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	summary, ok := r.byID[id]
	return summary, ok
}
