package apps

import (
	"context"
	"sync"
)

type memoryRepository struct {
	mu      sync.RWMutex
	storage map[string]App
}

// NewMemoryRepository constructs an in-memory repository for tests and development.
func NewMemoryRepository() Repository {
	return &memoryRepository{storage: make(map[string]App)}
}

func (r *memoryRepository) Upsert(_ context.Context, app App) (App, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.storage[app.PackageName]; ok {
		app.ID = existing.ID
		app.CreatedAt = existing.CreatedAt
	} else {
		app.CreatedAt = app.UpdatedAt
	}
	app.Fingerprints = append([]string(nil), app.Fingerprints...)
	r.storage[app.PackageName] = app
	return app, nil
}

func (r *memoryRepository) Get(_ context.Context, packageName string) (App, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	app, ok := r.storage[packageName]
	if !ok {
		return App{}, ErrNotFound
	}
	app.Fingerprints = append([]string(nil), app.Fingerprints...)
	return app, nil
}
