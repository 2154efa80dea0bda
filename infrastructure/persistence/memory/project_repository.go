// Package memory holds in-memory repository implementations backing tests
// and local development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"schemacanvas-backend/application/ports"
	"schemacanvas-backend/pkg/errors"
)

// ProjectRepository is a mutex-guarded in-memory ports.ProjectRepository.
type ProjectRepository struct {
	mu    sync.RWMutex
	items map[string]*ports.ProjectRecord
}

// NewProjectRepository creates an empty in-memory project repository.
func NewProjectRepository() *ProjectRepository {
	return &ProjectRepository{
		items: make(map[string]*ports.ProjectRecord),
	}
}

// GetByID returns a deep copy of the stored record.
func (r *ProjectRepository) GetByID(ctx context.Context, projectID string) (*ports.ProjectRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.items[projectID]
	if !ok {
		return nil, errors.NewNotFoundError("project")
	}
	return rec.Clone(), nil
}

// ListByOwner returns the owner's projects sorted by id.
func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]*ports.ProjectRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*ports.ProjectRecord
	for _, rec := range r.items {
		if rec.OwnerID == ownerID {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Create stores a new project record.
func (r *ProjectRepository) Create(ctx context.Context, record *ports.ProjectRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.items[record.ID]; exists {
		return errors.NewValidationError("project already exists")
	}
	r.items[record.ID] = record.Clone()
	return nil
}

// Update overwrites content and increments the version by exactly one,
// conditional on the stored version matching expectedVersion. The check and
// the write happen under one lock, mirroring the conditional write of the
// durable store.
func (r *ProjectRepository) Update(ctx context.Context, projectID string, expectedVersion int, update ports.ContentUpdate) (*ports.ProjectRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.items[projectID]
	if !ok {
		return nil, errors.NewNotFoundError("project")
	}
	if rec.Version != expectedVersion {
		return nil, errors.NewVersionConflictError(expectedVersion, rec.Version)
	}
	rec.Content = append([]byte(nil), update.Content...)
	rec.ContentHash = update.ContentHash
	rec.Version++
	rec.UpdatedBy = update.UpdatedBy
	rec.UpdatedAt = time.Now()
	return rec.Clone(), nil
}
