package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"schemacanvas-backend/application/ports"
	"schemacanvas-backend/pkg/errors"
)

// VersionRepository is an in-memory, append-only snapshot store. Snapshot ids
// are ULIDs, so sorting by id descending yields newest-first.
type VersionRepository struct {
	mu        sync.RWMutex
	byProject map[string][]*ports.VersionSnapshot
}

// NewVersionRepository creates an empty in-memory version repository.
func NewVersionRepository() *VersionRepository {
	return &VersionRepository{
		byProject: make(map[string][]*ports.VersionSnapshot),
	}
}

// Append stores a snapshot. Snapshots are never mutated or deleted.
func (r *VersionRepository) Append(ctx context.Context, snapshot *ports.VersionSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *snapshot
	copied.Content = append([]byte(nil), snapshot.Content...)
	r.byProject[snapshot.ProjectID] = append(r.byProject[snapshot.ProjectID], &copied)
	return nil
}

// ListByProject returns snapshots newest-first with 1-based pagination, plus
// the total count.
func (r *VersionRepository) ListByProject(ctx context.Context, projectID string, page, limit int) ([]*ports.VersionSnapshot, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := r.byProject[projectID]
	sorted := make([]*ports.VersionSnapshot, len(snaps))
	copy(sorted, snaps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID > sorted[j].ID })

	total := len(sorted)
	start := (page - 1) * limit
	if start >= total {
		return []*ports.VersionSnapshot{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}

	out := make([]*ports.VersionSnapshot, 0, end-start)
	for _, s := range sorted[start:end] {
		copied := *s
		copied.Content = append([]byte(nil), s.Content...)
		out = append(out, &copied)
	}
	return out, total, nil
}

// GetByID returns one snapshot.
func (r *VersionRepository) GetByID(ctx context.Context, projectID, versionID string) (*ports.VersionSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.byProject[projectID] {
		if s.ID == versionID {
			copied := *s
			copied.Content = append([]byte(nil), s.Content...)
			return &copied, nil
		}
	}
	return nil, errors.NewNotFoundError("version")
}

// LatestCreatedAt returns the creation time of the most recent snapshot, or
// the zero time when none exists.
func (r *VersionRepository) LatestCreatedAt(ctx context.Context, projectID string) (time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest time.Time
	for _, s := range r.byProject[projectID] {
		if s.CreatedAt.After(latest) {
			latest = s.CreatedAt
		}
	}
	return latest, nil
}

// Count returns the number of snapshots for a project. Test helper.
func (r *VersionRepository) Count(projectID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byProject[projectID])
}
