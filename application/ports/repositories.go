// Package ports declares the persistence interfaces the application layer
// depends on. Infrastructure provides DynamoDB and in-memory implementations.
package ports

import (
	"context"
	"time"
)

// Role is an actor's role on a project.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// CanEdit reports whether the role may write diagram content.
func (r Role) CanEdit() bool {
	return r == RoleOwner || r == RoleEditor
}

// ProjectRecord is the durably stored project row: the canonical diagram
// content plus the version counter that backs optimistic concurrency.
type ProjectRecord struct {
	ID            string
	OwnerID       string
	TeamID        string
	Name          string
	Content       []byte
	ContentHash   string
	Version       int
	Collaborators map[string]Role
	TeamMembers   map[string]Role
	CreatedAt     time.Time
	UpdatedAt     time.Time
	UpdatedBy     string
}

// Clone returns a deep copy so callers cannot alias stored state.
func (r *ProjectRecord) Clone() *ProjectRecord {
	out := *r
	out.Content = append([]byte(nil), r.Content...)
	out.Collaborators = cloneRoles(r.Collaborators)
	out.TeamMembers = cloneRoles(r.TeamMembers)
	return &out
}

func cloneRoles(in map[string]Role) map[string]Role {
	if in == nil {
		return nil
	}
	out := make(map[string]Role, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// VersionSnapshot is an immutable historical copy of diagram content.
// Snapshot ids are ULIDs, so lexicographic order is creation order.
type VersionSnapshot struct {
	ID          string
	ProjectID   string
	Content     []byte
	ContentHash string
	Description string
	CreatedAt   time.Time
	CreatedBy   string
}

// Snapshot descriptions. These are the only two values normal operation
// writes.
const (
	DescriptionAutoSave     = "Auto-save"
	DescriptionManualBackup = "Manual Backup"
)

// ContentUpdate is the payload of a conditional project overwrite.
type ContentUpdate struct {
	Content     []byte
	ContentHash string
	UpdatedBy   string
}

// ProjectRepository stores project records. Update is the single
// concurrency-control primitive: it overwrites content and increments the
// version by exactly one, conditional on the stored version still matching
// expectedVersion, and returns a VersionConflict error otherwise.
type ProjectRepository interface {
	GetByID(ctx context.Context, projectID string) (*ProjectRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*ProjectRecord, error)
	Create(ctx context.Context, record *ProjectRecord) error
	Update(ctx context.Context, projectID string, expectedVersion int, update ContentUpdate) (*ProjectRecord, error)
}

// VersionRepository is the append-only snapshot history.
type VersionRepository interface {
	Append(ctx context.Context, snapshot *VersionSnapshot) error
	// ListByProject returns snapshots newest-first. Page is 1-based.
	ListByProject(ctx context.Context, projectID string, page, limit int) ([]*VersionSnapshot, int, error)
	GetByID(ctx context.Context, projectID, versionID string) (*VersionSnapshot, error)
	// LatestCreatedAt returns the creation time of the most recent snapshot,
	// or the zero time when no snapshot exists yet.
	LatestCreatedAt(ctx context.Context, projectID string) (time.Time, error)
}

// AuditEntry records a sensitive operation, currently version restores.
type AuditEntry struct {
	ID        string
	ProjectID string
	ActorID   string
	Action    string
	Detail    string
	At        time.Time
}

// AuditLog stores audit entries.
type AuditLog interface {
	Record(ctx context.Context, entry *AuditEntry) error
}

// ProjectListCache is the read-side cache keyed by owner whose entries must
// be invalidated after every successful save.
type ProjectListCache interface {
	Get(ctx context.Context, ownerID string) ([]*ProjectRecord, bool)
	Set(ctx context.Context, ownerID string, records []*ProjectRecord)
	Invalidate(ctx context.Context, ownerID string) error
}

// IdempotencyStore remembers save responses by client-supplied key so a
// retried request within the replay window returns the original response
// instead of re-executing.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, response []byte, ttl time.Duration) error
}
