// Package services holds the authoritative persistence path: validation,
// authorization, optimistic concurrency, and the auto-snapshot policy.
package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"schemacanvas-backend/application/ports"
	"schemacanvas-backend/domain/diagram"
	"schemacanvas-backend/pkg/errors"
	"schemacanvas-backend/pkg/observability"
)

// Policy defaults. SnapshotWindow bounds snapshot volume to at most one per
// window of continuous editing; MaxContentBytes is the hard content ceiling.
const (
	DefaultSnapshotWindow  = 5 * time.Minute
	DefaultMaxContentBytes = 5 * 1024 * 1024
	IdempotencyWindow      = 24 * time.Hour
)

// SaveOptions tunes one SaveDiagram call.
type SaveOptions struct {
	// ExpectedVersion enables optimistic concurrency: the save fails with
	// VersionConflict when it differs from the stored version. Nil tolerates
	// any stored version (last-writer-wins).
	ExpectedVersion *int
	// ForceSnapshot writes a snapshot of the pre-save content regardless of
	// the snapshot window. Restores set it so the overwritten state is never
	// lost.
	ForceSnapshot bool
	// Description overrides the snapshot description.
	Description string
	// IdempotencyKey, when set, replays the original response for a retried
	// request within the idempotency window.
	IdempotencyKey string
}

// DiagramService is the durable write path for diagram content. It fails
// closed: invalid content is rejected outright, since this is the durability
// boundary.
type DiagramService struct {
	projects    ports.ProjectRepository
	versions    ports.VersionRepository
	audit       ports.AuditLog
	cache       ports.ProjectListCache
	idempotency ports.IdempotencyStore
	metrics     *observability.Collector
	logger      *zap.Logger

	limitsMu        sync.RWMutex
	snapshotWindow  time.Duration
	maxContentBytes int
	now             func() time.Time

	ulidMu  sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// newULID mints a snapshot id from the service clock. The monotonic entropy
// keeps ids strictly increasing even within one millisecond, so lexicographic
// order is always creation order.
func (s *DiagramService) newULID() string {
	s.ulidMu.Lock()
	defer s.ulidMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(s.now()), s.entropy).String()
}

// UpdateLimits swaps the runtime-tunable limits. Zero values leave the
// current setting in place.
func (s *DiagramService) UpdateLimits(snapshotWindow time.Duration, maxContentBytes int) {
	s.limitsMu.Lock()
	defer s.limitsMu.Unlock()
	if snapshotWindow > 0 {
		s.snapshotWindow = snapshotWindow
	}
	if maxContentBytes > 0 {
		s.maxContentBytes = maxContentBytes
	}
}

func (s *DiagramService) limits() (time.Duration, int) {
	s.limitsMu.RLock()
	defer s.limitsMu.RUnlock()
	return s.snapshotWindow, s.maxContentBytes
}

// ServiceOption configures a DiagramService.
type ServiceOption func(*DiagramService)

// WithSnapshotWindow overrides the auto-snapshot window.
func WithSnapshotWindow(w time.Duration) ServiceOption {
	return func(s *DiagramService) { s.snapshotWindow = w }
}

// WithMaxContentBytes overrides the content size ceiling.
func WithMaxContentBytes(n int) ServiceOption {
	return func(s *DiagramService) { s.maxContentBytes = n }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *DiagramService) { s.now = now }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(c *observability.Collector) ServiceOption {
	return func(s *DiagramService) { s.metrics = c }
}

// NewDiagramService wires the persistence service.
func NewDiagramService(
	projects ports.ProjectRepository,
	versions ports.VersionRepository,
	audit ports.AuditLog,
	cache ports.ProjectListCache,
	idempotency ports.IdempotencyStore,
	logger *zap.Logger,
	opts ...ServiceOption,
) *DiagramService {
	s := &DiagramService{
		projects:        projects,
		versions:        versions,
		audit:           audit,
		cache:           cache,
		idempotency:     idempotency,
		logger:          logger,
		snapshotWindow:  DefaultSnapshotWindow,
		maxContentBytes: DefaultMaxContentBytes,
		now:             time.Now,
		entropy:         ulid.Monotonic(rand.Reader, 0),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetProject returns the project record and the actor's role on it.
func (s *DiagramService) GetProject(ctx context.Context, projectID, actorID string) (*ports.ProjectRecord, ports.Role, error) {
	rec, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, "", err
	}
	role, ok := roleOf(rec, actorID)
	if !ok {
		return nil, "", errors.NewForbiddenError("no access to project")
	}
	return rec, role, nil
}

// AuthorizeRoom reports whether an actor may join the project's sync room.
// Any role on the project suffices; viewers receive events read-only.
func (s *DiagramService) AuthorizeRoom(ctx context.Context, projectID, actorID string) error {
	_, _, err := s.GetProject(ctx, projectID, actorID)
	return err
}

// SaveDiagram is the authoritative save: fetch, version-check, authorize,
// validate, snapshot per policy, atomically overwrite with a version
// increment of exactly one, and invalidate the owner's listing cache.
func (s *DiagramService) SaveDiagram(ctx context.Context, projectID string, content []byte, actorID string, opts SaveOptions) (*ports.ProjectRecord, error) {
	// The client key is namespaced by project and actor: a replay may only
	// return a response the same actor already earned on the same project,
	// never skip the authorization below for someone else's key.
	scopedKey := ""
	if opts.IdempotencyKey != "" {
		scopedKey = projectID + "#" + actorID + "#" + opts.IdempotencyKey
	}
	if scopedKey != "" && s.idempotency != nil {
		if cached, ok := s.idempotency.Get(ctx, scopedKey); ok {
			var rec ports.ProjectRecord
			if err := json.Unmarshal(cached, &rec); err == nil {
				s.logger.Debug("replayed idempotent save",
					zap.String("projectID", projectID),
					zap.String("key", opts.IdempotencyKey),
				)
				return &rec, nil
			}
		}
	}

	rec, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		s.countSave("not_found")
		return nil, err
	}

	if opts.ExpectedVersion != nil && *opts.ExpectedVersion != rec.Version {
		s.countSave("conflict")
		return nil, errors.NewVersionConflictError(*opts.ExpectedVersion, rec.Version)
	}

	role, ok := roleOf(rec, actorID)
	if !ok || !role.CanEdit() {
		s.countSave("forbidden")
		return nil, errors.NewForbiddenError("actor may not edit this project")
	}

	if err := s.validateContent(content); err != nil {
		s.countSave("invalid")
		return nil, err
	}

	prevHash := rec.ContentHash
	if prevHash == "" {
		prevHash = hashContent(rec.Content)
	}
	newHash := hashContent(content)

	if err := s.maybeSnapshot(ctx, rec, prevHash != newHash, opts); err != nil {
		return nil, err
	}

	updated, err := s.projects.Update(ctx, projectID, rec.Version, ports.ContentUpdate{
		Content:     content,
		ContentHash: newHash,
		UpdatedBy:   actorID,
	})
	if err != nil {
		if errors.IsVersionConflict(err) {
			s.countSave("conflict")
		} else {
			s.countSave("error")
		}
		return nil, err
	}
	s.countSave("ok")

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, rec.OwnerID); err != nil {
			s.logger.Warn("failed to invalidate project listing cache",
				zap.String("ownerID", rec.OwnerID),
				zap.Error(err),
			)
		}
	}

	if scopedKey != "" && s.idempotency != nil {
		if body, err := json.Marshal(updated); err == nil {
			if err := s.idempotency.Put(ctx, scopedKey, body, IdempotencyWindow); err != nil {
				s.logger.Warn("failed to record idempotent response", zap.Error(err))
			}
		}
	}

	s.logger.Info("diagram saved",
		zap.String("projectID", projectID),
		zap.String("actorID", actorID),
		zap.Int("version", updated.Version),
		zap.Int("bytes", len(content)),
	)
	return updated, nil
}

// ListVersions returns snapshots newest-first. Any project role may read
// history.
func (s *DiagramService) ListVersions(ctx context.Context, projectID, actorID string, page, limit int) ([]*ports.VersionSnapshot, int, error) {
	rec, err := s.projects.GetByID(ctx, projectID)
	if err != nil {
		return nil, 0, err
	}
	if _, ok := roleOf(rec, actorID); !ok {
		return nil, 0, errors.NewForbiddenError("no access to project")
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.versions.ListByProject(ctx, projectID, page, limit)
}

// RestoreVersion restores a snapshot as a normal forward save with a forced
// snapshot of the pre-restore state, so history stays append-only and the
// overwritten content is never lost.
func (s *DiagramService) RestoreVersion(ctx context.Context, projectID, versionID, actorID string) (*ports.ProjectRecord, error) {
	snap, err := s.versions.GetByID(ctx, projectID, versionID)
	if err != nil {
		return nil, err
	}
	if snap.ProjectID != projectID {
		return nil, errors.NewNotFoundError("version")
	}

	if s.audit != nil {
		entry := &ports.AuditEntry{
			ID:        uuid.New().String(),
			ProjectID: projectID,
			ActorID:   actorID,
			Action:    "restore_version",
			Detail:    versionID,
			At:        s.now(),
		}
		if err := s.audit.Record(ctx, entry); err != nil {
			s.logger.Warn("failed to record restore audit entry", zap.Error(err))
		}
	}

	return s.SaveDiagram(ctx, projectID, snap.Content, actorID, SaveOptions{
		ForceSnapshot: true,
		Description:   ports.DescriptionManualBackup,
	})
}

// ListProjects returns the owner's projects, served from the read-side cache
// when warm.
func (s *DiagramService) ListProjects(ctx context.Context, ownerID string) ([]*ports.ProjectRecord, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(ctx, ownerID); ok {
			if s.metrics != nil {
				s.metrics.CacheHits.Inc()
			}
			return cached, nil
		}
		if s.metrics != nil {
			s.metrics.CacheMisses.Inc()
		}
	}
	records, err := s.projects.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, ownerID, records)
	}
	return records, nil
}

// maybeSnapshot writes a snapshot of the previous content when the policy
// calls for one: (content changed OR forced) AND (no snapshot yet OR the most
// recent one is older than the window); forced saves bypass the window.
func (s *DiagramService) maybeSnapshot(ctx context.Context, rec *ports.ProjectRecord, changed bool, opts SaveOptions) error {
	if !changed && !opts.ForceSnapshot {
		return nil
	}
	if !opts.ForceSnapshot {
		latest, err := s.versions.LatestCreatedAt(ctx, rec.ID)
		if err != nil {
			return errors.Wrap(err, "failed to read snapshot history")
		}
		window, _ := s.limits()
		if !latest.IsZero() && s.now().Sub(latest) < window {
			return nil
		}
	}

	description := opts.Description
	if description == "" {
		description = ports.DescriptionAutoSave
	}
	prevHash := rec.ContentHash
	if prevHash == "" {
		prevHash = hashContent(rec.Content)
	}

	snap := &ports.VersionSnapshot{
		ID:          s.newULID(),
		ProjectID:   rec.ID,
		Content:     append([]byte(nil), rec.Content...),
		ContentHash: prevHash,
		Description: description,
		CreatedAt:   s.now(),
		CreatedBy:   rec.UpdatedBy,
	}
	if err := s.versions.Append(ctx, snap); err != nil {
		return errors.Wrap(err, "failed to append version snapshot")
	}
	if s.metrics != nil {
		s.metrics.SnapshotsTotal.Inc()
	}
	s.logger.Debug("version snapshot written",
		zap.String("projectID", rec.ID),
		zap.String("versionID", snap.ID),
		zap.String("description", description),
	)
	return nil
}

func (s *DiagramService) validateContent(content []byte) error {
	_, maxBytes := s.limits()
	if len(content) > maxBytes {
		return errors.NewValidationError("content exceeds size ceiling")
	}
	var d diagram.Diagram
	if err := json.Unmarshal(content, &d); err != nil {
		return errors.NewValidationError("content is not a valid diagram").WithCause(err)
	}
	return diagram.Validate(d)
}

func (s *DiagramService) countSave(status string) {
	if s.metrics != nil {
		s.metrics.SavesTotal.WithLabelValues(status).Inc()
	}
}

// roleOf resolves the actor's effective role: owner, explicit collaborator,
// or team member (viewers on a team cannot edit but can read).
func roleOf(rec *ports.ProjectRecord, actorID string) (ports.Role, bool) {
	if actorID == "" {
		return "", false
	}
	if rec.OwnerID == actorID {
		return ports.RoleOwner, true
	}
	if role, ok := rec.Collaborators[actorID]; ok {
		return role, true
	}
	if rec.TeamID != "" {
		if role, ok := rec.TeamMembers[actorID]; ok {
			return role, true
		}
	}
	return "", false
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
