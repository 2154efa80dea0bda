package dynamodb

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"schemacanvas-backend/application/ports"
	apperrors "schemacanvas-backend/pkg/errors"
)

// BreakerConfig tunes the circuit breaker around project writes.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the write-path breaker defaults.
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerProjectRepository wraps a ports.ProjectRepository with a circuit
// breaker on the write operations. Reads pass through: a degraded store should
// still serve cached or partially available data, and GetByID failures already
// surface as Unavailable. VersionConflict and the other typed domain errors do
// not count as breaker failures; they are correct answers from a healthy
// store.
type BreakerProjectRepository struct {
	inner  ports.ProjectRepository
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// NewBreakerProjectRepository wraps a project repository with a circuit
// breaker.
func NewBreakerProjectRepository(inner ports.ProjectRepository, cfg BreakerConfig, logger *zap.Logger) *BreakerProjectRepository {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			// Typed domain errors are healthy responses.
			if appErr := apperrors.GetAppError(err); appErr != nil && appErr.Type != apperrors.ErrorTypeUnavailable {
				return true
			}
			return false
		},
	})
	return &BreakerProjectRepository{inner: inner, cb: cb, logger: logger}
}

// GetByID passes through to the underlying repository.
func (r *BreakerProjectRepository) GetByID(ctx context.Context, projectID string) (*ports.ProjectRecord, error) {
	return r.inner.GetByID(ctx, projectID)
}

// ListByOwner passes through to the underlying repository.
func (r *BreakerProjectRepository) ListByOwner(ctx context.Context, ownerID string) ([]*ports.ProjectRecord, error) {
	return r.inner.ListByOwner(ctx, ownerID)
}

// Create runs the write behind the breaker.
func (r *BreakerProjectRepository) Create(ctx context.Context, record *ports.ProjectRecord) error {
	_, err := r.cb.Execute(func() (any, error) {
		return nil, r.inner.Create(ctx, record)
	})
	return mapBreakerError(err)
}

// Update runs the conditional write behind the breaker.
func (r *BreakerProjectRepository) Update(ctx context.Context, projectID string, expectedVersion int, update ports.ContentUpdate) (*ports.ProjectRecord, error) {
	out, err := r.cb.Execute(func() (any, error) {
		return r.inner.Update(ctx, projectID, expectedVersion, update)
	})
	if err != nil {
		return nil, mapBreakerError(err)
	}
	return out.(*ports.ProjectRecord), nil
}

func mapBreakerError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return apperrors.NewUnavailableError("project store").WithCause(err)
	}
	return err
}
