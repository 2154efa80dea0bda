// Package autosave bridges the live, high-frequency state store to the
// low-frequency, authoritative persistence path: debounced, serialized,
// retry-on-next-cycle.
package autosave

import (
	"bytes"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Defaults for the production scheduler. Tests inject shorter values.
const (
	DefaultDebounce     = 2 * time.Second
	DefaultPollInterval = 500 * time.Millisecond
)

// SaveFunc issues one durable save of serialized diagram content.
type SaveFunc func(ctx context.Context, content []byte) error

// Config holds the scheduler's timing knobs. Both the debounce window and
// the skip-first-observation behaviour are explicit so tests can inject
// arbitrary timing.
type Config struct {
	// Debounce is the quiet period after the last change before a save.
	Debounce time.Duration
	// PollInterval is how often a fired save waits on an in-flight one.
	PollInterval time.Duration
	// SkipInitial treats the first observed state as "just loaded" rather
	// than a user edit: it becomes the baseline without being saved.
	SkipInitial bool
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		Debounce:     DefaultDebounce,
		PollInterval: DefaultPollInterval,
		SkipInitial:  true,
	}
}

// Scheduler observes state changes and turns them into serialized saves.
// Saves for one project are never issued concurrently: a fired debounce polls
// until the in-flight save completes. A failed save keeps the old baseline,
// so the next cycle retries the still-unsaved content.
type Scheduler struct {
	cfg    Config
	save   SaveFunc
	logger *zap.Logger
	ctx    context.Context

	mu         sync.Mutex
	pending    []byte
	timer      *time.Timer
	lastSaved  []byte
	hasBase    bool
	sawInitial bool
	inFlight   bool
	closed     bool
	wg         sync.WaitGroup
}

// NewScheduler creates a scheduler. ctx bounds all issued saves; cancelling
// it stops retries.
func NewScheduler(ctx context.Context, cfg Config, save SaveFunc, logger *zap.Logger) *Scheduler {
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Scheduler{
		cfg:    cfg,
		save:   save,
		logger: logger,
		ctx:    ctx,
	}
}

// Notify records the latest serialized content and resets the debounce
// timer. It is called on every state change.
func (s *Scheduler) Notify(content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pending = append([]byte(nil), content...)
	if s.timer == nil {
		s.timer = time.AfterFunc(s.cfg.Debounce, s.fire)
		return
	}
	s.timer.Reset(s.cfg.Debounce)
}

// Stop cancels the pending timer and waits for an in-flight save to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	// Registered under the lock: Stop flips closed under the same lock
	// before it waits, so Add can never race an in-progress Wait.
	s.wg.Add(1)
	defer s.wg.Done()

	content := s.pending

	if s.cfg.SkipInitial && !s.sawInitial {
		// Just-loaded content is the baseline, not a user edit.
		s.sawInitial = true
		s.lastSaved = content
		s.hasBase = true
		s.mu.Unlock()
		return
	}
	s.sawInitial = true

	if s.hasBase && bytes.Equal(content, s.lastSaved) {
		s.mu.Unlock()
		return
	}

	// Serialize writes: never two concurrent saves for the same project.
	for s.inFlight {
		s.mu.Unlock()
		select {
		case <-s.ctx.Done():
			return
		case <-time.After(s.cfg.PollInterval):
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
	}
	s.inFlight = true
	s.mu.Unlock()

	err := s.save(s.ctx, content)

	s.mu.Lock()
	s.inFlight = false
	if err != nil {
		// Transient by policy: keep the old baseline so the next debounce
		// cycle retries with the still-unsaved content.
		s.logger.Warn("autosave failed, will retry on next cycle", zap.Error(err))
		s.mu.Unlock()
		return
	}
	s.lastSaved = content
	s.hasBase = true
	s.mu.Unlock()
}
