package autosave

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type saveRecorder struct {
	mu    sync.Mutex
	calls [][]byte
	err   error
	block chan struct{} // when set, saves block until closed
}

func (r *saveRecorder) save(ctx context.Context, content []byte) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.calls = append(r.calls, append([]byte(nil), content...))
	return nil
}

func (r *saveRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *saveRecorder) last() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.calls) == 0 {
		return nil
	}
	return r.calls[len(r.calls)-1]
}

func testConfig() Config {
	return Config{
		Debounce:     20 * time.Millisecond,
		PollInterval: 5 * time.Millisecond,
		SkipInitial:  true,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestFirstObservationBecomesBaselineWithoutSaving(t *testing.T) {
	rec := &saveRecorder{}
	s := NewScheduler(context.Background(), testConfig(), rec.save, zap.NewNop())
	defer s.Stop()

	s.Notify([]byte(`{"nodes":[]}`))
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 0, rec.count(), "just-loaded content is the baseline, not an edit")
}

func TestChangeAfterBaselineSaves(t *testing.T) {
	rec := &saveRecorder{}
	s := NewScheduler(context.Background(), testConfig(), rec.save, zap.NewNop())
	defer s.Stop()

	s.Notify([]byte(`v1`))
	waitForBaseline(t, s)

	s.Notify([]byte(`v2`))
	waitFor(t, func() bool { return rec.count() == 1 })
	assert.Equal(t, []byte(`v2`), rec.last())
}

func TestIdenticalContentSkipsSave(t *testing.T) {
	rec := &saveRecorder{}
	s := NewScheduler(context.Background(), testConfig(), rec.save, zap.NewNop())
	defer s.Stop()

	s.Notify([]byte(`v1`))
	waitForBaseline(t, s)

	// A no-op notification (edit then undo) matches the baseline bytes.
	s.Notify([]byte(`v1`))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, rec.count())
}

func TestDebounceCoalescesBursts(t *testing.T) {
	rec := &saveRecorder{}
	s := NewScheduler(context.Background(), testConfig(), rec.save, zap.NewNop())
	defer s.Stop()

	s.Notify([]byte(`v0`))
	waitForBaseline(t, s)

	for i := 0; i < 10; i++ {
		s.Notify([]byte{'v', byte('1' + i)})
		time.Sleep(2 * time.Millisecond)
	}
	waitFor(t, func() bool { return rec.count() >= 1 })
	time.Sleep(60 * time.Millisecond)

	assert.Equal(t, 1, rec.count(), "a burst of changes yields one save")
	assert.Equal(t, []byte(`v:`), rec.last())
}

func TestFailedSaveRetriesOnNextCycle(t *testing.T) {
	rec := &saveRecorder{err: errors.New("store down")}
	s := NewScheduler(context.Background(), testConfig(), rec.save, zap.NewNop())
	defer s.Stop()

	s.Notify([]byte(`v1`))
	waitForBaseline(t, s)

	s.Notify([]byte(`v2`))
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, 0, rec.count())

	// Store recovers; the next notification retries the unsaved content.
	rec.mu.Lock()
	rec.err = nil
	rec.mu.Unlock()

	s.Notify([]byte(`v2`))
	waitFor(t, func() bool { return rec.count() == 1 })
	assert.Equal(t, []byte(`v2`), rec.last())
}

func TestSavesAreSerialized(t *testing.T) {
	block := make(chan struct{})
	rec := &saveRecorder{block: block}
	s := NewScheduler(context.Background(), testConfig(), rec.save, zap.NewNop())
	defer s.Stop()

	s.Notify([]byte(`v1`))
	waitForBaseline(t, s)

	s.Notify([]byte(`v2`))
	time.Sleep(50 * time.Millisecond) // first save now blocked in flight

	s.Notify([]byte(`v3`))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, rec.count(), "second save waits for the first")

	close(block)
	waitFor(t, func() bool { return rec.count() == 2 })
	assert.Equal(t, []byte(`v3`), rec.last())
}

func TestStopWaitsForInFlightSave(t *testing.T) {
	block := make(chan struct{})
	rec := &saveRecorder{block: block}
	s := NewScheduler(context.Background(), testConfig(), rec.save, zap.NewNop())

	s.Notify([]byte(`v1`))
	waitForBaseline(t, s)

	s.Notify([]byte(`v2`))
	waitFor(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.inFlight
	})

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Stop returned while a save was still in flight")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return after the save completed")
	}
	assert.Equal(t, 1, rec.count())
	assert.Equal(t, []byte(`v2`), rec.last())
}

func TestSkipInitialDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.SkipInitial = false
	rec := &saveRecorder{}
	s := NewScheduler(context.Background(), cfg, rec.save, zap.NewNop())
	defer s.Stop()

	s.Notify([]byte(`v1`))
	waitFor(t, func() bool { return rec.count() == 1 })
}

// waitForBaseline waits until the scheduler has absorbed the initial
// observation as its baseline.
func waitForBaseline(t *testing.T, s *Scheduler) {
	t.Helper()
	waitFor(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.hasBase
	})
}
