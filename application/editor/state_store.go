// Package editor holds the client-resident diagram state machine: the single
// source of truth for an active editing session, with bounded undo/redo and a
// shared apply path for local and remote events.
package editor

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"schemacanvas-backend/domain/diagram"
	"schemacanvas-backend/domain/events"
	"schemacanvas-backend/domain/mutate"
)

// DefaultHistoryDepth bounds the undo/redo stacks.
const DefaultHistoryDepth = 50

// Publisher forwards locally-applied events to peers. The relay client
// implements it; tests inject a recorder.
type Publisher interface {
	Publish(ctx context.Context, m events.Mutation) error
}

// snapshot is one undo/redo unit: a deep copy of the (nodes, edges) pair.
// Presentation metadata is deliberately not captured.
type snapshot struct {
	nodes []diagram.Node
	edges []diagram.Edge
}

// StateStore is an explicit, constructible state machine — one per editing
// session — injected into the UI layer and the network layer. Multiple
// concurrent sessions never interfere.
type StateStore struct {
	mu      sync.Mutex
	diagram diagram.Diagram
	past    []snapshot
	future  []snapshot

	historyDepth int
	publisher    Publisher
	logger       *zap.Logger
}

// Option configures a StateStore.
type Option func(*StateStore)

// WithHistoryDepth overrides the undo/redo stack bound.
func WithHistoryDepth(depth int) Option {
	return func(s *StateStore) {
		if depth > 0 {
			s.historyDepth = depth
		}
	}
}

// NewStateStore creates a state store. The publisher may be nil for offline
// sessions; events then apply locally only.
func NewStateStore(publisher Publisher, logger *zap.Logger, opts ...Option) *StateStore {
	s := &StateStore{
		diagram:      diagram.NewDiagram(diagram.DiagramRelational),
		historyDepth: DefaultHistoryDepth,
		publisher:    publisher,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetInitialContent replaces the live diagram with freshly loaded content and
// clears both history stacks.
func (s *StateStore) SetInitialContent(d diagram.Diagram) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagram = d.Clone()
	s.past = nil
	s.future = nil
}

// Diagram returns a deep copy of the live diagram.
func (s *StateStore) Diagram() diagram.Diagram {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.diagram.Clone()
}

// HandleLocalEvent processes a user-originated event: optionally snapshot for
// undo, apply locally, clear the redo stack, then forward to peers. The local
// apply always happens before the publish, so the origin session never
// observes its own edit arrive late.
//
// The caller decides snapshotting: high-frequency field-text edits pass
// snapshotBefore=false per keystroke and true at focus-start, keeping undo
// granularity at the edit-session level. Out-of-band presentation events
// never snapshot.
func (s *StateStore) HandleLocalEvent(ctx context.Context, m events.Mutation, snapshotBefore bool) error {
	s.mu.Lock()
	if snapshotBefore && !events.OutOfBand(m) {
		s.pushPast()
	}
	s.diagram = mutate.Apply(s.diagram, m)
	if !events.OutOfBand(m) {
		s.future = nil
	}
	s.mu.Unlock()

	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Publish(ctx, m); err != nil {
		// The local apply stands; the peer view catches up on the next
		// persistence round trip.
		s.logger.Warn("failed to publish event",
			zap.String("type", m.Kind()),
			zap.String("projectID", m.Project()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// ApplyEvent applies a peer-originated event to the live diagram. It is the
// same pure application used for self-originated events, so the local and
// remote code paths can never semantically diverge. Remote events never touch
// the undo/redo stacks.
func (s *StateStore) ApplyEvent(m events.Mutation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diagram = mutate.Apply(s.diagram, m)
}

// Undo restores the most recent snapshot. Local-only: peers are not informed
// that an undo occurred. Returns false when there is nothing to undo.
func (s *StateStore) Undo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.past) == 0 {
		return false
	}
	s.future = append(s.future, s.capture())
	top := s.past[len(s.past)-1]
	s.past = s.past[:len(s.past)-1]
	s.restore(top)
	return true
}

// Redo re-applies the most recently undone snapshot. Local-only.
func (s *StateStore) Redo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.future) == 0 {
		return false
	}
	s.past = append(s.past, s.capture())
	top := s.future[len(s.future)-1]
	s.future = s.future[:len(s.future)-1]
	s.restore(top)
	return true
}

// UndoDepth reports the number of undoable snapshots.
func (s *StateStore) UndoDepth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.past)
}

func (s *StateStore) pushPast() {
	s.past = append(s.past, s.capture())
	if len(s.past) > s.historyDepth {
		s.past = s.past[len(s.past)-s.historyDepth:]
	}
}

func (s *StateStore) capture() snapshot {
	return snapshot{
		nodes: diagram.CloneNodes(s.diagram.Nodes),
		edges: diagram.CloneEdges(s.diagram.Edges),
	}
}

func (s *StateStore) restore(snap snapshot) {
	s.diagram.Nodes = snap.nodes
	s.diagram.Edges = snap.edges
}
