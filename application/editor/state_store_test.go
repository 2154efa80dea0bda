package editor

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"schemacanvas-backend/domain/diagram"
	"schemacanvas-backend/domain/events"
)

type recordingPublisher struct {
	mu        sync.Mutex
	published []events.Mutation
	err       error
}

func (p *recordingPublisher) Publish(_ context.Context, m events.Mutation) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, m)
	return nil
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.published)
}

func nodeAdded(id string) *events.NodeAdded {
	return &events.NodeAdded{
		Envelope: events.NewEnvelope(events.TypeNodeAdded, "proj-1", "actor-1", 1),
		Node:     diagram.Node{ID: id, Kind: diagram.KindTable, Label: id},
	}
}

func TestHandleLocalEventAppliesAndPublishes(t *testing.T) {
	pub := &recordingPublisher{}
	s := NewStateStore(pub, zap.NewNop())

	err := s.HandleLocalEvent(context.Background(), nodeAdded("users"), true)
	require.NoError(t, err)

	d := s.Diagram()
	assert.Len(t, d.Nodes, 1)
	assert.Equal(t, 1, pub.count())
}

func TestHandleLocalEventAppliesEvenWhenPublishFails(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("relay down")}
	s := NewStateStore(pub, zap.NewNop())

	err := s.HandleLocalEvent(context.Background(), nodeAdded("users"), true)
	require.Error(t, err)

	// The local apply stands; only the broadcast failed.
	assert.Len(t, s.Diagram().Nodes, 1)
}

func TestUndoRedoAreInverse(t *testing.T) {
	s := NewStateStore(nil, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.HandleLocalEvent(ctx, nodeAdded("a"), true))
	require.NoError(t, s.HandleLocalEvent(ctx, nodeAdded("b"), true))
	after := s.Diagram()

	require.True(t, s.Undo())
	assert.Len(t, s.Diagram().Nodes, 1)

	require.True(t, s.Redo())
	assert.Equal(t, after.Nodes, s.Diagram().Nodes)
}

func TestUndoOnEmptyHistory(t *testing.T) {
	s := NewStateStore(nil, zap.NewNop())
	assert.False(t, s.Undo())
	assert.False(t, s.Redo())
}

func TestNewLocalEventClearsRedoStack(t *testing.T) {
	s := NewStateStore(nil, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.HandleLocalEvent(ctx, nodeAdded("a"), true))
	require.NoError(t, s.HandleLocalEvent(ctx, nodeAdded("b"), true))
	require.True(t, s.Undo())

	require.NoError(t, s.HandleLocalEvent(ctx, nodeAdded("c"), true))
	assert.False(t, s.Redo(), "a new edit after undo invalidates the redo branch")
}

func TestHistoryDepthIsBounded(t *testing.T) {
	s := NewStateStore(nil, zap.NewNop(), WithHistoryDepth(3))
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		require.NoError(t, s.HandleLocalEvent(ctx, nodeAdded(string(rune('a'+i))), true))
	}
	assert.Equal(t, 3, s.UndoDepth())

	// Only the bounded window is undoable.
	undos := 0
	for s.Undo() {
		undos++
	}
	assert.Equal(t, 3, undos)
}

func TestSnapshotBeforeFalseCoalescesUndo(t *testing.T) {
	s := NewStateStore(nil, zap.NewNop())
	ctx := context.Background()

	// Focus-start snapshots once; per-keystroke events do not.
	require.NoError(t, s.HandleLocalEvent(ctx, nodeAdded("users"), true))
	label1, label2 := "U", "Us"
	upd := func(l *string) *events.NodeUpdated {
		return &events.NodeUpdated{
			Envelope: events.NewEnvelope(events.TypeNodeUpdated, "proj-1", "actor-1", 1),
			NodeID:   "users",
			Changes:  events.NodePatch{Label: l},
		}
	}
	require.NoError(t, s.HandleLocalEvent(ctx, upd(&label1), false))
	require.NoError(t, s.HandleLocalEvent(ctx, upd(&label2), false))

	assert.Equal(t, 1, s.UndoDepth())
	require.True(t, s.Undo())
	assert.Empty(t, s.Diagram().Nodes, "one undo reverts the whole edit session")
}

func TestRemoteEventsBypassHistory(t *testing.T) {
	s := NewStateStore(nil, zap.NewNop())

	s.ApplyEvent(nodeAdded("remote"))

	assert.Len(t, s.Diagram().Nodes, 1)
	assert.Equal(t, 0, s.UndoDepth())
	assert.False(t, s.Undo())
}

func TestOutOfBandEventsSkipSnapshots(t *testing.T) {
	s := NewStateStore(nil, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.HandleLocalEvent(ctx, nodeAdded("a"), true))
	require.NoError(t, s.HandleLocalEvent(ctx, nodeAdded("b"), true))
	require.NoError(t, s.HandleLocalEvent(ctx, nodeAdded("c"), true))
	require.NoError(t, s.HandleLocalEvent(ctx, &events.EdgeLabelMoved{
		Envelope: events.NewEnvelope(events.TypeEdgeLabelMoved, "proj-1", "actor-1", 1),
		EdgeID:   "ghost",
		Offset:   diagram.Offset{DX: 5},
	}, true))

	// The presentation event neither snapshots nor clears redo.
	assert.Equal(t, 3, s.UndoDepth())
}

func TestLocalAndRemoteConvergeOnSameEvents(t *testing.T) {
	local := NewStateStore(nil, zap.NewNop())
	remote := NewStateStore(nil, zap.NewNop())
	ctx := context.Background()

	seq := []events.Mutation{
		nodeAdded("a"),
		nodeAdded("b"),
		&events.EdgeAdded{
			Envelope: events.NewEnvelope(events.TypeEdgeAdded, "proj-1", "actor-1", 1),
			Edge:     diagram.Edge{ID: "ab", SourceID: "a", TargetID: "b"},
		},
		&events.NodeDeleted{Envelope: events.NewEnvelope(events.TypeNodeDeleted, "proj-1", "actor-1", 2), NodeID: "a"},
	}
	for _, m := range seq {
		require.NoError(t, local.HandleLocalEvent(ctx, m, true))
		remote.ApplyEvent(m)
	}

	ld, rd := local.Diagram(), remote.Diagram()
	assert.Equal(t, ld.Nodes, rd.Nodes)
	assert.Equal(t, ld.Edges, rd.Edges)
}

func TestSetInitialContentClearsHistory(t *testing.T) {
	s := NewStateStore(nil, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, s.HandleLocalEvent(ctx, nodeAdded("a"), true))
	require.True(t, s.UndoDepth() > 0)

	fresh := diagram.NewDiagram(diagram.DiagramDocument)
	s.SetInitialContent(fresh)

	assert.Equal(t, 0, s.UndoDepth())
	assert.False(t, s.Undo())
	assert.False(t, s.Redo())
	assert.Equal(t, diagram.DiagramDocument, s.Diagram().Meta.Kind)
}
