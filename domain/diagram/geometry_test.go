package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNearestSide(t *testing.T) {
	origin := Position{X: 0, Y: 0}

	tests := []struct {
		name string
		to   Position
		want Side
	}{
		{"target to the right", Position{X: 100, Y: 10}, SideRight},
		{"target to the left", Position{X: -100, Y: 10}, SideLeft},
		{"target below", Position{X: 10, Y: 100}, SideBottom},
		{"target above", Position{X: 10, Y: -100}, SideTop},
		{"diagonal tie goes vertical", Position{X: 50, Y: 50}, SideBottom},
		{"diagonal tie upward goes top", Position{X: 50, Y: -50}, SideTop},
		{"same position", Position{X: 0, Y: 0}, SideBottom},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NearestSide(origin, tt.to))
		})
	}
}

func TestRecomputeAnchorsSkipsFieldAnchors(t *testing.T) {
	d := Diagram{
		Meta: Metadata{Kind: DiagramRelational},
		Nodes: []Node{
			{ID: "a", Kind: KindTable, Position: Position{X: 0, Y: 0}},
			{ID: "b", Kind: KindTable, Position: Position{X: 500, Y: 0}},
		},
		Edges: []Edge{
			{
				ID:           "e1",
				SourceID:     "a",
				TargetID:     "b",
				SourceAnchor: Anchor{FieldID: "a.id", Side: SideBottom},
				TargetAnchor: Anchor{},
			},
		},
	}

	RecomputeAnchors(&d, "a")

	// The per-field anchor stays pinned; the whole-node anchor is re-derived.
	assert.Equal(t, SideBottom, d.Edges[0].SourceAnchor.Side)
	assert.Equal(t, SideLeft, d.Edges[0].TargetAnchor.Side)
}

func TestRecomputeAnchorsIgnoresUnrelatedEdges(t *testing.T) {
	d := Diagram{
		Meta: Metadata{Kind: DiagramRelational},
		Nodes: []Node{
			{ID: "a", Kind: KindTable, Position: Position{X: 0, Y: 0}},
			{ID: "b", Kind: KindTable, Position: Position{X: 500, Y: 0}},
			{ID: "c", Kind: KindTable, Position: Position{X: 0, Y: 500}},
		},
		Edges: []Edge{
			{ID: "bc", SourceID: "b", TargetID: "c", SourceAnchor: Anchor{Side: SideTop}},
		},
	}

	RecomputeAnchors(&d, "a")

	assert.Equal(t, SideTop, d.Edges[0].SourceAnchor.Side, "edges not incident to the moved node stay untouched")
}
