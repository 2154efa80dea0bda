package mutate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemacanvas-backend/domain/diagram"
	"schemacanvas-backend/domain/events"
)

func env(kind string) events.Envelope {
	return events.NewEnvelope(kind, "proj-1", "actor-1", 1700000000)
}

func twoNodeDiagram() diagram.Diagram {
	d := diagram.NewDiagram(diagram.DiagramRelational)
	d.Nodes = []diagram.Node{
		{
			ID:       "users",
			Kind:     diagram.KindTable,
			Position: diagram.Position{X: 0, Y: 0},
			Label:    "Users",
			Fields: []diagram.Field{
				{ID: "users.id", Name: "id", Type: "uuid", PrimaryKey: true},
			},
		},
		{
			ID:       "orders",
			Kind:     diagram.KindTable,
			Position: diagram.Position{X: 400, Y: 0},
			Label:    "Orders",
			Fields: []diagram.Field{
				{ID: "orders.id", Name: "id", Type: "uuid", PrimaryKey: true},
				{ID: "orders.user_id", Name: "user_id", Type: "uuid", ForeignKey: true},
			},
		},
	}
	d.Edges = []diagram.Edge{
		{
			ID:       "fk-orders-users",
			SourceID: "orders",
			TargetID: "users",
			Mappings: []diagram.FieldMapping{
				{SourceField: "orders.user_id", TargetField: "users.id", Cardinality: diagram.OneToMany},
			},
		},
	}
	return d
}

func TestApplyNodeAdded(t *testing.T) {
	d := diagram.NewDiagram(diagram.DiagramRelational)

	out := Apply(d, &events.NodeAdded{
		Envelope: env(events.TypeNodeAdded),
		Node:     diagram.Node{ID: "users", Kind: diagram.KindTable, Label: "Users"},
	})

	require.Len(t, out.Nodes, 1)
	assert.Equal(t, "users", out.Nodes[0].ID)
	assert.Empty(t, d.Nodes, "input diagram must not be mutated")
}

func TestApplyNodeUpdatedPartialPatch(t *testing.T) {
	d := twoNodeDiagram()
	label := "Customers"

	out := Apply(d, &events.NodeUpdated{
		Envelope: env(events.TypeNodeUpdated),
		NodeID:   "users",
		Changes:  events.NodePatch{Label: &label},
	})

	assert.Equal(t, "Customers", out.Nodes[0].Label)
	assert.Equal(t, diagram.KindTable, out.Nodes[0].Kind, "nil patch fields stay untouched")
}

func TestApplyNodeMovedRecomputesAnchors(t *testing.T) {
	d := twoNodeDiagram()

	// orders sits to the right of users; a whole-node edge faces left/right.
	out := Apply(d, &events.NodeMoved{
		Envelope: env(events.TypeNodeMoved),
		NodeID:   "orders",
		Position: diagram.Position{X: 0, Y: 500},
	})

	i := out.FindNode("orders")
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, diagram.Position{X: 0, Y: 500}, out.Nodes[i].Position)

	// orders is now below users: its whole-node anchor faces up.
	e := out.Edges[0]
	assert.Equal(t, diagram.SideTop, e.SourceAnchor.Side)
	assert.Equal(t, diagram.SideBottom, e.TargetAnchor.Side)
}

func TestApplyNodeDeletedCascadesIncidentEdges(t *testing.T) {
	d := twoNodeDiagram()

	out := Apply(d, &events.NodeDeleted{
		Envelope: env(events.TypeNodeDeleted),
		NodeID:   "users",
	})

	assert.Equal(t, -1, out.FindNode("users"))
	assert.Empty(t, out.Edges, "incident edges removed in the same transition")
	require.NoError(t, diagram.Validate(out))
}

func TestApplyNodeDeletedIsIdempotent(t *testing.T) {
	d := twoNodeDiagram()
	del := &events.NodeDeleted{Envelope: env(events.TypeNodeDeleted), NodeID: "users"}

	once := Apply(d, del)
	twice := Apply(once, del)

	assert.Equal(t, once, twice)
}

func TestApplyFieldLifecycle(t *testing.T) {
	d := twoNodeDiagram()

	d = Apply(d, &events.FieldAdded{
		Envelope: env(events.TypeFieldAdded),
		NodeID:   "users",
		Field:    diagram.Field{ID: "users.email", Name: "email", Type: "varchar"},
	})
	i := d.FindNode("users")
	require.Len(t, d.Nodes[i].Fields, 2)

	newType := "text"
	unique := true
	d = Apply(d, &events.FieldUpdated{
		Envelope: env(events.TypeFieldUpdated),
		NodeID:   "users",
		FieldID:  "users.email",
		Changes:  events.FieldPatch{Type: &newType, Unique: &unique},
	})
	f := d.Nodes[i].Fields[d.Nodes[i].FindField("users.email")]
	assert.Equal(t, "text", f.Type)
	assert.True(t, f.Unique)
	assert.Equal(t, "email", f.Name, "unpatched fields keep their values")

	d = Apply(d, &events.FieldDeleted{
		Envelope: env(events.TypeFieldDeleted),
		NodeID:   "users",
		FieldID:  "users.email",
	})
	assert.Len(t, d.Nodes[i].Fields, 1)
}

func TestApplyMissingTargetsAreNoOps(t *testing.T) {
	d := twoNodeDiagram()
	label := "x"

	cases := []events.Mutation{
		&events.NodeUpdated{Envelope: env(events.TypeNodeUpdated), NodeID: "ghost", Changes: events.NodePatch{Label: &label}},
		&events.NodeMoved{Envelope: env(events.TypeNodeMoved), NodeID: "ghost", Position: diagram.Position{X: 1, Y: 1}},
		&events.NodeDeleted{Envelope: env(events.TypeNodeDeleted), NodeID: "ghost"},
		&events.FieldAdded{Envelope: env(events.TypeFieldAdded), NodeID: "ghost", Field: diagram.Field{ID: "f"}},
		&events.FieldDeleted{Envelope: env(events.TypeFieldDeleted), NodeID: "users", FieldID: "ghost"},
		&events.EdgeDeleted{Envelope: env(events.TypeEdgeDeleted), EdgeID: "ghost"},
		&events.EdgeLabelMoved{Envelope: env(events.TypeEdgeLabelMoved), EdgeID: "ghost", Offset: diagram.Offset{DX: 1}},
	}
	for _, m := range cases {
		out := Apply(d, m)
		assert.Equal(t, d, out, "event %s targeting a missing element must be a no-op", m.Kind())
	}
}

func TestApplyEdgeAddedAndDeleted(t *testing.T) {
	d := twoNodeDiagram()

	d = Apply(d, &events.EdgeAdded{
		Envelope: env(events.TypeEdgeAdded),
		Edge:     diagram.Edge{ID: "e2", SourceID: "users", TargetID: "orders"},
	})
	assert.Len(t, d.Edges, 2)

	d = Apply(d, &events.EdgeDeleted{Envelope: env(events.TypeEdgeDeleted), EdgeID: "e2"})
	assert.Len(t, d.Edges, 1)
	assert.Equal(t, -1, d.FindEdge("e2"))
}

func TestApplyOutOfBandEdgeEvents(t *testing.T) {
	d := twoNodeDiagram()

	d = Apply(d, &events.EdgeLabelMoved{
		Envelope: env(events.TypeEdgeLabelMoved),
		EdgeID:   "fk-orders-users",
		Offset:   diagram.Offset{DX: 12, DY: -4},
	})
	require.NotNil(t, d.Edges[0].LabelOffset)
	assert.Equal(t, diagram.Offset{DX: 12, DY: -4}, *d.Edges[0].LabelOffset)

	constraint := diagram.ConstraintPolicy{OnDelete: "cascade"}
	d = Apply(d, &events.EdgeDataPatched{
		Envelope: env(events.TypeEdgeDataPatched),
		EdgeID:   "fk-orders-users",
		Changes:  events.EdgePatch{Constraint: &constraint},
	})
	require.NotNil(t, d.Edges[0].Constraint)
	assert.Equal(t, "cascade", d.Edges[0].Constraint.OnDelete)
}

func TestApplyFieldAddThenCascadingDelete(t *testing.T) {
	d := diagram.NewDiagram(diagram.DiagramRelational)
	d.Nodes = []diagram.Node{
		{ID: "t1", Kind: diagram.KindTable, Fields: []diagram.Field{
			{ID: "f1", Name: "id", PrimaryKey: true},
		}},
	}
	d.Edges = []diagram.Edge{
		{ID: "e1", SourceID: "t1", TargetID: "t2"},
	}

	d = Apply(d, &events.FieldAdded{
		Envelope: env(events.TypeFieldAdded),
		NodeID:   "t1",
		Field:    diagram.Field{ID: "f2", Name: "email"},
	})
	require.Len(t, d.Nodes[0].Fields, 2)

	d = Apply(d, &events.NodeDeleted{Envelope: env(events.TypeNodeDeleted), NodeID: "t1"})
	assert.Empty(t, d.Nodes)
	assert.Empty(t, d.Edges)
}

func TestApplySequenceFromEmptyDiagram(t *testing.T) {
	d := diagram.NewDiagram(diagram.DiagramRelational)

	seq := []events.Mutation{
		&events.NodeAdded{Envelope: env(events.TypeNodeAdded), Node: diagram.Node{ID: "a", Kind: diagram.KindTable}},
		&events.NodeAdded{Envelope: env(events.TypeNodeAdded), Node: diagram.Node{ID: "b", Kind: diagram.KindTable}},
		&events.EdgeAdded{Envelope: env(events.TypeEdgeAdded), Edge: diagram.Edge{ID: "ab", SourceID: "a", TargetID: "b"}},
		&events.NodeDeleted{Envelope: env(events.TypeNodeDeleted), NodeID: "b"},
	}
	for _, m := range seq {
		d = Apply(d, m)
	}

	assert.Len(t, d.Nodes, 1)
	assert.Empty(t, d.Edges)
	require.NoError(t, diagram.Validate(d))
}
