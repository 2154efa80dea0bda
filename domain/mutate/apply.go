// Package mutate is the pure reducer over the diagram model: it applies
// mutation events to a diagram and returns the next diagram value.
package mutate

import (
	"schemacanvas-backend/domain/diagram"
	"schemacanvas-backend/domain/events"
)

// Apply is a total function over the declared mutation set: it applies one
// event to a diagram and returns the resulting diagram. Mutations targeting
// missing nodes/edges/fields are no-ops, so replaying a delete leaves the
// diagram unchanged. Replaying an add duplicates the element; avoiding replay
// is the caller's responsibility, not the model's.
//
// Deleting a node removes its incident edges as part of the same transition,
// so a receiver that only sees NODE_DELETED still ends structurally valid.
func Apply(d diagram.Diagram, m events.Mutation) diagram.Diagram {
	out := d.Clone()

	switch ev := m.(type) {
	case *events.NodeAdded:
		out.Nodes = append(out.Nodes, ev.Node.Clone())

	case *events.NodeUpdated:
		if i := out.FindNode(ev.NodeID); i >= 0 {
			applyNodePatch(&out.Nodes[i], ev.Changes)
		}

	case *events.NodeMoved:
		if i := out.FindNode(ev.NodeID); i >= 0 {
			out.Nodes[i].Position = ev.Position
			diagram.RecomputeAnchors(&out, ev.NodeID)
		}

	case *events.NodeDeleted:
		if i := out.FindNode(ev.NodeID); i >= 0 {
			out.Nodes = append(out.Nodes[:i], out.Nodes[i+1:]...)
			out.Edges = dropIncidentEdges(out.Edges, ev.NodeID)
		}

	case *events.FieldAdded:
		if i := out.FindNode(ev.NodeID); i >= 0 {
			out.Nodes[i].Fields = append(out.Nodes[i].Fields, ev.Field)
		}

	case *events.FieldUpdated:
		if i := out.FindNode(ev.NodeID); i >= 0 {
			if j := out.Nodes[i].FindField(ev.FieldID); j >= 0 {
				applyFieldPatch(&out.Nodes[i].Fields[j], ev.Changes)
			}
		}

	case *events.FieldDeleted:
		if i := out.FindNode(ev.NodeID); i >= 0 {
			n := &out.Nodes[i]
			if j := n.FindField(ev.FieldID); j >= 0 {
				n.Fields = append(n.Fields[:j], n.Fields[j+1:]...)
			}
		}

	case *events.EdgeAdded:
		out.Edges = append(out.Edges, ev.Edge.Clone())

	case *events.EdgeDeleted:
		if i := out.FindEdge(ev.EdgeID); i >= 0 {
			out.Edges = append(out.Edges[:i], out.Edges[i+1:]...)
		}

	case *events.EdgeLabelMoved:
		if i := out.FindEdge(ev.EdgeID); i >= 0 {
			o := ev.Offset
			out.Edges[i].LabelOffset = &o
		}

	case *events.EdgeDataPatched:
		if i := out.FindEdge(ev.EdgeID); i >= 0 {
			applyEdgePatch(&out.Edges[i], ev.Changes)
		}

	default:
		// Unknown event kinds are a no-op, not a fault: forward-compatible
		// senders must not crash older receivers. Logging is the caller's
		// concern.
	}

	return out
}

func applyNodePatch(n *diagram.Node, p events.NodePatch) {
	if p.Label != nil {
		n.Label = *p.Label
	}
	if p.Kind != nil {
		n.Kind = *p.Kind
	}
}

func applyFieldPatch(f *diagram.Field, p events.FieldPatch) {
	if p.Name != nil {
		f.Name = *p.Name
	}
	if p.Type != nil {
		f.Type = *p.Type
	}
	if p.PrimaryKey != nil {
		f.PrimaryKey = *p.PrimaryKey
	}
	if p.ForeignKey != nil {
		f.ForeignKey = *p.ForeignKey
	}
	if p.Nullable != nil {
		f.Nullable = *p.Nullable
	}
	if p.Unique != nil {
		f.Unique = *p.Unique
	}
}

func applyEdgePatch(e *diagram.Edge, p events.EdgePatch) {
	if p.Mappings != nil {
		e.Mappings = make([]diagram.FieldMapping, len(p.Mappings))
		copy(e.Mappings, p.Mappings)
	}
	if p.Constraint != nil {
		c := *p.Constraint
		e.Constraint = &c
	}
}

func dropIncidentEdges(edges []diagram.Edge, nodeID string) []diagram.Edge {
	out := edges[:0]
	for _, e := range edges {
		if e.SourceID == nodeID || e.TargetID == nodeID {
			continue
		}
		out = append(out, e)
	}
	return out
}
