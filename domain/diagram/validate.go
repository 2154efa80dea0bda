package diagram

import (
	"fmt"

	apperrors "schemacanvas-backend/pkg/errors"
)

// Validate checks the structural invariants the persistence boundary
// enforces: node kinds agree with the diagram kind, node ids are unique,
// field ids are unique within each node, and every edge endpoint resolves.
// Dangling edges yield a DanglingReference error, everything else a
// validation error. The live editing path deliberately does not call this;
// only the durability boundary fails closed.
func Validate(d Diagram) error {
	if d.Meta.Kind != DiagramRelational && d.Meta.Kind != DiagramDocument {
		return apperrors.NewValidationError(fmt.Sprintf("unknown diagram kind %q", d.Meta.Kind))
	}

	wantKind := d.Meta.Kind.NodeKindFor()
	seenNodes := make(map[string]struct{}, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			return apperrors.NewValidationError("node with empty id")
		}
		if _, dup := seenNodes[n.ID]; dup {
			return apperrors.NewValidationError(fmt.Sprintf("duplicate node id %q", n.ID))
		}
		seenNodes[n.ID] = struct{}{}

		if n.Kind != wantKind {
			return apperrors.NewValidationError(
				fmt.Sprintf("node %q has kind %q, diagram kind %q requires %q", n.ID, n.Kind, d.Meta.Kind, wantKind))
		}

		seenFields := make(map[string]struct{}, len(n.Fields))
		for _, f := range n.Fields {
			if f.ID == "" {
				return apperrors.NewValidationError(fmt.Sprintf("node %q has a field with empty id", n.ID))
			}
			if _, dup := seenFields[f.ID]; dup {
				return apperrors.NewValidationError(fmt.Sprintf("duplicate field id %q in node %q", f.ID, n.ID))
			}
			seenFields[f.ID] = struct{}{}
		}
	}

	seenEdges := make(map[string]struct{}, len(d.Edges))
	for _, e := range d.Edges {
		if e.ID == "" {
			return apperrors.NewValidationError("edge with empty id")
		}
		if _, dup := seenEdges[e.ID]; dup {
			return apperrors.NewValidationError(fmt.Sprintf("duplicate edge id %q", e.ID))
		}
		seenEdges[e.ID] = struct{}{}

		if _, ok := seenNodes[e.SourceID]; !ok {
			return apperrors.NewDanglingReferenceError(e.ID, e.SourceID)
		}
		if _, ok := seenNodes[e.TargetID]; !ok {
			return apperrors.NewDanglingReferenceError(e.ID, e.TargetID)
		}
	}

	return nil
}
