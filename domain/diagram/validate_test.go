package diagram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "schemacanvas-backend/pkg/errors"
)

func validDiagram() Diagram {
	return Diagram{
		Meta: Metadata{Kind: DiagramRelational},
		Nodes: []Node{
			{ID: "users", Kind: KindTable, Fields: []Field{
				{ID: "users.id", Name: "id", Type: "uuid", PrimaryKey: true},
				{ID: "users.org_id", Name: "org_id", Type: "uuid", PrimaryKey: true},
			}},
			{ID: "orders", Kind: KindTable},
		},
		Edges: []Edge{
			{ID: "e1", SourceID: "orders", TargetID: "users"},
		},
	}
}

func TestValidateAcceptsValidDiagram(t *testing.T) {
	// Compound primary keys are allowed; multiple PrimaryKey flags per node
	// are not an error.
	require.NoError(t, Validate(validDiagram()))
}

func TestValidateRejectsUnknownDiagramKind(t *testing.T) {
	d := validDiagram()
	d.Meta.Kind = "er"
	err := Validate(d)
	assert.True(t, apperrors.IsValidation(err))
}

func TestValidateRejectsKindMismatch(t *testing.T) {
	d := validDiagram()
	d.Nodes[0].Kind = KindCollection
	err := Validate(d)
	assert.True(t, apperrors.IsValidation(err))
}

func TestValidateRejectsDuplicateNodeID(t *testing.T) {
	d := validDiagram()
	d.Nodes = append(d.Nodes, Node{ID: "users", Kind: KindTable})
	err := Validate(d)
	assert.True(t, apperrors.IsValidation(err))
}

func TestValidateRejectsDuplicateFieldID(t *testing.T) {
	d := validDiagram()
	d.Nodes[0].Fields = append(d.Nodes[0].Fields, Field{ID: "users.id"})
	err := Validate(d)
	assert.True(t, apperrors.IsValidation(err))
}

func TestValidateRejectsDanglingEdge(t *testing.T) {
	d := validDiagram()
	d.Edges = append(d.Edges, Edge{ID: "e2", SourceID: "users", TargetID: "ghost"})

	err := Validate(d)
	require.Error(t, err)
	assert.True(t, apperrors.IsDanglingReference(err), "dangling edges are a distinct error type")

	appErr := apperrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "e2", appErr.Details["edgeId"])
	assert.Equal(t, "ghost", appErr.Details["nodeId"])
}

func TestValidateDocumentDiagram(t *testing.T) {
	d := Diagram{
		Meta: Metadata{Kind: DiagramDocument},
		Nodes: []Node{
			{ID: "profiles", Kind: KindCollection},
		},
	}
	require.NoError(t, Validate(d))
}
