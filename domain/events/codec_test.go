package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"schemacanvas-backend/domain/diagram"
)

func TestEncodeFlattensEnvelope(t *testing.T) {
	m := &NodeMoved{
		Envelope: NewEnvelope(TypeNodeMoved, "proj-1", "actor-1", 1700000000),
		NodeID:   "users",
		Position: diagram.Position{X: 120, Y: 80},
	}

	data, err := Encode(m)
	require.NoError(t, err)

	var wire map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.Equal(t, "NODE_MOVED", wire["type"])
	assert.Equal(t, "proj-1", wire["projectId"])
	assert.Equal(t, "actor-1", wire["actorId"])
	assert.Contains(t, wire, "nodeId", "payload fields sit beside the envelope, not nested")
}

func TestDecodeRoundTrip(t *testing.T) {
	src := &EdgeAdded{
		Envelope: NewEnvelope(TypeEdgeAdded, "proj-1", "actor-2", 1700000001),
		Edge: diagram.Edge{
			ID:       "e1",
			SourceID: "orders",
			TargetID: "users",
			Mappings: []diagram.FieldMapping{
				{SourceField: "orders.user_id", TargetField: "users.id", Cardinality: diagram.OneToMany},
			},
		},
	}

	data, err := Encode(src)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	got, ok := decoded.(*EdgeAdded)
	require.True(t, ok)
	assert.Equal(t, src.Edge, got.Edge)
	assert.Equal(t, "proj-1", got.Project())
	assert.Equal(t, "actor-2", got.Actor())
}

func TestDecodeUnknownType(t *testing.T) {
	data := []byte(`{"type":"NODE_EXPLODED","projectId":"p","actorId":"a","timestamp":1}`)

	_, err := Decode(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownEventType)
}

func TestDecodeMalformedPayload(t *testing.T) {
	data := []byte(`{"type":"NODE_MOVED","nodeId":"n","position":"not-an-object"}`)

	_, err := Decode(data)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrUnknownEventType, "malformed payloads are plain errors, not unknown types")
}

func TestDecodeConcreteTypes(t *testing.T) {
	tests := []struct {
		wireType string
		want     Mutation
	}{
		{TypeNodeAdded, &NodeAdded{}},
		{TypeNodeUpdated, &NodeUpdated{}},
		{TypeNodeMoved, &NodeMoved{}},
		{TypeNodeDeleted, &NodeDeleted{}},
		{TypeFieldAdded, &FieldAdded{}},
		{TypeFieldUpdated, &FieldUpdated{}},
		{TypeFieldDeleted, &FieldDeleted{}},
		{TypeEdgeAdded, &EdgeAdded{}},
		{TypeEdgeDeleted, &EdgeDeleted{}},
		{TypeEdgeLabelMoved, &EdgeLabelMoved{}},
		{TypeEdgeDataPatched, &EdgeDataPatched{}},
	}
	for _, tt := range tests {
		t.Run(tt.wireType, func(t *testing.T) {
			data := []byte(`{"type":"` + tt.wireType + `","projectId":"p","actorId":"a","timestamp":1}`)
			m, err := Decode(data)
			require.NoError(t, err)
			assert.IsType(t, tt.want, m)
			assert.Equal(t, tt.wireType, m.Kind())
		})
	}
}

func TestOutOfBand(t *testing.T) {
	assert.True(t, OutOfBand(&EdgeLabelMoved{Envelope: NewEnvelope(TypeEdgeLabelMoved, "p", "a", 1)}))
	assert.True(t, OutOfBand(&EdgeDataPatched{Envelope: NewEnvelope(TypeEdgeDataPatched, "p", "a", 1)}))
	assert.False(t, OutOfBand(&NodeAdded{Envelope: NewEnvelope(TypeNodeAdded, "p", "a", 1)}))
}
