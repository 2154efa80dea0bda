// Package events defines the closed set of mutation events that fully
// describe any diagram change. Events are the unit of replication between
// editing sessions: immutable, timestamped, actor-tagged, and never edited
// after creation.
package events

import (
	"schemacanvas-backend/domain/diagram"
)

// Event type constants as they appear on the wire.
const (
	TypeNodeAdded    = "NODE_ADDED"
	TypeNodeUpdated  = "NODE_UPDATED"
	TypeNodeMoved    = "NODE_MOVED"
	TypeNodeDeleted  = "NODE_DELETED"
	TypeFieldAdded   = "FIELD_ADDED"
	TypeFieldUpdated = "FIELD_UPDATED"
	TypeFieldDeleted = "FIELD_DELETED"
	TypeEdgeAdded    = "EDGE_ADDED"
	TypeEdgeDeleted  = "EDGE_DELETED"

	// Out-of-band kinds carried only by the real-time channel. They mutate
	// presentation metadata and are never replayed into version history.
	TypeEdgeLabelMoved  = "EDGE_LABEL_MOVED"
	TypeEdgeDataPatched = "EDGE_DATA_PATCHED"
)

// Envelope carries the routing and attribution fields shared by every
// mutation. Timestamp is client wall-clock and advisory only; it is never
// used for ordering.
type Envelope struct {
	Type      string `json:"type"`
	ProjectID string `json:"projectId"`
	ActorID   string `json:"actorId"`
	Timestamp int64  `json:"timestamp"`
}

// Mutation is the sealed union of diagram mutation events. Adding a kind is a
// compile-time-checked change: the codec and the reducer switch exhaustively
// over these types.
type Mutation interface {
	Kind() string
	Project() string
	Actor() string
	isMutation()
}

func (e Envelope) Kind() string    { return e.Type }
func (e Envelope) Project() string { return e.ProjectID }
func (e Envelope) Actor() string   { return e.ActorID }
func (e Envelope) isMutation()     {}

// NodePatch is the partial-change payload of NODE_UPDATED. Nil fields are
// left untouched.
type NodePatch struct {
	Label *string           `json:"label,omitempty"`
	Kind  *diagram.NodeKind `json:"kind,omitempty"`
}

// FieldPatch is the partial-change payload of FIELD_UPDATED.
type FieldPatch struct {
	Name       *string `json:"name,omitempty"`
	Type       *string `json:"type,omitempty"`
	PrimaryKey *bool   `json:"primaryKey,omitempty"`
	ForeignKey *bool   `json:"foreignKey,omitempty"`
	Nullable   *bool   `json:"nullable,omitempty"`
	Unique     *bool   `json:"unique,omitempty"`
}

// EdgePatch is the presentation-only payload of EDGE_DATA_PATCHED.
type EdgePatch struct {
	Mappings   []diagram.FieldMapping    `json:"mappings,omitempty"`
	Constraint *diagram.ConstraintPolicy `json:"constraint,omitempty"`
}

// NodeAdded introduces a new node.
type NodeAdded struct {
	Envelope
	Node diagram.Node `json:"node"`
}

// NodeUpdated applies a partial change to a node.
type NodeUpdated struct {
	Envelope
	NodeID  string    `json:"nodeId"`
	Changes NodePatch `json:"changes"`
}

// NodeMoved repositions a node.
type NodeMoved struct {
	Envelope
	NodeID   string           `json:"nodeId"`
	Position diagram.Position `json:"position"`
}

// NodeDeleted removes a node. Incident edges are removed as part of the same
// applied transition.
type NodeDeleted struct {
	Envelope
	NodeID string `json:"nodeId"`
}

// FieldAdded appends a field to a node.
type FieldAdded struct {
	Envelope
	NodeID string        `json:"nodeId"`
	Field  diagram.Field `json:"field"`
}

// FieldUpdated applies a partial change to a field.
type FieldUpdated struct {
	Envelope
	NodeID  string     `json:"nodeId"`
	FieldID string     `json:"fieldId"`
	Changes FieldPatch `json:"changes"`
}

// FieldDeleted removes a field from a node.
type FieldDeleted struct {
	Envelope
	NodeID  string `json:"nodeId"`
	FieldID string `json:"fieldId"`
}

// EdgeAdded introduces a new edge.
type EdgeAdded struct {
	Envelope
	Edge diagram.Edge `json:"edge"`
}

// EdgeDeleted removes an edge.
type EdgeDeleted struct {
	Envelope
	EdgeID string `json:"edgeId"`
}

// EdgeLabelMoved repositions an edge label. Relay-only.
type EdgeLabelMoved struct {
	Envelope
	EdgeID string         `json:"edgeId"`
	Offset diagram.Offset `json:"offset"`
}

// EdgeDataPatched patches presentation metadata on an edge. Relay-only.
type EdgeDataPatched struct {
	Envelope
	EdgeID  string    `json:"edgeId"`
	Changes EdgePatch `json:"changes"`
}

// NewEnvelope builds the shared envelope for a mutation of the given kind.
func NewEnvelope(kind, projectID, actorID string, timestamp int64) Envelope {
	return Envelope{
		Type:      kind,
		ProjectID: projectID,
		ActorID:   actorID,
		Timestamp: timestamp,
	}
}

// OutOfBand reports whether a mutation belongs to the relay-only kinds that
// bypass version history and undo snapshots.
func OutOfBand(m Mutation) bool {
	switch m.Kind() {
	case TypeEdgeLabelMoved, TypeEdgeDataPatched:
		return true
	}
	return false
}
