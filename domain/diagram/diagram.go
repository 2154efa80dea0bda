package diagram

// NodeKind discriminates relational tables from document collections.
type NodeKind string

const (
	KindTable      NodeKind = "table"
	KindCollection NodeKind = "collection"
)

// DiagramKind is the kind of the whole diagram. Every node kind must agree
// with it.
type DiagramKind string

const (
	DiagramRelational DiagramKind = "relational"
	DiagramDocument   DiagramKind = "document"
)

// NodeKindFor returns the node kind a diagram kind implies.
func (k DiagramKind) NodeKindFor() NodeKind {
	if k == DiagramDocument {
		return KindCollection
	}
	return KindTable
}

// Cardinality tags a field mapping on an edge.
type Cardinality string

const (
	OneToOne   Cardinality = "1:1"
	OneToMany  Cardinality = "1:N"
	ManyToMany Cardinality = "N:M"
)

// Position is a 2D canvas position.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Offset is a manual label-offset override on an edge.
type Offset struct {
	DX float64 `json:"dx"`
	DY float64 `json:"dy"`
}

// Field is a column (table) or property (collection) of a node. Multiple
// fields may carry the PrimaryKey flag; compound keys are permitted.
type Field struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Type       string `json:"type"`
	PrimaryKey bool   `json:"primaryKey"`
	ForeignKey bool   `json:"foreignKey"`
	Nullable   bool   `json:"nullable"`
	Unique     bool   `json:"unique"`
}

// Node is a table or collection on the canvas. Field ids are unique within a
// node.
type Node struct {
	ID       string   `json:"id"`
	Kind     NodeKind `json:"kind"`
	Position Position `json:"position"`
	Label    string   `json:"label"`
	Fields   []Field  `json:"fields"`
}

// FieldMapping relates a source field to a target field on an edge.
type FieldMapping struct {
	SourceField string      `json:"sourceField"`
	TargetField string      `json:"targetField"`
	Cardinality Cardinality `json:"cardinality"`
}

// ConstraintPolicy holds referential actions for an edge.
type ConstraintPolicy struct {
	OnDelete string `json:"onDelete,omitempty"`
	OnUpdate string `json:"onUpdate,omitempty"`
}

// Side is the node side an edge endpoint attaches to.
type Side string

const (
	SideTop    Side = "top"
	SideRight  Side = "right"
	SideBottom Side = "bottom"
	SideLeft   Side = "left"
)

// Anchor describes how an edge endpoint attaches to a node. A FieldID pins
// the endpoint to a specific field row; an empty FieldID anchors to the whole
// node, and the side is then derived from geometry.
type Anchor struct {
	Side    Side   `json:"side,omitempty"`
	FieldID string `json:"fieldId,omitempty"`
}

// WholeNode reports whether the anchor is node-level rather than per-field.
func (a Anchor) WholeNode() bool {
	return a.FieldID == ""
}

// Edge is a relationship between two nodes. SourceID and TargetID must both
// resolve; a dangling edge is rejected at save time.
type Edge struct {
	ID           string            `json:"id"`
	SourceID     string            `json:"sourceId"`
	TargetID     string            `json:"targetId"`
	SourceAnchor Anchor            `json:"sourceAnchor"`
	TargetAnchor Anchor            `json:"targetAnchor"`
	Mappings     []FieldMapping    `json:"mappings"`
	Constraint   *ConstraintPolicy `json:"constraint,omitempty"`
	LabelOffset  *Offset           `json:"labelOffset,omitempty"`
}

// Metadata carries the diagram version counter, its kind, and presentation
// settings that do not affect semantic validity.
type Metadata struct {
	Version   int         `json:"version"`
	Kind      DiagramKind `json:"kind"`
	Theme     string      `json:"theme,omitempty"`
	EdgeStyle string      `json:"edgeStyle,omitempty"`
}

// Diagram is the aggregate: nodes, edges, and metadata of one project's
// schema design.
type Diagram struct {
	Nodes []Node   `json:"nodes"`
	Edges []Edge   `json:"edges"`
	Meta  Metadata `json:"meta"`
}

// NewDiagram creates an empty diagram of the given kind.
func NewDiagram(kind DiagramKind) Diagram {
	return Diagram{
		Nodes: []Node{},
		Edges: []Edge{},
		Meta:  Metadata{Version: 0, Kind: kind},
	}
}

// FindNode returns the index of a node by id, or -1.
func (d Diagram) FindNode(id string) int {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return i
		}
	}
	return -1
}

// FindEdge returns the index of an edge by id, or -1.
func (d Diagram) FindEdge(id string) int {
	for i := range d.Edges {
		if d.Edges[i].ID == id {
			return i
		}
	}
	return -1
}

// FindField returns the index of a field by id, or -1.
func (n Node) FindField(id string) int {
	for i := range n.Fields {
		if n.Fields[i].ID == id {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := n
	out.Fields = make([]Field, len(n.Fields))
	copy(out.Fields, n.Fields)
	return out
}

// Clone returns a deep copy of the edge.
func (e Edge) Clone() Edge {
	out := e
	out.Mappings = make([]FieldMapping, len(e.Mappings))
	copy(out.Mappings, e.Mappings)
	if e.Constraint != nil {
		c := *e.Constraint
		out.Constraint = &c
	}
	if e.LabelOffset != nil {
		o := *e.LabelOffset
		out.LabelOffset = &o
	}
	return out
}

// Clone returns a deep copy of the diagram.
func (d Diagram) Clone() Diagram {
	out := d
	out.Nodes = CloneNodes(d.Nodes)
	out.Edges = CloneEdges(d.Edges)
	return out
}

// CloneNodes deep-copies a node slice.
func CloneNodes(nodes []Node) []Node {
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		out[i] = n.Clone()
	}
	return out
}

// CloneEdges deep-copies an edge slice.
func CloneEdges(edges []Edge) []Edge {
	out := make([]Edge, len(edges))
	for i, e := range edges {
		out[i] = e.Clone()
	}
	return out
}
