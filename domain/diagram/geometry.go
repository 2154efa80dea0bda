package diagram

// NearestSide returns the side of a node at `from` that faces a node at
// `to`, based on the center-to-center vector. Horizontal wins when
// |dx| > |dy|; otherwise the vertical side is chosen.
func NearestSide(from, to Position) Side {
	dx := to.X - from.X
	dy := to.Y - from.Y

	if abs(dx) > abs(dy) {
		if dx >= 0 {
			return SideRight
		}
		return SideLeft
	}
	if dy >= 0 {
		return SideBottom
	}
	return SideTop
}

// RecomputeAnchors re-derives the attachment side of every whole-node
// anchored edge incident to the given node. Per-field anchors are pinned to
// their field row and never recomputed. This is pure derived geometry, not
// state that needs synchronization.
func RecomputeAnchors(d *Diagram, nodeID string) {
	for i := range d.Edges {
		e := &d.Edges[i]
		if e.SourceID != nodeID && e.TargetID != nodeID {
			continue
		}
		si := d.FindNode(e.SourceID)
		ti := d.FindNode(e.TargetID)
		if si < 0 || ti < 0 {
			continue
		}
		src := d.Nodes[si].Position
		tgt := d.Nodes[ti].Position
		if e.SourceAnchor.WholeNode() {
			e.SourceAnchor.Side = NearestSide(src, tgt)
		}
		if e.TargetAnchor.WholeNode() {
			e.TargetAnchor.Side = NearestSide(tgt, src)
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
