// Package core holds the viewer's domain logic: projecting canonical 3D
// entity state onto a 2D viewport and generating a local stand-in feed when
// no live transport is available.
package core

import (
	"math"

	"github.com/signalsfoundry/holonet-viewer/model"
)

// WorldExtent is the nominal half-range of world coordinates: each axis
// spans [-WorldExtent, WorldExtent].
const WorldExtent = 1.5

// Projection defaults.
const (
	DefaultSliceTolerance = 1.2
	DefaultMargin         = 20
	DefaultHitRadius      = 18.0
)

// Viewport describes the drawable screen area in pixels.
type Viewport struct {
	Width  int
	Height int
	Margin int
}

// Node is one entity mapped to screen space. Index is the entity's position
// in snapshot order, which doubles as draw order.
type Node struct {
	Entity *model.Entity
	Index  int
	X, Y   float64
}

// Edge references two nodes of the same projection that should be joined by
// an entanglement line.
type Edge struct {
	From, To int // indexes into Projection.Nodes
}

// Projection is the per-frame output of the projector. Its backing arrays
// are owned by the Projector and reused across frames; callers must not
// retain a Projection past the next Project call.
type Projection struct {
	Nodes     []Node
	Edges     []Edge
	HitRadius float64
}

// Projector maps 3D entity positions onto a 2D viewport under a selectable
// axis-aligned cutting plane, and answers pointer hit tests. It is a display
// filter only: excluded entities stay untouched in the snapshot.
//
// Not safe for concurrent use; the render loop owns it.
type Projector struct {
	plane     model.Plane
	slice     float64
	tolerance float64
	stride    int
	hitRadius float64
	vp        Viewport

	// Reused per frame to avoid reallocation at display rate.
	nodes   []Node
	edges   []Edge
	indexOf map[string]int
}

// NewProjector constructs a projector with the default xy plane, slice 0,
// tolerance 1.2, stride 1.
func NewProjector(vp Viewport) *Projector {
	if vp.Margin == 0 {
		vp.Margin = DefaultMargin
	}
	return &Projector{
		plane:     model.PlaneXY,
		tolerance: DefaultSliceTolerance,
		stride:    1,
		hitRadius: DefaultHitRadius,
		vp:        vp,
		indexOf:   make(map[string]int),
	}
}

// SetPlane selects the active cutting plane.
func (p *Projector) SetPlane(plane model.Plane) { p.plane = plane }

// Plane returns the active cutting plane.
func (p *Projector) Plane() model.Plane { return p.plane }

// SetSlice moves the depth threshold of the active plane.
func (p *Projector) SetSlice(slice float64) { p.slice = slice }

// Slice returns the current depth threshold.
func (p *Projector) Slice() float64 { return p.slice }

// SetTolerance adjusts the depth window around the slice.
func (p *Projector) SetTolerance(tol float64) {
	if tol > 0 {
		p.tolerance = tol
	}
}

// SetStride sets the level-of-detail sampling interval: only every k-th
// entity by snapshot order is projected, drawn, and hit-tested. Values
// below 1 are clamped to 1.
func (p *Projector) SetStride(k int) {
	if k < 1 {
		k = 1
	}
	p.stride = k
}

// Stride returns the current sampling interval.
func (p *Projector) Stride() int { return p.stride }

// Resize replaces the viewport dimensions. The world-to-screen transform is
// recomputed from scratch on the next Project call, never accumulated.
func (p *Projector) Resize(width, height int) {
	p.vp.Width = width
	p.vp.Height = height
}

// Project maps the snapshot's entities into screen space. Entities outside
// the slice window and off-stride entities are excluded; entanglement edges
// are emitted only when both endpoints survived the filters. Dangling
// entangled references are dropped silently.
func (p *Projector) Project(snap *model.Snapshot) Projection {
	p.nodes = p.nodes[:0]
	p.edges = p.edges[:0]
	clear(p.indexOf)

	if snap == nil {
		return Projection{HitRadius: p.hitRadius}
	}

	for i := 0; i < len(snap.Entities); i += p.stride {
		ent := &snap.Entities[i]
		h, v, depth := p.plane.Axes(ent.Position)
		if math.Abs(depth-p.slice) > p.tolerance {
			continue
		}
		x, y := p.toScreen(h, v)
		p.indexOf[ent.ID] = len(p.nodes)
		p.nodes = append(p.nodes, Node{Entity: ent, Index: i, X: x, Y: y})
	}

	for from := range p.nodes {
		for _, id := range p.nodes[from].Entity.Entangled {
			if to, ok := p.indexOf[id]; ok {
				p.edges = append(p.edges, Edge{From: from, To: to})
			}
		}
	}

	return Projection{Nodes: p.nodes, Edges: p.edges, HitRadius: p.hitRadius}
}

// toScreen fits the nominal world range into the viewport minus margins.
// The two axes scale independently; the vertical axis flips so world "up"
// is screen "up".
func (p *Projector) toScreen(h, v float64) (float64, float64) {
	m := float64(p.vp.Margin)
	spanX := float64(p.vp.Width) - 2*m
	spanY := float64(p.vp.Height) - 2*m
	x := m + (h+WorldExtent)/(2*WorldExtent)*spanX
	y := m + (WorldExtent-v)/(2*WorldExtent)*spanY
	return x, y
}

// HitTest returns the topmost node within the hit radius of the pointer:
// among all candidates in range, the one latest in draw order wins,
// regardless of distance. O(n) per query.
func (pr Projection) HitTest(x, y float64) (Node, bool) {
	var (
		hit   Node
		found bool
	)
	r2 := pr.HitRadius * pr.HitRadius
	for _, n := range pr.Nodes {
		dx := n.X - x
		dy := n.Y - y
		if dx*dx+dy*dy <= r2 {
			hit = n
			found = true
		}
	}
	return hit, found
}
