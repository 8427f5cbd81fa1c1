package wire

import "sync"

// GridStore is the persistent sparse grid behind the op-based frame protocol.
// Frames carry only changed cells; everything else keeps its last known
// value. This is the single piece of normalization state that survives
// across packets.
type GridStore struct {
	mu     sync.Mutex
	width  int
	height int
	cells  map[CellKey]Cell
}

// NewGridStore returns an empty grid.
func NewGridStore() *GridStore {
	return &GridStore{cells: make(map[CellKey]Cell)}
}

// Apply merges a delta into the grid. A dimension change invalidates every
// retained coordinate, so the grid resets before the merge in that case.
func (g *GridStore) Apply(width, height int, delta map[CellKey]Cell) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if width > 0 && height > 0 && (width != g.width || height != g.height) {
		if g.width != 0 || g.height != 0 {
			g.cells = make(map[CellKey]Cell, len(delta))
		}
		g.width = width
		g.height = height
	}
	for k, c := range delta {
		g.cells[k] = c
	}
}

// State returns the grid dimensions and a copy of the retained cells.
func (g *GridStore) State() (width, height int, cells map[CellKey]Cell) {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make(map[CellKey]Cell, len(g.cells))
	for k, c := range g.cells {
		out[k] = c
	}
	return g.width, g.height, out
}

// Len reports how many cells currently hold a value.
func (g *GridStore) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.cells)
}

// Reset drops all retained cells and dimensions.
func (g *GridStore) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.width = 0
	g.height = 0
	g.cells = make(map[CellKey]Cell)
}
