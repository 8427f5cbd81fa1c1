// Package render draws canonical snapshots as ANSI terminal frames and runs
// the frame-paced loop that keeps the display independent of packet cadence.
package render

import (
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/signalsfoundry/holonet-viewer/core"
)

// Background grid pitch in cells.
const (
	gridStepX = 10
	gridStepY = 5
)

// ampRamp maps amplitude buckets to ANSI-256 colors, cold to hot.
var ampRamp = []string{"23", "29", "36", "42", "46", "83", "119", "190", "226"}

// Status is the HUD state for one frame.
type Status struct {
	State    string
	FPS      float64
	Latency  string
	Entities int
	Plane    string
	Slice    float64
	Hovered  *core.Node
}

type cell struct {
	ch    rune
	style *lipgloss.Style
}

// Renderer composes frames into a cell buffer and writes them as ANSI text.
// Not safe for concurrent use; the render loop owns it.
type Renderer struct {
	w      io.Writer
	width  int
	height int
	color  bool

	cells []cell
	buf   strings.Builder
	first bool

	gridStyle  lipgloss.Style
	edgeStyle  lipgloss.Style
	hudStyle   lipgloss.Style
	alertStyle lipgloss.Style
	ampStyles  []lipgloss.Style
}

// NewRenderer builds a renderer for a width x height cell viewport writing
// to w. Disable color for tests and dumb terminals.
func NewRenderer(w io.Writer, width, height int, color bool) *Renderer {
	r := &Renderer{
		w:      w,
		width:  width,
		height: height,
		color:  color,
		cells:  make([]cell, width*height),
		first:  true,

		gridStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		edgeStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("60")),
		hudStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		alertStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
	}
	r.ampStyles = make([]lipgloss.Style, len(ampRamp))
	for i, c := range ampRamp {
		r.ampStyles[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(c)).Bold(true)
	}
	return r
}

// Resize replaces the cell buffer dimensions. The next frame redraws from
// scratch.
func (r *Renderer) Resize(width, height int) {
	r.width = width
	r.height = height
	r.cells = make([]cell, width*height)
	r.first = true
}

// Size returns the viewport dimensions in cells.
func (r *Renderer) Size() (int, int) {
	return r.width, r.height
}

// Frame draws one frame: background grid, entanglement edges, nodes with
// time-cycled glyphs, then the HUD. The glyph cycle follows wall-clock time
// so playback speed is independent of frame rate.
func (r *Renderer) Frame(now time.Time, proj core.Projection, st Status) error {
	r.clearCells()
	r.drawGrid()
	for _, e := range proj.Edges {
		r.drawEdge(proj.Nodes[e.From], proj.Nodes[e.To])
	}
	for _, n := range proj.Nodes {
		r.drawNode(now, n)
	}
	return r.flush(st)
}

func (r *Renderer) clearCells() {
	for i := range r.cells {
		r.cells[i] = cell{ch: ' '}
	}
}

func (r *Renderer) drawGrid() {
	for y := 0; y < r.height; y += gridStepY {
		for x := 0; x < r.width; x += gridStepX {
			r.put(x, y, '·', &r.gridStyle)
		}
	}
}

// drawEdge rasterizes the entanglement line between two nodes.
func (r *Renderer) drawEdge(a, b core.Node) {
	x0, y0 := int(math.Round(a.X)), int(math.Round(a.Y))
	x1, y1 := int(math.Round(b.X)), int(math.Round(b.Y))

	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		r.put(x0, y0, '∙', &r.edgeStyle)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func (r *Renderer) drawNode(now time.Time, n core.Node) {
	glyph := CycleGlyph(now, n.Entity.Glyphs)
	style := r.ampStyle(n.Entity.Amplitude)
	x := int(math.Round(n.X))
	y := int(math.Round(n.Y))
	r.put(x, y, glyph, style)
	if n.Entity.Superposition {
		r.put(x-1, y, '⟨', style)
		r.put(x+1, y, '⟩', style)
	}
}

func (r *Renderer) ampStyle(amp float64) *lipgloss.Style {
	idx := int(amp * float64(len(r.ampStyles)))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(r.ampStyles) {
		idx = len(r.ampStyles) - 1
	}
	return &r.ampStyles[idx]
}

func (r *Renderer) put(x, y int, ch rune, style *lipgloss.Style) {
	if x < 0 || x >= r.width || y < 0 || y >= r.height {
		return
	}
	r.cells[y*r.width+x] = cell{ch: ch, style: style}
}

func (r *Renderer) flush(st Status) error {
	r.buf.Reset()
	if r.first {
		r.buf.WriteString("\x1b[2J")
		r.first = false
	}
	r.buf.WriteString("\x1b[H")

	r.buf.WriteString(r.hudLine(st))
	r.buf.WriteByte('\n')

	for y := 0; y < r.height; y++ {
		for x := 0; x < r.width; x++ {
			c := r.cells[y*r.width+x]
			if r.color && c.style != nil && c.ch != ' ' {
				r.buf.WriteString(c.style.Render(string(c.ch)))
			} else {
				r.buf.WriteRune(c.ch)
			}
		}
		r.buf.WriteByte('\n')
	}

	r.buf.WriteString(r.hoverLine(st))
	r.buf.WriteByte('\n')

	_, err := io.WriteString(r.w, r.buf.String())
	return err
}

// hudLine renders the status strip: connection indicator, fps, latency,
// plane and entity count.
func (r *Renderer) hudLine(st Status) string {
	indicator := stateIndicator(st.State)
	latency := st.Latency
	if latency == "" {
		latency = "--"
	}
	line := fmt.Sprintf("%s %-10s  fps %5.1f  rtt %-8s  plane %s @ %+.2f  entities %d",
		indicator, st.State, st.FPS, latency, st.Plane, st.Slice, st.Entities)
	if !r.color {
		return line
	}
	if st.State == "streaming" || st.State == "simulating" || st.State == "polling" {
		return r.hudStyle.Render(line)
	}
	return r.alertStyle.Render(line)
}

func (r *Renderer) hoverLine(st Status) string {
	if st.Hovered == nil {
		return strings.Repeat(" ", min(r.width, 8))
	}
	e := st.Hovered.Entity
	line := fmt.Sprintf("▸ %s  amp %.2f  phase %.2f  pos (%.2f, %.2f, %.2f)  entangled %d",
		e.ID, e.Amplitude, e.Phase, e.Position.X, e.Position.Y, e.Position.Z, len(e.Entangled))
	if e.VolitionIntent != "" {
		line += "  intent " + e.VolitionIntent
	}
	if !r.color {
		return line
	}
	return r.hudStyle.Render(line)
}

func stateIndicator(state string) string {
	switch state {
	case "streaming":
		return "●"
	case "polling", "simulating":
		return "◐"
	case "connecting", "retrying":
		return "◌"
	default:
		return "○"
	}
}

// CycleGlyph picks the glyph for the current wall-clock instant at two
// steps per second. An empty cycle yields a space.
func CycleGlyph(now time.Time, glyphs []string) rune {
	if len(glyphs) == 0 {
		return ' '
	}
	idx := int(now.UnixMilli()/500) % len(glyphs)
	if idx < 0 {
		idx += len(glyphs)
	}
	runes := []rune(glyphs[idx])
	if len(runes) == 0 {
		return ' '
	}
	return runes[0]
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
