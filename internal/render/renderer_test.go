package render

import (
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/holonet-viewer/core"
	"github.com/signalsfoundry/holonet-viewer/model"
)

func projectionOf(vp core.Viewport, entities ...model.Entity) core.Projection {
	p := core.NewProjector(vp)
	return p.Project(&model.Snapshot{Entities: entities})
}

func TestFrameDrawsNodeGlyph(t *testing.T) {
	var out strings.Builder
	r := NewRenderer(&out, 40, 20, false)

	proj := projectionOf(core.Viewport{Width: 40, Height: 20, Margin: 2},
		model.Entity{ID: "e1", Glyphs: []string{"Ω"}, Amplitude: 0.5},
	)
	if err := r.Frame(time.Unix(0, 0), proj, Status{State: "streaming"}); err != nil {
		t.Fatalf("Frame: %v", err)
	}

	if !strings.ContainsRune(out.String(), 'Ω') {
		t.Fatal("frame does not contain the node glyph")
	}
}

func TestFrameGlyphCyclesByWallClock(t *testing.T) {
	glyphs := []string{"Ω", "Ψ", "Φ"}

	// Two steps per second: 500ms apart picks adjacent glyphs.
	at0 := CycleGlyph(time.UnixMilli(0), glyphs)
	at500 := CycleGlyph(time.UnixMilli(500), glyphs)
	at1000 := CycleGlyph(time.UnixMilli(1000), glyphs)
	at1500 := CycleGlyph(time.UnixMilli(1500), glyphs)

	if at0 != 'Ω' || at500 != 'Ψ' || at1000 != 'Φ' || at1500 != 'Ω' {
		t.Fatalf("cycle = %c %c %c %c, want Ω Ψ Φ Ω", at0, at500, at1000, at1500)
	}
}

func TestCycleGlyphEmptySet(t *testing.T) {
	if got := CycleGlyph(time.Now(), nil); got != ' ' {
		t.Fatalf("CycleGlyph(nil) = %q, want space", got)
	}
}

func TestFrameDrawsEntanglementEdge(t *testing.T) {
	var out strings.Builder
	r := NewRenderer(&out, 40, 20, false)

	proj := projectionOf(core.Viewport{Width: 40, Height: 20, Margin: 2},
		model.Entity{ID: "a", Glyphs: []string{"A"}, Position: model.Vec3{X: -1, Y: 0}, Entangled: []string{"b"}},
		model.Entity{ID: "b", Glyphs: []string{"B"}, Position: model.Vec3{X: 1, Y: 0}},
	)
	if len(proj.Edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(proj.Edges))
	}
	if err := r.Frame(time.Unix(0, 0), proj, Status{}); err != nil {
		t.Fatalf("Frame: %v", err)
	}

	if !strings.ContainsRune(out.String(), '∙') {
		t.Fatal("frame does not contain edge cells")
	}
}

func TestFrameHUDShowsConnectionState(t *testing.T) {
	var out strings.Builder
	r := NewRenderer(&out, 40, 10, false)

	err := r.Frame(time.Unix(0, 0), core.Projection{}, Status{
		State:    "retrying",
		FPS:      29.7,
		Latency:  "12ms",
		Plane:    "xy",
		Entities: 0,
	})
	if err != nil {
		t.Fatalf("Frame: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "retrying") {
		t.Fatal("HUD missing connection state")
	}
	if !strings.Contains(text, "12ms") {
		t.Fatal("HUD missing latency")
	}
}

func TestFrameHoverLineShowsEntityDetail(t *testing.T) {
	var out strings.Builder
	r := NewRenderer(&out, 60, 20, false)

	vp := core.Viewport{Width: 60, Height: 20, Margin: 2}
	proj := projectionOf(vp, model.Entity{
		ID: "e1", Glyphs: []string{"Ω"}, Amplitude: 0.8, Phase: 1.25,
		VolitionIntent: "seek", Entangled: []string{"e2"},
	})
	hovered := proj.Nodes[0]

	if err := r.Frame(time.Unix(0, 0), proj, Status{Hovered: &hovered}); err != nil {
		t.Fatalf("Frame: %v", err)
	}

	text := out.String()
	if !strings.Contains(text, "e1") || !strings.Contains(text, "seek") {
		t.Fatalf("hover line missing entity detail:\n%s", text)
	}
}

func TestFrameClearsScreenOnlyOnce(t *testing.T) {
	var out strings.Builder
	r := NewRenderer(&out, 20, 10, false)

	if err := r.Frame(time.Unix(0, 0), core.Projection{}, Status{}); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if err := r.Frame(time.Unix(0, 0), core.Projection{}, Status{}); err != nil {
		t.Fatalf("Frame: %v", err)
	}

	if got := strings.Count(out.String(), "\x1b[2J"); got != 1 {
		t.Fatalf("clear sequences = %d, want 1", got)
	}
	if got := strings.Count(out.String(), "\x1b[H"); got != 2 {
		t.Fatalf("home sequences = %d, want 2", got)
	}
}

func TestResizeRedrawsFromScratch(t *testing.T) {
	var out strings.Builder
	r := NewRenderer(&out, 20, 10, false)

	if err := r.Frame(time.Unix(0, 0), core.Projection{}, Status{}); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	r.Resize(30, 12)
	if w, h := r.Size(); w != 30 || h != 12 {
		t.Fatalf("Size = %dx%d, want 30x12", w, h)
	}
	if err := r.Frame(time.Unix(0, 0), core.Projection{}, Status{}); err != nil {
		t.Fatalf("Frame after resize: %v", err)
	}

	if got := strings.Count(out.String(), "\x1b[2J"); got != 2 {
		t.Fatalf("clear sequences = %d, want 2 after resize", got)
	}
}

func TestFrameOffscreenNodeIsDropped(t *testing.T) {
	var out strings.Builder
	r := NewRenderer(&out, 20, 10, false)

	// Position far outside the nominal world range lands off-viewport.
	proj := projectionOf(core.Viewport{Width: 20, Height: 10, Margin: 2},
		model.Entity{ID: "far", Glyphs: []string{"X"}, Position: model.Vec3{X: 40}},
	)
	if err := r.Frame(time.Unix(0, 0), proj, Status{}); err != nil {
		t.Fatalf("Frame: %v", err)
	}
	if strings.ContainsRune(out.String(), 'X') {
		t.Fatal("offscreen node was drawn")
	}
}
