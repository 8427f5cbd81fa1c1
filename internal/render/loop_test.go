package render

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/signalsfoundry/holonet-viewer/core"
	"github.com/signalsfoundry/holonet-viewer/model"
	"github.com/signalsfoundry/holonet-viewer/timectrl"
	"github.com/signalsfoundry/holonet-viewer/transport"
)

type fakeSource struct {
	mu        sync.Mutex
	state     transport.State
	snap      *model.Snapshot
	delivered [][]byte
}

func (s *fakeSource) State() transport.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *fakeSource) Snapshot() *model.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

func (s *fakeSource) Latency() (time.Duration, bool) { return 0, false }

func (s *fakeSource) Deliver(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, raw)
}

func (s *fakeSource) deliveredCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.delivered)
}

type lockedWriter struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *lockedWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func runLoop(t *testing.T, l *Loop, d time.Duration) {
	t.Helper()
	done := l.Start()
	time.Sleep(d)
	l.Stop()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}

func TestLoopRendersLatestSnapshot(t *testing.T) {
	out := &lockedWriter{}
	src := &fakeSource{
		state: transport.Streaming,
		snap: &model.Snapshot{Entities: []model.Entity{
			{ID: "e1", Glyphs: []string{"Ω"}, Amplitude: 0.5},
		}},
	}
	fc := timectrl.NewFrameController(5*time.Millisecond, timectrl.Paced)
	proj := core.NewProjector(core.Viewport{Width: 40, Height: 20, Margin: 2})
	l := NewLoop(fc, src, nil, proj, NewRenderer(out, 40, 20, false), nil, nil)

	runLoop(t, l, 40*time.Millisecond)

	text := out.String()
	if !strings.ContainsRune(text, 'Ω') {
		t.Fatal("rendered output missing the entity glyph")
	}
	// Same snapshot redrawn every tick, one home sequence per frame.
	if strings.Count(text, "\x1b[H") < 2 {
		t.Fatal("expected multiple frames over the run")
	}
}

func TestLoopAdvancesGeneratorWhileSimulating(t *testing.T) {
	out := &lockedWriter{}
	src := &fakeSource{state: transport.Simulating}
	fc := timectrl.NewFrameController(5*time.Millisecond, timectrl.Paced)
	proj := core.NewProjector(core.Viewport{Width: 40, Height: 20, Margin: 2})
	gen := core.NewGenerator(3)
	l := NewLoop(fc, src, gen, proj, NewRenderer(out, 40, 20, false), nil, nil)

	runLoop(t, l, 40*time.Millisecond)

	if src.deliveredCount() == 0 {
		t.Fatal("generator packets never delivered to the source")
	}
}

func TestLoopSkipsGeneratorWhileStreaming(t *testing.T) {
	out := &lockedWriter{}
	src := &fakeSource{state: transport.Streaming}
	fc := timectrl.NewFrameController(5*time.Millisecond, timectrl.Paced)
	proj := core.NewProjector(core.Viewport{Width: 40, Height: 20, Margin: 2})
	gen := core.NewGenerator(3)
	l := NewLoop(fc, src, gen, proj, NewRenderer(out, 40, 20, false), nil, nil)

	runLoop(t, l, 30*time.Millisecond)

	if src.deliveredCount() != 0 {
		t.Fatal("generator ran while a live stream was active")
	}
}

func TestLoopHoverShowsHitEntity(t *testing.T) {
	out := &lockedWriter{}
	vp := core.Viewport{Width: 40, Height: 20, Margin: 2}
	proj := core.NewProjector(vp)
	src := &fakeSource{
		state: transport.Streaming,
		snap: &model.Snapshot{Entities: []model.Entity{
			{ID: "hover-target", Glyphs: []string{"Ω"}, Amplitude: 0.5},
		}},
	}
	// Entity at world origin projects to the viewport center.
	pre := proj.Project(src.snap)
	if len(pre.Nodes) != 1 {
		t.Fatalf("nodes = %d, want 1", len(pre.Nodes))
	}
	cx, cy := pre.Nodes[0].X, pre.Nodes[0].Y

	fc := timectrl.NewFrameController(5*time.Millisecond, timectrl.Paced)
	l := NewLoop(fc, src, nil, proj, NewRenderer(out, 40, 20, false), nil, nil)
	l.SetPointer(cx, cy)

	runLoop(t, l, 30*time.Millisecond)

	if !strings.Contains(out.String(), "hover-target") {
		t.Fatal("hover line missing the hit entity")
	}
}
