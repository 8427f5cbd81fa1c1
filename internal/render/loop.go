package render

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/signalsfoundry/holonet-viewer/core"
	"github.com/signalsfoundry/holonet-viewer/internal/logging"
	"github.com/signalsfoundry/holonet-viewer/model"
	"github.com/signalsfoundry/holonet-viewer/timectrl"
	"github.com/signalsfoundry/holonet-viewer/transport"
)

// Source is the loop's view of the transport manager.
type Source interface {
	State() transport.State
	Snapshot() *model.Snapshot
	Latency() (time.Duration, bool)
	Deliver(raw []byte)
}

// FrameObserver receives per-frame telemetry. Satisfied by
// *observability.ViewerCollector.
type FrameObserver interface {
	ObserveFrame(elapsed time.Duration, fps float64)
}

type pointerPos struct {
	X, Y float64
}

// Loop renders one frame per controller tick. A tick with no new packet
// redraws the previous snapshot; that is the expected steady state, not a
// stall.
type Loop struct {
	fc   *timectrl.FrameController
	src  Source
	gen  *core.Generator
	proj *core.Projector
	rend *Renderer
	log  logging.Logger
	obs  FrameObserver

	meter   FPSMeter
	pointer atomic.Pointer[pointerPos]
}

// NewLoop wires a loop; gen and obs may be nil.
func NewLoop(fc *timectrl.FrameController, src Source, gen *core.Generator, proj *core.Projector, rend *Renderer, log logging.Logger, obs FrameObserver) *Loop {
	if log == nil {
		log = logging.Noop()
	}
	return &Loop{fc: fc, src: src, gen: gen, proj: proj, rend: rend, log: log, obs: obs}
}

// SetPointer moves the hover pointer in screen coordinates. Safe to call
// from input handlers.
func (l *Loop) SetPointer(x, y float64) {
	l.pointer.Store(&pointerPos{X: x, Y: y})
}

// ClearPointer removes the hover pointer.
func (l *Loop) ClearPointer() {
	l.pointer.Store(nil)
}

// Start registers the frame listener and runs the controller until Stop.
// The returned channel closes when the loop finishes.
func (l *Loop) Start() <-chan struct{} {
	l.fc.AddListener(l.tick)
	return l.fc.Start(0)
}

// Stop halts the frame controller.
func (l *Loop) Stop() {
	l.fc.Stop()
}

func (l *Loop) tick(now time.Time, dt time.Duration) {
	start := time.Now()

	// Simulation advances by wall-clock delta and feeds the same
	// normalization path as live transports.
	if l.gen != nil && l.src.State() == transport.Simulating {
		l.gen.Advance(dt)
		l.src.Deliver(l.gen.Packet())
	}

	snap := l.src.Snapshot()
	proj := l.proj.Project(snap)
	l.meter.Tick(dt)

	st := Status{
		State: l.src.State().String(),
		FPS:   l.meter.FPS(),
		Plane: string(l.proj.Plane()),
		Slice: l.proj.Slice(),
	}
	if snap != nil {
		st.Entities = len(snap.Entities)
	}
	if rtt, ok := l.src.Latency(); ok {
		st.Latency = fmt.Sprintf("%dms", rtt.Milliseconds())
	}
	if p := l.pointer.Load(); p != nil {
		if n, ok := proj.HitTest(p.X, p.Y); ok {
			st.Hovered = &n
		}
	}

	if err := l.rend.Frame(now, proj, st); err != nil {
		l.log.Warn(context.Background(), "frame write failed", logging.Err(err))
	}
	if l.obs != nil {
		l.obs.ObserveFrame(time.Since(start), l.meter.FPS())
	}
}
