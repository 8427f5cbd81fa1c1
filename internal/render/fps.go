package render

import "time"

// EMA weights for the displayed frame rate. Heavy history smoothing keeps
// the HUD readable under jittery frame times.
const (
	fpsWeightNew = 0.08
	fpsWeightOld = 0.92
)

// FPSMeter maintains an exponentially smoothed frames-per-second estimate.
type FPSMeter struct {
	fps    float64
	primed bool
}

// Tick folds one frame interval into the estimate.
func (m *FPSMeter) Tick(dt time.Duration) {
	if dt <= 0 {
		return
	}
	instant := 1 / dt.Seconds()
	if !m.primed {
		m.fps = instant
		m.primed = true
		return
	}
	m.fps = fpsWeightNew*instant + fpsWeightOld*m.fps
}

// FPS returns the current estimate, zero before the first tick.
func (m *FPSMeter) FPS() float64 {
	return m.fps
}
