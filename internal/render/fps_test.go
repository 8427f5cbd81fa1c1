package render

import (
	"math"
	"testing"
	"time"
)

func TestFPSMeterPrimesOnFirstTick(t *testing.T) {
	var m FPSMeter
	m.Tick(20 * time.Millisecond)

	if got := m.FPS(); math.Abs(got-50) > 1e-9 {
		t.Fatalf("FPS = %v, want 50", got)
	}
}

func TestFPSMeterSmoothsSubsequentTicks(t *testing.T) {
	var m FPSMeter
	m.Tick(20 * time.Millisecond)  // 50 fps
	m.Tick(100 * time.Millisecond) // 10 fps instant

	want := 0.08*10 + 0.92*50
	if got := m.FPS(); math.Abs(got-want) > 1e-9 {
		t.Fatalf("FPS = %v, want %v", got, want)
	}
}

func TestFPSMeterIgnoresZeroDelta(t *testing.T) {
	var m FPSMeter
	m.Tick(20 * time.Millisecond)
	m.Tick(0)

	if got := m.FPS(); math.Abs(got-50) > 1e-9 {
		t.Fatalf("FPS = %v, want 50 after zero delta", got)
	}
}

func TestFPSMeterConvergesToSteadyRate(t *testing.T) {
	var m FPSMeter
	for i := 0; i < 200; i++ {
		m.Tick(33 * time.Millisecond)
	}
	want := 1 / (33 * time.Millisecond).Seconds()
	if got := m.FPS(); math.Abs(got-want) > 0.01 {
		t.Fatalf("FPS = %v, want ~%v", got, want)
	}
}
