package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ViewerCollector bundles Prometheus metrics for the viewer: transport
// health, packet decoding, and render-loop throughput.
type ViewerCollector struct {
	gatherer prometheus.Gatherer

	PacketsTotal      *prometheus.CounterVec
	PacketErrorsTotal *prometheus.CounterVec
	TransitionsTotal  *prometheus.CounterVec
	ReconnectsTotal   prometheus.Counter

	ConnectionState prometheus.Gauge
	LatencyMillis   prometheus.Gauge

	FramesRendered prometheus.Counter
	FramesPerSec   prometheus.Gauge
	FrameDuration  prometheus.Histogram
}

// NewViewerCollector registers viewer Prometheus metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewViewerCollector(reg prometheus.Registerer) (*ViewerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	packets := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "viewer_packets_total",
		Help: "Total number of decoded state packets, labeled by wire shape.",
	}, []string{"shape"})
	packets, err := registerCounterVec(reg, packets, "viewer_packets_total")
	if err != nil {
		return nil, err
	}

	packetErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "viewer_packet_errors_total",
		Help: "Total number of packets dropped during decoding, labeled by reason.",
	}, []string{"reason"})
	packetErrors, err = registerCounterVec(reg, packetErrors, "viewer_packet_errors_total")
	if err != nil {
		return nil, err
	}

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "viewer_connection_transitions_total",
		Help: "Connection state machine transitions, labeled by from and to states.",
	}, []string{"from", "to"})
	transitions, err = registerCounterVec(reg, transitions, "viewer_connection_transitions_total")
	if err != nil {
		return nil, err
	}

	reconnects, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "viewer_reconnect_attempts_total",
		Help: "Total number of websocket dial attempts after the first.",
	}), "viewer_reconnect_attempts_total")
	if err != nil {
		return nil, err
	}

	connState, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "viewer_connection_state",
		Help: "Current connection state as an enum ordinal (0=idle through 5=closed).",
	}), "viewer_connection_state")
	if err != nil {
		return nil, err
	}

	latency, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "viewer_latency_milliseconds",
		Help: "Most recent round-trip latency measured from echoed ping timestamps.",
	}), "viewer_latency_milliseconds")
	if err != nil {
		return nil, err
	}

	frames, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "viewer_frames_rendered_total",
		Help: "Total number of frames drawn by the render loop.",
	}), "viewer_frames_rendered_total")
	if err != nil {
		return nil, err
	}

	fps, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "viewer_frames_per_second",
		Help: "Smoothed frames-per-second estimate from the render loop.",
	}), "viewer_frames_per_second")
	if err != nil {
		return nil, err
	}

	frameDur := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "viewer_frame_duration_seconds",
		Help:    "Wall-clock time spent composing and writing a single frame.",
		Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.0166, 0.033, 0.05, 0.1, 0.25},
	})
	frameDur, err = registerHistogram(reg, frameDur, "viewer_frame_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &ViewerCollector{
		gatherer:          gatherer,
		PacketsTotal:      packets,
		PacketErrorsTotal: packetErrors,
		TransitionsTotal:  transitions,
		ReconnectsTotal:   reconnects,
		ConnectionState:   connState,
		LatencyMillis:     latency,
		FramesRendered:    frames,
		FramesPerSec:      fps,
		FrameDuration:     frameDur,
	}, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *ViewerCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObservePacket records a successfully decoded packet of the given shape.
func (c *ViewerCollector) ObservePacket(shape string) {
	if c == nil || c.PacketsTotal == nil {
		return
	}
	c.PacketsTotal.WithLabelValues(shape).Inc()
}

// ObservePacketError records a dropped packet with a short reason label.
func (c *ViewerCollector) ObservePacketError(reason string) {
	if c == nil || c.PacketErrorsTotal == nil {
		return
	}
	c.PacketErrorsTotal.WithLabelValues(reason).Inc()
}

// ObserveTransition records a connection state machine edge and updates the
// current-state gauge.
func (c *ViewerCollector) ObserveTransition(from, to string, ordinal int) {
	if c == nil {
		return
	}
	if c.TransitionsTotal != nil {
		c.TransitionsTotal.WithLabelValues(from, to).Inc()
	}
	if c.ConnectionState != nil {
		c.ConnectionState.Set(float64(ordinal))
	}
}

// ObserveReconnect counts a repeat dial attempt.
func (c *ViewerCollector) ObserveReconnect() {
	if c == nil || c.ReconnectsTotal == nil {
		return
	}
	c.ReconnectsTotal.Inc()
}

// ObserveLatency records a round-trip measurement.
func (c *ViewerCollector) ObserveLatency(rtt time.Duration) {
	if c == nil || c.LatencyMillis == nil {
		return
	}
	c.LatencyMillis.Set(float64(rtt.Milliseconds()))
}

// ObserveFrame records a completed frame and the smoothed FPS estimate.
func (c *ViewerCollector) ObserveFrame(elapsed time.Duration, fps float64) {
	if c == nil {
		return
	}
	if c.FramesRendered != nil {
		c.FramesRendered.Inc()
	}
	if c.FrameDuration != nil {
		c.FrameDuration.Observe(elapsed.Seconds())
	}
	if c.FramesPerSec != nil {
		c.FramesPerSec.Set(fps)
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
