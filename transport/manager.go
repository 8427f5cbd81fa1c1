package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/signalsfoundry/holonet-viewer/internal/logging"
	"github.com/signalsfoundry/holonet-viewer/model"
	"github.com/signalsfoundry/holonet-viewer/wire"
)

const (
	defaultOpenTimeout    = 4 * time.Second
	defaultPollInterval   = 250 * time.Millisecond
	defaultHeartbeatIdle  = 15 * time.Second
	defaultHeartbeatProbe = 250 * time.Millisecond
)

// Dialer opens a streaming connection to an endpoint.
type Dialer interface {
	Dial(ctx context.Context, endpoint, token string) (Conn, error)
}

// Conn is a bidirectional message channel. ReadMessage blocks until a
// message arrives or the connection fails.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Poller fetches one state document per call.
type Poller interface {
	Poll(ctx context.Context) ([]byte, error)
}

// Observer receives transport health signals. It is satisfied by
// *observability.ViewerCollector.
type Observer interface {
	ObservePacket(shape string)
	ObservePacketError(reason string)
	ObserveTransition(from, to string, ordinal int)
	ObserveReconnect()
	ObserveLatency(rtt time.Duration)
}

// Options configures a Manager. Zero durations take the documented defaults.
type Options struct {
	Dialer Dialer
	Poller Poller

	OpenTimeout    time.Duration
	PollInterval   time.Duration
	HeartbeatIdle  time.Duration
	HeartbeatProbe time.Duration

	BackoffInitial time.Duration
	BackoffFactor  float64
	BackoffMax     time.Duration

	Logger   logging.Logger
	Observer Observer

	// OnPacket is invoked once per received unit of raw data regardless of
	// transport, before normalization.
	OnPacket func(raw []byte)
	// OnStatus is invoked on every state transition, from the event loop.
	OnStatus func(from, to State, err error)
}

type eventKind int

const (
	evDial eventKind = iota
	evPacket
	evReadError
	evPollResult
)

type event struct {
	epoch int
	kind  eventKind
	conn  Conn
	raw   []byte
	err   error
}

// Manager owns the connection lifecycle. All state transitions happen on a
// single event-loop goroutine; exported methods post commands to it and
// never touch state directly. The current snapshot slot is the only value
// shared with the render loop, published atomically with last-writer-wins
// semantics.
type Manager struct {
	opts    Options
	baseLog logging.Logger
	log     logging.Logger
	dec     *wire.Decoder

	cmds   chan func()
	events chan event
	done   chan struct{}

	// Fields below are owned by the event loop. ctx carries the session ID
	// for the current connection lifecycle; a new Connect mints a new one.
	ctx             context.Context
	state           State
	epoch           int
	conn            Conn
	endpoint, token string
	bo              *backoff
	dialed          bool
	probing         bool
	pollingFallback bool
	pollInFlight    bool
	retryTimer      *time.Timer
	heartbeatTimer  *time.Timer
	pollTimer       *time.Timer

	stateMirror  atomic.Int32
	snap         atomic.Pointer[model.Snapshot]
	latencyNanos atomic.Int64
}

// New constructs a Manager and starts its event loop.
func New(opts Options) *Manager {
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = defaultOpenTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.HeartbeatIdle <= 0 {
		opts.HeartbeatIdle = defaultHeartbeatIdle
	}
	if opts.HeartbeatProbe <= 0 {
		opts.HeartbeatProbe = defaultHeartbeatProbe
	}
	log := opts.Logger
	if log == nil {
		log = logging.Noop()
	}

	m := &Manager{
		opts:    opts,
		baseLog: log,
		log:     log,
		dec:     wire.NewDecoder(),
		ctx:     context.Background(),
		cmds:    make(chan func(), 16),
		events:  make(chan event, 16),
		done:    make(chan struct{}),
		bo:      newBackoff(opts.BackoffInitial, opts.BackoffFactor, opts.BackoffMax),
	}
	m.latencyNanos.Store(-1)
	go m.loop()
	return m
}

// State returns the current connection state.
func (m *Manager) State() State {
	return State(m.stateMirror.Load())
}

// Snapshot returns the most recently published snapshot, or nil before the
// first packet.
func (m *Manager) Snapshot() *model.Snapshot {
	return m.snap.Load()
}

// Latency returns the last estimated round-trip time. ok is false while no
// echoed timestamp has been observed.
func (m *Manager) Latency() (time.Duration, bool) {
	n := m.latencyNanos.Load()
	if n < 0 {
		return 0, false
	}
	return time.Duration(n), true
}

// Done is closed once the manager has shut down after Disconnect.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Connect requests a streaming connection to the endpoint. Credentials are
// optional; pass an empty token for open servers.
func (m *Manager) Connect(endpoint, token string) {
	m.post(func() { m.handleConnect(endpoint, token) })
}

// Disconnect tears down any live transport, releases all timers, and moves
// to Closed. The manager cannot be reused afterwards.
func (m *Manager) Disconnect() {
	m.post(func() {
		m.teardown()
		m.transition(Closed, nil)
	})
}

// SetPollingFallback enables or disables the polling fallback. Enabling it
// while Retrying switches to Polling immediately; disabling it while Polling
// returns to Idle.
func (m *Manager) SetPollingFallback(enabled bool) {
	m.post(func() { m.handleSetPollingFallback(enabled) })
}

// SetSimulation switches local generation on or off. Enabling it tears down
// any live transport; packets then arrive via Deliver.
func (m *Manager) SetSimulation(enabled bool) {
	m.post(func() { m.handleSetSimulation(enabled) })
}

// SetLatencyProbe switches the heartbeat between idle keep-alive cadence and
// the fast round-trip measurement cadence.
func (m *Manager) SetLatencyProbe(enabled bool) {
	m.post(func() { m.probing = enabled })
}

// SendControl sends a control message to the remote. It is a no-op unless
// the manager is Streaming; nothing is queued.
func (m *Manager) SendControl(payload any) {
	m.post(func() {
		if m.state != Streaming || m.conn == nil {
			return
		}
		if err := m.conn.WriteJSON(payload); err != nil {
			m.log.Warn(m.ctx, "control send failed", logging.Err(err))
			m.streamFailed(err)
		}
	})
}

// Deliver feeds a locally generated packet through the normalization path.
// Ignored unless the manager is Simulating.
func (m *Manager) Deliver(raw []byte) {
	m.post(func() {
		if m.state != Simulating {
			return
		}
		m.handleRaw(raw)
	})
}

func (m *Manager) post(fn func()) {
	select {
	case m.cmds <- fn:
	case <-m.done:
	}
}

func (m *Manager) loop() {
	for {
		var retryC, heartbeatC, pollC <-chan time.Time
		if m.retryTimer != nil {
			retryC = m.retryTimer.C
		}
		if m.heartbeatTimer != nil {
			heartbeatC = m.heartbeatTimer.C
		}
		if m.pollTimer != nil {
			pollC = m.pollTimer.C
		}

		select {
		case fn := <-m.cmds:
			fn()
		case ev := <-m.events:
			if ev.epoch != m.epoch {
				// Stale connection or poll result from a torn-down epoch.
				if ev.conn != nil {
					_ = ev.conn.Close()
				}
				continue
			}
			m.handleEvent(ev)
		case <-retryC:
			m.retryTimer = nil
			if m.state == Retrying {
				m.dial()
			}
		case <-heartbeatC:
			m.heartbeatTimer = nil
			m.handleHeartbeat()
		case <-pollC:
			m.pollTimer = nil
			m.handlePollDue()
		}

		if m.state == Closed {
			close(m.done)
			m.drainEvents()
			return
		}
	}
}

// drainEvents closes any connection that landed in the event buffer while
// shutdown raced an in-flight dial.
func (m *Manager) drainEvents() {
	for {
		select {
		case ev := <-m.events:
			if ev.conn != nil {
				_ = ev.conn.Close()
			}
		default:
			return
		}
	}
}

func (m *Manager) handleConnect(endpoint, token string) {
	// One session ID per Connect call, shared by every retry within the
	// lifecycle so reconnect attempts correlate in logs and spans.
	m.ctx, m.log = logging.WithSessionLogger(context.Background(), m.baseLog)
	m.endpoint = endpoint
	m.token = token
	m.teardown()
	m.dial()
}

func (m *Manager) dial() {
	if m.opts.Dialer == nil {
		m.transition(Retrying, errors.New("no dialer configured"))
		m.scheduleRetry()
		return
	}
	m.transition(Connecting, nil)
	if m.dialed && m.opts.Observer != nil {
		m.opts.Observer.ObserveReconnect()
	}
	m.dialed = true

	epoch := m.epoch
	endpoint, token := m.endpoint, m.token
	timeout := m.opts.OpenTimeout
	parent := m.ctx
	go func() {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		ctx, span := startSpan(ctx, "Transport/Dial", attribute.String("endpoint", endpoint))
		conn, err := m.opts.Dialer.Dial(ctx, endpoint, token)
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		select {
		case <-m.done:
			if conn != nil {
				_ = conn.Close()
			}
			return
		default:
		}
		select {
		case m.events <- event{epoch: epoch, kind: evDial, conn: conn, err: err}:
		case <-m.done:
			if conn != nil {
				_ = conn.Close()
			}
		}
	}()
}

func (m *Manager) handleEvent(ev event) {
	switch ev.kind {
	case evDial:
		if m.state != Connecting {
			if ev.conn != nil {
				_ = ev.conn.Close()
			}
			return
		}
		if ev.err != nil {
			m.transition(Retrying, ev.err)
			m.scheduleRetry()
			return
		}
		m.conn = ev.conn
		m.bo.Reset()
		m.transition(Streaming, nil)
		m.startReader()
		m.armHeartbeat()
	case evPacket:
		m.handleRaw(ev.raw)
	case evReadError:
		if m.state == Streaming {
			m.streamFailed(ev.err)
		}
	case evPollResult:
		if m.state != Polling {
			return
		}
		m.pollInFlight = false
		if ev.err != nil {
			m.log.Warn(m.ctx, "poll request failed", logging.Err(ev.err))
			if m.opts.OnStatus != nil {
				m.opts.OnStatus(Polling, Polling, ev.err)
			}
		} else {
			m.handleRaw(ev.raw)
		}
	}
}

func (m *Manager) startReader() {
	conn := m.conn
	epoch := m.epoch
	go func() {
		for {
			raw, err := conn.ReadMessage()
			if err != nil {
				select {
				case m.events <- event{epoch: epoch, kind: evReadError, err: err}:
				case <-m.done:
				}
				return
			}
			select {
			case m.events <- event{epoch: epoch, kind: evPacket, raw: raw}:
			case <-m.done:
				return
			}
		}
	}()
}

func (m *Manager) streamFailed(err error) {
	m.teardown()
	m.transition(Retrying, err)
	m.scheduleRetry()
}

func (m *Manager) scheduleRetry() {
	if m.pollingFallback && m.opts.Poller != nil {
		m.startPolling()
		return
	}
	m.retryTimer = time.NewTimer(m.bo.Next())
}

func (m *Manager) startPolling() {
	m.teardown()
	m.transition(Polling, nil)
	m.pollTimer = time.NewTimer(0)
}

// handlePollDue issues one poll request per fixed interval. The next timer is
// armed when the request goes out, not when it completes, so cadence does not
// stretch by request latency. A tick that fires while the previous request is
// still outstanding is skipped.
func (m *Manager) handlePollDue() {
	if m.state != Polling || m.opts.Poller == nil {
		return
	}
	m.pollTimer = time.NewTimer(m.opts.PollInterval)
	if m.pollInFlight {
		return
	}
	m.pollInFlight = true
	epoch := m.epoch
	timeout := m.opts.OpenTimeout
	poller := m.opts.Poller
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		raw, err := poller.Poll(ctx)
		select {
		case m.events <- event{epoch: epoch, kind: evPollResult, raw: raw, err: err}:
		case <-m.done:
		}
	}()
}

func (m *Manager) handleSetPollingFallback(enabled bool) {
	m.pollingFallback = enabled
	switch {
	case enabled && m.state == Retrying:
		m.startPolling()
	case !enabled && m.state == Polling:
		m.teardown()
		m.transition(Idle, nil)
	}
}

func (m *Manager) handleSetSimulation(enabled bool) {
	if enabled {
		if m.state == Simulating {
			return
		}
		m.teardown()
		m.transition(Simulating, nil)
		return
	}
	if m.state == Simulating {
		m.teardown()
		m.transition(Idle, nil)
	}
}

func (m *Manager) handleHeartbeat() {
	if m.state != Streaming || m.conn == nil {
		return
	}
	probe := map[string]any{"action": "ping", "t": time.Now().UnixMilli()}
	if err := m.conn.WriteJSON(probe); err != nil {
		m.streamFailed(err)
		return
	}
	m.armHeartbeat()
}

func (m *Manager) armHeartbeat() {
	interval := m.opts.HeartbeatIdle
	if m.probing {
		interval = m.opts.HeartbeatProbe
	}
	m.heartbeatTimer = time.NewTimer(interval)
}

// handleRaw runs a raw packet through echo absorption and normalization,
// publishing the resulting snapshot. Decoding failures drop the packet and
// leave the previous snapshot intact.
func (m *Manager) handleRaw(raw []byte) {
	if m.opts.OnPacket != nil {
		m.opts.OnPacket(raw)
	}
	if m.absorbEcho(raw) {
		return
	}

	ctx, span := startSpan(m.ctx, "Transport/Normalize", attribute.Int("packet.bytes", len(raw)))
	defer span.End()

	snap, shape, err := m.dec.Decode(raw)
	if err != nil {
		reason := "malformed"
		if errors.Is(err, wire.ErrUnknownShape) {
			reason = "unknown_shape"
		}
		span.RecordError(err)
		if m.opts.Observer != nil {
			m.opts.Observer.ObservePacketError(reason)
		}
		m.log.Warn(ctx, "packet dropped", logging.String("reason", reason), logging.Err(err))
		return
	}

	span.SetAttributes(attribute.String("packet.shape", shape))
	if m.opts.Observer != nil {
		m.opts.Observer.ObservePacket(shape)
	}
	m.snap.Store(snap)
}

// absorbEcho consumes heartbeat replies carrying our echoed timestamp and
// uses them for round-trip estimation. Packets without an echo pass through.
func (m *Manager) absorbEcho(raw []byte) bool {
	var echo struct {
		Op     string `json:"op"`
		Action string `json:"action"`
		T      int64  `json:"t"`
	}
	if err := json.Unmarshal(raw, &echo); err != nil {
		return false
	}
	kind := echo.Op
	if kind == "" {
		kind = echo.Action
	}
	if kind != "pong" && kind != "ping_ack" {
		return false
	}
	if echo.T > 0 {
		rtt := time.Since(time.UnixMilli(echo.T))
		if rtt > 0 {
			m.latencyNanos.Store(int64(rtt))
			if m.opts.Observer != nil {
				m.opts.Observer.ObserveLatency(rtt)
			}
		}
	}
	return true
}

// teardown invalidates outstanding async work, stops every timer, and closes
// any live connection. Close errors are swallowed.
func (m *Manager) teardown() {
	m.epoch++
	m.pollInFlight = false
	stopTimer(&m.retryTimer)
	stopTimer(&m.heartbeatTimer)
	stopTimer(&m.pollTimer)
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
}

func stopTimer(t **time.Timer) {
	if *t == nil {
		return
	}
	(*t).Stop()
	*t = nil
}

func (m *Manager) transition(to State, err error) {
	if m.state == to {
		return
	}
	from := m.state
	m.state = to
	m.stateMirror.Store(int32(to))
	if m.opts.Observer != nil {
		m.opts.Observer.ObserveTransition(from.String(), to.String(), int(to))
	}
	fields := []logging.Field{
		logging.String("from", from.String()),
		logging.String("to", to.String()),
	}
	if err != nil {
		fields = append(fields, logging.Err(err))
	}
	m.log.Info(m.ctx, "connection state changed", fields...)
	if m.opts.OnStatus != nil {
		m.opts.OnStatus(from, to, err)
	}
}
