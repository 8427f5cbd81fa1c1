package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/holonet-viewer/core"
	"github.com/signalsfoundry/holonet-viewer/internal/logging"
	"github.com/signalsfoundry/holonet-viewer/wire"
)

func newTestHub() *hub {
	return &hub{
		log:     logging.Noop(),
		gen:     core.NewGenerator(4),
		clients: make(map[*client]struct{}),
	}
}

func newTestServer(t *testing.T, h *hub) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/channel", h.handleChannel)
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/meta_report", h.handleMetaReport)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func dialChannel(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/channel"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestChannelBroadcastsDecodablePackets(t *testing.T) {
	h := newTestHub()
	srv := newTestServer(t, h)
	conn := dialChannel(t, srv)

	stop := make(chan struct{})
	defer close(stop)
	go h.broadcastLoop(10*time.Millisecond, stop)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}

	snap, shape, err := wire.NewDecoder().Decode(raw)
	if err != nil {
		t.Fatalf("decode broadcast: %v", err)
	}
	if shape != wire.ShapeRich {
		t.Fatalf("shape = %q, want %q", shape, wire.ShapeRich)
	}
	if len(snap.Entities) != 4 {
		t.Fatalf("entities = %d, want 4", len(snap.Entities))
	}
}

func TestChannelEchoesPing(t *testing.T) {
	h := newTestHub()
	srv := newTestServer(t, h)
	conn := dialChannel(t, srv)

	stamp := time.Now().UnixMilli()
	if err := conn.WriteJSON(map[string]any{"action": "ping", "t": stamp}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read pong: %v", err)
	}

	var reply struct {
		Op string `json:"op"`
		T  int64  `json:"t"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		t.Fatalf("parse pong: %v", err)
	}
	if reply.Op != "pong" || reply.T != stamp {
		t.Fatalf("reply = %+v, want pong with echoed t %d", reply, stamp)
	}
}

func TestChannelIgnoresUnknownActions(t *testing.T) {
	h := newTestHub()
	srv := newTestServer(t, h)
	conn := dialChannel(t, srv)

	if err := conn.WriteJSON(map[string]any{"action": "warp_drive"}); err != nil {
		t.Fatalf("write unknown action: %v", err)
	}

	// The connection must stay open, so a subsequent ping still round-trips.
	if err := conn.WriteJSON(map[string]any{"action": "ping", "t": int64(7)}); err != nil {
		t.Fatalf("write ping: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err != nil {
		t.Fatalf("connection died after unknown action: %v", err)
	}
}

func TestStatusServesGridShape(t *testing.T) {
	h := newTestHub()
	srv := newTestServer(t, h)

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatalf("GET /status: %v", err)
	}
	defer resp.Body.Close()

	var doc json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		t.Fatalf("read status body: %v", err)
	}

	snap, shape, err := wire.NewDecoder().Decode(doc)
	if err != nil {
		t.Fatalf("decode status doc: %v", err)
	}
	if shape != wire.ShapeGrid {
		t.Fatalf("shape = %q, want %q", shape, wire.ShapeGrid)
	}
	if len(snap.Entities) == 0 {
		t.Fatal("status grid carries no entities")
	}
}

func TestMetaReport(t *testing.T) {
	h := newTestHub()
	srv := newTestServer(t, h)

	resp, err := http.Get(srv.URL + "/meta_report")
	if err != nil {
		t.Fatalf("GET /meta_report: %v", err)
	}
	defer resp.Body.Close()

	var report struct {
		Coherence float64 `json:"coherence"`
		Entities  int     `json:"entities"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&report); err != nil {
		t.Fatalf("parse report: %v", err)
	}
	if report.Coherence != 0.82 || report.Entities != 4 {
		t.Fatalf("report = %+v", report)
	}
}

func TestNudgeAdjustsGeneratorAmplitude(t *testing.T) {
	h := newTestHub()
	srv := newTestServer(t, h)
	conn := dialChannel(t, srv)

	err := conn.WriteJSON(map[string]any{
		"action":      "psionic_nudge",
		"entity":      "entity-1",
		"focus_level": 1.0,
		"intention":   "amplify",
	})
	if err != nil {
		t.Fatalf("write nudge: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		snap, _, err := wire.NewDecoder().Decode(h.gen.Packet())
		if err != nil {
			t.Fatalf("decode generator packet: %v", err)
		}
		e := snap.EntityByID("entity-1")
		if e != nil && e.Amplitude != 0.6 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("nudge never reached the generator")
}
