// Command demo-server hosts a local HoloNet field for viewer development:
// it streams generated rich-shape packets over a websocket, answers the
// polling endpoint with the grid shape, and accepts advisory control
// messages.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/holonet-viewer/core"
	"github.com/signalsfoundry/holonet-viewer/internal/logging"
	"github.com/signalsfoundry/holonet-viewer/wire"
)

var upgrader = websocket.Upgrader{
	// Local development server: any origin may connect.
	CheckOrigin: func(*http.Request) bool { return true },
}

func main() {
	addr := flag.String("addr", ":8080", "TCP address to listen on")
	entities := flag.Int("entities", 9, "Number of generated vortices")
	tick := flag.Duration("tick", 100*time.Millisecond, "Broadcast interval")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	gen := core.NewGenerator(*entities)
	h := &hub{
		log:     log,
		gen:     gen,
		clients: make(map[*client]struct{}),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/channel", h.handleChannel)
	mux.HandleFunc("/status", h.handleStatus)
	mux.HandleFunc("/meta_report", h.handleMetaReport)

	srv := &http.Server{Addr: *addr, Handler: mux}
	go func() {
		log.Info(ctx, "demo server listening", logging.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "server exited", logging.Err(err))
			os.Exit(1)
		}
	}()

	stopBroadcast := make(chan struct{})
	go h.broadcastLoop(*tick, stopBroadcast)

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-stopCtx.Done()

	log.Info(ctx, "shutting down demo server")
	close(stopBroadcast)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

type hub struct {
	log logging.Logger
	gen *core.Generator

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

func (h *hub) handleChannel(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(r.Context(), "websocket upgrade failed", logging.Err(err))
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 32)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.log.Info(r.Context(), "client connected", logging.String("remote", conn.RemoteAddr().String()))

	go h.writePump(c)
	h.readPump(c)
}

func (h *hub) readPump(c *client) {
	defer h.drop(c)
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		h.handleControl(c, raw)
	}
}

func (h *hub) writePump(c *client) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			h.drop(c)
			return
		}
	}
}

func (h *hub) drop(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

// handleControl applies advisory control messages. Unrecognized actions are
// ignored, never errored: clients depend on that contract.
func (h *hub) handleControl(c *client, raw []byte) {
	var msg struct {
		Op         string  `json:"op"`
		Action     string  `json:"action"`
		T          int64   `json:"t"`
		Entity     string  `json:"entity"`
		FocusLevel float64 `json:"focus_level"`
		Intention  string  `json:"intention"`
	}
	if err := json.Unmarshal(raw, &msg); err != nil {
		return
	}
	kind := msg.Action
	if kind == "" {
		kind = msg.Op
	}

	switch kind {
	case "ping", "heartbeat":
		reply, _ := json.Marshal(map[string]any{"op": "pong", "t": msg.T})
		select {
		case c.send <- reply:
		default:
		}
	case "psionic_nudge":
		h.gen.Nudge(msg.Entity, msg.FocusLevel, 0.35)
		h.log.Info(context.Background(), "nudge applied",
			logging.String("entity", msg.Entity),
			logging.Float("focus_level", msg.FocusLevel),
			logging.String("intention", msg.Intention),
		)
	}
}

func (h *hub) broadcastLoop(tick time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			h.gen.Advance(now.Sub(last))
			last = now
			h.broadcast(h.gen.Packet())
		}
	}
}

func (h *hub) broadcast(msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
			// Slow consumer: skip this frame rather than block the field.
		}
	}
}

// handleStatus serves the degraded-mode polling document in the legacy grid
// shape, derived from the same generated field the stream carries.
func (h *hub) handleStatus(w http.ResponseWriter, r *http.Request) {
	const gridSize = 16

	snap, _, err := wire.NewDecoder().Decode(h.gen.Packet())
	if err != nil {
		http.Error(w, "field unavailable", http.StatusInternalServerError)
		return
	}

	matrix := make(map[string]string, len(snap.Entities))
	for _, e := range snap.Entities {
		x := worldToCell(e.Position.X, gridSize)
		y := worldToCell(e.Position.Y, gridSize)
		glyph := "*"
		if len(e.Glyphs) > 0 {
			glyph = e.Glyphs[0]
		}
		matrix[fmt.Sprintf("(%d,%d)", x, y)] = glyph
	}

	doc := map[string]any{
		"Dimensions": map[string]int{"width": gridSize, "height": gridSize},
		"Layers":     map[string]any{"Matrix": matrix},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func (h *hub) handleMetaReport(w http.ResponseWriter, r *http.Request) {
	report := map[string]any{
		"coherence": 0.82,
		"entities":  h.gen.Len(),
		"uptime_s":  int(time.Since(startTime).Seconds()),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(report)
}

var startTime = time.Now()

// worldToCell maps a world coordinate in [-1.5, 1.5] to a grid column/row.
func worldToCell(v float64, n int) int {
	cell := int(math.Round((v + 1.5) / 3 * float64(n-1)))
	if cell < 0 {
		cell = 0
	}
	if cell >= n {
		cell = n - 1
	}
	return cell
}
