// Package wire converts every supported HoloNet wire shape into the canonical
// snapshot model. Decoding the rich and grid shapes is pure; op-based frames
// are incremental and merge into a long-lived GridStore owned by the Decoder.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/signalsfoundry/holonet-viewer/model"
)

// Shape labels for diagnostics and metrics.
const (
	ShapeRich    = "rich"
	ShapeGrid    = "grid"
	ShapeOpFrame = "op_frame"
)

var (
	// ErrMalformed indicates a packet that could not be parsed as JSON.
	ErrMalformed = errors.New("malformed packet")
	// ErrUnknownShape indicates syntactically valid JSON that matches no
	// supported wire shape (missing discriminator).
	ErrUnknownShape = errors.New("unknown packet shape")
)

// envelope probes just enough of a payload to pick a shape. Unknown fields
// are ignored everywhere per the forward-compatibility contract.
type envelope struct {
	Op         string          `json:"op"`
	Vortices   json.RawMessage `json:"vortices"`
	Dimensions json.RawMessage `json:"Dimensions"`
}

// Decoder normalizes raw packets. It is not safe for concurrent use; the
// transport manager calls it from a single goroutine in arrival order.
type Decoder struct {
	grid *GridStore
}

// NewDecoder constructs a Decoder with an empty persistent grid.
func NewDecoder() *Decoder {
	return &Decoder{grid: NewGridStore()}
}

// Grid exposes the persistent delta-grid state, mainly for tests and the HUD.
func (d *Decoder) Grid() *GridStore { return d.grid }

// Decode converts one raw packet into a canonical snapshot and reports which
// wire shape it matched. A failed decode never disturbs previously decoded
// state: the grid store is only touched once an op frame has fully parsed.
func (d *Decoder) Decode(raw []byte) (*model.Snapshot, string, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch {
	case env.Vortices != nil:
		snap, err := decodeRich(raw)
		return snap, ShapeRich, err
	case env.Op == "frame":
		snap, err := d.decodeOpFrame(raw)
		return snap, ShapeOpFrame, err
	case env.Op != "":
		// Recognized op envelope but not a frame (pong, status, ...).
		return nil, "", fmt.Errorf("%w: op %q carries no entity state", ErrUnknownShape, env.Op)
	case env.Dimensions != nil:
		snap, err := decodeGrid(raw)
		return snap, ShapeGrid, err
	}
	return nil, "", ErrUnknownShape
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
