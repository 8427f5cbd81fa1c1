package wire

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/signalsfoundry/holonet-viewer/model"
)

// gridAmplitude is the fixed amplitude assigned to synthetic grid entities.
const gridAmplitude = 0.6

// cellVisibleThreshold is the minimum intensity at which a numeric cell
// produces an entity. Below it the cell renders as empty space in every
// source client, so no entity is synthesized.
const cellVisibleThreshold = 50

// gridPacket is the legacy delta-grid shape:
// {Dimensions:{width,height}, Layers:{Matrix:{"(x,y)": glyph}}}.
type gridPacket struct {
	Dimensions gridDims   `json:"Dimensions"`
	Layers     gridLayers `json:"Layers"`
}

type gridDims struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type gridLayers struct {
	Matrix map[string]json.RawMessage `json:"Matrix"`
}

// opFrame is the op-based incremental shape:
// {op:"frame", dimensions:{w,h}, layers:{MatrixDelta:{"x,y": intensity}}}.
type opFrame struct {
	Op         string  `json:"op"`
	Ver        string  `json:"ver"`
	Proto      string  `json:"proto"`
	Dimensions opDims  `json:"dimensions"`
	Layers     opLayer `json:"layers"`
}

type opDims struct {
	W int `json:"w"`
	H int `json:"h"`
}

type opLayer struct {
	MatrixDelta map[string]json.RawMessage `json:"MatrixDelta"`
}

func decodeGrid(raw []byte) (*model.Snapshot, error) {
	var pkt gridPacket
	if err := json.Unmarshal(raw, &pkt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	cells := make(map[CellKey]Cell, len(pkt.Layers.Matrix))
	for key, rawCell := range pkt.Layers.Matrix {
		ck, err := parseCellKey(key)
		if err != nil {
			continue // unparseable key: skip the cell, keep the packet
		}
		cell, ok := parseCell(rawCell)
		if !ok {
			continue
		}
		cells[ck] = cell
	}

	return &model.Snapshot{
		Entities:           entitiesFromCells(pkt.Dimensions.Width, pkt.Dimensions.Height, cells),
		SynchronicityBoost: 1.0,
	}, nil
}

func (d *Decoder) decodeOpFrame(raw []byte) (*model.Snapshot, error) {
	var frame opFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	delta := make(map[CellKey]Cell, len(frame.Layers.MatrixDelta))
	for key, rawCell := range frame.Layers.MatrixDelta {
		ck, err := parseCellKey(key)
		if err != nil {
			continue
		}
		cell, ok := parseCell(rawCell)
		if !ok {
			continue
		}
		delta[ck] = cell
	}

	// The grid store, not the snapshot, is the long-lived state: unspecified
	// cells retain their last known value across frames.
	d.grid.Apply(frame.Dimensions.W, frame.Dimensions.H, delta)

	w, h, cells := d.grid.State()
	return &model.Snapshot{
		ProtoVersion:       firstNonEmpty(frame.Ver, frame.Proto),
		Entities:           entitiesFromCells(w, h, cells),
		SynchronicityBoost: 1.0,
	}, nil
}

// entitiesFromCells synthesizes one entity per visible cell. Enumeration
// order is row-major (y, then x) so generated IDs are deterministic for a
// given grid state regardless of JSON map iteration order.
func entitiesFromCells(width, height int, cells map[CellKey]Cell) []model.Entity {
	keys := make([]CellKey, 0, len(cells))
	for k := range cells {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Y != keys[j].Y {
			return keys[i].Y < keys[j].Y
		}
		return keys[i].X < keys[j].X
	})

	entities := make([]model.Entity, 0, len(keys))
	for _, k := range keys {
		glyph, visible := cells[k].glyph()
		if !visible {
			continue
		}
		entities = append(entities, model.Entity{
			ID:        fmt.Sprintf("f%d", len(entities)),
			Glyphs:    []string{glyph},
			Amplitude: gridAmplitude,
			Position: model.Vec3{
				X: rescaleCell(k.X, width),
				Y: rescaleCell(k.Y, height),
			},
		})
	}
	return entities
}

// rescaleCell maps an integer cell coordinate from [0, n-1] onto the world
// range [-1.5, 1.5]. A single-row or single-column grid is centered at 0.
func rescaleCell(i, n int) float64 {
	if n <= 1 {
		return 0
	}
	return -1.5 + 3.0*float64(i)/float64(n-1)
}

// CellKey addresses one grid cell. Both observed key spellings, "(x,y)" and
// "x,y", parse to the same key.
type CellKey struct {
	X, Y int
}

func parseCellKey(s string) (CellKey, error) {
	trimmed := strings.TrimSpace(s)
	trimmed = strings.TrimPrefix(trimmed, "(")
	trimmed = strings.TrimSuffix(trimmed, ")")
	parts := strings.Split(trimmed, ",")
	if len(parts) != 2 {
		return CellKey{}, fmt.Errorf("cell key %q: want two comma-separated coordinates", s)
	}
	x, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return CellKey{}, fmt.Errorf("cell key %q: %w", s, err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return CellKey{}, fmt.Errorf("cell key %q: %w", s, err)
	}
	return CellKey{X: x, Y: y}, nil
}

// Cell is one grid cell's last known wire value: either an explicit glyph or
// a numeric intensity mapped onto the shade ramp at render time.
type Cell struct {
	Glyph string
	Value float64
}

// glyph resolves the cell to a drawable glyph, reporting false for cells
// whose intensity is below the visibility threshold.
func (c Cell) glyph() (string, bool) {
	if c.Glyph != "" {
		return c.Glyph, true
	}
	return shadeGlyph(c.Value)
}

// shadeGlyph maps an 8-bit intensity onto the block-shade ramp used by the
// legacy terminal clients.
func shadeGlyph(v float64) (string, bool) {
	switch {
	case v < cellVisibleThreshold:
		return "", false
	case v < 100:
		return "░", true
	case v < 150:
		return "▒", true
	case v < 200:
		return "▓", true
	default:
		return "█", true
	}
}

// parseCell accepts the observed cell encodings: a bare glyph string, a bare
// intensity number, or a cell object {"g": intensity, ...}.
func parseCell(raw json.RawMessage) (Cell, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" || s == " " {
			return Cell{}, false
		}
		return Cell{Glyph: s}, true
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return Cell{Value: n}, true
	}

	var obj struct {
		G float64 `json:"g"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return Cell{Value: obj.G}, true
	}
	return Cell{}, false
}
