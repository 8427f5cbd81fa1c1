package model

// Snapshot is the canonical, transport-agnostic representation of one tick's
// full entity set. It is immutable once published: a new packet produces a
// new Snapshot that fully replaces the previous one, never a partial merge.
type Snapshot struct {
	// ProtoVersion is the wire protocol version the snapshot was decoded
	// from ("1.2", "4.3", ...). Informational only.
	ProtoVersion string

	// Entities in insertion order. Order is not meaningful for correctness,
	// but it fixes render order and therefore edge iteration and hit-test
	// tie-breaking.
	Entities []Entity

	// Meta carries optional engine-side reflection metrics.
	Meta *MetaReflection

	// SynchronicityBoost defaults to 1.0 when the source omits it.
	SynchronicityBoost float64
}

// MetaReflection is advisory engine telemetry attached to a snapshot.
type MetaReflection struct {
	Coherence float64
}

// Entity is one visualized element of a snapshot.
type Entity struct {
	// ID is unique within its snapshot. It is not globally stable: entangled
	// references only resolve against the same snapshot's entity set.
	ID string

	// Glyphs is the non-empty glyph cycle. The cycling index is computed by
	// the renderer from wall-clock time, never stored here.
	Glyphs []string

	// Amplitude is clamped to [0,1] during normalization.
	Amplitude float64

	// Phase in radians, unconstrained; display code normalizes modulo 2π.
	Phase float64

	Position Vec3

	Superposition bool

	// Entangled holds same-snapshot entity IDs. Dangling references survive
	// normalization and are dropped by the projector, not treated as errors.
	Entangled []string

	VolitionIntent string

	// Predicted maps a horizon label ("t+1", ...) to advisory partial future
	// state. Never authoritative.
	Predicted map[string]Prediction
}

// Prediction is a partial future entity state keyed by horizon label.
// Nil pointers mean "no prediction for this field".
type Prediction struct {
	Amplitude *float64
	Phase     *float64
	Position  *Vec3
	Glyphs    []string
}

// Vec3 is a position in normalized world coordinates. Each axis nominally
// spans [-1.5, 1.5]; values outside that range are kept and simply fall off
// the viewport.
type Vec3 struct {
	X, Y, Z float64
}

// EntityByID returns the entity with the given ID, or nil when the snapshot
// holds no such entity.
func (s *Snapshot) EntityByID(id string) *Entity {
	for i := range s.Entities {
		if s.Entities[i].ID == id {
			return &s.Entities[i]
		}
	}
	return nil
}
