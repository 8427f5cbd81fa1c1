package wire

import (
	"encoding/json"
	"fmt"

	"github.com/signalsfoundry/holonet-viewer/model"
)

// defaultGlyphs substitutes for an empty or missing glyph cycle, matching the
// fallback the reference feed uses for unseeded vortices.
var defaultGlyphs = []string{"Ω", "Ψ", "Φ"}

// richPacket is the streaming v1.x shape: {ver, vortices:[...]}. Field
// aliases (entity/id, amp/amplitude, center/position, ver/proto) cover the
// envelope contract's tolerated variants.
type richPacket struct {
	Ver      string       `json:"ver"`
	Proto    string       `json:"proto"`
	Vortices []richVortex `json:"vortices"`
	Meta     *richMeta    `json:"meta_reflection"`
	Boost    *float64     `json:"synchronicity_boost"`
}

type richMeta struct {
	Coherence float64 `json:"coherence"`
}

type richVortex struct {
	Entity        string                `json:"entity"`
	AltID         string                `json:"id"`
	Glyphs        []string              `json:"glyphs"`
	Amp           *float64              `json:"amp"`
	Amplitude     *float64              `json:"amplitude"`
	Phase         *float64              `json:"phase"`
	Center        []float64             `json:"center"`
	Position      []float64             `json:"position"`
	Superposition bool                  `json:"superposition"`
	Entangled     []string              `json:"entangled"`
	Volition      string                `json:"volition_intent"`
	Predicted     map[string]richFuture `json:"predicted"`
}

type richFuture struct {
	Amp    *float64  `json:"amp"`
	Phase  *float64  `json:"phase"`
	Center []float64 `json:"center"`
	Glyphs []string  `json:"glyphs"`
}

func decodeRich(raw []byte) (*model.Snapshot, error) {
	var pkt richPacket
	if err := json.Unmarshal(raw, &pkt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	snap := &model.Snapshot{
		ProtoVersion:       firstNonEmpty(pkt.Ver, pkt.Proto),
		Entities:           make([]model.Entity, 0, len(pkt.Vortices)),
		SynchronicityBoost: 1.0,
	}
	if pkt.Boost != nil {
		snap.SynchronicityBoost = *pkt.Boost
	}
	if pkt.Meta != nil {
		snap.Meta = &model.MetaReflection{Coherence: pkt.Meta.Coherence}
	}

	for i, v := range pkt.Vortices {
		id := firstNonEmpty(v.Entity, v.AltID)
		if id == "" {
			// Nameless vortices get a synthetic, position-stable ID rather
			// than being dropped.
			id = fmt.Sprintf("v%d", i)
		}

		ent := model.Entity{
			ID:             id,
			Glyphs:         glyphsOrDefault(v.Glyphs),
			Amplitude:      0.5,
			Position:       vec3From(v.Center, v.Position),
			Superposition:  v.Superposition,
			Entangled:      append([]string(nil), v.Entangled...),
			VolitionIntent: v.Volition,
		}
		if amp := firstFloat(v.Amp, v.Amplitude); amp != nil {
			ent.Amplitude = *amp
		}
		ent.Amplitude = clamp01(ent.Amplitude)
		if v.Phase != nil {
			ent.Phase = *v.Phase
		}
		if len(v.Predicted) > 0 {
			ent.Predicted = make(map[string]model.Prediction, len(v.Predicted))
			for horizon, f := range v.Predicted {
				ent.Predicted[horizon] = futureFrom(f)
			}
		}
		snap.Entities = append(snap.Entities, ent)
	}
	return snap, nil
}

func futureFrom(f richFuture) model.Prediction {
	p := model.Prediction{
		Amplitude: f.Amp,
		Phase:     f.Phase,
		Glyphs:    append([]string(nil), f.Glyphs...),
	}
	if len(f.Center) >= 3 {
		p.Position = &model.Vec3{X: f.Center[0], Y: f.Center[1], Z: f.Center[2]}
	}
	return p
}

func vec3From(candidates ...[]float64) model.Vec3 {
	for _, c := range candidates {
		if len(c) == 0 {
			continue
		}
		// Short vectors are padded with zeros rather than rejected.
		var v model.Vec3
		if len(c) > 0 {
			v.X = c[0]
		}
		if len(c) > 1 {
			v.Y = c[1]
		}
		if len(c) > 2 {
			v.Z = c[2]
		}
		return v
	}
	return model.Vec3{}
}

func glyphsOrDefault(glyphs []string) []string {
	kept := make([]string, 0, len(glyphs))
	for _, g := range glyphs {
		if g != "" {
			kept = append(kept, g)
		}
	}
	if len(kept) == 0 {
		return append([]string(nil), defaultGlyphs...)
	}
	return kept
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstFloat(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
