package core

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"
)

const tau = 2 * math.Pi

// glyphSets are the demo glyph cycles, assigned round-robin at seed time.
var glyphSets = [][]string{
	{"Ω", "Ψ", "Φ"}, {"⊗", "⊕", "⦿"}, {"Θ", "!", "⟳"},
	{"*", "✶", "✺"}, {"≡", "λ", "τ"}, {"?", "…", "∞"},
	{"◈", "⟡", "⊻"}, {"≀", "∴", "⦿"}, {"Ω", "Ψ", "Φ"},
}

// Generator produces a local HoloNet feed when no live transport is
// available. It emits the rich wire shape so generated packets travel the
// same normalization path as streamed ones.
//
// Time is internal and advanced explicitly via Advance, which keeps the
// generator deterministic under test and lets the render loop drive it by
// wall-clock delta.
type Generator struct {
	mu       sync.Mutex
	vortices []genVortex
	elapsed  float64 // seconds since construction
}

type genVortex struct {
	id        string
	glyphs    []string
	amp       float64
	phase     float64
	center    [3]float64
	entangled []string
}

// NewGenerator seeds n vortices on a small lattice with cycling glyph sets.
func NewGenerator(n int) *Generator {
	g := &Generator{vortices: make([]genVortex, 0, n)}
	for i := 0; i < n; i++ {
		g.vortices = append(g.vortices, genVortex{
			id:     fmt.Sprintf("entity-%d", i+1),
			glyphs: append([]string(nil), glyphSets[i%len(glyphSets)]...),
			amp:    0.6,
			phase:  math.Mod(float64(i)*0.7, tau),
			center: [3]float64{
				float64(i%3) - 1,
				float64(i/3) - 1,
				float64(i/6) - 0.5,
			},
		})
	}
	return g
}

// Advance moves the field forward by the elapsed wall-clock delta: phases
// rotate, amplitudes wobble, positions drift, and consecutive vortices pair
// up as entangled on alternating seconds.
func (g *Generator) Advance(dt time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.elapsed += dt.Seconds()
	t := g.elapsed

	for i := range g.vortices {
		v := &g.vortices[i]
		v.phase = math.Mod(v.phase+dt.Seconds()*1.2, tau)
		v.amp = clampAmp(0.6 + 0.1*float64(i%3) + 0.05*alternate(t*2+float64(i)))
		v.center[0] += 0.02 * alternate(t*3+float64(i))
	}

	if int(t)%2 == 0 && len(g.vortices) >= 2 {
		for i := 0; i+1 < len(g.vortices); i += 2 {
			a := &g.vortices[i]
			b := &g.vortices[i+1]
			a.entangled = []string{b.id}
			b.entangled = []string{a.id}
		}
	}
}

// Nudge applies an external amplitude/phase perturbation to one vortex.
// Unknown entity IDs are ignored.
func (g *Generator) Nudge(entity string, force, dphi float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := range g.vortices {
		v := &g.vortices[i]
		if v.id != entity {
			continue
		}
		v.amp = clampAmp(v.amp + force*0.1)
		v.phase = math.Mod(v.phase+dphi*force, tau)
		return
	}
}

// Len reports the number of seeded vortices.
func (g *Generator) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.vortices)
}

type genWireVortex struct {
	Entity    string     `json:"entity"`
	Glyphs    []string   `json:"glyphs"`
	Amp       float64    `json:"amp"`
	Phase     float64    `json:"phase"`
	Center    [3]float64 `json:"center"`
	Entangled []string   `json:"entangled"`
}

type genWirePacket struct {
	Ver       string          `json:"ver"`
	Vortices  []genWireVortex `json:"vortices"`
	Meta      genWireMeta     `json:"meta_reflection"`
	SyncBoost float64         `json:"synchronicity_boost"`
}

type genWireMeta struct {
	Coherence float64 `json:"coherence"`
	Entities  int     `json:"entities"`
}

// Packet serializes the current field as one rich-shape wire packet.
func (g *Generator) Packet() []byte {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := genWirePacket{
		Ver:       "1.2",
		Vortices:  make([]genWireVortex, 0, len(g.vortices)),
		Meta:      genWireMeta{Coherence: 0.82, Entities: len(g.vortices)},
		SyncBoost: 1.0,
	}
	for _, v := range g.vortices {
		out.Vortices = append(out.Vortices, genWireVortex{
			Entity:    v.id,
			Glyphs:    v.glyphs,
			Amp:       v.amp,
			Phase:     v.phase,
			Center:    v.center,
			Entangled: v.entangled,
		})
	}

	data, err := json.Marshal(out)
	if err != nil {
		// The packet is built from plain values; marshal cannot fail. Keep
		// the pipeline alive regardless.
		return []byte(`{"ver":"1.2","vortices":[]}`)
	}
	return data
}

func clampAmp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// alternate returns ±1 flipping with the integer part of t.
func alternate(t float64) float64 {
	if int(math.Floor(t))%2 == 0 {
		return 1
	}
	return -1
}
