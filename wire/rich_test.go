package wire

import (
	"reflect"
	"testing"
)

func TestDecodeRichCanonicalVector(t *testing.T) {
	raw := []byte(`{"ver":"1.2","vortices":[{"entity":"e1","glyphs":["Ω","Ψ","Φ"],"amp":0.5,"phase":0.0,"center":[0,0,0]}]}`)

	snap, shape, err := NewDecoder().Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if shape != ShapeRich {
		t.Fatalf("shape = %q, want %q", shape, ShapeRich)
	}
	if len(snap.Entities) != 1 {
		t.Fatalf("entities = %d, want 1", len(snap.Entities))
	}

	e := snap.Entities[0]
	if e.ID != "e1" {
		t.Errorf("ID = %q, want e1", e.ID)
	}
	if e.Amplitude != 0.5 || e.Phase != 0 {
		t.Errorf("amp/phase = %v/%v, want 0.5/0", e.Amplitude, e.Phase)
	}
	if e.Position.X != 0 || e.Position.Y != 0 || e.Position.Z != 0 {
		t.Errorf("position = %+v, want origin", e.Position)
	}
	if !reflect.DeepEqual(e.Glyphs, []string{"Ω", "Ψ", "Φ"}) {
		t.Errorf("glyphs = %v, want order preserved", e.Glyphs)
	}
	if len(e.Entangled) != 0 {
		t.Errorf("entangled = %v, want empty", e.Entangled)
	}
}

func TestDecodeRichDefaults(t *testing.T) {
	snap, _, err := NewDecoder().Decode([]byte(`{"ver":"1.2","vortices":[{"entity":"e1"}]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	e := snap.Entities[0]
	if e.Amplitude != 0.5 {
		t.Errorf("default amplitude = %v, want 0.5", e.Amplitude)
	}
	if e.Phase != 0 {
		t.Errorf("default phase = %v, want 0", e.Phase)
	}
	if e.Position.X != 0 || e.Position.Y != 0 || e.Position.Z != 0 {
		t.Errorf("default position = %+v, want origin", e.Position)
	}
	if e.Superposition {
		t.Error("default superposition = true, want false")
	}
	if len(e.Entangled) != 0 {
		t.Errorf("default entangled = %v, want empty", e.Entangled)
	}
	if len(e.Glyphs) == 0 {
		t.Error("glyphs empty after normalization, want substituted default cycle")
	}
	if snap.SynchronicityBoost != 1.0 {
		t.Errorf("synchronicity boost = %v, want 1.0", snap.SynchronicityBoost)
	}
}

func TestDecodeRichIsIdempotent(t *testing.T) {
	raw := []byte(`{"ver":"1.2","vortices":[
		{"entity":"a","glyphs":["Θ"],"amp":0.9,"phase":1.5,"center":[0.2,-0.4,1.0],"entangled":["b"]},
		{"entity":"b","glyphs":["λ","τ"],"amp":0.3,"phase":-2.0,"center":[-1,0,0]}
	],"meta_reflection":{"coherence":0.82},"synchronicity_boost":1.4}`)

	dec := NewDecoder()
	first, _, err := dec.Decode(raw)
	if err != nil {
		t.Fatalf("first Decode: %v", err)
	}
	second, _, err := dec.Decode(raw)
	if err != nil {
		t.Fatalf("second Decode: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("decoding the same rich packet twice diverged:\nfirst  %+v\nsecond %+v", first, second)
	}
	if first.Meta == nil || first.Meta.Coherence != 0.82 {
		t.Errorf("meta = %+v, want coherence 0.82", first.Meta)
	}
	if first.SynchronicityBoost != 1.4 {
		t.Errorf("boost = %v, want 1.4", first.SynchronicityBoost)
	}
}

func TestDecodeRichClampsAmplitude(t *testing.T) {
	raw := []byte(`{"ver":"1.2","vortices":[
		{"entity":"hot","amp":3.7},
		{"entity":"cold","amp":-0.5}
	]}`)

	snap, _, err := NewDecoder().Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got := snap.Entities[0].Amplitude; got != 1 {
		t.Errorf("over-range amplitude = %v, want clamped to 1", got)
	}
	if got := snap.Entities[1].Amplitude; got != 0 {
		t.Errorf("under-range amplitude = %v, want clamped to 0", got)
	}
}

func TestDecodeRichAcceptsFieldAliases(t *testing.T) {
	raw := []byte(`{"proto":"2.0","vortices":[{"id":"alias-1","amplitude":0.7,"position":[1,2,3]}]}`)

	snap, _, err := NewDecoder().Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if snap.ProtoVersion != "2.0" {
		t.Errorf("proto version = %q, want 2.0", snap.ProtoVersion)
	}
	e := snap.Entities[0]
	if e.ID != "alias-1" {
		t.Errorf("ID = %q, want alias-1", e.ID)
	}
	if e.Amplitude != 0.7 {
		t.Errorf("amplitude = %v, want 0.7", e.Amplitude)
	}
	if e.Position.Z != 3 {
		t.Errorf("position.Z = %v, want 3", e.Position.Z)
	}
}

func TestDecodeRichIgnoresUnknownFields(t *testing.T) {
	raw := []byte(`{"ver":"9.9","quantum_sigil":"Ω∞","vortices":[
		{"entity":"e1","temporal_echo":{"past_phase":0.1},"neuro_map":{"brainwave":"theta"}}
	]}`)

	snap, _, err := NewDecoder().Decode(raw)
	if err != nil {
		t.Fatalf("superset payload must decode, got %v", err)
	}
	if len(snap.Entities) != 1 {
		t.Fatalf("entities = %d, want 1", len(snap.Entities))
	}
}

func TestDecodeRichPredictions(t *testing.T) {
	raw := []byte(`{"ver":"1.2","vortices":[
		{"entity":"e1","predicted":{"t+1":{"amp":0.9,"center":[1,0,0]}}}
	]}`)

	snap, _, err := NewDecoder().Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	p, ok := snap.Entities[0].Predicted["t+1"]
	if !ok {
		t.Fatal("missing t+1 prediction")
	}
	if p.Amplitude == nil || *p.Amplitude != 0.9 {
		t.Errorf("predicted amplitude = %v, want 0.9", p.Amplitude)
	}
	if p.Phase != nil {
		t.Errorf("predicted phase = %v, want absent", *p.Phase)
	}
	if p.Position == nil || p.Position.X != 1 {
		t.Errorf("predicted position = %+v, want X=1", p.Position)
	}
}

func TestDecodeMalformedPacket(t *testing.T) {
	if _, _, err := NewDecoder().Decode([]byte(`{"ver":"1.2","vortices":[`)); err == nil {
		t.Fatal("truncated JSON must fail to decode")
	}
}

func TestDecodeUnknownShape(t *testing.T) {
	if _, _, err := NewDecoder().Decode([]byte(`{"hello":"world"}`)); err == nil {
		t.Fatal("payload without a discriminator must be rejected")
	}
}
