package transport

// Outbound control vocabulary. All messages are advisory: the remote may
// ignore any action or field without erroring.

// NudgeMessage asks the remote to perturb one entity.
type NudgeMessage struct {
	Action     string  `json:"action"`
	FocusLevel float64 `json:"focus_level"`
	Intention  string  `json:"intention"`
	Entity     string  `json:"entity"`
}

// NewNudge builds a psionic_nudge control message.
func NewNudge(entity string, focusLevel float64, intention string) NudgeMessage {
	return NudgeMessage{
		Action:     "psionic_nudge",
		FocusLevel: focusLevel,
		Intention:  intention,
		Entity:     entity,
	}
}

// TransformMessage shifts the remote's slice axis.
type TransformMessage struct {
	Op string `json:"op"`
	Z  int    `json:"z"`
}

// NewTransform builds a transform control message.
func NewTransform(z int) TransformMessage {
	return TransformMessage{Op: "transform", Z: z}
}

// ViewMessage advertises the client's viewport to the remote.
type ViewMessage struct {
	Op   string   `json:"op"`
	View ViewSpec `json:"view"`
}

// ViewSpec is the viewport geometry carried by a view message.
type ViewSpec struct {
	W int `json:"w"`
	H int `json:"h"`
	Z int `json:"z"`
}

// NewView builds a view control message.
func NewView(w, h, z int) ViewMessage {
	return ViewMessage{Op: "view", View: ViewSpec{W: w, H: h, Z: z}}
}
