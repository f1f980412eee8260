// Package model defines the value objects shared by the adapter, session,
// and router layers: the per-session character descriptor and the outbound
// frame payloads an adapter produces.
package model

// LiveModelDescriptor is loaded once per session on connect and is
// immutable for the lifetime of the session unless an explicit switch
// occurs.
type LiveModelDescriptor struct {
	EmotionMap      map[string]int   // lowercase emotion token -> expression id
	MotionGroups    map[string][]int // group name -> ordered motion indices
	CharacterName   string
	AvatarReference string
}

// DefaultDescriptor builds the descriptor used for sessions that have not
// loaded a character-specific override.
func DefaultDescriptor(characterName, avatarRef string, emotionMap map[string]int, motionGroups map[string][]int) LiveModelDescriptor {
	if emotionMap == nil {
		emotionMap = map[string]int{}
	}
	if motionGroups == nil {
		motionGroups = map[string][]int{}
	}
	return LiveModelDescriptor{
		EmotionMap:      emotionMap,
		MotionGroups:    motionGroups,
		CharacterName:   characterName,
		AvatarReference: avatarRef,
	}
}

// HasMotion reports whether group/index is a valid motion coordinate under
// this descriptor.
func (d LiveModelDescriptor) HasMotion(group string, index int) bool {
	indices, ok := d.MotionGroups[group]
	if !ok {
		return false
	}
	for _, idx := range indices {
		if idx == index {
			return true
		}
	}
	return false
}

// MotionSpec is one entry of Actions.Motions.
type MotionSpec struct {
	Group    string `json:"group"`
	Index    int    `json:"index"`
	Loop     bool   `json:"loop"`
	Priority int    `json:"priority"`
}

// Actions is attached to outbound speech events. Every expression id present
// must appear as a value in the active model's emotion map — callers are
// responsible for deriving it via the emotion extractor rather than
// constructing it ad hoc.
type Actions struct {
	Expressions []int        `json:"expressions,omitempty"`
	Motions     []MotionSpec `json:"motions,omitempty"`
}

// DisplayText accompanies an AudioPayload for UI rendering.
type DisplayText struct {
	Text       string `json:"text"`
	SpeakerName string `json:"name"`
	Avatar     string `json:"avatar,omitempty"`
}

// AudioPayload is the outbound frame carrying synthesized speech and its
// associated actions. AudioBytes is nil for expression-only frames.
type AudioPayload struct {
	AudioBytes    []byte      `json:"audio"`
	Format        string      `json:"format,omitempty"`
	Volumes       []float64   `json:"volumes"`
	SliceLengthMs int         `json:"slice_length_ms"`
	DisplayText   DisplayText `json:"display_text"`
	Actions       Actions     `json:"actions"`
	Forwarded     bool        `json:"forwarded"`
}

// MotionCommand is an outbound frame distinct from AudioPayload, carried
// separately because motions may be triggered independent of speech.
type MotionCommand struct {
	Group    string `json:"motion_group"`
	Index    int    `json:"motion_index"`
	Loop     bool   `json:"loop"`
	Priority int    `json:"priority"`
}

// Result is the synchronous outcome of an adapter operation.
type Result struct {
	Status string `json:"status"` // "success" | "error"
	Error  string `json:"error,omitempty"`
}

// Success builds a success Result.
func Success() Result { return Result{Status: "success"} }

// Failure builds an error Result with the given message.
func Failure(msg string) Result { return Result{Status: "error", Error: msg} }
