// Package tts defines the speech-synthesis collaborator the internal and
// external-api backend adapters call into; it is an external service the
// core never implements itself.
package tts

import "context"

// Result is the synthesized audio plus lip-sync hints an adapter folds into
// an outbound AudioPayload.
type Result struct {
	AudioBytes    []byte
	Format        string
	Volumes       []float64
	SliceLengthMs int
}

// Synthesizer turns text into speech. Implementations are treated as
// thread-safe; a caller needing serialization does so with a per-session
// mutex rather than assuming one here.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (Result, error)
}
