package tts

import (
	"context"
	"strings"
)

// MockSynthesizer is a deterministic stand-in used when no real TTS backend
// is configured: volumes are derived from word count so lip-sync fanout is
// still exercised without a network call.
type MockSynthesizer struct{}

func NewMockSynthesizer() *MockSynthesizer { return &MockSynthesizer{} }

func (m *MockSynthesizer) Synthesize(_ context.Context, text string) (Result, error) {
	words := strings.Fields(text)
	volumes := make([]float64, 0, len(words))
	for range words {
		volumes = append(volumes, 0.5)
	}
	return Result{
		AudioBytes:    []byte(text),
		Format:        "mock/pcm16",
		Volumes:       volumes,
		SliceLengthMs: 20,
	}, nil
}
