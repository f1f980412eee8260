package backend

import (
	"context"
	"testing"

	"github.com/vtuberd/control-plane/internal/model"
	"github.com/vtuberd/control-plane/internal/protocol"
	"github.com/vtuberd/control-plane/internal/tts"
)

type fakeOutbound struct {
	frames []any
	full   bool
}

func (o *fakeOutbound) Enqueue(frame any) bool {
	if o.full {
		return false
	}
	o.frames = append(o.frames, frame)
	return true
}

func (o *fakeOutbound) EnqueueBlocking(_ context.Context, frame any) error {
	o.frames = append(o.frames, frame)
	return nil
}

func testDescriptor() model.LiveModelDescriptor {
	return model.DefaultDescriptor("Aria", "aria.png",
		map[string]int{"happy": 1, "sad": 2},
		map[string][]int{"idle": {0, 1}},
	)
}

func TestTriggerExpressionRejectsNegativeID(t *testing.T) {
	out := &fakeOutbound{}
	a := NewInternalAdapter(out, testDescriptor(), tts.NewMockSynthesizer(), nil, nil)

	result := a.TriggerExpression(context.Background(), -1, 0, 0)
	if result.Status != "error" {
		t.Fatalf("TriggerExpression() = %+v, want status=error", result)
	}
	if len(out.frames) != 0 {
		t.Fatalf("expected no frame emitted, got %d", len(out.frames))
	}
}

func TestTriggerExpressionSuccessEmitsAudioFrame(t *testing.T) {
	out := &fakeOutbound{}
	a := NewInternalAdapter(out, testDescriptor(), tts.NewMockSynthesizer(), nil, nil)

	result := a.TriggerExpression(context.Background(), 1, 500, 0)
	if result.Status != "success" {
		t.Fatalf("TriggerExpression() = %+v, want status=success", result)
	}
	if len(out.frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(out.frames))
	}
	if _, ok := out.frames[0].(protocol.AudioFrame); !ok {
		t.Fatalf("frame type = %T, want protocol.AudioFrame", out.frames[0])
	}
}

func TestTriggerMotionRejectsUnknownGroup(t *testing.T) {
	out := &fakeOutbound{}
	a := NewInternalAdapter(out, testDescriptor(), tts.NewMockSynthesizer(), nil, nil)

	result := a.TriggerMotion(context.Background(), "dance", 0, false, 0)
	if result.Status != "error" {
		t.Fatalf("TriggerMotion() = %+v, want status=error", result)
	}
}

func TestSpeakEmitsAudioBeforeMotion(t *testing.T) {
	out := &fakeOutbound{}
	a := NewInternalAdapter(out, testDescriptor(), tts.NewMockSynthesizer(), nil, nil)

	result := a.Speak(context.Background(), "hello there", []int{1}, []MotionSpec{{Group: "idle", Index: 0}}, false, DisplayMeta{SpeakerName: "Aria"})
	if result.Status != "success" {
		t.Fatalf("Speak() = %+v, want status=success", result)
	}
	if len(out.frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(out.frames))
	}
	if _, ok := out.frames[0].(protocol.AudioFrame); !ok {
		t.Fatalf("frame[0] type = %T, want AudioFrame", out.frames[0])
	}
	if _, ok := out.frames[1].(protocol.MotionFrame); !ok {
		t.Fatalf("frame[1] type = %T, want MotionFrame", out.frames[1])
	}
}

func TestSpeakBackpressureReportsError(t *testing.T) {
	out := &fakeOutbound{full: true}
	a := NewInternalAdapter(out, testDescriptor(), tts.NewMockSynthesizer(), nil, nil)

	result := a.Speak(context.Background(), "hello there", nil, nil, false, DisplayMeta{})
	if result.Status != "error" {
		t.Fatalf("Speak() = %+v, want status=error on backpressure", result)
	}
}

type fakeBroadcaster struct {
	sent []struct {
		frame     any
		predicate func(string) bool
	}
}

func (b *fakeBroadcaster) Broadcast(frame any, predicate func(mode string) bool) {
	b.sent = append(b.sent, struct {
		frame     any
		predicate func(string) bool
	}{frame, predicate})
}

func TestAutonomousSpeakBroadcastsToAutonomousSessions(t *testing.T) {
	out := &fakeOutbound{}
	bc := &fakeBroadcaster{}
	a := NewAutonomousAdapter(out, bc, testDescriptor(), tts.NewMockSynthesizer(), nil, nil)

	result := a.Speak(context.Background(), "greetings everyone", []int{1}, nil, false, DisplayMeta{})
	if result.Status != "success" {
		t.Fatalf("Speak() = %+v, want status=success", result)
	}
	if len(bc.sent) != 2 {
		t.Fatalf("expected audio broadcast + autonomous-chat broadcast, got %d sends", len(bc.sent))
	}
	if !bc.sent[0].predicate(VariantAutonomous) {
		t.Fatalf("expected first broadcast to target autonomous sessions")
	}
	if _, ok := bc.sent[1].frame.(protocol.AutonomousChat); !ok {
		t.Fatalf("expected second broadcast to be AutonomousChat, got %T", bc.sent[1].frame)
	}
}
