// Package session implements the session registry: per-connection state,
// the single writer/reader tasks that enforce FIFO outbound delivery, and
// the broadcast surface the autonomous scheduler and chat ingest pipeline
// use to reach every Autonomous-mode session.
package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/vtuberd/control-plane/internal/agent"
	"github.com/vtuberd/control-plane/internal/backend"
	"github.com/vtuberd/control-plane/internal/model"
	"github.com/vtuberd/control-plane/internal/protocol"
	"github.com/vtuberd/control-plane/internal/tts"
)

// Stream is the minimal surface a transport must offer. *websocket.Conn
// satisfies this directly; GetOrDefault's lazily-created sessions bind to a
// discardStream instead.
type Stream interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteJSON(v any) error
	Close() error
}

// ErrSessionClosed is returned by EnqueueBlocking once OnDisconnect has run
// for the session (Enqueue reports the same case by returning false).
var ErrSessionClosed = errors.New("session closed")

// ErrEnqueueTimeout is returned by EnqueueBlocking when the outbound queue
// does not drain within the reply timeout.
var ErrEnqueueTimeout = errors.New("outbound enqueue timed out")

type expressionExtractor interface {
	ExtractExpressions(text string) []int
}

// descriptorProvider is promoted by every concrete backend.Adapter variant
// (via base.Descriptor) but isn't part of the four-op Adapter surface.
// dispatch probes it to decide an expression/motion ack's status ahead of
// invoking the operation, so the ack frame can be queued before the effect
// frame it describes (§8 scenario 2: motion-ack precedes motion-command).
type descriptorProvider interface {
	Descriptor() model.LiveModelDescriptor
}

// Session is one connected client's state: its outbound queue, its current
// backend adapter, and the reader/writer tasks that drain it.
type Session struct {
	id  string
	mgr *Manager

	mu      sync.Mutex
	mode    string
	adapter backend.Adapter
	closed  bool
	slow    bool

	outbound chan any
	stream   Stream
	cancel   context.CancelFunc

	writerDone chan struct{}
	readerDone chan struct{}
}

// ID returns the session's opaque identifier.
func (s *Session) ID() string { return s.id }

// Mode returns the session's current adapter variant.
func (s *Session) Mode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// Adapter returns the session's current backend adapter, for callers (REST
// handlers, the scheduler) that invoke adapter operations directly.
func (s *Session) Adapter() backend.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adapter
}

// Enqueue is the best-effort, try-send path the backend adapters use for
// every frame, including those produced for REST requests. It never blocks:
// a full queue drops the frame and marks the session slow.
func (s *Session) Enqueue(frame any) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	select {
	case s.outbound <- frame:
		return true
	default:
		s.markSlow()
		log.Printf("session %s: outbound queue full, dropping frame %T", s.id, frame)
		if s.mgr != nil && s.mgr.metrics != nil {
			s.mgr.metrics.OutboundDropped.WithLabelValues(s.Mode()).Inc()
		}
		return false
	}
}

// EnqueueBlocking blocks up to the session's reply timeout before failing.
// The backend adapters do not call it; they enqueue through Enqueue.
func (s *Session) EnqueueBlocking(ctx context.Context, frame any) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	timeout := s.mgr.replyTimeout
	s.mu.Unlock()
	if timeout <= 0 {
		timeout = time.Second
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s.outbound <- frame:
		return nil
	case <-timer.C:
		return ErrEnqueueTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) markSlow() {
	s.mu.Lock()
	s.slow = true
	s.mu.Unlock()
}

// setMode swaps the session's adapter for the requested variant, preserving
// its descriptor/synth/agent wiring (invariant 3 of §4.5: adapters are
// created lazily and reused, so a repeated set-backend-mode for the current
// mode is a no-op new instance rather than a cache hit — cheap enough not
// to special-case).
func (s *Session) setMode(mode string, descriptor model.LiveModelDescriptor, synth tts.Synthesizer, ag agent.Agent) backend.Adapter {
	var a backend.Adapter
	switch mode {
	case backend.VariantExternalAPI:
		a = backend.NewExternalAPIAdapter(s, descriptor, synth, ag, s.mgr.metrics)
	case backend.VariantAutonomous:
		a = backend.NewAutonomousAdapter(s, s.mgr, descriptor, synth, ag, s.mgr.metrics)
	default:
		mode = backend.VariantInternal
		a = backend.NewInternalAdapter(s, descriptor, synth, ag, s.mgr.metrics)
	}

	s.mu.Lock()
	s.mode = mode
	s.adapter = a
	s.mu.Unlock()
	return a
}

func (s *Session) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	stream := s.stream
	s.mu.Unlock()
	s.cancel()
	if stream != nil {
		_ = stream.Close()
	}
}

// runWriter is the single writer task required by §4.6: it is the only
// goroutine that ever calls stream.WriteJSON, preserving strict per-session
// FIFO ordering.
func (s *Session) runWriter(ctx context.Context, stream Stream) {
	defer close(s.writerDone)
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-s.outbound:
			if err := stream.WriteJSON(frame); err != nil {
				log.Printf("session %s: write error: %v", s.id, err)
				return
			}
			if t, ok := frameType(frame); ok && s.mgr != nil && s.mgr.metrics != nil {
				s.mgr.metrics.WSMessages.WithLabelValues("outbound", string(t)).Inc()
			}
		}
	}
}

// runReader parses inbound frames and dispatches them to the handler table.
// It owns the session's lifetime: a read error or a closed stream ends the
// loop and triggers OnDisconnect.
func (s *Session) runReader(ctx context.Context, stream Stream) {
	defer close(s.readerDone)
	defer s.mgr.OnDisconnect(s.id)

	for {
		if ctx.Err() != nil {
			return
		}
		_, data, err := stream.ReadMessage()
		if err != nil {
			return
		}

		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			if errors.Is(err, protocol.ErrUnsupportedType) {
				s.Enqueue(protocol.NewErrorFrame("unsupported message type"))
			} else {
				s.Enqueue(protocol.NewErrorFrame(err.Error()))
			}
			continue
		}

		if t, ok := frameType(parsed); ok && s.mgr.metrics != nil {
			s.mgr.metrics.WSMessages.WithLabelValues("inbound", string(t)).Inc()
		}
		s.dispatch(ctx, parsed)
	}
}

// dispatch implements the §4.6 inbound handler table.
func (s *Session) dispatch(ctx context.Context, msg any) {
	switch m := msg.(type) {
	case protocol.ExpressionCommand:
		// The ack must precede the effect frame TriggerExpression enqueues
		// (§8 scenario 2), so its status is precomputed from the same
		// validation TriggerExpression applies rather than taken from its
		// return value.
		status, errMsg := "success", ""
		if m.ExpressionID < 0 {
			status, errMsg = "error", "unknown expression id"
		}
		s.Enqueue(protocol.ExpressionAck{Type: protocol.TypeExpressionAck, ExpressionID: m.ExpressionID, Status: status, Error: errMsg})
		s.Adapter().TriggerExpression(ctx, m.ExpressionID, m.DurationMs, m.Priority)

	case protocol.MotionCommandIn:
		status, errMsg := "success", ""
		if dp, ok := s.Adapter().(descriptorProvider); ok && !dp.Descriptor().HasMotion(m.MotionGroup, m.MotionIndex) {
			status, errMsg = "error", "unknown motion group or index"
		}
		s.Enqueue(protocol.MotionAck{Type: protocol.TypeMotionAck, MotionGroup: m.MotionGroup, MotionIndex: m.MotionIndex, Status: status, Error: errMsg})
		s.Adapter().TriggerMotion(ctx, m.MotionGroup, m.MotionIndex, m.Loop, m.Priority)

	case protocol.TextInput:
		s.handleTextInput(ctx, m.Text)

	case protocol.TextGenerationRequest:
		s.handleTextGeneration(ctx, m.Prompt, m.Context)

	case protocol.SetBackendMode:
		a := s.setMode(m.Mode, s.mgr.descriptor, s.mgr.synth, s.mgr.agent)
		s.Enqueue(protocol.BackendModeSet{Type: protocol.TypeBackendModeSet, Mode: a.Variant()})

	case protocol.GetBackendMode:
		s.Enqueue(protocol.BackendModeSet{Type: protocol.TypeBackendModeSet, Mode: s.Mode()})

	case protocol.MicAudioData, protocol.MicAudioEnd:
		// ASR is out of scope; ignored, and no reply frame is sent.

	default:
		s.Enqueue(protocol.NewErrorFrame("unhandled message"))
	}
}

func (s *Session) handleTextInput(ctx context.Context, text string) {
	a := s.Adapter()
	var expressions []int
	if ex, ok := a.(expressionExtractor); ok {
		expressions = ex.ExtractExpressions(text)
	}
	a.Speak(ctx, text, expressions, nil, false, backend.DisplayMeta{SpeakerName: s.mgr.descriptor.CharacterName, Avatar: s.mgr.descriptor.AvatarReference})
}

func (s *Session) handleTextGeneration(ctx context.Context, prompt string, generationContext map[string]any) {
	a := s.Adapter()
	text, err := a.GenerateText(ctx, prompt, generationContext, func(chunk string) error {
		s.Enqueue(protocol.TextGenerationChunk{Type: protocol.TypeTextGenerationChunk, Chunk: chunk})
		return nil
	})
	if err != nil {
		s.Enqueue(protocol.NewErrorFrame("generation failed: " + err.Error()))
		return
	}
	s.Enqueue(protocol.TextGenerationResponse{Type: protocol.TypeTextGenerationResponse, Text: text})
}

func frameType(v any) (protocol.MessageType, bool) {
	switch m := v.(type) {
	case protocol.AudioFrame:
		return m.Type, true
	case protocol.MotionFrame:
		return m.Type, true
	case protocol.ExpressionCommand:
		return m.Type, true
	case protocol.MotionCommandIn:
		return m.Type, true
	case protocol.TextInput:
		return m.Type, true
	case protocol.TextGenerationRequest:
		return m.Type, true
	case protocol.SetBackendMode:
		return m.Type, true
	case protocol.GetBackendMode:
		return m.Type, true
	case protocol.MicAudioData:
		return m.Type, true
	case protocol.MicAudioEnd:
		return m.Type, true
	case protocol.ExpressionAck:
		return m.Type, true
	case protocol.MotionAck:
		return m.Type, true
	case protocol.BackendModeSet:
		return m.Type, true
	case protocol.TextGenerationChunk:
		return m.Type, true
	case protocol.TextGenerationResponse:
		return m.Type, true
	case protocol.UserInputTranscription:
		return m.Type, true
	case protocol.AutonomousChat:
		return m.Type, true
	case protocol.FullText:
		return m.Type, true
	case protocol.PartialText:
		return m.Type, true
	case protocol.ErrorFrame:
		return m.Type, true
	default:
		return "", false
	}
}
