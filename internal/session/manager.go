package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vtuberd/control-plane/internal/agent"
	"github.com/vtuberd/control-plane/internal/backend"
	"github.com/vtuberd/control-plane/internal/model"
	"github.com/vtuberd/control-plane/internal/observability"
	"github.com/vtuberd/control-plane/internal/tts"
)

// Manager is the session registry (C6). It is the sole mutator of the
// session map and implements backend.Broadcaster so adapters never depend
// on a concrete session type.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	capacity     int
	replyTimeout time.Duration

	descriptor model.LiveModelDescriptor
	synth      tts.Synthesizer
	agent      agent.Agent

	metrics *observability.Metrics

	// defaultSessionID names the session REST/scheduler/ingest callers fall
	// back to when no client_uid is given.
	defaultSessionID string
}

// NewManager builds a registry. capacity bounds each session's outbound
// channel (§4.6: "bounded stream, capacity 64"); replyTimeout bounds
// EnqueueBlocking (§5: "1 second for outbound enqueue").
func NewManager(capacity int, replyTimeout time.Duration, descriptor model.LiveModelDescriptor, synth tts.Synthesizer, ag agent.Agent, metrics *observability.Metrics, defaultSessionID string) *Manager {
	if capacity <= 0 {
		capacity = 64
	}
	if replyTimeout <= 0 {
		replyTimeout = time.Second
	}
	return &Manager{
		sessions:         make(map[string]*Session),
		capacity:         capacity,
		replyTimeout:     replyTimeout,
		descriptor:       descriptor,
		synth:            synth,
		agent:            ag,
		metrics:          metrics,
		defaultSessionID: defaultSessionID,
	}
}

// OnConnect registers a new session bound to stream, spawns its writer and
// reader tasks, and returns its opaque id. The reader task self-cleans via
// OnDisconnect once the stream closes or errors.
func (m *Manager) OnConnect(ctx context.Context, stream Stream) (string, error) {
	if stream == nil {
		return "", fmt.Errorf("session: nil stream")
	}

	id := uuid.NewString()
	sessCtx, cancel := context.WithCancel(ctx)

	s := &Session{
		id:         id,
		mgr:        m,
		mode:       backend.VariantInternal,
		outbound:   make(chan any, m.capacity),
		stream:     stream,
		cancel:     cancel,
		writerDone: make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	s.adapter = backend.NewInternalAdapter(s, m.descriptor, m.synth, m.agent, m.metrics)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.ActiveSessions.Set(float64(m.ActiveCount()))
		m.metrics.SessionEvents.WithLabelValues("connect").Inc()
	}

	go s.runWriter(sessCtx, stream)
	go s.runReader(sessCtx, stream)

	return id, nil
}

// OnDisconnect removes a session from the registry and cancels its tasks.
// It is idempotent: the reader calls it on its own exit, and a caller (an
// HTTP handler noticing the socket drop) may call it again harmlessly.
func (m *Manager) OnDisconnect(sessionID string) {
	m.mu.Lock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}

	s.close()

	if m.metrics != nil {
		m.metrics.ActiveSessions.Set(float64(m.ActiveCount()))
		m.metrics.SessionEvents.WithLabelValues("disconnect").Inc()
	}
}

// Get returns the session for id, or false if unknown.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// GetOrDefault resolves sessionID, creating a sink-bound session on the fly
// if it is unknown — used by REST endpoints that target a client_uid with
// no live connection (§4.6, §4.7).
func (m *Manager) GetOrDefault(sessionID string) *Session {
	if sessionID == "" {
		sessionID = m.defaultSessionID
	}
	if s, ok := m.Get(sessionID); ok {
		return s
	}

	id, err := m.OnConnect(context.Background(), newDiscardStream())
	if err != nil {
		return m.sinkSession(sessionID)
	}
	s, _ := m.Get(id)

	// Re-key the sink session under the caller's requested id so repeat
	// lookups for the same unknown client_uid land on the same instance.
	m.mu.Lock()
	delete(m.sessions, id)
	s.id = sessionID
	m.sessions[sessionID] = s
	m.mu.Unlock()
	return s
}

// sinkSession is the fallback used only if OnConnect's nil-stream guard is
// ever hit; it builds a session with no running reader/writer so callers
// still get a non-nil Adapter.
func (m *Manager) sinkSession(sessionID string) *Session {
	s := &Session{
		id:         sessionID,
		mgr:        m,
		mode:       backend.VariantInternal,
		outbound:   make(chan any, m.capacity),
		stream:     newDiscardStream(),
		cancel:     func() {},
		writerDone: make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	s.adapter = backend.NewInternalAdapter(s, m.descriptor, m.synth, m.agent, m.metrics)
	m.mu.Lock()
	m.sessions[sessionID] = s
	m.mu.Unlock()
	return s
}

// Broadcast delivers frame to every registered session whose mode matches
// predicate, using the best-effort Enqueue path (§4.8 point 6, §5: broadcast
// paths use try-send).
func (m *Manager) Broadcast(frame any, predicate func(mode string) bool) {
	m.mu.RLock()
	targets := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		if predicate(s.Mode()) {
			targets = append(targets, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range targets {
		s.Enqueue(frame)
	}
}

// PresenterAdapter returns the adapter of the configured default/presenter
// session, switching it to the Autonomous variant first if it isn't
// already — the scheduler (C8) and chat ingest pipeline (C9) both speak
// through this single adapter so that its Speak call's broadcast reaches
// every Autonomous-mode session exactly once.
func (m *Manager) PresenterAdapter() backend.Adapter {
	s := m.GetOrDefault(m.defaultSessionID)
	if s.Mode() != backend.VariantAutonomous {
		s.setMode(backend.VariantAutonomous, m.descriptor, m.synth, m.agent)
	}
	return s.Adapter()
}

// Descriptor exposes the registry's shared live-model descriptor, for
// callers (the scheduler, the chat ingest pipeline) that need it to strip
// emotion tags before display.
func (m *Manager) Descriptor() model.LiveModelDescriptor { return m.descriptor }

// ActiveCount reports the number of registered sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sessions returns a snapshot of currently registered sessions.
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}
