package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vtuberd/control-plane/internal/agent"
	"github.com/vtuberd/control-plane/internal/chatplatform"
	"github.com/vtuberd/control-plane/internal/config"
	"github.com/vtuberd/control-plane/internal/model"
	"github.com/vtuberd/control-plane/internal/observability"
	"github.com/vtuberd/control-plane/internal/scheduler"
	"github.com/vtuberd/control-plane/internal/session"
	"github.com/vtuberd/control-plane/internal/tts"
)

var testMetricsCounter atomic.Int64

func testMetrics(name string) *observability.Metrics {
	return observability.NewMetrics("test_httpapi_" + sanitizeMetricName(name) + "_" + strconv.FormatInt(testMetricsCounter.Add(1), 10))
}

func sanitizeMetricName(s string) string {
	return strings.NewReplacer("/", "_", ".", "_", " ", "_").Replace(s)
}

func newTestServer(t *testing.T) (*Server, *session.Manager, *scheduler.Scheduler) {
	t.Helper()
	descriptor := model.DefaultDescriptor("Aria", "aria.png", map[string]int{"happy": 1}, map[string][]int{"idle": {0, 1}})
	metrics := testMetrics(t.Name())
	sessions := session.NewManager(64, time.Second, descriptor, tts.NewMockSynthesizer(), agent.NewMockAgent(), metrics, "default")
	sched := scheduler.New(sessions, agent.NewMockAgent(), metrics, nil, 100*time.Millisecond, 200*time.Millisecond, false)
	webhook := chatplatform.NewWebhookSource(16)
	_ = webhook.Connect()
	srv := New(config.Config{}, sessions, sched, webhook, metrics)
	return srv, sessions, sched
}

func TestHealthAndReady(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	readyRes, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("GET /readyz error = %v", err)
	}
	defer readyRes.Body.Close()
	if readyRes.StatusCode != http.StatusOK {
		t.Fatalf("/readyz status = %d, want %d", readyRes.StatusCode, http.StatusOK)
	}
}

func TestHandleExpressionRejectsNegativeDuration(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{"expressionId": 1, "duration": -5})
	res, err := http.Post(ts.URL+"/api/expression", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/expression error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestHandleExpressionSuccess(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{"expressionId": 1})
	res, err := http.Post(ts.URL+"/api/expression", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/expression error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["status"] != "success" {
		t.Fatalf("status = %v, want success", payload["status"])
	}
}

func TestHandleStageDiagnosticsReflectsSpeakDispatch(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	speakBody, _ := json.Marshal(map[string]any{"text": "hello from diagnostics"})
	speakRes, err := http.Post(ts.URL+"/api/autonomous/speak", "application/json", bytes.NewReader(speakBody))
	if err != nil {
		t.Fatalf("POST /api/autonomous/speak error = %v", err)
	}
	speakRes.Body.Close()
	if speakRes.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", speakRes.StatusCode, http.StatusOK)
	}

	res, err := http.Get(ts.URL + "/api/diagnostics/stages")
	if err != nil {
		t.Fatalf("GET /api/diagnostics/stages error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	var snap observability.TurnStageSnapshot
	if err := json.NewDecoder(res.Body).Decode(&snap); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	found := false
	for _, stage := range snap.Stages {
		if stage.Stage == observability.StageSpeakDispatch {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a %q stage in %+v", observability.StageSpeakDispatch, snap.Stages)
	}
}

func TestHandleMotionRejectsUnknownGroupAsErrorResult(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{"motionGroup": "nonexistent", "motionIndex": 0})
	res, err := http.Post(ts.URL+"/api/motion", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/motion error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d (NotFoundError surfaces as 200/status=error)", res.StatusCode, http.StatusOK)
	}

	var payload map[string]any
	if err := json.NewDecoder(res.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["status"] != "error" {
		t.Fatalf("status = %v, want error", payload["status"])
	}
}

func TestHandleAutonomousSpeakRejectsEmptyPayload(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	res, err := http.Post(ts.URL+"/api/autonomous/speak", "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("POST /api/autonomous/speak error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestHandleAutonomousControlAndStatus(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{"enabled": true, "min_interval": 10.0, "max_interval": 20.0})
	res, err := http.Post(ts.URL+"/api/autonomous/control", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/autonomous/control error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}

	statusRes, err := http.Get(ts.URL + "/api/autonomous/status")
	if err != nil {
		t.Fatalf("GET /api/autonomous/status error = %v", err)
	}
	defer statusRes.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(statusRes.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["mode"] != "autonomous" {
		t.Fatalf("mode = %v, want autonomous", payload["mode"])
	}
	if payload["min_interval_seconds"] != 10.0 {
		t.Fatalf("min_interval_seconds = %v, want 10", payload["min_interval_seconds"])
	}
}

func TestHandleAutonomousControlRejectsInvertedInterval(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{"min_interval": 50.0, "max_interval": 10.0})
	res, err := http.Post(ts.URL+"/api/autonomous/control", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/autonomous/control error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestHandleChatIngestAcceptsAndRejectsMalformed(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	body, _ := json.Marshal(map[string]any{"user_id": "viewer1", "text": "hey there"})
	res, err := http.Post(ts.URL+"/api/chat/ingest", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/chat/ingest error = %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusAccepted)
	}

	badRes, err := http.Post(ts.URL+"/api/chat/ingest", "application/json", bytes.NewReader([]byte(`{"user_id":"viewer1"}`)))
	if err != nil {
		t.Fatalf("POST /api/chat/ingest error = %v", err)
	}
	defer badRes.Body.Close()
	if badRes.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", badRes.StatusCode, http.StatusBadRequest)
	}
}

func TestClientWSRoundTrip(t *testing.T) {
	srv, sessions, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/client-ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	if err := conn.WriteJSON(map[string]any{"type": "get-backend-mode"}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var reply map[string]any
	if err := conn.ReadJSON(&reply); err != nil {
		t.Fatalf("ReadJSON() error = %v", err)
	}
	if reply["type"] != "backend-mode-set" {
		t.Fatalf("reply type = %v, want backend-mode-set", reply["type"])
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if len(sessions.Sessions()) == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected exactly one registered session")
}
