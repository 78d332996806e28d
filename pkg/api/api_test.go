package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	frontdeskv1 "github.com/telekom/frontdesk/api/v1"
	"github.com/telekom/frontdesk/pkg/apiresponses"
	"github.com/telekom/frontdesk/pkg/callback"
	"github.com/telekom/frontdesk/pkg/config"
	"github.com/telekom/frontdesk/pkg/escalation"
	"github.com/telekom/frontdesk/pkg/notify"
	"github.com/telekom/frontdesk/pkg/store/memory"
	"github.com/telekom/frontdesk/pkg/system"
)

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testEnv struct {
	server    *Server
	handler   http.Handler
	manager   *escalation.Manager
	knowledge *escalation.KnowledgeBase
	hub       *notify.Hub
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config, *Dependencies)) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)
	sugar := log.Sugar()

	s := memory.New()
	hub := notify.NewHub(sugar)
	kb := escalation.NewKnowledgeBase(s, hub, escalation.WithKnowledgeLogger(sugar))
	m := escalation.NewManager(s, hub, escalation.WithLogger(sugar), escalation.WithKnowledge(kb))

	cfg := config.Defaults()
	cfg.RateLimit.Rate = 0
	deps := Dependencies{Manager: m, Knowledge: kb, Hub: hub, Store: s}
	for _, fn := range mutate {
		fn(&cfg, &deps)
	}

	server := NewServer(log, cfg, deps)
	require.NoError(t, server.RegisterDefaults())
	t.Cleanup(func() {
		_ = server.Shutdown(context.Background())
		hub.Close()
	})
	return &testEnv{server: server, handler: server.Handler(), manager: m, knowledge: kb, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestHelpRequestLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodPost, "/api/help-requests", CreateHelpRequest{
		Question:   "Do you have evening appointments?",
		CallerInfo: "+1 (555) 123-4567",
		SessionID:  "room-123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[frontdeskv1.Escalation](t, w)
	assert.Equal(t, frontdeskv1.EscalationStatusPending, created.Status)
	assert.Equal(t, "room-123", created.SessionID)
	assert.NotEmpty(t, w.Header().Get(system.RequestIDHeader))

	w = env.do(t, http.MethodGet, "/api/help-requests/"+created.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[frontdeskv1.Escalation](t, w).ID)

	w = env.do(t, http.MethodPut, "/api/help-requests/"+created.ID+"/answer", map[string]string{
		"answer":          "Yes, until 9pm on Thursdays",
		"supervisor_name": "Dana",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resolved := decode[frontdeskv1.Escalation](t, w)
	assert.Equal(t, frontdeskv1.EscalationStatusResolved, resolved.Status)
	assert.Equal(t, "Dana", resolved.AnsweredBy)

	// a second answer loses
	w = env.do(t, http.MethodPut, "/api/help-requests/"+created.ID+"/answer", map[string]string{
		"answer":      "No",
		"answered_by": "Sam",
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "CONFLICT", decode[apiresponses.APIError](t, w).Code)

	// the answer was learned
	entries, err := env.knowledge.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, frontdeskv1.KnowledgeSourceLearned, entries[0].Source)

	w = env.do(t, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, frontdeskv1.Stats{Resolved: 1, Total: 1}, decode[frontdeskv1.Stats](t, w))
}

func TestAnswerFromQueryParameters(t *testing.T) {
	env := newTestEnv(t)

	e, err := env.manager.Create(context.Background(), "Is there parking?", "555-0102", "")
	require.NoError(t, err)

	w := env.do(t, http.MethodPut, "/api/help-requests/"+e.ID+"/answer?answer=Out+back&supervisor_name=Dana", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resolved := decode[frontdeskv1.Escalation](t, w)
	assert.Equal(t, frontdeskv1.EscalationStatusResolved, resolved.Status)
	assert.Equal(t, "Out back", resolved.Answer)
	assert.Equal(t, "Dana", resolved.AnsweredBy)
}

func TestHelpRequestErrors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		status int
	}{
		{"empty question", http.MethodPost, "/api/help-requests", CreateHelpRequest{Question: "  "}, http.StatusBadRequest},
		{"unknown id", http.MethodGet, "/api/help-requests/missing", nil, http.StatusNotFound},
		{"answer unknown id", http.MethodPut, "/api/help-requests/missing/answer", map[string]string{"answer": "a", "answered_by": "b"}, http.StatusNotFound},
		{"answer without operator", http.MethodPut, "/api/help-requests/missing/answer", map[string]string{"answer": "a"}, http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/api/help-requests?status=archived", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
		})
	}

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/help-requests", strings.NewReader("{"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		env.handler.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestHelpRequestListFilter(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	a, err := env.manager.Create(ctx, "first?", "", "")
	require.NoError(t, err)
	_, err = env.manager.Create(ctx, "second?", "", "")
	require.NoError(t, err)
	_, err = env.manager.Resolve(ctx, a.ID, "answer", "op")
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/help-requests", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]frontdeskv1.Escalation](t, w), 2)

	w = env.do(t, http.MethodGet, "/api/help-requests?status=pending", nil)
	require.Equal(t, http.StatusOK, w.Code)
	pending := decode[[]frontdeskv1.Escalation](t, w)
	require.Len(t, pending, 1)
	assert.Equal(t, "second?", pending[0].Question)

	w = env.do(t, http.MethodGet, "/api/help-requests?status=timeout", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))
}

func TestKnowledgeBaseRoutes(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/knowledge-base", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", strings.TrimSpace(w.Body.String()))

	w = env.do(t, http.MethodPost, "/api/knowledge-base", CreateKnowledgeRequest{Question: "Do you sell gift cards?", Answer: "Yes"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	entry := decode[frontdeskv1.KnowledgeEntry](t, w)
	assert.Equal(t, frontdeskv1.KnowledgeSourceManual, entry.Source)

	// query parameters are accepted too
	w = env.do(t, http.MethodPost, "/api/knowledge-base?question=Parking%3F&answer=Out+back", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/knowledge-base", CreateKnowledgeRequest{Question: "only a question"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/api/knowledge-base/entries/"+entry.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, entry.Question, decode[frontdeskv1.KnowledgeEntry](t, w).Question)

	w = env.do(t, http.MethodPost, "/api/knowledge-base/entries/"+entry.ID+"/use", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(1), decode[frontdeskv1.KnowledgeEntry](t, w).UseCount)

	w = env.do(t, http.MethodGet, "/api/knowledge-base/entries/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/api/knowledge-base/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	exported := decode[map[string]string](t, w)
	assert.Equal(t, "Yes", exported["do_you_sell_gift_cards?"])
	assert.Equal(t, "Out back", exported["parking?"])
}

type staticOutbox []callback.Message

func (o staticOutbox) Recent() []callback.Message { return o }

func TestCallbackOutboxRoute(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, http.MethodGet, "/api/callbacks", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	sent := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	env = newTestEnv(t, func(_ *config.Config, d *Dependencies) {
		d.Callbacks = staticOutbox{{Kind: callback.KindAnswered, EscalationID: "esc-1", To: "555-0101", Text: "Yes", SentAt: sent}}
	})
	w = env.do(t, http.MethodGet, "/api/callbacks", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	msgs := decode[[]callback.Message](t, w)
	require.Len(t, msgs, 1)
	assert.Equal(t, "esc-1", msgs[0].EscalationID)
	assert.True(t, sent.Equal(msgs[0].SentAt))

	env = newTestEnv(t, func(_ *config.Config, d *Dependencies) { d.Callbacks = staticOutbox(nil) })
	w = env.do(t, http.MethodGet, "/api/callbacks", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, "[]", w.Body.String())
}

func TestSystemRoutes(t *testing.T) {
	t.Run("health and version", func(t *testing.T) {
		env := newTestEnv(t)

		w := env.do(t, http.MethodGet, "/healthz", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "healthy", decode[healthResponse](t, w).Status)

		w = env.do(t, http.MethodGet, "/api/version", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"version"`)

		w = env.do(t, http.MethodGet, "/api/config", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, int64(7200), decode[FrontendConfig](t, w).TimeoutSeconds)

		w = env.do(t, http.MethodGet, "/metrics", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "frontdesk_api_requests_total")
	})

	t.Run("unhealthy store", func(t *testing.T) {
		env := newTestEnv(t, func(_ *config.Config, d *Dependencies) { d.Store = failingPinger{} })
		w := env.do(t, http.MethodGet, "/healthz", nil)
		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "unhealthy", decode[healthResponse](t, w).Status)
	})
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config, _ *Dependencies) {
		c.RateLimit.Rate = 1
		c.RateLimit.Burst = 1
	})

	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/stats", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, env.do(t, http.MethodGet, "/api/stats", nil).Code)
	// probes are never limited
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/healthz", nil).Code)
}

func TestSupervisorSocket(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/supervisor"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(notify.PingMessage)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, notify.PongMessage, string(msg))

	e, err := env.manager.Create(context.Background(), "Are you open on Sundays?", "", "")
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err = conn.ReadMessage()
	require.NoError(t, err)
	var env2 notify.Envelope
	require.NoError(t, json.Unmarshal(msg, &env2))
	assert.Equal(t, notify.EventNewRequest, env2.Type)
	ev, err := env2.Decode()
	require.NoError(t, err)
	assert.Equal(t, e.ID, ev.(*notify.NewRequest).RequestID)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return env.hub.Count() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestShutdownClosesSockets(t *testing.T) {
	env := newTestEnv(t)
	srv := httptest.NewServer(env.handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/supervisor"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	require.Eventually(t, func() bool { return env.hub.Count() == 1 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, env.server.Shutdown(ctx))
	require.Eventually(t, func() bool { return env.hub.Count() == 0 }, 2*time.Second, 5*time.Millisecond)

	// Close after Shutdown is a no-op
	env.server.Close()
}
