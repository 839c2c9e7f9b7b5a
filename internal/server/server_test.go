package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spigell/resume-chat/internal/agent"
	"github.com/spigell/resume-chat/internal/conversation"
)

// echoEngine answers every message with a resume route and focuses on 42.
type echoEngine struct {
	fail     atomic.Bool
	running  atomic.Int32
	maxSeen  atomic.Int32
	hold     time.Duration
	received []string
	mu       sync.Mutex
}

func (e *echoEngine) Advance(_ context.Context, s conversation.State, text string) (conversation.State, error) {
	if strings.TrimSpace(text) == "" {
		return s, agent.ErrEmptyMessage
	}

	n := e.running.Add(1)
	defer e.running.Add(-1)
	for {
		seen := e.maxSeen.Load()
		if n <= seen || e.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(e.hold)

	e.mu.Lock()
	e.received = append(e.received, text)
	e.mu.Unlock()

	if e.fail.Load() {
		return s, errors.New("upstream unavailable")
	}

	usage := &conversation.Usage{InputTokens: 3, OutputTokens: 2, TotalTokens: 5}
	return s.
		WithMessage(conversation.UserMessage(text)).
		WithRoute(conversation.RouteResume).
		WithMessage(conversation.AssistantMessage("echo: "+text, usage)).
		WithUsage(usage).
		WithFocus([]int64{42}), nil
}

func newTestServer(engine *echoEngine) *httptest.Server {
	return httptest.NewServer(New(engine, time.Minute, zap.NewNop()).Routes())
}

func createSession(t *testing.T, ts *httptest.Server) string {
	t.Helper()
	resp, err := http.Post(ts.URL+"/sessions", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body["id"])
	return body["id"]
}

func postMessage(t *testing.T, ts *httptest.Server, id, payload string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/sessions/"+id+"/messages", "application/json", strings.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func getView(t *testing.T, ts *httptest.Server, id string) View {
	t.Helper()
	resp, err := http.Get(ts.URL + "/sessions/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var view View
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

func TestTurnLifecycle(t *testing.T) {
	ts := newTestServer(&echoEngine{})
	defer ts.Close()

	id := createSession(t, ts)

	resp := postMessage(t, ts, id, `{"text":"  compare 57667857 and 11847784 "}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var turn turnResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&turn))
	assert.Equal(t, "echo: compare 57667857 and 11847784", turn.Reply)
	assert.Equal(t, conversation.RouteResume, turn.Route)
	assert.Equal(t, "Resume agent (resume database)", turn.Source)
	assert.Equal(t, []int64{42}, turn.FocusIDs)
	assert.Equal(t, 5, turn.Totals.TotalTokens)

	second := postMessage(t, ts, id, `{"text":"and the first one?"}`)
	second.Body.Close()

	view := getView(t, ts, id)
	assert.Len(t, view.History, 4)
	assert.Equal(t, 2, view.Turns)
	assert.Equal(t, 10, view.Totals.TotalTokens)
	assert.Equal(t, 6, view.Totals.InputTokens)
}

func TestTurnFailureKeepsState(t *testing.T) {
	engine := &echoEngine{}
	ts := newTestServer(engine)
	defer ts.Close()

	id := createSession(t, ts)
	ok := postMessage(t, ts, id, `{"text":"hello"}`)
	ok.Body.Close()

	engine.fail.Store(true)
	resp := postMessage(t, ts, id, `{"text":"tell me about 57667857"}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotEmpty(t, body.Error)

	view := getView(t, ts, id)
	assert.Len(t, view.History, 2)
	assert.Equal(t, 1, view.Turns)
}

func TestPostMessageValidation(t *testing.T) {
	ts := newTestServer(&echoEngine{})
	defer ts.Close()

	id := createSession(t, ts)

	for _, payload := range []string{`{"text":"   "}`, `{}`, `not json`, `{"text":"` + strings.Repeat("a", 4001) + `"}`} {
		resp := postMessage(t, ts, id, payload)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, payload)
	}

	assert.Empty(t, getView(t, ts, id).History)
}

func TestUnknownAndDeletedSessions(t *testing.T) {
	ts := newTestServer(&echoEngine{})
	defer ts.Close()

	resp := postMessage(t, ts, "missing", `{"text":"hi"}`)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	id := createSession(t, ts)
	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/sessions/"+id, nil)
	require.NoError(t, err)

	del, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	del.Body.Close()
	assert.Equal(t, http.StatusNoContent, del.StatusCode)

	get, err := http.Get(ts.URL + "/sessions/" + id)
	require.NoError(t, err)
	get.Body.Close()
	assert.Equal(t, http.StatusNotFound, get.StatusCode)
}

func TestSessionsAreIsolated(t *testing.T) {
	ts := newTestServer(&echoEngine{})
	defer ts.Close()

	a := createSession(t, ts)
	b := createSession(t, ts)
	require.NotEqual(t, a, b)

	resp := postMessage(t, ts, a, `{"text":"only in a"}`)
	resp.Body.Close()

	assert.Len(t, getView(t, ts, a).History, 2)
	assert.Empty(t, getView(t, ts, b).History)
	assert.Empty(t, getView(t, ts, b).FocusIDs)
}

func TestTurnsOfOneSessionAreSerialized(t *testing.T) {
	engine := &echoEngine{hold: 20 * time.Millisecond}
	ts := newTestServer(engine)
	defer ts.Close()

	id := createSession(t, ts)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Post(ts.URL+"/sessions/"+id+"/messages", "application/json", strings.NewReader(`{"text":"hi"}`))
			if err == nil {
				resp.Body.Close()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), engine.maxSeen.Load())
	assert.Equal(t, 4, getView(t, ts, id).Turns)
}
