package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/internal/council"
	"quorum/internal/eventbus"
)

type stubPorts struct{}

func (stubPorts) Propose(ctx context.Context, pc council.PortContext) (council.Proposal, error) {
	return council.Proposal{Title: "proposal", Summary: "do the thing"}, nil
}

func (stubPorts) Challenge(ctx context.Context, pc council.PortContext, p council.Proposal) (council.Proposal, error) {
	return council.Proposal{Title: "objection", Summary: "do less"}, nil
}

func (stubPorts) Synthesize(ctx context.Context, a, b council.Proposal, instruction string) (council.Proposal, error) {
	return council.Proposal{Title: "merged"}, nil
}

func (stubPorts) AnalyzeRisk(ctx context.Context, candidate, opposing council.Proposal) (council.RiskAnalysis, error) {
	return council.RiskAnalysis{Summary: "fine"}, nil
}

type testEnv struct {
	server *httptest.Server
	bus    *eventbus.Bus
	reg    *council.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	bus := eventbus.New(ctx, eventbus.Options{})
	ports := council.Ports{
		Proposer:     stubPorts{},
		Challenger:   stubPorts{},
		Synthesizer:  stubPorts{},
		RiskAnalyzer: stubPorts{},
	}
	reg := council.NewRegistry(ports, bus, nil)
	srv := New(Options{
		Registry:  reg,
		Bus:       bus,
		MaxRounds: 3,
	})
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, bus: bus, reg: reg}
}

func (e *testEnv) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(e.server.URL+path, "application/json", bytes.NewReader(payload))
	require.NoError(t, err)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (e *testEnv) createSession(t *testing.T) string {
	t.Helper()
	resp := e.post(t, "/api/sessions", map[string]any{"mission": "decide something"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	id, _ := body["session_id"].(string)
	require.NotEmpty(t, id)
	return id
}

func waitForGate(t *testing.T, e *testEnv, id string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := e.reg.Snapshot(id)
		require.NoError(t, err)
		if snap.AwaitingDecision {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session never reached a pending gate")
}

func waitForPhase(t *testing.T, e *testEnv, id string, phase council.Phase) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		snap, err := e.reg.Snapshot(id)
		require.NoError(t, err)
		if snap.Phase == phase {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session never reached phase %s", phase)
}

func TestHealth(t *testing.T) {
	e := newTestEnv(t)
	resp, err := http.Get(e.server.URL + "/api/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestCreateRequiresMission(t *testing.T) {
	e := newTestEnv(t)
	resp := e.post(t, "/api/sessions", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	resp := e.post(t, "/api/sessions/"+id+"/start", map[string]any{})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	resp.Body.Close()

	waitForGate(t, e, id)

	resp = e.post(t, "/api/sessions/"+id+"/decision", map[string]any{"value": council.DecisionExecuteNow})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	waitForPhase(t, e, id, council.PhaseAdopted)

	getResp, err := http.Get(e.server.URL + "/api/sessions/" + id)
	require.NoError(t, err)
	snap := decodeBody(t, getResp)
	assert.Equal(t, string(council.PhaseAdopted), snap["phase"])
}

func TestDecisionWithoutGateConflicts(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	resp := e.post(t, "/api/sessions/"+id+"/decision", map[string]any{"value": "adopt_a"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "no_pending_decision", body["code"])
}

func TestEscalationBeforeEscalatedConflicts(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	resp := e.post(t, "/api/sessions/"+id+"/escalation", map[string]any{"action": "abort"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "not_escalated", body["code"])
}

func TestUnknownSessionIs404(t *testing.T) {
	e := newTestEnv(t)
	resp, err := http.Get(e.server.URL + "/api/sessions/ghost")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestWebSocketStreamsEventsAndAcceptsDecisions(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	wsURL := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/council/" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	resp := e.post(t, "/api/sessions/"+id+"/start", map[string]any{})
	resp.Body.Close()

	// read until the arbitration gate announces itself
	sawAwaiting := false
	var lastSeq uint64
	for !sawAwaiting {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev council.Event
		require.NoError(t, conn.ReadJSON(&ev))
		if ev.Seq > 0 {
			assert.Greater(t, ev.Seq, lastSeq, "events must arrive in order")
			lastSeq = ev.Seq
		}
		if ev.Type == council.EventAwaitingDecision {
			sawAwaiting = true
		}
	}

	require.NoError(t, conn.WriteJSON(map[string]string{
		"type": "decision", "value": council.DecisionExecuteNow,
	}))

	sawComplete := false
	for !sawComplete {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		var probe map[string]any
		require.NoError(t, json.Unmarshal(raw, &probe))
		switch probe["type"] {
		case "decision_ack":
			assert.Equal(t, council.DecisionExecuteNow, probe["value"])
		case string(council.EventComplete):
			sawComplete = true
		}
	}
}

func TestWebSocketReplaysMissedEvents(t *testing.T) {
	e := newTestEnv(t)
	id := e.createSession(t)

	resp := e.post(t, "/api/sessions/"+id+"/start", map[string]any{})
	resp.Body.Close()
	waitForGate(t, e, id)

	// connect only after the session is already suspended on the gate
	wsURL := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/council/" + id
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	types := map[council.EventType]bool{}
	for !types[council.EventAwaitingDecision] {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var ev council.Event
		require.NoError(t, conn.ReadJSON(&ev))
		types[ev.Type] = true
	}
	assert.True(t, types[council.EventProposal], "replay should include the proposal")
	assert.True(t, types[council.EventObjection], "replay should include the objection")
}

func TestWebSocketUnknownSession(t *testing.T) {
	e := newTestEnv(t)
	wsURL := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/ws/council/ghost"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEscalationResolutionOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	resp := e.post(t, "/api/sessions", map[string]any{"mission": "m", "max_rounds": 1})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	body := decodeBody(t, resp)
	id := body["session_id"].(string)

	startResp := e.post(t, fmt.Sprintf("/api/sessions/%s/start", id), map[string]any{})
	startResp.Body.Close()
	waitForGate(t, e, id)

	// single round budget: a reject escalates immediately
	dec := e.post(t, "/api/sessions/"+id+"/decision", map[string]any{"value": "reject", "note": "nope"})
	dec.Body.Close()
	waitForPhase(t, e, id, council.PhaseEscalated)

	esc := e.post(t, "/api/sessions/"+id+"/escalation", map[string]any{"action": "force-A"})
	assert.Equal(t, http.StatusOK, esc.StatusCode)
	esc.Body.Close()

	snap, err := e.reg.Snapshot(id)
	require.NoError(t, err)
	assert.Equal(t, council.PhaseAdopted, snap.Phase)
	require.NotNil(t, snap.Adopted)
	assert.Equal(t, "proposal", snap.Adopted.Title)
}
