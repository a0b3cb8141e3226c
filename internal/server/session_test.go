package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/openmeetings/meetsearch/internal/engine"
	"github.com/openmeetings/meetsearch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func dialSession(t *testing.T, srv *Server, query string) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/session"
	if query != "" {
		u += "?" + query
	}
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(Event) bool) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var ev Event
		require.NoError(t, conn.ReadJSON(&ev))
		if match(ev) {
			return ev
		}
	}
}

func stateWhere(pred func(Event) bool) func(Event) bool {
	return func(ev Event) bool { return ev.Type == EventState && ev.State != nil && pred(ev) }
}

func TestSession_Flow(t *testing.T) {
	srv := newTestServer(t, seededBackend(t))
	conn := dialSession(t, srv, "keyphrase=budget")

	hello := readUntil(t, conn, func(ev Event) bool { return true })
	require.Equal(t, EventSession, hello.Type)
	assert.NotEmpty(t, hello.Session)

	ev := readUntil(t, conn, stateWhere(func(ev Event) bool {
		return ev.State.Results.ResultsInfo.Found == 2 && ev.State.BodyFacet.Len() == 2
	}))
	assert.Equal(t, "budget", ev.State.Keyphrase)

	require.NoError(t, conn.WriteJSON(Intent{Type: IntentBody, Body: strPtr("Board of Health")}))
	ev = readUntil(t, conn, stateWhere(func(ev Event) bool {
		return len(ev.State.Results.Results) == 1 && ev.State.Results.Results[0].ID == "m4"
	}))
	assert.Equal(t, "body=Board+of+Health&keyphrase=budget", ev.Query)
	assert.Equal(t, 2, ev.State.BodyFacet.Len(), "body selection leaves facets alone")

	require.NoError(t, conn.WriteJSON(Intent{Type: IntentDates, DateStart: "2023-03-01", DateEnd: "2023-03-31"}))
	ev = readUntil(t, conn, stateWhere(func(ev Event) bool {
		n, ok := ev.State.FilteredBodyFacet.Get("Board of Health")
		return ev.State.Filters.DatesActive() && ok && n == 0 && ev.State.Results.ResultsInfo.Found == 0
	}))
	n, _ := ev.State.FilteredBodyFacet.Get("School Committee")
	assert.Equal(t, 1, n)
	require.NotNil(t, ev.State.Filters.Body)
	assert.Equal(t, "Board of Health", *ev.State.Filters.Body)

	require.NoError(t, conn.WriteJSON(Intent{Type: IntentKeyphrase, Text: "taskforce"}))
	ev = readUntil(t, conn, stateWhere(func(ev Event) bool {
		return ev.State.Keyphrase == "taskforce" && ev.State.Results.ResultsInfo.Found == 2
	}))
	assert.Nil(t, ev.State.Filters.Body, "a new keyphrase clears the body")
	assert.True(t, ev.State.Filters.DatesActive(), "a new keyphrase keeps the dates")

	require.NoError(t, conn.WriteJSON(Intent{Type: IntentLoad, Query: "keyphrase=*&body=all"}))
	readUntil(t, conn, stateWhere(func(ev Event) bool {
		return ev.State.Keyphrase == "*" && !ev.State.Filters.DatesActive() && ev.State.Results.ResultsInfo.Found == 4
	}))
}

func TestSession_DebouncedInput(t *testing.T) {
	cfg := testConfig()
	cfg.Search.Debounce = 50 * time.Millisecond
	srv, err := NewServer(seededBackend(t), cfg, nil)
	require.NoError(t, err)
	conn := dialSession(t, srv, "")

	readUntil(t, conn, stateWhere(func(ev Event) bool { return ev.State.Results.ResultsInfo.Found == 4 }))
	for _, text := range []string{"z", "zo", "zoning"} {
		require.NoError(t, conn.WriteJSON(Intent{Type: IntentInput, Text: text}))
	}
	ev := readUntil(t, conn, stateWhere(func(ev Event) bool { return ev.State.Keyphrase != "*" }))
	assert.Equal(t, "zoning", ev.State.Keyphrase)
}

func TestSession_BadIntents(t *testing.T) {
	srv := newTestServer(t, seededBackend(t))
	conn := dialSession(t, srv, "")

	require.NoError(t, conn.WriteJSON(Intent{Type: "teleport"}))
	ev := readUntil(t, conn, func(ev Event) bool { return ev.Type == EventError })
	assert.Contains(t, ev.Error, "unknown intent")

	require.NoError(t, conn.WriteJSON(Intent{Type: IntentDates, DateStart: "03/01/2023"}))
	ev = readUntil(t, conn, func(ev Event) bool { return ev.Type == EventError })
	assert.Contains(t, ev.Error, "invalid date")

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	ev = readUntil(t, conn, func(ev Event) bool { return ev.Type == EventError })
	assert.Contains(t, ev.Error, "invalid intent")
}

func TestSession_EngineErrorsArePushed(t *testing.T) {
	srv := newTestServer(t, stubBackend{err: engine.ErrConnectivity})
	conn := dialSession(t, srv, "keyphrase=budget")
	ev := readUntil(t, conn, func(ev Event) bool { return ev.Type == EventError })
	assert.Equal(t, msgConnectivity, ev.Error)
}

func TestSession_RejectsBadQuery(t *testing.T) {
	srv := newTestServer(t, stubBackend{})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/api/v1/session?dateEnd=nope", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestServer_StopClosesSessions(t *testing.T) {
	srv := newTestServer(t, seededBackend(t))
	conn := dialSession(t, srv, "")
	readUntil(t, conn, func(ev Event) bool { return ev.Type == EventSession })
	require.Eventually(t, func() bool { return srv.sessions.len() == 1 }, time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	require.Eventually(t, func() bool { return srv.sessions.len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func strPtr(s string) *string { return &s }

func TestSession_PushStateKeepsNewestSnapshot(t *testing.T) {
	sess := newSession("s1", nil, time.UTC, zap.NewNop())
	for i := 0; i < 3*sendBuffer; i++ {
		sess.pushState(models.SearchState{Keyphrase: fmt.Sprintf("k%d", i)})
	}
	assert.Len(t, sess.ready, 1)
	assert.Empty(t, sess.send, "snapshots do not take queue slots")

	var ev Event
	require.NoError(t, json.Unmarshal(sess.takeState(), &ev))
	require.NotNil(t, ev.State)
	assert.Equal(t, fmt.Sprintf("k%d", 3*sendBuffer-1), ev.State.Keyphrase)
	assert.Nil(t, sess.takeState())
}

func TestSession_SlowReaderGetsFinalState(t *testing.T) {
	srv := newTestServer(t, seededBackend(t))
	conn := dialSession(t, srv, "")
	readUntil(t, conn, func(ev Event) bool { return ev.Type == EventSession })

	for i := 0; i < 2*sendBuffer; i++ {
		require.NoError(t, conn.WriteJSON(Intent{Type: IntentKeyphrase, Text: fmt.Sprintf("nothing%d", i)}))
	}
	require.NoError(t, conn.WriteJSON(Intent{Type: IntentKeyphrase, Text: "budget"}))
	time.Sleep(300 * time.Millisecond)

	ev := readUntil(t, conn, stateWhere(func(ev Event) bool {
		return ev.State.Keyphrase == "budget" && ev.State.Results.ResultsInfo.Found == 2
	}))
	assert.Equal(t, 2, ev.State.BodyFacet.Len())
}
