package notifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wrap-render-server/modules/common/logger"
	"wrap-render-server/modules/render"
	"wrap-render-server/modules/renderset"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		kind      Kind
		retryable bool
	}{
		{"validation", render.NewValidationError("vehicle", "year, make and model are required"), KindValidation, false},
		{"quota", fmt.Errorf("%w: 10 of 10 used", render.ErrQuotaDenied), KindQuotaDenied, false},
		{"auth by message", errors.New("JWT expired"), KindAuthRequired, false},
		{"remote", &render.RemoteError{Operation: "generate", StatusCode: 500}, KindError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := FromError(tt.err)
			assert.Equal(t, tt.kind, n.Kind)
			assert.Equal(t, tt.retryable, n.Retryable)
			assert.NotEmpty(t, n.Title)
			assert.NotEmpty(t, n.Message)
		})
	}

	assert.Equal(t, "vehicle: year, make and model are required",
		FromError(render.NewValidationError("vehicle", "year, make and model are required")).Message)
}

func TestPartial(t *testing.T) {
	n := Partial([]render.ViewType{render.ViewRear, render.ViewTop})
	assert.Equal(t, KindPartial, n.Kind)
	assert.Equal(t, "Rear 3/4, Top Down could not be generated.", n.Message)
	assert.Equal(t, []render.ViewType{render.ViewRear, render.ViewTop}, n.Incomplete)
}

func TestMultiAndRecorder(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	m := Multi{a, b, Nop{}}

	m.Notify("s1", Success("Hero"))
	m.Progress("s1", Progress{State: "views_in_flight", Pending: []render.ViewType{render.ViewSide}})

	for _, r := range []*Recorder{a, b} {
		assert.Len(t, r.Notifications("s1"), 1)
		assert.Len(t, r.Updates("s1"), 1)
		assert.Equal(t, 1, r.Count("s1", KindSuccess))
		assert.Equal(t, 0, r.Count("s1", KindPartial))
		assert.Empty(t, r.Notifications("other"))
	}
}

func hubMux(hub *Hub) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.ServeWS)
	return mux
}

func dialHub(t *testing.T, srvURL, session, user string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srvURL, "http") + "/ws?session=" + session + "&user=" + user
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func waitForClients(t *testing.T, hub *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool { return hub.Stats().CurrentClients == n }, 2*time.Second, 10*time.Millisecond)
}

func TestHubBroadcastsToSession(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(hubMux(hub))
	defer srv.Close()

	alice := dialHub(t, srv.URL, "design-1", "alice")
	defer alice.Close()
	bob := dialHub(t, srv.URL, "design-1", "bob")
	defer bob.Close()
	other := dialHub(t, srv.URL, "design-2", "carol")
	defer other.Close()
	waitForClients(t, hub, 3)

	hub.Notify("design-1", Success("Hero"))

	for _, conn := range []*websocket.Conn{alice, bob} {
		msg := readMessage(t, conn)
		assert.Equal(t, "notification", msg.Type)
		assert.Equal(t, "design-1", msg.SessionID)
		require.NotNil(t, msg.Notification)
		assert.Equal(t, KindSuccess, msg.Notification.Kind)
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err, "other sessions receive nothing")
}

func TestHubReplaysLatestProgress(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(hubMux(hub))
	defer srv.Close()

	hub.Progress("design-1", Progress{
		State:   "views_in_flight",
		Views:   []renderset.Entry{{View: render.ViewHero, URL: "https://cdn/hero.webp"}},
		Pending: []render.ViewType{render.ViewSide, render.ViewRear},
	})

	late := dialHub(t, srv.URL, "design-1", "late")
	defer late.Close()

	msg := readMessage(t, late)
	assert.Equal(t, "progress", msg.Type)
	require.NotNil(t, msg.Progress)
	assert.Equal(t, []render.ViewType{render.ViewSide, render.ViewRear}, msg.Progress.Pending)
}

func TestHubCleanup(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(hubMux(hub))
	defer srv.Close()

	hub.Progress("abandoned", Progress{State: "settled"})
	conn := dialHub(t, srv.URL, "live", "alice")
	defer conn.Close()
	waitForClients(t, hub, 1)

	assert.Equal(t, 1, hub.CleanupEmpty())
	assert.Equal(t, 1, hub.Stats().ActiveSessions)
	assert.Equal(t, 0, hub.CleanupExpired())
}

func TestHubRejectsMissingParams(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(hubMux(hub))
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws?session=x", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}
