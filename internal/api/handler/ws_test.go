package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stringchat/backend/internal/api/handler"
	"stringchat/backend/internal/chathub"
	"stringchat/backend/internal/config"
	"stringchat/backend/internal/models"
	"stringchat/backend/internal/moderation"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWSServer stands up a live hub behind an httptest server so tests
// can drive the full token-check, upgrade, and relay path.
func newWSServer(t *testing.T) (*httptest.Server, *handler.Handler) {
	t.Helper()

	fs := newFakeStorage()
	matcher := chathub.NewMatcherService()
	sessions := chathub.NewSessionRegistry(config.SessionPurgeGrace)
	mod := moderation.NewService(fs, config.ViolationThreshold)
	hub := chathub.NewManagerService(matcher, sessions, mod)
	go hub.Run(t.Context())

	h := handler.NewHandler(hub, fs, nil, nil, []byte("test-secret"))

	r := gin.New()
	r.GET("/anonid", h.GetAnonID)
	r.GET("/ws", h.ServeWebSocket)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, h
}

func mintToken(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	resp, err := http.Get(srv.URL + "/anonid")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func dialWS(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestServeWebSocketRejectsMissingToken(t *testing.T) {
	srv, _ := newWSServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeWebSocketRejectsTamperedToken(t *testing.T) {
	srv, _ := newWSServer(t)

	token := mintToken(t, srv)
	tampered := token[:len(token)-2] + "xx"

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + tampered
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeWebSocketRejectsForeignSignature(t *testing.T) {
	srv, _ := newWSServer(t)

	// A token signed by a different secret must not pass.
	foreign, fh := newWSServer(t)
	fh.JWTSecret = []byte("another-secret")
	token := mintToken(t, foreign)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestServeWebSocketPairsTwoClients(t *testing.T) {
	srv, _ := newWSServer(t)

	connA := dialWS(t, srv, "?token="+mintToken(t, srv))
	connB := dialWS(t, srv, "?token="+mintToken(t, srv))

	join, err := json.Marshal(models.Envelope{Event: models.EventJoinQueue})
	require.NoError(t, err)

	require.NoError(t, connA.WriteMessage(websocket.TextMessage, join))
	env := readEnvelope(t, connA)
	require.Equal(t, models.EventWaiting, env.Event)

	require.NoError(t, connB.WriteMessage(websocket.TextMessage, join))
	envA := readEnvelope(t, connA)
	envB := readEnvelope(t, connB)
	assert.Equal(t, models.EventMatched, envA.Event)
	assert.Equal(t, models.EventMatched, envB.Event)
}

func TestServeWebSocketDropsUnknownEvents(t *testing.T) {
	srv, _ := newWSServer(t)
	conn := dialWS(t, srv, "?token="+mintToken(t, srv))

	// Unknown events and malformed frames are dropped at the socket
	// boundary; the connection stays up.
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"shutdown"}`)))
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`not json`)))

	join, err := json.Marshal(models.Envelope{Event: models.EventJoinQueue})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, join))

	env := readEnvelope(t, conn)
	assert.Equal(t, models.EventWaiting, env.Event)
}

func readEnvelope(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var env models.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}
