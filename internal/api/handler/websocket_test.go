package handler

import (
	"context"
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

	"github.com/depix/seem_server/internal/pkg/pubsub"
	"github.com/depix/seem_server/internal/pkg/ws"
)

type staticAuthenticator map[string]string

func (a staticAuthenticator) Authenticate(_ context.Context, token string) (string, error) {
	if id, ok := a[token]; ok {
		return id, nil
	}
	return "", errors.New("unknown token")
}

func setupWebSocketServer(t *testing.T, origins []string) (*ws.Hub, *httptest.Server) {
	t.Helper()

	hub := ws.NewHub(discardLogger())
	handler := NewWebSocketHandler(hub, staticAuthenticator{"good-token": "user-ws"}, testCookieName, origins, discardLogger())

	router := gin.New()
	router.GET("/ws", handler.Handle)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return hub, srv
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
}

func TestWebSocketHandler_ReceivesStatus(t *testing.T) {
	hub, srv := setupWebSocketServer(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "?token=good-token"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.IsOnline("user-ws")
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.PublishStatus(context.Background(), &pubsub.StatusMessage{
		UserID:       "user-ws",
		GenerationID: "gen-9",
		Status:       "generating",
	}))

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(data), "gen-9")

	conn.Close()
	require.Eventually(t, func() bool {
		return !hub.IsOnline("user-ws")
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_BearerHeader(t *testing.T) {
	hub, srv := setupWebSocketServer(t, nil)

	header := http.Header{}
	header.Set("Authorization", "Bearer good-token")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), header)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return hub.IsOnline("user-ws")
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocketHandler_Rejected(t *testing.T) {
	_, srv := setupWebSocketServer(t, []string{"https://seem.example.com"})

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(srv, "?token=bad"), nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	header := http.Header{}
	header.Set("Origin", "https://evil.example.com")
	_, resp, err = websocket.DefaultDialer.Dial(wsURL(srv, "?token=good-token"), header)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
