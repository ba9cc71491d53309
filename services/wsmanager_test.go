package services

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newWSServer регистрирует каждое входящее соединение в hub под account из query
func newWSServer(t *testing.T, hub *WSConnManager) func(account string) *websocket.Conn {
	t.Helper()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		account := r.URL.Query().Get("account")
		hub.Add(account, conn)
		defer hub.Remove(account, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)

	return func(account string) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?account=" + account
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}
}

func readText(t *testing.T, conn *websocket.Conn) string {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestWSConnManagerSendAndBroadcast(t *testing.T) {
	hub := NewWSConnManager()
	dial := newWSServer(t, hub)

	alice := dial("alice")
	bob := dial("bob")
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 5*time.Second, 10*time.Millisecond)

	hub.Send("alice", []byte("only alice"))
	hub.Broadcast([]byte("everyone"))

	assert.Equal(t, "only alice", readText(t, alice))
	assert.Equal(t, "everyone", readText(t, alice))
	assert.Equal(t, "everyone", readText(t, bob))

	require.NoError(t, bob.Close())
	require.Eventually(t, func() bool { return hub.Count() == 1 }, 5*time.Second, 10*time.Millisecond)
	hub.Send("bob", []byte("nobody listens"))
}

func TestWSConnManagerStalledClientDoesNotBlockOthers(t *testing.T) {
	hub := NewWSConnManager().WithWriteWait(100 * time.Millisecond)
	dial := newWSServer(t, hub)

	// клиент, который ничего не читает: его сокет рано или поздно переполнится
	dial("stalled")
	active := dial("active")
	require.Eventually(t, func() bool { return hub.Count() == 2 }, 5*time.Second, 10*time.Millisecond)

	var received atomic.Int64
	go func() {
		for {
			if _, _, err := active.ReadMessage(); err != nil {
				return
			}
			received.Add(1)
		}
	}()

	message := bytes.Repeat([]byte("x"), 1<<20)
	sent := int64(0)
	started := time.Now()
	for i := 0; i < 200 && hub.Count() == 2; i++ {
		hub.Broadcast(message)
		sent++
	}
	elapsed := time.Since(started)

	require.Eventually(t, func() bool { return hub.Count() == 1 }, 5*time.Second, 10*time.Millisecond,
		"stalled connection is dropped after its write deadline")
	assert.Less(t, elapsed, 30*time.Second)
	assert.Eventually(t, func() bool { return received.Load() == sent }, 10*time.Second, 10*time.Millisecond,
		"active client keeps receiving every broadcast")
}
