package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hilthontt/tunesync/internal/domain"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsServer upgrades every request and hands the connection to fn.
func wsServer(t *testing.T, fn func(conn *websocket.Conn)) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		fn(conn)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestChannel_ReceivesEvents(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		ev := domain.NewJoinEvent("lounge", "bob")
		require.NoError(t, conn.WriteJSON(ev))

		// Hold the connection open until the client hangs up
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ch, err := Dial(context.Background(), url, Options{})
	require.NoError(t, err)
	defer ch.Close()

	select {
	case ev := <-ch.Events():
		assert.Equal(t, domain.ActionMembersEdit, ev.Action)
		assert.Equal(t, "bob", ev.User)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestChannel_SkipsMalformedEvents(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{not json")))
		require.NoError(t, conn.WriteJSON(domain.NewLeaveEvent("lounge", "bob")))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ch, err := Dial(context.Background(), url, Options{})
	require.NoError(t, err)
	defer ch.Close()

	select {
	case ev := <-ch.Events():
		// The garbage frame is skipped; the valid one arrives.
		assert.Equal(t, "bob left the room", ev.Notify)
	case <-time.After(2 * time.Second):
		t.Fatal("no event delivered")
	}
}

func TestChannel_Send(t *testing.T) {
	received := make(chan *domain.Event, 1)

	url := wsServer(t, func(conn *websocket.Conn) {
		var ev domain.Event
		if err := conn.ReadJSON(&ev); err == nil {
			received <- &ev
		}
	})

	ch, err := Dial(context.Background(), url, Options{})
	require.NoError(t, err)
	defer ch.Close()

	track := domain.Track{Name: "song", URL: "https://cdn/song.mp3"}
	require.NoError(t, ch.Send(domain.NewPlaybackEvent("lounge", track, 12, true, "")))

	select {
	case ev := <-received:
		assert.Equal(t, domain.ActionPlayback, ev.Action)
		assert.Equal(t, 12.0, ev.CurrentTime)
		assert.True(t, ev.IsPlaying)
	case <-time.After(2 * time.Second):
		t.Fatal("server never received the event")
	}
}

func TestChannel_InitialStatusConnected(t *testing.T) {
	url := wsServer(t, func(conn *websocket.Conn) {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	ch, err := Dial(context.Background(), url, Options{})
	require.NoError(t, err)
	defer ch.Close()

	select {
	case s := <-ch.StatusChanges():
		assert.Equal(t, StatusConnected, s)
	case <-time.After(time.Second):
		t.Fatal("no status delivered")
	}
}

func TestChannel_GivesUpAfterBudget(t *testing.T) {
	// Upgraded connections are hijacked, so the test server cannot close
	// them itself; track them and cut them off by hand.
	var (
		connMu sync.Mutex
		conns  []*websocket.Conn
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		connMu.Lock()
		conns = append(conns, conn)
		connMu.Unlock()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	ch, err := Dial(context.Background(), url, Options{
		MaxAttempts:    2,
		ReconnectDelay: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	defer ch.Close()

	<-ch.StatusChanges() // connected

	// Stop the listener first so every reconnect attempt fails, then
	// drop the live connection to trigger the reconnect loop.
	srv.Close()
	connMu.Lock()
	for _, conn := range conns {
		conn.Close()
	}
	connMu.Unlock()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-ch.StatusChanges():
			if s == StatusGivenUp {
				return
			}
		case <-deadline:
			t.Fatal("channel never gave up")
		}
	}
}

func TestChannel_SendWhileDisconnected(t *testing.T) {
	ch := &Channel{}
	err := ch.Send(domain.NewJoinEvent("lounge", "bob"))
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestChannel_DialFailure(t *testing.T) {
	_, err := Dial(context.Background(), "ws://127.0.0.1:1/api/rooms/x/ws", Options{})
	assert.Error(t, err)
}
