package rest

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AndrewDeWitt/grimlog/internal/game/domain/event"
)

func TestStreamPushesAppendedEvents(t *testing.T) {
	server := newServer(t)
	sessionID := createTestSession(t, server)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/sessions/" + sessionID + "/stream"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial stream: %v", err)
	}
	defer conn.Close()
	resp.Body.Close()

	postJSON(t, server.Client(), server.URL+"/api/sessions/"+sessionID+"/commands",
		`{"type": "note.add", "payload": {"text": "streamed"}}`)

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var frames []map[string]any
	if err := conn.ReadJSON(&frames); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	if len(frames) != 1 || frames[0]["type"] != "note.added" {
		t.Fatalf("unexpected frames: %v", frames)
	}
	if frames[0]["sessionId"] != sessionID {
		t.Fatalf("frame must carry the session id, got %v", frames[0])
	}
}

func TestHubBroadcastConcurrentWrites(t *testing.T) {
	hub := NewHub()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		hub.add("sess-1", conn)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	resp.Body.Close()

	const broadcasts = 16
	events := []event.Event{{SessionID: "sess-1", Seq: 1, Type: event.TypeNoteAdded}}
	var wg sync.WaitGroup
	for i := 0; i < broadcasts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Broadcast("sess-1", events)
		}()
	}
	wg.Wait()

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for i := 0; i < broadcasts; i++ {
		var frames []map[string]any
		if err := conn.ReadJSON(&frames); err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		if len(frames) != 1 {
			t.Fatalf("frame %d: unexpected batch %v", i, frames)
		}
	}
}

func TestStreamUnknownSession(t *testing.T) {
	server := newServer(t)
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/sessions/missing/stream"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("expected dial failure for unknown session")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 handshake response, got %+v", resp)
	}
	if resp != nil {
		resp.Body.Close()
	}
}
