package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"relayWs/internal/modules/realtime/application/port"
	"relayWs/internal/modules/realtime/domain"
	"relayWs/internal/shared/auth"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// startSessionServer upgrades a single connection into a session and hands it to setup
// before the pumps start.
func startSessionServer(t *testing.T, hub *Hub, onChat ChatHandler, setup func(*Session)) (*websocket.Conn, <-chan *Session) {
	t.Helper()
	sessions := make(chan *Session, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		session := NewSession(conn, hub, auth.Identity{ID: "1", Username: "alice"}, SessionOptions{SendBuffer: 8}, onChat, nil)
		setup(session)
		session.Start()
		sessions <- session
	}))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, sessions
}

func readType(t *testing.T, conn *websocket.Conn) (string, []byte) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return envelope.Type, raw
}

func TestSessionHistoryPrecedesBacklog(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	topic := domain.RoomTopic("lobby")
	client, _ := startSessionServer(t, hub, nil, func(s *Session) {
		if err := s.Join(topic); err != nil {
			t.Errorf("join: %v", err)
		}
		hub.Broadcast(context.Background(), topic, []byte(`{"type":"chat_message","message":"live"}`))
		if s.State() != SessionConnecting {
			t.Errorf("expected connecting, got %s", s.State())
		}
		if err := s.Activate([]byte(`{"type":"chat_history","messages":[]}`)); err != nil {
			t.Errorf("activate: %v", err)
		}
	})

	if typ, _ := readType(t, client); typ != domain.TypeChatHistory {
		t.Fatalf("expected history first, got %s", typ)
	}
	if typ, raw := readType(t, client); typ != domain.TypeChatMessage || !strings.Contains(string(raw), "live") {
		t.Fatalf("expected live message second, got %s", raw)
	}
}

func TestSessionAbnormalDisconnectLeavesRegistry(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	topic := domain.UserTopic("1")
	client, sessions := startSessionServer(t, hub, nil, func(s *Session) {
		_ = s.Join(topic)
		_ = s.Activate(nil)
	})
	session := <-sessions
	waitFor(t, "join", func() bool { return hub.MemberCount(topic) == 1 })

	// Drop the TCP connection without a close handshake.
	_ = client.UnderlyingConn().Close()

	waitFor(t, "leave", func() bool { return hub.MemberCount(topic) == 0 })
	if session.State() != SessionClosed {
		t.Fatalf("expected closed, got %s", session.State())
	}
	if delivered := hub.Broadcast(context.Background(), topic, []byte("late")); delivered != 0 {
		t.Fatalf("expected no deliveries, got %d", delivered)
	}
	if err := session.Deliver([]byte("late")); !errors.Is(err, port.ErrSessionClosed) {
		t.Fatalf("expected ErrSessionClosed, got %v", err)
	}
}

func TestSessionSurvivesMalformedFrames(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	client, _ := startSessionServer(t, hub, nil, func(s *Session) { _ = s.Activate(nil) })

	for _, frame := range []string{"garbage", `{"type":"unknown"}`, `{"message":"ignored on receive-only"}`} {
		if err := client.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	if err := client.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if typ, _ := readType(t, client); typ != domain.TypePong {
		t.Fatalf("expected pong, got %s", typ)
	}
}

func TestSessionDispatchesChatSends(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	received := make(chan domain.ChatSendCommand, 1)
	onChat := func(_ context.Context, s *Session, cmd domain.ChatSendCommand) error {
		if s.Identity().Username != "alice" {
			t.Errorf("unexpected identity: %#v", s.Identity())
		}
		received <- cmd
		return errors.New("rejected anyway")
	}
	client, _ := startSessionServer(t, hub, onChat, func(s *Session) { _ = s.Activate(nil) })

	if err := client.WriteMessage(websocket.TextMessage, []byte(`{"message":"hi"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	select {
	case cmd := <-received:
		if cmd.Message != "hi" {
			t.Fatalf("unexpected command: %#v", cmd)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("chat handler not invoked")
	}

	if err := client.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if typ, _ := readType(t, client); typ != domain.TypePong {
		t.Fatalf("handler error must not close the session, got %s", typ)
	}
}

func TestSessionCloseIsIdempotentAndLeavesAllTopics(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	session := NewSession(nil, hub, auth.Identity{ID: "1"}, SessionOptions{}, nil, nil)
	hooks := 0
	session.AddCloseHook(func(*Session) { hooks++ })
	session.AddCloseHook(func(*Session) { panic("boom") })

	room, user := domain.RoomTopic("lobby"), domain.UserTopic("1")
	if err := session.Join(room); err != nil {
		t.Fatalf("join: %v", err)
	}
	_ = session.Join(user)
	_ = session.Join(user)
	if got := len(session.Topics()); got != 2 {
		t.Fatalf("expected 2 topics, got %d", got)
	}

	session.Close()
	session.Close()

	if hub.TopicCount() != 0 {
		t.Fatalf("expected empty registry, got %d topics", hub.TopicCount())
	}
	if hooks != 1 {
		t.Fatalf("expected hook to run once, ran %d", hooks)
	}
	select {
	case <-session.Done():
	default:
		t.Fatal("done channel should be closed")
	}
	if err := session.Join(room); !errors.Is(err, port.ErrSessionClosed) {
		t.Fatalf("join after close expected ErrSessionClosed, got %v", err)
	}
	if err := session.Activate(nil); !errors.Is(err, ErrSessionNotConnecting) {
		t.Fatalf("activate after close expected ErrSessionNotConnecting, got %v", err)
	}
}

func TestSessionSlowConsumerIsClosed(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	topic := domain.RoomTopic("lobby")
	session := NewSession(nil, hub, auth.Identity{ID: "1"}, SessionOptions{SendBuffer: 2}, nil, nil)
	_ = session.Join(topic)
	if err := session.Activate(nil); err != nil {
		t.Fatalf("activate: %v", err)
	}

	if err := session.Deliver([]byte("1")); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := session.Deliver([]byte("2")); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if err := session.Deliver([]byte("3")); !errors.Is(err, port.ErrSendBufferFull) {
		t.Fatalf("expected ErrSendBufferFull, got %v", err)
	}
	if session.State() != SessionClosed || hub.MemberCount(topic) != 0 {
		t.Fatalf("slow session should be closed and removed")
	}
}

func TestSessionBacklogOverflowDuringConnect(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	session := NewSession(nil, hub, auth.Identity{ID: "1"}, SessionOptions{SendBuffer: 3}, nil, nil)

	for i := 0; i < 2; i++ {
		if err := session.Deliver([]byte("queued")); err != nil {
			t.Fatalf("deliver %d: %v", i, err)
		}
	}
	if err := session.Deliver([]byte("overflow")); !errors.Is(err, port.ErrSendBufferFull) {
		t.Fatalf("expected ErrSendBufferFull, got %v", err)
	}
	if session.State() != SessionClosed {
		t.Fatalf("expected closed, got %s", session.State())
	}
}

func TestSessionJoinRejectsForeignUserTopic(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	session := NewSession(nil, hub, auth.Identity{ID: "A"}, SessionOptions{}, nil, nil)
	t.Cleanup(session.Close)

	if err := session.Join(domain.UserTopic("B")); !errors.Is(err, port.ErrForbiddenTopic) {
		t.Fatalf("expected ErrForbiddenTopic, got %v", err)
	}
	if err := session.Join(domain.Topic("nonsense")); !errors.Is(err, domain.ErrInvalidTopic) {
		t.Fatalf("expected ErrInvalidTopic, got %v", err)
	}
	if hub.MemberCount(domain.UserTopic("B")) != 0 || len(session.Topics()) != 0 {
		t.Fatal("rejected topics must not be registered")
	}

	if err := session.Join(domain.UserTopic("A")); err != nil {
		t.Fatalf("own topic: %v", err)
	}
	if err := session.Join(domain.RoomTopic("lobby")); err != nil {
		t.Fatalf("room topic: %v", err)
	}
	if hub.MemberCount(domain.UserTopic("A")) != 1 || hub.MemberCount(domain.RoomTopic("lobby")) != 1 {
		t.Fatal("expected membership in own user topic and the room")
	}
}

func TestSessionReportsUnstoredChatSends(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	onChat := func(_ context.Context, _ *Session, cmd domain.ChatSendCommand) error {
		if cmd.Message == "invalid" {
			return errors.New("blank message")
		}
		return fmt.Errorf("%w: db closed", port.ErrPersistFailed)
	}
	client, sessions := startSessionServer(t, hub, onChat, func(s *Session) { _ = s.Activate(nil) })
	session := <-sessions

	// Validation rejections stay silent.
	if err := client.WriteMessage(websocket.TextMessage, []byte(`{"message":"invalid"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := client.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if typ, _ := readType(t, client); typ != domain.TypePong {
		t.Fatalf("expected pong, got %s", typ)
	}

	if err := client.WriteMessage(websocket.TextMessage, []byte(`{"message":"hello"}`)); err != nil {
		t.Fatalf("write: %v", err)
	}
	typ, raw := readType(t, client)
	if typ != domain.TypeError || !strings.Contains(string(raw), "could not be stored") {
		t.Fatalf("expected error frame, got %s", raw)
	}
	if session.State() != SessionActive {
		t.Fatalf("session should stay active, got %s", session.State())
	}
}

func TestSessionWaitReturnsAfterPumpsExit(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	_, sessions := startSessionServer(t, hub, nil, func(s *Session) { _ = s.Activate(nil) })
	session := <-sessions

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	session.Close()
	if err := session.Wait(ctx); err != nil {
		t.Fatalf("pumps did not exit: %v", err)
	}

	idle := NewSession(nil, hub, auth.Identity{ID: "2"}, SessionOptions{}, nil, nil)
	if err := idle.Wait(ctx); err != nil {
		t.Fatalf("unstarted session should not block: %v", err)
	}
}
