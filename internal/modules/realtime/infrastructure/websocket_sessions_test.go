package infrastructure

import (
	"context"
	"testing"
	"time"

	"relayWs/internal/shared/auth"
)

func TestSessionSetForgetsClosedSessions(t *testing.T) {
	t.Parallel()

	set := NewSessionSet(nil)
	hub := NewHub(nil)
	first := NewSession(nil, hub, auth.Identity{ID: "1"}, SessionOptions{}, nil, nil)
	second := NewSession(nil, hub, auth.Identity{ID: "2"}, SessionOptions{}, nil, nil)
	if !set.Track(first) || !set.Track(second) {
		t.Fatal("expected sessions to be tracked")
	}
	if set.Len() != 2 {
		t.Fatalf("expected 2 sessions, got %d", set.Len())
	}

	first.Close()
	if set.Len() != 1 {
		t.Fatalf("closed session should be forgotten, got %d", set.Len())
	}

	// A session closed before it was tracked is forgotten right away.
	late := NewSession(nil, hub, auth.Identity{ID: "3"}, SessionOptions{}, nil, nil)
	late.Close()
	set.Track(late)
	if set.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", set.Len())
	}
}

func TestSessionSetShutdownClosesLiveSessions(t *testing.T) {
	t.Parallel()

	hub := NewHub(nil)
	set := NewSessionSet(nil)
	_, sessions := startSessionServer(t, hub, nil, func(s *Session) {
		_ = s.Activate(nil)
		set.Track(s)
	})
	session := <-sessions

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := set.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if session.State() != SessionClosed || set.Len() != 0 {
		t.Fatalf("expected every session closed, state %s, tracked %d", session.State(), set.Len())
	}

	fresh := NewSession(nil, hub, auth.Identity{ID: "9"}, SessionOptions{}, nil, nil)
	if set.Track(fresh) {
		t.Fatal("a shut down set must refuse new sessions")
	}
}
