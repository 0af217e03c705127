package infrastructure

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SessionSet tracks the live sessions of the process so shutdown can close
// them before the durable log goes away.
type SessionSet struct {
	mu       sync.Mutex
	sessions map[string]*Session
	closed   bool
	logger   *slog.Logger
}

func NewSessionSet(logger *slog.Logger) *SessionSet {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSet{sessions: make(map[string]*Session), logger: logger}
}

// Track adds s until it closes. It reports false once the set is shut down,
// in which case the caller owns closing s.
func (set *SessionSet) Track(s *Session) bool {
	set.mu.Lock()
	if set.closed {
		set.mu.Unlock()
		return false
	}
	set.sessions[s.ID()] = s
	set.mu.Unlock()

	connectedAt := time.Now()
	s.AddCloseHook(func(closed *Session) {
		set.mu.Lock()
		delete(set.sessions, closed.ID())
		remaining := len(set.sessions)
		set.mu.Unlock()
		set.logger.Info("ws session disconnected",
			slog.String("sessionId", closed.ID()),
			slog.String("userId", closed.Identity().ID),
			slog.Duration("connectedFor", time.Since(connectedAt)),
			slog.Int("remaining", remaining),
		)
	})
	return true
}

func (set *SessionSet) Len() int {
	set.mu.Lock()
	defer set.mu.Unlock()
	return len(set.sessions)
}

// Shutdown refuses new sessions, closes every tracked one and waits for their
// pumps to return, so no inbound frame is still being handled afterwards.
func (set *SessionSet) Shutdown(ctx context.Context) error {
	set.mu.Lock()
	set.closed = true
	live := make([]*Session, 0, len(set.sessions))
	for _, s := range set.sessions {
		live = append(live, s)
	}
	set.mu.Unlock()

	for _, s := range live {
		s.Close()
	}
	for _, s := range live {
		if err := s.Wait(ctx); err != nil {
			set.logger.Warn("ws session pumps still running at shutdown", slog.String("sessionId", s.ID()), slog.Any("error", err))
			return err
		}
	}
	set.logger.Info("ws sessions closed", slog.Int("count", len(live)))
	return nil
}
