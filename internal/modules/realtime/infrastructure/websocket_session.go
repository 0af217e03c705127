package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"relayWs/internal/modules/realtime/application/port"
	"relayWs/internal/modules/realtime/domain"
	"relayWs/internal/shared/auth"
	"relayWs/internal/shared/logging"
)

var ErrSessionNotConnecting = errors.New("session is not connecting")

type SessionState int

const (
	SessionConnecting SessionState = iota
	SessionActive
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionConnecting:
		return "connecting"
	case SessionActive:
		return "active"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ChatHandler receives chat sends parsed from the session's inbound frames.
// A returned error is logged and the frame dropped; the session stays open.
// When the error wraps port.ErrPersistFailed the sender also gets an error frame.
type ChatHandler func(ctx context.Context, s *Session, cmd domain.ChatSendCommand) error

type SessionOptions struct {
	SendBuffer   int
	ReadLimit    int64
	PingInterval time.Duration
	PongWait     time.Duration
	WriteWait    time.Duration
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.SendBuffer <= 1 {
		o.SendBuffer = 32
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = 1 << 16
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingInterval <= 0 || o.PingInterval >= o.PongWait {
		o.PingInterval = o.PongWait * 9 / 10
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	return o
}

// Session owns one websocket connection from upgrade to close.
//
// A session starts Connecting. Payloads delivered before Activate are held in a
// backlog and flushed right after the history payload, so a client always sees
// its backfill before any live event broadcast after it joined a topic.
// Close is idempotent and always leaves every joined topic.
type Session struct {
	id       string
	identity auth.Identity
	conn     *websocket.Conn
	registry port.Registry
	opts     SessionOptions
	onChat   ChatHandler
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	state   SessionState
	backlog [][]byte
	topics  []domain.Topic

	send       chan []byte
	closeOnce  sync.Once
	closeHooks []func(*Session)
	pumps      sync.WaitGroup
}

func NewSession(conn *websocket.Conn, registry port.Registry, identity auth.Identity, opts SessionOptions, onChat ChatHandler, logger *slog.Logger) *Session {
	opts = opts.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		id:       id,
		identity: identity,
		conn:     conn,
		registry: registry,
		opts:     opts,
		onChat:   onChat,
		logger:   logger.With(slog.String("sessionId", id), slog.String("userId", identity.ID)),
		ctx:      ctx,
		cancel:   cancel,
		send:     make(chan []byte, opts.SendBuffer),
	}
}

func (s *Session) ID() string              { return s.id }
func (s *Session) Identity() auth.Identity { return s.identity }

// Done is closed once the session is closed.
func (s *Session) Done() <-chan struct{} { return s.ctx.Done() }

func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Topics returns the topics the session has joined.
func (s *Session) Topics() []domain.Topic {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Topic(nil), s.topics...)
}

// Join registers the session as a member of topic. A user topic is only open
// to the identity it names.
func (s *Session) Join(topic domain.Topic) error {
	parsed, err := domain.ParseTopic(topic.String())
	if err != nil {
		return err
	}
	if parsed.Kind() == domain.TopicKindUser && parsed.Name() != s.identity.ID {
		s.logger.Warn("ws join rejected: topic owned by another identity", slog.String("topic", parsed.String()))
		return fmt.Errorf("%w: %s", port.ErrForbiddenTopic, parsed)
	}
	topic = parsed

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == SessionClosed {
		return port.ErrSessionClosed
	}
	for _, joined := range s.topics {
		if joined == topic {
			return nil
		}
	}
	s.registry.Join(topic, s)
	s.topics = append(s.topics, topic)
	return nil
}

// Activate queues history (when non-nil) followed by the backlog of live payloads
// and moves the session to Active.
func (s *Session) Activate(history []byte) error {
	s.mu.Lock()
	if s.state != SessionConnecting {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrSessionNotConnecting, state)
	}
	pending := s.backlog
	if history != nil {
		pending = append([][]byte{history}, pending...)
	}
	s.backlog = nil
	overflow := false
	for _, payload := range pending {
		if !s.enqueueLocked(payload) {
			overflow = true
			break
		}
	}
	if !overflow {
		s.state = SessionActive
	}
	s.mu.Unlock()

	if overflow {
		s.logger.Warn("ws session backlog exceeded send buffer during activation")
		s.Close()
		return port.ErrSendBufferFull
	}
	s.logger.Info("ws session active", slog.Int("queued", len(pending)))
	return nil
}

// Deliver queues payload for the write pump without blocking. A session that
// cannot keep up is closed.
func (s *Session) Deliver(payload []byte) error {
	s.mu.Lock()
	switch s.state {
	case SessionClosed:
		s.mu.Unlock()
		return port.ErrSessionClosed
	case SessionConnecting:
		// One slot stays reserved for the history payload.
		if len(s.backlog) < s.opts.SendBuffer-1 {
			s.backlog = append(s.backlog, payload)
			s.mu.Unlock()
			return nil
		}
	default:
		if s.enqueueLocked(payload) {
			s.mu.Unlock()
			return nil
		}
	}
	s.mu.Unlock()

	s.logger.Warn("ws send buffer full, closing session")
	s.Close()
	return port.ErrSendBufferFull
}

func (s *Session) enqueueLocked(payload []byte) bool {
	select {
	case s.send <- payload:
		return true
	default:
		return false
	}
}

// SendJSON marshals v and delivers it to this session only.
func (s *Session) SendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return s.Deliver(data)
}

// AddCloseHook registers a callback executed once when the session closes. On
// an already closed session the hook runs immediately.
func (s *Session) AddCloseHook(fn func(*Session)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	if s.state != SessionClosed {
		s.closeHooks = append(s.closeHooks, fn)
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.runHook(fn)
}

// Close moves the session to Closed, leaves every joined topic, and closes the
// connection. Safe to call any number of times from any goroutine.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = SessionClosed
		s.backlog = nil
		topics := s.topics
		hooks := s.closeHooks
		s.closeHooks = nil
		s.mu.Unlock()

		s.cancel()
		for _, topic := range topics {
			s.registry.Leave(topic, s)
		}
		if s.conn != nil {
			_ = s.conn.Close()
		}
		for _, hook := range hooks {
			s.runHook(hook)
		}
		s.logger.Info("ws session closed", slog.Any("topics", topics))
	})
}

func (s *Session) runHook(hook func(*Session)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Warn("ws close hook panic", slog.Any("error", r))
		}
	}()
	hook(s)
}

// Start launches the read and write pumps.
func (s *Session) Start() {
	s.pumps.Add(2)
	go func() {
		defer s.pumps.Done()
		s.WritePump()
	}()
	go func() {
		defer s.pumps.Done()
		s.ReadPump()
	}()
}

// Wait blocks until both pumps have returned or ctx is done. A session that
// was never started returns at once.
func (s *Session) Wait(ctx context.Context) error {
	exited := make(chan struct{})
	go func() {
		s.pumps.Wait()
		close(exited)
	}()
	select {
	case <-exited:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) WritePump() {
	ping := time.NewTicker(s.opts.PingInterval)
	defer ping.Stop()
	defer s.Close()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteWait))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.logger.Warn("websocket write error", slog.Any("error", err))
				return
			}
			s.logger.Log(s.ctx, logging.LevelTrace, "websocket frame sent", slog.Int("bytes", len(msg)))
		case <-ping.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.opts.WriteWait)); err != nil {
				s.logger.Warn("websocket ping error", slog.Any("error", err))
				return
			}
		}
	}
}

func (s *Session) ReadPump() {
	defer s.Close()
	s.conn.SetReadLimit(s.opts.ReadLimit)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.PongWait))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("websocket read error", slog.Any("error", err))
			}
			return
		}
		s.handleFrame(raw)
	}
}

func (s *Session) handleFrame(raw []byte) {
	in, err := ParseInbound(raw)
	if err != nil {
		s.logger.Warn("ws inbound dropped", slog.Int("bytes", len(raw)), slog.Any("error", err))
		return
	}

	switch in.Kind {
	case InboundPing:
		if err := s.SendJSON(domain.NewPongPayload(time.Now())); err != nil {
			s.logger.Debug("ws pong not delivered", slog.Any("error", err))
		}
	case InboundChatSend:
		if s.onChat == nil {
			s.logger.Info("ws inbound ignored on receive-only session", slog.String("kind", in.Kind.String()))
			return
		}
		if err := s.onChat(s.ctx, s, in.Chat); err != nil {
			s.logger.Warn("ws chat send rejected", slog.Any("error", err))
			if errors.Is(err, port.ErrPersistFailed) {
				if sendErr := s.SendJSON(domain.NewErrorPayload("message could not be stored", time.Now())); sendErr != nil {
					s.logger.Debug("ws error frame not delivered", slog.Any("error", sendErr))
				}
			}
		}
	}
}

var _ port.Subscriber = (*Session)(nil)
