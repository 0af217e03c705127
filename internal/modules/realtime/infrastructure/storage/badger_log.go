package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"relayWs/internal/modules/realtime/application/port"
	"relayWs/internal/modules/realtime/domain"
)

var ErrInvalidRecord = errors.New("invalid record")

const (
	chatKeyspace         = "chat"
	notificationKeyspace = "notif"
)

// OpenBadger opens the badger database backing the durable log.
func OpenBadger(dir string, inMemory bool) (*badger.DB, error) {
	opts := badger.DefaultOptions(dir)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	db, err := badger.Open(opts.WithLoggingLevel(badger.WARNING))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return db, nil
}

// BadgerLog stores chat messages and notifications in badger under keys of the form
// "{keyspace}:{scope}:{unixnano, 19 digits}:{id}", so a prefix scan over a scope
// yields records in creation order.
type BadgerLog struct {
	db     *badger.DB
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	lastStamp int64
}

func NewBadgerLog(db *badger.DB, logger *slog.Logger) *BadgerLog {
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerLog{db: db, logger: logger, now: time.Now}
}

type chatRecord struct {
	ID         string `json:"id"`
	Room       string `json:"room"`
	AuthorID   string `json:"authorId"`
	AuthorName string `json:"authorName"`
	Body       string `json:"body"`
	CreatedAt  int64  `json:"createdAt"`
}

type notificationRecord struct {
	ID        string `json:"id"`
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
	Read      bool   `json:"read"`
	CreatedAt int64  `json:"createdAt"`
}

// stamp returns a creation time strictly greater than any previously issued one.
func (l *BadgerLog) stamp() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	next := l.now().UTC().UnixNano()
	if next <= l.lastStamp {
		next = l.lastStamp + 1
	}
	l.lastStamp = next
	return next
}

func (l *BadgerLog) AppendChatMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return domain.ChatMessage{}, err
	}
	if strings.TrimSpace(msg.Room) == "" || strings.TrimSpace(msg.AuthorID) == "" {
		return domain.ChatMessage{}, fmt.Errorf("%w: chat message needs room and author", ErrInvalidRecord)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return domain.ChatMessage{}, fmt.Errorf("chat message id: %w", err)
	}
	record := chatRecord{
		ID:         id.String(),
		Room:       msg.Room,
		AuthorID:   msg.AuthorID,
		AuthorName: msg.AuthorName,
		Body:       msg.Body,
		CreatedAt:  l.stamp(),
	}
	if err := l.put(recordKey(chatKeyspace, record.Room, record.CreatedAt, record.ID), record); err != nil {
		return domain.ChatMessage{}, fmt.Errorf("append chat message: %w", err)
	}
	l.logger.Debug("chat message persisted", slog.String("id", record.ID), slog.String("room", record.Room))
	return record.toDomain(), nil
}

func (l *BadgerLog) QueryChatMessages(ctx context.Context, query domain.ChatQuery) ([]domain.ChatMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	messages := make([]domain.ChatMessage, 0)
	err := l.scan(scopePrefix(chatKeyspace, query.Room), query.Order, func(value []byte) (bool, error) {
		var record chatRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return false, err
		}
		messages = append(messages, record.toDomain())
		return query.Limit <= 0 || len(messages) < query.Limit, nil
	})
	if err != nil {
		return nil, fmt.Errorf("query chat messages: %w", err)
	}
	return messages, nil
}

func (l *BadgerLog) AppendNotification(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return domain.Notification{}, err
	}
	if strings.TrimSpace(n.Recipient) == "" {
		return domain.Notification{}, fmt.Errorf("%w: notification needs a recipient", ErrInvalidRecord)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return domain.Notification{}, fmt.Errorf("notification id: %w", err)
	}
	record := notificationRecord{
		ID:        id.String(),
		Recipient: n.Recipient,
		Body:      n.Body,
		Read:      n.Read,
		CreatedAt: l.stamp(),
	}
	if err := l.put(recordKey(notificationKeyspace, record.Recipient, record.CreatedAt, record.ID), record); err != nil {
		return domain.Notification{}, fmt.Errorf("append notification: %w", err)
	}
	l.logger.Debug("notification persisted", slog.String("id", record.ID), slog.String("recipient", record.Recipient))
	return record.toDomain(), nil
}

func (l *BadgerLog) QueryNotifications(ctx context.Context, query domain.NotificationQuery) ([]domain.Notification, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	notifications := make([]domain.Notification, 0)
	err := l.scan(scopePrefix(notificationKeyspace, query.Recipient), query.Order, func(value []byte) (bool, error) {
		var record notificationRecord
		if err := json.Unmarshal(value, &record); err != nil {
			return false, err
		}
		if query.UnreadOnly && record.Read {
			return true, nil
		}
		notifications = append(notifications, record.toDomain())
		return query.Limit <= 0 || len(notifications) < query.Limit, nil
	})
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	return notifications, nil
}

func (l *BadgerLog) put(key []byte, record any) error {
	value, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return l.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// scan walks the values under prefix in the requested order until visit returns false.
func (l *BadgerLog) scan(prefix []byte, order domain.Order, visit func(value []byte) (bool, error)) error {
	return l.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = order == domain.NewestFirst
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := prefix
		if opts.Reverse {
			seek = append(append([]byte{}, prefix...), 0xFF)
		}
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			var more bool
			err := it.Item().Value(func(value []byte) error {
				var visitErr error
				more, visitErr = visit(value)
				return visitErr
			})
			if err != nil {
				return err
			}
			if !more {
				return nil
			}
		}
		return nil
	})
}

func scopePrefix(keyspace, scope string) []byte {
	return []byte(keyspace + ":" + url.QueryEscape(scope) + ":")
}

func recordKey(keyspace, scope string, createdAt int64, id string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%019d:%s", keyspace, url.QueryEscape(scope), createdAt, id))
}

func (r chatRecord) toDomain() domain.ChatMessage {
	return domain.ChatMessage{
		ID:         r.ID,
		Room:       r.Room,
		AuthorID:   r.AuthorID,
		AuthorName: r.AuthorName,
		Body:       r.Body,
		CreatedAt:  time.Unix(0, r.CreatedAt).UTC(),
	}
}

func (r notificationRecord) toDomain() domain.Notification {
	return domain.Notification{
		ID:        r.ID,
		Recipient: r.Recipient,
		Body:      r.Body,
		Read:      r.Read,
		CreatedAt: time.Unix(0, r.CreatedAt).UTC(),
	}
}

var _ port.DurableLog = (*BadgerLog)(nil)
