package usecase

import (
	"sync"

	"relayWs/internal/modules/realtime/domain"
)

// topicLocks hands out one mutex per topic. Entries are never evicted; topic
// cardinality is bounded by the user base.
type topicLocks struct {
	mu    sync.Mutex
	locks map[domain.Topic]*sync.Mutex
}

func newTopicLocks() *topicLocks {
	return &topicLocks{locks: make(map[domain.Topic]*sync.Mutex)}
}

func (l *topicLocks) lock(topic domain.Topic) func() {
	l.mu.Lock()
	m, ok := l.locks[topic]
	if !ok {
		m = &sync.Mutex{}
		l.locks[topic] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
