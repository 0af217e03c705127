package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrInvalidTopic = errors.New("invalid topic")

// TopicKind identifies the broadcast scope of a topic.
type TopicKind string

const (
	TopicKindRoom TopicKind = "room"
	TopicKindUser TopicKind = "user"
)

// Topic is a named broadcast scope: "room:<name>" or "user:<identity>".
type Topic string

// RoomTopic returns the topic for the named chat room.
func RoomTopic(name string) Topic {
	return buildTopic(TopicKindRoom, name)
}

// UserTopic returns the private notification topic for the given identity.
func UserTopic(identity string) Topic {
	return buildTopic(TopicKindUser, identity)
}

func buildTopic(kind TopicKind, name string) Topic {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return Topic(string(kind) + ":" + name)
}

// ParseTopic validates raw and returns it as a Topic.
func ParseTopic(raw string) (Topic, error) {
	kind, name, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidTopic, raw)
	}
	switch TopicKind(kind) {
	case TopicKindRoom, TopicKindUser:
		return buildTopic(TopicKind(kind), name), nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", ErrInvalidTopic, kind)
	}
}

func (t Topic) Kind() TopicKind {
	kind, _, _ := strings.Cut(string(t), ":")
	return TopicKind(kind)
}

// Name returns the room name or recipient identity embedded in the topic.
func (t Topic) Name() string {
	_, name, _ := strings.Cut(string(t), ":")
	return name
}

func (t Topic) String() string { return string(t) }
