// Package broker coordinates topic subscriptions and message fan-out for the
// TopicHub broker via the TopicRegistry type.
package broker

import (
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Protocol limits for topic names and publish payloads.
const (
	MaxTopicLength   = 64
	MaxPayloadLength = 1024
)

// SubscribeResult reports the outcome of a Subscribe call.
type SubscribeResult int

// Subscribe outcomes.
const (
	Subscribed SubscribeResult = iota
	AlreadySubscribed
	InvalidTopic
)

// UnsubscribeResult reports the outcome of an Unsubscribe call.
type UnsubscribeResult int

// Unsubscribe outcomes. NotSubscribed covers both an absent topic and a
// connection missing from an existing topic's set.
const (
	Unsubscribed UnsubscribeResult = iota
	NotSubscribed
	UnsubscribeInvalidTopic
)

// PublishResult reports the outcome of a Publish call.
type PublishResult int

// Publish outcomes.
const (
	Delivered PublishResult = iota
	NoSubscribers
	PublishInvalidTopic
	InvalidPayload
)

// SanitizeTopic trims leading and trailing spaces and tabs and validates the
// result: non-empty, at most MaxTopicLength characters, alphanumeric only.
// It returns the trimmed name and whether it is acceptable.
func SanitizeTopic(raw string) (string, bool) {
	topic := strings.Trim(raw, " \t")
	if topic == "" || len(topic) > MaxTopicLength {
		return "", false
	}
	for i := 0; i < len(topic); i++ {
		c := topic[i]
		if !('a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9') {
			return "", false
		}
	}
	return topic, true
}

// SanitizePayload trims leading and trailing spaces and tabs and validates
// the result: non-empty, at most MaxPayloadLength bytes, every byte within
// printable ASCII (0x20-0x7E).
func SanitizePayload(raw string) (string, bool) {
	payload := strings.Trim(raw, " \t")
	if payload == "" || len(payload) > MaxPayloadLength {
		return "", false
	}
	for i := 0; i < len(payload); i++ {
		if payload[i] < 0x20 || payload[i] > 0x7E {
			return "", false
		}
	}
	return payload, true
}

// TopicRegistry maps topic names to their subscriber sets. Topics are created
// lazily on first subscribe and kept forever once created, even when empty;
// subscriber churn never deletes the topic entry itself.
type TopicRegistry struct {
	mu     sync.Mutex
	topics map[string]map[Conn]struct{}
	logger *zap.Logger
}

// NewTopicRegistry creates an empty topic registry. A nil logger disables
// delivery-failure logging.
func NewTopicRegistry(logger *zap.Logger) *TopicRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TopicRegistry{
		topics: make(map[string]map[Conn]struct{}),
		logger: logger,
	}
}

// Subscribe canonicalizes the topic name and adds conn to its subscriber set,
// creating the topic if needed. The returned name is the sanitized topic for
// use in replies; it is empty when the result is InvalidTopic.
func (t *TopicRegistry) Subscribe(rawTopic string, conn Conn) (string, SubscribeResult) {
	topic, ok := SanitizeTopic(rawTopic)
	if !ok {
		return "", InvalidTopic
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	subs := t.topics[topic]
	if subs == nil {
		subs = make(map[Conn]struct{})
		t.topics[topic] = subs
	}
	if _, exists := subs[conn]; exists {
		return topic, AlreadySubscribed
	}
	subs[conn] = struct{}{}
	return topic, Subscribed
}

// Unsubscribe canonicalizes the topic name and removes conn from its
// subscriber set. It never creates a topic entry: unsubscribing from an
// unknown topic reports NotSubscribed and leaves the registry untouched.
func (t *TopicRegistry) Unsubscribe(rawTopic string, conn Conn) (string, UnsubscribeResult) {
	topic, ok := SanitizeTopic(rawTopic)
	if !ok {
		return "", UnsubscribeInvalidTopic
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	subs, exists := t.topics[topic]
	if !exists || len(subs) == 0 {
		return topic, NotSubscribed
	}
	if _, member := subs[conn]; !member {
		return topic, NotSubscribed
	}
	delete(subs, conn)
	return topic, Unsubscribed
}

// Publish canonicalizes the topic, validates the payload, and writes the
// formatted message to every current subscriber. The subscriber set is copied
// under the lock and the writes happen after it is released, so a slow peer
// never blocks concurrent registry operations; the snapshot is what was
// subscribed at the instant the publish was accepted. A failed write removes
// that subscriber from the topic without aborting delivery to the rest.
//
// The returned topic name is the sanitized form, delivered is the number of
// successful writes, and the result classifies the outcome.
func (t *TopicRegistry) Publish(rawTopic, rawPayload string) (string, int, PublishResult) {
	topic, ok := SanitizeTopic(rawTopic)
	if !ok {
		return "", 0, PublishInvalidTopic
	}
	payload, ok := SanitizePayload(rawPayload)
	if !ok {
		return topic, 0, InvalidPayload
	}

	t.mu.Lock()
	subs, exists := t.topics[topic]
	if !exists || len(subs) == 0 {
		t.mu.Unlock()
		return topic, 0, NoSubscribers
	}
	snapshot := make([]Conn, 0, len(subs))
	for conn := range subs {
		snapshot = append(snapshot, conn)
	}
	t.mu.Unlock()

	message := "[Message] Topic: " + topic + " Data: " + payload

	delivered := 0
	var failed []Conn
	for _, conn := range snapshot {
		if err := conn.WriteLine(message); err != nil {
			t.logger.Warn("delivery failed",
				zap.String("topic", topic),
				zap.String("conn_id", conn.ID()),
				zap.Error(err))
			failed = append(failed, conn)
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		t.mu.Lock()
		for _, conn := range failed {
			delete(t.topics[topic], conn)
		}
		t.mu.Unlock()
	}

	return topic, delivered, Delivered
}

// DropConnection removes conn from every topic's subscriber set. It is part
// of connection teardown and must run after the session registry has been
// updated; teardown always takes the registries in that order.
func (t *TopicRegistry) DropConnection(conn Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, subs := range t.topics {
		delete(subs, conn)
	}
}

// Subscribers returns the current size of a topic's subscriber set. A topic
// that was never created reports zero.
func (t *TopicRegistry) Subscribers(topic string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.topics[topic])
}

// HasTopic reports whether a topic entry exists, regardless of its size.
func (t *TopicRegistry) HasTopic(topic string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, exists := t.topics[topic]
	return exists
}
