package pushbus

import (
	"context"
	"sync"
	"time"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/social"
	"go.uber.org/zap"
)

const defaultBufferSize = 256

// EventKind tags the payload carried by an Event.
type EventKind string

const (
	EventKindChat     EventKind = "chat"
	EventKindFollow   EventKind = "follow"
	EventKindTimeline EventKind = "timeline"
)

// Event is a closed union: exactly one payload pointer is set, matching Kind.
type Event struct {
	Kind      EventKind
	Chat      *social.ChatMessage
	Post      *social.PostMessage
	Follow    *social.FollowEvent
	Timestamp time.Time
}

// ChatEvent wraps a chat message.
func ChatEvent(message social.ChatMessage) Event {
	return Event{Kind: EventKindChat, Chat: &message, Timestamp: time.Now().UTC()}
}

// TimelineEvent wraps a post.
func TimelineEvent(post social.PostMessage) Event {
	return Event{Kind: EventKindTimeline, Post: &post, Timestamp: time.Now().UTC()}
}

// FollowChangeEvent wraps a follow transition.
func FollowChangeEvent(change social.FollowEvent) Event {
	return Event{Kind: EventKindFollow, Follow: &change, Timestamp: time.Now().UTC()}
}

// Payload returns the wire payload for the event kind.
func (e Event) Payload() any {
	switch e.Kind {
	case EventKindChat:
		return e.Chat
	case EventKindTimeline:
		return e.Post
	case EventKindFollow:
		return e.Follow
	default:
		return nil
	}
}

// Topic addresses one feed of one user.
type Topic string

func ChatTopic(user string) Topic     { return Topic("chat-" + user) }
func FollowTopic(user string) Topic   { return Topic("follow-" + user) }
func TimelineTopic(user string) Topic { return Topic("timeline-" + user) }

// UserTopics returns every feed topic of user.
func UserTopics(user string) []Topic {
	return []Topic{ChatTopic(user), FollowTopic(user), TimelineTopic(user)}
}

// Bus fans events out to live subscribers. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Topic]map[int64]*subscriber
	nextID      int64
	bufferSize  int
	logger      *zap.Logger
}

type subscriber struct {
	id     int64
	stream chan Event
}

type Config struct {
	BufferSize int
	Logger     *zap.Logger
}

func NewBus(cfg Config) *Bus {
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{
		subscribers: make(map[Topic]map[int64]*subscriber),
		bufferSize:  bufferSize,
		logger:      logger,
	}
}

// Subscribe registers one stream receiving events from all given topics. The
// subscription ends when ctx is done or cleanup is called.
func (b *Bus) Subscribe(ctx context.Context, topics ...Topic) (<-chan Event, func()) {
	if len(topics) == 0 {
		ch := make(chan Event)
		close(ch)
		return ch, func() {}
	}
	sub := &subscriber{
		id:     b.nextSequence(),
		stream: make(chan Event, b.bufferSize),
	}
	b.register(topics, sub)
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			b.unregister(topics, sub.id)
		})
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return sub.stream, cleanup
}

// Publish delivers event to every current subscriber of topic and returns how many
// subscribers accepted it.
func (b *Bus) Publish(topic Topic, event Event) int {
	if topic == "" || event.Kind == "" {
		return 0
	}
	b.mu.RLock()
	subscribers := b.subscribers[topic]
	if len(subscribers) == 0 {
		b.mu.RUnlock()
		return 0
	}
	copies := make([]*subscriber, 0, len(subscribers))
	for _, sub := range subscribers {
		copies = append(copies, sub)
	}
	b.mu.RUnlock()

	delivered := 0
	for _, sub := range copies {
		select {
		case sub.stream <- event:
			delivered++
		default:
			b.logger.Warn("push subscriber buffer full, event dropped",
				zap.String("topic", string(topic)),
				zap.String("kind", string(event.Kind)))
		}
	}
	return delivered
}

// Subscribers reports the number of live subscribers on topic.
func (b *Bus) Subscribers(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers[topic])
}

func (b *Bus) nextSequence() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	return b.nextID
}

func (b *Bus) register(topics []Topic, sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, topic := range topics {
		if _, ok := b.subscribers[topic]; !ok {
			b.subscribers[topic] = make(map[int64]*subscriber)
		}
		b.subscribers[topic][sub.id] = sub
	}
}

func (b *Bus) unregister(topics []Topic, subscriberID int64) {
	b.mu.Lock()
	for _, topic := range topics {
		subscribers := b.subscribers[topic]
		if subscribers == nil {
			continue
		}
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(b.subscribers, topic)
		}
	}
	b.mu.Unlock()
}
