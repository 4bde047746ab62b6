package social

import (
	"errors"
	"fmt"
	"strings"
)

const maxIdentifierLength = 190

// ErrMalformedRequest indicates missing or invalid input; nothing is persisted.
var ErrMalformedRequest = errors.New("social: malformed request")

// Username represents a validated user name.
type Username string

// NewUsername validates raw input and returns a Username.
func NewUsername(rawInput string) (Username, error) {
	trimmed := strings.TrimSpace(rawInput)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty username", ErrMalformedRequest)
	}
	if len(trimmed) > maxIdentifierLength {
		return "", fmt.Errorf("%w: username exceeds %d characters", ErrMalformedRequest, maxIdentifierLength)
	}
	return Username(trimmed), nil
}

// String returns the underlying name.
func (u Username) String() string {
	return string(u)
}

// Position totally orders events within one collection: timestamp first, then insertion sequence.
type Position struct {
	Timestamp int64 `json:"timestamp"`
	Seq       int64 `json:"seq"`
}

// After reports whether p sorts strictly after other.
func (p Position) After(other Position) bool {
	if p.Timestamp != other.Timestamp {
		return p.Timestamp > other.Timestamp
	}
	return p.Seq > other.Seq
}

// IsZero reports whether no event has been observed yet.
func (p Position) IsZero() bool {
	return p.Timestamp == 0 && p.Seq == 0
}

// ChatMessage is a direct message between two users. It is immutable once stored.
type ChatMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Seq       int64  `json:"seq"`
}

// Position returns the ordering key of the message.
func (m ChatMessage) Position() Position {
	return Position{Timestamp: m.Timestamp, Seq: m.Seq}
}

// Peer returns the other participant from the viewer's perspective.
func (m ChatMessage) Peer(viewer string) string {
	if m.From == viewer {
		return m.To
	}
	return m.From
}

// PostMessage is a timeline entry visible to its author and the author's followers.
type PostMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	Seq       int64  `json:"seq"`
}

// Position returns the ordering key of the post.
func (p PostMessage) Position() Position {
	return Position{Timestamp: p.Timestamp, Seq: p.Seq}
}

// FollowAction enumerates follow graph transitions.
type FollowAction string

const (
	FollowActionFollow   FollowAction = "follow"
	FollowActionUnfollow FollowAction = "unfollow"
)

// ParseFollowAction accepts the wire spelling of an action.
func ParseFollowAction(value string) (FollowAction, error) {
	switch FollowAction(strings.ToLower(strings.TrimSpace(value))) {
	case FollowActionFollow:
		return FollowActionFollow, nil
	case FollowActionUnfollow:
		return FollowActionUnfollow, nil
	default:
		return "", fmt.Errorf("%w: unknown follow action %q", ErrMalformedRequest, value)
	}
}

// FollowEvent reports that Follower started or stopped following Target.
type FollowEvent struct {
	Action   FollowAction `json:"action"`
	Follower string       `json:"follower"`
	Target   string       `json:"targetUser"`
}

// UserView is another user annotated with whether the viewer follows them.
type UserView struct {
	Username string `json:"username"`
	Followed bool   `json:"followed"`
}

// ChatDraft is the client input for a new direct message.
type ChatDraft struct {
	From Username
	To   Username
	Text string
}

func (d ChatDraft) validate() error {
	if d.From == "" || d.To == "" {
		return fmt.Errorf("%w: chat requires sender and recipient", ErrMalformedRequest)
	}
	if d.From == d.To {
		return fmt.Errorf("%w: chat recipient must differ from sender", ErrMalformedRequest)
	}
	if strings.TrimSpace(d.Text) == "" {
		return fmt.Errorf("%w: chat text is empty", ErrMalformedRequest)
	}
	return nil
}

// PostDraft is the client input for a new timeline post.
type PostDraft struct {
	From Username
	Text string
}

func (d PostDraft) validate() error {
	if d.From == "" {
		return fmt.Errorf("%w: post requires an author", ErrMalformedRequest)
	}
	if strings.TrimSpace(d.Text) == "" {
		return fmt.Errorf("%w: post text is empty", ErrMalformedRequest)
	}
	return nil
}
