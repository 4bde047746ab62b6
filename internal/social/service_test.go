package social

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/store"
)

func TestAppendChatIndexesBothDirections(t *testing.T) {
	service, _ := newTestService(t, fixedClock(1700000000000))
	ctx := context.Background()

	message, err := service.AppendChat(ctx, ChatDraft{
		From: mustUsername(t, "alice"),
		To:   mustUsername(t, "bob"),
		Text: "hello",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if message.ID != "id-1" || message.Seq != 1 || message.Timestamp != 1700000000000 {
		t.Fatalf("unexpected stored message: %#v", message)
	}

	aliceChats, err := service.Chats(ctx, "alice")
	if err != nil {
		t.Fatalf("chats for alice failed: %v", err)
	}
	bobChats, err := service.Chats(ctx, "bob")
	if err != nil {
		t.Fatalf("chats for bob failed: %v", err)
	}
	if len(aliceChats["bob"]) != 1 || len(bobChats["alice"]) != 1 {
		t.Fatalf("expected message under both directions, got %#v / %#v", aliceChats, bobChats)
	}
	if aliceChats["bob"][0].ID != bobChats["alice"][0].ID {
		t.Fatalf("expected the same logical message in both threads")
	}
}

func TestAppendAssignsDistinctPositionsForSameMillisecond(t *testing.T) {
	service, _ := newTestService(t, fixedClock(1700000000000))
	ctx := context.Background()

	first, err := service.AppendPost(ctx, PostDraft{From: mustUsername(t, "alice"), Text: "one"})
	if err != nil {
		t.Fatalf("first post failed: %v", err)
	}
	second, err := service.AppendPost(ctx, PostDraft{From: mustUsername(t, "alice"), Text: "two"})
	if err != nil {
		t.Fatalf("second post failed: %v", err)
	}
	if first.Timestamp != second.Timestamp {
		t.Fatalf("expected equal timestamps, got %d and %d", first.Timestamp, second.Timestamp)
	}
	if !second.Position().After(first.Position()) {
		t.Fatalf("expected second post to sort after first: %#v %#v", first.Position(), second.Position())
	}
}

func TestAppendNeverMovesTimestampsBackwards(t *testing.T) {
	now := int64(1700000005000)
	service, _ := newTestService(t, func() time.Time { return time.UnixMilli(now) })
	ctx := context.Background()

	first, err := service.AppendPost(ctx, PostDraft{From: mustUsername(t, "alice"), Text: "later"})
	if err != nil {
		t.Fatalf("first post failed: %v", err)
	}
	now = 1700000001000
	second, err := service.AppendPost(ctx, PostDraft{From: mustUsername(t, "alice"), Text: "skewed"})
	if err != nil {
		t.Fatalf("second post failed: %v", err)
	}
	if second.Timestamp != first.Timestamp {
		t.Fatalf("expected clamped timestamp %d, got %d", first.Timestamp, second.Timestamp)
	}
}

func TestTimelineIncludesOwnAndFollowedPosts(t *testing.T) {
	service, _ := newTestService(t, fixedClock(1700000000000))
	ctx := context.Background()
	alice := mustUsername(t, "alice")
	bob := mustUsername(t, "bob")
	carol := mustUsername(t, "carol")

	if _, err := service.SetFollow(ctx, alice, bob, FollowActionFollow); err != nil {
		t.Fatalf("follow failed: %v", err)
	}
	for _, draft := range []PostDraft{
		{From: alice, Text: "mine"},
		{From: bob, Text: "followed"},
		{From: carol, Text: "stranger"},
	} {
		if _, err := service.AppendPost(ctx, draft); err != nil {
			t.Fatalf("post failed: %v", err)
		}
	}

	timeline, err := service.Timeline(ctx, "alice")
	if err != nil {
		t.Fatalf("timeline failed: %v", err)
	}
	if len(timeline) != 2 || timeline[0].Text != "mine" || timeline[1].Text != "followed" {
		t.Fatalf("unexpected timeline: %#v", timeline)
	}
}

func TestUsersReportsFollowFlagsAndFollowers(t *testing.T) {
	service, _ := newTestService(t, fixedClock(1700000000000))
	ctx := context.Background()
	alice := mustUsername(t, "alice")
	bob := mustUsername(t, "bob")

	if err := service.EnsureUser(ctx, mustUsername(t, "carol")); err != nil {
		t.Fatalf("ensure user failed: %v", err)
	}
	if _, err := service.SetFollow(ctx, alice, bob, FollowActionFollow); err != nil {
		t.Fatalf("follow failed: %v", err)
	}

	views, err := service.Users(ctx, "alice")
	if err != nil {
		t.Fatalf("users failed: %v", err)
	}
	expected := []UserView{{Username: "bob", Followed: true}, {Username: "carol", Followed: false}}
	if len(views) != len(expected) {
		t.Fatalf("expected %d views, got %#v", len(expected), views)
	}
	for index, view := range expected {
		if views[index] != view {
			t.Fatalf("unexpected view at %d: %#v", index, views[index])
		}
	}

	followers, err := service.FollowersOf(ctx, "bob")
	if err != nil {
		t.Fatalf("followers failed: %v", err)
	}
	if len(followers) != 1 || followers[0] != "alice" {
		t.Fatalf("unexpected followers: %#v", followers)
	}

	if _, err := service.SetFollow(ctx, alice, bob, FollowActionUnfollow); err != nil {
		t.Fatalf("unfollow failed: %v", err)
	}
	followers, err = service.FollowersOf(ctx, "bob")
	if err != nil {
		t.Fatalf("followers failed: %v", err)
	}
	if len(followers) != 0 {
		t.Fatalf("expected no followers after unfollow, got %#v", followers)
	}
}

func TestMalformedRequestsPersistNothing(t *testing.T) {
	service, memory := newTestService(t, fixedClock(1700000000000))
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
	}{
		{
			name: "chat-empty-text",
			run: func() error {
				_, err := service.AppendChat(ctx, ChatDraft{From: "alice", To: "bob", Text: "   "})
				return err
			},
		},
		{
			name: "chat-to-self",
			run: func() error {
				_, err := service.AppendChat(ctx, ChatDraft{From: "alice", To: "alice", Text: "hi"})
				return err
			},
		},
		{
			name: "post-without-author",
			run: func() error {
				_, err := service.AppendPost(ctx, PostDraft{Text: "hi"})
				return err
			},
		},
		{
			name: "self-follow",
			run: func() error {
				_, err := service.SetFollow(ctx, "alice", "alice", FollowActionFollow)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, ErrMalformedRequest) {
				t.Fatalf("expected malformed request, got %v", err)
			}
		})
	}

	for _, collection := range []store.Collection{store.CollectionFollows, store.CollectionChats, store.CollectionPosts} {
		raw, err := memory.Get(ctx, collection)
		if err != nil {
			t.Fatalf("get %s failed: %v", collection, err)
		}
		if raw != nil {
			t.Fatalf("expected %s to stay empty, got %s", collection, raw)
		}
	}
}

func TestNewUsernameRejectsBlank(t *testing.T) {
	if _, err := NewUsername("  "); !errors.Is(err, ErrMalformedRequest) {
		t.Fatalf("expected malformed request, got %v", err)
	}
	name, err := NewUsername("  dana ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "dana" {
		t.Fatalf("expected trimmed name, got %q", name)
	}
}
