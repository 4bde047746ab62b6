package reconcile

import (
	"context"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/presence"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/pushbus"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/social"
	"go.uber.org/zap"
)

// RecordChat persists a direct message and pushes the conversation tail to each
// connected participant before returning. A participant with an undelivered backlog
// receives the backlog first, in order, followed by the new message.
func (e *Engine) RecordChat(ctx context.Context, draft social.ChatDraft) (social.ChatMessage, error) {
	e.chatMu.Lock()
	defer e.chatMu.Unlock()

	message, err := e.repository.AppendChat(ctx, draft)
	if err != nil {
		return social.ChatMessage{}, err
	}
	for _, viewer := range []string{message.To, message.From} {
		if !e.presence.IsConnected(viewer) {
			continue
		}
		peer := message.Peer(viewer)
		readCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
		chats, err := e.repository.Chats(readCtx, viewer)
		cancel()
		if err != nil {
			e.logger.Warn("live chat push deferred to reconcile",
				zap.String("user", viewer),
				zap.String("peer", peer),
				zap.Error(err))
			continue
		}
		for _, pending := range claim(e.presence, viewer, presence.PeerChannel(peer), chats[peer]) {
			e.publisher.Publish(pushbus.ChatTopic(viewer), pushbus.ChatEvent(pending))
		}
	}
	return message, nil
}

// RecordPost persists a post and pushes the timeline tail to the author and every
// connected follower. Followers that cannot be resolved right now keep their
// checkpoint and receive the post on the next tick or the next live post.
func (e *Engine) RecordPost(ctx context.Context, draft social.PostDraft) (social.PostMessage, error) {
	e.postMu.Lock()
	defer e.postMu.Unlock()

	post, err := e.repository.AppendPost(ctx, draft)
	if err != nil {
		return social.PostMessage{}, err
	}
	recipients := []string{post.From}
	followers, err := e.repository.FollowersOf(ctx, post.From)
	if err != nil {
		e.logger.Warn("live post fan-out limited to author",
			zap.String("author", post.From),
			zap.Error(err))
	}
	recipients = append(recipients, followers...)

	for _, viewer := range recipients {
		if !e.presence.IsConnected(viewer) {
			continue
		}
		readCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
		posts, err := e.repository.Timeline(readCtx, viewer)
		cancel()
		if err != nil {
			e.logger.Warn("live post push deferred to reconcile",
				zap.String("user", viewer),
				zap.Error(err))
			continue
		}
		for _, pending := range claim(e.presence, viewer, presence.TimelineChannel, posts) {
			e.publisher.Publish(pushbus.TimelineTopic(viewer), pushbus.TimelineEvent(pending))
		}
	}
	return post, nil
}

// RecordFollowChange persists a follow or unfollow and pushes it to the follower.
func (e *Engine) RecordFollowChange(ctx context.Context, follower, target social.Username, action social.FollowAction) (social.FollowEvent, error) {
	e.followMu.Lock()
	defer e.followMu.Unlock()

	change, err := e.repository.SetFollow(ctx, follower, target, action)
	if err != nil {
		return social.FollowEvent{}, err
	}
	if e.presence.IsConnected(change.Follower) &&
		e.presence.ObserveFollow(change.Follower, change.Target, change.Action == social.FollowActionFollow) {
		e.publisher.Publish(pushbus.FollowTopic(change.Follower), pushbus.FollowChangeEvent(change))
	}
	return change, nil
}
