package social

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/store"
	"go.uber.org/zap"
)

var (
	errMissingStore      = errors.New("store is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opServiceNew   = "social.service.new"
	opAppendChat   = "social.append_chat"
	opAppendPost   = "social.append_post"
	opSetFollow    = "social.set_follow"
	opEnsureUser   = "social.ensure_user"
	opChats        = "social.chats"
	opUsers        = "social.users"
	opTimeline     = "social.timeline"
	opFollowersOf  = "social.followers_of"
	reasonInvalid  = "invalid_request"
	reasonRead     = "store_read_failed"
	reasonWrite    = "store_write_failed"
	reasonIDFailed = "id_generation_failed"
)

func newServiceError(operation, reason string, cause error) error {
	code := fmt.Sprintf("%s.%s", operation, reason)
	return &ServiceError{code: code, err: cause}
}

type ServiceConfig struct {
	Store      store.Store
	Clock      func() time.Time
	IDProvider IDProvider
	Logger     *zap.Logger
}

// Service owns the follows, chats and posts collections. Each collection has its own
// write mutex so a read-modify-write cycle is never interleaved with another writer.
type Service struct {
	store      store.Store
	clock      func() time.Time
	idProvider IDProvider
	logger     *zap.Logger

	followsMu sync.Mutex
	chatsMu   sync.Mutex
	postsMu   sync.Mutex
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, newServiceError(opServiceNew, "missing_store", errMissingStore)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", errMissingIDProvider)
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	return &Service{
		store:      cfg.Store,
		clock:      clock,
		idProvider: cfg.IDProvider,
		logger:     logger,
	}, nil
}

// AppendChat stores a direct message under both participants and returns it with its
// assigned id, timestamp and sequence.
func (s *Service) AppendChat(ctx context.Context, draft ChatDraft) (ChatMessage, error) {
	if err := draft.validate(); err != nil {
		return ChatMessage{}, newServiceError(opAppendChat, reasonInvalid, err)
	}
	if err := s.ensureUsers(ctx, opAppendChat, draft.From.String(), draft.To.String()); err != nil {
		return ChatMessage{}, err
	}
	messageID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opAppendChat, reasonIDFailed, err)
		return ChatMessage{}, newServiceError(opAppendChat, reasonIDFailed, err)
	}

	s.chatsMu.Lock()
	defer s.chatsMu.Unlock()

	var document chatsDocument
	if err := store.LoadJSON(ctx, s.store, store.CollectionChats, &document); err != nil {
		s.logError(opAppendChat, reasonRead, err)
		return ChatMessage{}, newServiceError(opAppendChat, reasonRead, err)
	}
	message := ChatMessage{
		ID:        messageID,
		From:      draft.From.String(),
		To:        draft.To.String(),
		Text:      draft.Text,
		Timestamp: s.stamp(document.LastTimestamp),
		Seq:       document.NextSeq + 1,
	}
	document.NextSeq = message.Seq
	document.LastTimestamp = message.Timestamp
	document.append(message)
	if err := store.SaveJSON(ctx, s.store, store.CollectionChats, document); err != nil {
		s.logError(opAppendChat, reasonWrite, err,
			zap.String("from", message.From),
			zap.String("to", message.To))
		return ChatMessage{}, newServiceError(opAppendChat, reasonWrite, err)
	}
	return message, nil
}

// AppendPost adds a post to the global timeline sequence.
func (s *Service) AppendPost(ctx context.Context, draft PostDraft) (PostMessage, error) {
	if err := draft.validate(); err != nil {
		return PostMessage{}, newServiceError(opAppendPost, reasonInvalid, err)
	}
	if err := s.ensureUsers(ctx, opAppendPost, draft.From.String()); err != nil {
		return PostMessage{}, err
	}
	postID, err := s.idProvider.NewID()
	if err != nil {
		s.logError(opAppendPost, reasonIDFailed, err)
		return PostMessage{}, newServiceError(opAppendPost, reasonIDFailed, err)
	}

	s.postsMu.Lock()
	defer s.postsMu.Unlock()

	var document postsDocument
	if err := store.LoadJSON(ctx, s.store, store.CollectionPosts, &document); err != nil {
		s.logError(opAppendPost, reasonRead, err)
		return PostMessage{}, newServiceError(opAppendPost, reasonRead, err)
	}
	post := PostMessage{
		ID:        postID,
		From:      draft.From.String(),
		Text:      draft.Text,
		Timestamp: s.stamp(document.LastTimestamp),
		Seq:       document.NextSeq + 1,
	}
	document.NextSeq = post.Seq
	document.LastTimestamp = post.Timestamp
	document.Posts = append(document.Posts, post)
	if err := store.SaveJSON(ctx, s.store, store.CollectionPosts, document); err != nil {
		s.logError(opAppendPost, reasonWrite, err, zap.String("from", post.From))
		return PostMessage{}, newServiceError(opAppendPost, reasonWrite, err)
	}
	return post, nil
}

// SetFollow records that follower follows (or no longer follows) target.
func (s *Service) SetFollow(ctx context.Context, follower, target Username, action FollowAction) (FollowEvent, error) {
	if follower == "" || target == "" || follower == target {
		err := fmt.Errorf("%w: follow requires two distinct users", ErrMalformedRequest)
		return FollowEvent{}, newServiceError(opSetFollow, reasonInvalid, err)
	}
	if action != FollowActionFollow && action != FollowActionUnfollow {
		err := fmt.Errorf("%w: unknown follow action %q", ErrMalformedRequest, action)
		return FollowEvent{}, newServiceError(opSetFollow, reasonInvalid, err)
	}

	s.followsMu.Lock()
	defer s.followsMu.Unlock()

	document := followsDocument{}
	if err := store.LoadJSON(ctx, s.store, store.CollectionFollows, &document); err != nil {
		s.logError(opSetFollow, reasonRead, err)
		return FollowEvent{}, newServiceError(opSetFollow, reasonRead, err)
	}
	document.ensure(follower.String(), target.String())
	document.set(follower.String(), target.String(), action == FollowActionFollow)
	if err := store.SaveJSON(ctx, s.store, store.CollectionFollows, document); err != nil {
		s.logError(opSetFollow, reasonWrite, err,
			zap.String("follower", follower.String()),
			zap.String("target", target.String()))
		return FollowEvent{}, newServiceError(opSetFollow, reasonWrite, err)
	}
	return FollowEvent{Action: action, Follower: follower.String(), Target: target.String()}, nil
}

// EnsureUser makes the user visible in listings even before any follow edge exists.
func (s *Service) EnsureUser(ctx context.Context, user Username) error {
	if user == "" {
		return newServiceError(opEnsureUser, reasonInvalid, ErrMalformedRequest)
	}
	return s.ensureUsers(ctx, opEnsureUser, user.String())
}

func (s *Service) ensureUsers(ctx context.Context, operation string, names ...string) error {
	s.followsMu.Lock()
	defer s.followsMu.Unlock()

	document := followsDocument{}
	if err := store.LoadJSON(ctx, s.store, store.CollectionFollows, &document); err != nil {
		s.logError(operation, reasonRead, err)
		return newServiceError(operation, reasonRead, err)
	}
	if !document.ensure(names...) {
		return nil
	}
	if err := store.SaveJSON(ctx, s.store, store.CollectionFollows, document); err != nil {
		s.logError(operation, reasonWrite, err)
		return newServiceError(operation, reasonWrite, err)
	}
	return nil
}

// Chats returns the viewer's conversations keyed by peer, each in insertion order.
func (s *Service) Chats(ctx context.Context, viewer string) (map[string][]ChatMessage, error) {
	var document chatsDocument
	if err := store.LoadJSON(ctx, s.store, store.CollectionChats, &document); err != nil {
		return nil, newServiceError(opChats, reasonRead, err)
	}
	threads := document.Threads[viewer]
	result := make(map[string][]ChatMessage, len(threads))
	for peer, messages := range threads {
		result[peer] = append([]ChatMessage(nil), messages...)
	}
	return result, nil
}

// Users lists every other known user, annotated with whether the viewer follows them.
func (s *Service) Users(ctx context.Context, viewer string) ([]UserView, error) {
	document := followsDocument{}
	if err := store.LoadJSON(ctx, s.store, store.CollectionFollows, &document); err != nil {
		return nil, newServiceError(opUsers, reasonRead, err)
	}
	names := document.everyone()
	views := make([]UserView, 0, len(names))
	for _, name := range names {
		if name == viewer {
			continue
		}
		views = append(views, UserView{Username: name, Followed: document.follows(viewer, name)})
	}
	return views, nil
}

// Timeline returns posts authored by the viewer or by anyone the viewer follows.
func (s *Service) Timeline(ctx context.Context, viewer string) ([]PostMessage, error) {
	following := followsDocument{}
	if err := store.LoadJSON(ctx, s.store, store.CollectionFollows, &following); err != nil {
		return nil, newServiceError(opTimeline, reasonRead, err)
	}
	var document postsDocument
	if err := store.LoadJSON(ctx, s.store, store.CollectionPosts, &document); err != nil {
		return nil, newServiceError(opTimeline, reasonRead, err)
	}
	visible := make([]PostMessage, 0, len(document.Posts))
	for _, post := range document.Posts {
		if post.From == viewer || following.follows(viewer, post.From) {
			visible = append(visible, post)
		}
	}
	return visible, nil
}

// FollowersOf returns the users currently following user, sorted.
func (s *Service) FollowersOf(ctx context.Context, user string) ([]string, error) {
	document := followsDocument{}
	if err := store.LoadJSON(ctx, s.store, store.CollectionFollows, &document); err != nil {
		return nil, newServiceError(opFollowersOf, reasonRead, err)
	}
	followers := make([]string, 0)
	for follower := range document {
		if document.follows(follower, user) {
			followers = append(followers, follower)
		}
	}
	sort.Strings(followers)
	return followers, nil
}

// stamp returns the current time in milliseconds, never earlier than last.
func (s *Service) stamp(last int64) int64 {
	now := s.clock().UTC().UnixMilli()
	if now < last {
		return last
	}
	return now
}

func (s *Service) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("social service error", attrs...)
}
