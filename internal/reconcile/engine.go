package reconcile

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/presence"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/pushbus"
	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/social"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultStoreTimeout = 2 * time.Second
	defaultConcurrency  = 8
)

var (
	errMissingRepository = errors.New("reconcile: repository is required")
	errMissingPresence   = errors.New("reconcile: presence tracker is required")
	errMissingPublisher  = errors.New("reconcile: publisher is required")
)

// Source exposes the current truth for one viewer.
type Source interface {
	Chats(ctx context.Context, viewer string) (map[string][]social.ChatMessage, error)
	Users(ctx context.Context, viewer string) ([]social.UserView, error)
	Timeline(ctx context.Context, viewer string) ([]social.PostMessage, error)
}

// Writer persists client actions.
type Writer interface {
	AppendChat(ctx context.Context, draft social.ChatDraft) (social.ChatMessage, error)
	AppendPost(ctx context.Context, draft social.PostDraft) (social.PostMessage, error)
	SetFollow(ctx context.Context, follower, target social.Username, action social.FollowAction) (social.FollowEvent, error)
	FollowersOf(ctx context.Context, user string) ([]string, error)
}

type Repository interface {
	Source
	Writer
}

type Publisher interface {
	Publish(topic pushbus.Topic, event pushbus.Event) int
}

type Config struct {
	Repository   Repository
	Presence     *presence.Tracker
	Publisher    Publisher
	StoreTimeout time.Duration
	Concurrency  int
	Logger       *zap.Logger
}

// Engine delivers events by push on write and by periodic diff against checkpoints.
type Engine struct {
	repository   Repository
	presence     *presence.Tracker
	publisher    Publisher
	storeTimeout time.Duration
	concurrency  int
	logger       *zap.Logger

	// Live writes of one kind hold these across persist, re-read and claim so that
	// positions are appended in order and each live claim sees every earlier write.
	chatMu   sync.Mutex
	postMu   sync.Mutex
	followMu sync.Mutex
}

func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Repository == nil {
		return nil, errMissingRepository
	}
	if cfg.Presence == nil {
		return nil, errMissingPresence
	}
	if cfg.Publisher == nil {
		return nil, errMissingPublisher
	}
	storeTimeout := cfg.StoreTimeout
	if storeTimeout <= 0 {
		storeTimeout = defaultStoreTimeout
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		repository:   cfg.Repository,
		presence:     cfg.Presence,
		publisher:    cfg.Publisher,
		storeTimeout: storeTimeout,
		concurrency:  concurrency,
		logger:       logger,
	}, nil
}

// TickReport summarizes one reconciliation pass.
type TickReport struct {
	Users   int
	Skipped int
	Emitted int
}

// Tick reconciles every connected user once. A user whose data cannot be fetched is
// skipped until the next tick; other users are unaffected.
func (e *Engine) Tick(ctx context.Context) TickReport {
	users := e.presence.Connected()
	var skipped, emitted atomic.Int64

	var group errgroup.Group
	group.SetLimit(e.concurrency)
	for _, user := range users {
		group.Go(func() error {
			count, err := e.reconcileUser(ctx, user)
			emitted.Add(int64(count))
			if err != nil {
				skipped.Add(1)
				e.logger.Warn("reconcile skipped user",
					zap.String("user", user),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = group.Wait()

	report := TickReport{Users: len(users), Skipped: int(skipped.Load()), Emitted: int(emitted.Load())}
	if report.Emitted > 0 || report.Skipped > 0 {
		e.logger.Debug("reconcile tick finished",
			zap.Int("users", report.Users),
			zap.Int("skipped", report.Skipped),
			zap.Int("emitted", report.Emitted))
	}
	return report
}

func (e *Engine) reconcileUser(ctx context.Context, user string) (int, error) {
	userCtx, cancel := context.WithTimeout(ctx, e.storeTimeout)
	defer cancel()

	emitted := 0
	chats, err := e.repository.Chats(userCtx, user)
	if err != nil {
		return emitted, err
	}
	emitted += e.deliverChats(user, chats)

	views, err := e.repository.Users(userCtx, user)
	if err != nil {
		return emitted, err
	}
	emitted += e.deliverFollows(user, views)

	posts, err := e.repository.Timeline(userCtx, user)
	if err != nil {
		return emitted, err
	}
	emitted += e.deliverTimeline(user, posts)
	return emitted, nil
}

func (e *Engine) deliverChats(user string, chats map[string][]social.ChatMessage) int {
	peers := make([]string, 0, len(chats))
	for peer := range chats {
		peers = append(peers, peer)
	}
	sort.Strings(peers)

	emitted := 0
	for _, peer := range peers {
		for _, message := range claim(e.presence, user, presence.PeerChannel(peer), chats[peer]) {
			e.publisher.Publish(pushbus.ChatTopic(user), pushbus.ChatEvent(message))
			emitted++
		}
	}
	return emitted
}

func (e *Engine) deliverFollows(user string, views []social.UserView) int {
	emitted := 0
	for _, view := range views {
		if !e.presence.ObserveFollow(user, view.Username, view.Followed) {
			continue
		}
		action := social.FollowActionUnfollow
		if view.Followed {
			action = social.FollowActionFollow
		}
		e.publisher.Publish(pushbus.FollowTopic(user), pushbus.FollowChangeEvent(social.FollowEvent{
			Action:   action,
			Follower: user,
			Target:   view.Username,
		}))
		emitted++
	}
	return emitted
}

func (e *Engine) deliverTimeline(user string, posts []social.PostMessage) int {
	emitted := 0
	for _, post := range claim(e.presence, user, presence.TimelineChannel, posts) {
		e.publisher.Publish(pushbus.TimelineTopic(user), pushbus.TimelineEvent(post))
		emitted++
	}
	return emitted
}

type positioned interface {
	Position() social.Position
}

// claim selects the items after the (user, channel) checkpoint, advances the
// checkpoint once to the highest of them and returns, in list order, the items
// that were not already covered by a concurrent advance.
func claim[T positioned](tracker *presence.Tracker, user string, channel presence.Channel, items []T) []T {
	checkpoint := tracker.Checkpoint(user, channel)
	fresh := make([]T, 0)
	var latest social.Position
	for _, item := range items {
		position := item.Position()
		if !position.After(checkpoint) {
			continue
		}
		fresh = append(fresh, item)
		if position.After(latest) {
			latest = position
		}
	}
	if len(fresh) == 0 {
		return nil
	}
	previous, moved := tracker.Advance(user, channel, latest)
	if !moved {
		return nil
	}
	if previous == checkpoint {
		return fresh
	}
	claimed := fresh[:0]
	for _, item := range fresh {
		if item.Position().After(previous) {
			claimed = append(claimed, item)
		}
	}
	return claimed
}
