package presence

import (
	"sort"
	"sync"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/social"
)

// Channel names one checkpoint slot of a viewer: a chat peer or the timeline.
type Channel string

// TimelineChannel is the sentinel channel for a viewer's timeline checkpoint.
const TimelineChannel Channel = "__timeline__"

// PeerChannel returns the chat checkpoint channel for a peer.
func PeerChannel(peer string) Channel {
	return Channel(peer)
}

// Tracker holds the live user set together with per-user checkpoints and the
// last known follow set. Each user's state has its own lock; the tracker-level
// lock only guards the maps of users.
type Tracker struct {
	mu     sync.RWMutex
	live   map[string]int
	states map[string]*userState
}

type userState struct {
	mu          sync.Mutex
	checkpoints map[Channel]social.Position
	follows     map[string]bool
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		live:   make(map[string]int),
		states: make(map[string]*userState),
	}
}

// Connect registers one live connection for user and initializes its checkpoint
// namespace if absent. Existing checkpoints are kept. It reports whether the user
// was offline before this call.
func (t *Tracker) Connect(user string) bool {
	if user == "" {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.states[user]; !ok {
		t.states[user] = newUserState()
	}
	t.live[user]++
	return t.live[user] == 1
}

// Disconnect releases one live connection. The user leaves the live set when the
// last connection closes; checkpoints are retained for the next reconnect.
func (t *Tracker) Disconnect(user string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	count, ok := t.live[user]
	if !ok {
		return false
	}
	if count <= 1 {
		delete(t.live, user)
		return true
	}
	t.live[user] = count - 1
	return false
}

// IsConnected reports whether user has at least one live connection.
func (t *Tracker) IsConnected(user string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live[user] > 0
}

// Connected returns a sorted snapshot of the live set.
func (t *Tracker) Connected() []string {
	t.mu.RLock()
	users := make([]string, 0, len(t.live))
	for user := range t.live {
		users = append(users, user)
	}
	t.mu.RUnlock()
	sort.Strings(users)
	return users
}

// Checkpoint returns the last delivered position for (user, channel).
func (t *Tracker) Checkpoint(user string, channel Channel) social.Position {
	state := t.state(user)
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.checkpoints[channel]
}

// Advance moves the (user, channel) checkpoint to target when target sorts after the
// stored value. It returns the value that was stored before the call and whether
// the checkpoint moved. A stale target never overwrites a newer checkpoint.
func (t *Tracker) Advance(user string, channel Channel, target social.Position) (social.Position, bool) {
	state := t.state(user)
	state.mu.Lock()
	defer state.mu.Unlock()
	previous := state.checkpoints[channel]
	if !target.After(previous) {
		return previous, false
	}
	state.checkpoints[channel] = target
	return previous, true
}

// ObserveFollow records whether user currently follows target and reports whether
// this differs from the last known state.
func (t *Tracker) ObserveFollow(user, target string, followed bool) bool {
	state := t.state(user)
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.follows[target] == followed {
		return false
	}
	if followed {
		state.follows[target] = true
	} else {
		delete(state.follows, target)
	}
	return true
}

func (t *Tracker) state(user string) *userState {
	t.mu.RLock()
	state, ok := t.states[user]
	t.mu.RUnlock()
	if ok {
		return state
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if state, ok = t.states[user]; !ok {
		state = newUserState()
		t.states[user] = state
	}
	return state
}

func newUserState() *userState {
	return &userState{
		checkpoints: make(map[Channel]social.Position),
		follows:     make(map[string]bool),
	}
}
