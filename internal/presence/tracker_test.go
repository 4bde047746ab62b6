package presence

import (
	"sync"
	"testing"

	"github.com/Shrinivas-Shanbhag/Distributed-Social-Networking-Application/internal/social"
)

func TestConnectKeepsExistingCheckpoints(t *testing.T) {
	tracker := NewTracker()
	if !tracker.Connect("alice") {
		t.Fatalf("expected first connect to report a new live user")
	}
	tracker.Advance("alice", PeerChannel("bob"), social.Position{Timestamp: 10, Seq: 1})

	if !tracker.Disconnect("alice") {
		t.Fatalf("expected disconnect to remove the only connection")
	}
	if tracker.IsConnected("alice") {
		t.Fatalf("expected alice to be offline")
	}

	tracker.Connect("alice")
	checkpoint := tracker.Checkpoint("alice", PeerChannel("bob"))
	if checkpoint != (social.Position{Timestamp: 10, Seq: 1}) {
		t.Fatalf("expected checkpoint to survive reconnect, got %#v", checkpoint)
	}
}

func TestConnectionsAreReferenceCounted(t *testing.T) {
	tracker := NewTracker()
	tracker.Connect("alice")
	if tracker.Connect("alice") {
		t.Fatalf("second connection should not report a new live user")
	}
	if tracker.Disconnect("alice") {
		t.Fatalf("closing one of two connections should keep the user live")
	}
	if !tracker.IsConnected("alice") {
		t.Fatalf("expected alice to remain connected")
	}
	tracker.Disconnect("alice")
	if got := tracker.Connected(); len(got) != 0 {
		t.Fatalf("expected empty live set, got %#v", got)
	}
}

func TestAdvanceNeverMovesBackwards(t *testing.T) {
	tracker := NewTracker()
	channel := TimelineChannel

	previous, moved := tracker.Advance("alice", channel, social.Position{Timestamp: 20, Seq: 4})
	if !moved || !previous.IsZero() {
		t.Fatalf("expected first advance from zero, got %#v moved=%v", previous, moved)
	}
	previous, moved = tracker.Advance("alice", channel, social.Position{Timestamp: 20, Seq: 3})
	if moved {
		t.Fatalf("stale position must not overwrite checkpoint")
	}
	if previous != (social.Position{Timestamp: 20, Seq: 4}) {
		t.Fatalf("unexpected stored checkpoint %#v", previous)
	}
	if _, moved = tracker.Advance("alice", channel, social.Position{Timestamp: 20, Seq: 4}); moved {
		t.Fatalf("equal position must not count as an advance")
	}
}

func TestConcurrentAdvanceKeepsMaximum(t *testing.T) {
	tracker := NewTracker()
	var wg sync.WaitGroup
	for i := 1; i <= 200; i++ {
		wg.Add(1)
		go func(seq int64) {
			defer wg.Done()
			tracker.Advance("alice", PeerChannel("bob"), social.Position{Timestamp: 5, Seq: seq})
		}(int64(i))
	}
	wg.Wait()

	if got := tracker.Checkpoint("alice", PeerChannel("bob")); got.Seq != 200 {
		t.Fatalf("expected highest sequence to win, got %#v", got)
	}
}

func TestObserveFollowReportsFlipsOnly(t *testing.T) {
	tracker := NewTracker()
	if !tracker.ObserveFollow("alice", "bob", true) {
		t.Fatalf("expected first follow to be a change")
	}
	if tracker.ObserveFollow("alice", "bob", true) {
		t.Fatalf("repeated follow should not be a change")
	}
	if !tracker.ObserveFollow("alice", "bob", false) {
		t.Fatalf("unfollow should be a change")
	}
	if tracker.ObserveFollow("alice", "carol", false) {
		t.Fatalf("unknown unfollowed user should not be a change")
	}
}
