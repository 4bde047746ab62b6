package social

import "sort"

// followsDocument maps each user to the set of users they follow.
type followsDocument map[string][]string

func (d followsDocument) ensure(names ...string) bool {
	changed := false
	for _, name := range names {
		if _, ok := d[name]; !ok {
			d[name] = []string{}
			changed = true
		}
	}
	return changed
}

func (d followsDocument) follows(follower, target string) bool {
	for _, candidate := range d[follower] {
		if candidate == target {
			return true
		}
	}
	return false
}

func (d followsDocument) set(follower, target string, follow bool) {
	targets := d[follower]
	filtered := make([]string, 0, len(targets)+1)
	for _, candidate := range targets {
		if candidate != target {
			filtered = append(filtered, candidate)
		}
	}
	if follow {
		filtered = append(filtered, target)
	}
	sort.Strings(filtered)
	d[follower] = filtered
}

func (d followsDocument) everyone() []string {
	seen := make(map[string]struct{}, len(d))
	for follower, targets := range d {
		seen[follower] = struct{}{}
		for _, target := range targets {
			seen[target] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type chatsDocument struct {
	NextSeq       int64                               `json:"next_seq"`
	LastTimestamp int64                               `json:"last_timestamp"`
	Threads       map[string]map[string][]ChatMessage `json:"threads"`
}

func (d *chatsDocument) append(message ChatMessage) {
	if d.Threads == nil {
		d.Threads = make(map[string]map[string][]ChatMessage)
	}
	d.index(message.From, message.To, message)
	d.index(message.To, message.From, message)
}

func (d *chatsDocument) index(owner, peer string, message ChatMessage) {
	threads, ok := d.Threads[owner]
	if !ok {
		threads = make(map[string][]ChatMessage)
		d.Threads[owner] = threads
	}
	threads[peer] = append(threads[peer], message)
}

type postsDocument struct {
	NextSeq       int64         `json:"next_seq"`
	LastTimestamp int64         `json:"last_timestamp"`
	Posts         []PostMessage `json:"posts"`
}
