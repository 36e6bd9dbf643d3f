package optimistic

type reactionKey struct {
	recordID string
	actor    string
}

// Reactions keeps like counts and per-actor like state. Counts are adjusted by ±1 on
// each state change and never go below zero.
type Reactions struct {
	counts map[string]int
	liked  map[reactionKey]bool
}

func NewReactions() *Reactions {
	return &Reactions{
		counts: make(map[string]int),
		liked:  make(map[reactionKey]bool),
	}
}

// Seed installs the authoritative count of recordID and actor's state from a fresh read.
func (r *Reactions) Seed(recordID string, count int, actor string, liked bool) {
	if count < 0 {
		count = 0
	}
	r.counts[recordID] = count
	r.liked[reactionKey{recordID, actor}] = liked
}

// Toggle flips actor's reaction on recordID and returns the new count and state.
// It runs before the network call.
func (r *Reactions) Toggle(recordID, actor string) (int, bool) {
	k := reactionKey{recordID, actor}
	return r.set(k, !r.liked[k])
}

// Set forces actor's state, adjusting the count only when the state changes.
func (r *Reactions) Set(recordID, actor string, liked bool) (int, bool) {
	return r.set(reactionKey{recordID, actor}, liked)
}

// RemoteResult reports what ApplyRemote did with a pushed change.
type RemoteResult int

const (
	// RemoteDuplicate: the actor was already in the pushed state.
	RemoteDuplicate RemoteResult = iota
	// RemoteApplied: the count moved by one.
	RemoteApplied
	// RemoteUnknown: the actor's prior state was never seen, so the count was left alone
	// and must be re-read.
	RemoteUnknown
)

// ApplyRemote applies a pushed like or unlike. A redelivered change, or the echo of a
// toggle already applied locally, leaves the count untouched. For an actor never seen
// before the pushed state is recorded but the count is not adjusted: a fresh read may
// already include it.
func (r *Reactions) ApplyRemote(recordID, actor string, liked bool) (int, RemoteResult) {
	k := reactionKey{recordID, actor}
	cur, known := r.liked[k]
	switch {
	case !known:
		r.liked[k] = liked
		return r.counts[recordID], RemoteUnknown
	case cur == liked:
		return r.counts[recordID], RemoteDuplicate
	}
	n, _ := r.set(k, liked)
	return n, RemoteApplied
}

// Resync installs the authoritative count of recordID without touching any actor's state.
func (r *Reactions) Resync(recordID string, count int) {
	if count < 0 {
		count = 0
	}
	r.counts[recordID] = count
}

func (r *Reactions) set(k reactionKey, liked bool) (int, bool) {
	cur := r.liked[k]
	if cur != liked {
		if liked {
			r.counts[k.recordID]++
		} else if r.counts[k.recordID] > 0 {
			r.counts[k.recordID]--
		}
	}
	r.liked[k] = liked
	return r.counts[k.recordID], liked
}

func (r *Reactions) Count(recordID string) int {
	return r.counts[recordID]
}

func (r *Reactions) Liked(recordID, actor string) bool {
	return r.liked[reactionKey{recordID, actor}]
}

// Forget drops everything known about recordID.
func (r *Reactions) Forget(recordID string) {
	delete(r.counts, recordID)
	for k := range r.liked {
		if k.recordID == recordID {
			delete(r.liked, k)
		}
	}
}
