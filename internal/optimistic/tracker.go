// Package optimistic tracks local writes that are shown before the backend confirms them.
//
// A Tracker is owned by one session event loop and is not safe for concurrent use.
package optimistic

import (
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sjnosa/connect/internal/models"
)

// TempIDPrefix marks identifiers that were never assigned by the server.
const TempIDPrefix = "temp-"

var ErrUnknownEntry = errors.New("optimistic: unknown or resolved entry")

type Status int

const (
	StatusPending Status = iota
	StatusPromoted
	StatusReverted
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusPromoted:
		return "promoted"
	case StatusReverted:
		return "reverted"
	}
	return "unknown"
}

// Entry is one user action awaiting confirmation.
type Entry struct {
	ID       string
	Scope    models.Scope
	Record   models.Record
	Status   Status
	ServerID string
	Err      error
}

type Tracker struct {
	byScope  map[models.Scope][]*Entry
	byID     map[string]*Entry
	promoted map[models.Scope]map[string]struct{}
	newID    func() string
}

func NewTracker() *Tracker {
	return &Tracker{
		byScope:  make(map[models.Scope][]*Entry),
		byID:     make(map[string]*Entry),
		promoted: make(map[models.Scope]map[string]struct{}),
		newID:    func() string { return TempIDPrefix + ulid.Make().String() },
	}
}

// IsTempID reports whether id was produced by a Tracker.
func IsTempID(id string) bool {
	return len(id) > len(TempIDPrefix) && id[:len(TempIDPrefix)] == TempIDPrefix
}

// Apply records rec as pending in scope and returns its temporary identifier.
// Every call creates an independent entry, even for identical content.
func (t *Tracker) Apply(scope models.Scope, rec models.Record) string {
	id := t.newID()
	rec.ID = ""
	rec.TempID = id
	rec.Scope = scope
	rec.Pending = true
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	e := &Entry{ID: id, Scope: scope, Record: rec, Status: StatusPending}
	t.byScope[scope] = append(t.byScope[scope], e)
	t.byID[id] = e
	return id
}

// Confirm promotes the entry: the server record replaces the temporary one and the
// entry leaves the pending set. The server id is remembered as claimed so it can never
// stand in for a later write. The returned entry carries the promoted record.
func (t *Tracker) Confirm(id string, server models.Record) (Entry, error) {
	e, err := t.resolve(id)
	if err != nil {
		return Entry{}, err
	}
	e.Status = StatusPromoted
	e.ServerID = server.ID
	server.TempID = id
	server.Pending = false
	if server.Scope.IsZero() {
		server.Scope = e.Scope
	}
	e.Record = server
	if server.ID != "" {
		ids := t.promoted[e.Scope]
		if ids == nil {
			ids = make(map[string]struct{})
			t.promoted[e.Scope] = ids
		}
		ids[server.ID] = struct{}{}
	}
	return *e, nil
}

// Promoted returns the server ids of scope that already confirmed a write.
// The map is owned by the tracker.
func (t *Tracker) Promoted(scope models.Scope) map[string]struct{} {
	return t.promoted[scope]
}

// Revert removes the entry. No trace of it remains in the pending set.
func (t *Tracker) Revert(id string, reason error) (Entry, error) {
	e, err := t.resolve(id)
	if err != nil {
		return Entry{}, err
	}
	e.Status = StatusReverted
	e.Err = reason
	return *e, nil
}

func (t *Tracker) resolve(id string) (*Entry, error) {
	e, ok := t.byID[id]
	if !ok {
		return nil, ErrUnknownEntry
	}
	delete(t.byID, id)
	list := t.byScope[e.Scope]
	for i, cur := range list {
		if cur == e {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(t.byScope, e.Scope)
	} else {
		t.byScope[e.Scope] = list
	}
	return e, nil
}

// Pending returns the pending records of scope in creation order.
func (t *Tracker) Pending(scope models.Scope) []models.Record {
	list := t.byScope[scope]
	out := make([]models.Record, len(list))
	for i, e := range list {
		out[i] = e.Record
	}
	return out
}

// Get returns a pending entry.
func (t *Tracker) Get(id string) (Entry, bool) {
	e, ok := t.byID[id]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Discard drops every pending entry and promoted id of scope, returning how many
// pending entries were dropped. Used when the view owning scope goes away.
func (t *Tracker) Discard(scope models.Scope) int {
	list := t.byScope[scope]
	for _, e := range list {
		delete(t.byID, e.ID)
	}
	delete(t.byScope, scope)
	delete(t.promoted, scope)
	return len(list)
}

// Len returns the number of pending entries across all scopes.
func (t *Tracker) Len() int {
	return len(t.byID)
}
