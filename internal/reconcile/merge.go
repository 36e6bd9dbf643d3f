// Package reconcile merges server-confirmed and optimistic records into the ordered,
// deduplicated sequence a view renders. It is pure: no transport or tracker state lives here.
package reconcile

import (
	"sort"
	"time"

	"github.com/sjnosa/connect/internal/models"
)

// DefaultEchoWindow bounds the clock difference between an optimistic record and
// the server copy of the same write.
const DefaultEchoWindow = 10 * time.Second

type Options struct {
	// Scope, when set, drops records that belong to any other scope.
	Scope models.Scope
	// EchoWindow is the creation-time tolerance for matching an optimistic record
	// against a confirmed one. Zero means DefaultEchoWindow.
	EchoWindow time.Duration
	// Promoted holds confirmed ids that already replaced an optimistic record. They are
	// never matched against another one.
	Promoted map[string]struct{}
}

type entry struct {
	rec     models.Record
	pending bool
}

// Merge returns confirmed and optimistic records as one sequence ordered by creation time.
//
// Confirmed records are deduplicated by ID, first arrival wins. An optimistic record is
// dropped when an unclaimed confirmed record carries the same write; each confirmed record
// absorbs at most one optimistic record, the one closest in time, and records listed in
// Promoted absorb none. Equal timestamps keep
// confirmed records ahead of optimistic ones, then input order.
func Merge(confirmed, optimistic []models.Record, opts Options) []models.Record {
	window := opts.EchoWindow
	if window <= 0 {
		window = DefaultEchoWindow
	}

	entries := make([]entry, 0, len(confirmed)+len(optimistic))
	seen := make(map[string]struct{}, len(confirmed))
	for _, r := range confirmed {
		if !opts.Scope.IsZero() && r.Scope != opts.Scope {
			continue
		}
		if r.ID != "" {
			if _, dup := seen[r.ID]; dup {
				continue
			}
			seen[r.ID] = struct{}{}
		}
		r.Pending = false
		entries = append(entries, entry{rec: r})
	}

	claimed := make([]bool, len(entries))
	for i, e := range entries {
		if _, ok := opts.Promoted[e.rec.ID]; ok && e.rec.ID != "" {
			claimed[i] = true
		}
	}
	for _, o := range optimistic {
		if !opts.Scope.IsZero() && o.Scope != opts.Scope {
			continue
		}
		if i := closestEcho(entries, claimed, o, window); i >= 0 {
			claimed[i] = true
			continue
		}
		o.Pending = true
		entries = append(entries, entry{rec: o, pending: true})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.rec.CreatedAt.Equal(b.rec.CreatedAt) {
			return a.rec.CreatedAt.Before(b.rec.CreatedAt)
		}
		return !a.pending && b.pending
	})

	out := make([]models.Record, len(entries))
	for i, e := range entries {
		out[i] = e.rec
	}
	return out
}

func closestEcho(entries []entry, claimed []bool, o models.Record, window time.Duration) int {
	best := -1
	var bestDist time.Duration
	for i := range claimed {
		if claimed[i] || !entries[i].rec.SameWrite(o, window) {
			continue
		}
		d := entries[i].rec.CreatedAt.Sub(o.CreatedAt)
		if d < 0 {
			d = -d
		}
		if best < 0 || d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Latest returns the newest record of a merged sequence.
func Latest(records []models.Record) (models.Record, bool) {
	if len(records) == 0 {
		return models.Record{}, false
	}
	return records[len(records)-1], true
}
