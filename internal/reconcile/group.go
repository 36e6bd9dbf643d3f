package reconcile

import (
	"sort"
	"time"

	"github.com/sjnosa/connect/internal/models"
)

// Item is a record positioned inside a run.
type Item struct {
	models.Record
	// ShowTimestamp marks the last record of a run.
	ShowTimestamp bool `json:"show_timestamp"`
}

// Run is a maximal sequence of consecutive records by one author within a day.
type Run struct {
	AuthorID string `json:"author_id"`
	Items    []Item `json:"items"`
}

// DayGroup holds the runs of one calendar day.
type DayGroup struct {
	Date time.Time `json:"date"`
	Runs []Run     `json:"runs"`
}

// Len returns the number of records in the group.
func (g DayGroup) Len() int {
	n := 0
	for _, r := range g.Runs {
		n += len(r.Items)
	}
	return n
}

// Group partitions records into calendar days (in loc) in ascending order and coalesces
// consecutive same-author records inside a day into runs. It is a presentation derivative
// of Merge's ordering; records are sorted by creation time first so the input order only
// breaks ties.
func Group(records []models.Record, loc *time.Location) []DayGroup {
	if loc == nil {
		loc = time.Local
	}
	sorted := make([]models.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	var groups []DayGroup
	for _, r := range sorted {
		day := startOfDay(r.CreatedAt, loc)
		if len(groups) == 0 || !groups[len(groups)-1].Date.Equal(day) {
			groups = append(groups, DayGroup{Date: day})
		}
		g := &groups[len(groups)-1]
		if len(g.Runs) == 0 || g.Runs[len(g.Runs)-1].AuthorID != r.AuthorID {
			g.Runs = append(g.Runs, Run{AuthorID: r.AuthorID})
		}
		run := &g.Runs[len(g.Runs)-1]
		run.Items = append(run.Items, Item{Record: r})
	}

	for gi := range groups {
		for ri := range groups[gi].Runs {
			items := groups[gi].Runs[ri].Items
			items[len(items)-1].ShowTimestamp = true
		}
	}
	return groups
}

// DayLabel returns "Today", "Yesterday" or the date itself for a day group header.
func DayLabel(day, now time.Time) string {
	loc := now.Location()
	d := startOfDay(day, loc)
	today := startOfDay(now, loc)
	switch {
	case d.Equal(today):
		return "Today"
	case d.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	default:
		return d.Format("Mon Jan 02 2006")
	}
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
