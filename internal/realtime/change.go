// Package realtime manages server-push change feed subscriptions, one per scope.
package realtime

import (
	"fmt"
	"strconv"
	"time"

	"github.com/sjnosa/connect/internal/models"
)

// Table names the backend entity a change belongs to.
type Table string

const (
	TableMessages     Table = "messages"
	TableFeedPosts    Table = "feed_posts"
	TableFeedComments Table = "feed_comments"
	TableFeedLikes    Table = "feed_likes"
	TableSchoolEvents Table = "school_events"
)

// Op is the kind of write a change reports.
type Op string

const (
	OpInsert Op = "INSERT"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	OpAll    Op = "*"
)

// Change is one pushed row change. Row is the new row, or the old row for deletes.
// Record is Row decoded for the sync engine; for feed_likes its ID is the liked post.
type Change struct {
	Table           Table
	Op              Op
	Row             map[string]any
	Record          models.Record
	CommitTimestamp time.Time
}

// NewChange decodes row into a Change.
func NewChange(table Table, op Op, row map[string]any) (Change, error) {
	rec, err := DecodeRecord(table, row)
	if err != nil {
		return Change{}, err
	}
	return Change{Table: table, Op: op, Row: row, Record: rec}, nil
}

// Filter restricts a subscription to one (table, operation) pair and, optionally, to rows
// whose Column equals Value.
type Filter struct {
	Table  Table
	Op     Op
	Column string
	Value  string
}

func (f Filter) Matches(c Change) bool {
	if f.Table != c.Table {
		return false
	}
	if f.Op != OpAll && f.Op != "" && f.Op != c.Op {
		return false
	}
	if f.Column == "" {
		return true
	}
	v, ok := c.Row[f.Column]
	return ok && stringify(v) == f.Value
}

// Expr renders the row filter in PostgREST form, e.g. "receiver_id=eq.42".
func (f Filter) Expr() string {
	if f.Column == "" {
		return ""
	}
	return f.Column + "=eq." + f.Value
}

// DecodeRecord maps a backend row of table into a Record.
func DecodeRecord(table Table, row map[string]any) (models.Record, error) {
	r := rowReader(row)
	var rec models.Record
	switch table {
	case TableMessages:
		sender, receiver := r.str("sender_id"), r.str("receiver_id")
		rec = models.Record{
			ID:       r.str("id"),
			Scope:    models.ConversationScope(sender, receiver),
			AuthorID: sender,
			Content:  r.str("content"),
		}
	case TableFeedPosts:
		rec = models.Record{
			ID:            r.str("id"),
			Scope:         models.FeedScope(),
			AuthorID:      r.str("user_id"),
			Content:       r.str("content"),
			ImageURL:      r.str("image_url"),
			LikesCount:    r.int("likes_count"),
			CommentsCount: r.int("comments_count"),
		}
	case TableFeedComments:
		rec = models.Record{
			ID:       r.str("id"),
			Scope:    models.CommentsScope(r.str("post_id")),
			AuthorID: r.str("user_id"),
			Content:  r.str("content"),
		}
	case TableFeedLikes:
		rec = models.Record{
			ID:       r.str("post_id"),
			Scope:    models.ReactionsScope(),
			AuthorID: r.str("user_id"),
		}
	case TableSchoolEvents:
		rec = models.Record{
			ID:       r.str("id"),
			Scope:    models.EventsScope(),
			AuthorID: r.str("created_by"),
			Content:  r.str("title"),
		}
	default:
		return models.Record{}, fmt.Errorf("realtime: unknown table %q", table)
	}
	created, err := r.time("created_at")
	if err != nil {
		return models.Record{}, fmt.Errorf("realtime: %s row: %w", table, err)
	}
	rec.CreatedAt = created
	return rec, nil
}

type rowReader map[string]any

func (r rowReader) str(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	return stringify(v)
}

func (r rowReader) int(key string) int {
	switch v := r[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case string:
		n, _ := strconv.Atoi(v)
		return n
	}
	return 0
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07",
	"2006-01-02 15:04:05.999999999",
}

func (r rowReader) time(key string) (time.Time, error) {
	switch v := r[key].(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unparseable %s %q", key, v)
	}
	return time.Time{}, fmt.Errorf("unexpected %s type %T", key, r[key])
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
