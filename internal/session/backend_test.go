package session

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/realtime"
)

// fakeBackend is an in-memory Backend. Gates block the matching call until closed.
type fakeBackend struct {
	mu       sync.Mutex
	profiles map[string]models.Profile
	messages []models.Message
	posts    []models.Post
	comments []models.Comment
	likes    map[string]map[string]bool
	events   []models.SchoolEvent

	listGates map[string]chan struct{}
	sendGate  chan struct{}
	sendID    string
	sendAt    time.Time
	sendErr   error
	likeErr   error
	nextID    int

	likeCalls int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		profiles:  make(map[string]models.Profile),
		likes:     make(map[string]map[string]bool),
		listGates: make(map[string]chan struct{}),
	}
}

func waitGate(ctx context.Context, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s%d", prefix, f.nextID)
}

func (f *fakeBackend) GetProfile(_ context.Context, userID string) (*models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.profiles[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (f *fakeBackend) ListProfiles(_ context.Context, excludeID string) ([]models.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Profile
	for id, p := range f.profiles {
		if id != excludeID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeBackend) ListMessages(ctx context.Context, a, b string) ([]models.Message, error) {
	f.mu.Lock()
	gate := f.listGates[b]
	f.mu.Unlock()
	if err := waitGate(ctx, gate); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Message
	for _, m := range f.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeBackend) SendMessage(ctx context.Context, msg *models.Message) error {
	f.mu.Lock()
	gate := f.sendGate
	f.mu.Unlock()
	if err := waitGate(ctx, gate); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	msg.ID = f.sendID
	if msg.ID == "" {
		msg.ID = f.id("m")
	}
	msg.CreatedAt = f.sendAt
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	f.messages = append(f.messages, *msg)
	return nil
}

func (f *fakeBackend) ListPosts(_ context.Context, limit int64) ([]models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]models.Post(nil), f.posts...)
	if int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeBackend) GetPost(_ context.Context, postID string) (*models.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		if p.ID.Hex() != postID {
			continue
		}
		if users, ok := f.likes[postID]; ok {
			p.LikesCount = 0
			for _, liked := range users {
				if liked {
					p.LikesCount++
				}
			}
		}
		return &p, nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeBackend) CreatePost(_ context.Context, post *models.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now()
	f.posts = append(f.posts, *post)
	return nil
}

func (f *fakeBackend) LikedPostIDs(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for postID, users := range f.likes {
		if users[userID] {
			out = append(out, postID)
		}
	}
	return out, nil
}

func (f *fakeBackend) HasLikedPost(_ context.Context, postID, userID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.likes[postID][userID], nil
}

func (f *fakeBackend) setLike(postID, userID string, liked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.likeCalls++
	if f.likeErr != nil {
		return f.likeErr
	}
	if f.likes[postID] == nil {
		f.likes[postID] = make(map[string]bool)
	}
	f.likes[postID][userID] = liked
	return nil
}

func (f *fakeBackend) LikePost(_ context.Context, postID, userID string) error {
	return f.setLike(postID, userID, true)
}

func (f *fakeBackend) UnlikePost(_ context.Context, postID, userID string) error {
	return f.setLike(postID, userID, false)
}

func (f *fakeBackend) ListComments(_ context.Context, postID string) ([]models.Comment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Comment
	for _, c := range f.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeBackend) CreateComment(ctx context.Context, c *models.Comment) error {
	f.mu.Lock()
	gate := f.sendGate
	f.mu.Unlock()
	if err := waitGate(ctx, gate); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	c.ID = f.sendID
	if c.ID == "" {
		c.ID = f.id("c")
	}
	c.CreatedAt = time.Now()
	f.comments = append(f.comments, *c)
	return nil
}

func (f *fakeBackend) NextEvent(_ context.Context, after time.Time) (*models.SchoolEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var next *models.SchoolEvent
	for i := range f.events {
		e := &f.events[i]
		if e.EventDate.After(after) && (next == nil || e.EventDate.Before(next.EventDate)) {
			next = e
		}
	}
	if next == nil {
		return nil, models.ErrNotFound
	}
	out := *next
	return &out, nil
}

type testEnv struct {
	broker  *realtime.LocalBroker
	backend *fakeBackend
	manager *Manager
	session *Session
}

func newTestEnv(t *testing.T, opts Options) *testEnv {
	t.Helper()
	broker := realtime.NewLocalBroker()
	backend := newFakeBackend()
	opts.Location = time.UTC
	m := NewManager(backend, broker, nil, opts)
	s, err := m.Start(context.Background(), "alice", "alice@example.com")
	require.NoError(t, err)
	t.Cleanup(m.Stop)
	return &testEnv{broker: broker, backend: backend, manager: m, session: s}
}

func (e *testEnv) publish(t *testing.T, table realtime.Table, op realtime.Op, row map[string]any) {
	t.Helper()
	c, err := realtime.NewChange(table, op, row)
	require.NoError(t, err)
	e.broker.Publish(c)
}

func (e *testEnv) publishMessage(t *testing.T, id, sender, receiver, content string, at time.Time) {
	t.Helper()
	e.publish(t, realtime.TableMessages, realtime.OpInsert, map[string]any{
		"id": id, "sender_id": sender, "receiver_id": receiver, "content": content,
		"created_at": at.UTC().Format(time.RFC3339Nano),
	})
}

func (e *testEnv) pendingWrites(t *testing.T) int {
	t.Helper()
	var n int
	require.NoError(t, e.session.do(context.Background(), func() { n = e.session.tracker.Len() }))
	return n
}

func recordIDs(records []models.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Key()
	}
	return out
}
