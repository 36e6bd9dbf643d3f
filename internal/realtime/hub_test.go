package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sjnosa/connect/internal/models"
)

func messageChange(t *testing.T, id, sender, receiver, content string) Change {
	t.Helper()
	c, err := NewChange(TableMessages, OpInsert, map[string]any{
		"id":          id,
		"sender_id":   sender,
		"receiver_id": receiver,
		"content":     content,
		"created_at":  "2025-03-14T09:00:00.123456+00:00",
	})
	require.NoError(t, err)
	return c
}

func messagesFilter() Filter {
	return Filter{Table: TableMessages, Op: OpInsert}
}

func receive(t *testing.T, sub *Subscription) Change {
	t.Helper()
	select {
	case c, ok := <-sub.Events():
		require.True(t, ok, "events channel closed")
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
	return Change{}
}

func assertNoChange(t *testing.T, sub *Subscription) {
	t.Helper()
	select {
	case c, ok := <-sub.Events():
		if ok {
			t.Fatalf("unexpected change %+v", c.Record)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_DeliversInScopeChangesInOrder(t *testing.T) {
	broker := NewLocalBroker()
	hub := NewHub(broker, nil)
	defer hub.Close()

	sub, err := hub.Subscribe(context.Background(), models.ConversationScope("alice", "bob"), messagesFilter())
	require.NoError(t, err)

	broker.Publish(messageChange(t, "1", "bob", "alice", "one"))
	broker.Publish(messageChange(t, "2", "alice", "bob", "two"))
	broker.Publish(messageChange(t, "1", "bob", "alice", "one"))

	assert.Equal(t, "1", receive(t, sub).Record.ID)
	assert.Equal(t, "2", receive(t, sub).Record.ID)
	// at-least-once: duplicates are passed through
	assert.Equal(t, "1", receive(t, sub).Record.ID)
}

func TestHub_ScopeIsolation(t *testing.T) {
	broker := NewLocalBroker()
	hub := NewHub(broker, nil)
	defer hub.Close()

	ab, err := hub.Subscribe(context.Background(), models.ConversationScope("alice", "bob"), messagesFilter())
	require.NoError(t, err)
	ac, err := hub.Subscribe(context.Background(), models.ConversationScope("alice", "carol"), messagesFilter())
	require.NoError(t, err)

	broker.Publish(messageChange(t, "1", "carol", "alice", "for carol thread"))

	assert.Equal(t, "1", receive(t, ac).Record.ID)
	assertNoChange(t, ab)
}

func TestHub_ColumnFilter(t *testing.T) {
	broker := NewLocalBroker()
	hub := NewHub(broker, nil)
	defer hub.Close()

	sub, err := hub.Subscribe(context.Background(), models.ConversationScope("alice", "bob"), Filter{
		Table: TableMessages, Op: OpInsert, Column: "receiver_id", Value: "alice",
	})
	require.NoError(t, err)

	broker.Publish(messageChange(t, "1", "alice", "bob", "mine"))
	broker.Publish(messageChange(t, "2", "bob", "alice", "theirs"))

	assert.Equal(t, "2", receive(t, sub).Record.ID)
	assertNoChange(t, sub)
}

func TestHub_SecondSubscriptionForScopeRefused(t *testing.T) {
	hub := NewHub(NewLocalBroker(), nil)
	defer hub.Close()
	scope := models.FeedScope()

	first, err := hub.Subscribe(context.Background(), scope, Filter{Table: TableFeedPosts, Op: OpInsert})
	require.NoError(t, err)

	_, err = hub.Subscribe(context.Background(), scope, Filter{Table: TableFeedPosts, Op: OpInsert})
	assert.ErrorIs(t, err, ErrScopeActive)

	first.Close()
	assert.False(t, hub.Active(scope))

	again, err := hub.Subscribe(context.Background(), scope, Filter{Table: TableFeedPosts, Op: OpInsert})
	require.NoError(t, err)
	again.Close()
}

func TestSubscription_NothingAfterClose(t *testing.T) {
	broker := NewLocalBroker()
	hub := NewHub(broker, nil)
	defer hub.Close()

	sub, err := hub.Subscribe(context.Background(), models.ConversationScope("alice", "bob"), messagesFilter())
	require.NoError(t, err)

	broker.Publish(messageChange(t, "1", "bob", "alice", "queued"))
	sub.Close()
	broker.Publish(messageChange(t, "2", "bob", "alice", "late"))

	for c := range sub.Events() {
		t.Fatalf("change %s delivered after close", c.Record.ID)
	}
	state, _ := sub.State()
	assert.Equal(t, StateClosed, state)
	sub.Close()
}

func TestSubscription_DisconnectDropsAndFlagsGap(t *testing.T) {
	broker := NewLocalBroker()
	hub := NewHub(broker, nil)
	defer hub.Close()

	sub, err := hub.Subscribe(context.Background(), models.ConversationScope("alice", "bob"), messagesFilter())
	require.NoError(t, err)

	broker.Disconnect()
	state, gap := sub.State()
	assert.Equal(t, StateDisconnected, state)
	assert.False(t, gap)
	assert.Equal(t, StateDisconnected, hub.State())

	broker.Publish(messageChange(t, "1", "bob", "alice", "missed"))
	assertNoChange(t, sub)

	broker.Reconnect()
	state, gap = sub.State()
	assert.Equal(t, StateConnected, state)
	assert.True(t, gap)

	sub.AckGap()
	_, gap = sub.State()
	assert.False(t, gap)

	broker.Publish(messageChange(t, "2", "bob", "alice", "after"))
	assert.Equal(t, "2", receive(t, sub).Record.ID)
}

func TestHub_CloseClosesSubscriptions(t *testing.T) {
	hub := NewHub(NewLocalBroker(), nil)
	sub, err := hub.Subscribe(context.Background(), models.FeedScope(), Filter{Table: TableFeedPosts, Op: OpInsert})
	require.NoError(t, err)

	hub.Close()

	_, ok := <-sub.Events()
	assert.False(t, ok)
	_, err = hub.Subscribe(context.Background(), models.FeedScope(), Filter{Table: TableFeedPosts, Op: OpInsert})
	assert.ErrorIs(t, err, ErrHubClosed)
}
