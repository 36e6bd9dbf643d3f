package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/realtime"
)

func seedPosts(env *testEnv) (older, newer models.Post) {
	base := time.Now().Add(-time.Hour)
	older = models.Post{ID: primitive.NewObjectID(), UserID: "bob", Content: "older", LikesCount: 2, CreatedAt: base}
	newer = models.Post{ID: primitive.NewObjectID(), UserID: "carol", Content: "newer", LikesCount: 0, CreatedAt: base.Add(time.Minute)}
	env.backend.posts = []models.Post{older, newer}
	env.backend.likes[older.ID.Hex()] = map[string]bool{"alice": true, "bob": true}
	return older, newer
}

func findPost(snap FeedSnapshot, id string) (models.Record, bool) {
	for _, p := range snap.Posts {
		if p.ID == id {
			return p, true
		}
	}
	return models.Record{}, false
}

func TestFeed_LoadsNewestFirstWithLikedState(t *testing.T) {
	env := newTestEnv(t, Options{})
	older, newer := seedPosts(env)

	snap, err := env.session.OpenFeed(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{newer.ID.Hex(), older.ID.Hex()}, recordIDs(snap.Posts))
	assert.True(t, snap.Posts[1].LikedByMe)
	assert.Equal(t, 2, snap.Posts[1].LikesCount)
	assert.False(t, snap.Posts[0].LikedByMe)
	require.NotNil(t, snap.Latest)
	assert.Equal(t, newer.ID.Hex(), snap.Latest.ID)
}

func TestFeed_ToggleLikeIsImmediate(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, newer := seedPosts(env)
	ctx := context.Background()
	_, err := env.session.OpenFeed(ctx)
	require.NoError(t, err)

	resp, err := env.session.ToggleLike(ctx, newer.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.ReactionResponse{PostID: newer.ID.Hex(), LikesCount: 1, LikedByMe: true}, resp)

	resp, err = env.session.ToggleLike(ctx, newer.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, 0, resp.LikesCount)
	assert.False(t, resp.LikedByMe)

	require.Eventually(t, func() bool {
		env.backend.mu.Lock()
		defer env.backend.mu.Unlock()
		return env.backend.likeCalls == 2
	}, waitFor, tick)
}

func TestFeed_FailedLikeKeptByDefault(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, newer := seedPosts(env)
	env.backend.likeErr = errors.New("network down")
	ctx := context.Background()
	_, err := env.session.OpenFeed(ctx)
	require.NoError(t, err)

	_, err = env.session.ToggleLike(ctx, newer.ID.Hex())
	require.NoError(t, err)

	var snap FeedSnapshot
	require.Eventually(t, func() bool {
		snap, err = env.session.Feed(ctx)
		return err == nil && snap.Error != nil
	}, waitFor, tick)
	assert.ErrorIs(t, snap.Error, ErrReactionWriteFailed)
	post, ok := findPost(snap, newer.ID.Hex())
	require.True(t, ok)
	assert.Equal(t, 1, post.LikesCount)
	assert.True(t, post.LikedByMe)
}

func TestFeed_FailedLikeRolledBackWhenEnabled(t *testing.T) {
	env := newTestEnv(t, Options{RollbackReactions: true})
	_, newer := seedPosts(env)
	env.backend.likeErr = errors.New("network down")
	ctx := context.Background()
	_, err := env.session.OpenFeed(ctx)
	require.NoError(t, err)

	_, err = env.session.ToggleLike(ctx, newer.ID.Hex())
	require.NoError(t, err)

	var snap FeedSnapshot
	require.Eventually(t, func() bool {
		snap, err = env.session.Feed(ctx)
		return err == nil && snap.Error != nil
	}, waitFor, tick)
	post, ok := findPost(snap, newer.ID.Hex())
	require.True(t, ok)
	assert.Equal(t, 0, post.LikesCount)
	assert.False(t, post.LikedByMe)
}

func (e *testEnv) publishLike(t *testing.T, op realtime.Op, postID, userID string) {
	t.Helper()
	e.publish(t, realtime.TableFeedLikes, op, map[string]any{
		"post_id": postID, "user_id": userID, "created_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (e *testEnv) likes(t *testing.T, postID string) (int, bool) {
	t.Helper()
	snap, err := e.session.Feed(context.Background())
	require.NoError(t, err)
	p, ok := findPost(snap, postID)
	require.True(t, ok)
	return p.LikesCount, p.LikedByMe
}

func TestFeed_RemoteLikesCountedOnce(t *testing.T) {
	env := newTestEnv(t, Options{})
	older, newer := seedPosts(env)
	ctx := context.Background()
	_, err := env.session.OpenFeed(ctx)
	require.NoError(t, err)

	require.NoError(t, env.backend.setLike(newer.ID.Hex(), "dave", true))
	env.publishLike(t, realtime.OpInsert, newer.ID.Hex(), "dave")
	env.publishLike(t, realtime.OpInsert, newer.ID.Hex(), "dave")
	// alice's own like on the older post is already counted
	env.publishLike(t, realtime.OpInsert, older.ID.Hex(), "alice")

	require.Eventually(t, func() bool {
		n, _ := env.likes(t, newer.ID.Hex())
		return n == 1
	}, waitFor, tick)
	time.Sleep(20 * time.Millisecond)

	n, _ := env.likes(t, newer.ID.Hex())
	assert.Equal(t, 1, n)
	n, _ = env.likes(t, older.ID.Hex())
	assert.Equal(t, 2, n)
}

func TestFeed_PushedLikeAlreadyInLoadNotDoubleCounted(t *testing.T) {
	env := newTestEnv(t, Options{})
	older, _ := seedPosts(env)
	ctx := context.Background()
	_, err := env.session.OpenFeed(ctx)
	require.NoError(t, err)

	// bob's like is part of the loaded count of 2
	env.publishLike(t, realtime.OpInsert, older.ID.Hex(), "bob")
	n, _ := env.likes(t, older.ID.Hex())
	assert.Equal(t, 2, n)

	require.NoError(t, env.backend.setLike(older.ID.Hex(), "erin", true))
	env.publishLike(t, realtime.OpInsert, older.ID.Hex(), "erin")
	require.Eventually(t, func() bool {
		n, _ := env.likes(t, older.ID.Hex())
		return n == 3
	}, waitFor, tick)

	require.NoError(t, env.backend.setLike(older.ID.Hex(), "erin", false))
	env.publishLike(t, realtime.OpInsert, older.ID.Hex(), "bob")
	env.publishLike(t, realtime.OpDelete, older.ID.Hex(), "erin")
	require.Eventually(t, func() bool {
		n, _ := env.likes(t, older.ID.Hex())
		return n == 2
	}, waitFor, tick)
	time.Sleep(20 * time.Millisecond)

	n, liked := env.likes(t, older.ID.Hex())
	assert.Equal(t, 2, n)
	assert.True(t, liked)
}

func TestFeed_LateEchoOfOwnLikeIgnoredAfterUnlike(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, newer := seedPosts(env)
	ctx := context.Background()
	postID := newer.ID.Hex()
	_, err := env.session.OpenFeed(ctx)
	require.NoError(t, err)

	_, err = env.session.ToggleLike(ctx, postID)
	require.NoError(t, err)
	resp, err := env.session.ToggleLike(ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, models.ReactionResponse{PostID: postID, LikesCount: 0, LikedByMe: false}, resp)

	env.publishLike(t, realtime.OpInsert, postID, "alice")
	time.Sleep(20 * time.Millisecond)
	n, liked := env.likes(t, postID)
	assert.Equal(t, 0, n)
	assert.False(t, liked)

	env.publishLike(t, realtime.OpDelete, postID, "alice")
	time.Sleep(20 * time.Millisecond)
	n, liked = env.likes(t, postID)
	assert.Equal(t, 0, n)
	assert.False(t, liked)

	require.Eventually(t, func() bool {
		env.backend.mu.Lock()
		defer env.backend.mu.Unlock()
		return env.backend.likeCalls == 2 && !env.backend.likes[postID]["alice"]
	}, waitFor, tick)
}

func TestFeed_LikeWritesKeepToggleOrder(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, newer := seedPosts(env)
	ctx := context.Background()
	postID := newer.ID.Hex()
	_, err := env.session.OpenFeed(ctx)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = env.session.ToggleLike(ctx, postID)
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		env.backend.mu.Lock()
		defer env.backend.mu.Unlock()
		return env.backend.likeCalls == 5
	}, waitFor, tick)
	env.backend.mu.Lock()
	assert.True(t, env.backend.likes[postID]["alice"])
	env.backend.mu.Unlock()
	n, liked := env.likes(t, postID)
	assert.Equal(t, 1, n)
	assert.True(t, liked)
}

func TestFeed_CreatePostConfirms(t *testing.T) {
	env := newTestEnv(t, Options{})
	seedPosts(env)
	ctx := context.Background()
	_, err := env.session.OpenFeed(ctx)
	require.NoError(t, err)

	snap, tempID, err := env.session.CreatePost(ctx, models.CreatePostRequest{ImageURL: "https://cdn.example.com/a.png"})
	require.NoError(t, err)
	require.Len(t, snap.Posts, 3)
	assert.Equal(t, tempID, snap.Posts[0].TempID)
	assert.True(t, snap.Posts[0].Pending)

	require.Eventually(t, func() bool {
		snap, err = env.session.Feed(ctx)
		return err == nil && len(snap.Posts) == 3 && !snap.Posts[0].Pending
	}, waitFor, tick)
	assert.NotEmpty(t, snap.Posts[0].ID)
	assert.Equal(t, "https://cdn.example.com/a.png", snap.Posts[0].ImageURL)
	require.NotNil(t, snap.Latest)
	assert.Equal(t, snap.Posts[0].ID, snap.Latest.ID)
}

func TestFeed_EmptyDraftRejected(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()
	_, err := env.session.OpenFeed(ctx)
	require.NoError(t, err)

	_, _, err = env.session.CreatePost(ctx, models.CreatePostRequest{})
	assert.ErrorIs(t, err, ErrInvalidDraft)
}

func TestFeed_PushedPostBecomesLatest(t *testing.T) {
	env := newTestEnv(t, Options{})
	seedPosts(env)
	ctx := context.Background()
	_, err := env.session.OpenFeed(ctx)
	require.NoError(t, err)

	id := primitive.NewObjectID().Hex()
	env.publish(t, realtime.TableFeedPosts, realtime.OpInsert, map[string]any{
		"id": id, "user_id": "bob", "content": "breaking", "likes_count": float64(0), "comments_count": float64(0),
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	})

	require.Eventually(t, func() bool {
		snap, err := env.session.Feed(ctx)
		return err == nil && snap.Latest != nil && snap.Latest.ID == id
	}, waitFor, tick)
}

func TestComments_ConfirmBumpsPostCounterOnce(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, newer := seedPosts(env)
	env.backend.sendID = "c-1"
	ctx := context.Background()
	postID := newer.ID.Hex()

	_, err := env.session.OpenFeed(ctx)
	require.NoError(t, err)
	_, err = env.session.OpenComments(ctx, postID)
	require.NoError(t, err)

	snap, _, err := env.session.AddComment(ctx, postID, "congrats!")
	require.NoError(t, err)
	require.Len(t, snap.Records, 1)
	assert.True(t, snap.Records[0].Pending)

	require.Eventually(t, func() bool {
		snap, err := env.session.Comments(ctx)
		return err == nil && len(snap.Records) == 1 && snap.Records[0].ID == "c-1"
	}, waitFor, tick)

	env.publish(t, realtime.TableFeedComments, realtime.OpInsert, map[string]any{
		"id": "c-1", "post_id": postID, "user_id": "alice", "content": "congrats!",
		"created_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	time.Sleep(20 * time.Millisecond)

	feed, err := env.session.Feed(ctx)
	require.NoError(t, err)
	p, ok := findPost(feed, postID)
	require.True(t, ok)
	assert.Equal(t, 1, p.CommentsCount)

	comments, err := env.session.Comments(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c-1"}, recordIDs(comments.Records))
}

func TestComments_OtherPostsIgnored(t *testing.T) {
	env := newTestEnv(t, Options{})
	ctx := context.Background()

	_, err := env.session.OpenComments(ctx, "p1")
	require.NoError(t, err)

	env.publish(t, realtime.TableFeedComments, realtime.OpInsert, map[string]any{
		"id": "x", "post_id": "p2", "user_id": "bob", "content": "elsewhere", "created_at": time.Now().UTC().Format(time.RFC3339Nano),
	})
	env.publish(t, realtime.TableFeedComments, realtime.OpInsert, map[string]any{
		"id": "y", "post_id": "p1", "user_id": "bob", "content": "here", "created_at": time.Now().UTC().Format(time.RFC3339Nano),
	})

	require.Eventually(t, func() bool {
		snap, err := env.session.Comments(ctx)
		return err == nil && len(snap.Records) == 1 && snap.Records[0].ID == "y"
	}, waitFor, tick)

	require.NoError(t, env.session.CloseComments(ctx))
	_, err = env.session.Comments(ctx)
	assert.ErrorIs(t, err, ErrScopeInactive)
}
