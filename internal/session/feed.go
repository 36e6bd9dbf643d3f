package session

import (
	"context"
	"fmt"
	"slices"

	"github.com/sjnosa/connect/internal/metrics"
	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/optimistic"
	"github.com/sjnosa/connect/internal/realtime"
	"github.com/sjnosa/connect/internal/reconcile"
)

var (
	postsFilter = realtime.Filter{Table: realtime.TableFeedPosts, Op: realtime.OpInsert}
	likesFilter = realtime.Filter{Table: realtime.TableFeedLikes, Op: realtime.OpAll}
)

func (s *Session) loadFeed(ctx context.Context) ([]models.Record, error) {
	posts, err := s.backend.ListPosts(ctx, s.opts.FeedLimit)
	if err != nil {
		return nil, err
	}
	liked, err := s.backend.LikedPostIDs(ctx, s.userID)
	if err != nil {
		return nil, err
	}
	likedSet := make(map[string]struct{}, len(liked))
	for _, id := range liked {
		likedSet[id] = struct{}{}
	}
	out := make([]models.Record, len(posts))
	for i := range posts {
		out[i] = posts[i].ToRecord()
		_, out[i].LikedByMe = likedSet[out[i].ID]
	}
	return out, nil
}

// OpenFeed activates the feed and returns it once loaded.
func (s *Session) OpenFeed(ctx context.Context) (FeedSnapshot, error) {
	var ready <-chan struct{}
	var err error
	if e := s.do(ctx, func() {
		ready, err = s.activate(s.feed, []binding{
			{scope: models.FeedScope(), filter: postsFilter},
			{scope: models.ReactionsScope(), filter: likesFilter},
		}, s.loadFeed)
	}); e != nil {
		return FeedSnapshot{}, e
	}
	if err != nil {
		return FeedSnapshot{}, err
	}
	if err := s.wait(ctx, ready); err != nil {
		return FeedSnapshot{}, err
	}
	return s.Feed(ctx)
}

// Feed returns the active feed.
func (s *Session) Feed(ctx context.Context) (FeedSnapshot, error) {
	var snap FeedSnapshot
	var err error
	if e := s.do(ctx, func() {
		if !s.feed.active {
			err = ErrScopeInactive
			return
		}
		snap = s.feedSnapshot()
	}); e != nil {
		return FeedSnapshot{}, e
	}
	return snap, err
}

// RefreshFeed re-reads posts and like state.
func (s *Session) RefreshFeed(ctx context.Context) (FeedSnapshot, error) {
	if err := s.refresh(ctx, s.feed); err != nil {
		return FeedSnapshot{}, err
	}
	return s.Feed(ctx)
}

// CloseFeed deactivates the feed.
func (s *Session) CloseFeed(ctx context.Context) error {
	return s.close(ctx, s.feed)
}

// CreatePost shows the draft at the top of the feed and writes it in the background.
func (s *Session) CreatePost(ctx context.Context, req models.CreatePostRequest) (FeedSnapshot, string, error) {
	if err := s.validate(req); err != nil {
		return FeedSnapshot{}, "", err
	}
	v := s.feed

	var snap FeedSnapshot
	var tempID string
	var err error
	if e := s.do(ctx, func() {
		if !v.active {
			err = ErrScopeInactive
			return
		}
		tempID = s.tracker.Apply(v.scope, models.Record{
			AuthorID:  s.userID,
			Content:   req.Content,
			ImageURL:  req.ImageURL,
			CreatedAt: s.opts.Now(),
		})
		metrics.OptimisticWrites.WithLabelValues(string(v.kind), "applied").Inc()

		post := &models.Post{UserID: s.userID, Content: req.Content, ImageURL: req.ImageURL}
		gen := v.gen
		go func() {
			werr := s.backend.CreatePost(s.ctx, post)
			s.post(func() { s.settle(v, gen, tempID, post.ToRecord(), werr) })
		}()
		snap = s.feedSnapshot()
	}); e != nil {
		return FeedSnapshot{}, "", e
	}
	return snap, tempID, err
}

// ToggleLike flips the user's like on postID immediately and writes it in the background.
// Writes for one post go out in the order of the toggles. A failed write keeps the local
// state unless reaction rollback is enabled.
func (s *Session) ToggleLike(ctx context.Context, postID string) (models.ReactionResponse, error) {
	var resp models.ReactionResponse
	if err := s.do(ctx, func() {
		count, liked := s.reactions.Toggle(postID, s.userID)
		resp = models.ReactionResponse{PostID: postID, LikesCount: count, LikedByMe: liked}

		s.ownEchoes[postID]++
		s.likeWrites[postID] = append(s.likeWrites[postID], liked)
		if len(s.likeWrites[postID]) == 1 {
			s.writeReaction(postID, liked)
		}
	}); err != nil {
		return models.ReactionResponse{}, err
	}
	return resp, nil
}

func (s *Session) writeReaction(postID string, liked bool) {
	go func() {
		var werr error
		if liked {
			werr = s.backend.LikePost(s.ctx, postID, s.userID)
		} else {
			werr = s.backend.UnlikePost(s.ctx, postID, s.userID)
		}
		s.post(func() { s.reactionWritten(postID, liked, werr) })
	}()
}

// reactionWritten pops the finished write and sends the next one queued for postID.
func (s *Session) reactionWritten(postID string, liked bool, werr error) {
	queue := s.likeWrites[postID][1:]
	if len(queue) == 0 {
		delete(s.likeWrites, postID)
	} else {
		s.likeWrites[postID] = queue
	}
	if werr != nil {
		// a failed write has no echo to wait for
		s.consumeEcho(postID)
		s.reactionFailed(postID, liked, werr)
	}
	if len(queue) > 0 {
		s.writeReaction(postID, queue[0])
		return
	}
	if r := s.resyncs[postID]; r != nil && r.again && !r.running {
		s.startResync(postID)
	}
}

func (s *Session) reactionFailed(postID string, liked bool, werr error) {
	metrics.ReactionFailures.Inc()
	s.logger.Warn("reaction write failed", "post_id", postID, "liked", liked, "rollback", s.opts.RollbackReactions, "error", werr)
	if s.opts.RollbackReactions {
		s.reactions.Set(postID, s.userID, !liked)
	}
	if s.feed.active {
		s.feed.err = newViewError("", fmt.Errorf("%w: %w", ErrReactionWriteFailed, werr))
	}
}

func (s *Session) consumeEcho(postID string) {
	if s.ownEchoes[postID] > 1 {
		s.ownEchoes[postID]--
		return
	}
	delete(s.ownEchoes, postID)
}

// applyRemoteReaction folds a pushed like or unlike into the counts. Echoes of the user's
// own writes are consumed without touching local state, which already reflects them.
func (s *Session) applyRemoteReaction(c realtime.Change) {
	postID, actor := c.Record.ID, c.Record.AuthorID
	if actor == s.userID && s.ownEchoes[postID] > 0 {
		s.consumeEcho(postID)
		metrics.EchoesSuppressed.WithLabelValues(string(models.ScopeReactions)).Inc()
		return
	}
	_, res := s.reactions.ApplyRemote(postID, actor, c.Op != realtime.OpDelete)
	switch res {
	case optimistic.RemoteDuplicate:
		metrics.EchoesSuppressed.WithLabelValues(string(models.ScopeReactions)).Inc()
	case optimistic.RemoteUnknown:
		s.requestResync(postID)
	case optimistic.RemoteApplied:
		if r := s.resyncs[postID]; r != nil {
			r.again = true
		}
	}
}

// resync tracks a re-read of one post's like count.
type resync struct {
	running bool
	again   bool
}

// requestResync re-reads postID's count and the user's like state. While a read or one
// of the user's writes is in flight the request is folded into a later read.
func (s *Session) requestResync(postID string) {
	if !s.feed.active {
		return
	}
	r := s.resyncs[postID]
	if r == nil {
		r = &resync{}
		s.resyncs[postID] = r
	}
	if r.running || len(s.likeWrites[postID]) > 0 {
		r.again = true
		return
	}
	s.startResync(postID)
}

func (s *Session) startResync(postID string) {
	r := s.resyncs[postID]
	r.running, r.again = true, false
	gen := s.feed.gen
	go func() {
		post, err := s.backend.GetPost(s.ctx, postID)
		var liked bool
		if err == nil {
			liked, err = s.backend.HasLikedPost(s.ctx, postID, s.userID)
		}
		s.post(func() { s.resynced(postID, gen, post, liked, err) })
	}()
}

func (s *Session) resynced(postID string, gen uint64, post *models.Post, liked bool, err error) {
	r := s.resyncs[postID]
	if r == nil {
		return
	}
	r.running = false
	if !s.feed.current(gen) {
		delete(s.resyncs, postID)
		metrics.StaleResults.WithLabelValues(string(models.ScopeFeed)).Inc()
		return
	}
	if err != nil {
		delete(s.resyncs, postID)
		s.logger.Warn("like count re-read failed", "post_id", postID, "error", err)
		return
	}
	if len(s.likeWrites[postID]) > 0 {
		// the read may predate the write; reactionWritten asks again
		r.again = true
		return
	}
	if r.again {
		s.startResync(postID)
		return
	}
	delete(s.resyncs, postID)
	if s.ownEchoes[postID] > 0 {
		s.reactions.Resync(postID, post.LikesCount)
		return
	}
	s.reactions.Seed(postID, post.LikesCount, s.userID, liked)
}

func (s *Session) seedReactions(records []models.Record) {
	for _, r := range records {
		if len(s.likeWrites[r.ID]) > 0 {
			continue
		}
		s.reactions.Seed(r.ID, r.LikesCount, s.userID, r.LikedByMe)
	}
}

// forgetReactions drops the like state of posts leaving the feed. Writes still queued for
// a post keep their echo accounting.
func (s *Session) forgetReactions(records []models.Record) {
	clear(s.resyncs)
	for _, r := range records {
		if len(s.likeWrites[r.ID]) > 0 {
			continue
		}
		delete(s.ownEchoes, r.ID)
		s.reactions.Forget(r.ID)
	}
}

// bumpCommentCount adds one to the comment counter of a loaded post.
func (s *Session) bumpCommentCount(postID string) {
	if rec, ok := s.feed.find(postID); ok {
		rec.CommentsCount++
	}
}

func (s *Session) feedSnapshot() FeedSnapshot {
	v := s.feed
	snap := FeedSnapshot{Error: v.err}
	snap.State, snap.Stale = v.stale()

	merged := reconcile.Merge(v.records, s.tracker.Pending(v.scope), reconcile.Options{
		Scope:      v.scope,
		EchoWindow: s.opts.EchoWindow,
		Promoted:   s.tracker.Promoted(v.scope),
	})
	for i := range merged {
		if merged[i].Pending {
			continue
		}
		merged[i].LikesCount = s.reactions.Count(merged[i].ID)
		merged[i].LikedByMe = s.reactions.Liked(merged[i].ID, s.userID)
	}
	if latest, ok := reconcile.Latest(v.records); ok {
		latest.LikesCount = s.reactions.Count(latest.ID)
		latest.LikedByMe = s.reactions.Liked(latest.ID, s.userID)
		snap.Latest = &latest
	}
	slices.Reverse(merged)
	snap.Posts = merged
	return snap
}
