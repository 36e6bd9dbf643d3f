package session

import (
	"context"

	"github.com/sjnosa/connect/internal/metrics"
	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/realtime"
)

// OpenComments makes postID's comment list the active one and returns it once loaded.
func (s *Session) OpenComments(ctx context.Context, postID string) (ThreadSnapshot, error) {
	scope := models.CommentsScope(postID)
	filter := realtime.Filter{Table: realtime.TableFeedComments, Op: realtime.OpInsert, Column: "post_id", Value: postID}

	var ready <-chan struct{}
	var err error
	if e := s.do(ctx, func() {
		ready, err = s.activate(s.comments, []binding{{scope: scope, filter: filter}},
			func(ctx context.Context) ([]models.Record, error) {
				comments, err := s.backend.ListComments(ctx, postID)
				if err != nil {
					return nil, err
				}
				out := make([]models.Record, len(comments))
				for i := range comments {
					out[i] = comments[i].ToRecord()
				}
				return out, nil
			})
	}); e != nil {
		return ThreadSnapshot{}, e
	}
	if err != nil {
		return ThreadSnapshot{}, err
	}
	if err := s.wait(ctx, ready); err != nil {
		return ThreadSnapshot{}, err
	}
	return s.Comments(ctx)
}

// Comments returns the active comment list.
func (s *Session) Comments(ctx context.Context) (ThreadSnapshot, error) {
	var snap ThreadSnapshot
	var err error
	if e := s.do(ctx, func() {
		if !s.comments.active {
			err = ErrScopeInactive
			return
		}
		snap = s.threadSnapshot(s.comments)
	}); e != nil {
		return ThreadSnapshot{}, e
	}
	return snap, err
}

// CloseComments leaves the active comment list.
func (s *Session) CloseComments(ctx context.Context) error {
	return s.close(ctx, s.comments)
}

// AddComment shows the comment under postID right away and writes it in the background.
// Once confirmed, the post's comment counter in the feed goes up by one.
func (s *Session) AddComment(ctx context.Context, postID, content string) (ThreadSnapshot, string, error) {
	if err := s.validate(models.CreateCommentRequest{Content: content}); err != nil {
		return ThreadSnapshot{}, "", err
	}
	scope := models.CommentsScope(postID)
	v := s.comments

	var snap ThreadSnapshot
	var tempID string
	var err error
	if e := s.do(ctx, func() {
		if !v.active || v.scope != scope {
			err = ErrScopeInactive
			return
		}
		tempID = s.tracker.Apply(scope, models.Record{AuthorID: s.userID, Content: content, CreatedAt: s.opts.Now()})
		metrics.OptimisticWrites.WithLabelValues(string(v.kind), "applied").Inc()

		comment := &models.Comment{PostID: postID, UserID: s.userID, Content: content}
		gen := v.gen
		go func() {
			werr := s.backend.CreateComment(s.ctx, comment)
			s.post(func() { s.settle(v, gen, tempID, comment.ToRecord(), werr) })
		}()
		snap = s.threadSnapshot(v)
	}); e != nil {
		return ThreadSnapshot{}, "", e
	}
	return snap, tempID, err
}
