package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sjnosa/connect/internal/models"
	"github.com/sjnosa/connect/internal/realtime"
	"github.com/sjnosa/connect/internal/session"
)

var _ session.Backend = (*Store)(nil)

// Store is the storage backend of a session: profiles, messages, comments, likes and
// events in PostgreSQL, feed posts in MongoDB. When a publisher is set, every successful
// write is also published as a change so open subscriptions see it.
type Store struct {
	Profiles ProfileRepository
	Messages MessageRepository
	Posts    PostRepository
	Comments CommentRepository
	Likes    LikeRepository
	Events   EventRepository

	publisher realtime.Publisher
	logger    *slog.Logger
}

// NewStore creates a Store. publisher may be nil when changes are pushed by the database itself.
func NewStore(profiles ProfileRepository, messages MessageRepository, posts PostRepository,
	comments CommentRepository, likes LikeRepository, events EventRepository,
	publisher realtime.Publisher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		Profiles:  profiles,
		Messages:  messages,
		Posts:     posts,
		Comments:  comments,
		Likes:     likes,
		Events:    events,
		publisher: publisher,
		logger:    logger.With("component", "store"),
	}
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	return s.Profiles.GetProfileByID(ctx, userID)
}

func (s *Store) ListProfiles(ctx context.Context, excludeID string) ([]models.Profile, error) {
	return s.Profiles.GetProfiles(ctx, excludeID)
}

func (s *Store) ListMessages(ctx context.Context, userA, userB string) ([]models.Message, error) {
	return s.Messages.GetConversation(ctx, userA, userB, 0)
}

func (s *Store) SendMessage(ctx context.Context, msg *models.Message) error {
	if err := s.Messages.CreateMessage(ctx, msg); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	s.publish(realtime.TableMessages, realtime.OpInsert, map[string]any{
		"id":          msg.ID,
		"sender_id":   msg.SenderID,
		"receiver_id": msg.ReceiverID,
		"content":     msg.Content,
		"created_at":  msg.CreatedAt,
	})
	return nil
}

func (s *Store) ListPosts(ctx context.Context, limit int64) ([]models.Post, error) {
	return s.Posts.GetAllPosts(ctx, 0, limit)
}

func (s *Store) GetPost(ctx context.Context, postID string) (*models.Post, error) {
	return s.Posts.GetPostByID(ctx, postID)
}

func (s *Store) CreatePost(ctx context.Context, post *models.Post) error {
	if err := s.Posts.CreatePost(ctx, post); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	s.publish(realtime.TableFeedPosts, realtime.OpInsert, map[string]any{
		"id":             post.ID.Hex(),
		"user_id":        post.UserID,
		"content":        post.Content,
		"image_url":      post.ImageURL,
		"likes_count":    post.LikesCount,
		"comments_count": post.CommentsCount,
		"created_at":     post.CreatedAt,
	})
	return nil
}

func (s *Store) LikedPostIDs(ctx context.Context, userID string) ([]string, error) {
	return s.Likes.GetLikedPostIDs(ctx, userID)
}

func (s *Store) HasLikedPost(ctx context.Context, postID, userID string) (bool, error) {
	return s.Likes.HasUserLikedPost(ctx, postID, userID)
}

// LikePost records the like and bumps the post's counter. Liking twice is a no-op.
func (s *Store) LikePost(ctx context.Context, postID, userID string) error {
	like := &models.Like{PostID: postID, UserID: userID}
	created, err := s.Likes.CreateLike(ctx, like)
	if err != nil {
		return fmt.Errorf("create like: %w", err)
	}
	if !created {
		return nil
	}
	if err := s.Posts.IncrementLikesCount(ctx, postID); err != nil {
		return fmt.Errorf("increment likes: %w", err)
	}
	s.publish(realtime.TableFeedLikes, realtime.OpInsert, map[string]any{
		"post_id":    postID,
		"user_id":    userID,
		"created_at": like.CreatedAt,
	})
	return nil
}

// UnlikePost removes the like and lowers the post's counter. Unliking twice is a no-op.
func (s *Store) UnlikePost(ctx context.Context, postID, userID string) error {
	deleted, err := s.Likes.DeleteLike(ctx, postID, userID)
	if err != nil {
		return fmt.Errorf("delete like: %w", err)
	}
	if !deleted {
		return nil
	}
	if err := s.Posts.DecrementLikesCount(ctx, postID); err != nil {
		return fmt.Errorf("decrement likes: %w", err)
	}
	s.publish(realtime.TableFeedLikes, realtime.OpDelete, map[string]any{
		"post_id":    postID,
		"user_id":    userID,
		"created_at": time.Now().UTC(),
	})
	return nil
}

func (s *Store) ListComments(ctx context.Context, postID string) ([]models.Comment, error) {
	return s.Comments.GetCommentsByPostID(ctx, postID)
}

func (s *Store) CreateComment(ctx context.Context, comment *models.Comment) error {
	if err := s.Comments.CreateComment(ctx, comment); err != nil {
		return fmt.Errorf("create comment: %w", err)
	}
	if err := s.Posts.IncrementCommentsCount(ctx, comment.PostID); err != nil {
		s.logger.Warn("comment counter not updated", "post_id", comment.PostID, "error", err)
	}
	s.publish(realtime.TableFeedComments, realtime.OpInsert, map[string]any{
		"id":         comment.ID,
		"post_id":    comment.PostID,
		"user_id":    comment.UserID,
		"content":    comment.Content,
		"created_at": comment.CreatedAt,
	})
	return nil
}

// NextEvent returns the first event on or after after, or models.ErrNotFound.
func (s *Store) NextEvent(ctx context.Context, after time.Time) (*models.SchoolEvent, error) {
	events, err := s.Events.GetUpcoming(ctx, after, 1)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, models.ErrNotFound
	}
	return &events[0], nil
}

// CreateEvent adds a school event to the calendar.
func (s *Store) CreateEvent(ctx context.Context, event *models.SchoolEvent) error {
	if err := s.Events.CreateEvent(ctx, event); err != nil {
		return fmt.Errorf("create event: %w", err)
	}
	row := map[string]any{
		"id":         event.ID,
		"title":      event.Title,
		"event_date": event.EventDate,
		"created_at": event.CreatedAt,
	}
	if event.CreatedBy != nil {
		row["created_by"] = *event.CreatedBy
	}
	s.publish(realtime.TableSchoolEvents, realtime.OpInsert, row)
	return nil
}

func (s *Store) publish(table realtime.Table, op realtime.Op, row map[string]any) {
	if s.publisher == nil {
		return
	}
	c, err := realtime.NewChange(table, op, row)
	if err != nil {
		s.logger.Error("cannot publish change", "table", string(table), "error", err)
		return
	}
	c.CommitTimestamp = time.Now().UTC()
	s.publisher.Publish(c)
}
