package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sjnosa/connect/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	CreatePost(ctx context.Context, post *models.Post) error
	GetPostByID(ctx context.Context, id string) (*models.Post, error)
	GetAllPosts(ctx context.Context, skip, limit int64) ([]models.Post, error)
	IncrementLikesCount(ctx context.Context, postID string) error
	DecrementLikesCount(ctx context.Context, postID string) error
	IncrementCommentsCount(ctx context.Context, postID string) error
}

// MongoPostRepository implements PostRepository for MongoDB
type MongoPostRepository struct {
	collection *mongo.Collection
}

// NewMongoPostRepository creates a new MongoPostRepository
func NewMongoPostRepository(db *mongo.Database) *MongoPostRepository {
	return &MongoPostRepository{collection: db.Collection("feed_posts")}
}

// CreatePost creates a new post in MongoDB
func (r *MongoPostRepository) CreatePost(ctx context.Context, post *models.Post) error {
	post.ID = primitive.NewObjectID()
	post.CreatedAt = time.Now().UTC()
	post.LikesCount = 0
	post.CommentsCount = 0
	_, err := r.collection.InsertOne(ctx, post)
	return err
}

// GetPostByID retrieves a post by ID from MongoDB
func (r *MongoPostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid post ID format: %w", err)
	}

	var post models.Post
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&post)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrNotFound
		}
		return nil, err
	}
	return &post, nil
}

// GetAllPosts retrieves posts newest first with pagination
func (r *MongoPostRepository) GetAllPosts(ctx context.Context, skip, limit int64) ([]models.Post, error) {
	var posts []models.Post
	findOptions := options.Find().SetSkip(skip).SetLimit(limit).SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.D{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// IncrementLikesCount increments the likes count of a post
func (r *MongoPostRepository) IncrementLikesCount(ctx context.Context, postID string) error {
	return r.inc(ctx, postID, "likes_count", 1)
}

// DecrementLikesCount decrements the likes count of a post, never below zero
func (r *MongoPostRepository) DecrementLikesCount(ctx context.Context, postID string) error {
	return r.inc(ctx, postID, "likes_count", -1)
}

// IncrementCommentsCount increments the comments count of a post
func (r *MongoPostRepository) IncrementCommentsCount(ctx context.Context, postID string) error {
	return r.inc(ctx, postID, "comments_count", 1)
}

func (r *MongoPostRepository) inc(ctx context.Context, postID, field string, by int) error {
	objID, err := primitive.ObjectIDFromHex(postID)
	if err != nil {
		return fmt.Errorf("invalid post ID format: %w", err)
	}
	filter := bson.M{"_id": objID}
	if by < 0 {
		filter[field] = bson.M{"$gt": 0}
	}
	_, err = r.collection.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{field: by}})
	return err
}
