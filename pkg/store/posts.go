package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/altukhov/dialog/pkg/model"
)

// CreatePost inserts a post with its ordered images in one transaction.
func (s *Store) CreatePost(ctx context.Context, userID uuid.UUID, text string, imageKeys []string) (*model.Post, error) {
	post := &model.Post{UserID: userID, Text: text}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(post).Error; err != nil {
			return err
		}
		for i, key := range imageKeys {
			img := model.PostImage{PostID: post.ID, ImageKey: key, Position: i}
			if err := tx.Create(&img).Error; err != nil {
				return err
			}
			post.Images = append(post.Images, img)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// ListPosts pages a user's posts newest first, images/likes/comments
// preloaded for counting.
func (s *Store) ListPosts(ctx context.Context, userID uuid.UUID, limit int, cursor *time.Time) ([]model.Post, *time.Time, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	q := s.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Preload("Likes").
		Preload("Comments").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit + 1)
	if cursor != nil {
		q = q.Where("created_at < ?", *cursor)
	}

	var posts []model.Post
	if err := q.Find(&posts).Error; err != nil {
		return nil, nil, err
	}

	var next *time.Time
	if len(posts) > limit {
		posts = posts[:limit]
		last := posts[len(posts)-1].CreatedAt
		next = &last
	}
	return posts, next, nil
}

// PhotoFeed pages a user's post images by the owning post's creation time.
func (s *Store) PhotoFeed(ctx context.Context, userID uuid.UUID, limit int, cursor *time.Time) ([]model.PostImage, *time.Time, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	q := s.db.WithContext(ctx).
		Model(&model.PostImage{}).
		Select("post_images.*, posts.created_at AS post_created_at").
		Joins("JOIN posts ON posts.id = post_images.post_id").
		Where("posts.user_id = ?", userID).
		Order("posts.created_at DESC").
		Limit(limit + 1)
	if cursor != nil {
		q = q.Where("posts.created_at < ?", *cursor)
	}

	var rows []struct {
		model.PostImage
		PostCreatedAt time.Time
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, nil, err
	}

	var next *time.Time
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1].PostCreatedAt
		next = &last
	}
	images := make([]model.PostImage, len(rows))
	for i, r := range rows {
		images[i] = r.PostImage
	}
	return images, next, nil
}
