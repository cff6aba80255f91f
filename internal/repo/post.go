package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/Skotchmaster/blog/internal/models"
)

// CreatePost stores p and bumps the author's post counter in one transaction.
// A missing author yields ErrNotFound and nothing is written.
func (r *GormRepo) CreatePost(ctx context.Context, p *models.Post) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("username = ?", p.Author).
			Update("post_count", gorm.Expr("post_count + 1"))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return translate(tx.Create(p).Error)
	})
}

func (r *GormRepo) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := r.DB.WithContext(ctx).First(&post, id).Error; err != nil {
		return nil, translate(err)
	}
	return &post, nil
}

func (r *GormRepo) ListPosts(ctx context.Context) ([]models.Post, error) {
	var posts []models.Post
	if err := r.DB.WithContext(ctx).Order("id ASC").Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *GormRepo) ListPostsByAuthor(ctx context.Context, author string) ([]models.Post, error) {
	var posts []models.Post
	if err := r.DB.WithContext(ctx).Where("author = ?", author).Order("id ASC").Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func (r *GormRepo) SavePost(ctx context.Context, p *models.Post) error {
	return translate(r.DB.WithContext(ctx).Save(p).Error)
}

func (r *GormRepo) DeletePost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&post, id).Error; err != nil {
			return translate(err)
		}

		res := tx.Delete(&models.Post{}, post.ID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}

		return tx.Model(&models.User{}).
			Where("username = ? AND post_count > 0", post.Author).
			Update("post_count", gorm.Expr("post_count - 1")).Error
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}
