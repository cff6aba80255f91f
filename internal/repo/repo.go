package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/Skotchmaster/blog/internal/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
)

type UserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByRefreshToken(ctx context.Context, token string) (*models.User, error)
	UsernameTaken(ctx context.Context, username string) (bool, error)
	EmailTaken(ctx context.Context, email string) (bool, error)
	Insert(ctx context.Context, u *models.User) error
	Save(ctx context.Context, u *models.User) error
	SetRefreshToken(ctx context.Context, username, token string) error
	Remove(ctx context.Context, username string) (*models.PublicUser, error)
	List(ctx context.Context) ([]models.PublicUser, error)
	GetPublic(ctx context.Context, username string) (*models.PublicUser, error)
	RenamePosts(ctx context.Context, oldUsername, newUsername string) (int64, error)
	DeletePosts(ctx context.Context, username string) (int64, error)
}

type PostRepository interface {
	CreatePost(ctx context.Context, p *models.Post) error
	GetPost(ctx context.Context, id uint) (*models.Post, error)
	ListPosts(ctx context.Context) ([]models.Post, error)
	ListPostsByAuthor(ctx context.Context, author string) ([]models.Post, error)
	SavePost(ctx context.Context, p *models.Post) error
	DeletePost(ctx context.Context, id uint) (*models.Post, error)
}

type Repository interface {
	UserRepository
	PostRepository
	// Transaction runs fn against a repository bound to one database transaction.
	// Returning an error from fn rolls everything back.
	Transaction(ctx context.Context, fn func(tx Repository) error) error
}

type GormRepo struct {
	DB *gorm.DB
}

var _ Repository = (*GormRepo)(nil)

func New(db *gorm.DB) *GormRepo {
	return &GormRepo{DB: db}
}

func (r *GormRepo) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormRepo{DB: tx})
	})
}

const pqUniqueViolation = "23505"

// translate maps driver and gorm errors onto the package sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	}
	return err
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
		return true
	}
	// sqlite without error translation
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
