package repo

import (
	"context"

	"github.com/Skotchmaster/blog/internal/models"
)

func (r *GormRepo) findOne(ctx context.Context, column, value string) (*models.User, error) {
	var user models.User
	if err := r.DB.WithContext(ctx).Where(column+" = ?", value).First(&user).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (r *GormRepo) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.findOne(ctx, "username", username)
}

func (r *GormRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", email)
}

// FindByRefreshToken matches the stored token exactly. The empty string is the
// logged-out state and never matches.
func (r *GormRepo) FindByRefreshToken(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, "refresh_token", token)
}

func (r *GormRepo) exists(ctx context.Context, column, value string) (bool, error) {
	var count int64
	if err := r.DB.WithContext(ctx).Model(&models.User{}).
		Where(column+" = ?", value).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *GormRepo) UsernameTaken(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, "username", username)
}

func (r *GormRepo) EmailTaken(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, "email", email)
}

// Insert checks username first, then email. The unique indexes still decide
// when two inserts race past these checks.
func (r *GormRepo) Insert(ctx context.Context, u *models.User) error {
	taken, err := r.UsernameTaken(ctx, u.Username)
	if err != nil {
		return err
	}
	if taken {
		return ErrAlreadyExists
	}

	taken, err = r.EmailTaken(ctx, u.Email)
	if err != nil {
		return err
	}
	if taken {
		return ErrAlreadyExists
	}

	return translate(r.DB.WithContext(ctx).Create(u).Error)
}

func (r *GormRepo) Save(ctx context.Context, u *models.User) error {
	return translate(r.DB.WithContext(ctx).Save(u).Error)
}

func (r *GormRepo) SetRefreshToken(ctx context.Context, username, token string) error {
	res := r.DB.WithContext(ctx).Model(&models.User{}).
		Where("username = ?", username).
		Update("refresh_token", token)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormRepo) Remove(ctx context.Context, username string) (*models.PublicUser, error) {
	user, err := r.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	res := r.DB.WithContext(ctx).Delete(&models.User{}, user.ID)
	if res.Error != nil {
		return nil, translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}

	removed := user.Public()
	return &removed, nil
}

func (r *GormRepo) List(ctx context.Context) ([]models.PublicUser, error) {
	var users []models.User
	if err := r.DB.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}

	out := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out, nil
}

func (r *GormRepo) GetPublic(ctx context.Context, username string) (*models.PublicUser, error) {
	user, err := r.FindByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	pub := user.Public()
	return &pub, nil
}

func (r *GormRepo) RenamePosts(ctx context.Context, oldUsername, newUsername string) (int64, error) {
	res := r.DB.WithContext(ctx).Model(&models.Post{}).
		Where("author = ?", oldUsername).
		Update("author", newUsername)
	return res.RowsAffected, res.Error
}

func (r *GormRepo) DeletePosts(ctx context.Context, username string) (int64, error) {
	res := r.DB.WithContext(ctx).Where("author = ?", username).Delete(&models.Post{})
	return res.RowsAffected, res.Error
}
