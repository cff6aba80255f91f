package models

import (
	"time"
)

type User struct {
	ID           uint      `gorm:"primaryKey;autoIncrement"  json:"-"`
	Username     string    `gorm:"uniqueIndex;not null"      json:"username"`
	Email        string    `gorm:"uniqueIndex;not null"      json:"email"`
	PasswordHash string    `gorm:"not null"                  json:"-"`
	PostCount    int64     `gorm:"not null;default:0"        json:"postCount"`
	RefreshToken string    `gorm:"index"                     json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// PublicUser is the only account shape that may leave the repository.
type PublicUser struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	PostCount int64  `json:"postCount"`
}

func (u User) Public() PublicUser {
	return PublicUser{
		Username:  u.Username,
		Email:     u.Email,
		PostCount: u.PostCount,
	}
}

type Post struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"  json:"id"`
	Author    string    `gorm:"index;not null"            json:"author"`
	Title     string    `gorm:"not null"                  json:"title"`
	Body      string    `gorm:"not null"                  json:"body"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
