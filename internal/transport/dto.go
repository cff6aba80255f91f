package transport

import (
	validation "github.com/go-ozzo/ozzo-validation"
)

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r RegisterRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// UpdateUserRequest carries any subset of the account fields. Empty means
// unchanged.
type UpdateUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r UpdateUserRequest) Validate() error {
	return validation.Validate(r.Username+r.Email+r.Password,
		validation.Required.Error("one of username, email or password is required"),
	)
}

type PostRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (r PostRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Title, validation.Required),
		validation.Field(&r.Body, validation.Required),
	)
}

// ValidatePatch accepts any non-empty subset of title and body.
func (r PostRequest) ValidatePatch() error {
	return validation.Validate(r.Title+r.Body,
		validation.Required.Error("one of title or body is required"),
	)
}

type MessageResponse struct {
	Message string `json:"message"`
}
