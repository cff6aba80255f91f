package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Skotchmaster/blog/internal/events"
	"github.com/Skotchmaster/blog/internal/hash"
	"github.com/Skotchmaster/blog/internal/logging"
	"github.com/Skotchmaster/blog/internal/models"
	"github.com/Skotchmaster/blog/internal/repo"
	"github.com/Skotchmaster/blog/internal/search"
	"github.com/Skotchmaster/blog/internal/tokens"
	"github.com/Skotchmaster/blog/internal/transport"
)

const (
	msgMissingUserData = "Missing user data"
	msgNoUser          = "No user found"
	msgNoUsers         = "No users found"
	msgUserExists      = "User already exists"
	msgUsernameExists  = "Username already exists"
	msgEmailExists     = "Email already exists"
	msgInvalidPassword = "Invalid password"
	msgNotLoggedIn     = "No logged in user"
	msgMissingRefresh  = "Missing refresh token"
	msgInvalidToken    = "Invalid token"
	msgCreateUserError = "Error creating user"
	msgLoginError      = "Login error"
	msgLogoutError     = "Error logging out"
	msgRefreshError    = "Error refreshing token"
	msgGetUsersError   = "Error getting users"
	msgGetUserError    = "Error getting user"
	msgUpdateUserError = "Error updating user"
	msgDeleteUserError = "Error deleting user"
	LogoutConfirmation = "Logged out successfully"
)

type UserService struct {
	Repo   repo.Repository
	Hasher hash.Hasher
	Tokens *tokens.Service
	Events events.Publisher
	Index  *search.Index
}

func identityOf(u *models.User) tokens.Identity {
	return tokens.Identity{
		Username:  u.Username,
		Email:     u.Email,
		PostCount: u.PostCount,
	}
}

// fail logs the outcome and builds the returned *Error.
func fail(l *slog.Logger, event string, kind error, message string, cause error) error {
	args := []any{"kind", kindLabel(kind), "reason", message}
	if cause != nil {
		args = append(args, "error", cause)
	}
	if kind == ErrInternal {
		l.Error(event, args...)
	} else {
		l.Warn(event, args...)
	}
	return newError(kind, message, cause)
}

func (s *UserService) Register(ctx context.Context, in transport.RegisterRequest) (tokens.Pair, error) {
	l := logging.FromContext(ctx).With("svc", "users.register", "username", in.Username)

	if err := in.Validate(); err != nil {
		return tokens.Pair{}, fail(l, "register_failed", ErrMissingData, msgMissingUserData, err)
	}

	taken, err := s.Repo.UsernameTaken(ctx, in.Username)
	if err != nil {
		return tokens.Pair{}, fail(l, "register_failed", ErrInternal, msgCreateUserError, err)
	}
	if taken {
		return tokens.Pair{}, fail(l, "register_failed", ErrConflict, msgUserExists, nil)
	}

	taken, err = s.Repo.EmailTaken(ctx, in.Email)
	if err != nil {
		return tokens.Pair{}, fail(l, "register_failed", ErrInternal, msgCreateUserError, err)
	}
	if taken {
		return tokens.Pair{}, fail(l, "register_failed", ErrConflict, msgUserExists, nil)
	}

	pair, err := s.Tokens.IssuePair(tokens.Identity{Username: in.Username, Email: in.Email, PostCount: 0})
	if err != nil {
		return tokens.Pair{}, fail(l, "register_failed", ErrInternal, msgCreateUserError, err)
	}

	digest, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return tokens.Pair{}, fail(l, "register_failed", ErrInternal, msgCreateUserError, err)
	}

	user := &models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: digest,
		PostCount:    0,
		RefreshToken: pair.RefreshToken,
	}
	if err := s.Repo.Insert(ctx, user); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			return tokens.Pair{}, fail(l, "register_failed", ErrConflict, msgUserExists, err)
		}
		return tokens.Pair{}, fail(l, "register_failed", ErrInternal, msgCreateUserError, err)
	}

	l.Info("user_registered")
	events.Emit(ctx, s.Events, events.TopicUsers, events.Event{Type: events.UserRegistered, Username: user.Username})
	return pair, nil
}

// Login rotates the stored refresh token: any token issued before stops
// matching.
func (s *UserService) Login(ctx context.Context, in transport.LoginRequest) (tokens.Pair, error) {
	l := logging.FromContext(ctx).With("svc", "users.login")

	if err := in.Validate(); err != nil {
		return tokens.Pair{}, fail(l, "login_failed", ErrMissingData, msgMissingUserData, err)
	}

	user, err := s.Repo.FindByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return tokens.Pair{}, fail(l, "login_failed", ErrNotFound, msgNoUser, nil)
		}
		return tokens.Pair{}, fail(l, "login_failed", ErrInternal, msgLoginError, err)
	}
	l = l.With("username", user.Username)

	if !s.Hasher.Verify(in.Password, user.PasswordHash) {
		return tokens.Pair{}, fail(l, "login_failed", ErrInvalidCredential, msgInvalidPassword, nil)
	}

	pair, err := s.Tokens.IssuePair(identityOf(user))
	if err != nil {
		return tokens.Pair{}, fail(l, "login_failed", ErrInternal, msgLoginError, err)
	}

	if err := s.Repo.SetRefreshToken(ctx, user.Username, pair.RefreshToken); err != nil {
		return tokens.Pair{}, fail(l, "login_failed", ErrInternal, msgLoginError, err)
	}

	l.Info("login_successful")
	events.Emit(ctx, s.Events, events.TopicUsers, events.Event{Type: events.UserLoggedIn, Username: user.Username})
	return pair, nil
}

func (s *UserService) Logout(ctx context.Context, id *tokens.Claims) error {
	l := logging.FromContext(ctx).With("svc", "users.logout")

	if id == nil {
		return fail(l, "logout_failed", ErrUnauthenticated, msgNotLoggedIn, nil)
	}
	l = l.With("username", id.Username)

	// a verified identity without an account is an inconsistent state
	if _, err := caller(ctx, s.Repo, id); err != nil {
		return callerFailure(l, "logout_failed", err, ErrInternal, msgLogoutError)
	}
	if err := s.Repo.SetRefreshToken(ctx, id.Username, ""); err != nil {
		return fail(l, "logout_failed", ErrInternal, msgLogoutError, err)
	}

	l.Info("successful_logout")
	return nil
}

// Refresh exchanges a refresh token for a new access token. The refresh
// token must be the one currently stored on the account and is returned
// unchanged.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (tokens.Pair, error) {
	l := logging.FromContext(ctx).With("svc", "users.refresh")

	if refreshToken == "" {
		return tokens.Pair{}, fail(l, "refresh_failed", ErrMissingData, msgMissingRefresh, nil)
	}

	if _, err := s.Tokens.VerifyRefresh(refreshToken); err != nil {
		return tokens.Pair{}, fail(l, "refresh_failed", ErrUnauthenticated, msgInvalidToken, err)
	}

	user, err := s.Repo.FindByRefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return tokens.Pair{}, fail(l, "refresh_failed", ErrNotFound, msgNoUser, nil)
		}
		return tokens.Pair{}, fail(l, "refresh_failed", ErrInternal, msgRefreshError, err)
	}

	access, err := s.Tokens.IssueAccess(identityOf(user))
	if err != nil {
		return tokens.Pair{}, fail(l, "refresh_failed", ErrInternal, msgRefreshError, err)
	}

	l.Info("token_refreshed", "username", user.Username)
	return tokens.Pair{AccessToken: access, RefreshToken: refreshToken}, nil
}

func (s *UserService) List(ctx context.Context) ([]models.PublicUser, error) {
	l := logging.FromContext(ctx).With("svc", "users.list")

	users, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fail(l, "list_users_failed", ErrInternal, msgGetUsersError, err)
	}
	if len(users) == 0 {
		return nil, fail(l, "list_users_failed", ErrNotFound, msgNoUsers, nil)
	}
	return users, nil
}

func (s *UserService) Get(ctx context.Context, username string) (*models.PublicUser, error) {
	l := logging.FromContext(ctx).With("svc", "users.get", "username", username)

	if username == "" {
		return nil, fail(l, "get_user_failed", ErrMissingData, msgMissingUserData, nil)
	}

	user, err := s.Repo.GetPublic(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fail(l, "get_user_failed", ErrNotFound, msgNoUser, nil)
		}
		return nil, fail(l, "get_user_failed", ErrInternal, msgGetUserError, err)
	}
	return user, nil
}

// Update applies any subset of username, email and password to the caller's
// account. Post re-attribution, the account changes and the rotated refresh
// token commit together or not at all.
func (s *UserService) Update(ctx context.Context, id *tokens.Claims, in transport.UpdateUserRequest) (tokens.Pair, error) {
	l := logging.FromContext(ctx).With("svc", "users.update")

	if id == nil {
		return tokens.Pair{}, fail(l, "update_failed", ErrUnauthenticated, msgNotLoggedIn, nil)
	}
	l = l.With("username", id.Username)

	if err := in.Validate(); err != nil {
		return tokens.Pair{}, fail(l, "update_failed", ErrMissingData, msgMissingUserData, err)
	}

	var (
		pair        tokens.Pair
		oldUsername = id.Username
		renamed     bool
	)
	err := s.Repo.Transaction(ctx, func(tx repo.Repository) error {
		user, err := caller(ctx, tx, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return newError(ErrNotFound, msgNoUser, nil)
			}
			return err
		}

		if in.Username != "" && in.Username != user.Username {
			taken, err := tx.UsernameTaken(ctx, in.Username)
			if err != nil {
				return err
			}
			if taken {
				return newError(ErrConflict, msgUsernameExists, nil)
			}
			if _, err := tx.RenamePosts(ctx, user.Username, in.Username); err != nil {
				return err
			}
			user.Username = in.Username
			renamed = true
		}

		if in.Email != "" && in.Email != user.Email {
			taken, err := tx.EmailTaken(ctx, in.Email)
			if err != nil {
				return err
			}
			if taken {
				return newError(ErrConflict, msgEmailExists, nil)
			}
			user.Email = in.Email
		}

		if in.Password != "" {
			digest, err := s.Hasher.Hash(in.Password)
			if err != nil {
				return err
			}
			user.PasswordHash = digest
		}

		pair, err = s.Tokens.IssuePair(identityOf(user))
		if err != nil {
			return err
		}
		user.RefreshToken = pair.RefreshToken

		if err := tx.Save(ctx, user); err != nil {
			if errors.Is(err, repo.ErrAlreadyExists) {
				return newError(ErrConflict, msgUserExists, err)
			}
			return err
		}
		return nil
	})
	if err != nil {
		var se *Error
		if errors.As(err, &se) {
			return tokens.Pair{}, fail(l, "update_failed", se.Kind, se.Message, se.Err)
		}
		return tokens.Pair{}, fail(l, "update_failed", ErrInternal, msgUpdateUserError, err)
	}

	l.Info("user_updated", "renamed", renamed)
	if renamed {
		syncIndex(ctx, "rename_author", s.Index.RenameAuthor(ctx, oldUsername, in.Username))
	}
	ev := events.Event{Type: events.UserUpdated, Username: oldUsername}
	if renamed {
		ev.Username, ev.OldUsername = in.Username, oldUsername
	}
	events.Emit(ctx, s.Events, events.TopicUsers, ev)
	return pair, nil
}

// Delete removes the caller's account and every post it authored.
func (s *UserService) Delete(ctx context.Context, id *tokens.Claims) (*models.PublicUser, error) {
	l := logging.FromContext(ctx).With("svc", "users.delete")

	if id == nil {
		return nil, fail(l, "delete_failed", ErrUnauthenticated, msgNotLoggedIn, nil)
	}
	l = l.With("username", id.Username)

	var (
		removed *models.PublicUser
		posts   int64
	)
	err := s.Repo.Transaction(ctx, func(tx repo.Repository) error {
		if _, err := caller(ctx, tx, id); err != nil {
			return err
		}
		var err error
		removed, err = tx.Remove(ctx, id.Username)
		if err != nil {
			return err
		}
		posts, err = tx.DeletePosts(ctx, removed.Username)
		return err
	})
	if err != nil {
		return nil, callerFailure(l, "delete_failed", err, ErrInternal, msgDeleteUserError)
	}

	l.Info("user_deleted", "posts_deleted", posts)
	syncIndex(ctx, "delete_author", s.Index.DeleteByAuthor(ctx, removed.Username))
	events.Emit(ctx, s.Events, events.TopicUsers, events.Event{Type: events.UserDeleted, Username: removed.Username})
	return removed, nil
}

// caller loads the account the claims were issued for. Usernames can be
// released by a rename and registered again, so the email must match too.
func caller(ctx context.Context, r repo.UserRepository, id *tokens.Claims) (*models.User, error) {
	user, err := r.FindByUsername(ctx, id.Username)
	if err != nil {
		return nil, err
	}
	if user.Email != id.Email {
		return nil, newError(ErrUnauthenticated, msgInvalidToken, nil)
	}
	return user, nil
}

// callerFailure keeps an *Error as is and reports anything else as kind.
func callerFailure(l *slog.Logger, event string, err error, kind error, message string) error {
	var se *Error
	if errors.As(err, &se) {
		return fail(l, event, se.Kind, se.Message, se.Err)
	}
	return fail(l, event, kind, message, err)
}

func syncIndex(ctx context.Context, op string, err error) {
	if err != nil {
		logging.FromContext(ctx).Error("search_sync_failed", "op", op, "error", err)
	}
}
