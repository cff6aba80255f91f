package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Skotchmaster/blog/internal/events"
	"github.com/Skotchmaster/blog/internal/logging"
	"github.com/Skotchmaster/blog/internal/models"
	"github.com/Skotchmaster/blog/internal/repo"
	"github.com/Skotchmaster/blog/internal/search"
	"github.com/Skotchmaster/blog/internal/tokens"
	"github.com/Skotchmaster/blog/internal/transport"
)

const (
	msgMissingPostData = "Missing post data"
	msgMissingQuery    = "Missing search query"
	msgNoPost          = "No post found"
	msgNotAuthor       = "Not the author"
	msgGetPostsError   = "Error getting posts"
	msgCreatePostError = "Error creating post"
	msgUpdatePostError = "Error updating post"
	msgDeletePostError = "Error deleting post"
	msgSearchDown      = "Search unavailable"
	msgSearchError     = "Error searching posts"
)

type PostService struct {
	Repo   repo.Repository
	Events events.Publisher
	Index  *search.Index
}

func (s *PostService) List(ctx context.Context) ([]models.Post, error) {
	l := logging.FromContext(ctx).With("svc", "posts.list")

	posts, err := s.Repo.ListPosts(ctx)
	if err != nil {
		return nil, fail(l, "list_posts_failed", ErrInternal, msgGetPostsError, err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

func (s *PostService) ByAuthor(ctx context.Context, author string) ([]models.Post, error) {
	l := logging.FromContext(ctx).With("svc", "posts.by_author", "author", author)

	if author == "" {
		return nil, fail(l, "list_posts_failed", ErrMissingData, msgMissingUserData, nil)
	}

	posts, err := s.Repo.ListPostsByAuthor(ctx, author)
	if err != nil {
		return nil, fail(l, "list_posts_failed", ErrInternal, msgGetPostsError, err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

func (s *PostService) Get(ctx context.Context, id uint) (*models.Post, error) {
	l := logging.FromContext(ctx).With("svc", "posts.get", "post_id", id)

	post, err := s.Repo.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fail(l, "get_post_failed", ErrNotFound, msgNoPost, nil)
		}
		return nil, fail(l, "get_post_failed", ErrInternal, msgGetPostsError, err)
	}
	return post, nil
}

func (s *PostService) Search(ctx context.Context, query string) ([]models.Post, error) {
	l := logging.FromContext(ctx).With("svc", "posts.search")

	if query == "" {
		return nil, fail(l, "search_failed", ErrMissingData, msgMissingQuery, nil)
	}

	posts, err := s.Index.Search(ctx, query)
	if err != nil {
		if errors.Is(err, search.ErrUnavailable) {
			return nil, fail(l, "search_failed", ErrInternal, msgSearchDown, err)
		}
		return nil, fail(l, "search_failed", ErrInternal, msgSearchError, err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

// Create stores a post authored by the caller and bumps their post counter.
func (s *PostService) Create(ctx context.Context, id *tokens.Claims, in transport.PostRequest) (*models.Post, error) {
	l := logging.FromContext(ctx).With("svc", "posts.create")

	if id == nil {
		return nil, fail(l, "create_post_failed", ErrUnauthenticated, msgNotLoggedIn, nil)
	}
	l = l.With("username", id.Username)

	if err := in.Validate(); err != nil {
		return nil, fail(l, "create_post_failed", ErrMissingData, msgMissingPostData, err)
	}

	if _, err := caller(ctx, s.Repo, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fail(l, "create_post_failed", ErrNotFound, msgNoUser, nil)
		}
		return nil, callerFailure(l, "create_post_failed", err, ErrInternal, msgCreatePostError)
	}

	post := &models.Post{Author: id.Username, Title: in.Title, Body: in.Body}
	if err := s.Repo.CreatePost(ctx, post); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, fail(l, "create_post_failed", ErrNotFound, msgNoUser, nil)
		}
		return nil, fail(l, "create_post_failed", ErrInternal, msgCreatePostError, err)
	}

	l.Info("post_created", "post_id", post.ID)
	syncIndex(ctx, "index_post", s.Index.IndexPost(ctx, *post))
	events.Emit(ctx, s.Events, events.TopicPosts, events.Event{Type: events.PostCreated, Username: post.Author, PostID: post.ID})
	return post, nil
}

func (s *PostService) Update(ctx context.Context, id *tokens.Claims, postID uint, in transport.PostRequest) (*models.Post, error) {
	l := logging.FromContext(ctx).With("svc", "posts.update", "post_id", postID)

	if id == nil {
		return nil, fail(l, "update_post_failed", ErrUnauthenticated, msgNotLoggedIn, nil)
	}
	l = l.With("username", id.Username)

	if err := in.ValidatePatch(); err != nil {
		return nil, fail(l, "update_post_failed", ErrMissingData, msgMissingPostData, err)
	}

	var post *models.Post
	err := s.Repo.Transaction(ctx, func(tx repo.Repository) error {
		var err error
		post, err = s.owned(ctx, tx, id, postID)
		if err != nil {
			return err
		}
		if in.Title != "" {
			post.Title = in.Title
		}
		if in.Body != "" {
			post.Body = in.Body
		}
		return tx.SavePost(ctx, post)
	})
	if err != nil {
		return nil, postFailure(l, "update_post_failed", msgUpdatePostError, err)
	}

	l.Info("post_updated")
	syncIndex(ctx, "index_post", s.Index.IndexPost(ctx, *post))
	events.Emit(ctx, s.Events, events.TopicPosts, events.Event{Type: events.PostUpdated, Username: post.Author, PostID: post.ID})
	return post, nil
}

// Delete removes one of the caller's posts and decrements their counter.
func (s *PostService) Delete(ctx context.Context, id *tokens.Claims, postID uint) (*models.Post, error) {
	l := logging.FromContext(ctx).With("svc", "posts.delete", "post_id", postID)

	if id == nil {
		return nil, fail(l, "delete_post_failed", ErrUnauthenticated, msgNotLoggedIn, nil)
	}
	l = l.With("username", id.Username)

	var removed *models.Post
	err := s.Repo.Transaction(ctx, func(tx repo.Repository) error {
		if _, err := s.owned(ctx, tx, id, postID); err != nil {
			return err
		}
		var err error
		removed, err = tx.DeletePost(ctx, postID)
		return err
	})
	if err != nil {
		return nil, postFailure(l, "delete_post_failed", msgDeletePostError, err)
	}

	l.Info("post_deleted")
	syncIndex(ctx, "delete_post", s.Index.DeletePost(ctx, removed.ID))
	events.Emit(ctx, s.Events, events.TopicPosts, events.Event{Type: events.PostDeleted, Username: removed.Author, PostID: removed.ID})
	return removed, nil
}

// owned loads the post and checks the caller wrote it.
func (s *PostService) owned(ctx context.Context, tx repo.Repository, id *tokens.Claims, postID uint) (*models.Post, error) {
	if _, err := caller(ctx, tx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, newError(ErrNotFound, msgNoUser, nil)
		}
		return nil, err
	}

	post, err := tx.GetPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if post.Author != id.Username {
		return nil, newError(ErrUnauthenticated, msgNotAuthor, nil)
	}
	return post, nil
}

func postFailure(l *slog.Logger, event, internalMsg string, err error) error {
	var se *Error
	switch {
	case errors.As(err, &se):
		return fail(l, event, se.Kind, se.Message, se.Err)
	case errors.Is(err, repo.ErrNotFound):
		return fail(l, event, ErrNotFound, msgNoPost, nil)
	default:
		return fail(l, event, ErrInternal, internalMsg, err)
	}
}
