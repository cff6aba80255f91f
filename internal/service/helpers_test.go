package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/blog/internal/events"
	"github.com/Skotchmaster/blog/internal/hash"
	"github.com/Skotchmaster/blog/internal/models"
	"github.com/Skotchmaster/blog/internal/repo"
	"github.com/Skotchmaster/blog/internal/testutil"
	"github.com/Skotchmaster/blog/internal/tokens"
	"github.com/Skotchmaster/blog/internal/transport"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
	events []events.Event
}

func (p *recordingPublisher) PublishEvent(_ context.Context, topic, _ string, ev any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, ev.(events.Event))
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

// faultyRepo injects store failures into an otherwise working repository.
type faultyRepo struct {
	repo.Repository
	insertErr error
	saveErr   error
	listErr   error
}

func (f *faultyRepo) Insert(ctx context.Context, u *models.User) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.Repository.Insert(ctx, u)
}

func (f *faultyRepo) Save(ctx context.Context, u *models.User) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.Repository.Save(ctx, u)
}

func (f *faultyRepo) List(ctx context.Context) ([]models.PublicUser, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Repository.List(ctx)
}

func (f *faultyRepo) Transaction(ctx context.Context, fn func(tx repo.Repository) error) error {
	return f.Repository.Transaction(ctx, func(tx repo.Repository) error {
		return fn(&faultyRepo{Repository: tx, insertErr: f.insertErr, saveErr: f.saveErr, listErr: f.listErr})
	})
}

type testEnv struct {
	Repo   *repo.GormRepo
	Users  *UserService
	Posts  *PostService
	Tokens *tokens.Service
	Clock  *fakeClock
	Events *recordingPublisher
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	tk, err := tokens.New(tokens.Config{
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
		Now:           clock.Now,
	})
	require.NoError(t, err)

	r := repo.New(testutil.InitTestDB(t))
	pub := &recordingPublisher{}

	return &testEnv{
		Repo:   r,
		Users:  &UserService{Repo: r, Hasher: hash.HMACHasher{}, Tokens: tk, Events: pub},
		Posts:  &PostService{Repo: r, Events: pub},
		Tokens: tk,
		Clock:  clock,
		Events: pub,
	}
}

func (env *testEnv) register(t *testing.T, username, email, password string) tokens.Pair {
	t.Helper()
	pair, err := env.Users.Register(context.Background(), transport.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	require.NoError(t, err)
	return pair
}

// identity resolves the claims the auth gate would attach for pair.
func (env *testEnv) identity(t *testing.T, pair tokens.Pair) *tokens.Claims {
	t.Helper()
	claims, err := env.Tokens.VerifyAccess(pair.AccessToken)
	require.NoError(t, err)
	return claims
}

func (env *testEnv) post(t *testing.T, id *tokens.Claims, title string) *models.Post {
	t.Helper()
	p, err := env.Posts.Create(context.Background(), id, transport.PostRequest{Title: title, Body: "body of " + title})
	require.NoError(t, err)
	return p
}
