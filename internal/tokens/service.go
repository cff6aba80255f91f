package tokens

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const DefaultAccessTTL = 15 * time.Minute

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrSigning       = errors.New("cannot sign token")
	ErrMissingSecret = errors.New("token secret is empty")
	ErrSharedSecret  = errors.New("access and refresh secrets must differ")
)

type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type Service struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	now           func() time.Time
}

func New(cfg Config) (*Service, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, ErrMissingSecret
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, ErrSharedSecret
	}

	s := &Service{
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		now:           cfg.Now,
	}
	if s.accessTTL <= 0 {
		s.accessTTL = DefaultAccessTTL
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *Service) IssueAccess(id Identity) (string, error) {
	now := s.now()
	claims := Claims{
		Identity: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	return sign(claims, s.accessSecret)
}

// IssueRefresh signs a token without expiry. Its validity is bounded only by
// matching the value stored on the account.
func (s *Service) IssueRefresh(id Identity) (string, error) {
	claims := Claims{
		Identity: id,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(s.now()),
		},
	}
	return sign(claims, s.refreshSecret)
}

func (s *Service) IssuePair(id Identity) (Pair, error) {
	refreshToken, err := s.IssueRefresh(id)
	if err != nil {
		return Pair{}, err
	}
	accessToken, err := s.IssueAccess(id)
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

func (s *Service) VerifyAccess(raw string) (*Claims, error) {
	return s.parse(raw, s.accessSecret, jwt.WithExpirationRequired())
}

func (s *Service) VerifyRefresh(raw string) (*Claims, error) {
	return s.parse(raw, s.refreshSecret)
}

func (s *Service) parse(raw string, secret []byte, opts ...jwt.ParserOption) (*Claims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}

	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	tkn, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tkn.Valid {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

func sign(claims Claims, secret []byte) (string, error) {
	if len(secret) == 0 {
		return "", fmt.Errorf("%w: %v", ErrSigning, ErrMissingSecret)
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return signed, nil
}
