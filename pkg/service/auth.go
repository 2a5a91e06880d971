package service

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
	"github.com/marmos91/dittofiles/pkg/store/session"
)

// Credentials are the decoded contents of a Basic authorization header.
type Credentials struct {
	Email    string
	Password string
}

// ParseBasicAuth decodes an "Authorization: Basic base64(email:password)"
// header value. The password may contain colons; the email may not.
func ParseBasicAuth(header string) (Credentials, error) {
	const prefix = "Basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return Credentials{}, ErrUnauthorized
	}

	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return Credentials{}, ErrUnauthorized
	}

	email, password, ok := strings.Cut(string(decoded), ":")
	if !ok || email == "" {
		return Credentials{}, ErrUnauthorized
	}
	return Credentials{Email: email, Password: password}, nil
}

// AuthService issues and resolves session tokens.
type AuthService struct {
	users    metadata.UserStore
	sessions session.Store
	hasher   PasswordHasher
	ttl      time.Duration
	newToken func() string
}

// NewAuthService creates an AuthService. A zero ttl selects
// session.DefaultTTL; a nil hasher selects SHA1Hasher.
func NewAuthService(users metadata.UserStore, sessions session.Store, hasher PasswordHasher, ttl time.Duration) *AuthService {
	if ttl <= 0 {
		ttl = session.DefaultTTL
	}
	if hasher == nil {
		hasher = SHA1Hasher{}
	}
	return &AuthService{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		ttl:      ttl,
		newToken: uuid.NewString,
	}
}

// Authenticate verifies credentials and returns a new session token.
//
// Unknown emails and wrong passwords both answer ErrUnauthorized.
func (s *AuthService) Authenticate(ctx context.Context, creds Credentials) (string, error) {
	if creds.Email == "" {
		return "", ErrUnauthorized
	}

	user, err := s.users.GetUserByEmail(ctx, creds.Email)
	if metadata.IsNotFound(err) {
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", internal("authenticate", err)
	}

	if !s.hasher.Verify(user.PasswordHash, creds.Password) {
		logger.Debug("Auth: password mismatch for user %s", user.ID)
		return "", ErrUnauthorized
	}

	token := s.newToken()
	if err := s.sessions.Set(ctx, token, user.ID, s.ttl); err != nil {
		return "", internal("store session", err)
	}

	logger.Debug("Auth: session created for user %s", user.ID)
	return token, nil
}

// ResolveIdentity maps a token to its user id.
func (s *AuthService) ResolveIdentity(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnauthorized
	}

	userID, err := s.sessions.Get(ctx, token)
	if errors.Is(err, session.ErrSessionNotFound) {
		return "", ErrUnauthorized
	}
	if err != nil {
		return "", internal("resolve session", err)
	}
	return userID, nil
}

// Revoke ends a session. Revoking an inactive token is ErrUnauthorized.
func (s *AuthService) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return ErrUnauthorized
	}

	err := s.sessions.Delete(ctx, token)
	if errors.Is(err, session.ErrSessionNotFound) {
		return ErrUnauthorized
	}
	if err != nil {
		return internal("revoke session", err)
	}
	return nil
}
