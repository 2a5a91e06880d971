package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/marmos91/dittofiles/internal/logger"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
)

// UserService registers and looks up accounts.
type UserService struct {
	users  metadata.UserStore
	hasher PasswordHasher
	newID  func() string
}

// NewUserService creates a UserService. A nil hasher selects SHA1Hasher.
func NewUserService(users metadata.UserStore, hasher PasswordHasher) *UserService {
	if hasher == nil {
		hasher = SHA1Hasher{}
	}
	return &UserService{users: users, hasher: hasher, newID: uuid.NewString}
}

// Register creates an account.
//
// Errors: ErrMissingEmail, ErrMissingPassword, ErrAlreadyExist.
func (s *UserService) Register(ctx context.Context, email, password string) (*metadata.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, ErrMissingEmail
	}
	if password == "" {
		return nil, ErrMissingPassword
	}

	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrAlreadyExist
	} else if !metadata.IsNotFound(err) {
		return nil, internal("lookup user", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		if KindOf(err) == KindValidation {
			return nil, err
		}
		return nil, internal("hash password", err)
	}

	user := &metadata.User{
		ID:           s.newID(),
		Email:        email,
		PasswordHash: hash,
	}

	// The store enforces uniqueness too; a concurrent registration that
	// slipped past the lookup above ends here.
	if err := s.users.CreateUser(ctx, user); err != nil {
		if metadata.IsAlreadyExists(err) {
			return nil, ErrAlreadyExist
		}
		return nil, internal("create user", err)
	}

	logger.Info("Users: registered %s (%s)", user.ID, user.Email)
	return user, nil
}

// Get returns the account behind an authenticated identity. A session
// pointing at a vanished user is ErrUnauthorized.
func (s *UserService) Get(ctx context.Context, userID string) (*metadata.User, error) {
	user, err := s.users.GetUser(ctx, userID)
	if metadata.IsNotFound(err) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, internal("get user", err)
	}
	return user, nil
}
