package service

import (
	"crypto/sha1"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher derives and checks stored password hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
	Name() string
}

// Hasher names accepted by NewPasswordHasher.
const (
	HasherSHA1   = "sha1"
	HasherBcrypt = "bcrypt"
)

// NewPasswordHasher returns the hasher registered under name. An empty name
// selects sha1.
func NewPasswordHasher(name string) (PasswordHasher, error) {
	switch name {
	case "", HasherSHA1:
		return SHA1Hasher{}, nil
	case HasherBcrypt:
		return BcryptHasher{Cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unknown password hasher %q", name)
	}
}

// SHA1Hasher stores unsalted hex SHA-1 digests. It keeps hashes compatible
// with user databases created by earlier deployments.
type SHA1Hasher struct{}

func (SHA1Hasher) Name() string { return HasherSHA1 }

func (SHA1Hasher) Hash(password string) (string, error) {
	sum := sha1.Sum([]byte(password))
	return hex.EncodeToString(sum[:]), nil
}

func (h SHA1Hasher) Verify(hash, password string) bool {
	computed, _ := h.Hash(password)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(hash)) == 1
}

// BcryptHasher stores salted bcrypt hashes.
type BcryptHasher struct {
	Cost int
}

func (BcryptHasher) Name() string { return HasherBcrypt }

func (h BcryptHasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrInvalidPassword
	}
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func (BcryptHasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
