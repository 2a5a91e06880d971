package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPasswordHasher(t *testing.T) {
	for name, want := range map[string]string{"": HasherSHA1, "sha1": HasherSHA1, "bcrypt": HasherBcrypt} {
		h, err := NewPasswordHasher(name)
		require.NoError(t, err)
		assert.Equal(t, want, h.Name())
	}

	_, err := NewPasswordHasher("md5")
	assert.Error(t, err)
}

func TestSHA1Hasher(t *testing.T) {
	h := SHA1Hasher{}

	hash, err := h.Hash("toto1234!")
	require.NoError(t, err)
	assert.Equal(t, "89cad29e3ebc1035b29b1478a8e70854f25fa2b2", hash)

	assert.True(t, h.Verify(hash, "toto1234!"))
	assert.False(t, h.Verify(hash, "toto1234"))
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: 4}

	hash, err := h.Hash("secret")
	require.NoError(t, err)
	assert.True(t, h.Verify(hash, "secret"))
	assert.False(t, h.Verify(hash, "Secret"))

	_, err = h.Hash(strings.Repeat("x", 100))
	assert.ErrorIs(t, err, ErrInvalidPassword)
}
