package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBasicAuth(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    Credentials
		wantErr bool
	}{
		{name: "valid", header: basic("bob@dylan.com", "toto1234!"), want: Credentials{"bob@dylan.com", "toto1234!"}},
		{name: "password with colon", header: basic("a@b.c", "x:y"), want: Credentials{"a@b.c", "x:y"}},
		{name: "empty password", header: basic("a@b.c", ""), want: Credentials{"a@b.c", ""}},
		{name: "lowercase scheme", header: "basic " + basic("a@b.c", "p")[6:], want: Credentials{"a@b.c", "p"}},
		{name: "empty", header: "", wantErr: true},
		{name: "bearer", header: "Bearer abc", wantErr: true},
		{name: "not base64", header: "Basic !!!", wantErr: true},
		{name: "no colon", header: "Basic Ym9i", wantErr: true},
		{name: "empty email", header: basic("", "p"), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBasicAuth(tt.header)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnauthorized)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuth_RoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "alice@example.com")

	token, err := f.auth.Authenticate(ctx, Credentials{Email: "alice@example.com", Password: "secret"})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	userID, err := f.auth.ResolveIdentity(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)

	require.NoError(t, f.auth.Revoke(ctx, token))

	_, err = f.auth.ResolveIdentity(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, f.auth.Revoke(ctx, token), ErrUnauthorized)
}

func TestAuth_MultipleSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	user := f.register(t, "alice@example.com")
	creds := Credentials{Email: "alice@example.com", Password: "secret"}

	first, err := f.auth.Authenticate(ctx, creds)
	require.NoError(t, err)
	second, err := f.auth.Authenticate(ctx, creds)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	require.NoError(t, f.auth.Revoke(ctx, first))

	userID, err := f.auth.ResolveIdentity(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, user.ID, userID)
}

func TestAuth_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice@example.com")

	_, err := f.auth.Authenticate(ctx, Credentials{Email: "alice@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.auth.Authenticate(ctx, Credentials{Email: "nobody@example.com", Password: "secret"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.auth.Authenticate(ctx, Credentials{})
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.auth.ResolveIdentity(ctx, "")
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.auth.ResolveIdentity(ctx, "not-a-token")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuth_SessionTTL(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice@example.com")

	auth := NewAuthService(f.meta, f.sessions, nil, 50*time.Millisecond)
	token, err := auth.Authenticate(ctx, Credentials{Email: "alice@example.com", Password: "secret"})
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)

	_, err = auth.ResolveIdentity(ctx, token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuth_StoreFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.register(t, "alice@example.com")
	require.NoError(t, f.meta.Close())

	_, err := f.auth.Authenticate(ctx, Credentials{Email: "alice@example.com", Password: "secret"})
	assert.Equal(t, KindInternal, KindOf(err))
	assert.Equal(t, "Internal error", MessageOf(err))
}
