package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, Status{Redis: true, DB: true}, f.status.Status(ctx))

	_ = f.sessions.Close()
	assert.Equal(t, Status{Redis: false, DB: true}, f.status.Status(ctx))

	_ = f.meta.Close()
	assert.Equal(t, Status{}, f.status.Status(ctx))
}

func TestStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	assert.Equal(t, Stats{}, f.status.Stats(ctx))

	alice := f.register(t, "alice@example.com")
	f.register(t, "bob@example.com")
	f.folder(t, alice.ID, "docs", "")
	f.upload(t, alice.ID, "a.txt", "file", []byte("x"))

	assert.Equal(t, Stats{Users: 2, Files: 2}, f.status.Stats(ctx))

	_ = f.meta.Close()
	assert.Equal(t, Stats{}, f.status.Stats(ctx), "store failures degrade to zero")
}

func TestErrorHelpers(t *testing.T) {
	wrapped := &Error{Kind: KindValidation, Message: "Parent not found", Err: assert.AnError}

	assert.ErrorIs(t, wrapped, ErrParentNotFound)
	assert.NotErrorIs(t, wrapped, ErrParentNotAFolder)
	assert.ErrorIs(t, wrapped, assert.AnError)

	assert.Equal(t, KindInternal, KindOf(assert.AnError))
	assert.Equal(t, "Internal error", MessageOf(assert.AnError))
	assert.Equal(t, KindConflict, KindOf(ErrAlreadyExist))
	assert.Equal(t, "NotFound", KindNotFound.String())
}
