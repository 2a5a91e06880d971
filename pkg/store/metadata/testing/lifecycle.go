package testing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunLifecycleTests executes health and cancellation tests.
func (suite *StoreTestSuite) RunLifecycleTests(t *testing.T) {
	t.Run("Healthcheck_Open", suite.testHealthcheckOpen)
	t.Run("CancelledContext", suite.testCancelledContext)
}

func (suite *StoreTestSuite) testHealthcheckOpen(t *testing.T) {
	store := suite.newStore(t)
	require.NoError(t, store.Healthcheck(testContext()))
}

func (suite *StoreTestSuite) testCancelledContext(t *testing.T) {
	store := suite.newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.GetUser(ctx, "anything")
	assert.ErrorIs(t, err, context.Canceled)

	err = store.CreateFile(ctx, newNode("owner", "0", "x", "file"))
	assert.ErrorIs(t, err, context.Canceled)
}
