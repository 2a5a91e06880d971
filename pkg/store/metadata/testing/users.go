package testing

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunUserTests executes the user record tests.
func (suite *StoreTestSuite) RunUserTests(t *testing.T) {
	t.Run("CreateUser_Success", suite.testCreateUser)
	t.Run("CreateUser_DuplicateEmail", suite.testCreateUserDuplicateEmail)
	t.Run("CreateUser_DuplicateID", suite.testCreateUserDuplicateID)
	t.Run("CreateUser_InvalidArgument", suite.testCreateUserInvalid)
	t.Run("CreateUser_ConcurrentSameEmail", suite.testCreateUserConcurrent)
	t.Run("GetUser_NotFound", suite.testGetUserNotFound)
	t.Run("GetUserByEmail_NotFound", suite.testGetUserByEmailNotFound)
	t.Run("CountUsers", suite.testCountUsers)
}

func (suite *StoreTestSuite) testCreateUser(t *testing.T) {
	store := suite.newStore(t)
	user := newUser("alice@example.com")

	require.NoError(t, store.CreateUser(testContext(), user))

	byID, err := store.GetUser(testContext(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user, byID)

	byEmail, err := store.GetUserByEmail(testContext(), "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, user, byEmail)
}

func (suite *StoreTestSuite) testCreateUserDuplicateEmail(t *testing.T) {
	store := suite.newStore(t)

	require.NoError(t, store.CreateUser(testContext(), newUser("alice@example.com")))

	err := store.CreateUser(testContext(), newUser("alice@example.com"))
	require.Error(t, err)
	assert.True(t, metadata.IsAlreadyExists(err), "expected AlreadyExists, got %v", err)

	count, err := store.CountUsers(testContext())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func (suite *StoreTestSuite) testCreateUserDuplicateID(t *testing.T) {
	store := suite.newStore(t)
	first := newUser("alice@example.com")
	require.NoError(t, store.CreateUser(testContext(), first))

	second := newUser("bob@example.com")
	second.ID = first.ID

	err := store.CreateUser(testContext(), second)
	assert.True(t, metadata.IsAlreadyExists(err), "expected AlreadyExists, got %v", err)

	_, err = store.GetUserByEmail(testContext(), "bob@example.com")
	assert.True(t, metadata.IsNotFound(err), "rejected user must not be indexed")
}

func (suite *StoreTestSuite) testCreateUserInvalid(t *testing.T) {
	store := suite.newStore(t)

	err := store.CreateUser(testContext(), &metadata.User{ID: uuid.NewString()})
	assert.True(t, metadata.HasCode(err, metadata.ErrInvalidArgument), "got %v", err)

	err = store.CreateUser(testContext(), &metadata.User{Email: "x@example.com"})
	assert.True(t, metadata.HasCode(err, metadata.ErrInvalidArgument), "got %v", err)
}

func (suite *StoreTestSuite) testCreateUserConcurrent(t *testing.T) {
	store := suite.newStore(t)

	const workers = 8
	var wg sync.WaitGroup
	var succeeded atomic.Int32

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := store.CreateUser(testContext(), newUser("race@example.com")); err == nil {
				succeeded.Add(1)
			} else {
				assert.True(t, metadata.IsAlreadyExists(err), "unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), succeeded.Load())
}

func (suite *StoreTestSuite) testGetUserNotFound(t *testing.T) {
	store := suite.newStore(t)

	_, err := store.GetUser(testContext(), uuid.NewString())
	assert.True(t, metadata.IsNotFound(err), "got %v", err)
}

func (suite *StoreTestSuite) testGetUserByEmailNotFound(t *testing.T) {
	store := suite.newStore(t)

	_, err := store.GetUserByEmail(testContext(), "nobody@example.com")
	assert.True(t, metadata.IsNotFound(err), "got %v", err)
}

func (suite *StoreTestSuite) testCountUsers(t *testing.T) {
	store := suite.newStore(t)

	count, err := store.CountUsers(testContext())
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)

	require.NoError(t, store.CreateUser(testContext(), newUser("a@example.com")))
	require.NoError(t, store.CreateUser(testContext(), newUser("b@example.com")))

	count, err = store.CountUsers(testContext())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
