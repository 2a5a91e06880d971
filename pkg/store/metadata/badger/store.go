package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/marmos91/dittofiles/pkg/metrics"
	"github.com/marmos91/dittofiles/pkg/store/metadata"
)

// BadgerMetadataStore implements metadata.MetadataStore using BadgerDB for persistence.
//
// Users and files survive restarts. Each mutation runs in a single Badger
// transaction, which gives atomic single-record writes and serializable
// checks for email uniqueness (concurrent registrations of the same email
// conflict and one of them fails).
//
// Insertion order is tracked with a Badger sequence leased in blocks, so
// sequence numbers are monotonic but may have gaps after a restart.
//
// Thread Safety:
// BadgerDB transactions provide MVCC; the store holds no extra locks.
type BadgerMetadataStore struct {
	db      *badger.DB
	seq     *badger.Sequence
	metrics metrics.MetadataMetrics
}

// BadgerMetadataStoreConfig contains configuration for the BadgerDB store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB stores its files
	DBPath string `mapstructure:"db_path"`

	// InMemory runs Badger without touching disk (tests, ephemeral setups)
	InMemory bool `mapstructure:"in_memory"`

	// BlockCacheSizeMB sets Badger's block cache size. Default: 64MB
	BlockCacheSizeMB int64 `mapstructure:"block_cache_mb"`

	// IndexCacheSizeMB sets Badger's index cache size. Default: 32MB
	IndexCacheSizeMB int64 `mapstructure:"index_cache_mb"`

	// BadgerOptions overrides every option above when set
	BadgerOptions *badger.Options `mapstructure:"-"`

	// Metrics records per-operation latency. Nil disables collection.
	Metrics metrics.MetadataMetrics `mapstructure:"-"`
}

// NewBadgerMetadataStore opens (or creates) a BadgerDB metadata store.
//
// Parameters:
//   - ctx: Context for cancellation
//   - config: Store configuration
//
// Returns:
//   - *BadgerMetadataStore: Opened store
//   - error: If the database cannot be opened or the sequence cannot be leased
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var opts badger.Options
	if config.BadgerOptions != nil {
		opts = *config.BadgerOptions
	} else {
		if config.InMemory {
			opts = badger.DefaultOptions("").WithInMemory(true)
		} else {
			if config.DBPath == "" {
				return nil, fmt.Errorf("badger metadata store: db_path is required")
			}
			opts = badger.DefaultOptions(config.DBPath)
		}

		opts = opts.WithLoggingLevel(badger.WARNING)
		opts = opts.WithCompression(options.None)

		blockCacheMB := config.BlockCacheSizeMB
		if blockCacheMB == 0 {
			blockCacheMB = 64
		}
		indexCacheMB := config.IndexCacheSizeMB
		if indexCacheMB == 0 {
			indexCacheMB = 32
		}

		opts = opts.WithBlockCacheSize(blockCacheMB << 20)
		opts = opts.WithIndexCacheSize(indexCacheMB << 20)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", config.DBPath, err)
	}

	seq, err := db.GetSequence([]byte(keyFileSequence), sequenceBandwidth)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to lease file sequence: %w", err)
	}

	m := config.Metrics
	if m == nil {
		m = metrics.NewNoopMetadataMetrics()
	}

	return &BadgerMetadataStore{db: db, seq: seq, metrics: m}, nil
}

// NewInMemoryBadgerMetadataStore opens a Badger store that lives only in memory.
func NewInMemoryBadgerMetadataStore(ctx context.Context) (*BadgerMetadataStore, error) {
	return NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{InMemory: true})
}

func (s *BadgerMetadataStore) CreateUser(ctx context.Context, user *metadata.User) (err error) {
	defer s.observe("CreateUser", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return err
	}
	if user == nil || user.ID == "" || user.Email == "" {
		return metadata.NewInvalidArgumentError("user id and email are required")
	}

	data, err := encodeUser(user)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, keyUser(user.ID)); err != nil {
			return err
		} else if exists {
			return metadata.NewAlreadyExistsError("user", user.ID)
		}

		if exists, err := keyExists(txn, keyUserEmail(user.Email)); err != nil {
			return err
		} else if exists {
			return metadata.NewAlreadyExistsError("user", user.Email)
		}

		if err := txn.Set(keyUser(user.ID), data); err != nil {
			return err
		}
		return txn.Set(keyUserEmail(user.Email), []byte(user.ID))
	})

	// Two transactions racing on the same email index key conflict at commit.
	if errors.Is(err, badger.ErrConflict) {
		return metadata.NewAlreadyExistsError("user", user.Email)
	}
	return wrapIOError(err, "create user")
}

func (s *BadgerMetadataStore) GetUser(ctx context.Context, id string) (_ *metadata.User, err error) {
	defer s.observe("GetUser", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user *metadata.User
	err = s.db.View(func(txn *badger.Txn) error {
		var err error
		user, err = getUser(txn, id)
		return err
	})
	if err != nil {
		return nil, wrapIOError(err, "get user")
	}
	return user, nil
}

func (s *BadgerMetadataStore) GetUserByEmail(ctx context.Context, email string) (_ *metadata.User, err error) {
	defer s.observe("GetUserByEmail", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var user *metadata.User
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyUserEmail(email))
		if err == badger.ErrKeyNotFound {
			return metadata.NewNotFoundError("user", email)
		}
		if err != nil {
			return err
		}

		id, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		user, err = getUser(txn, string(id))
		return err
	})
	if err != nil {
		return nil, wrapIOError(err, "get user by email")
	}
	return user, nil
}

func (s *BadgerMetadataStore) CountUsers(ctx context.Context) (_ int64, err error) {
	defer s.observe("CountUsers", time.Now(), &err)

	return s.countPrefix(ctx, []byte(prefixUser))
}

func (s *BadgerMetadataStore) CreateFile(ctx context.Context, node *metadata.FileNode) (err error) {
	defer s.observe("CreateFile", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return err
	}
	if node == nil || node.ID == "" || node.OwnerID == "" {
		return metadata.NewInvalidArgumentError("file id and owner id are required")
	}

	seq, err := s.seq.Next()
	if err != nil {
		return wrapIOError(err, "allocate file sequence")
	}
	// Badger sequences start at 0; keep 0 meaning "unassigned".
	node.Seq = seq + 1

	data, err := encodeFile(node)
	if err != nil {
		return err
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if exists, err := keyExists(txn, keyFile(node.ID)); err != nil {
			return err
		} else if exists {
			return metadata.NewAlreadyExistsError("file", node.ID)
		}

		if err := txn.Set(keyFile(node.ID), data); err != nil {
			return err
		}
		return txn.Set(keyChild(node.OwnerID, node.ParentID, node.Seq), []byte(node.ID))
	})
	return wrapIOError(err, "create file")
}

func (s *BadgerMetadataStore) GetFile(ctx context.Context, id string) (_ *metadata.FileNode, err error) {
	defer s.observe("GetFile", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var node *metadata.FileNode
	err = s.db.View(func(txn *badger.Txn) error {
		var err error
		node, err = getFile(txn, id)
		return err
	})
	if err != nil {
		return nil, wrapIOError(err, "get file")
	}
	return node, nil
}

func (s *BadgerMetadataStore) ListFiles(ctx context.Context, ownerID, parentID string, offset, limit int) (_ []*metadata.FileNode, err error) {
	defer s.observe("ListFiles", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if offset < 0 || limit < 0 {
		return nil, metadata.NewInvalidArgumentError("offset and limit must not be negative")
	}

	result := make([]*metadata.FileNode, 0, limit)
	if limit == 0 {
		return result, nil
	}

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyChildrenPrefix(ownerID, parentID)

		it := txn.NewIterator(opts)
		defer it.Close()

		skipped := 0
		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			if skipped < offset {
				skipped++
				continue
			}

			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			node, err := getFile(txn, string(id))
			if err != nil {
				return err
			}
			result = append(result, node)

			if len(result) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapIOError(err, "list files")
	}
	return result, nil
}

func (s *BadgerMetadataStore) SetPublic(ctx context.Context, id string, isPublic bool, updatedAt time.Time) (_ *metadata.FileNode, err error) {
	defer s.observe("SetPublic", time.Now(), &err)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var node *metadata.FileNode
	err = s.db.Update(func(txn *badger.Txn) error {
		var err error
		node, err = getFile(txn, id)
		if err != nil {
			return err
		}

		node.IsPublic = isPublic
		node.UpdatedAt = updatedAt

		data, err := encodeFile(node)
		if err != nil {
			return err
		}
		return txn.Set(keyFile(id), data)
	})
	if err != nil {
		return nil, wrapIOError(err, "set public")
	}
	return node, nil
}

func (s *BadgerMetadataStore) CountFiles(ctx context.Context) (_ int64, err error) {
	defer s.observe("CountFiles", time.Now(), &err)

	return s.countPrefix(ctx, []byte(prefixFile))
}

func (s *BadgerMetadataStore) WalkFiles(ctx context.Context, fn func(*metadata.FileNode) error) (err error) {
	defer s.observe("WalkFiles", time.Now(), &err)

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixFile)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}

			var node *metadata.FileNode
			if err := it.Item().Value(func(val []byte) error {
				var err error
				node, err = decodeFile(val)
				return err
			}); err != nil {
				return err
			}

			if err := fn(node); err != nil {
				return err
			}
		}
		return nil
	})
	return err
}

func (s *BadgerMetadataStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return &metadata.StoreError{Code: metadata.ErrIOError, Message: "store is closed"}
	}
	return s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(keyFileSequence))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		return err
	})
}

// Close releases the sequence lease and closes the database.
func (s *BadgerMetadataStore) Close() error {
	if err := s.seq.Release(); err != nil {
		_ = s.db.Close()
		return fmt.Errorf("failed to release file sequence: %w", err)
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close BadgerDB: %w", err)
	}
	return nil
}

func (s *BadgerMetadataStore) countPrefix(ctx context.Context, prefix []byte) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var count int64
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	if err != nil {
		return 0, wrapIOError(err, "count records")
	}
	return count, nil
}

// observe records one operation; err points at the caller's named result.
func (s *BadgerMetadataStore) observe(operation string, start time.Time, err *error) {
	s.metrics.RecordOperation(operation, time.Since(start), *err)
}

func getUser(txn *badger.Txn, id string) (*metadata.User, error) {
	item, err := txn.Get(keyUser(id))
	if err == badger.ErrKeyNotFound {
		return nil, metadata.NewNotFoundError("user", id)
	}
	if err != nil {
		return nil, err
	}

	var user *metadata.User
	err = item.Value(func(val []byte) error {
		user, err = decodeUser(val)
		return err
	})
	return user, err
}

func getFile(txn *badger.Txn, id string) (*metadata.FileNode, error) {
	item, err := txn.Get(keyFile(id))
	if err == badger.ErrKeyNotFound {
		return nil, metadata.NewNotFoundError("file", id)
	}
	if err != nil {
		return nil, err
	}

	var node *metadata.FileNode
	err = item.Value(func(val []byte) error {
		node, err = decodeFile(val)
		return err
	})
	return node, err
}

func keyExists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// wrapIOError passes StoreErrors and context errors through and wraps
// everything else as ErrIOError.
func wrapIOError(err error, op string) error {
	if err == nil {
		return nil
	}

	var storeErr *metadata.StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return &metadata.StoreError{
		Code:    metadata.ErrIOError,
		Message: fmt.Sprintf("%s: %v", op, err),
	}
}
