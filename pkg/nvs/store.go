package nvs

import (
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/autopeer-io/bootguard/pkg/log"
)

// Store is a handle to the device's persistent key-value storage. One Store is
// shared by every subsystem on the device (boot validation, configuration,
// credentials, pairing state), each confined to its own namespace.
//
// Individual operations are atomic and durable: each write runs in its own
// committed transaction. The store provides no cross-call locking, so
// read-modify-write sequences on the same key must be serialized by the
// caller. During the boot window that holds by construction, since nothing
// else runs concurrently.
type Store struct {
	db  *bolt.DB
	log log.Logger
}

// OpenStore opens (creating if necessary) the storage file at path.
func OpenStore(path string) (*Store, error) {
	return OpenStoreWithLogger(path, log.Std())
}

// OpenStoreWithLogger opens the storage file at path using the given logger
// for diagnostics.
func OpenStoreWithLogger(path string, logger log.Logger) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open storage file %s: %w", path, err)
	}
	return &Store{db: db, log: logger.WithName("nvs")}, nil
}

// Close releases the underlying storage file.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the path of the underlying storage file.
func (s *Store) Path() string {
	return s.db.Path()
}

// Scope opens a read-write scope against the given namespace. The namespace
// bucket is created on first use. Check IsOpen before relying on writes; a
// scope that failed to open still answers every operation, recording
// ResultNotInitialized.
//
// The returned scope must not be copied, and Close must be called when the
// scope is no longer needed.
func (s *Store) Scope(namespace string) *Scope {
	return s.open(namespace, false)
}

// ScopeReadOnly opens a read-only scope against the given namespace. Opening
// a namespace that has never been written fails with ResultNamespaceError,
// matching the behavior of the device's native storage driver.
func (s *Store) ScopeReadOnly(namespace string) *Scope {
	return s.open(namespace, true)
}

func (s *Store) open(namespace string, readonly bool) *Scope {
	sc := &Scope{
		store:      s,
		namespace:  namespace,
		readonly:   readonly,
		lastResult: ResultOK,
	}

	if namespace == "" {
		sc.lastResult = ResultInvalidArgument
		s.log.Warn("Rejected empty namespace name")
		return sc
	}
	if len(namespace) > MaxKeyLength {
		sc.lastResult = ResultKeyTooLong
		s.log.Warn("Namespace name too long", "namespace", namespace, "max", MaxKeyLength)
		return sc
	}

	if readonly {
		err := s.db.View(func(tx *bolt.Tx) error {
			if tx.Bucket([]byte(namespace)) == nil {
				return fmt.Errorf("namespace %q does not exist", namespace)
			}
			return nil
		})
		if err != nil {
			sc.lastResult = ResultNamespaceError
			s.log.Debug("Failed to open namespace read-only", "namespace", namespace, "reason", err.Error())
			return sc
		}
	} else {
		err := s.db.Update(func(tx *bolt.Tx) error {
			_, err := tx.CreateBucketIfNotExists([]byte(namespace))
			return err
		})
		if err != nil {
			sc.lastResult = ResultNamespaceError
			s.log.Error(err, "Failed to open namespace", "namespace", namespace)
			return sc
		}
	}

	sc.opened = true
	return sc
}

// view runs fn in a read transaction against the scope's namespace bucket.
func (s *Store) view(namespace string, fn func(b *bolt.Bucket) error) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(namespace))
		if b == nil {
			return errBucketMissing
		}
		return fn(b)
	})
}

// update runs fn in a write transaction against the scope's namespace bucket.
func (s *Store) update(namespace string, fn func(b *bolt.Bucket) error) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(namespace))
		if err != nil {
			return err
		}
		return fn(b)
	})
}

var errBucketMissing = fmt.Errorf("namespace bucket missing")
