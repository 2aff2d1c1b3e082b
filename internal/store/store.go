// Package store is the persistent key/value layer behind budget tracking.
// Records are addressed by (partition key, sort key) and carry a version
// that increments on every write, so concurrent writers can detect each
// other with PutIfVersion.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrVersionConflict is returned by callers when a conditional write
	// lost a race. The store itself reports this as (false, nil).
	ErrVersionConflict = errors.New("store: version conflict")
	// ErrClosed indicates the store has been closed.
	ErrClosed = errors.New("store: closed")
)

// Record is one stored item.
type Record struct {
	PK        string          `json:"pk"`
	SK        string          `json:"sk"`
	Version   int64           `json:"version"`
	Data      json.RawMessage `json:"data"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store is implemented by Memory and SQLite.
type Store interface {
	// Get returns (nil, nil) when the record does not exist.
	Get(ctx context.Context, pk, sk string) (*Record, error)
	// Put writes unconditionally and bumps the version.
	Put(ctx context.Context, rec Record) error
	// PutIfVersion writes only when the stored version equals expected.
	// expected == 0 means the record must not exist yet. It returns false
	// without error when the condition does not hold.
	PutIfVersion(ctx context.Context, rec Record, expected int64) (bool, error)
	Close() error
}

type key struct{ pk, sk string }
