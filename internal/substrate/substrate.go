package substrate

import (
	"context"
	"errors"
)

// Substrate is the persistent collection store.
type Substrate interface {
	// Get returns the collection stored under key. ok is false when the key
	// has never been written.
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)

	// Set replaces the collection stored under key.
	Set(ctx context.Context, key string, data []byte) error
}

// Inspector is implemented by substrates that can list what they hold.
type Inspector interface {
	// Keys returns every written key in sorted order.
	Keys(ctx context.Context) ([]string, error)

	// Revision returns how many times key has been written, 0 if never.
	Revision(ctx context.Context, key string) (int64, error)
}

var (
	// ErrQuotaExceeded is returned by Set when the write would exceed the
	// configured storage quota.
	ErrQuotaExceeded = errors.New("substrate: quota exceeded")

	// ErrLocked is returned by Open when another process owns the database.
	ErrLocked = errors.New("substrate: database is locked by another writer")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("substrate: closed")
)
