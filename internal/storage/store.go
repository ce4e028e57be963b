package storage

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable wraps every transport or auth failure of the backing store.
	ErrUnavailable = errors.New("invite store unavailable")
	// ErrOutOfRange is returned when a row position does not exist.
	ErrOutOfRange = errors.New("row position out of range")
	// ErrMissingCredentials is returned when the credentials file is absent.
	ErrMissingCredentials = errors.New("store credentials file not found")
)

// Store reads and writes invite rows addressed by zero-based position.
// Positions compact after DeleteRow, so callers must re-fetch before writing.
type Store interface {
	ListAll(ctx context.Context) ([][]string, error)
	AppendRow(ctx context.Context, row []string) error
	ReplaceRow(ctx context.Context, position int, row []string) error
	DeleteRow(ctx context.Context, position int) error
}
