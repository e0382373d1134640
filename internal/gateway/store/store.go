package store

import (
	"context"
	"errors"
	"time"

	"github.com/redgumnet/edgegate/internal/gateway/domain"
)

var ErrNotFound = errors.New("store: not found")

// Store is the root data access interface. Concrete drivers (sqlite today)
// implement this. Sub-repositories keep concerns tidy and testable.
type Store interface {
	Audit() Audit

	ApplyMigrations() error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

type Audit interface {
	// Insert appends one audit row. The entry's ID must be set by the caller.
	Insert(ctx context.Context, entry domain.RequestAudit) error

	// ListRecent returns up to limit rows, newest first.
	ListRecent(ctx context.Context, limit int) ([]domain.RequestAudit, error)

	// DeleteOlderThan prunes rows created before cutoff and reports how many
	// went away.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
