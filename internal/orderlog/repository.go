package orderlog

import "context"

// Repository is the port for persisting order log entries. The order service
// depends on this abstraction, not on SQLite directly.
type Repository interface {
	// Save appends an entry; the log is never updated in place.
	Save(ctx context.Context, entry *Entry) error
}
