package audit

import (
	"context"
	"time"
)

// Store persists audit entries. Implementations must be safe for
// concurrent use.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	// Search returns one page of matching entries, newest first, and the
	// total number of matches.
	Search(ctx context.Context, filter Filter) ([]Entry, int, error)
	// Stats aggregates entries recorded at or after since. An empty userID
	// covers every user.
	Stats(ctx context.Context, userID string, since time.Time) (*Stats, error)
	// PurgeBefore deletes entries older than cutoff and returns how many.
	PurgeBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sink mirrors recorded entries to a secondary destination. Publish must not
// block on the network.
type Sink interface {
	Publish(ctx context.Context, entry Entry) error
}
