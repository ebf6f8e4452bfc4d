package service

import (
	"context"
	"sync"

	dErrors "corkboard/pkg/domain-errors"
)

// inMemoryTx serializes multi-store mutations when no database is
// configured. It gives isolation but not rollback.
type inMemoryTx struct {
	mu sync.Mutex
}

func (t *inMemoryTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "transaction aborted: context cancelled")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(ctx)
}
