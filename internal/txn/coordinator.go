package txn

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Coordinator serialises mutating operations across every store that shares
// it. Each operation runs with a fresh Journal and either commits all of its
// mutations or none of them.
type Coordinator struct {
	mu     sync.RWMutex
	logger *zap.Logger
}

func NewCoordinator(logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{logger: logger}
}

// Do runs fn as a single-writer unit of work. A Do nested inside another
// joins the outer operation.
func (c *Coordinator) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if _, ok := FromContext(ctx); ok {
		return fn(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	journal := &Journal{}
	if err := fn(WithJournal(ctx, journal)); err != nil {
		changes := journal.Len()
		journal.Revert()
		c.logger.Debug("operation rolled back", zap.String("op", op), zap.Int("changes", changes), zap.Error(err))
		return err
	}
	return nil
}

// View runs fn while no operation is in flight.
func (c *Coordinator) View(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := FromContext(ctx); ok {
		return fn(ctx)
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return fn(ctx)
}
