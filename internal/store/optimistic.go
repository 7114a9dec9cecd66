// Package store holds the canonical in-memory state of the sync core: public
// messages, private rooms and their messages, and notifications.
package store

import (
	"context"

	"chatsync/internal/observability"
)

// RunOptimistic is the single optimistic-update pattern used by every flow:
// begin captures an immutable snapshot and applies the local mutation in one
// step, confirm performs the remote call, and on failure rollback restores
// the snapshot. The confirmation error is returned after rollback.
func RunOptimistic[S any](
	ctx context.Context,
	flow string,
	begin func() S,
	rollback func(S),
	confirm func(context.Context) error,
) error {
	snapshot := begin()
	if err := confirm(ctx); err != nil {
		rollback(snapshot)
		observability.OptimisticRollbacks.WithLabelValues(flow).Inc()
		return err
	}
	return nil
}
