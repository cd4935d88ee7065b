package executor

import (
	"context"
	"errors"

	"github.com/voici5986/vaultsync/internal/webdav"
)

// Tier classifies a per-item failure for the dispatch loop.
type Tier int

const (
	// TierSkip is captured in the SyncResult and execution continues.
	TierSkip Tier = iota
	// TierFatal aborts the entire run immediately.
	TierFatal
)

// classify maps an error from an item operation to a dispatch tier.
// Authentication failures and observed top-level cancellation abort the
// run; every other per-item failure, including a single operation's own
// timeout, is recorded and the run continues, per the partial-failure
// policy: a timeout is a per-item error, not a run-level abort.
func classify(err error) Tier {
	if err == nil {
		return TierSkip
	}
	if errors.Is(err, context.Canceled) {
		return TierFatal
	}
	if errors.Is(err, webdav.ErrUnauthorized) || errors.Is(err, webdav.ErrForbidden) {
		return TierFatal
	}
	return TierSkip
}

// SyncError records one failed item for a SyncResult.
type SyncError struct {
	Path    string
	Action  string
	Message string
}
