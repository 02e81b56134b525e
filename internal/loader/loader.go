// Package loader implements ensureCoValueLoaded: idempotently resolves a
// CoValue id into a locally materialised core, optionally blocking until
// it becomes available. Kept deliberately small since the heavy lifting
// (dedup, store I/O) already lives in runtime.Node.
package loader

import (
	"context"
	"time"

	"github.com/maia-os/covalue-core/internal/covalue"
	"github.com/maia-os/covalue-core/internal/errs"
	"github.com/maia-os/covalue-core/internal/runtime"
)

// DefaultTimeout bounds an availability wait when the caller supplies none.
const DefaultTimeout = runtime.DefaultAvailabilityTimeout

// Options configures one ensureCoValueLoaded call.
type Options struct {
	WaitForAvailable bool
	Timeout          time.Duration
}

// Ensure resolves coID into a locally materialised core.
//
//   - Rejects any id not matching the co_* prefix.
//   - If the core is already available, returns it immediately.
//   - Otherwise fires a non-blocking load request; if WaitForAvailable is
//     set, waits (bounded by Timeout, default DefaultTimeout) for the core
//     to report available, then returns regardless of outcome.
//
// Concurrent callers for the same id share the backend's in-flight load.
func Ensure(ctx context.Context, backend runtime.BackendHandle, coID string, opts Options) (*covalue.Core, error) {
	if !covalue.ValidID(coID) {
		return nil, errs.New(errs.Structural, "loader.Ensure", errs.Errorf("invalid covalue id %q", coID))
	}

	core := backend.GetCoValue(coID)
	if core != nil && core.Available() {
		return core, nil
	}

	loadCtx := ctx
	var cancel context.CancelFunc
	if opts.WaitForAvailable {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		loadCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	core, err := backend.LoadCoValueCore(loadCtx, coID)
	if err != nil {
		return nil, errs.New(errs.Timeout, "loader.Ensure", err)
	}
	if core == nil {
		return nil, nil
	}

	if !opts.WaitForAvailable || core.Available() {
		return core, nil
	}

	_ = backend.WaitAvailable(loadCtx, coID)
	return core, nil
}
