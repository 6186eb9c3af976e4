package relocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"bindery/internal/fileutil"
	"bindery/internal/services"
)

const lockRetryInterval = 50 * time.Millisecond

// Locker serializes relocation work. Lock returns a release function.
type Locker interface {
	Lock(ctx context.Context) (func(), error)
}

// FileLocker takes an exclusive flock on a file shared by every bindery process.
type FileLocker struct {
	path    string
	timeout time.Duration
}

// NewFileLocker returns a locker for path that gives up after timeout.
func NewFileLocker(path string, timeout time.Duration) *FileLocker {
	return &FileLocker{path: path, timeout: timeout}
}

// Lock waits for the lock until ctx ends or the timeout passes.
func (l *FileLocker) Lock(ctx context.Context) (func(), error) {
	if err := fileutil.EnsureParent(l.path); err != nil {
		return nil, services.Wrap(services.ErrIO, "relocation", "lock", "prepare lock file", err)
	}
	lockCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		lockCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	fl := flock.New(l.path)
	locked, err := fl.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "relocation", "lock",
				fmt.Sprintf("another relocation holds %s", l.path), err)
		}
		return nil, services.Wrap(services.ErrIO, "relocation", "lock", "acquire relocation lock", err)
	}
	if !locked {
		return nil, services.Wrap(services.ErrTimeout, "relocation", "lock",
			fmt.Sprintf("another relocation holds %s", l.path), nil)
	}
	return func() { _ = fl.Unlock() }, nil
}
