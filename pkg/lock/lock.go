// Package lock serializes reconciliation passes on one host with an
// advisory exclusive lock on a well-known file.
package lock

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mgreiner/update-fstab-uuid/internal/log"
	"github.com/mgreiner/update-fstab-uuid/pkg/errors"
)

// DefaultTimeout is how long Acquire waits for a concurrent pass to finish.
const DefaultTimeout = 10 * time.Second

// FileLock is a held exclusive lock. The lock is released when the process
// exits, even without Release.
type FileLock struct {
	path string
	file *os.File
}

// Path returns the lock file path.
func (l *FileLock) Path() string {
	return l.path
}

// Acquire takes the exclusive lock on path, retrying with exponential
// backoff while another process holds it. It returns ErrBusy once timeout
// elapses.
func Acquire(ctx context.Context, path string, timeout time.Duration) (*FileLock, error) {
	logger := log.WithComponent("lock")

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, errors.IO(err, "open lock file", path)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = time.Second
	bo.MaxElapsedTime = timeout
	bo.Reset()

	attempt := 0
	for {
		attempt++
		held, err := tryLock(f)
		if err != nil {
			f.Close()
			return nil, errors.IO(err, "lock", path)
		}
		if held {
			logger.Debug().Str("path", path).Int("attempts", attempt).Msg("lock_acquired")
			return &FileLock{path: path, file: f}, nil
		}

		next := bo.NextBackOff()
		if next == backoff.Stop {
			f.Close()
			logger.Warn().Str("path", path).Dur("timeout", timeout).Msg("lock_timeout")
			return nil, fmt.Errorf("%w: another pass holds %s", errors.ErrBusy, path)
		}

		logger.Debug().Str("path", path).Dur("wait", next).Msg("lock_held_elsewhere")
		select {
		case <-ctx.Done():
			f.Close()
			return nil, fmt.Errorf("%w: waiting for %s: %v", errors.ErrBusy, path, ctx.Err())
		case <-time.After(next):
		}
	}
}

// Release drops the lock. The lock file itself is left in place.
func (l *FileLock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unlock(l.file)
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return errors.IO(unlockErr, "unlock", l.path)
	}
	if closeErr != nil {
		return errors.IO(closeErr, "close", l.path)
	}
	logger := log.WithComponent("lock")
	logger.Debug().Str("path", l.path).Msg("lock_released")
	return nil
}
