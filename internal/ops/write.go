package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gofrs/flock"

	"github.com/hpungsan/ale2ccc/internal/cdl"
	"github.com/hpungsan/ale2ccc/internal/errors"
	"github.com/hpungsan/ale2ccc/internal/report"
)

const lockRetryDelay = 50 * time.Millisecond

// LockPath returns the lock file guarding writes to path.
func LockPath(path string) string {
	return path + ".lock"
}

// WriteCollection writes coll to path as a CCC document.
//
// The document goes to a temp file in the same directory, is synced, then
// renamed over path, so an existing file is replaced whole or not at all.
// Concurrent writers to the same path are serialized with a lock on
// LockPath(path); lockTimeout bounds the wait (0 means do not wait).
// Every failure is an OUTPUT_WRITE error.
func WriteCollection(ctx context.Context, path string, coll *cdl.Collection, lockTimeout time.Duration) error {
	lock := flock.New(LockPath(path))
	locked, err := acquire(ctx, lock, lockTimeout)
	if err != nil {
		if stderrors.Is(err, context.Canceled) {
			return errors.NewCancelled("write")
		}
		return errors.NewOutputWrite(path, fmt.Errorf("lock %s: %w", lock.Path(), err))
	}
	if !locked {
		return errors.NewOutputWrite(path, fmt.Errorf("%s is held by another conversion", lock.Path()))
	}
	defer func() { _ = lock.Unlock() }()

	if err := writeAtomic(path, coll.Encode); err != nil {
		return errors.NewOutputWrite(path, err)
	}
	return nil
}

// WriteReport renders r for path's extension and writes it with the same
// temp-file and rename sequence as WriteCollection. Failures are OUTPUT_WRITE.
func WriteReport(path string, r report.Run) error {
	data, err := report.Render(path, r)
	if err != nil {
		return errors.NewOutputWrite(path, err)
	}
	err = writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
	if err != nil {
		return errors.NewOutputWrite(path, err)
	}
	return nil
}

// writeAtomic streams encode into a temp file beside path, syncs it, and
// renames it over path. The temp file is opened O_NOFOLLOW and path must not
// be a symlink at rename time. On failure path is left untouched.
func writeAtomic(path string, encode func(io.Writer) error) error {
	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return fmt.Errorf("generate temp file name: %w", err)
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if err := encode(file); err != nil {
		return err
	}
	if err := file.Sync(); err != nil {
		return err
	}
	// Windows cannot rename an open file.
	if err := file.Close(); err != nil {
		return err
	}
	file = nil

	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errSymlinkTarget
	}
	if err := os.Rename(tempPath, path); err != nil {
		return err
	}

	success = true
	return nil
}

// acquire takes lock, retrying until timeout elapses.
func acquire(ctx context.Context, lock *flock.Flock, timeout time.Duration) (bool, error) {
	if timeout <= 0 {
		return lock.TryLock()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := lock.TryLockContext(ctx, lockRetryDelay)
	if stderrors.Is(err, context.DeadlineExceeded) {
		return false, nil
	}
	return ok, err
}
