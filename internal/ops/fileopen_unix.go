//go:build !windows

package ops

import (
	stderrors "errors"
	"os"
	"syscall"
)

// errSymlinkTarget is returned when the final path component is a symlink.
var errSymlinkTarget = stderrors.New("cannot write through a symlink")

// openFileNoFollow opens a file for writing with O_NOFOLLOW so a symlink planted at
// the temp path is never followed. O_CLOEXEC prevents FD leaks across exec.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	fd, err := syscall.Open(path, flag|syscall.O_NOFOLLOW|syscall.O_CLOEXEC, uint32(perm))
	if err != nil {
		if stderrors.Is(err, syscall.ELOOP) {
			return nil, errSymlinkTarget
		}
		return nil, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return os.NewFile(uintptr(fd), path), nil
}
