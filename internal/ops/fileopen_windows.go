//go:build windows

package ops

import (
	stderrors "errors"
	"os"
)

// errSymlinkTarget is returned when the final path component is a symlink.
var errSymlinkTarget = stderrors.New("cannot write through a symlink")

// openFileNoFollow opens a file for writing.
// On Windows, O_NOFOLLOW is not available; the temp path is created with
// O_EXCL and the destination is Lstat-checked before the rename.
func openFileNoFollow(path string, flag int, perm os.FileMode) (*os.File, error) {
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return nil, errSymlinkTarget
	}
	return os.OpenFile(path, flag, perm)
}
