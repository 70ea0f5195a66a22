// Package token computes the change token, the cheap fingerprint the
// watcher and scanner use to decide whether a file meaningfully changed.
//
// A token is "<mtime_seconds>:<size_bytes>". It is opaque to every
// consumer; a content change that preserves both mtime and size is a
// known, accepted miss since a false positive only costs one redundant
// upload.
package token

import (
	"fmt"
	"os"

	"github.com/rashomon-gh/proton-drive-sync/internal/syncerr"
)

// Compute returns the change token for the file at path.
func Compute(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", syncerr.ErrFileNotFound, path)
		}
		return "", fmt.Errorf("%w: stat %s: %v", syncerr.ErrIO, path, err)
	}
	return FromStat(path, info.ModTime().Unix(), info.Size())
}

// FromStat builds a token from already-fetched metadata.
func FromStat(path string, mtimeSeconds, sizeBytes int64) (string, error) {
	if mtimeSeconds < 0 {
		return "", fmt.Errorf("%w: %s has modification time before epoch", syncerr.ErrInvalidPath, path)
	}
	return fmt.Sprintf("%d:%d", mtimeSeconds, sizeBytes), nil
}
