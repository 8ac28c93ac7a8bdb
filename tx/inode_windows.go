//go:build windows

package tx

import "os"

// fileInode has no stable equivalent on Windows's os.FileInfo without a
// separate GetFileInformationByHandle call; the etag falls back to
// size+mtime alone there.
func fileInode(info os.FileInfo) uint64 {
	return 0
}
