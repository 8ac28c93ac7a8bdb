//go:build !windows

package tx

import (
	"os"
	"syscall"
)

// fileInode extracts the inode number from a Unix stat_t, the "inode"
// component of the "inode-size-mtime" etag §4.11 specifies.
func fileInode(info os.FileInfo) uint64 {
	if st, ok := info.Sys().(*syscall.Stat_t); ok {
		return uint64(st.Ino)
	}
	return 0
}
