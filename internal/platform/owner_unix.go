//go:build unix

package platform

import (
	"io/fs"
	"strconv"
	"syscall"
)

// FileOwner returns the owning user and group names of a local file.
func FileOwner(info fs.FileInfo) (userName, groupName string) {
	if stat, ok := info.Sys().(*syscall.Stat_t); ok {
		return userNameFor(strconv.FormatUint(uint64(stat.Uid), 10)),
			groupNameFor(strconv.FormatUint(uint64(stat.Gid), 10))
	}
	return CurrentOwner()
}
