//go:build !unix

package platform

import "io/fs"

// FileOwner reports the process owner on systems without POSIX ownership.
func FileOwner(_ fs.FileInfo) (userName, groupName string) {
	return CurrentOwner()
}
