// Package platform resolves local user and group identities for archive
// entries.
package platform

import (
	"os"
	"os/user"
	"strconv"
	"sync"
)

var (
	idMu     sync.Mutex
	uidCache = map[string]int{}
	gidCache = map[string]int{}
)

// CurrentOwner returns the user and group names of the running process.
// Names that cannot be resolved fall back to the numeric id.
func CurrentOwner() (userName, groupName string) {
	return userNameFor(strconv.Itoa(os.Getuid())), groupNameFor(strconv.Itoa(os.Getgid()))
}

// UserID returns the numeric id for userName, or 0 when unknown.
func UserID(userName string) int {
	return lookupID(userName, uidCache, func(name string) (string, error) {
		u, err := user.Lookup(name)
		if err != nil {
			return "", err
		}
		return u.Uid, nil
	})
}

// GroupID returns the numeric id for groupName, or 0 when unknown.
func GroupID(groupName string) int {
	return lookupID(groupName, gidCache, func(name string) (string, error) {
		g, err := user.LookupGroup(name)
		if err != nil {
			return "", err
		}
		return g.Gid, nil
	})
}

func lookupID(name string, cache map[string]int, lookup func(string) (string, error)) int {
	if name == "" {
		return 0
	}
	if id, err := strconv.Atoi(name); err == nil && id >= 0 {
		return id
	}

	idMu.Lock()
	defer idMu.Unlock()
	if id, ok := cache[name]; ok {
		return id
	}
	id := 0
	if s, err := lookup(name); err == nil {
		if n, err := strconv.Atoi(s); err == nil {
			id = n
		}
	}
	cache[name] = id
	return id
}

func userNameFor(uid string) string {
	if u, err := user.LookupId(uid); err == nil {
		return u.Username
	}
	return uid
}

func groupNameFor(gid string) string {
	if g, err := user.LookupGroupId(gid); err == nil {
		return g.Name
	}
	return gid
}
