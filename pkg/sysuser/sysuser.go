// Package sysuser resolves the --user option and applies ownership to
// deployment files so a router started as root can drop privileges.
package sysuser

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
)

// Operations is the system-user surface of the deployment step.
// Injected so tests can run without root.
type Operations interface {
	// Lookup resolves a username to its uid and gid.
	Lookup(name string) (uid, gid int, err error)
	// Chown transfers ownership of path.
	Chown(path string, uid, gid int) error
}

// System performs real lookups and ownership changes.
type System struct{}

func (System) Lookup(name string) (int, int, error) {
	u, err := user.Lookup(name)
	if err != nil {
		return 0, 0, fmt.Errorf("Can't use user '%s'. Please check that the user exists!", name)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, 0, fmt.Errorf("user '%s' has a non-numeric uid %q", name, u.Uid)
	}
	gid, err := strconv.Atoi(u.Gid)
	if err != nil {
		return 0, 0, fmt.Errorf("user '%s' has a non-numeric gid %q", name, u.Gid)
	}
	return uid, gid, nil
}

func (System) Chown(path string, uid, gid int) error {
	return os.Chown(path, uid, gid)
}

// Recorder is a test double capturing chown calls instead of applying
// them.
type Recorder struct {
	UID, GID int
	Chowned  []string
	Fail     error
}

func (r *Recorder) Lookup(string) (int, int, error) {
	if r.Fail != nil {
		return 0, 0, r.Fail
	}
	return r.UID, r.GID, nil
}

func (r *Recorder) Chown(path string, uid, gid int) error {
	if r.Fail != nil {
		return r.Fail
	}
	r.Chowned = append(r.Chowned, path)
	return nil
}
