// Package privilege drops root privileges after a server has bound its
// privileged sockets, the way a standalone DNS daemon traditionally does:
// bind port 53 as root, then become an unprivileged user and group for
// everything after.
package privilege

import (
	"fmt"
	"os/user"
	"strconv"

	"golang.org/x/sys/unix"
)

// Drop switches the process's UID/GID to the named user and group. It is a
// no-op if both are empty, and an error if either is requested while the
// process is not running as root. Call it after binding listening sockets:
// once dropped, re-binding a privileged port is no longer possible.
func Drop(username, groupname string) error {
	if username == "" && groupname == "" {
		return nil
	}
	if unix.Geteuid() != 0 {
		return fmt.Errorf("cannot drop privileges to user=%q group=%q: not running as root", username, groupname)
	}

	if err := unix.Setgroups(nil); err != nil {
		return fmt.Errorf("clearing supplementary groups: %w", err)
	}

	if groupname != "" {
		gid, err := lookupGID(groupname)
		if err != nil {
			return err
		}
		if err := unix.Setgid(gid); err != nil {
			return fmt.Errorf("setgid(%d): %w", gid, err)
		}
	}

	if username != "" {
		uid, err := lookupUID(username)
		if err != nil {
			return err
		}
		if err := unix.Setuid(uid); err != nil {
			return fmt.Errorf("setuid(%d): %w", uid, err)
		}
	}

	return nil
}

func lookupUID(username string) (int, error) {
	u, err := user.Lookup(username)
	if err != nil {
		return 0, fmt.Errorf("looking up user %q: %w", username, err)
	}
	uid, err := strconv.Atoi(u.Uid)
	if err != nil {
		return 0, fmt.Errorf("parsing uid for user %q: %w", username, err)
	}
	return uid, nil
}

func lookupGID(groupname string) (int, error) {
	g, err := user.LookupGroup(groupname)
	if err != nil {
		return 0, fmt.Errorf("looking up group %q: %w", groupname, err)
	}
	gid, err := strconv.Atoi(g.Gid)
	if err != nil {
		return 0, fmt.Errorf("parsing gid for group %q: %w", groupname, err)
	}
	return gid, nil
}
