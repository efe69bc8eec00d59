// Package pathtrans maps guest-visible paths to host-side paths under a
// virtual root, the same role execve.c's translate_path plays for the
// rest of this core.
package pathtrans

import (
	"path/filepath"
	"strings"
)

// Mode describes what kind of entry the caller expects to find at the
// translated path; it mirrors execve.c's REGULAR argument to
// translate_path.
type Mode int

const (
	// Regular indicates the caller expects (or will create) a regular
	// file.
	Regular Mode = iota
	// Directory indicates the caller expects a directory.
	Directory
)

// Translator maps a guest path to a host path under a virtual root.
type Translator interface {
	// Translate resolves guestPath (optionally relative to dirfd, which
	// this core always passes as AT_FDCWD-equivalent, i.e. ignored) to
	// its host-side equivalent under the virtual root.
	Translate(pid int, dirfd int, guestPath string, mode Mode) (hostPath string, err error)
}

// Root is a Translator rooted at a single fixed host directory. It
// implements the virtual-root join/clean semantics this core depends on;
// symlink resolution, bind mounts, and per-process root overrides belong
// to the wider sandbox and are out of scope here.
type Root struct {
	// HostRoot is the host-absolute directory substituted for "/" from
	// the tracee's perspective.
	HostRoot string
}

var _ Translator = Root{}

// Translate implements Translator.Translate.
func (r Root) Translate(_ int, _ int, guestPath string, _ Mode) (string, error) {
	clean := filepath.Clean("/" + guestPath)
	joined := filepath.Join(r.HostRoot, clean)

	// Cleaning the "/"-anchored path already drops any ".." above the
	// guest root; this check is a defensive fallback that maps any result
	// not under HostRoot to HostRoot itself.
	if !strings.HasPrefix(joined, filepath.Clean(r.HostRoot)) {
		joined = r.HostRoot
	}
	return joined, nil
}
