// Package execve implements the execve(2) argument-translation core: it
// resolves #! interpreter chains inside a virtual root, optionally
// prepends a runner executable, and materialises the resulting argv back
// into the tracee's own stack.
package execve

import (
	"github.com/meefik/PRoot/internal/tracee"
)

// ArgVector is an owned, ordered sequence of owned argument strings, the
// Go replacement for execve.c's char **argv plus its manual
// realloc/memmove bookkeeping (see DESIGN.md, "Argv as an owned sequence
// of owned strings").
//
// Entries are split into a head (everything substitute_argv0-style
// replacement has touched) and a tail (argv[1:] as it stood when the
// ArgVector was built, never touched again). A chain of shebang
// expansions replaces the head wholesale on every iteration instead of
// prepending onto the previous iteration's head: each level's
// [interpreter, argument?, filename] triple describes how to invoke the
// script that was just discovered, superseding the previous level's
// triple rather than accumulating alongside it. Only the tail -- the
// arguments the original caller actually supplied -- survives the whole
// chain. See DESIGN.md's "nested shebang head replacement" entry.
type ArgVector struct {
	head    [][]byte
	tail    [][]byte
	dropped bool
}

// NewArgVector builds an ArgVector directly from argument strings, mostly
// useful in tests.
func NewArgVector(args ...string) *ArgVector {
	av := &ArgVector{}
	if len(args) == 0 {
		return av
	}
	av.head = [][]byte{[]byte(args[0])}
	for _, a := range args[1:] {
		av.tail = append(av.tail, []byte(a))
	}
	return av
}

// FromTracee walks the tracee's argv pointer table (pointed to by
// syscall-arg-2) one word at a time, stopping at the NULL sentinel, and
// copies each entry into an owned ArgVector. It is the Go equivalent of
// execve.c's get_argv.
func FromTracee(gw tracee.Gateway) (*ArgVector, error) {
	base, err := gw.SyscallArg(tracee.Arg2)
	if err != nil {
		return nil, err
	}

	var ptrs []tracee.Word
	for i := 0; ; i++ {
		p, err := gw.PeekWord(base + tracee.Word(i)*tracee.WordSize)
		if err != nil {
			return nil, err
		}
		if p == 0 {
			break
		}
		ptrs = append(ptrs, p)
	}

	entries := make([][]byte, len(ptrs))
	for i, p := range ptrs {
		s, err := gw.ReadCString(p, tracee.ArgMax)
		if err != nil {
			// Partial construction unwinds automatically: nothing has
			// been published yet, and the already-read entries are
			// ordinary GC'd slices.
			return nil, err
		}
		entries[i] = []byte(s)
	}

	av := &ArgVector{}
	if len(entries) > 0 {
		av.head = entries[:1]
		av.tail = entries[1:]
	}
	return av, nil
}

// Len returns the number of live entries.
func (av *ArgVector) Len() int {
	return len(av.head) + len(av.tail)
}

// entries returns the full, current argv as owned byte slices, head
// followed by tail, for the stack materialiser.
func (av *ArgVector) entries() [][]byte {
	out := make([][]byte, 0, av.Len())
	out = append(out, av.head...)
	out = append(out, av.tail...)
	return out
}

// Strings returns the entries as a []string, in order, for read-only use
// (logging, tests, handing to the stack materialiser).
func (av *ArgVector) Strings() []string {
	entries := av.entries()
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = string(e)
	}
	return out
}

// ReplaceHead replaces the entire current head with newHead, leaving the
// tail -- the arguments the original caller supplied, fixed at
// construction time -- untouched.
//
// This is the Go equivalent of execve.c's substitute_argv0, generalised
// for repeated calls: a single call on a vector whose head is still just
// the original argv[0] behaves exactly like substitute_argv0's "drop
// argv[0], prepend new entries, keep argv[1:]" description (injectRunner
// passes the surviving head entries back in itself, so it keeps that
// behaviour after shebang expansion). A *chain* of calls (nested shebang expansion)
// does not accumulate each level's dropped head onto the tail the way a
// literal per-call reading of that description would; instead every new
// head supersedes the previous one outright, since it describes how to
// invoke the script the previous head's interpreter turned out to be.
// Only the original tail survives the whole chain. Per spec.md's open
// question about "free the old argv[0] before overwriting it", the old
// head is always dropped (never aliased into the result) before the new
// entries are installed.
func (av *ArgVector) ReplaceHead(newHead ...string) {
	if av.dropped {
		panic("execve: ReplaceHead on a dropped ArgVector")
	}
	head := make([][]byte, len(newHead))
	for i, h := range newHead {
		head[i] = []byte(h)
	}
	av.head = head
}

// Close releases av's backing entries, the Go equivalent of execve.c's
// drop(av) (spec.md §4.2). Go's GC reclaims the underlying byte slices on
// its own once nothing references them; Close's job is narrower -- it
// severs av's own references so a materialised ArgVector does not keep
// its (by then committed-to-the-tracee-stack) strings artificially alive,
// and it makes a later ReplaceHead on av panic rather than silently reuse
// stale entries. After Close, Len reports 0 and Strings returns an empty
// slice. Close is idempotent.
func (av *ArgVector) Close() {
	av.head = nil
	av.tail = nil
	av.dropped = true
}
