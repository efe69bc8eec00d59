package execve

import (
	"github.com/meefik/PRoot/internal/tracee"
)

// MaterialiseArgv writes av into the tracee's stack region below its
// current stack pointer, then repoints syscall-arg-2 and the stack-pointer
// register at the new argv. It returns the number of stack bytes
// consumed (previous_sp - new_sp), the same value execve.c's set_argv
// returns.
//
// This is the Go equivalent of execve.c's set_argv, with one addition:
// the pointer-table base is aligned down to a machine word boundary
// before any pointer is written, resolving spec.md §9's open question
// about unenforced alignment.
func MaterialiseArgv(gw tracee.Gateway, av *ArgVector) (int, error) {
	previousSP, err := gw.StackPointer()
	if err != nil {
		return 0, err
	}

	entries := av.entries()
	n := len(entries)
	childPtrs := make([]tracee.Word, n+1)

	argp := previousSP
	for i := n - 1; i >= 0; i-- {
		// Strings are packed unaligned, back to front, mirroring the
		// backward-growing layout in spec.md §3. The loop in set_argv
		// walks forward through argv, so its argv[0] sits highest;
		// walking backward here puts argv[n-1] highest instead. The
		// strings occupy the same total bytes and the pointer table
		// records each one's address, so the argv the tracee sees is
		// the same.
		size := tracee.Word(len(entries[i]) + 1)
		argp -= size
		if err := gw.WriteBytes(argp, append(append([]byte{}, entries[i]...), 0)); err != nil {
			return 0, err
		}
		childPtrs[i] = argp
	}
	childPtrs[n] = 0

	// Align the pointer-table base down to a word boundary before
	// writing any pointer; each pointer is written with one word-granular
	// PokeWord (PTRACE_POKEDATA), and the original C source does not enforce
	// this (spec.md §9, open question #4).
	argp -= argp % tracee.Word(tracee.WordSize)

	for i := n; i >= 0; i-- {
		argp -= tracee.WordSize
		if err := gw.PokeWord(argp, childPtrs[i]); err != nil {
			return 0, err
		}
	}
	newArgvBase := argp

	if err := gw.SetSyscallArg(tracee.Arg2, newArgvBase); err != nil {
		return 0, err
	}

	// Update the stack pointer before returning control, so that later
	// path rewrites in the same stop (e.g. set_sysarg_path-equivalent
	// calls) don't clobber this argv's reserved region. Spec.md §5.
	if err := gw.SetStackPointer(newArgvBase); err != nil {
		return 0, err
	}

	return int(previousSP - newArgvBase), nil
}
