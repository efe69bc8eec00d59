package execve

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/meefik/PRoot/internal/pathtrans"
	"github.com/meefik/PRoot/internal/plog"
	"github.com/meefik/PRoot/internal/tracee"
	"golang.org/x/sys/unix"
)

// shebangState is one of the three explicit parser states recommended by
// spec.md's Design Notes, replacing the original C source's single loop
// with an in-place NUL sentinel.
type shebangState int

const (
	stateSkipLeadingWS shebangState = iota
	stateReadInterpreter
	stateReadArgument
)

// ExpandShebang inspects the host file that guestPath translates to. If it
// begins with "#!", it parses one interpreter path and at most one
// argument, rewrites av's head accordingly, and returns the interpreter's
// guest-side path (to become the next iteration's guestPath) with
// expanded=true. Otherwise it returns expanded=false and av is untouched.
//
// This is the Go equivalent of execve.c's expand_shebang.
func ExpandShebang(pt pathtrans.Translator, pid int, guestPath string, av *ArgVector) (nextGuestPath string, expanded bool, err error) {
	hostPath, err := pt.Translate(pid, 0, guestPath, pathtrans.Regular)
	if err != nil {
		return "", false, err
	}

	f, err := os.Open(hostPath)
	if err != nil {
		return "", false, toErrno(err)
	}
	defer f.Close()

	var hdr [2]byte
	if _, err := io.ReadFull(f, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			// Short read at the very top of the file: lenient "not a
			// script", per spec.md's preserved leniency.
			return "", false, nil
		}
		return "", false, toErrno(err)
	}
	if hdr[0] != '#' || hdr[1] != '!' {
		return "", false, nil
	}

	interp, arg, status, err := parseShebangTail(f)
	if err != nil {
		return "", false, err
	}
	if status == 0 {
		// Began with "#!" but the header line was malformed or
		// short-read mid-line; preserved leniency (spec.md §9, open
		// question #2).
		return "", false, nil
	}

	plog.Debugf("expand shebang: %v -> %s %s %s", av.Strings(), interp, arg, guestPath)

	switch status {
	case 1:
		av.ReplaceHead(interp, guestPath)
	case 2:
		av.ReplaceHead(interp, arg, guestPath)
	default:
		panic("execve: impossible shebang expansion status")
	}

	return interp, true, nil
}

// parseShebangTail parses everything after the leading "#!" has already
// been consumed from f, byte at a time, per spec.md §4.3 steps 3-5.
//
// status is 0 for "not a script" (short read mid-line), 1 for "expanded,
// 1 replacement" (interpreter only), or 2 for "expanded, 2 replacements"
// (interpreter + argument).
func parseShebangTail(f *os.File) (interpreter, argument string, status int, err error) {
	state := stateSkipLeadingWS
	interpBuf := make([]byte, 0, 64)
	argBuf := make([]byte, 0, 64)

	var tmp [1]byte
	for {
		n, rerr := f.Read(tmp[:])
		if n < 1 {
			if rerr == nil || errors.Is(rerr, io.EOF) {
				// EOF or short read: not a script, per spec.md's
				// preserved leniency.
				return "", "", 0, nil
			}
			return "", "", 0, toErrno(rerr)
		}
		b := tmp[0]

		if state == stateSkipLeadingWS {
			if b == ' ' || b == '\t' {
				continue
			}
			state = stateReadInterpreter
		}

		if state == stateReadInterpreter {
			switch {
			case b == '\n' || b == '\r':
				return string(interpBuf), "", 1, nil
			case b == ' ' || b == '\t':
				state = stateReadArgument
			default:
				if len(interpBuf) >= tracee.PathMax {
					return "", "", 0, unix.ENAMETOOLONG
				}
				interpBuf = append(interpBuf, b)
			}
			continue
		}

		// state == stateReadArgument
		switch {
		case b == '\n' || b == '\r':
			return string(interpBuf), string(trimTrailingWS(argBuf)), 2, nil
		case (b == ' ' || b == '\t') && len(argBuf) == 0:
			// Skip separators between the interpreter and the
			// argument.
		default:
			if len(argBuf) >= tracee.ArgMax {
				// The argument is silently dropped; degrade to 1
				// replacement, per spec.md §4.3 step 5.
				return string(interpBuf), "", 1, nil
			}
			argBuf = append(argBuf, b)
		}
	}
}

// trimTrailingWS strips trailing ASCII spaces and horizontal tabs.
func trimTrailingWS(b []byte) []byte {
	i := len(b)
	for i > 0 && (b[i-1] == ' ' || b[i-1] == '\t') {
		i--
	}
	return b[:i]
}

// toErrno unwraps an os/io error down to the underlying unix.Errno where
// possible, so callers propagate a plain errno value as spec.md §7
// requires.
func toErrno(err error) error {
	var perr *fs.PathError
	if errors.As(err, &perr) {
		return perr.Err
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return err
}
