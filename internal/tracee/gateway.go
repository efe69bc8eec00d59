// Package tracee provides the memory and register primitives the execve
// translation core needs against a traced process: word-granular peek and
// poke, bounded NUL-terminated string reads, byte-range writes, and
// syscall-argument / stack-pointer register access.
package tracee

import "golang.org/x/sys/unix"

// Word is the tracee's native machine word.
type Word uintptr

// WordSize is the size in bytes of a tracee machine word on the target
// architecture.
const WordSize = 8

// Which names one of the six syscall argument registers, in the Linux
// x86-64 syscall calling convention (rdi, rsi, rdx, r10, r8, r9).
type Which int

// Syscall argument slots, numbered the way execve.c's SYSARG_1..SYSARG_6
// number them.
const (
	Arg1 Which = iota
	Arg2
	Arg3
	Arg4
	Arg5
	Arg6
)

// Gateway is everything the execve translation core needs from a stopped
// tracee. The real implementation is PtraceGateway; tests use a fake,
// in-process byte-addressable implementation.
type Gateway interface {
	// PeekWord reads one machine word at addr in the tracee's address
	// space.
	PeekWord(addr Word) (Word, error)

	// PokeWord writes one machine word at addr in the tracee's address
	// space.
	PokeWord(addr Word, v Word) error

	// ReadCString reads a NUL-terminated string at addr, bounded to max
	// bytes (including the terminator). It returns unix.ENAMETOOLONG if
	// the string does not terminate within the bound.
	ReadCString(addr Word, max int) (string, error)

	// WriteBytes copies b into the tracee's address space starting at
	// addr.
	WriteBytes(addr Word, b []byte) error

	// SyscallArg reads one of the six syscall argument registers.
	SyscallArg(which Which) (Word, error)

	// SetSyscallArg writes one of the six syscall argument registers.
	SetSyscallArg(which Which, v Word) error

	// SyscallArgPath reads a NUL-terminated path from the tracee's
	// address space pointed to by the given syscall argument register.
	SyscallArgPath(which Which) (string, error)

	// SetSyscallArgPath writes path into fresh tracee memory and points
	// the given syscall argument register at it.
	SetSyscallArgPath(which Which, path string) error

	// StackPointer reads the stack-pointer register.
	StackPointer() (Word, error)

	// SetStackPointer writes the stack-pointer register.
	SetStackPointer(v Word) error
}

// PathMax bounds path-like reads, matching PATH_MAX on Linux.
const PathMax = 4096

// ArgMax bounds a single argv entry read, matching MAX_ARG_STRLEN's
// neighborhood on Linux (the historic ARG_MAX).
const ArgMax = 131072

// faultErr is returned whenever a ptrace peek/poke fails; it is always
// unix.EFAULT per spec.
var faultErr error = unix.EFAULT
