// Package extension provides the registration surface that lets other
// subsystems (fake_link-style syscall emulation, among others) hook into
// the same per-syscall event stream the execve translation core runs on,
// without the orchestrator importing them directly.
package extension

import (
	"fmt"
	"sync"
)

// Event is a point in a syscall's tracing lifecycle at which a registered
// Extension's Handler is invoked.
type Event int

const (
	// Initialization fires once, right after an Extension is registered,
	// so its Handler can report which syscalls it wants filtered.
	Initialization Event = iota
	// SyscallEnterEnd fires after the core has finished its own
	// syscall-entry processing (e.g. after Orchestrator.Run for execve).
	SyscallEnterEnd
	// SyscallExitEnd fires after the core has finished its own
	// syscall-exit processing.
	SyscallExitEnd
)

func (e Event) String() string {
	switch e {
	case Initialization:
		return "INITIALIZATION"
	case SyscallEnterEnd:
		return "SYSCALL_ENTER_END"
	case SyscallExitEnd:
		return "SYSCALL_EXIT_END"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// SyscallFilter selects which half of a syscall's lifecycle a
// FilteredSyscall entry applies to.
type SyscallFilter int

const (
	// FilterSysExit requests a callback once the syscall has returned.
	FilterSysExit SyscallFilter = iota
	// FilterSysEnter requests a callback before the syscall runs.
	FilterSysEnter
)

// FilteredSyscall names one syscall number an Extension wants dispatched
// to it, and at which point in its lifecycle. The Go equivalent of
// fake_link.c's FilteredSysnum table (terminated there by
// FILTERED_SYSNUM_END; here a plain slice serves the same purpose without
// a sentinel value).
type FilteredSyscall struct {
	Number uintptr
	Filter SyscallFilter
}

// Handler processes one Event for one Extension. data1 and data2 carry
// event-specific payloads (for SyscallEnterEnd/SyscallExitEnd, the
// syscall number currently being handled); their meaning is defined by
// the Event, mirroring fake_link_callback's (data1, data2) parameters,
// which that handler ignores for every event it cares about.
type Handler func(ext *Extension, event Event, data1, data2 uintptr) error

// Extension is one pluggable syscall handler, registered once at process
// start. FilteredSyscalls is populated by Handler's own response to the
// Initialization event, matching the teacher's pattern of extensions
// declaring their own interest list rather than being told it externally.
type Extension struct {
	Name             string
	Handler          Handler
	FilteredSyscalls []FilteredSyscall
}

// Registry holds every registered Extension and dispatches lifecycle
// events to them in registration order. It is the concrete, minimal
// stand-in for the teacher's extension-dispatch machinery: this module
// does not implement fake_link's own file-copy behaviour (copying a hard
// link's target byte-for-byte falls outside execve translation), only the
// registration and dispatch contract fake_link would plug into.
type Registry struct {
	mu         sync.Mutex
	extensions []*Extension
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds ext to the registry and immediately delivers it an
// Initialization event so it can populate FilteredSyscalls.
func (r *Registry) Register(ext *Extension) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ext.Handler != nil {
		if err := ext.Handler(ext, Initialization, 0, 0); err != nil {
			return fmt.Errorf("extension %q: INITIALIZATION: %w", ext.Name, err)
		}
	}
	r.extensions = append(r.extensions, ext)
	return nil
}

// Dispatch delivers event to every registered Extension whose
// FilteredSyscalls contains sysnum under the matching filter, stopping at
// the first Handler error.
func (r *Registry) Dispatch(event Event, sysnum uintptr, data2 uintptr) error {
	r.mu.Lock()
	exts := append([]*Extension(nil), r.extensions...)
	r.mu.Unlock()

	want := FilterSysEnter
	if event == SyscallExitEnd {
		want = FilterSysExit
	}

	for _, ext := range exts {
		if ext.Handler == nil || !wantsSyscall(ext, sysnum, want) {
			continue
		}
		if err := ext.Handler(ext, event, sysnum, data2); err != nil {
			return fmt.Errorf("extension %q: %s: %w", ext.Name, event, err)
		}
	}
	return nil
}

func wantsSyscall(ext *Extension, sysnum uintptr, filter SyscallFilter) bool {
	for _, fs := range ext.FilteredSyscalls {
		if fs.Number == sysnum && fs.Filter == filter {
			return true
		}
	}
	return false
}
