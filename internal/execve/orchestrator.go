package execve

import (
	"github.com/meefik/PRoot/internal/pathtrans"
	"github.com/meefik/PRoot/internal/plog"
	"github.com/meefik/PRoot/internal/tracee"
)

// ELFCheck validates a final host-side executable path before it is
// committed. It is the pluggable equivalent of execve.c's
// check_elf_interpreter stub (spec.md §4.6 step 6, §9 "ELF interpreter
// check stub").
type ELFCheck func(hostPath string) error

// NoopELFCheck is the default ELFCheck: a no-op that always succeeds,
// exactly matching execve.c's check_elf_interpreter body.
func NoopELFCheck(string) error { return nil }

// Orchestrator runs the top-level execve(2) translation state machine:
// FETCH -> EXPAND* -> TRANSLATE -> INJECT? -> MATERIALISE? -> CHECK ->
// COMMIT. It is the Go equivalent of execve.c's translate_execve.
type Orchestrator struct {
	// Translator maps guest paths to host paths under the virtual root.
	Translator pathtrans.Translator

	// Check is invoked on the final host path before it is committed.
	// Defaults to NoopELFCheck if left nil.
	Check ELFCheck
}

// Result reports what a successful Run did, beyond the plain "stack bytes
// consumed" integer spec.md's translate_execve returns, for logging and
// tests.
type Result struct {
	// SizeConsumed is previous_sp - new_sp, or 0 if nothing was
	// materialised.
	SizeConsumed int
	// ShebangDepth is the number of successful shebang expansions.
	ShebangDepth int
	// HostPath is the final, committed executable path.
	HostPath string
}

// Run performs one execve(2) translation against the tracee identified by
// pid, using gw as the memory/register gateway. On success it returns the
// number of tracee stack bytes consumed by a rewritten argv (0 if argv was
// untouched) together with the rest of Result; on failure it returns the
// error that should be surfaced as a failed execve to the tracee.
//
// Every step's error is fatal to the translation: Run never retries and
// never partially recovers, per spec.md §7.
func (o *Orchestrator) Run(pid int, gw tracee.Gateway) (Result, error) {
	check := o.Check
	if check == nil {
		check = NoopELFCheck
	}

	// FETCH
	guestPath, err := gw.SyscallArgPath(tracee.Arg1)
	if err != nil {
		return Result{}, err
	}
	av, err := FromTracee(gw)
	if err != nil {
		return Result{}, err
	}
	defer av.Close()

	// EXPAND*
	shebangDepth := 0
	for {
		next, expanded, err := ExpandShebang(o.Translator, pid, guestPath, av)
		if err != nil {
			return Result{}, err
		}
		if !expanded {
			break
		}
		guestPath = next
		shebangDepth++
	}

	// TRANSLATE
	hostPath, err := o.Translator.Translate(pid, 0, guestPath, pathtrans.Regular)
	if err != nil {
		return Result{}, err
	}

	// INJECT?
	runnerInjected := false
	if newHostPath, ok, err := injectRunner(av, guestPath, hostPath); err != nil {
		return Result{}, err
	} else if ok {
		hostPath = newHostPath
		runnerInjected = true
	}

	// MATERIALISE?
	sizeConsumed := 0
	if shebangDepth > 0 || runnerInjected {
		n, err := MaterialiseArgv(gw, av)
		if err != nil {
			return Result{}, err
		}
		sizeConsumed = n
	}

	// CHECK
	if err := check(hostPath); err != nil {
		return Result{}, err
	}

	// COMMIT
	if err := gw.SetSyscallArgPath(tracee.Arg1, hostPath); err != nil {
		return Result{}, err
	}

	plog.Debugf("translate_execve: pid=%d host_path=%s shebang_depth=%d size_consumed=%d",
		pid, hostPath, shebangDepth, sizeConsumed)

	return Result{
		SizeConsumed: sizeConsumed,
		ShebangDepth: shebangDepth,
		HostPath:     hostPath,
	}, nil
}
