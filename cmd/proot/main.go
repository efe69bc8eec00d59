// Command proot launches a program under a virtual filesystem root,
// translating its execve(2) calls (including #! interpreter chains and an
// optional runner executable) the way the rest of this module's packages
// implement.
package main

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/meefik/PRoot/internal/execve"
	"github.com/meefik/PRoot/internal/extension"
	"github.com/meefik/PRoot/internal/pathtrans"
	"github.com/meefik/PRoot/internal/plog"
	"github.com/meefik/PRoot/internal/tracee"
	"github.com/spf13/pflag"
	"golang.org/x/sys/unix"
)

var (
	flagRoot    = pflag.StringP("root", "r", "", "new filesystem root (required)")
	flagRunner  = pflag.StringP("runner", "q", "", "guest path of a runner executable to prepend to every execve")
	flagVerbose = pflag.BoolP("verbose", "v", false, "enable debug logging")
)

func main() {
	pflag.Parse()
	plog.SetVerbose(*flagVerbose)

	if *flagRoot == "" || pflag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: proot -r <new_root> [-q <runner>] [-v] -- <command> [args...]")
		pflag.Usage()
		os.Exit(2)
	}

	root := pathtrans.Root{HostRoot: *flagRoot}

	// init_module_execve's contract: a configured runner must be fatal
	// to set up wrong, before any tracee is ever launched.
	if err := execve.InitRunner(0, root, *flagRunner); err != nil {
		plog.Infof("runner initialisation failed: %v", err)
		os.Exit(1)
	}

	args := pflag.Args()
	if err := run(root, args[0], args[1:]); err != nil {
		plog.Infof("%v", err)
		os.Exit(1)
	}
}

// run launches target as a traced child and translates every execve(2)
// syscall it makes until it exits. Only that one process is traced;
// processes it forks run untraced.
func run(pt pathtrans.Translator, target string, args []string) error {
	cmd := exec.Command(target, args...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %q: %w", target, err)
	}
	pid := cmd.Process.Pid

	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		return fmt.Errorf("waiting for initial stop of pid %d: %w", pid, err)
	}

	o := &execve.Orchestrator{Translator: pt}
	gw := tracee.NewPtraceGateway(pid)
	registry := extension.NewRegistry()
	inSyscall := false

	for {
		if err := unix.PtraceSyscall(pid, 0); err != nil {
			return fmt.Errorf("PTRACE_SYSCALL(%d): %w", pid, err)
		}
		if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
			return fmt.Errorf("wait4(%d): %w", pid, err)
		}

		if ws.Exited() || ws.Signaled() {
			return nil
		}
		if !ws.Stopped() {
			continue
		}

		inSyscall = !inSyscall

		var regs unix.PtraceRegs
		if err := unix.PtraceGetRegs(pid, &regs); err != nil {
			plog.Warningf("PTRACE_GETREGS(%d): %v", pid, err)
			continue
		}
		sysnum := uintptr(regs.Orig_rax)

		if !inSyscall {
			// Syscall-exit stop: the core itself only acts on entry, but
			// registered extensions still want to see the exit half.
			if err := registry.Dispatch(extension.SyscallExitEnd, sysnum, 0); err != nil {
				plog.Warningf("extension dispatch SYSCALL_EXIT_END(%d): %v", pid, err)
			}
			continue
		}

		if regs.Orig_rax == unix.SYS_EXECVE {
			if _, err := o.Run(pid, gw); err != nil {
				// Per spec, translation failures are fatal to that one
				// execve; the kernel still sees the untranslated call and
				// will most likely report ENOENT itself. There is no local
				// recovery here, only a diagnostic.
				plog.Warningf("translate_execve(%d): %v", pid, err)
			}
		}

		if err := registry.Dispatch(extension.SyscallEnterEnd, sysnum, 0); err != nil {
			plog.Warningf("extension dispatch SYSCALL_ENTER_END(%d): %v", pid, err)
		}
	}
}
