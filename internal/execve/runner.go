package execve

import (
	"fmt"
	"sync"

	"github.com/meefik/PRoot/internal/pathtrans"
	"github.com/meefik/PRoot/internal/plog"
	"golang.org/x/sys/unix"
)

// runnerOnce and runnerPath hold the runner configuration: process-wide,
// immutable once set, matching execve.c's
// static char runner[PATH_MAX] and the teacher's package-level singleton
// idiom (globalPool, stubInitAddress, ...) in subprocess.go.
var (
	runnerOnce sync.Once
	runnerPath string // host-absolute; empty means disabled
)

// InitRunner validates and installs the process-wide runner configuration.
// It must be called at most once, before any call to Orchestrator.Run; a
// second call panics, since runner configuration is meant to be fixed for
// the life of the process (spec.md §3).
//
// If guestPath is empty, the runner is left disabled. Any validation
// failure here is intended to be fatal to the calling process (spec.md
// §4.1); InitRunner returns the error and leaves the caller to decide how
// to die.
func InitRunner(pid int, pt pathtrans.Translator, guestPath string) error {
	var outerErr error
	ran := false
	runnerOnce.Do(func() {
		ran = true
		if guestPath == "" {
			return
		}
		host, err := pt.Translate(pid, 0, guestPath, pathtrans.Regular)
		if err != nil {
			outerErr = fmt.Errorf("translate_path(%q): %w", guestPath, err)
			return
		}
		if err := unix.Access(host, unix.X_OK); err != nil {
			outerErr = fmt.Errorf("access(%q, X_OK): %w", host, err)
			return
		}
		runnerPath = host
		plog.Infof("runner configured: %s", host)
	})
	if !ran {
		panic("execve: InitRunner called more than once")
	}
	return outerErr
}

// RunnerHostPath returns the configured runner's host path, or "" if no
// runner is configured.
func RunnerHostPath() string {
	return runnerPath
}

// resetRunnerForTest clears the runner singleton; only used by tests in
// this package, which each want a clean slate.
func resetRunnerForTest() {
	runnerOnce = sync.Once{}
	runnerPath = ""
}

// injectRunner implements the INJECT step: if a runner is configured,
// verify the target program (targetHostPath, the TRANSLATE step's result)
// exists, is readable, and is executable (the three access() checks in
// execve.c's translate_execve — "don't launch the runner if the program
// doesn't exist or isn't readable/executable"), then replace argv[0] with
// the runner and the (pre-translation) guest path, keeping every later
// entry, and report the runner as the new host path to execute.
//
// injectRunner returns ok=false (without error) when no runner is
// configured, so the orchestrator can skip MATERIALISE when nothing
// changed.
func injectRunner(av *ArgVector, guestPath, targetHostPath string) (newHostPath string, ok bool, err error) {
	if runnerPath == "" {
		return "", false, nil
	}

	if err := unix.Access(targetHostPath, unix.F_OK); err != nil {
		return "", false, unix.ENOENT
	}
	if err := unix.Access(targetHostPath, unix.R_OK); err != nil {
		return "", false, unix.EACCES
	}
	if err := unix.Access(targetHostPath, unix.X_OK); err != nil {
		return "", false, unix.EACCES
	}

	// The original guest path is retained as argv[1] so the runner
	// receives it as its first argument; spec.md §4.4. Only argv[0] is
	// replaced: any further head entries left by shebang expansion (the
	// interpreter argument and script path) stay behind it.
	newHead := []string{runnerPath, guestPath}
	if len(av.head) > 1 {
		for _, e := range av.head[1:] {
			newHead = append(newHead, string(e))
		}
	}
	av.ReplaceHead(newHead...)

	return runnerPath, true, nil
}
