package execve

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/meefik/PRoot/internal/pathtrans"
	"golang.org/x/sys/unix"
)

func TestInitRunnerDisabledByDefault(t *testing.T) {
	resetRunnerForTest()
	defer resetRunnerForTest()

	if err := InitRunner(0, pathtrans.Root{HostRoot: t.TempDir()}, ""); err != nil {
		t.Fatalf("InitRunner: %v", err)
	}
	if RunnerHostPath() != "" {
		t.Errorf("RunnerHostPath() = %q, want empty", RunnerHostPath())
	}
}

func TestInitRunnerConfigured(t *testing.T) {
	resetRunnerForTest()
	defer resetRunnerForTest()

	root := pathtrans.Root{HostRoot: t.TempDir()}
	writeGuestFile(t, root, "/usr/bin/qemu-arm", []byte("#!/bin/true\n"))

	if err := InitRunner(0, root, "/usr/bin/qemu-arm"); err != nil {
		t.Fatalf("InitRunner: %v", err)
	}
	want := filepath.Join(root.HostRoot, "/usr/bin/qemu-arm")
	if RunnerHostPath() != want {
		t.Errorf("RunnerHostPath() = %q, want %q", RunnerHostPath(), want)
	}
}

func TestInitRunnerCalledTwicePanics(t *testing.T) {
	resetRunnerForTest()
	defer resetRunnerForTest()

	root := pathtrans.Root{HostRoot: t.TempDir()}
	if err := InitRunner(0, root, ""); err != nil {
		t.Fatalf("InitRunner: %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("second InitRunner call did not panic")
		}
	}()
	_ = InitRunner(0, root, "")
}

func TestInjectRunnerNoneConfigured(t *testing.T) {
	resetRunnerForTest()
	defer resetRunnerForTest()

	av := NewArgVector("foo")
	_, ok, err := injectRunner(av, "/bin/foo", "/nonexistent/doesnt/matter")
	if err != nil {
		t.Fatalf("injectRunner: %v", err)
	}
	if ok {
		t.Fatalf("ok = true, want false")
	}
}

func TestInjectRunnerSplicesArgv(t *testing.T) {
	resetRunnerForTest()
	defer resetRunnerForTest()

	root := pathtrans.Root{HostRoot: t.TempDir()}
	writeGuestFile(t, root, "/usr/bin/qemu-arm", []byte("#!/bin/true\n"))
	if err := InitRunner(0, root, "/usr/bin/qemu-arm"); err != nil {
		t.Fatalf("InitRunner: %v", err)
	}
	writeGuestFile(t, root, "/bin/foo", []byte("\x7fELF"))
	targetHostPath := filepath.Join(root.HostRoot, "/bin/foo")

	av := NewArgVector("foo", "a")
	hostPath, ok, err := injectRunner(av, "/bin/foo", targetHostPath)
	if err != nil {
		t.Fatalf("injectRunner: %v", err)
	}
	if !ok {
		t.Fatalf("ok = false, want true")
	}
	if hostPath != RunnerHostPath() {
		t.Errorf("hostPath = %q, want %q", hostPath, RunnerHostPath())
	}
	want := []string{RunnerHostPath(), "/bin/foo", "a"}
	if got := av.Strings(); !cmp.Equal(got, want) {
		t.Errorf("Strings() = %v, want %v", got, want)
	}
}

// TestInjectRunnerTargetMissing exercises spec.md §4.4's "don't launch the
// runner if the program doesn't exist" precondition: the access() checks
// must run against the translated target, not the already-validated
// runner binary.
func TestInjectRunnerTargetMissing(t *testing.T) {
	resetRunnerForTest()
	defer resetRunnerForTest()

	root := pathtrans.Root{HostRoot: t.TempDir()}
	writeGuestFile(t, root, "/usr/bin/qemu-arm", []byte("#!/bin/true\n"))
	if err := InitRunner(0, root, "/usr/bin/qemu-arm"); err != nil {
		t.Fatalf("InitRunner: %v", err)
	}

	av := NewArgVector("foo")
	missingTarget := filepath.Join(root.HostRoot, "/bin/does-not-exist")
	_, ok, err := injectRunner(av, "/bin/does-not-exist", missingTarget)
	if err != unix.ENOENT {
		t.Fatalf("injectRunner err = %v, want ENOENT", err)
	}
	if ok {
		t.Fatalf("ok = true, want false")
	}
}

// TestInjectRunnerTargetNotExecutable exercises the same precondition for
// a target that exists and is readable but lacks the execute bit.
func TestInjectRunnerTargetNotExecutable(t *testing.T) {
	resetRunnerForTest()
	defer resetRunnerForTest()

	root := pathtrans.Root{HostRoot: t.TempDir()}
	writeGuestFile(t, root, "/usr/bin/qemu-arm", []byte("#!/bin/true\n"))
	if err := InitRunner(0, root, "/usr/bin/qemu-arm"); err != nil {
		t.Fatalf("InitRunner: %v", err)
	}
	writeGuestFile(t, root, "/bin/foo", []byte("not executable"))
	targetHostPath := filepath.Join(root.HostRoot, "/bin/foo")
	if err := os.Chmod(targetHostPath, 0o644); err != nil {
		t.Fatalf("Chmod: %v", err)
	}

	av := NewArgVector("foo")
	_, ok, err := injectRunner(av, "/bin/foo", targetHostPath)
	if err != unix.EACCES {
		t.Fatalf("injectRunner err = %v, want EACCES", err)
	}
	if ok {
		t.Fatalf("ok = true, want false")
	}
}

func TestInitRunnerNotExecutable(t *testing.T) {
	resetRunnerForTest()
	defer resetRunnerForTest()

	root := pathtrans.Root{HostRoot: t.TempDir()}
	guestRunner := "/usr/bin/qemu-arm"
	writeGuestFile(t, root, guestRunner, []byte("#!/bin/true\n"))
	host := filepath.Join(root.HostRoot, guestRunner)
	if err := os.Chmod(host, 0o644); err != nil {
		t.Fatalf("Chmod: %v", err)
	}

	if err := InitRunner(0, root, guestRunner); err == nil {
		t.Fatalf("InitRunner: want error for non-executable runner, got nil")
	}
}
