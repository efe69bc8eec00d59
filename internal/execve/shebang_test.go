package execve

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/meefik/PRoot/internal/pathtrans"
	"golang.org/x/sys/unix"
)

func writeGuestFile(t *testing.T, root pathtrans.Root, guestPath string, content []byte) {
	t.Helper()
	host := filepath.Join(root.HostRoot, guestPath)
	if err := os.MkdirAll(filepath.Dir(host), 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(host, content, 0o755); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func newTestRoot(t *testing.T) pathtrans.Root {
	t.Helper()
	return pathtrans.Root{HostRoot: t.TempDir()}
}

func TestExpandShebangNotAScript(t *testing.T) {
	root := newTestRoot(t)
	writeGuestFile(t, root, "/bin/foo", []byte("\x7fELF binary content, not a script"))

	av := NewArgVector("foo")
	next, expanded, err := ExpandShebang(root, 0, "/bin/foo", av)
	if err != nil {
		t.Fatalf("ExpandShebang: %v", err)
	}
	if expanded {
		t.Fatalf("expanded = true, want false; next = %q", next)
	}
	if got, want := av.Strings(), []string{"foo"}; !cmp.Equal(got, want) {
		t.Errorf("av mutated: Strings() = %v, want %v", got, want)
	}
}

func TestExpandShebangInterpreterOnly(t *testing.T) {
	root := newTestRoot(t)
	writeGuestFile(t, root, "/bin/foo.sh", []byte("#!/bin/sh\necho hi\n"))

	av := NewArgVector("foo.sh", "a")
	next, expanded, err := ExpandShebang(root, 0, "/bin/foo.sh", av)
	if err != nil {
		t.Fatalf("ExpandShebang: %v", err)
	}
	if !expanded {
		t.Fatalf("expanded = false, want true")
	}
	if next != "/bin/sh" {
		t.Errorf("next = %q, want /bin/sh", next)
	}
	if got, want := av.Strings(), []string{"/bin/sh", "/bin/foo.sh", "a"}; !cmp.Equal(got, want) {
		t.Errorf("Strings() = %v, want %v", got, want)
	}
}

func TestExpandShebangInterpreterAndArgument(t *testing.T) {
	root := newTestRoot(t)
	writeGuestFile(t, root, "/bin/foo", []byte("#!  /usr/bin/env   python3  \nrest\n"))

	av := NewArgVector("foo")
	next, expanded, err := ExpandShebang(root, 0, "/bin/foo", av)
	if err != nil {
		t.Fatalf("ExpandShebang: %v", err)
	}
	if !expanded {
		t.Fatalf("expanded = false, want true")
	}
	if next != "/usr/bin/env" {
		t.Errorf("next = %q, want /usr/bin/env", next)
	}
	if got, want := av.Strings(), []string{"/usr/bin/env", "python3", "/bin/foo"}; !cmp.Equal(got, want) {
		t.Errorf("Strings() = %v, want %v", got, want)
	}
}

func TestExpandShebangTooLong(t *testing.T) {
	root := newTestRoot(t)
	longInterp := "#!/" + strings.Repeat("x", 5000) + "\n"
	writeGuestFile(t, root, "/bin/foo", []byte(longInterp))

	av := NewArgVector("foo")
	_, _, err := ExpandShebang(root, 0, "/bin/foo", av)
	if err != unix.ENAMETOOLONG {
		t.Fatalf("err = %v, want ENAMETOOLONG", err)
	}
}

func TestExpandShebangShortHeaderIsLenient(t *testing.T) {
	root := newTestRoot(t)
	writeGuestFile(t, root, "/bin/foo", []byte("#"))

	av := NewArgVector("foo")
	_, expanded, err := ExpandShebang(root, 0, "/bin/foo", av)
	if err != nil {
		t.Fatalf("ExpandShebang: %v", err)
	}
	if expanded {
		t.Fatalf("expanded = true, want false")
	}
}

func TestExpandShebangEmptyInterpreterLineIsLenient(t *testing.T) {
	root := newTestRoot(t)
	writeGuestFile(t, root, "/bin/foo", []byte("#!"))

	av := NewArgVector("foo")
	_, expanded, err := ExpandShebang(root, 0, "/bin/foo", av)
	if err != nil {
		t.Fatalf("ExpandShebang: %v", err)
	}
	if expanded {
		t.Fatalf("expanded = true, want false")
	}
}
