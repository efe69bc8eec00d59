package tracee

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sys/unix"
)

func TestSeedAndReadArgv(t *testing.T) {
	gw := NewFakeGateway(0x7ffff000)
	want := []string{"true", "a", "b"}
	gw.SeedArgv(want)

	got, err := gw.ReadArgv()
	if err != nil {
		t.Fatalf("ReadArgv: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("argv mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCStringTooLong(t *testing.T) {
	gw := NewFakeGateway(0x1000)
	long := make([]byte, 300)
	for i := range long {
		long[i] = 'a'
	}
	if err := gw.WriteBytes(0, long); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if _, err := gw.ReadCString(0, 128); err != unix.ENAMETOOLONG {
		t.Fatalf("ReadCString: got %v, want ENAMETOOLONG", err)
	}
}

func TestPeekPokeRoundTrip(t *testing.T) {
	gw := NewFakeGateway(0)
	if err := gw.PokeWord(8, 0xdeadbeef); err != nil {
		t.Fatal(err)
	}
	got, err := gw.PeekWord(8)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0xdeadbeef {
		t.Errorf("got %#x, want %#x", got, 0xdeadbeef)
	}
}

func TestFaultInjection(t *testing.T) {
	gw := NewFakeGateway(0)
	gw.FaultAt = 16
	if _, err := gw.PeekWord(16); err != unix.EFAULT {
		t.Fatalf("got %v, want EFAULT", err)
	}
}

func TestStackPointerRoundTrip(t *testing.T) {
	gw := NewFakeGateway(0x1000)
	if err := gw.SetStackPointer(0x900); err != nil {
		t.Fatal(err)
	}
	sp, err := gw.StackPointer()
	if err != nil {
		t.Fatal(err)
	}
	if sp != 0x900 {
		t.Errorf("got %#x, want %#x", sp, 0x900)
	}
}

func TestSyscallArgPathRoundTrip(t *testing.T) {
	gw := NewFakeGateway(0x2000)
	if err := gw.SetSyscallArgPath(Arg1, "/tmp/new_root/bin/true"); err != nil {
		t.Fatal(err)
	}
	got, err := gw.SyscallArgPath(Arg1)
	if err != nil {
		t.Fatal(err)
	}
	if got != "/tmp/new_root/bin/true" {
		t.Errorf("got %q", got)
	}
}
