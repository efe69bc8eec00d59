package tracee

import "golang.org/x/sys/unix"

// FakeGateway is an in-process, byte-addressable stand-in for a real
// tracee's address space. It is used by tests that exercise the execve
// translation core without a real ptrace target.
type FakeGateway struct {
	mem  map[Word]byte
	args [6]Word
	sp   Word

	// FaultAt, if non-zero, makes any access at that address return
	// EFAULT, to exercise error paths.
	FaultAt Word
}

var _ Gateway = (*FakeGateway)(nil)

// NewFakeGateway returns an empty fake tracee with its stack pointer set
// to sp.
func NewFakeGateway(sp Word) *FakeGateway {
	return &FakeGateway{
		mem: make(map[Word]byte),
		sp:  sp,
	}
}

// PeekWord implements Gateway.PeekWord.
func (f *FakeGateway) PeekWord(addr Word) (Word, error) {
	if f.faulting(addr) {
		return 0, faultErr
	}
	var b [WordSize]byte
	for i := 0; i < WordSize; i++ {
		b[i] = f.mem[addr+Word(i)]
	}
	return bytesToWord(b[:]), nil
}

// PokeWord implements Gateway.PokeWord.
func (f *FakeGateway) PokeWord(addr Word, v Word) error {
	if f.faulting(addr) {
		return faultErr
	}
	b := wordToBytes(v)
	for i := 0; i < WordSize; i++ {
		f.mem[addr+Word(i)] = b[i]
	}
	return nil
}

// ReadCString implements Gateway.ReadCString.
func (f *FakeGateway) ReadCString(addr Word, max int) (string, error) {
	buf := make([]byte, 0, 32)
	for i := 0; i < max; i++ {
		a := addr + Word(i)
		if f.faulting(a) {
			return "", faultErr
		}
		b, ok := f.mem[a]
		if !ok {
			return "", faultErr
		}
		if b == 0 {
			return string(buf), nil
		}
		buf = append(buf, b)
	}
	return "", unix.ENAMETOOLONG
}

// WriteBytes implements Gateway.WriteBytes.
func (f *FakeGateway) WriteBytes(addr Word, b []byte) error {
	for i, c := range b {
		a := addr + Word(i)
		if f.faulting(a) {
			return faultErr
		}
		f.mem[a] = c
	}
	return nil
}

// SyscallArg implements Gateway.SyscallArg.
func (f *FakeGateway) SyscallArg(which Which) (Word, error) {
	return f.args[which], nil
}

// SetSyscallArg implements Gateway.SetSyscallArg.
func (f *FakeGateway) SetSyscallArg(which Which, v Word) error {
	f.args[which] = v
	return nil
}

// SyscallArgPath implements Gateway.SyscallArgPath.
func (f *FakeGateway) SyscallArgPath(which Which) (string, error) {
	addr, err := f.SyscallArg(which)
	if err != nil {
		return "", err
	}
	return f.ReadCString(addr, PathMax)
}

// SetSyscallArgPath implements Gateway.SetSyscallArgPath.
func (f *FakeGateway) SetSyscallArgPath(which Which, path string) error {
	sp, err := f.StackPointer()
	if err != nil {
		return err
	}
	size := Word(len(path) + 1)
	addr := sp - size
	if err := f.WriteBytes(addr, append([]byte(path), 0)); err != nil {
		return err
	}
	if err := f.SetStackPointer(addr); err != nil {
		return err
	}
	return f.SetSyscallArg(which, addr)
}

// StackPointer implements Gateway.StackPointer.
func (f *FakeGateway) StackPointer() (Word, error) {
	return f.sp, nil
}

// SetStackPointer implements Gateway.SetStackPointer.
func (f *FakeGateway) SetStackPointer(v Word) error {
	f.sp = v
	return nil
}

func (f *FakeGateway) faulting(addr Word) bool {
	return f.FaultAt != 0 && addr == f.FaultAt
}

// SeedArgv writes argv as a NULL-terminated pointer table plus backing
// strings just below the current stack pointer, and points Arg2 at the
// table base, the same shape a real execve(2) entry stop presents. It
// returns the new stack pointer (the table base).
func (f *FakeGateway) SeedArgv(argv []string) Word {
	cursor := f.sp
	ptrs := make([]Word, len(argv)+1)
	for i, s := range argv {
		b := append([]byte(s), 0)
		cursor -= Word(len(b))
		f.WriteBytes(cursor, b)
		ptrs[i] = cursor
	}
	ptrs[len(argv)] = 0
	cursor -= cursor % WordSize // align down
	for i := len(ptrs) - 1; i >= 0; i-- {
		cursor -= WordSize
		f.PokeWord(cursor, ptrs[i])
	}
	f.sp = cursor
	f.args[Arg2] = cursor
	return cursor
}

// ReadArgv reads back the argv currently pointed to by Arg2, for test
// assertions.
func (f *FakeGateway) ReadArgv() ([]string, error) {
	base, err := f.SyscallArg(Arg2)
	if err != nil {
		return nil, err
	}
	var out []string
	for i := 0; ; i++ {
		p, err := f.PeekWord(base + Word(i)*WordSize)
		if err != nil {
			return nil, err
		}
		if p == 0 {
			return out, nil
		}
		s, err := f.ReadCString(p, ArgMax)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
}
