// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux
// +build linux

package tracee

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// Linux kernel ptrace request numbers that golang.org/x/sys/unix does not
// export under these names. Only used in this file, mirroring how the
// teacher carries its own local ptrace-adjacent constants.
const (
	ptracePeekUser = 3
	ptracePokeUser = 6
)

// userRegsOffsetSP is the byte offset of `regs.rsp` inside `struct user` on
// linux/amd64, i.e. USER_REGS_OFFSET(REG_SP) from the original C source.
const userRegsOffsetSP = 152

// PtraceGateway is the real Gateway backend: it talks to an actual traced
// process via ptrace(2).
type PtraceGateway struct {
	pid int
}

// NewPtraceGateway returns a Gateway bound to the already-attached,
// currently-stopped tracee pid.
func NewPtraceGateway(pid int) *PtraceGateway {
	return &PtraceGateway{pid: pid}
}

var _ Gateway = (*PtraceGateway)(nil)

// PeekWord implements Gateway.PeekWord.
func (g *PtraceGateway) PeekWord(addr Word) (Word, error) {
	// The raw PEEK requests store the word at the address passed as data
	// rather than returning it.
	var v Word
	_, _, errno := unix.RawSyscall6(unix.SYS_PTRACE, unix.PTRACE_PEEKDATA, uintptr(g.pid), uintptr(addr), uintptr(unsafe.Pointer(&v)), 0, 0)
	if errno != 0 {
		return 0, faultErr
	}
	return v, nil
}

// PokeWord implements Gateway.PokeWord.
func (g *PtraceGateway) PokeWord(addr Word, v Word) error {
	_, _, errno := unix.RawSyscall6(unix.SYS_PTRACE, unix.PTRACE_POKEDATA, uintptr(g.pid), uintptr(addr), uintptr(v), 0, 0)
	if errno != 0 {
		return faultErr
	}
	return nil
}

// ReadCString implements Gateway.ReadCString.
func (g *PtraceGateway) ReadCString(addr Word, max int) (string, error) {
	buf := make([]byte, 0, 64)
	cursor := addr
	for len(buf) < max {
		w, err := g.PeekWord(cursor)
		if err != nil {
			return "", err
		}
		wordBytes := wordToBytes(w)
		for _, b := range wordBytes {
			if b == 0 {
				return string(buf), nil
			}
			buf = append(buf, b)
			if len(buf) >= max {
				return "", unix.ENAMETOOLONG
			}
		}
		cursor += WordSize
	}
	return "", unix.ENAMETOOLONG
}

// WriteBytes implements Gateway.WriteBytes.
func (g *PtraceGateway) WriteBytes(addr Word, b []byte) error {
	cursor := addr
	i := 0
	for i < len(b) {
		remaining := len(b) - i
		if remaining >= WordSize {
			if err := g.PokeWord(cursor, bytesToWord(b[i:i+WordSize])); err != nil {
				return err
			}
			i += WordSize
			cursor += WordSize
			continue
		}
		// Partial final word: preserve the trailing bytes already
		// present in the tracee beyond what we're writing.
		existing, err := g.PeekWord(cursor)
		if err != nil {
			return err
		}
		merged := wordToBytes(existing)
		copy(merged[:remaining], b[i:])
		if err := g.PokeWord(cursor, bytesToWord(merged[:])); err != nil {
			return err
		}
		i += remaining
	}
	return nil
}

// syscallArgValue returns the unix.PtraceRegs field a Which names,
// following the Linux x86-64 syscall calling convention: rdi, rsi, rdx,
// r10, r8, r9.
func syscallArgValue(regs *unix.PtraceRegs, which Which) Word {
	switch which {
	case Arg1:
		return Word(regs.Rdi)
	case Arg2:
		return Word(regs.Rsi)
	case Arg3:
		return Word(regs.Rdx)
	case Arg4:
		return Word(regs.R10)
	case Arg5:
		return Word(regs.R8)
	case Arg6:
		return Word(regs.R9)
	default:
		panic("tracee: unknown syscall argument slot")
	}
}

func setSyscallArgValue(regs *unix.PtraceRegs, which Which, v Word) {
	switch which {
	case Arg1:
		regs.Rdi = uint64(v)
	case Arg2:
		regs.Rsi = uint64(v)
	case Arg3:
		regs.Rdx = uint64(v)
	case Arg4:
		regs.R10 = uint64(v)
	case Arg5:
		regs.R8 = uint64(v)
	case Arg6:
		regs.R9 = uint64(v)
	default:
		panic("tracee: unknown syscall argument slot")
	}
}

// SyscallArg implements Gateway.SyscallArg.
func (g *PtraceGateway) SyscallArg(which Which) (Word, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(g.pid, &regs); err != nil {
		return 0, faultErr
	}
	return syscallArgValue(&regs, which), nil
}

// SetSyscallArg implements Gateway.SetSyscallArg.
func (g *PtraceGateway) SetSyscallArg(which Which, v Word) error {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(g.pid, &regs); err != nil {
		return faultErr
	}
	setSyscallArgValue(&regs, which, v)
	if err := unix.PtraceSetRegs(g.pid, &regs); err != nil {
		return faultErr
	}
	return nil
}

// SyscallArgPath implements Gateway.SyscallArgPath.
func (g *PtraceGateway) SyscallArgPath(which Which) (string, error) {
	addr, err := g.SyscallArg(which)
	if err != nil {
		return "", err
	}
	return g.ReadCString(addr, PathMax)
}

// SetSyscallArgPath implements Gateway.SetSyscallArgPath. It pushes path
// onto fresh tracee memory below the current stack pointer and points the
// given register at it, the same convention the stack materialiser uses
// for argv strings.
func (g *PtraceGateway) SetSyscallArgPath(which Which, path string) error {
	sp, err := g.StackPointer()
	if err != nil {
		return err
	}
	size := Word(len(path) + 1)
	addr := sp - size
	if err := g.WriteBytes(addr, append([]byte(path), 0)); err != nil {
		return err
	}
	if err := g.SetStackPointer(addr); err != nil {
		return err
	}
	return g.SetSyscallArg(which, addr)
}

// StackPointer implements Gateway.StackPointer using PTRACE_PEEKUSR, per
// spec.md's "via the same peek/poke-user mechanism" requirement.
func (g *PtraceGateway) StackPointer() (Word, error) {
	var v Word
	_, _, errno := unix.RawSyscall6(unix.SYS_PTRACE, ptracePeekUser, uintptr(g.pid), userRegsOffsetSP, uintptr(unsafe.Pointer(&v)), 0, 0)
	if errno != 0 {
		return 0, faultErr
	}
	return v, nil
}

// SetStackPointer implements Gateway.SetStackPointer using PTRACE_POKEUSR.
func (g *PtraceGateway) SetStackPointer(v Word) error {
	_, _, errno := unix.RawSyscall6(unix.SYS_PTRACE, ptracePokeUser, uintptr(g.pid), userRegsOffsetSP, uintptr(v), 0, 0)
	if errno != 0 {
		return faultErr
	}
	return nil
}

func wordToBytes(w Word) [WordSize]byte {
	var b [WordSize]byte
	for i := 0; i < WordSize; i++ {
		b[i] = byte(w >> (8 * i))
	}
	return b
}

func bytesToWord(b []byte) Word {
	var w Word
	for i := 0; i < WordSize && i < len(b); i++ {
		w |= Word(b[i]) << (8 * i)
	}
	return w
}
