// Package disasm decodes the machine instructions around stack map
// safepoints.
package disasm

import (
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"
)

var (
	ErrUnsupportedArch = errors.New("disasm: unsupported architecture")
	ErrShortCode       = errors.New("disasm: not enough code bytes")
)

// Arch selects the instruction decoder.
type Arch int

const (
	ArchUnknown Arch = iota
	ArchX86_64
	ArchX86
	ArchARM64
)

func (a Arch) String() string {
	switch a {
	case ArchX86_64:
		return "x86-64"
	case ArchX86:
		return "i386"
	case ArchARM64:
		return "aarch64"
	}
	return "unknown"
}

// MaxInstLen is the longest encoding any supported architecture produces.
const MaxInstLen = 15

// ArchFor maps an ELF machine to a decoder.
func ArchFor(m elf.Machine) Arch {
	switch m {
	case elf.EM_X86_64:
		return ArchX86_64
	case elf.EM_386:
		return ArchX86
	case elf.EM_AARCH64:
		return ArchARM64
	}
	return ArchUnknown
}

// Control classifies how an instruction affects control flow.
type Control int

const (
	ControlNone Control = iota
	ControlCall
	ControlJump
	ControlRet
	ControlExit // trap; execution does not continue
)

// Inst is one decoded instruction.
type Inst struct {
	Addr     uint64
	Raw      []byte
	Size     int
	Mnemonic string
	Operands string
	Text     string // full disassembly
	Control  Control
	Cond     bool   // conditional jump; falls through when not taken
	Target   uint64 // direct call or jump target, 0 if none or indirect
}

// IsCall reports whether inst is a call.
func (inst Inst) IsCall() bool { return inst.Control == ControlCall }

// Terminates reports whether inst ends a basic block. Calls return to the
// next instruction and do not.
func (inst Inst) Terminates() bool {
	switch inst.Control {
	case ControlJump, ControlRet, ControlExit:
		return true
	}
	return false
}

// SymbolLookup resolves an address to the symbol containing it and that
// symbol's start address.
type SymbolLookup func(addr uint64) (name string, start uint64, ok bool)

// Decode decodes the instruction at the start of code, which lives at pc.
// Bytes that do not form a valid instruction decode to a data directive.
func Decode(code []byte, pc uint64, arch Arch, syms SymbolLookup) (Inst, error) {
	switch arch {
	case ArchX86_64:
		return decodeX86(code, pc, 64, syms)
	case ArchX86:
		return decodeX86(code, pc, 32, syms)
	case ArchARM64:
		return decodeARM64(code, pc)
	}
	return Inst{}, fmt.Errorf("%w: %v", ErrUnsupportedArch, arch)
}

func decodeX86(code []byte, pc uint64, mode int, syms SymbolLookup) (Inst, error) {
	if len(code) == 0 {
		return Inst{}, ErrShortCode
	}
	if len(code) > MaxInstLen {
		code = code[:MaxInstLen]
	}
	inst, err := x86asm.Decode(code, mode)
	if err != nil || inst.Len == 0 || inst.Op == 0 {
		return dataInst(pc, code[:1], fmt.Sprintf(".byte 0x%02x", code[0])), nil
	}
	out := Inst{
		Addr: pc,
		Raw:  append([]byte(nil), code[:inst.Len]...),
		Size: inst.Len,
	}
	out.Control, out.Cond = x86Control(inst)
	if rel, ok := inst.Args[0].(x86asm.Rel); ok && out.Control != ControlNone {
		out.Target = uint64(int64(pc) + int64(inst.Len) + int64(rel))
	}
	var symname x86asm.SymLookup
	if syms != nil {
		symname = func(addr uint64) (string, uint64) {
			name, start, ok := syms(addr)
			if !ok {
				return "", 0
			}
			return name, start
		}
	}
	out.Text = x86asm.GNUSyntax(inst, pc, symname)
	out.Mnemonic, out.Operands = split(out.Text)
	return out, nil
}

func decodeARM64(code []byte, pc uint64) (Inst, error) {
	if len(code) < 4 {
		return Inst{}, ErrShortCode
	}
	raw := binary.LittleEndian.Uint32(code)
	inst, err := arm64asm.Decode(code[:4])
	if err != nil {
		return dataInst(pc, code[:4], fmt.Sprintf(".word 0x%08x", raw)), nil
	}
	out := Inst{
		Addr: pc,
		Raw:  append([]byte(nil), code[:4]...),
		Size: 4,
		Text: inst.String(),
	}
	out.Control, out.Cond = arm64Control(inst)
	if out.Control != ControlNone {
		for _, a := range inst.Args {
			if rel, ok := a.(arm64asm.PCRel); ok {
				out.Target = uint64(int64(pc) + int64(rel))
				break
			}
		}
	}
	out.Mnemonic, out.Operands = split(out.Text)
	return out, nil
}

func x86Control(inst x86asm.Inst) (Control, bool) {
	switch inst.Op {
	case x86asm.CALL, x86asm.LCALL:
		return ControlCall, false
	case x86asm.RET, x86asm.LRET:
		return ControlRet, false
	case x86asm.UD1, x86asm.UD2, x86asm.HLT:
		return ControlExit, false
	case x86asm.JMP, x86asm.LJMP:
		return ControlJump, false
	case x86asm.JA, x86asm.JAE, x86asm.JB, x86asm.JBE, x86asm.JCXZ, x86asm.JE, x86asm.JECXZ,
		x86asm.JG, x86asm.JGE, x86asm.JL, x86asm.JLE, x86asm.JNE, x86asm.JNO, x86asm.JNP,
		x86asm.JNS, x86asm.JO, x86asm.JP, x86asm.JRCXZ, x86asm.JS,
		x86asm.LOOP, x86asm.LOOPE, x86asm.LOOPNE:
		return ControlJump, true
	}
	return ControlNone, false
}

func arm64Control(inst arm64asm.Inst) (Control, bool) {
	switch inst.Op {
	case arm64asm.BL, arm64asm.BLR:
		return ControlCall, false
	case arm64asm.RET:
		return ControlRet, false
	case arm64asm.BRK, arm64asm.HLT:
		return ControlExit, false
	case arm64asm.BR:
		return ControlJump, false
	case arm64asm.B:
		// B.cond decodes as B with a condition operand.
		_, cond := inst.Args[0].(arm64asm.Cond)
		return ControlJump, cond
	case arm64asm.CBZ, arm64asm.CBNZ, arm64asm.TBZ, arm64asm.TBNZ:
		return ControlJump, true
	}
	return ControlNone, false
}

func dataInst(pc uint64, raw []byte, text string) Inst {
	m, ops := split(text)
	return Inst{
		Addr:     pc,
		Raw:      append([]byte(nil), raw...),
		Size:     len(raw),
		Mnemonic: m,
		Operands: ops,
		Text:     text,
	}
}

func split(text string) (mnemonic, operands string) {
	parts := strings.SplitN(text, " ", 2)
	mnemonic = parts[0]
	if len(parts) > 1 {
		operands = parts[1]
	}
	return mnemonic, operands
}

// Options controls Disassemble.
type Options struct {
	BaseAddr uint64 // VA of the first byte of code
	Arch     Arch
	MaxSteps int          // maximum instructions to decode; 0 = 1M
	Symbols  SymbolLookup // optional
}

const defaultMaxSteps = 1_000_000

// Disassemble decodes code by linear sweep. Undecodable bytes are emitted
// as data directives and skipped. A short tail that cannot hold an
// instruction is dropped.
func Disassemble(code []byte, opts Options) []Inst {
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = defaultMaxSteps
	}
	var out []Inst
	pc := opts.BaseAddr
	for len(code) > 0 && len(out) < maxSteps {
		inst, err := Decode(code, pc, opts.Arch, opts.Symbols)
		if err != nil {
			break
		}
		out = append(out, inst)
		code = code[inst.Size:]
		pc += uint64(inst.Size)
	}
	return out
}

// CallBefore finds the call instruction that ends exactly at pc. code holds
// the bytes immediately preceding pc. On x86 the shortest call encoding that
// fits is taken.
func CallBefore(code []byte, pc uint64, arch Arch, syms SymbolLookup) (Inst, bool) {
	switch arch {
	case ArchARM64:
		if len(code) < 4 {
			return Inst{}, false
		}
		inst, err := decodeARM64(code[len(code)-4:], pc-4)
		if err != nil || !inst.IsCall() {
			return Inst{}, false
		}
		return inst, true
	case ArchX86_64, ArchX86:
		for n := 2; n <= len(code) && n <= MaxInstLen; n++ {
			inst, err := Decode(code[len(code)-n:], pc-uint64(n), arch, syms)
			if err == nil && inst.IsCall() && inst.Size == n {
				return inst, true
			}
		}
	}
	return Inst{}, false
}

// Format renders one instruction as
// <addr>  <hex bytes>  <disasm>  ; <comment>
func Format(inst Inst, comment string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "0x%08x  ", inst.Addr)
	hex := make([]string, len(inst.Raw))
	for i, c := range inst.Raw {
		hex[i] = fmt.Sprintf("%02x", c)
	}
	fmt.Fprintf(&b, "%-20s  ", strings.Join(hex, " "))
	b.WriteString(inst.Text)
	if comment != "" {
		fmt.Fprintf(&b, "  ; %s", comment)
	}
	return b.String()
}
