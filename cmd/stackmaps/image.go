package main

import (
	"fmt"

	"stackmaps/internal/callgraph"
	"stackmaps/internal/disasm"
	"stackmaps/internal/elfx"
	"stackmaps/stackmap"
)

// maxFuncBytes caps how much code is read for one function.
const maxFuncBytes = 1 << 20

// image is an opened ELF file with a validated stack map section.
type image struct {
	path string
	ef   *elfx.File
	sm   *stackmap.Parser
	arch disasm.Arch
}

func openImage(path string) (*image, error) {
	ef, err := elfx.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	p, err := stackmap.FromELF(ef.ELF)
	if err != nil {
		ef.Close()
		return nil, fmt.Errorf("parse: %w", err)
	}
	return &image{path: path, ef: ef, sm: p, arch: disasm.ArchFor(ef.Machine())}, nil
}

func (im *image) Close() error { return im.ef.Close() }

// funcName names a code address by its symbol, or sub_<addr>.
func (im *image) funcName(addr uint64) string {
	s, ok := im.ef.SymbolAt(addr)
	switch {
	case !ok:
		return fmt.Sprintf("sub_%x", addr)
	case s.Addr == addr:
		return s.Name
	}
	return fmt.Sprintf("%s+0x%x", s.Name, addr-s.Addr)
}

func (im *image) lookup(addr uint64) (string, uint64, bool) {
	s, ok := im.ef.SymbolAt(addr)
	return s.Name, s.Addr, ok
}

func (im *image) frames() ([]stackmap.Frame, error) {
	var out []stackmap.Frame
	for fr, err := range im.sm.Frames() {
		if err != nil {
			return out, err
		}
		out = append(out, fr)
	}
	return out, nil
}

func (im *image) constants() ([]uint64, error) {
	out := []uint64{}
	for c, err := range im.sm.Constants().All() {
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}
	return out, nil
}

// callBefore decodes the call that returns to pc. The search never reaches
// below the function start.
func (im *image) callBefore(fn, pc uint64) (disasm.Inst, bool) {
	if im.arch == disasm.ArchUnknown || pc <= fn {
		return disasm.Inst{}, false
	}
	n := uint64(disasm.MaxInstLen)
	if pc-fn < n {
		n = pc - fn
	}
	code, err := im.ef.ReadBytesAtVA(pc-n, int(n))
	if err != nil || uint64(len(code)) != n {
		return disasm.Inst{}, false
	}
	return disasm.CallBefore(code, pc, im.arch, im.lookup)
}

// instAt decodes the instruction at pc.
func (im *image) instAt(pc uint64) (disasm.Inst, bool) {
	if im.arch == disasm.ArchUnknown {
		return disasm.Inst{}, false
	}
	code, err := im.ef.ReadBytesAtVA(pc, disasm.MaxInstLen)
	if err != nil {
		return disasm.Inst{}, false
	}
	inst, err := disasm.Decode(code, pc, im.arch, im.lookup)
	return inst, err == nil
}

func (im *image) calleeName(call disasm.Inst) string {
	if call.Target == 0 {
		return "indirect"
	}
	return im.funcName(call.Target)
}

func (im *image) safepoints(fr stackmap.Frame) []callgraph.Safepoint {
	var out []callgraph.Safepoint
	for _, r := range fr.Records {
		pc := fr.Function.Address + uint64(r.InstructionOffset)
		sp := callgraph.Safepoint{ID: r.ID, PC: pc}
		if call, ok := im.callBefore(fr.Function.Address, pc); ok {
			sp.Callee = im.calleeName(call)
		}
		out = append(out, sp)
	}
	return out
}

// funcCode reads a function's code. The extent is the symbol size when the
// function has a sized symbol, otherwise it ends one instruction past the
// last safepoint.
func (im *image) funcCode(fr stackmap.Frame) ([]byte, error) {
	var size uint64
	if s, ok := im.ef.SymbolAt(fr.Function.Address); ok && s.Addr == fr.Function.Address {
		size = s.Size
	}
	if size == 0 {
		for _, r := range fr.Records {
			if end := uint64(r.InstructionOffset) + disasm.MaxInstLen; end > size {
				size = end
			}
		}
	}
	if size == 0 {
		return nil, nil
	}
	if size > maxFuncBytes {
		size = maxFuncBytes
	}
	return im.ef.ReadBytesAtVA(fr.Function.Address, int(size))
}
