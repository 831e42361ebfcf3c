package disasm

import "sort"

// BasicBlock is a run of instructions with a single entry.
type BasicBlock struct {
	ID      int
	Start   int    // index into FuncCFG.Insts, inclusive
	End     int    // exclusive
	Succs   []Succ // successor edges
	IsEntry bool
	IsTerm  bool // no successor inside the function
}

// Succ describes a control-flow successor edge.
type Succ struct {
	BlockID int
	Cond    string // "" = unconditional, "T" = taken/true, "F" = fallthrough/false
}

// FuncCFG is a per-function control flow graph.
type FuncCFG struct {
	Name   string
	Blocks []BasicBlock
	Insts  []Inst
}

// BuildCFG splits a function's instruction stream into basic blocks.
// Leaders are the entry, in-function jump targets, and every instruction
// following a terminator. Successors come from each block's last
// instruction.
func BuildCFG(name string, insts []Inst) FuncCFG {
	if len(insts) == 0 {
		return FuncCFG{Name: name, Insts: insts}
	}

	last := insts[len(insts)-1]
	funcStart := insts[0].Addr
	funcEnd := last.Addr + uint64(last.Size)

	addrToIdx := make(map[uint64]int, len(insts))
	for i, inst := range insts {
		addrToIdx[inst.Addr] = i
	}

	leaders := make(map[int]bool)
	leaders[0] = true

	for i, inst := range insts {
		if !inst.Terminates() {
			continue
		}
		if i+1 < len(insts) {
			leaders[i+1] = true
		}
		if inst.Control == ControlJump && inst.Target >= funcStart && inst.Target < funcEnd {
			if idx, ok := addrToIdx[inst.Target]; ok {
				leaders[idx] = true
			}
		}
	}

	sorted := make([]int, 0, len(leaders))
	for idx := range leaders {
		sorted = append(sorted, idx)
	}
	sort.Ints(sorted)

	blocks := make([]BasicBlock, len(sorted))
	leaderToBlock := make(map[int]int, len(sorted))
	for i, start := range sorted {
		end := len(insts)
		if i+1 < len(sorted) {
			end = sorted[i+1]
		}
		blocks[i] = BasicBlock{
			ID:      i,
			Start:   start,
			End:     end,
			IsEntry: start == 0,
		}
		leaderToBlock[start] = i
	}

	for i := range blocks {
		blk := &blocks[i]
		if blk.End <= blk.Start {
			continue
		}
		tail := insts[blk.End-1]

		if !tail.Terminates() {
			if nextBlk, ok := leaderToBlock[blk.End]; ok {
				blk.Succs = append(blk.Succs, Succ{BlockID: nextBlk})
			}
			continue
		}

		if tail.Control != ControlJump {
			blk.IsTerm = true
			continue
		}

		targetBlockID := -1
		if tail.Target >= funcStart && tail.Target < funcEnd {
			if idx, ok := addrToIdx[tail.Target]; ok {
				if bid, ok := leaderToBlock[idx]; ok {
					targetBlockID = bid
				}
			}
		}

		if tail.Cond {
			if targetBlockID >= 0 {
				blk.Succs = append(blk.Succs, Succ{BlockID: targetBlockID, Cond: "T"})
			}
			if nextBlk, ok := leaderToBlock[blk.End]; ok {
				blk.Succs = append(blk.Succs, Succ{BlockID: nextBlk, Cond: "F"})
			}
		} else if targetBlockID >= 0 {
			blk.Succs = append(blk.Succs, Succ{BlockID: targetBlockID})
		} else {
			// Indirect, or leaves the function.
			blk.IsTerm = true
		}
	}

	return FuncCFG{
		Name:   name,
		Blocks: blocks,
		Insts:  insts,
	}
}
