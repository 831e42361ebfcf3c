package callgraph

import (
	"sort"

	"github.com/zboralski/lattice"
	"stackmaps/internal/disasm"
)

// BuildCFG constructs a lattice.CFGGraph from the given functions.
func BuildCFG(funcs []FuncInfo) *lattice.CFGGraph {
	cg := &lattice.CFGGraph{}
	for _, f := range funcs {
		lcfg, _ := BuildFuncCFG(f)
		cg.Funcs = append(cg.Funcs, lcfg)
	}
	return cg
}

// BuildFuncCFG builds one function's lattice.FuncCFG and returns it with
// its basic block count.
//
// With instructions, blocks come from disasm.BuildCFG and each safepoint
// becomes a call site on the instruction ending at its PC. Safepoints
// outside the decoded range are dropped. Without instructions the result
// is a single block listing the safepoints in record order.
func BuildFuncCFG(f FuncInfo) (*lattice.FuncCFG, int) {
	if len(f.Insts) == 0 {
		return safepointBlock(f), 1
	}
	dcfg := disasm.BuildCFG(f.Name, f.Insts)
	return convertFuncCFG(&dcfg, placeSafepoints(f.Insts, f.Safepoints)), len(dcfg.Blocks)
}

func safepointBlock(f FuncInfo) *lattice.FuncCFG {
	lb := &lattice.BasicBlock{ID: 0, Start: 0, End: len(f.Safepoints), Term: true}
	for i, sp := range f.Safepoints {
		lb.Calls = append(lb.Calls, lattice.CallSite{Offset: i, Callee: sp.Label()})
	}
	return &lattice.FuncCFG{Name: f.Name, Blocks: []*lattice.BasicBlock{lb}}
}

// placeSafepoints maps instruction index to the safepoints recorded right
// after it. A safepoint at the first instruction is placed on it.
func placeSafepoints(insts []disasm.Inst, sps []Safepoint) map[int][]Safepoint {
	start := insts[0].Addr
	last := insts[len(insts)-1]
	end := last.Addr + uint64(last.Size)

	byIdx := make(map[int][]Safepoint)
	for _, sp := range sps {
		if sp.PC < start || sp.PC > end {
			continue
		}
		pc := sp.PC
		if pc > start {
			pc--
		}
		idx := sort.Search(len(insts), func(i int) bool { return insts[i].Addr > pc }) - 1
		if idx < 0 {
			continue
		}
		byIdx[idx] = append(byIdx[idx], sp)
	}
	return byIdx
}

// convertFuncCFG maps a disasm.FuncCFG to a lattice.FuncCFG.
func convertFuncCFG(dcfg *disasm.FuncCFG, byIdx map[int][]Safepoint) *lattice.FuncCFG {
	lcfg := &lattice.FuncCFG{Name: dcfg.Name}
	for _, db := range dcfg.Blocks {
		lb := &lattice.BasicBlock{
			ID:    db.ID,
			Start: db.Start,
			End:   db.End,
			Term:  db.IsTerm,
		}
		for _, ds := range db.Succs {
			lb.Succs = append(lb.Succs, lattice.Successor{
				BlockID: ds.BlockID,
				Cond:    ds.Cond,
			})
		}
		for idx := db.Start; idx < db.End; idx++ {
			for _, sp := range byIdx[idx] {
				lb.Calls = append(lb.Calls, lattice.CallSite{
					Offset: idx,
					Callee: sp.Label(),
				})
			}
		}
		lcfg.Blocks = append(lcfg.Blocks, lb)
	}
	return lcfg
}
