package callgraph

import (
	"fmt"

	"github.com/zboralski/lattice"
	"stackmaps/internal/disasm"
)

// Safepoint is one stack map record placed at its code address.
type Safepoint struct {
	ID     uint64
	PC     uint64 // function address + instruction offset
	Callee string // target of the call ending at PC, "" if unknown
}

// Label names the safepoint in graphs.
func (s Safepoint) Label() string {
	if s.Callee == "" {
		return fmt.Sprintf("sm %d", s.ID)
	}
	return fmt.Sprintf("%s (sm %d)", s.Callee, s.ID)
}

// FuncInfo holds the data needed to build the call graph and CFG for one
// function.
type FuncInfo struct {
	Name       string
	Address    uint64
	Insts      []disasm.Inst // empty when the code was not disassembled
	Safepoints []Safepoint
}

// BuildCallGraph constructs a lattice.Graph with a node per function and
// an edge to each safepoint's callee. Safepoints without a known callee
// get their own "sm <id>" node.
func BuildCallGraph(funcs []FuncInfo) *lattice.Graph {
	g := &lattice.Graph{}
	for _, f := range funcs {
		g.Nodes = append(g.Nodes, f.Name)
		for _, sp := range f.Safepoints {
			callee := sp.Callee
			if callee == "" {
				callee = sp.Label()
			}
			g.Edges = append(g.Edges, lattice.Edge{
				Caller: f.Name,
				Callee: callee,
			})
		}
	}
	g.Dedup()
	return g
}
