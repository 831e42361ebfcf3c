package render

import (
	"sort"

	"stackmaps/internal/callgraph"
	"stackmaps/stackmap"
)

// NameCount pairs a name with a count.
type NameCount struct {
	Name  string
	Count int
}

// Stats summarizes a decoded section.
type Stats struct {
	Functions    int
	Records      int
	Locations    int
	Constants    int
	MaxStackSize uint64
	MaxStackFunc string
	KindCounts   map[stackmap.Kind]int
	TopFunctions []NameCount // by record count
	TopCallees   []NameCount // by safepoint count
	Unresolved   int         // safepoints with no known callee
}

// ComputeStats summarizes frames. funcs[i] names frames[i] and carries its
// safepoints.
func ComputeStats(frames []stackmap.Frame, funcs []callgraph.FuncInfo, constants int) Stats {
	st := Stats{
		Functions:  len(frames),
		Constants:  constants,
		KindCounts: make(map[stackmap.Kind]int),
	}
	callees := make(map[string]int)
	for i, fr := range frames {
		name := ""
		if i < len(funcs) {
			name = funcs[i].Name
			for _, sp := range funcs[i].Safepoints {
				if sp.Callee == "" {
					st.Unresolved++
					continue
				}
				callees[sp.Callee]++
			}
		}
		st.Records += len(fr.Records)
		for _, r := range fr.Records {
			st.Locations += len(r.Locations)
			for _, loc := range r.Locations {
				st.KindCounts[loc.Kind]++
			}
		}
		if i == 0 || fr.Function.StackSize > st.MaxStackSize {
			st.MaxStackSize = fr.Function.StackSize
			st.MaxStackFunc = name
		}
		if len(fr.Records) > 0 {
			st.TopFunctions = append(st.TopFunctions, NameCount{Name: name, Count: len(fr.Records)})
		}
	}
	sortCounts(st.TopFunctions)
	for name, n := range callees {
		st.TopCallees = append(st.TopCallees, NameCount{Name: name, Count: n})
	}
	sortCounts(st.TopCallees)
	return st
}

func sortCounts(s []NameCount) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Count != s[j].Count {
			return s[i].Count > s[j].Count
		}
		return s[i].Name < s[j].Name
	})
}
