package render

import (
	"strings"
	"testing"

	"stackmaps/internal/callgraph"
	"stackmaps/stackmap"
)

func sampleFrames() ([]stackmap.Frame, []callgraph.FuncInfo) {
	reg := stackmap.Location{Kind: stackmap.Register, Size: 8, DwarfReg: 3, Offset: stackmap.SignedOffset(0)}
	ind := stackmap.Location{Kind: stackmap.Indirect, Size: 8, DwarfReg: 7, Offset: stackmap.SignedOffset(-8)}
	frames := []stackmap.Frame{
		{Function: stackmap.Function{Address: 0x1000, StackSize: 16}, Records: []stackmap.Record{
			{ID: 1, InstructionOffset: 4, Locations: []stackmap.Location{reg, ind}},
			{ID: 2, InstructionOffset: 12, Locations: []stackmap.Location{reg}},
		}},
		{Function: stackmap.Function{Address: 0x2000, StackSize: 48}, Records: []stackmap.Record{
			{ID: 3, InstructionOffset: 8, Locations: []stackmap.Location{}},
		}},
		{Function: stackmap.Function{Address: 0x3000, StackSize: 8}, Records: []stackmap.Record{}},
	}
	funcs := []callgraph.FuncInfo{
		{Name: "main", Safepoints: []callgraph.Safepoint{{ID: 1, Callee: "gc_poll"}, {ID: 2}}},
		{Name: "worker<int>", Safepoints: []callgraph.Safepoint{{ID: 3, Callee: "gc_poll"}}},
		{Name: "leaf"},
	}
	return frames, funcs
}

func TestComputeStats(t *testing.T) {
	frames, funcs := sampleFrames()
	st := ComputeStats(frames, funcs, 2)

	if st.Functions != 3 || st.Records != 3 || st.Locations != 3 || st.Constants != 2 {
		t.Errorf("counts = %+v", st)
	}
	if st.KindCounts[stackmap.Register] != 2 || st.KindCounts[stackmap.Indirect] != 1 {
		t.Errorf("kind counts = %v", st.KindCounts)
	}
	if st.MaxStackSize != 48 || st.MaxStackFunc != "worker<int>" {
		t.Errorf("largest frame = %d in %q", st.MaxStackSize, st.MaxStackFunc)
	}
	if len(st.TopFunctions) != 2 || st.TopFunctions[0] != (NameCount{"main", 2}) {
		t.Errorf("top functions = %+v", st.TopFunctions)
	}
	if len(st.TopCallees) != 1 || st.TopCallees[0] != (NameCount{"gc_poll", 2}) {
		t.Errorf("top callees = %+v", st.TopCallees)
	}
	if st.Unresolved != 1 {
		t.Errorf("unresolved = %d, want 1", st.Unresolved)
	}
}

func TestWriteIndexHTML(t *testing.T) {
	frames, funcs := sampleFrames()
	var b strings.Builder
	WriteIndexHTML(&b, ComputeStats(frames, funcs, 0), "a.out <stack maps>", Links{
		CFGs:      []string{"main", "worker<int>", "leaf"},
		ASM:       []string{"main"},
		Callgraph: true,
	})
	out := b.String()
	for _, want := range []string{
		"<title>a.out &lt;stack maps&gt;</title>",
		"<td>Register</td>",
		"<td>Indirect</td>",
		"worker&lt;int&gt;",
		`<a href="asm/main.txt"`,
		"callgraph.dot",
		"cfg/ (3 functions)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "<td>Direct</td>") {
		t.Error("kind with zero count listed")
	}
}

func TestSafeFileName(t *testing.T) {
	if got := SafeFileName("ns::f<int> *"); got != "ns__f_int___" {
		t.Errorf("SafeFileName = %q", got)
	}
	if got := SafeFileName(strings.Repeat("a", 300)); len(got) != 200 {
		t.Errorf("len = %d, want 200", len(got))
	}
}
