package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zboralski/lattice"
	latticerender "github.com/zboralski/lattice/render"
	"stackmaps/internal/callgraph"
	"stackmaps/internal/disasm"
	"stackmaps/internal/output"
	"stackmaps/internal/render"
	"stackmaps/stackmap"
)

func cmdExport(args []string) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	bin := fs.String("bin", "", "path to ELF file")
	outDir := fs.String("out", "", "output directory")
	graph := fs.Bool("graph", false, "write callgraph.dot and cfg/<func>.dot")
	asm := fs.Bool("asm", false, "write asm/<func>.txt with safepoints marked")
	html := fs.Bool("html", false, "write index.html summary")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if *bin == "" || *outDir == "" {
		return fmt.Errorf("--bin and --out are required")
	}

	if err := os.MkdirAll(*outDir, 0755); err != nil {
		return fmt.Errorf("mkdir: %w", err)
	}

	im, err := openImage(*bin)
	if err != nil {
		return err
	}
	defer im.Close()

	consts, err := im.constants()
	if err != nil {
		return err
	}
	frames, err := im.frames()
	if err != nil {
		return err
	}

	info := &output.SectionInfo{
		Path:        *bin,
		Machine:     im.ef.Machine().String(),
		ByteOrder:   fmt.Sprint(im.sm.ByteOrder()),
		SectionSize: im.sm.Size(),
		Version:     stackmap.Version,
		Header:      im.sm.Header(),
		Functions:   []output.FunctionEntry{},
		Constants:   consts,
	}
	var recs []output.RecordEntry
	for _, fr := range frames {
		name := im.funcName(fr.Function.Address)
		info.Functions = append(info.Functions, output.FunctionEntry{
			Function: fr.Function,
			Name:     name,
			Records:  fr.Function.RecordCount(),
		})
		for _, r := range fr.Records {
			recs = append(recs, output.RecordEntry{
				Function: name,
				PC:       fmt.Sprintf("0x%x", fr.Function.Address+uint64(r.InstructionOffset)),
				Record:   r,
			})
		}
	}

	if err := output.WriteSectionJSON(*outDir, info); err != nil {
		return fmt.Errorf("write stackmaps.json: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s/stackmaps.json (%d functions)\n", *outDir, len(info.Functions))

	if err := output.WriteRecordsJSONL(*outDir, recs); err != nil {
		return fmt.Errorf("write records.jsonl: %w", err)
	}
	fmt.Fprintf(os.Stderr, "wrote %s/records.jsonl (%d records)\n", *outDir, len(recs))

	if (*graph || *asm) && im.arch == disasm.ArchUnknown {
		fmt.Fprintf(os.Stderr, "warning: no disassembler for %s, graphs list safepoints only\n", im.ef.Machine())
	}

	var funcInfos []callgraph.FuncInfo
	var links render.Links
	for _, fr := range frames {
		fi := callgraph.FuncInfo{
			Name:       im.funcName(fr.Function.Address),
			Address:    fr.Function.Address,
			Safepoints: im.safepoints(fr),
		}
		if (*graph || *asm) && im.arch != disasm.ArchUnknown {
			code, err := im.funcCode(fr)
			if err != nil {
				fmt.Fprintf(os.Stderr, "warning: %s: %v\n", fi.Name, err)
			}
			fi.Insts = disasm.Disassemble(code, disasm.Options{
				BaseAddr: fr.Function.Address,
				Arch:     im.arch,
				Symbols:  im.lookup,
			})
		}
		filename := render.SafeFileName(fi.Name)

		if *asm && len(fi.Insts) > 0 {
			comments := make(map[uint64]string)
			for _, sp := range fi.Safepoints {
				// Mark the instruction at the return address.
				c := fmt.Sprintf("sm %d", sp.ID)
				if prev, ok := comments[sp.PC]; ok {
					c = prev + ", " + c
				}
				comments[sp.PC] = c
			}
			if err := output.WriteASM(*outDir, filename, fi.Insts, comments); err != nil {
				return fmt.Errorf("write asm %s: %w", filename, err)
			}
			links.ASM = append(links.ASM, fi.Name)
		}

		if *graph {
			lcfg, _ := callgraph.BuildFuncCFG(fi)
			g := &lattice.CFGGraph{Funcs: []*lattice.FuncCFG{lcfg}}
			if err := output.WriteDOT(*outDir, filepath.Join("cfg", filename), latticerender.DOTCFG(g, fi.Name)); err != nil {
				return fmt.Errorf("write cfg dot %s: %w", filename, err)
			}
			links.CFGs = append(links.CFGs, fi.Name)
		}

		// Later stages only need names and safepoints.
		fi.Insts = nil
		funcInfos = append(funcInfos, fi)
	}

	if *asm {
		fmt.Fprintf(os.Stderr, "wrote %s/asm (%d functions)\n", *outDir, len(links.ASM))
	}
	if *graph {
		cg := callgraph.BuildCallGraph(funcInfos)
		if err := output.WriteDOT(*outDir, "callgraph", latticerender.DOT(cg, filepath.Base(*bin))); err != nil {
			return fmt.Errorf("write callgraph.dot: %w", err)
		}
		links.Callgraph = true
		fmt.Fprintf(os.Stderr, "wrote %s/callgraph.dot (%d nodes, %d edges), %d CFGs\n",
			*outDir, len(cg.Nodes), len(cg.Edges), len(links.CFGs))
	}
	if *html {
		if err := writeIndex(*outDir, *bin, frames, funcInfos, len(consts), links); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "wrote %s/index.html\n", *outDir)
	}
	return nil
}

func writeIndex(dir, bin string, frames []stackmap.Frame, funcs []callgraph.FuncInfo, nconsts int, links render.Links) error {
	f, err := os.Create(filepath.Join(dir, "index.html"))
	if err != nil {
		return fmt.Errorf("create index.html: %w", err)
	}
	defer f.Close()
	stats := render.ComputeStats(frames, funcs, nconsts)
	render.WriteIndexHTML(f, stats, filepath.Base(bin)+" stack maps", links)
	return f.Close()
}
