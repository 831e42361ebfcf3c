package main

import (
	"fmt"
	"io"
	"os"
)

// stdout receives command results; progress goes to stderr.
var stdout io.Writer = os.Stdout

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "scan":
		err = cmdScan(os.Args[2:])
	case "dump":
		err = cmdDump(os.Args[2:])
	case "export":
		err = cmdExport(os.Args[2:])
	case "help", "-h", "--help":
		usage()
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `stackmaps - LLVM stack map section decoder

Usage:
  stackmaps scan   --bin <path> [--json]                  Validate the section and print its header
  stackmaps dump   --bin <path> [--json] [--disasm]       List every function, constant and record
  stackmaps export --bin <path> --out <dir> [--graph] [--asm] [--html]
                                                         Write JSON, JSONL, DOT and HTML files

Flags:
  --bin <path>   ELF object, shared library or executable
  --out <dir>    Output directory
  --json         Print JSON instead of text
  --disasm       Show the call and instruction at each safepoint
  --graph        Write a call graph and per-function CFGs (Graphviz DOT)
  --asm          Write per-function disassembly with safepoints marked
  --html         Write an index.html summary
`)
}
