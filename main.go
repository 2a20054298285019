// Copyright (c) 2024 The Kestrel Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Command kestrel lowers a QBE-IL-subset source file through every stage
// described in section 4 and prints the resulting x86-64 assembly, or a
// single intermediate stage when asked to with one of the --out-* flags.
package main

import (
	"flag"
	"fmt"
	"os"

	"kestrel/compile/codegen"
	"kestrel/compile/ssa"
	"kestrel/ir"
	"kestrel/lex"
	"kestrel/parse"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run drives the whole pipeline and returns the process exit code. It's
// split out from main so a fatal error (utils.Fatal panics; see section 7)
// can be caught at a single boundary, reported on stderr, and turned into
// exit code 1 instead of a bare Go panic trace.
func run(args []string) (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintln(os.Stderr, r)
			exitCode = 1
		}
	}()

	fs := flag.NewFlagSet("kestrel", flag.ContinueOnError)
	optimize := fs.Bool("O1", false, "run mem2reg before out-of-ssa lowering")
	secure := fs.Bool("Sec", false, "emit overflow checks after add/imul")
	outLex := fs.Bool("out-lex", false, "print the token stream and stop")
	outParse := fs.Bool("out-parse", false, "print the parsed program and stop")
	outSSAIR := fs.Bool("out-ssair", false, "print the IR before optimization and stop")
	outGdata := fs.Bool("out-gdata", false, "print global data and stop")
	outParseBB := fs.Bool("out-parsebb", false, "print each block's idom and dominance frontier and stop")
	outGraph := fs.Bool("out-graph", false, "print the CFG adjacency lists and stop")
	outSSAIR1 := fs.Bool("out-ssair_1", false, "print the IR after mem2reg/dce and stop")
	outM2RInfo := fs.Bool("out-m2rinfo", false, "print each alloca's mem2reg classification and stop")
	outNormFmt := fs.Bool("out-norm_fmt", false, "print the IR after out-of-ssa lowering and stop")
	outLowIR := fs.Bool("out-lowir", false, "print low-IR before register allocation and stop")
	outLowIRAll := fs.Bool("out-lowir_all", false, "alias of --out-lowir")
	outLowIRRega := fs.Bool("out-lowir_rega", false, "print low-IR after register allocation and stop")
	outLowIRISA := fs.Bool("out-lowir-ISA", false, "print allocated low-IR in human-readable form and stop")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: kestrel [-O1] [-Sec] [--out-*] source.ssa")
		return 2
	}

	src, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	toks := lex.NewLexer(string(src)).Tokenize()
	if *outLex {
		for _, t := range toks {
			fmt.Println(t)
		}
		return 0
	}

	ctx := ir.NewContext()
	prog := parse.Parse(toks, ctx)
	if *outParse {
		fmt.Print(prog)
		return 0
	}
	if *outSSAIR {
		fmt.Print(prog)
		return 0
	}
	if *outGdata {
		for _, g := range prog.Globals {
			fmt.Print(g)
		}
		return 0
	}

	cfgs := make(map[*ir.Function]*ssa.CFG, len(prog.Functions))
	for _, fn := range prog.Functions {
		cfg := ssa.BuildCFG(fn)
		ssa.ComputeDominators(fn, cfg)
		cfgs[fn] = cfg
	}
	if *outParseBB {
		for _, fn := range prog.Functions {
			fmt.Printf("function %s\n", fn.Name)
			for _, b := range fn.Blocks {
				fmt.Printf("  %s: idom=%d domfront=%v\n", b.Name, b.Idom, b.DomFront)
			}
		}
		return 0
	}
	if *outGraph {
		for _, fn := range prog.Functions {
			fmt.Printf("function %s\n", fn.Name)
			for _, b := range fn.Blocks {
				fmt.Printf("  %s: succs=%v preds=%v\n", b.Name, cfgs[fn].Succs[b.ID], cfgs[fn].Preds[b.ID])
			}
		}
		return 0
	}

	for _, fn := range prog.Functions {
		ssa.EliminateDeadCode(fn)
		if *optimize {
			ssa.PromoteAllocas(fn, cfgs[fn], ctx)
		}
	}
	if *outSSAIR1 {
		fmt.Print(prog)
		return 0
	}
	if *outM2RInfo {
		for _, fn := range prog.Functions {
			fmt.Printf("function %s\n", fn.Name)
			for name, rec := range fn.Alloca {
				fmt.Printf("  %%%s: %s\n", name, rec.Class)
			}
		}
		return 0
	}

	for _, fn := range prog.Functions {
		ssa.RevSSA(fn, ctx)
	}
	if *outNormFmt {
		fmt.Print(prog)
		return 0
	}

	lp := codegen.BuildLowIR(prog, ctx)
	if *outLowIR || *outLowIRAll {
		fmt.Print(codegen.FormatLowProgram(lp))
		return 0
	}

	for _, fn := range lp.Functions {
		codegen.RegisterAlloc(fn)
	}
	if *outLowIRRega || *outLowIRISA {
		fmt.Print(codegen.FormatLowProgram(lp))
		return 0
	}

	fmt.Print(codegen.Emit(lp, *secure))
	return 0
}
