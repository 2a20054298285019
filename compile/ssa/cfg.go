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

// Package ssa implements the SSA-side middle-end passes: CFG construction,
// dominator/dominance-frontier analysis, dead-code elimination, mem2reg
// promotion, and out-of-SSA lowering.
package ssa

import (
	"kestrel/ir"
	"kestrel/utils"
)

// CFG holds a function's control-flow graph as forward/reverse adjacency
// lists indexed by block id. Block 0 is always the entry (ir.Function's
// convention), so every traversal below roots at vertex 0.
type CFG struct {
	Succs [][]int
	Preds [][]int
}

// BuildCFG derives the graph from each block's terminator and records each
// block's successor names back onto the block itself. A block without a
// terminator has no successors, matching the data model's contract that an
// untaken ret/jmp/jnz marks a dead end rather than an implicit fallthrough.
func BuildCFG(fn *ir.Function) *CFG {
	n := len(fn.Blocks)
	cfg := &CFG{Succs: make([][]int, n), Preds: make([][]int, n)}

	for _, b := range fn.Blocks {
		names := successorNames(b.Terminator())
		b.Succs = names
		for _, name := range names {
			succ, ok := fn.BlockByName(name)
			if !ok {
				utils.Fatal("cfg: block %q in function %q has unknown successor %q", b.Name, fn.Name, name)
			}
			cfg.Succs[b.ID] = append(cfg.Succs[b.ID], succ.ID)
			cfg.Preds[succ.ID] = append(cfg.Preds[succ.ID], b.ID)
		}
	}
	return cfg
}

func successorNames(term *ir.Instruction) []string {
	if term == nil {
		return nil
	}
	switch term.Op.Tag {
	case ir.OpJmp:
		return []string{term.Op.Label}
	case ir.OpJnz:
		return []string{term.Op.TrueLbl, term.Op.FalseLbl}
	default: // ir.OpRet
		return nil
	}
}
