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
package ssa

import (
	"fmt"
	"math"

	"kestrel/ir"
)

// life is a variable's live interval expressed as a pair of instruction
// days: the first day it is read or written, and the last such day.
type life struct{ bt, dt int }

func updateLife(lifes map[string]life, name string, day int) {
	if l, ok := lifes[name]; ok {
		l.dt = day
		lifes[name] = l
		return
	}
	lifes[name] = life{bt: day, dt: day}
}

// blockSpan is the [start,end] instruction-day range a block occupies. An
// empty block gets a sentinel span that can never overlap a real interval.
type blockSpan struct{ start, end int }

var emptyBlockSpan = blockSpan{start: math.MaxInt, end: math.MaxInt}

// calVarLifes walks every instruction once in block order, numbering days
// sequentially, and records both the per-variable live interval and the
// instruction-day span each block occupies.
func calVarLifes(fn *ir.Function) (map[string]life, map[string]blockSpan) {
	lifes := make(map[string]life)
	spans := make(map[string]blockSpan)
	day := 0
	for _, b := range fn.Blocks {
		if len(b.Instrs) == 0 {
			spans[b.Name] = emptyBlockSpan
			continue
		}
		start := day
		for _, in := range b.Instrs {
			subCalVarLifes(in.Op, lifes, day)
			day++
		}
		spans[b.Name] = blockSpan{start: start, end: day - 1}
	}
	return lifes, spans
}

func subCalVarLifes(op *ir.Opcode, lifes map[string]life, day int) {
	addIfVar := func(o ir.Operand) {
		if o == nil {
			return
		}
		if name, ok := ir.VariableName(o); ok {
			updateLife(lifes, name, day)
		}
	}
	switch op.Tag {
	case ir.OpRet, ir.OpSrc:
		addIfVar(op.Operand)
	case ir.OpAssign:
		updateLife(lifes, op.Dest.Name, day)
		subCalVarLifes(op.Sub, lifes, day)
	case ir.OpAlloc4:
		updateLife(lifes, op.Alloca.Name, day)
	case ir.OpLoadw:
		updateLife(lifes, op.Var.Name, day)
	case ir.OpJnz:
		updateLife(lifes, op.CondVar.Name, day)
	case ir.OpStorew:
		addIfVar(op.Operand)
		updateLife(lifes, op.Var.Name, day)
	case ir.OpBop:
		addIfVar(op.LHS)
		addIfVar(op.RHS)
	case ir.OpCall:
		for _, a := range op.Args {
			addIfVar(a)
		}
	case ir.OpComp:
		updateLife(lifes, op.Dest.Name, day)
		updateLife(lifes, op.CompL.Name, day)
		addIfVar(op.CompR)
	case ir.OpPhi:
		for _, a := range op.PhiArgs {
			addIfVar(a.Operand)
		}
	}
}

// RevSSA breaks every remaining phi into per-predecessor copies (section
// 4.5), the parallel-copy protocol that avoids the lost-copy and swap
// hazards a naive "copy into d at the end of every predecessor" would hit
// when d's live interval overlaps one of those predecessors.
func RevSSA(fn *ir.Function, ctx *ir.Context) {
	lifes, spans := calVarLifes(fn)
	proxy := make(map[string][]*ir.Instruction)

	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			if in.Op.Tag == ir.OpAssign && in.Op.Sub != nil && in.Op.Sub.Tag == ir.OpPhi {
				lowerPhi(ctx, in, lifes, spans, proxy)
			}
		}
	}

	for _, b := range fn.Blocks {
		copies, ok := proxy[b.Name]
		if !ok {
			continue
		}
		term := b.Terminator()
		if term == nil {
			b.Instrs = append(b.Instrs, copies...)
			continue
		}
		rest := append([]*ir.Instruction{}, b.Instrs[:len(b.Instrs)-1]...)
		b.Instrs = append(append(rest, copies...), term)
	}
}

func lowerPhi(ctx *ir.Context, in *ir.Instruction, lifes map[string]life, spans map[string]blockSpan, proxy map[string][]*ir.Instruction) {
	dest := in.Op.Dest
	phi := in.Op.Sub
	destLife := lifes[dest.Name]

	needTmp := false
	for _, arg := range phi.PhiArgs {
		sp := spans[arg.Pred]
		if (destLife.bt >= sp.start && destLife.bt <= sp.end) || (destLife.dt >= sp.start && destLife.dt <= sp.end) {
			needTmp = true
			break
		}
	}

	copyTarget := dest
	if needTmp {
		vreg := ctx.FreshVReg()
		tmp := &ir.Variable{Name: fmt.Sprintf("tmp#_%d", vreg), Type: ir.Word, VReg: vreg}
		in.Op = &ir.Opcode{Tag: ir.OpAssign, AssignType: in.Op.AssignType, Dest: dest, Sub: &ir.Opcode{Tag: ir.OpSrc, Operand: tmp}}
		copyTarget = tmp
	} else {
		in.Op = &ir.Opcode{Tag: ir.OpNop}
	}

	for _, arg := range phi.PhiArgs {
		assign := &ir.Opcode{Tag: ir.OpAssign, AssignType: ir.Word, Dest: copyTarget, Sub: &ir.Opcode{Tag: ir.OpSrc, Operand: arg.Operand}}
		copyInstr := ir.NewInstr(assign, arg.Pred)
		copyInstr.Living = true
		proxy[arg.Pred] = append(proxy[arg.Pred], copyInstr)
	}
}
