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
package codegen

import (
	"fmt"
	"math"

	"kestrel/ir"
	"kestrel/utils"
)

// regLife is a virtual register's live interval in low-IR instruction days.
type regLife struct{ birth, death int }

// touch records that vreg is mentioned on day, extending its interval the
// first time it's seen and widening it afterward. newRegAt snapshots the
// interval at construction time; finalizeRegisterLife re-syncs every
// Register in the function to its fully-widened final interval once the
// whole function has been walked, mirroring the two-pass birth/death
// bookkeeping the grounding implementation calls decidereglife.
func touch(life map[int]*regLife, vreg, day int) *regLife {
	l, ok := life[vreg]
	if !ok {
		l = &regLife{birth: day, death: day}
		life[vreg] = l
		return l
	}
	if day > l.death {
		l.death = day
	}
	if day < l.birth {
		l.birth = day
	}
	return l
}

func newRegAt(life map[int]*regLife, vreg, size, day int) *Register {
	l := touch(life, vreg, day)
	return &Register{VReg: vreg, PReg: NullDay, Birth: l.birth, Death: l.death, Size: size}
}

// buildState threads the per-function bookkeeping a single low-IR build
// pass needs: the day counter, each vreg's running live interval, each
// alloca's rbp-relative stack offset, and the label every global constant
// gets in the emitted .data section.
type buildState struct {
	life      map[int]*regLife
	stackSlot map[string]int
	stackPtr  int
	day       int
	globalLC  map[string]string
	ctx       *ir.Context
}

// BuildLowIR lowers every function in prog into low-IR: virtual registers
// and live intervals, section 4.6. Globals carry through untouched; the
// emitter lays out their .data section directly from prog.Globals.
func BuildLowIR(prog *ir.Program, ctx *ir.Context) *LowProgram {
	globalLC := make(map[string]string)
	for _, g := range prog.Globals {
		globalLC[g.Label] = fmt.Sprintf(".LC%d", utils.Abs(g.FreshID))
	}
	lp := &LowProgram{Globals: prog.Globals}
	for _, fn := range prog.Functions {
		lp.Functions = append(lp.Functions, buildFunctionLowIR(fn, globalLC, ctx))
	}
	return lp
}

func buildFunctionLowIR(fn *ir.Function, globalLC map[string]string, ctx *ir.Context) *LowFunction {
	st := &buildState{
		life:      make(map[int]*regLife),
		stackSlot: make(map[string]int),
		globalLC:  globalLC,
		ctx:       ctx,
	}

	// Argument registers are pre-bound (negative vreg ids) and live for the
	// whole function, matching processfunarguments's pre-registration.
	for _, a := range fn.Args {
		st.life[a.VReg] = &regLife{birth: 0, death: math.MaxInt}
	}

	lf := NewLowFunction(fn.Name)
	retSize := 4
	if fn.RetType != nil {
		retSize = fn.RetType.RegRefSize()
	}

	for _, b := range fn.Blocks {
		lb := NewLowBlock(b.Name)
		for _, in := range b.Instrs {
			if !in.Living || in.IsNop() {
				continue
			}
			lowerInstr(in.Op, st, lb, retSize)
		}
		lf.Blocks = append(lf.Blocks, lb)
	}
	lf.FrameSize = st.stackPtr

	finalizeRegisterLife(lf, st.life)
	return lf
}

// finalizeRegisterLife rewrites every register occurrence's birth/death to
// the vreg's fully-widened final interval. A register built early in the
// pass only knows the interval as of its own construction day; later
// mentions of the same vreg can still extend it, so every occurrence needs
// re-syncing once the function is fully walked. Pre-bound arguments
// (negative vreg) are already final and skipped, matching decidereglife.
func finalizeRegisterLife(lf *LowFunction, life map[int]*regLife) {
	fix := func(r *Register) {
		if r == nil || r.VReg < 0 {
			return
		}
		if l, ok := life[r.VReg]; ok {
			r.Birth, r.Death = l.birth, l.death
		}
	}
	for _, b := range lf.Blocks {
		for _, in := range b.Instrs {
			for _, r := range in.Dests() {
				fix(r)
			}
			for _, r := range in.Sources() {
				fix(r)
			}
		}
	}
}

// lowerInstr translates one living, non-phi instruction per the rules of
// section 4.6. A phi reaching this stage is a prior-pass bug: RevSSA is
// required to have already rewritten every phi into per-predecessor copies.
func lowerInstr(op *ir.Opcode, st *buildState, lb *LowBlock, retSize int) {
	switch op.Tag {
	case ir.OpRet:
		r := mustReg(op.Operand, st, lb, retSize)
		lb.Push(&LowInstr{Tag: LowRet, Dst: r})
		st.day++

	case ir.OpAlloc4:
		st.stackPtr += 4
		st.stackSlot[op.Alloca.Name] = st.stackPtr

	case ir.OpStorew:
		offset, ok := st.stackSlot[op.Var.Name]
		if !ok {
			utils.Fatal("codegen: storew to %%%s before its alloc4", op.Var.Name)
		}
		if n, isNum := op.Operand.(*ir.Num); isNum {
			lb.Push(&LowInstr{Tag: LowStorewnum, Num: n.Value, Offset: offset, Size: n.Type.RegRefSize()})
		} else {
			r := mustReg(op.Operand, st, lb, operandSize(op.Operand))
			lb.Push(&LowInstr{Tag: LowStorewreg, Dst: r, Offset: offset})
		}
		st.day++

	case ir.OpJnz:
		r := mustReg(op.CondVar, st, lb, op.CondVar.Type.RegRefSize())
		lb.Push(&LowInstr{Tag: LowJnz, Dst: r, TrueLbl: op.TrueLbl, FalseLbl: op.FalseLbl})
		st.day++

	case ir.OpJmp:
		lb.Push(&LowInstr{Tag: LowJmp, TrueLbl: op.Label})
		st.day++

	case ir.OpCall:
		lowerCall(op, st, lb) // bare call, result discarded

	case ir.OpComp:
		lowerComp(op, st, lb)

	case ir.OpAssign:
		lowerAssign(op, st, lb)

	case ir.OpPhi:
		utils.Fatal("codegen: phi reached low-ir build, out-of-ssa lowering must run first")

	default:
		utils.Fatal("codegen: unsupported top-level instruction %v", op.Tag)
	}
}

// lowerAssign evaluates the right-hand side into a register (possibly a
// fresh one, for Loadw/Bop/Call) and always finishes with a Movereg into
// the destination variable's own register, matching the grounding
// implementation's generic Assign wrapper: the subexpression computes into
// whatever register is natural for it, and a copy carries the result into
// the SSA name the rest of the function actually refers to.
func lowerAssign(op *ir.Opcode, st *buildState, lb *LowBlock) {
	dest := op.Dest
	src := lowerExpr(op.Sub, st, lb, dest.Type.RegRefSize())
	dst := newRegAt(st.life, dest.VReg, dest.Type.RegRefSize(), st.day+1)
	lb.Push(&LowInstr{Tag: LowMovereg, Dst: dst, Src: src})
	st.day++
}

// lowerExpr computes an Assign's right-hand side and returns the register
// holding its result, without yet copying that result into the Assign's
// destination variable. destSize is the Assign's own declared word/long
// width (%v=w vs %v=l): a loadw's memory access must use this width, not the
// pointer operand's width, since the pointer is always PtrWord/PtrLong while
// the loaded value keeps whatever size the destination was declared with.
func lowerExpr(sub *ir.Opcode, st *buildState, lb *LowBlock, destSize int) *Register {
	switch sub.Tag {
	case ir.OpSrc:
		return mustReg(sub.Operand, st, lb, destSize)

	case ir.OpLoadw:
		offset, ok := st.stackSlot[sub.Var.Name]
		if !ok {
			utils.Fatal("codegen: loadw of %%%s before its alloc4", sub.Var.Name)
		}
		vreg := st.ctx.FreshVReg()
		r := newRegAt(st.life, vreg, destSize, st.day+1)
		lb.Push(&LowInstr{Tag: LowLoadw, Dst: r, Offset: offset})
		st.day++
		return r

	case ir.OpBop:
		// The left operand must already be a register: x86's add/sub/imul
		// overwrite their first operand in place. A literal on the left
		// (legal in the source language but not on the wire) is hoisted
		// into a fresh register first, exactly as Ret(Num) already is.
		lhs := mustReg(sub.LHS, st, lb, 4)
		rhs := toRegOrNum(sub.RHS, st, lb)
		lb.Push(&LowInstr{Tag: LowBop, BinOp: sub.BinOp, Dst: lhs, RHS: rhs})
		st.day++
		return lhs

	case ir.OpCall:
		return lowerCall(sub, st, lb)
	}
	utils.Fatal("codegen: unsupported assignment right-hand side %v", sub.Tag)
	return nil
}

func lowerComp(op *ir.Opcode, st *buildState, lb *LowBlock) {
	lhs := mustReg(op.CompL, st, lb, op.CompL.Type.RegRefSize())
	rhs := toRegOrNum(op.CompR, st, lb)
	dst := newRegAt(st.life, op.Dest.VReg, op.Dest.Type.RegRefSize(), st.day+1)
	lb.Push(&LowInstr{Tag: LowComp, CompOp: op.CompOp, Dst: dst, Src: lhs, CRHS: rhs})
	st.day++
}

// lowerCall allocates a fresh register for the callee's return value
// (discarded by the caller when the call isn't wrapped in an Assign),
// converts every argument to a register-or-immediate, and leaves UsedRegs
// empty for the allocator to fill with whatever physical slots are live
// across the call.
func lowerCall(op *ir.Opcode, st *buildState, lb *LowBlock) *Register {
	var args []RegOrNum
	for _, a := range op.Args {
		args = append(args, toRegOrNum(a, st, lb))
	}
	size := 4
	if op.RetType != nil {
		size = op.RetType.RegRefSize()
	}
	vreg := st.ctx.FreshVReg()
	dst := newRegAt(st.life, vreg, size, st.day+1)
	lb.Push(&LowInstr{Tag: LowCall, Dst: dst, FuncName: op.FuncName, Args: args})
	st.day++
	return dst
}

// operandSize reads an operand's own declared width, never a pointer it's
// stored through: a storew's value keeps the width it was declared with
// (ir.Word from the grammar, see parser.go's storew case) regardless of the
// alloca pointer's own type, which is always PtrWord/PtrLong.
func operandSize(op ir.Operand) int {
	switch v := op.(type) {
	case *ir.Variable:
		return v.Type.RegRefSize()
	case *ir.Num:
		return v.Type.RegRefSize()
	}
	utils.Fatal("codegen: operand %v has no declared width", op)
	return 0
}

// mustReg materializes op into a register: an already-defined variable is
// read directly, a global reference emits Movglobal, and a bare literal
// emits Movenum. Used wherever the low-IR shape has no immediate slot
// (Ret, Bop's left operand, Comp's left operand, a register-valued store).
func mustReg(op ir.Operand, st *buildState, lb *LowBlock, size int) *Register {
	switch v := op.(type) {
	case *ir.Variable:
		if v.GlobalName != "" {
			return materializeGlobal(v, st, lb)
		}
		return newRegAt(st.life, v.VReg, v.Type.RegRefSize(), st.day)
	case *ir.Num:
		return materializeNum(v.Value, size, st, lb)
	}
	utils.Fatal("codegen: operand %v cannot be materialized into a register", op)
	return nil
}

// toRegOrNum converts op the lighter way: a literal stays an immediate, a
// variable becomes a register. Used for Bop's right operand, Comp's right
// operand, and call arguments, the positions x86 and the System V calling
// convention both allow an immediate in.
func toRegOrNum(op ir.Operand, st *buildState, lb *LowBlock) RegOrNum {
	switch v := op.(type) {
	case *ir.Variable:
		if v.GlobalName != "" {
			return RegOperand(materializeGlobal(v, st, lb))
		}
		return RegOperand(newRegAt(st.life, v.VReg, v.Type.RegRefSize(), st.day))
	case *ir.Num:
		return NumOperand(v.Value)
	}
	utils.Fatal("codegen: operand %v has no low-ir representation", op)
	return RegOrNum{}
}

func materializeNum(val int64, size int, st *buildState, lb *LowBlock) *Register {
	vreg := st.ctx.FreshVReg()
	r := newRegAt(st.life, vreg, size, st.day+1)
	lb.Push(&LowInstr{Tag: LowMovenum, Dst: r, Num: val})
	st.day++
	return r
}

func materializeGlobal(v *ir.Variable, st *buildState, lb *LowBlock) *Register {
	label, ok := st.globalLC[v.GlobalName]
	if !ok {
		utils.Fatal("codegen: reference to undefined global $%s", v.GlobalName)
	}
	vreg := st.ctx.FreshVReg()
	r := newRegAt(st.life, vreg, 8, st.day+1)
	lb.Push(&LowInstr{Tag: LowMovglobal, Dst: r, GlobalLabel: label})
	st.day++
	return r
}
