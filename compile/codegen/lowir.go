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

// Package codegen lowers SSA-free, out-of-SSA IR into low-IR (virtual
// registers plus live intervals), allocates physical registers with
// spill/stash, and emits Intel-syntax x86-64 assembly.
package codegen

import (
	"fmt"

	"kestrel/ir"
)

// NullDay marks a birth/death/physical slot that hasn't been assigned yet.
const NullDay = -100

// Register is a low-IR operand: a virtual-register id, its eventual
// physical slot, the instruction-day span it's live across, and its width
// in bytes (1, 4 or 8). A negative VReg is a pre-bound argument register.
type Register struct {
	VReg  int
	PReg  int
	Birth int
	Death int
	Size  int
}

func NewRegister(vreg, size int) *Register {
	return &Register{VReg: vreg, PReg: NullDay, Birth: NullDay, Death: NullDay, Size: size}
}

func (r *Register) String() string {
	return fmt.Sprintf("%dr[%d](%d)", r.Size, r.VReg, r.PReg)
}

// RegOrNum is either an allocated register or a bare immediate — the shape
// every non-destination operand takes once SSA values become low-IR.
type RegOrNum struct {
	Reg   *Register
	Num   int64
	IsNum bool
}

func RegOperand(r *Register) RegOrNum { return RegOrNum{Reg: r} }
func NumOperand(n int64) RegOrNum     { return RegOrNum{Num: n, IsNum: true} }

func (r RegOrNum) String() string {
	if r.IsNum {
		return fmt.Sprintf("%d", r.Num)
	}
	return r.Reg.String()
}

// LowTag discriminates LowInstr, one opcode per low-IR shape in section 4.6.
type LowTag int

const (
	LowMovenum LowTag = iota
	LowMovglobal
	LowMovereg
	LowRet
	LowStorewreg
	LowStorewnum
	LowLoadw
	LowBop
	LowCall
	LowComp
	LowJnz
	LowJmp
	LowNop
)

// LowInstr is the tagged union of low-IR instructions. Exactly one group of
// fields is meaningful per Tag, mirroring ir.Opcode's shape.
type LowInstr struct {
	Tag LowTag

	// Movenum(Dst, Num), Storewnum(Num, Offset)
	Num int64

	// Movglobal(Dst, GlobalLabel)
	GlobalLabel string

	// Movenum/Movglobal/Ret/Storewreg/Loadw/Jnz(Dst or sole reg)
	Dst *Register
	// Movereg(Dst,Src), Bop(Dst,RHS is separate), Comp(Dst,LHS)
	Src *Register

	// Storewreg/Storewnum/Loadw: frame offset from rbp
	Offset int

	// Storewnum's memory operand width in bytes (Dst carries this for every
	// other variant that touches memory)
	Size int

	// Bop
	BinOp ir.BinOp
	RHS   RegOrNum

	// Call
	FuncName string
	Args     []RegOrNum
	UsedRegs []int // physical slots live across the call; filled by the allocator

	// Comp
	CompOp ir.CompOp
	CRHS   RegOrNum

	// Jnz/Jmp
	TrueLbl  string
	FalseLbl string

	// registers touched by this instruction, destinations first, matching
	// the allocator's required scan order (section 4.7)
}

// Dests returns the instruction's destination registers (written first),
// the order the allocator's per-instruction procedure requires.
func (li *LowInstr) Dests() []*Register {
	switch li.Tag {
	case LowMovenum, LowMovglobal, LowLoadw, LowCall:
		return []*Register{li.Dst}
	case LowMovereg:
		return []*Register{li.Dst}
	case LowBop:
		return []*Register{li.Dst}
	case LowComp:
		return []*Register{li.Dst}
	}
	return nil
}

// Sources returns the instruction's source registers, left to right.
func (li *LowInstr) Sources() []*Register {
	var regs []*Register
	switch li.Tag {
	case LowRet, LowStorewreg, LowJnz:
		regs = append(regs, li.Dst)
	case LowMovereg:
		regs = append(regs, li.Src)
	case LowBop:
		regs = append(regs, li.Dst) // dst doubles as the left operand, read then overwritten
		if !li.RHS.IsNum {
			regs = append(regs, li.RHS.Reg)
		}
	case LowComp:
		regs = append(regs, li.Src)
		if !li.CRHS.IsNum {
			regs = append(regs, li.CRHS.Reg)
		}
	case LowCall:
		for _, a := range li.Args {
			if !a.IsNum {
				regs = append(regs, a.Reg)
			}
		}
	}
	return regs
}

// LowBlock is a basic block of low-IR instructions.
type LowBlock struct {
	Label  string
	Instrs []*LowInstr
}

func NewLowBlock(label string) *LowBlock {
	return &LowBlock{Label: label}
}

func (b *LowBlock) Push(li *LowInstr) {
	b.Instrs = append(b.Instrs, li)
}

// LowFunction is a compiled function's low-IR: its blocks in order plus the
// stack-frame size its allocas and stash slots need.
type LowFunction struct {
	Label     string
	Blocks    []*LowBlock
	FrameSize int
}

func NewLowFunction(label string) *LowFunction {
	return &LowFunction{Label: label}
}

// LowProgram is the whole compilation unit's low-IR plus the globals that
// carry through from the front end untouched (the emitter lays them out).
type LowProgram struct {
	Functions []*LowFunction
	Globals   []*ir.Global
}
