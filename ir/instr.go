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
package ir

import "fmt"

// BinOp is the opcode carried by a Bop instruction.
type BinOp int

const (
	Add BinOp = iota
	Sub
	Mul
)

func (b BinOp) String() string {
	switch b {
	case Add:
		return "add"
	case Sub:
		return "sub"
	case Mul:
		return "mul"
	}
	return "<unknown-binop>"
}

// CompOp is the opcode carried by a Comp instruction.
type CompOp int

const (
	Ceqw CompOp = iota
	Csltw
)

func (c CompOp) String() string {
	switch c {
	case Ceqw:
		return "ceqw"
	case Csltw:
		return "csltw"
	}
	return "<unknown-compop>"
}

// Opcode is the tagged union of section 3's instruction set. Exactly one of
// the typed fields is meaningful per Tag.
type Opcode struct {
	Tag OpTag

	// Ret, Src, Storew(lhs)
	Operand Operand

	// Assign
	AssignType *Type
	Dest       *Variable
	Sub        *Opcode

	// Alloc4
	Alloca *Variable
	Bytes  int

	// Storew(dst var), Loadw
	Var *Variable

	// Bop
	BinOp BinOp
	LHS   Operand
	RHS   Operand

	// Call
	RetType  *Type
	FuncName string
	Args     []Operand
	Variadic bool

	// Comp
	CompOp  CompOp
	CompL   *Variable
	CompR   Operand

	// Jnz
	CondVar  *Variable
	TrueLbl  string
	FalseLbl string

	// Jmp
	Label string

	// Phi
	AllocaLabel string // empty means none
	HasAlloca   bool
	PhiArgs     []PhiArg
}

// PhiArg is one (predecessor-label, operand) contribution to a phi.
type PhiArg struct {
	Pred    string
	Operand Operand
}

// OpTag discriminates Opcode.
type OpTag int

const (
	OpRet OpTag = iota
	OpAssign
	OpAlloc4
	OpStorew
	OpLoadw
	OpBop
	OpCall
	OpComp
	OpJnz
	OpJmp
	OpPhi
	OpSrc
	OpNop
	OpDummy
)

func (t OpTag) String() string {
	switch t {
	case OpRet:
		return "ret"
	case OpAssign:
		return "assign"
	case OpAlloc4:
		return "alloc4"
	case OpStorew:
		return "storew"
	case OpLoadw:
		return "loadw"
	case OpBop:
		return "bop"
	case OpCall:
		return "call"
	case OpComp:
		return "comp"
	case OpJnz:
		return "jnz"
	case OpJmp:
		return "jmp"
	case OpPhi:
		return "phi"
	case OpSrc:
		return "src"
	case OpNop:
		return "nop"
	case OpDummy:
		return "dummy"
	}
	return "<unknown-tag>"
}

func (o *Opcode) String() string {
	switch o.Tag {
	case OpRet:
		return fmt.Sprintf("ret %v", o.Operand)
	case OpAssign:
		return fmt.Sprintf("%v =%v %v", o.Dest, o.AssignType, o.Sub)
	case OpAlloc4:
		return fmt.Sprintf("%v =l alloc4 %d", o.Alloca, o.Bytes)
	case OpStorew:
		return fmt.Sprintf("storew %v, %v", o.Operand, o.Var)
	case OpLoadw:
		return fmt.Sprintf("loadw %v", o.Var)
	case OpBop:
		return fmt.Sprintf("%v %v, %v", o.BinOp, o.LHS, o.RHS)
	case OpCall:
		s := fmt.Sprintf("call $%s(", o.FuncName)
		for i, a := range o.Args {
			if i > 0 {
				s += ", "
			}
			s += a.String()
		}
		if o.Variadic {
			s += ", ..."
		}
		return s + ")"
	case OpComp:
		return fmt.Sprintf("%v %v, %v, %v", o.CompOp, o.Dest, o.CompL, o.CompR)
	case OpJnz:
		return fmt.Sprintf("jnz %v, %s, %s", o.CondVar, o.TrueLbl, o.FalseLbl)
	case OpJmp:
		return fmt.Sprintf("jmp %s", o.Label)
	case OpPhi:
		s := "phi"
		for _, a := range o.PhiArgs {
			s += fmt.Sprintf(" %s %v", a.Pred, a.Operand)
		}
		return s
	case OpSrc:
		return fmt.Sprintf("src %v", o.Operand)
	case OpNop:
		return "nop"
	case OpDummy:
		return "<dummy>"
	}
	return "<unknown-opcode>"
}

// Instruction wraps an Opcode with its liveness flag and owning block label,
// matching section 3's { op, living, block-label } shape.
type Instruction struct {
	Op        *Opcode
	Living    bool
	BlockName string
}

func NewInstr(op *Opcode, block string) *Instruction {
	return &Instruction{Op: op, Living: false, BlockName: block}
}

func (i *Instruction) String() string {
	alive := " "
	if !i.Living {
		alive = "x"
	}
	return fmt.Sprintf("[%s] %v", alive, i.Op)
}

// IsNop reports whether this instruction's opcode is Nop. It does not look
// at Living: a non-living instruction with another opcode is not a Nop.
func (i *Instruction) IsNop() bool {
	return i.Op.Tag == OpNop
}
