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

	"kestrel/ir"
	"kestrel/utils"
)

const overflowLabel = ".Lkestrel_overflow"
const overflowMsgLabel = ".LCkestrel_overflow_msg"

// Assembler accumulates Intel-syntax x86-64 assembly text for a whole
// program: one buffer, grown instruction by instruction, the way the
// grounding implementation's own x86 backend works even though that one
// emits AT&T syntax. Secure tracks whether overflow-checked arithmetic
// (the -Sec flag) should emit a jo guard after every add/imul.
type Assembler struct {
	buf    string
	secure bool
}

func NewAssembler(secure bool) *Assembler {
	return &Assembler{secure: secure}
}

func (a *Assembler) line(format string, args ...any) {
	a.buf += fmt.Sprintf(format, args...) + "\n"
}

func (a *Assembler) label(name string) {
	a.buf += name + ":\n"
}

func (a *Assembler) comment(s string) {
	a.buf += fmt.Sprintf("  # %s\n", s)
}

// Emit lowers a fully allocated LowProgram into a complete assembly-file
// string: preamble, one label and body per function, and the .data section
// for every global (section 4.8).
func Emit(lp *LowProgram, secure bool) string {
	a := NewAssembler(secure)
	a.line(".intel_syntax noprefix")
	a.line(".text")
	a.line(".globl main")

	usesOverflowGuard := false
	for _, fn := range lp.Functions {
		a.emitFunction(fn, &usesOverflowGuard)
	}
	if usesOverflowGuard {
		a.emitOverflowHandler()
	}
	a.emitData(lp.Globals, usesOverflowGuard)
	return a.buf
}

func (a *Assembler) emitFunction(fn *LowFunction, usesOverflowGuard *bool) {
	a.label(fn.Label)
	frameSize := utils.Align16(fn.FrameSize)
	a.line("\tpush rbp")
	a.line("\tmov rbp, rsp")
	if frameSize > 0 {
		a.line("\tsub rsp, %d", frameSize)
	}
	for _, b := range fn.Blocks {
		a.label(blockLabel(fn.Label, b.Label))
		for _, li := range b.Instrs {
			a.emitInstr(fn, li, frameSize, usesOverflowGuard)
		}
	}
}

func blockLabel(fn, block string) string {
	return fmt.Sprintf(".L%s_%s", fn, block)
}

func memOperand(offset, size int) string {
	ptr := ""
	switch size {
	case 1:
		ptr = "byte ptr "
	case 4:
		ptr = "dword ptr "
	default:
		ptr = "qword ptr "
	}
	return fmt.Sprintf("%s[rbp-%d]", ptr, offset)
}

func (a *Assembler) emitInstr(fn *LowFunction, li *LowInstr, frameSize int, usesOverflowGuard *bool) {
	switch li.Tag {
	case LowMovenum:
		a.line("\tmov %s, %d", selReg(li.Dst.PReg, li.Dst.Size), li.Num)

	case LowMovglobal:
		a.line("\tlea %s, [rip + %s]", selReg(li.Dst.PReg, 8), li.GlobalLabel)

	case LowMovereg:
		if li.Dst.PReg == li.Src.PReg {
			return // same physical slot already, nothing to move
		}
		a.line("\tmov %s, %s", selReg(li.Dst.PReg, li.Dst.Size), selReg(li.Src.PReg, li.Dst.Size))

	case LowRet:
		size := memoryAccessSize(li.Dst.Size)
		a.line("\tmov %s, %s", selRax(size), selReg(li.Dst.PReg, size))
		if frameSize > 0 {
			a.line("\tadd rsp, %d", frameSize)
		}
		a.line("\tpop rbp")
		a.line("\tret")

	case LowStorewreg:
		a.line("\tmov %s, %s", memOperand(li.Offset, li.Dst.Size), selReg(li.Dst.PReg, li.Dst.Size))

	case LowStorewnum:
		a.line("\tmov %s, %d", memOperand(li.Offset, li.Size), li.Num)

	case LowLoadw:
		a.line("\tmov %s, %s", selReg(li.Dst.PReg, li.Dst.Size), memOperand(li.Offset, li.Dst.Size))

	case LowBop:
		a.emitBop(li, usesOverflowGuard)

	case LowCall:
		a.emitCall(li)

	case LowComp:
		a.emitComp(li)

	case LowJnz:
		a.line("\tcmp %s, 0", selReg(li.Dst.PReg, li.Dst.Size))
		a.line("\tjne %s", blockLabel(fn.Label, li.TrueLbl))
		a.line("\tjmp %s", blockLabel(fn.Label, li.FalseLbl))

	case LowJmp:
		a.line("\tjmp %s", blockLabel(fn.Label, li.TrueLbl))

	case LowNop:
		// nothing to emit
	}
}

func (a *Assembler) rhsOperand(rhs RegOrNum, size int) string {
	if rhs.IsNum {
		return fmt.Sprintf("%d", rhs.Num)
	}
	return selReg(rhs.Reg.PReg, size)
}

func (a *Assembler) emitBop(li *LowInstr, usesOverflowGuard *bool) {
	dst := selReg(li.Dst.PReg, li.Dst.Size)
	rhs := a.rhsOperand(li.RHS, li.Dst.Size)
	switch li.BinOp {
	case ir.Add:
		a.line("\tadd %s, %s", dst, rhs)
	case ir.Sub:
		a.line("\tsub %s, %s", dst, rhs)
	case ir.Mul:
		a.line("\timul %s, %s", dst, rhs)
	default:
		utils.Fatal("codegen: unsupported binary op %v", li.BinOp)
	}
	if a.secure && (li.BinOp == ir.Add || li.BinOp == ir.Mul) {
		*usesOverflowGuard = true
		a.line("\tjo %s", overflowLabel)
	}
}

// emitCall saves every physical slot the allocator found live across the
// call, places arguments in the System V integer argument registers, and
// restores the saved slots afterward in reverse order. eax is cleared
// (the System V vector-register count for a variadic call) only when the
// callee is printf; calls to any other function leave it untouched.
func (a *Assembler) emitCall(li *LowInstr) {
	for _, slot := range li.UsedRegs {
		a.line("\tpush %s", X64Reg64[slot])
	}
	for i, arg := range li.Args {
		argReg := selArgReg(i)
		if arg.IsNum {
			a.line("\tmov %s, %d", X64Reg64[argReg], arg.Num)
		} else {
			a.line("\tmov %s, %s", selReg(argReg, arg.Reg.Size), selReg(arg.Reg.PReg, arg.Reg.Size))
		}
	}
	if li.FuncName == "printf" {
		a.line("\tmov eax, 0")
	}
	a.line("\tcall %s", li.FuncName)
	if li.Dst != nil {
		a.line("\tmov %s, %s", selReg(li.Dst.PReg, li.Dst.Size), selRax(li.Dst.Size))
	}
	for i := len(li.UsedRegs) - 1; i >= 0; i-- {
		a.line("\tpop %s", X64Reg64[li.UsedRegs[i]])
	}
}

func (a *Assembler) emitComp(li *LowInstr) {
	rhs := a.rhsOperand(li.CRHS, li.Src.Size)
	a.line("\tcmp %s, %s", selReg(li.Src.PReg, li.Src.Size), rhs)
	set8 := selReg(li.Dst.PReg, 1)
	switch li.CompOp {
	case ir.Ceqw:
		a.line("\tsete %s", set8)
	case ir.Csltw:
		a.line("\tsetl %s", set8)
	default:
		utils.Fatal("codegen: unsupported comparison op %v", li.CompOp)
	}
	a.line("\tmovzx %s, %s", selReg(li.Dst.PReg, li.Dst.Size), set8)
}

// emitOverflowHandler emits the single shared trap every overflow-checked
// add/imul jumps to in secure mode: print the error and exit(1), never
// returning, so it needs no epilogue of its own.
func (a *Assembler) emitOverflowHandler() {
	a.label(overflowLabel)
	a.line("\tlea rdi, [rip + %s]", overflowMsgLabel)
	a.line("\tmov eax, 0")
	a.line("\tcall printf")
	a.line("\tmov edi, 1")
	a.line("\tcall exit")
}

func (a *Assembler) emitData(globals []*ir.Global, usesOverflowGuard bool) {
	if len(globals) == 0 && !usesOverflowGuard {
		return
	}
	a.line(".data")
	if usesOverflowGuard {
		a.label(overflowMsgLabel)
		a.line("\t.string \"integer overflow\\n\"")
	}
	for _, g := range globals {
		if g.Alignment > 0 {
			a.line(".align %d", g.Alignment)
		}
		a.label(fmt.Sprintf(".LC%d", utils.Abs(g.FreshID)))
		for _, el := range g.Elements {
			a.emitDataElement(el)
		}
	}
}

func (a *Assembler) emitDataElement(op ir.Operand) {
	switch v := op.(type) {
	case *ir.String:
		a.line("\t.string \"%s\"", v.Label)
	case *ir.Num:
		switch v.Type.RegRefSize() {
		case 1:
			a.line("\t.byte %d", v.Value)
		case 4:
			a.line("\t.long %d", v.Value)
		default:
			a.line("\t.quad %d", v.Value)
		}
	default:
		utils.Fatal("codegen: global data element %v has no static representation", op)
	}
}
