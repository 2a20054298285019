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

import "fmt"

// FormatLowProgram renders lp's low-IR in a debug-dump form: one line per
// instruction, registers shown as virtual/physical plus their live day
// span. Used by the --out-lowir and --out-lowir_rega stage dumps, before
// and after register allocation has filled in every PReg.
func FormatLowProgram(lp *LowProgram) string {
	s := ""
	for _, fn := range lp.Functions {
		s += fmt.Sprintf("function %s (frame=%d) {\n", fn.Label, fn.FrameSize)
		for _, b := range fn.Blocks {
			s += fmt.Sprintf("%s:\n", b.Label)
			for _, li := range b.Instrs {
				s += "  " + formatLowInstr(li) + "\n"
			}
		}
		s += "}\n"
	}
	return s
}

func formatLowInstr(li *LowInstr) string {
	switch li.Tag {
	case LowMovenum:
		return fmt.Sprintf("movenum %s, %d", li.Dst, li.Num)
	case LowMovglobal:
		return fmt.Sprintf("movglobal %s, %s", li.Dst, li.GlobalLabel)
	case LowMovereg:
		return fmt.Sprintf("movereg %s, %s", li.Dst, li.Src)
	case LowRet:
		return fmt.Sprintf("ret %s", li.Dst)
	case LowStorewreg:
		return fmt.Sprintf("storewreg [rbp-%d], %s", li.Offset, li.Dst)
	case LowStorewnum:
		return fmt.Sprintf("storewnum [rbp-%d], %d", li.Offset, li.Num)
	case LowLoadw:
		return fmt.Sprintf("loadw %s, [rbp-%d]", li.Dst, li.Offset)
	case LowBop:
		return fmt.Sprintf("%s %s, %s", li.BinOp, li.Dst, li.RHS)
	case LowCall:
		return fmt.Sprintf("call %s, %s%v used=%v", li.Dst, li.FuncName, li.Args, li.UsedRegs)
	case LowComp:
		return fmt.Sprintf("%s %s, %s, %s", li.CompOp, li.Dst, li.Src, li.CRHS)
	case LowJnz:
		return fmt.Sprintf("jnz %s, %s, %s", li.Dst, li.TrueLbl, li.FalseLbl)
	case LowJmp:
		return fmt.Sprintf("jmp %s", li.TrueLbl)
	case LowNop:
		return "nop"
	}
	return "<unknown-low-instr>"
}
