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

import "kestrel/ir"

// EliminateDeadCode marks every instruction in fn living or not (section
// 4.3). It never removes an instruction or renumbers a block; downstream
// passes are expected to skip everything left non-living.
func EliminateDeadCode(fn *ir.Function) {
	defsByName := make(map[string][]*ir.Instruction)
	var worklist []*ir.Instruction

	for _, b := range fn.Blocks {
		for _, in := range b.Instrs {
			switch in.Op.Tag {
			case ir.OpRet, ir.OpCall, ir.OpJmp, ir.OpJnz:
				in.Living = true
				worklist = append(worklist, in)
			case ir.OpAssign, ir.OpAlloc4, ir.OpStorew, ir.OpComp:
				name := definedName(in.Op)
				defsByName[name] = append(defsByName[name], in)
			}
		}
	}

	for len(worklist) > 0 {
		in := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		for _, name := range usedNames(in.Op) {
			defs, ok := defsByName[name]
			if !ok {
				continue
			}
			delete(defsByName, name)
			for _, d := range defs {
				d.Living = true
				worklist = append(worklist, d)
			}
		}
	}
}

func definedName(op *ir.Opcode) string {
	switch op.Tag {
	case ir.OpAssign:
		return op.Dest.Name
	case ir.OpAlloc4:
		return op.Alloca.Name
	case ir.OpStorew:
		return op.Var.Name
	case ir.OpComp:
		return op.Dest.Name
	}
	return ""
}

// usedNames returns every variable name op reads, matching the table in
// section 4.3: an operand contributes only when it actually names a
// variable (literals and string refs never keep anything alive).
func usedNames(op *ir.Opcode) []string {
	var names []string
	addIfVar := func(o ir.Operand) {
		if o == nil {
			return
		}
		if name, ok := ir.VariableName(o); ok {
			names = append(names, name)
		}
	}
	switch op.Tag {
	case ir.OpRet:
		addIfVar(op.Operand)
	case ir.OpAssign:
		names = append(names, usedNames(op.Sub)...)
	case ir.OpLoadw:
		names = append(names, op.Var.Name)
	case ir.OpJnz:
		names = append(names, op.CondVar.Name)
	case ir.OpStorew:
		names = append(names, op.Var.Name)
		addIfVar(op.Operand)
	case ir.OpBop:
		addIfVar(op.LHS)
		addIfVar(op.RHS)
	case ir.OpCall:
		for _, a := range op.Args {
			addIfVar(a)
		}
	case ir.OpComp:
		names = append(names, op.Dest.Name, op.CompL.Name)
		addIfVar(op.CompR)
	case ir.OpPhi:
		for _, a := range op.PhiArgs {
			addIfVar(a.Operand)
		}
	}
	return names
}
