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
package parse

import (
	"kestrel/ir"
	"kestrel/lex"
	"kestrel/utils"
)

// Parse consumes a whole token stream and builds the program it describes:
// a sequence of function and data definitions, in source order.
func Parse(toks []lex.Token, ctx *ir.Context) *ir.Program {
	ts := newTokenStream(toks)
	e := newEnv()
	prog := ir.NewProgram()
	for {
		if ts.eat(lex.KwFunction) {
			name, retType := ts.readFuncHeader()
			e.declFunc(name, retType)
			prog.Functions = append(prog.Functions, parseFunc(ts, e, ctx))
			continue
		}
		if ts.eat(lex.KwData) {
			prog.Globals = append(prog.Globals, parseData(ts, e, ctx))
			continue
		}
		ts.expect(lex.TkEOF)
		return prog
	}
}

func parseFunc(ts *tokenStream, e *env, ctx *ir.Context) *ir.Function {
	retType := ir.Void
	if ts.curKind() != lex.TkDollar {
		retType = ts.readType()
	}
	ts.expect(lex.TkDollar)
	name := ts.text()

	e.resetLocals()
	args := parseArgs(ts, e)
	fn := ir.NewFunction(name, retType, args)

	ts.expect(lex.TkLbrace)
	ts.prescanVars(e, ctx)
	for {
		if ts.curKind() == lex.TkBlockLabel {
			parseBlock(ts, e, ctx, fn)
			continue
		}
		ts.expect(lex.TkRbrace)
		return fn
	}
}

// parseArgs parses a parenthesized, comma-separated argument list. Each
// argument is assigned a negative virtual register (-1, -2, ...) marking it
// as living in an incoming argument-passing physical register rather than a
// spilled slot (section 3 of the data model).
func parseArgs(ts *tokenStream, e *env) []*ir.Variable {
	ts.expect(lex.TkLparen)
	if ts.eat(lex.TkRparen) {
		return nil
	}
	var args []*ir.Variable
	frsn := -1
	for {
		ty := ts.readType()
		name := ts.text()
		v := &ir.Variable{Name: name, Type: ty, VReg: frsn}
		e.declVar(v)
		args = append(args, v)
		if ts.eat(lex.TkRparen) {
			return args
		}
		ts.expect(lex.TkComma)
		frsn--
	}
}

// parseBlock reads one @label-headed block. The label's trailing colon is
// punctuation, not grammar: section 8's example programs never write one
// (`@s %a=w add 3,4 ...`), so it's consumed only when present.
func parseBlock(ts *tokenStream, e *env, ctx *ir.Context, fn *ir.Function) *ir.Block {
	name := ts.text()
	b := fn.NewBlock(name)
	ts.eat(lex.TkColon)
	for {
		k := ts.curKind()
		if k == lex.TkBlockLabel || k == lex.TkRbrace {
			return b
		}
		in := parseInstrOverall(ts, e, ctx)
		in.BlockName = name
		b.PushInstr(in)
	}
}

// parseInstrOverall parses one full instruction line: a bare control
// transfer, a store, or an "lhs =type rhs" assignment whose right-hand side
// is either resolved here (alloc4, compares) or delegated to
// parseInstrRHS (loadw, binop, call, phi).
func parseInstrOverall(ts *tokenStream, e *env, ctx *ir.Context) *ir.Instruction {
	if ts.eat(lex.KwRet) {
		v := ts.readOperand(ir.Word, e)
		return ir.NewInstr(&ir.Opcode{Tag: ir.OpRet, Operand: v}, "")
	}

	if ts.curKind() == lex.TkIdent {
		name := ts.text()
		var assignType *ir.Type
		switch ts.curKind() {
		case lex.TkEql:
			assignType = ir.Long
		case lex.TkEqw:
			assignType = ir.Word
		default:
			utils.Fatal("parse: expected =w or =l after %%%s at line %d", name, ts.cur().Line)
		}
		ts.pos++
		// dest was already pre-declared by prescanVars, so any forward
		// reference from an earlier phi or loop-header line resolves to the
		// very *ir.Variable this definition now fills in.
		dest := e.lookupVar(name)
		dest.Type = assignType

		if ts.eat(lex.KwAlloc4) {
			bytes := int(ts.num())
			dest.Type = ir.PtrWord
			return ir.NewInstr(&ir.Opcode{Tag: ir.OpAlloc4, Alloca: dest, Bytes: bytes}, "")
		}

		if ts.curKind() == lex.KwCeqw || ts.curKind() == lex.KwCsltw {
			compOp := ir.Ceqw
			if ts.curKind() == lex.KwCsltw {
				compOp = ir.Csltw
			}
			ts.pos++
			lhs := ts.readVar(e)
			ts.expect(lex.TkComma)
			rhs := ts.readOperand(ir.Word, e)
			dest.Type = ir.Word
			return ir.NewInstr(&ir.Opcode{Tag: ir.OpComp, CompOp: compOp, Dest: dest, CompL: lhs, CompR: rhs}, "")
		}

		sub := parseInstrRHS(ts, e, ctx)
		return ir.NewInstr(&ir.Opcode{Tag: ir.OpAssign, AssignType: assignType, Dest: dest, Sub: sub}, "")
	}

	if ts.eat(lex.KwStorew) {
		lhs := ts.readOperand(ir.Word, e)
		ts.expect(lex.TkComma)
		rhs := ts.readVar(e)
		return ir.NewInstr(&ir.Opcode{Tag: ir.OpStorew, Operand: lhs, Var: rhs}, "")
	}

	if ts.eat(lex.KwJnz) {
		cond := ts.readVar(e)
		ts.expect(lex.TkComma)
		l1 := ts.readBlockLabel()
		ts.expect(lex.TkComma)
		l2 := ts.readBlockLabel()
		return ir.NewInstr(&ir.Opcode{Tag: ir.OpJnz, CondVar: cond, TrueLbl: l1, FalseLbl: l2}, "")
	}

	if ts.eat(lex.KwJmp) {
		l := ts.readBlockLabel()
		return ir.NewInstr(&ir.Opcode{Tag: ir.OpJmp, Label: l}, "")
	}

	if ts.curKind() == lex.KwCall {
		return ir.NewInstr(parseInstrRHS(ts, e, ctx), "")
	}

	utils.Fatal("parse: unexpected token %v at line %d", ts.curKind(), ts.cur().Line)
	return nil
}

// parseInstrRHS parses the right-hand side forms that can appear either
// after "lhs =type" or, for a discarded call, standalone in a block.
func parseInstrRHS(ts *tokenStream, e *env, ctx *ir.Context) *ir.Opcode {
	if ts.eat(lex.KwLoadw) {
		v := ts.readVar(e)
		utils.Assert(v.Type == ir.PtrWord || v.Type == ir.PtrLong,
			"loadw operand %%%s must be a pointer, got %v", v.Name, v.Type)
		return &ir.Opcode{Tag: ir.OpLoadw, Var: v}
	}

	if bop, ok := ts.readBinOp(); ok {
		lhs := ts.readOperand(ir.Word, e)
		ts.expect(lex.TkComma)
		rhs := ts.readOperand(ir.Word, e)
		return &ir.Opcode{Tag: ir.OpBop, BinOp: bop, LHS: lhs, RHS: rhs}
	}

	if ts.eat(lex.KwCall) {
		ts.expect(lex.TkDollar)
		funcName := ts.text()
		retType := e.funcRetType(funcName)
		variadic := false
		var args []ir.Operand
		ts.expect(lex.TkLparen)
		if ts.eat(lex.TkRparen) {
			return &ir.Opcode{Tag: ir.OpCall, RetType: retType, FuncName: funcName, Args: args, Variadic: variadic}
		}
		for {
			if ts.eat(lex.TkEllipsis) {
				variadic = true
			} else {
				ty := ts.readType()
				ts.eat(lex.TkDollar)
				args = append(args, ts.readOperand(ty, e))
			}
			if ts.eat(lex.TkRparen) {
				break
			}
			ts.expect(lex.TkComma)
		}
		return &ir.Opcode{Tag: ir.OpCall, RetType: retType, FuncName: funcName, Args: args, Variadic: variadic}
	}

	if ts.eat(lex.KwPhi) {
		var phiArgs []ir.PhiArg
		for ts.curKind() == lex.TkBlockLabel {
			pred := ts.text()
			operand := ts.readOperand(ir.Word, e)
			phiArgs = append(phiArgs, ir.PhiArg{Pred: pred, Operand: operand})
		}
		return &ir.Opcode{Tag: ir.OpPhi, PhiArgs: phiArgs}
	}

	utils.Fatal("parse: unrecognized instruction right-hand side at token %v, line %d", ts.curKind(), ts.cur().Line)
	return nil
}

// parseData parses a global data definition: an optional alignment, then a
// run of (type, value...) groups until the closing brace. Consecutive values
// of the same declared type accumulate into one composite field so the
// layout (section 3's Global.Type) records repetition counts instead of one
// field per scalar.
func parseData(ts *tokenStream, e *env, ctx *ir.Context) *ir.Global {
	g := &ir.Global{FreshID: ctx.FreshGlobalID()}
	ts.expect(lex.TkDollar)
	g.Label = ts.text()
	ts.expect(lex.TkEq)
	if ts.eat(lex.KwAlign) {
		g.Alignment = int(ts.num())
	}
	ts.expect(lex.TkLbrace)

	var fields []ir.CompositeField
	for {
		dty := ts.readType()
		count := 0
		for !ts.eat(lex.TkComma) {
			g.Elements = append(g.Elements, ts.readOperand(dty, e))
			count++
			if ts.eat(lex.TkRbrace) {
				g.Type = ir.NewComposite(append(fields, ir.CompositeField{Type: dty, Count: count})...)
				e.declGlobal(g)
				return g
			}
		}
		fields = append(fields, ir.CompositeField{Type: dty, Count: count})
	}
}
