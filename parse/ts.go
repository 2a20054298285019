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

// tokenStream is a cursor over a flat token slice, the Go analogue of the
// reference grammar's TokenMass.
type tokenStream struct {
	toks []lex.Token
	pos  int
}

func newTokenStream(toks []lex.Token) *tokenStream {
	return &tokenStream{toks: toks}
}

func (t *tokenStream) cur() lex.Token {
	return t.toks[t.pos]
}

func (t *tokenStream) curKind() lex.TokenKind {
	return t.toks[t.pos].Kind
}

func (t *tokenStream) expect(k lex.TokenKind) {
	if t.toks[t.pos].Kind != k {
		utils.Fatal("parse: expected %v, got %v at line %d", k, t.toks[t.pos].Kind, t.toks[t.pos].Line)
	}
	t.pos++
}

// eat consumes the current token and reports true if it matches k, otherwise
// leaves the cursor untouched and reports false.
func (t *tokenStream) eat(k lex.TokenKind) bool {
	if t.toks[t.pos].Kind == k {
		t.pos++
		return true
	}
	return false
}

func (t *tokenStream) text() string {
	s := t.toks[t.pos].Text
	t.pos++
	return s
}

func (t *tokenStream) num() int64 {
	if t.toks[t.pos].Kind != lex.TkIlit {
		utils.Fatal("parse: expected an integer literal at line %d", t.toks[t.pos].Line)
	}
	n := t.toks[t.pos].Num
	t.pos++
	return n
}

func (t *tokenStream) readType() *ir.Type {
	switch t.curKind() {
	case lex.TkWord:
		t.pos++
		return ir.Word
	case lex.TkLong:
		t.pos++
		return ir.Long
	case lex.TkByte:
		t.pos++
		return ir.Byte
	}
	utils.Fatal("parse: expected a type token, got %v at line %d", t.curKind(), t.toks[t.pos].Line)
	return nil
}

func (t *tokenStream) readBinOp() (ir.BinOp, bool) {
	switch t.curKind() {
	case lex.KwAdd:
		t.pos++
		return ir.Add, true
	case lex.KwSub:
		t.pos++
		return ir.Sub, true
	case lex.KwMul:
		t.pos++
		return ir.Mul, true
	}
	return 0, false
}

func (t *tokenStream) readBlockLabel() string {
	if t.curKind() != lex.TkBlockLabel {
		utils.Fatal("parse: expected a block label at line %d", t.toks[t.pos].Line)
	}
	return t.text()
}

// readFuncHeader peeks the function name and declared return type (Void if
// absent) without consuming any tokens, so the caller can pre-register the
// function's signature before its body is parsed — forward and recursive
// calls resolve the same way regardless of declaration order.
func (t *tokenStream) readFuncHeader() (string, *ir.Type) {
	save := t.pos
	var retType *ir.Type
	if t.curKind() == lex.TkDollar {
		retType = ir.Void
	} else {
		retType = t.readType()
	}
	t.expect(lex.TkDollar)
	name := t.text()
	t.pos = save
	return name, retType
}

// readOperand parses a first-class-object token: a variable reference, an
// integer literal typed as ty, or a quoted string literal.
func (t *tokenStream) readOperand(ty *ir.Type, e *env) ir.Operand {
	switch t.curKind() {
	case lex.TkIdent:
		name := t.text()
		return e.lookupVar(name)
	case lex.TkIlit:
		v := t.num()
		return &ir.Num{Type: ty, Value: v}
	case lex.TkString:
		s := t.text()
		return &ir.String{Label: s}
	}
	utils.Fatal("parse: unexpected operand token %v at line %d", t.curKind(), t.toks[t.pos].Line)
	return nil
}

func (t *tokenStream) readVar(e *env) *ir.Variable {
	name := t.text()
	return e.lookupVar(name)
}

// prescanVars walks this function's body once, before any block is parsed,
// and pre-declares every assignment destination with a fresh vreg. A phi at
// a loop header legitimately names a value defined later in the same block
// or in a block appearing after it in the text (the loop's back-edge), so
// that name must already resolve by the time parseBlock reaches the phi
// line — the same forward-resolution trick readFuncHeader uses for calls.
func (t *tokenStream) prescanVars(e *env, ctx *ir.Context) {
	for i := t.pos; t.toks[i].Kind != lex.TkRbrace; i++ {
		tok := t.toks[i]
		if tok.Kind != lex.TkIdent {
			continue
		}
		var ty *ir.Type
		switch t.toks[i+1].Kind {
		case lex.TkEqw:
			ty = ir.Word
		case lex.TkEql:
			ty = ir.Long
		default:
			continue
		}
		if _, exists := e.lvs[tok.Text]; exists {
			continue
		}
		e.declVar(&ir.Variable{Name: tok.Text, Type: ty, VReg: ctx.FreshVReg()})
	}
}
