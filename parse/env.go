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

// Package parse builds an ir.Program from a token stream produced by lex.
// Lexing and parsing are treated as external collaborators by the core
// specification; this package exists so the repository runs end to end,
// designed after the teacher's ast parser and original_source/parser.rs.
package parse

import (
	"kestrel/ir"
	"kestrel/utils"
)

// env resolves identifiers to their declared type/variable during parsing,
// mirroring parser.rs's Env (function return types, local vars, globals).
type env struct {
	fns  map[string]*ir.Type
	lvs  map[string]*ir.Variable
	gvs  map[string]*ir.Global
}

func newEnv() *env {
	return &env{
		fns: make(map[string]*ir.Type),
		lvs: make(map[string]*ir.Variable),
		gvs: make(map[string]*ir.Global),
	}
}

func (e *env) declFunc(name string, retType *ir.Type) {
	e.fns[name] = retType
}

func (e *env) funcRetType(name string) *ir.Type {
	if t, ok := e.fns[name]; ok {
		return t
	}
	return ir.Void
}

func (e *env) declVar(v *ir.Variable) {
	e.lvs[v.Name] = v
}

func (e *env) declGlobal(g *ir.Global) {
	e.gvs[g.Label] = g
}

func (e *env) lookupVar(name string) *ir.Variable {
	if v, ok := e.lvs[name]; ok {
		return v
	}
	if g, ok := e.gvs[name]; ok {
		return &ir.Variable{Name: g.Label, Type: g.Type, VReg: -10, GlobalName: g.Label}
	}
	utils.Fatal("undefined variable %%%s referenced", name)
	return nil
}

func (e *env) resetLocals() {
	e.lvs = make(map[string]*ir.Variable)
}
