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
	"testing"

	"github.com/stretchr/testify/require"

	"kestrel/ir"
	"kestrel/lex"
)

func parseSource(src string) *ir.Program {
	toks := lex.NewLexer(src).Tokenize()
	return Parse(toks, ir.NewContext())
}

func TestParseSimpleFunction(t *testing.T) {
	prog := parseSource(`function w $main(){@s %a=w add 3,4 ret %a}`)
	require.Len(t, prog.Functions, 1)

	fn := prog.Functions[0]
	require.Equal(t, "main", fn.Name)
	require.Equal(t, ir.Word, fn.RetType)
	require.Len(t, fn.Blocks, 1)

	b := fn.Blocks[0]
	require.Equal(t, "s", b.Name)
	require.Len(t, b.Instrs, 2)

	add := b.Instrs[0].Op
	require.Equal(t, ir.OpAssign, add.Tag)
	require.Equal(t, "a", add.Dest.Name)
	require.Equal(t, ir.OpBop, add.Sub.Tag)
	require.Equal(t, ir.Add, add.Sub.BinOp)

	ret := b.Instrs[1].Op
	require.Equal(t, ir.OpRet, ret.Tag)
}

func TestParseAllocaStoreLoad(t *testing.T) {
	prog := parseSource(`function w $main(){@s %p=l alloc4 4 storew 11,%p %v=w loadw %p ret %v}`)
	fn := prog.Functions[0]
	instrs := fn.Blocks[0].Instrs
	require.Len(t, instrs, 4)
	require.Equal(t, ir.OpAlloc4, instrs[0].Op.Tag)
	require.Equal(t, ir.OpStorew, instrs[1].Op.Tag)
	require.Equal(t, ir.OpLoadw, instrs[2].Op.Sub.Tag)
}

func TestParseArgsGetNegativeVRegs(t *testing.T) {
	prog := parseSource(`function w $add(w %x, w %y){@s %r=w add %x,%y ret %r}`)
	fn := prog.Functions[0]
	require.Len(t, fn.Args, 2)
	require.Equal(t, -1, fn.Args[0].VReg)
	require.Equal(t, -2, fn.Args[1].VReg)
}

func TestParseDataGlobal(t *testing.T) {
	prog := parseSource("data $fmt = { b \"%d\\n\", b 0 }\nfunction w $main(){@s ret 0}")
	require.Len(t, prog.Globals, 1)
	g := prog.Globals[0]
	require.Equal(t, "fmt", g.Label)
	require.Len(t, g.Elements, 2)
}

func TestParseCallWithGlobalArg(t *testing.T) {
	prog := parseSource("data $fmt = { b \"%d\\n\", b 0 }\n" +
		"function w $main(){@s %r=w call $printf(l $fmt, w 42) ret %r}")
	fn := prog.Functions[0]
	call := fn.Blocks[0].Instrs[0].Op.Sub
	require.Equal(t, ir.OpCall, call.Tag)
	require.Equal(t, "printf", call.FuncName)
	require.Len(t, call.Args, 2)
	v, ok := call.Args[0].(*ir.Variable)
	require.True(t, ok)
	require.Equal(t, "fmt", v.GlobalName)
}
