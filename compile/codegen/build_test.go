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
	"testing"

	"github.com/stretchr/testify/require"

	"kestrel/compile/ssa"
	"kestrel/ir"
	"kestrel/lex"
	"kestrel/parse"
)

func buildLowIR(t *testing.T, src string) *LowProgram {
	t.Helper()
	ctx := ir.NewContext()
	toks := lex.NewLexer(src).Tokenize()
	prog := parse.Parse(toks, ctx)
	for _, fn := range prog.Functions {
		ssa.EliminateDeadCode(fn)
		ssa.RevSSA(fn, ctx)
	}
	return BuildLowIR(prog, ctx)
}

func tagsOf(b *LowBlock) []LowTag {
	ts := make([]LowTag, len(b.Instrs))
	for i, li := range b.Instrs {
		ts[i] = li.Tag
	}
	return ts
}

func TestBuildLowIRArithmetic(t *testing.T) {
	lp := buildLowIR(t, `function w $main(){@s %a=w add 3,4 ret %a}`)
	require.Len(t, lp.Functions, 1)
	fn := lp.Functions[0]
	require.Equal(t, 0, fn.FrameSize)
	require.Len(t, fn.Blocks, 1)

	b := fn.Blocks[0]
	require.Equal(t, []LowTag{LowMovenum, LowBop, LowMovereg, LowRet}, tagsOf(b))

	movenum := b.Instrs[0]
	require.EqualValues(t, 3, movenum.Num)

	bop := b.Instrs[1]
	require.Equal(t, ir.Add, bop.BinOp)
	require.True(t, bop.RHS.IsNum)
	require.EqualValues(t, 4, bop.RHS.Num)
	require.Same(t, movenum.Dst, bop.Dst, "Bop's destination is the same register its left operand was materialized into")

	movereg := b.Instrs[2]
	require.Same(t, bop.Dst, movereg.Src)

	ret := b.Instrs[3]
	require.Equal(t, movereg.Dst.VReg, ret.Dst.VReg)
}

func TestBuildLowIRAllocaStoreLoad(t *testing.T) {
	lp := buildLowIR(t, `function w $main(){@s %p=l alloc4 4 storew 11,%p %v=w loadw %p ret %v}`)
	fn := lp.Functions[0]
	require.Equal(t, 4, fn.FrameSize)

	b := fn.Blocks[0]
	require.Equal(t, []LowTag{LowStorewnum, LowLoadw, LowMovereg, LowRet}, tagsOf(b))

	storew := b.Instrs[0]
	require.EqualValues(t, 11, storew.Num)
	require.Equal(t, 4, storew.Offset)
	require.Equal(t, 4, storew.Size, "a word-sized store must size its memory access from the stored value (w), not the pointer (always 8)")

	loadw := b.Instrs[1]
	require.Equal(t, 4, loadw.Offset)
	require.Equal(t, 4, loadw.Dst.Size, "a %v=w loadw must size its memory access from the destination's own declared width, not the pointer's")

	movereg := b.Instrs[2]
	require.Same(t, loadw.Dst, movereg.Src)

	ret := b.Instrs[3]
	require.Equal(t, movereg.Dst.VReg, ret.Dst.VReg)
}

func TestBuildLowIRCallWithGlobalArg(t *testing.T) {
	lp := buildLowIR(t, "data $fmt = { b \"%d\\n\", b 0 }\n"+
		"function w $main(){@s %r=w call $printf(l $fmt, w 42) ret %r}")
	require.Len(t, lp.Globals, 1)

	fn := lp.Functions[0]
	b := fn.Blocks[0]
	require.Equal(t, []LowTag{LowMovglobal, LowCall, LowMovereg, LowRet}, tagsOf(b))

	movglobal := b.Instrs[0]
	require.Equal(t, ".LC1", movglobal.GlobalLabel)

	call := b.Instrs[1]
	require.Equal(t, "printf", call.FuncName)
	require.Len(t, call.Args, 2)
	require.False(t, call.Args[0].IsNum)
	require.Same(t, movglobal.Dst, call.Args[0].Reg)
	require.True(t, call.Args[1].IsNum)
	require.EqualValues(t, 42, call.Args[1].Num)
	require.Empty(t, call.UsedRegs, "register allocation hasn't run yet")
}
