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

import (
	"testing"

	"github.com/stretchr/testify/require"

	"kestrel/ir"
)

func TestPromoteAllocasOneStoreIsForwardedDirectly(t *testing.T) {
	fn, ctx := parseFn(t, `function w $main(){
@s
%p=l alloc4 4
storew 5,%p
%v=w loadw %p
ret %v
}`)
	cfg := BuildCFG(fn)
	ComputeDominators(fn, cfg)
	PromoteAllocas(fn, cfg, ctx)

	require.Equal(t, ir.ClassOneStore, fn.Alloca["p"].Class)

	instrs := fn.Blocks[0].Instrs
	require.Len(t, instrs, 4, "alloc4/storew stay behind as Nops, followed by the forwarded load and ret")
	require.Equal(t, ir.OpAssign, instrs[2].Op.Tag)
	require.Equal(t, ir.OpSrc, instrs[2].Op.Sub.Tag)
	num, ok := instrs[2].Op.Sub.Operand.(*ir.Num)
	require.True(t, ok)
	require.EqualValues(t, 5, num.Value)
}

const generalAllocaSrc = `function w $main(){
@entry
%p=l alloc4 4
%c=w add 1,0
jnz %c,@t,@f
@t
storew 1,%p
jmp @m
@f
storew 2,%p
jmp @m
@m
%v=w loadw %p
ret %v
}`

func TestPromoteAllocasGeneralInsertsPhi(t *testing.T) {
	fn, ctx := parseFn(t, generalAllocaSrc)
	cfg := BuildCFG(fn)
	ComputeDominators(fn, cfg)
	PromoteAllocas(fn, cfg, ctx)

	require.Equal(t, ir.ClassGeneral, fn.Alloca["p"].Class)

	mb, _ := fn.BlockByName("m")
	require.GreaterOrEqual(t, len(mb.Instrs), 2)

	phiInstr := mb.Instrs[0]
	require.Equal(t, ir.OpAssign, phiInstr.Op.Tag)
	require.Equal(t, ir.OpPhi, phiInstr.Op.Sub.Tag)
	require.Len(t, phiInstr.Op.Sub.PhiArgs, 2)

	byPred := map[string]*ir.Num{}
	for _, a := range phiInstr.Op.Sub.PhiArgs {
		n, ok := a.Operand.(*ir.Num)
		require.True(t, ok)
		byPred[a.Pred] = n
	}
	require.EqualValues(t, 1, byPred["t"].Value)
	require.EqualValues(t, 2, byPred["f"].Value)

	// the load that used to read %p now reads the phi's destination directly
	loadInstr := mb.Instrs[len(mb.Instrs)-2]
	require.Equal(t, ir.OpSrc, loadInstr.Op.Sub.Tag)
	src, ok := loadInstr.Op.Sub.Operand.(*ir.Variable)
	require.True(t, ok)
	require.Equal(t, phiInstr.Op.Dest.Name, src.Name)

	// alloc4/storew for a non-easy alloca are dropped once promotion is done
	tb, _ := fn.BlockByName("t")
	for _, in := range tb.Instrs {
		require.NotEqual(t, ir.OpStorew, in.Op.Tag)
	}
}
