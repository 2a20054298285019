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

const phiSrc = `function w $main(){
@entry
%c=w add 1,0
jnz %c,@t,@f
@t
%x=w add 1,1
jmp @m
@f
%y=w add 2,2
jmp @m
@m
%v=w phi @t %x @f %y
ret %v
}`

func TestRevSSABreaksPhiIntoPerPredecessorCopies(t *testing.T) {
	fn, ctx := parseFn(t, phiSrc)
	RevSSA(fn, ctx)

	mb, _ := fn.BlockByName("m")
	phiLine := mb.Instrs[0]
	require.Equal(t, ir.OpNop, phiLine.Op.Tag, "the phi's live interval never overlaps a predecessor, so no temporary is needed and the phi line collapses to a nop")

	tb, _ := fn.BlockByName("t")
	fb, _ := fn.BlockByName("f")

	lastBeforeTermT := tb.Instrs[len(tb.Instrs)-2]
	require.Equal(t, ir.OpAssign, lastBeforeTermT.Op.Tag)
	require.Equal(t, "v", lastBeforeTermT.Op.Dest.Name)
	xref, ok := lastBeforeTermT.Op.Sub.Operand.(*ir.Variable)
	require.True(t, ok)
	require.Equal(t, "x", xref.Name)

	lastBeforeTermF := fb.Instrs[len(fb.Instrs)-2]
	require.Equal(t, ir.OpAssign, lastBeforeTermF.Op.Tag)
	require.Equal(t, "v", lastBeforeTermF.Op.Dest.Name)
	yref, ok := lastBeforeTermF.Op.Sub.Operand.(*ir.Variable)
	require.True(t, ok)
	require.Equal(t, "y", yref.Name)

	require.Equal(t, ir.OpJmp, tb.Terminator().Op.Tag)
	require.Equal(t, ir.OpJmp, fb.Terminator().Op.Tag)
}

// needTmpSrc forces the overlapping case: %v is a loop-carried phi in its
// own block, so its live interval always spans that block's own instruction
// range — one of its own predecessors — and a direct copy into %v would
// clobber the value the loop-back copy still needs to read.
const needTmpSrc = `function w $main(){
@entry
jmp @loop
@loop
%v=w phi @entry 0 @loop %x
%x=w add %v,1
%c=w add %x,0
jnz %c,@loop,@exit
@exit
ret %v
}`

func TestRevSSAInsertsTempWhenLifeOverlapsPredecessor(t *testing.T) {
	fn, ctx := parseFn(t, needTmpSrc)
	RevSSA(fn, ctx)

	loop, _ := fn.BlockByName("loop")
	phiLine := loop.Instrs[0]
	require.Equal(t, ir.OpAssign, phiLine.Op.Tag)
	require.Equal(t, "v", phiLine.Op.Dest.Name)
	require.Equal(t, ir.OpSrc, phiLine.Op.Sub.Tag)
	tmp, ok := phiLine.Op.Sub.Operand.(*ir.Variable)
	require.True(t, ok)
	require.Contains(t, tmp.Name, "tmp#_")

	entry, _ := fn.BlockByName("entry")
	require.Len(t, entry.Instrs, 2, "a copy into the temporary is appended before entry's jmp")
	require.Equal(t, ir.OpJmp, entry.Terminator().Op.Tag)
	seedCopy := entry.Instrs[0]
	require.Equal(t, tmp.Name, seedCopy.Op.Dest.Name)

	require.Equal(t, ir.OpJnz, loop.Terminator().Op.Tag, "the loop-back copy is spliced in before jnz, not after")
	backCopy := loop.Instrs[len(loop.Instrs)-2]
	require.Equal(t, tmp.Name, backCopy.Op.Dest.Name)
	xref, ok := backCopy.Op.Sub.Operand.(*ir.Variable)
	require.True(t, ok)
	require.Equal(t, "x", xref.Name)
}
