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
)

func TestEliminateDeadCodeDropsUnusedAssign(t *testing.T) {
	fn, _ := parseFn(t, `function w $main(){
@s
%a=w add 1,2
%b=w add 3,4
ret %b
}`)
	EliminateDeadCode(fn)

	instrs := fn.Blocks[0].Instrs
	require.False(t, instrs[0].Living, "%%a is never read, must not be marked living")
	require.True(t, instrs[1].Living)
	require.True(t, instrs[2].Living)
}

func TestEliminateDeadCodeKeepsTransitiveChain(t *testing.T) {
	fn, _ := parseFn(t, `function w $main(){
@s
%a=w add 1,2
%b=w add %a,1
ret %b
}`)
	EliminateDeadCode(fn)

	instrs := fn.Blocks[0].Instrs
	require.True(t, instrs[0].Living, "%%a feeds %%b which is returned, so it must stay live")
	require.True(t, instrs[1].Living)
	require.True(t, instrs[2].Living)
}

func TestEliminateDeadCodeDropsDeadStore(t *testing.T) {
	fn, _ := parseFn(t, `function w $main(){
@s
%p=l alloc4 4
storew 7,%p
ret 0
}`)
	EliminateDeadCode(fn)

	instrs := fn.Blocks[0].Instrs
	require.False(t, instrs[0].Living, "alloc4 is never used by a live load or returned")
	require.False(t, instrs[1].Living)
	require.True(t, instrs[2].Living)
}
