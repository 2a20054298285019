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

func TestComputeDominatorsDiamond(t *testing.T) {
	fn, _ := parseFn(t, diamondSrc)
	cfg := BuildCFG(fn)
	ComputeDominators(fn, cfg)

	entry, _ := fn.BlockByName("entry")
	tb, _ := fn.BlockByName("t")
	fb, _ := fn.BlockByName("f")
	mb, _ := fn.BlockByName("m")

	require.Equal(t, ir.UndefBlock, entry.Idom)
	require.Equal(t, entry.ID, tb.Idom)
	require.Equal(t, entry.ID, fb.Idom)
	require.Equal(t, entry.ID, mb.Idom) // merge point, dominated only by entry

	require.Empty(t, entry.DomFront)
	require.Equal(t, []int{mb.ID}, tb.DomFront)
	require.Equal(t, []int{mb.ID}, fb.DomFront)
	require.Empty(t, mb.DomFront)
}

const loopSrc = `function w $main(){
@entry
jmp @head
@head
%c=w add 1,0
jnz %c,@body,@exit
@body
jmp @head
@exit
ret 0
}`

func TestComputeDominatorsLoop(t *testing.T) {
	fn, _ := parseFn(t, loopSrc)
	cfg := BuildCFG(fn)
	ComputeDominators(fn, cfg)

	entry, _ := fn.BlockByName("entry")
	head, _ := fn.BlockByName("head")
	body, _ := fn.BlockByName("body")
	exit, _ := fn.BlockByName("exit")

	require.Equal(t, entry.ID, head.Idom)
	require.Equal(t, head.ID, body.Idom)
	require.Equal(t, head.ID, exit.Idom)

	// head dominates body which jumps back to head via the loop's back
	// edge, so head sits in its own dominance frontier.
	require.Equal(t, []int{head.ID}, body.DomFront)
	require.Equal(t, []int{head.ID}, head.DomFront)
	require.Empty(t, exit.DomFront)
}
