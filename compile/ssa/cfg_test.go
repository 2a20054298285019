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
	"kestrel/lex"
	"kestrel/parse"
)

func parseFn(t *testing.T, src string) (*ir.Function, *ir.Context) {
	t.Helper()
	ctx := ir.NewContext()
	toks := lex.NewLexer(src).Tokenize()
	prog := parse.Parse(toks, ctx)
	require.Len(t, prog.Functions, 1)
	return prog.Functions[0], ctx
}

const diamondSrc = `function w $main(){
@entry
%c=w add 1,0
jnz %c,@t,@f
@t
jmp @m
@f
jmp @m
@m
ret 0
}`

func TestBuildCFGDiamond(t *testing.T) {
	fn, _ := parseFn(t, diamondSrc)
	cfg := BuildCFG(fn)

	entry, _ := fn.BlockByName("entry")
	tb, _ := fn.BlockByName("t")
	fb, _ := fn.BlockByName("f")
	mb, _ := fn.BlockByName("m")

	require.ElementsMatch(t, []int{tb.ID, fb.ID}, cfg.Succs[entry.ID])
	require.Equal(t, []string{"t", "f"}, entry.Succs)
	require.Equal(t, []int{mb.ID}, cfg.Succs[tb.ID])
	require.Equal(t, []int{mb.ID}, cfg.Succs[fb.ID])
	require.Nil(t, cfg.Succs[mb.ID])
	require.ElementsMatch(t, []int{tb.ID, fb.ID}, cfg.Preds[mb.ID])
}
