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
package lex

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func kinds(toks []Token) []TokenKind {
	ks := make([]TokenKind, len(toks))
	for i, t := range toks {
		ks[i] = t.Kind
	}
	return ks
}

func TestTokenizeSimpleFunction(t *testing.T) {
	toks := NewLexer(`function w $main(){@s %a=w add 3,4 ret %a}`).Tokenize()
	require.Equal(t, []TokenKind{
		KwFunction, TkWord, TkDollar, TkIdent, TkLparen, TkRparen, TkLbrace,
		TkBlockLabel,
		TkIdent, TkEqw, KwAdd, TkIlit, TkComma, TkIlit,
		KwRet, TkIdent,
		TkRbrace, TkEOF,
	}, kinds(toks))
}

func TestTokenizeStripsBlockLabelSigil(t *testing.T) {
	toks := NewLexer(`@start:`).Tokenize()
	require.Equal(t, TkBlockLabel, toks[0].Kind)
	require.Equal(t, "start", toks[0].Text)
}

func TestTokenizeStringLiteral(t *testing.T) {
	toks := NewLexer(`"%d\n"`).Tokenize()
	require.Equal(t, TkString, toks[0].Kind)
}
