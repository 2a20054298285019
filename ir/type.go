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
package ir

import (
	"fmt"
	"kestrel/utils"
)

// Kind enumerates the primitive shapes a Type can take. Composite and Tuple
// carry extra payload on Type itself.
type Kind int

const (
	KindWord Kind = iota // 32-bit int
	KindLong             // 64-bit int
	KindByte             // 8-bit int
	KindPtrWord          // pointer-to-word
	KindPtrLong          // pointer-to-long
	KindVoid
	KindTuple     // list of value-types
	KindComposite // list of (type, count)
)

func (k Kind) String() string {
	switch k {
	case KindWord:
		return "w"
	case KindLong:
		return "l"
	case KindByte:
		return "b"
	case KindPtrWord:
		return "ptr-w"
	case KindPtrLong:
		return "ptr-l"
	case KindVoid:
		return "void"
	case KindTuple:
		return "tuple"
	case KindComposite:
		return "composite"
	}
	return "<unknown-kind>"
}

// CompositeField is one (type, count) pair inside a composite type.
type CompositeField struct {
	Type  *Type
	Count int
}

// Type is a value-type in the data model of section 3: word, long, byte,
// pointer forms, void, tuple, or composite.
type Type struct {
	Kind    Kind
	Tuple   []*Type
	Fields  []CompositeField
}

var (
	Word    = &Type{Kind: KindWord}
	Long    = &Type{Kind: KindLong}
	Byte    = &Type{Kind: KindByte}
	PtrWord = &Type{Kind: KindPtrWord}
	PtrLong = &Type{Kind: KindPtrLong}
	Void    = &Type{Kind: KindVoid}
)

func NewTuple(elems ...*Type) *Type {
	return &Type{Kind: KindTuple, Tuple: elems}
}

func NewComposite(fields ...CompositeField) *Type {
	return &Type{Kind: KindComposite, Fields: fields}
}

func (t *Type) String() string {
	switch t.Kind {
	case KindTuple:
		s := "("
		for i, e := range t.Tuple {
			if i > 0 {
				s += ", "
			}
			s += e.String()
		}
		return s + ")"
	case KindComposite:
		s := "{"
		for i, f := range t.Fields {
			if i > 0 {
				s += ", "
			}
			s += fmt.Sprintf("%v x%d", f.Type, f.Count)
		}
		return s + "}"
	default:
		return t.Kind.String()
	}
}

// StackSize is the byte width the value occupies on the stack.
func (t *Type) StackSize() int {
	switch t.Kind {
	case KindWord:
		return 4
	case KindLong, KindPtrWord, KindPtrLong:
		return 8
	case KindByte:
		return 1
	case KindVoid:
		return 1
	case KindTuple:
		size := 0
		for _, e := range t.Tuple {
			size += e.StackSize()
		}
		return size
	case KindComposite:
		size := 0
		for _, f := range t.Fields {
			size += f.Type.StackSize() * f.Count
		}
		return size
	}
	utils.Unimplement()
	return 0
}

// RegRefSize is the byte width the value occupies in a register.
func (t *Type) RegRefSize() int {
	switch t.Kind {
	case KindWord:
		return 4
	case KindLong, KindPtrWord, KindPtrLong:
		return 8
	case KindByte:
		return 1
	case KindVoid:
		return 0
	case KindComposite:
		size := 0
		for _, f := range t.Fields {
			size += f.Type.StackSize() * f.Count
		}
		return size
	}
	utils.Unimplement()
	return 0
}

func (t *Type) IsPointer() bool {
	return t.Kind == KindPtrWord || t.Kind == KindPtrLong
}
