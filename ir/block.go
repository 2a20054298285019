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

import "fmt"

// UndefBlock marks an idom that was never assigned (entry, or unreachable).
const UndefBlock = -1

// Block is a basic block: an ordered instruction sequence plus the CFG and
// dominator-tree fields the passes fill in (section 3).
type Block struct {
	Name       string
	ID         int
	Instrs     []*Instruction
	Succs      []string
	Idom       int
	DomFront   []int
}

func NewBlock(name string, id int) *Block {
	return &Block{Name: name, ID: id, Idom: UndefBlock}
}

func (b *Block) String() string {
	s := fmt.Sprintf("@%s\n", b.Name)
	for _, in := range b.Instrs {
		s += fmt.Sprintf("  %v\n", in)
	}
	return s
}

func (b *Block) PushInstr(in *Instruction) {
	b.Instrs = append(b.Instrs, in)
}

// PrependInstr inserts an instruction at the head of the block (used for
// phi placement in mem2reg).
func (b *Block) PrependInstr(in *Instruction) {
	b.Instrs = append([]*Instruction{in}, b.Instrs...)
}

// Terminator returns the block's last instruction if it is a control
// transfer (Ret/Jmp/Jnz), or nil. A block with no terminator has no
// successors per the CFG builder's contract (section 4.1).
func (b *Block) Terminator() *Instruction {
	if len(b.Instrs) == 0 {
		return nil
	}
	last := b.Instrs[len(b.Instrs)-1]
	switch last.Op.Tag {
	case OpRet, OpJmp, OpJnz:
		return last
	}
	return nil
}
