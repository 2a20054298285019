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
)

func allRegisters(fn *LowFunction) []*Register {
	var regs []*Register
	for _, b := range fn.Blocks {
		for _, li := range b.Instrs {
			regs = append(regs, li.Dests()...)
			regs = append(regs, li.Sources()...)
		}
	}
	return regs
}

func countTag(fn *LowFunction, tag LowTag) int {
	n := 0
	for _, b := range fn.Blocks {
		for _, li := range b.Instrs {
			if li.Tag == tag {
				n++
			}
		}
	}
	return n
}

// eightWideSrc keeps eight values live simultaneously (none of them is read
// back until every one has been defined), forcing the 6-slot allocatable
// pool to spill at least two of them to the stack.
const eightWideSrc = `function w $main(){
@s
%a=w add 1,1
%b=w add 2,2
%c=w add 3,3
%d=w add 4,4
%e=w add 5,5
%f=w add 6,6
%g=w add 7,7
%h=w add 8,8
%s1=w add %a,%b
%s2=w add %s1,%c
%s3=w add %s2,%d
%s4=w add %s3,%e
%s5=w add %s4,%f
%s6=w add %s5,%g
%s7=w add %s6,%h
ret %s7
}`

func TestRegisterAllocSpillsWhenPoolOverflows(t *testing.T) {
	lp := buildLowIR(t, eightWideSrc)
	fn := lp.Functions[0]
	require.Equal(t, 0, fn.FrameSize)

	RegisterAlloc(fn)

	require.Greater(t, fn.FrameSize, 0, "more than AllocatablePoolSize live values must spill to a stashed stack slot")
	require.GreaterOrEqual(t, countTag(fn, LowStorewreg), 1, "an eviction must stash the victim register")
	require.GreaterOrEqual(t, countTag(fn, LowLoadw), 1, "a later read of a stashed register must reload it")

	usesScratch := false
	for _, r := range allRegisters(fn) {
		if r.VReg < 0 {
			require.GreaterOrEqual(t, r.PReg, NormalRegQuantity, "a pre-bound argument keeps its fixed argument-passing slot")
			continue
		}
		require.GreaterOrEqual(t, r.PReg, 0)
		if r.PReg == ScratchReg {
			usesScratch = true
			continue
		}
		require.Less(t, r.PReg, AllocatablePoolSize, "every resident virtual register must land in the 6-slot allocatable pool")
	}
	require.True(t, usesScratch, "reloading a previously stashed register must stage it through the scratch register first")
}

func TestRegisterAllocNoSpillWhenWithinPool(t *testing.T) {
	lp := buildLowIR(t, `function w $main(){@s %a=w add 1,1 %b=w add 2,2 %c=w add %a,%b ret %c}`)
	fn := lp.Functions[0]

	RegisterAlloc(fn)

	require.Equal(t, 0, fn.FrameSize, "three simultaneously live values fit the pool without spilling")
	require.Equal(t, 0, countTag(fn, LowStorewreg))
	require.Equal(t, 0, countTag(fn, LowLoadw))
}
