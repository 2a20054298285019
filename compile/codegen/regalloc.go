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

// allocState is the linear scanner's working state while it walks a
// function's instructions in day order: which virtual register currently
// occupies each of the six allocatable physical slots, and which virtual
// registers have already been given a stash (spill) slot on the stack.
type allocState struct {
	occupant  [AllocatablePoolSize]*Register
	stashOff  map[int]int // vreg -> stack offset from rbp of its stashed copy; reloads hand the offset on
	baseFrame int
	stashTop  int // bytes of stash space handed out so far, beyond baseFrame
	pending   []*LowInstr
}

// RegisterAlloc assigns a physical slot to every virtual register in lf, in
// instruction-day order, spilling to the stack when the six-register pool
// is exhausted (section 4.7). It grows lf.FrameSize by the stash space it
// used.
func RegisterAlloc(lf *LowFunction) {
	st := &allocState{stashOff: make(map[int]int), baseFrame: lf.FrameSize}
	day := 0
	for _, b := range lf.Blocks {
		out := make([]*LowInstr, 0, len(b.Instrs))
		for _, li := range b.Instrs {
			allocateInstr(li, st, day)
			out = append(out, st.pending...)
			st.pending = nil
			out = append(out, li)
			day++
		}
		b.Instrs = out
	}
	lf.FrameSize = st.baseFrame + st.stashTop
}

// operandsOf splits an instruction's registers into reads (values that must
// already be resident or reloaded) and writes (freshly defined values that
// only need a slot claimed, never reloaded). Bop's destination doubles as
// its left operand — an x86 add/sub/imul overwrites its first operand in
// place — so it is a read, not a fresh write; it keeps whatever slot its
// read resolved to.
func operandsOf(li *LowInstr) (reads, writes []*Register) {
	switch li.Tag {
	case LowMovenum, LowMovglobal, LowLoadw:
		writes = append(writes, li.Dst)
	case LowMovereg:
		reads = append(reads, li.Src)
		writes = append(writes, li.Dst)
	case LowRet, LowStorewreg, LowJnz:
		reads = append(reads, li.Dst)
	case LowBop:
		reads = append(reads, li.Dst)
		if !li.RHS.IsNum {
			reads = append(reads, li.RHS.Reg)
		}
	case LowComp:
		reads = append(reads, li.Src)
		if !li.CRHS.IsNum {
			reads = append(reads, li.CRHS.Reg)
		}
		writes = append(writes, li.Dst)
	case LowCall:
		for _, a := range li.Args {
			if !a.IsNum {
				reads = append(reads, a.Reg)
			}
		}
		writes = append(writes, li.Dst)
	}
	return reads, writes
}

func allocateInstr(li *LowInstr, st *allocState, day int) {
	reads, writes := operandsOf(li)
	for _, r := range reads {
		ensureResident(r, st)
	}
	if li.Tag == LowCall {
		li.UsedRegs = occupiedSlots(st)
	}
	for _, r := range writes {
		claimSlot(r, st)
	}
	expireDeadRegs(st, day)
}

func occupiedSlots(st *allocState) []int {
	var slots []int
	for i, occ := range st.occupant {
		if occ != nil {
			slots = append(slots, i)
		}
	}
	return slots
}

// ensureResident makes r's virtual register available in a physical slot,
// reusing it if it's already resident, and reloading it through the scratch
// register if it was spilled (the Exist(o) case of section 4.7). A negative
// VReg is a pre-bound argument register and never occupies the allocatable
// pool at all.
func ensureResident(r *Register, st *allocState) {
	if r.VReg < 0 {
		r.PReg = selArgReg(-r.VReg - 1)
		return
	}
	for slot, occ := range st.occupant {
		if occ != nil && occ.VReg == r.VReg {
			r.PReg = slot
			return
		}
	}
	if slot := freeSlot(st); slot >= 0 {
		st.occupant[slot] = r
		r.PReg = slot
		return
	}
	if off, spilled := st.stashOff[r.VReg]; spilled {
		reloadViaScratch(r, off, st)
		return
	}
	evictAndClaim(r, st)
}

// reloadViaScratch brings a previously spilled register back into phys[0],
// the swap-dance of section 4.7: r is loaded into the scratch register
// first so phys[0]'s current occupant can be stashed at the very offset r
// is vacating, then r is moved out of scratch into phys[0]. This way a
// reload never needs a second stash slot beyond the one r already had.
func reloadViaScratch(r *Register, off int, st *allocState) {
	scratch := &Register{VReg: r.VReg, PReg: ScratchReg, Birth: r.Birth, Death: r.Death, Size: r.Size}
	st.pending = append(st.pending, &LowInstr{Tag: LowLoadw, Offset: off, Dst: scratch})
	if victim := st.occupant[0]; victim != nil {
		st.pending = append(st.pending, &LowInstr{
			Tag: LowStorewreg, Offset: off,
			Dst: &Register{VReg: victim.VReg, PReg: 0, Birth: victim.Birth, Death: victim.Death, Size: victim.Size},
		})
		st.stashOff[victim.VReg] = off
	}
	delete(st.stashOff, r.VReg)
	st.pending = append(st.pending, &LowInstr{
		Tag: LowMovereg, Src: scratch,
		Dst: &Register{VReg: r.VReg, PReg: 0, Birth: r.Birth, Death: r.Death, Size: r.Size},
	})
	st.occupant[0] = r
	r.PReg = 0
}

// claimSlot gives r's virtual register a physical slot for a value it is
// about to define for the first time — no reload, since nothing has been
// written for it yet.
func claimSlot(r *Register, st *allocState) {
	if slot := freeSlot(st); slot >= 0 {
		st.occupant[slot] = r
		r.PReg = slot
		return
	}
	evictAndClaim(r, st)
}

func freeSlot(st *allocState) int {
	for i, occ := range st.occupant {
		if occ == nil {
			return i
		}
	}
	return -1
}

// evictAndClaim frees slot 0 for r with no reload to perform — the
// NoExist(o') case of section 4.7: r has no prior stash to bring back, so
// phys[0]'s occupant is simply spilled to a fresh stash slot (unless it
// already has one) and r is installed directly, no scratch register needed.
// A spilled virtual register keeps its stash slot until reloadViaScratch
// brings it back, which hands that offset to phys[0]'s displaced occupant.
func evictAndClaim(r *Register, st *allocState) {
	victim := st.occupant[0]
	if victim != nil {
		if _, ok := st.stashOff[victim.VReg]; !ok {
			off := st.allocStash()
			st.stashOff[victim.VReg] = off
			st.pending = append(st.pending, &LowInstr{
				Tag: LowStorewreg, Offset: off,
				Dst: &Register{VReg: victim.VReg, PReg: 0, Birth: victim.Birth, Death: victim.Death, Size: victim.Size},
			})
		}
	}
	st.occupant[0] = r
	r.PReg = 0
}

func (st *allocState) allocStash() int {
	st.stashTop += 8
	return st.baseFrame + st.stashTop
}

// expireDeadRegs frees every slot whose occupant's live interval has ended
// by day, so later instructions can reuse it without an unnecessary spill.
func expireDeadRegs(st *allocState, day int) {
	for i, occ := range st.occupant {
		if occ != nil && occ.Death <= day {
			st.occupant[i] = nil
		}
	}
}
