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

// RegQuantity is the size of the physical-register table: six allocatable
// general-purpose registers, one reserved reload scratch, and six System V
// argument registers, addressed by the same index across all three width
// tables (section 4.7).
const RegQuantity = 13

// NormalRegQuantity is the count of non-argument slots (the six-register
// allocatable pool plus the scratch register at index 6). Argument
// registers start at this offset.
const NormalRegQuantity = 7

// AllocatablePoolSize is the linear scanner's K: the number of physical
// slots it may hand out before it has to spill. Index ScratchReg (6) is
// deliberately excluded — it exists only to shuttle a stashed value through
// a reload, never to hold a live value across instructions.
const AllocatablePoolSize = 6

// ScratchReg is the physical slot index reserved for reload traffic.
const ScratchReg = 6

// X64Reg64, X64Reg32, and X64Reg8 give the Intel-syntax register name at
// each width for a physical slot index. Indices 0-5 are the allocatable
// pool, 6 is the scratch register, and 7-12 are the System V integer
// argument registers in order (rdi, rsi, rdx, rcx, r8, r9).
var X64Reg64 = [RegQuantity]string{
	"r10", "r11", "rbx", "r12", "r13", "r14",
	"r15",
	"rdi", "rsi", "rdx", "rcx", "r8", "r9",
}

var X64Reg32 = [RegQuantity]string{
	"r10d", "r11d", "ebx", "r12d", "r13d", "r14d",
	"r15d",
	"edi", "esi", "edx", "ecx", "r8d", "r9d",
}

var X64Reg8 = [RegQuantity]string{
	"r10b", "r11b", "bl", "r12b", "r13b", "r14b",
	"r15b",
	"dil", "sil", "dl", "cl", "r8b", "r9b",
}

// selReg returns the Intel-syntax name for physical slot preg at the given
// byte width (1, 4, or 8). Any other width is treated as a full 8-byte
// reference, matching memoryAccessSize's fallback.
func selReg(preg, size int) string {
	switch size {
	case 1:
		return X64Reg8[preg]
	case 4:
		return X64Reg32[preg]
	default:
		return X64Reg64[preg]
	}
}

// selArgReg returns the physical slot index of the nth (0-based) System V
// integer argument register.
func selArgReg(n int) int {
	return NormalRegQuantity + n
}

// selRax returns the Intel-syntax name for the rax/eax/al accumulator at
// the given width, the register the calling convention and imul/idiv both
// hard-code.
func selRax(size int) string {
	switch size {
	case 1:
		return "al"
	case 4:
		return "eax"
	default:
		return "rax"
	}
}

// memoryAccessSize clamps an arbitrary byte width down to one of the three
// widths the register tables and x86 mov/movzx forms actually support.
func memoryAccessSize(size int) int {
	switch {
	case size <= 1:
		return 1
	case size <= 4:
		return 4
	default:
		return 8
	}
}
