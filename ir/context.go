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

// Context owns the mutable, process-wide counters a single compilation
// needs: the virtual-register id generator, the negative global-data id
// generator, and the interned symbol table. One Context belongs to exactly
// one compilation; passes never keep their own copy of these counters.
type Context struct {
	nextVReg   int
	nextGlobal int
	symbols    map[string]string
}

// NewContext returns a fresh, independent compilation context.
func NewContext() *Context {
	return &Context{
		nextVReg:   0,
		nextGlobal: -1,
		symbols:    make(map[string]string),
	}
}

// FreshVReg returns the next virtual-register id, unique within this context.
func (c *Context) FreshVReg() int {
	id := c.nextVReg
	c.nextVReg++
	return id
}

// FreshGlobalID returns the next (negative, unique) global-data id.
func (c *Context) FreshGlobalID() int {
	id := c.nextGlobal
	c.nextGlobal--
	return id
}

// Intern hands back a stable handle for name, reusing a prior interning if
// one exists so that equal source spellings compare as equal strings.
func (c *Context) Intern(name string) string {
	if s, ok := c.symbols[name]; ok {
		return s
	}
	c.symbols[name] = name
	return name
}
