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
	"math"

	"kestrel/ir"
)

const domUndef = math.MaxInt

// domUnionFind is the path-compressing union-find with a "minimum semidominator
// along the path" annotation the Lengauer-Tarjan algorithm evaluates against.
type domUnionFind struct {
	par []int
	mn  []int
}

func newDomUnionFind(n int) *domUnionFind {
	uf := &domUnionFind{par: make([]int, n), mn: make([]int, n)}
	for i := range uf.par {
		uf.par[i] = i
		uf.mn[i] = i
	}
	return uf
}

func (u *domUnionFind) find(v int, sdom []int) int {
	if u.par[v] == v {
		return v
	}
	r := u.find(u.par[v], sdom)
	if sdom[u.mn[v]] > sdom[u.mn[u.par[v]]] {
		u.mn[v] = u.mn[u.par[v]]
	}
	u.par[v] = r
	return r
}

func (u *domUnionFind) eval(v int, sdom []int) int {
	u.find(v, sdom)
	return u.mn[v]
}

func (u *domUnionFind) link(child, parent int) {
	u.par[child] = parent
}

// domDFS numbers every reachable vertex in DFS preorder, recording each
// vertex's DFS-tree parent. Unreachable blocks keep sdom == domUndef and
// never receive an idom.
type domDFS struct {
	vertex []int
	parent []int
	weight int
}

func (d *domDFS) run(cfg *CFG, sdom []int, v int) {
	sdom[v] = d.weight
	d.vertex[d.weight] = v
	d.weight++
	for _, u := range cfg.Succs[v] {
		if sdom[u] == domUndef {
			d.parent[u] = v
			d.run(cfg, sdom, u)
		}
	}
}

// ComputeDominators fills in every block's Idom and DomFront (sections 4.1
// and 4.2): Lengauer-Tarjan for the immediate-dominator tree, then the
// recursive two-set dominance-frontier formulation over that tree.
func ComputeDominators(fn *ir.Function, cfg *CFG) {
	n := len(fn.Blocks)
	sdom := make([]int, n)
	idom := make([]int, n)
	colu := make([]int, n)
	bucket := make([][]int, n)
	tree := make([][]int, n)
	for i := range sdom {
		sdom[i] = domUndef
		idom[i] = domUndef
	}

	dfs := &domDFS{vertex: make([]int, n), parent: make([]int, n)}
	dfs.run(cfg, sdom, 0)

	uf := newDomUnionFind(n)
	for i := n - 1; i >= 1; i-- {
		v := dfs.vertex[i]
		for _, u := range cfg.Preds[v] {
			if sdom[u] == domUndef {
				continue // unreachable predecessor, e.g. a block that never reaches the entry
			}
			s := uf.eval(u, sdom)
			if sdom[s] < sdom[v] {
				sdom[v] = sdom[s]
			}
		}
		bucket[dfs.vertex[sdom[v]]] = append(bucket[dfs.vertex[sdom[v]]], v)
		for _, t := range bucket[dfs.parent[v]] {
			colu[t] = uf.eval(t, sdom)
		}
		bucket[dfs.parent[v]] = nil
		uf.link(v, dfs.parent[v])
	}

	for i := 1; i < n; i++ {
		v := dfs.vertex[i]
		u := colu[v]
		if sdom[v] == sdom[u] {
			idom[v] = sdom[v]
		} else {
			idom[v] = idom[u]
		}
	}
	for i := 1; i < n; i++ {
		if idom[i] != domUndef {
			idom[i] = dfs.vertex[idom[i]]
		}
	}

	for _, b := range fn.Blocks {
		if b.ID == 0 {
			b.Idom = ir.UndefBlock
			continue
		}
		if sdom[b.ID] == domUndef {
			b.Idom = ir.UndefBlock // unreachable block, never visited by the DFS
			continue
		}
		b.Idom = idom[b.ID]
		tree[idom[b.ID]] = append(tree[idom[b.ID]], b.ID)
	}

	computeDominanceFrontier(fn, cfg, idom, tree)
}

func computeDominanceFrontier(fn *ir.Function, cfg *CFG, idom []int, tree [][]int) {
	n := len(fn.Blocks)
	domf := make([][]int, n)
	computed := make([]bool, n)

	var compute func(x int)
	compute = func(x int) {
		var df []int
		for _, y := range cfg.Succs[x] {
			if idom[y] != x {
				df = append(df, y)
			}
		}
		for _, c := range tree[x] {
			if !computed[c] {
				compute(c)
			}
			for _, y := range domf[c] {
				if idom[y] != x {
					df = append(df, y)
				}
			}
		}
		domf[x] = df
		computed[x] = true
	}
	compute(0)

	for _, b := range fn.Blocks {
		b.DomFront = domf[b.ID]
	}
}
