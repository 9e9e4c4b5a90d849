// Copyright 2025 parloop Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package lower

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parloop/parloop/affine"
	"github.com/parloop/parloop/ir"
)

// countOps returns how many operations named name exist under m.
func countOps(m ir.ModuleOp, name string) int {
	n := 0
	m.Op.Walk(func(op *ir.Operation) {
		if op.Name() == name {
			n++
		}
	})
	return n
}

// forChain follows the single-loop.for nesting chain starting in block b.
func forChain(t *testing.T, b *ir.Block, depth int) []ir.ForOp {
	t.Helper()
	var chain []ir.ForOp
	for n := 0; n < depth; n++ {
		var fors []*ir.Operation
		for _, op := range b.Ops() {
			if op.Name() == ir.OpFor {
				fors = append(fors, op)
			}
		}
		require.Len(t, fors, 1, "expected exactly one loop.for per nesting level")
		f := ir.ForOp{Op: fors[0]}
		chain = append(chain, f)
		b = f.Body()
	}
	return chain
}

func TestLoopNestDepth(t *testing.T) {
	for _, n := range []int{1, 2, 3} {
		t.Run(fmt.Sprintf("%dd", n), func(t *testing.T) {
			m := ir.NewModule()
			fn := ir.NewFunc(m, "f", []ir.Type{ir.MemRef{Shape: []int64{64}, Elem: ir.F32}})
			out := fn.Body().Arg(0)

			b := ir.NewBuilder()
			b.SetInsertionPointBefore(fn.Body().Terminator())
			cst := b.FloatConstant(1, ir.F32)

			lbs := make([]int64, n)
			ubs := make([]int64, n)
			steps := make([]int64, n)
			for i := range ubs {
				ubs[i] = 2
				steps[i] = 1
			}
			pl := b.Parallel(affine.ConstantMap(lbs...), affine.ConstantMap(ubs...), nil, steps)
			placeholders := append([]*ir.Value(nil), pl.Body().Args()...)

			// out[i0 + i1 + ...] = 1.0
			sum := affine.Expr(affine.Dim(0))
			for i := 1; i < n; i++ {
				sum = affine.Add(sum, affine.Dim(i))
			}
			inner := ir.NewBuilder()
			inner.SetInsertionPointBefore(pl.Body().Terminator())
			store := inner.Store(cst, out, affine.MustMap(n, sum), placeholders)

			require.NoError(t, NewPass().Run(m))
			require.NoError(t, ir.VerifyModule(m))

			// One loop per dimension, nested in dimension order.
			require.Equal(t, n, countOps(m, ir.OpFor))
			require.Zero(t, countOps(m, ir.OpParallel))
			chain := forChain(t, fn.Body(), n)
			ivs := make([]*ir.Value, n)
			for i, f := range chain {
				require.Equal(t, int64(1), f.Step())
				require.Equal(t, []int64{0}, f.LowerBoundMap().Eval(nil))
				require.Equal(t, []int64{2}, f.UpperBoundMap().Eval(nil))
				ivs[i] = f.InductionVar()
			}

			// The body moved into the innermost loop and every placeholder
			// use was relinked to the matching induction variable.
			require.Same(t, chain[n-1].Body(), store.Op.Parent())
			for i, arg := range placeholders {
				require.Zero(t, arg.NumUses(), "placeholder %d still used", i)
				require.Same(t, ivs[i], store.IndexOperands()[i])
			}
		})
	}
}

func TestZeroDimensionParallel(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunc(m, "f", []ir.Type{ir.MemRef{Shape: []int64{1}, Elem: ir.F32}})
	out := fn.Body().Arg(0)

	b := ir.NewBuilder()
	b.SetInsertionPointBefore(fn.Body().Terminator())
	cst := b.FloatConstant(3, ir.F32)
	pl := b.Parallel(affine.ConstantMap(), affine.ConstantMap(), nil, nil)

	inner := ir.NewBuilder()
	inner.SetInsertionPointBefore(pl.Body().Terminator())
	store := inner.Store(cst, out, affine.ConstantMap(0), nil)

	require.NoError(t, NewPass().Run(m))
	require.NoError(t, ir.VerifyModule(m))

	// No loop at all: the body runs once, inline at the op's position.
	require.Zero(t, countOps(m, ir.OpFor))
	ops := fn.Body().Ops()
	require.Same(t, cst.DefiningOp(), ops[0])
	require.Same(t, store.Op, ops[1])
	require.Equal(t, ir.OpReturn, ops[2].Name())
}

func TestLoweredBoundsKeepOperands(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunc(m, "f", []ir.Type{
		ir.MemRef{Shape: []int64{64}, Elem: ir.F32},
		ir.Index{},
	})
	out := fn.Body().Arg(0)
	bound := fn.Body().Arg(1)

	b := ir.NewBuilder()
	b.SetInsertionPointBefore(fn.Body().Terminator())
	cst := b.FloatConstant(1, ir.F32)

	// (i) = (0) to (%bound) over the shared pool (d0) = (%bound).
	lb := affine.MustMap(1, affine.Const(0))
	ub := affine.MustMap(1, affine.Dim(0))
	pl := b.Parallel(lb, ub, []*ir.Value{bound}, []int64{1})

	inner := ir.NewBuilder()
	inner.SetInsertionPointBefore(pl.Body().Terminator())
	inner.Store(cst, out, affine.IdentityMap(1), pl.Body().Args())

	require.NoError(t, NewPass().Run(m))
	require.NoError(t, ir.VerifyModule(m))

	chain := forChain(t, fn.Body(), 1)
	f := chain[0]
	require.Len(t, f.BoundOperands(), 1)
	require.Same(t, bound, f.BoundOperands()[0])
	require.Equal(t, []int64{0}, f.LowerBoundMap().Eval([]int64{9}))
	require.Equal(t, []int64{9}, f.UpperBoundMap().Eval([]int64{9}))
}

func TestBodyOrderPreserved(t *testing.T) {
	m := ir.NewModule()
	fn := ir.NewFunc(m, "f", []ir.Type{ir.MemRef{Shape: []int64{8}, Elem: ir.F32}})
	out := fn.Body().Arg(0)

	b := ir.NewBuilder()
	b.SetInsertionPointBefore(fn.Body().Terminator())
	pl := b.Parallel(affine.ConstantMap(0), affine.ConstantMap(8), nil, []int64{1})

	inner := ir.NewBuilder()
	inner.SetInsertionPointBefore(pl.Body().Terminator())
	a := inner.FloatConstant(1, ir.F32)
	c := inner.FloatConstant(2, ir.F32)
	sum := inner.AddF(a, c)
	inner.Store(sum, out, affine.IdentityMap(1), pl.Body().Args())
	moved := append([]*ir.Operation(nil), pl.Body().Ops()...)
	moved = moved[:len(moved)-1] // drop the terminator

	require.NoError(t, NewPass().Run(m))

	chain := forChain(t, fn.Body(), 1)
	body := chain[0].Body().Ops()
	require.Len(t, body, len(moved)+1) // + loop.terminator
	for i, op := range moved {
		require.Same(t, op, body[i], "body op %d out of order", i)
	}
}
