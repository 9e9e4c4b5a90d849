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
	"github.com/parloop/parloop/ir"
	"github.com/parloop/parloop/rewrite"
)

// parallelLowering rewrites an N-dimension tile.parallel into N nested
// loop.for operations in original dimension order. Dimension i's bounds are
// the i-th projection of the parallel op's bound maps over the unchanged
// shared operand pool. The body moves, it is not copied: every non-terminator
// operation is re-parented into the innermost loop in original order, and
// each body placeholder is relinked to the matching new induction variable.
type parallelLowering struct{}

func (parallelLowering) Root() string { return ir.OpParallel }

func (parallelLowering) Rewrite(op *ir.Operation, r *rewrite.Rewriter) error {
	pl := ir.ParallelOp{Op: op}
	lb := pl.LowerBoundsMap()
	ub := pl.UpperBoundsMap()
	operands := pl.BoundOperands()
	steps := pl.Steps()

	// Build the loop nest outer-to-inner, descending the insertion point
	// into each new body as it is created.
	ivs := make([]*ir.Value, 0, len(steps))
	marker := op
	for i, step := range steps {
		f := r.For(lb.SubMap(i), ub.SubMap(i), operands, step)
		r.SetInsertionPointToStart(f.Body())
		ivs = append(ivs, f.InductionVar())
		marker = f.Body().Terminator()
	}

	// Move the body into the innermost loop, in order, excluding the
	// terminator. With zero dimensions there is no loop at all and the
	// operations land at the original op's position.
	body := pl.Body()
	term := body.Terminator()
	for _, inner := range append([]*ir.Operation(nil), body.Ops()...) {
		if inner == term {
			continue
		}
		inner.MoveBefore(marker)
	}

	// Relink every placeholder use to the new induction variables. The
	// traversal is scoped to each placeholder's use list; nothing else in
	// the graph is touched.
	for i, arg := range body.Args() {
		r.ReplaceAllUses(arg, ivs[i])
	}

	r.Erase(op)
	return nil
}
