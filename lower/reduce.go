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
	"errors"
	"fmt"

	"github.com/parloop/parloop/ir"
	"github.com/parloop/parloop/rewrite"
)

// ErrUnsupportedAggregation reports a tile.reduce with an aggregation kind
// outside the supported five. This is an internal error: no load, combine,
// or store is emitted and the conversion aborts.
var ErrUnsupportedAggregation = errors.New("unsupported aggregation kind")

// reduceExpansion rewrites tile.reduce into a load of the current element,
// a combine of the loaded value with the reduced value, and a store back at
// the identical index mapping. The load is emitted for assign as well, so
// every expansion has the same three-step shape; its result is simply
// unused there. No atomicity is provided: the triple is only correct where
// the surrounding program guarantees one logical writer per element.
type reduceExpansion struct{}

func (reduceExpansion) Root() string { return ir.OpReduce }

func (reduceExpansion) Rewrite(op *ir.Operation, r *rewrite.Rewriter) error {
	red := ir.ReduceOp{Op: op}
	loaded := r.Load(red.MemRef(), red.IndexMap(), red.IndexOperands())
	combined, err := combine(r, red.Agg(), loaded, red.Value())
	if err != nil {
		// Leave no partial triple behind.
		loaded.DefiningOp().Erase()
		return err
	}
	r.Store(combined, red.MemRef(), red.IndexMap(), red.IndexOperands())
	r.Erase(op)
	return nil
}

// combine emits the combined value for the loaded element and the reduced
// value, dispatching on aggregation kind and scalar kind.
//
// Float max/min use ordered comparisons, which are false whenever either
// operand is NaN: once the accumulator is NaN the select keeps it forever.
// Integer max/min always compare signed; the scalar kind does not carry
// signedness. Both behaviors are deliberate carry-overs, not defects to fix
// here.
func combine(r *rewrite.Rewriter, agg ir.AggKind, loaded, value *ir.Value) (*ir.Value, error) {
	isFloat := ir.IsFloat(value.Type())
	switch agg {
	case ir.AggAssign:
		return value, nil
	case ir.AggAdd:
		if isFloat {
			return r.AddF(loaded, value), nil
		}
		return r.AddI(loaded, value), nil
	case ir.AggMul:
		if isFloat {
			return r.MulF(loaded, value), nil
		}
		return r.MulI(loaded, value), nil
	case ir.AggMax:
		if isFloat {
			return r.Select(r.CmpF(ir.PredOGT, value, loaded), value, loaded), nil
		}
		return r.Select(r.CmpI(ir.PredSGT, value, loaded), value, loaded), nil
	case ir.AggMin:
		if isFloat {
			return r.Select(r.CmpF(ir.PredOLT, value, loaded), value, loaded), nil
		}
		return r.Select(r.CmpI(ir.PredSLT, value, loaded), value, loaded), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedAggregation, agg)
}
