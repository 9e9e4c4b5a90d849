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

// Package interp executes functions directly, before or after lowering.
// tile.parallel runs as sequential nested loops and tile.reduce as an
// in-place read-modify-write, so interpreting a function on both sides of
// the lowering pass and comparing buffers proves the pass preserved
// semantics. Nothing here executes in parallel.
package interp

import (
	"fmt"

	"github.com/parloop/parloop/affine"
	"github.com/parloop/parloop/ir"
)

// Buffer is the row-major storage behind one memref argument. Exactly one
// of F and I is populated, matching the element scalar kind.
type Buffer struct {
	Shape []int64
	Elem  ir.Type
	F     []float64
	I     []int64
}

// NewBuffer allocates a zero-filled buffer for a memref type.
func NewBuffer(t ir.MemRef) *Buffer {
	b := &Buffer{Shape: append([]int64(nil), t.Shape...), Elem: t.Elem}
	if ir.IsFloat(t.Elem) {
		b.F = make([]float64, t.NumElements())
	} else {
		b.I = make([]int64, t.NumElements())
	}
	return b
}

func (b *Buffer) offset(idx []int64) (int64, error) {
	if len(idx) != len(b.Shape) {
		return 0, fmt.Errorf("rank-%d access into rank-%d buffer", len(idx), len(b.Shape))
	}
	var off int64
	for i, x := range idx {
		if x < 0 || x >= b.Shape[i] {
			return 0, fmt.Errorf("index %d out of range [0, %d) in dimension %d", x, b.Shape[i], i)
		}
		off = off*b.Shape[i] + x
	}
	return off, nil
}

// Call executes fn with the given arguments: *Buffer for memref parameters,
// int64 for index parameters. Buffers mutate in place.
func Call(fn ir.FuncOp, args []any) error {
	body := fn.Body()
	if len(args) != body.NumArgs() {
		return fmt.Errorf("call %s: %d arguments for %d parameters", fn.SymName(), len(args), body.NumArgs())
	}
	env := map[*ir.Value]any{}
	for i, arg := range body.Args() {
		switch t := arg.Type().(type) {
		case ir.MemRef:
			buf, ok := args[i].(*Buffer)
			if !ok {
				return fmt.Errorf("call %s: parameter %d wants a buffer", fn.SymName(), i)
			}
			env[arg] = buf
		case ir.Index:
			n, ok := args[i].(int64)
			if !ok {
				return fmt.Errorf("call %s: parameter %d wants an int64 index", fn.SymName(), i)
			}
			env[arg] = n
		default:
			return fmt.Errorf("call %s: unsupported parameter type %s", fn.SymName(), t)
		}
	}
	return execBlock(body, env)
}

func execBlock(b *ir.Block, env map[*ir.Value]any) error {
	for _, op := range b.Ops() {
		if err := execOp(op, env); err != nil {
			return err
		}
	}
	return nil
}

func execOp(op *ir.Operation, env map[*ir.Value]any) error {
	switch op.Name() {
	case ir.OpReturn, ir.OpTileTerm, ir.OpLoopTerm:
		return nil
	case ir.OpConstant:
		switch v := op.Attr("value").(type) {
		case ir.FloatAttr:
			env[op.Result(0)] = float64(v)
		case ir.IntAttr:
			env[op.Result(0)] = int64(v)
		}
		return nil
	case ir.OpAddF, ir.OpMulF:
		l, r := env[op.Operand(0)].(float64), env[op.Operand(1)].(float64)
		if op.Name() == ir.OpAddF {
			env[op.Result(0)] = l + r
		} else {
			env[op.Result(0)] = l * r
		}
		return nil
	case ir.OpAddI, ir.OpMulI:
		l, r := env[op.Operand(0)].(int64), env[op.Operand(1)].(int64)
		if op.Name() == ir.OpAddI {
			env[op.Result(0)] = l + r
		} else {
			env[op.Result(0)] = l * r
		}
		return nil
	case ir.OpCmpF:
		l, r := env[op.Operand(0)].(float64), env[op.Operand(1)].(float64)
		// Ordered predicates: false whenever either side is NaN, which Go's
		// comparison operators already give us.
		switch pred := string(op.Attr("predicate").(ir.StringAttr)); pred {
		case ir.PredOGT:
			env[op.Result(0)] = l > r
		case ir.PredOLT:
			env[op.Result(0)] = l < r
		default:
			return fmt.Errorf("cmpf: unsupported predicate %q", pred)
		}
		return nil
	case ir.OpCmpI:
		l, r := env[op.Operand(0)].(int64), env[op.Operand(1)].(int64)
		switch pred := string(op.Attr("predicate").(ir.StringAttr)); pred {
		case ir.PredSGT:
			env[op.Result(0)] = l > r
		case ir.PredSLT:
			env[op.Result(0)] = l < r
		default:
			return fmt.Errorf("cmpi: unsupported predicate %q", pred)
		}
		return nil
	case ir.OpSelect:
		if env[op.Operand(0)].(bool) {
			env[op.Result(0)] = env[op.Operand(1)]
		} else {
			env[op.Result(0)] = env[op.Operand(2)]
		}
		return nil
	case ir.OpLoad:
		return execLoad(ir.LoadOp{Op: op}, env)
	case ir.OpStore:
		return execStore(ir.StoreOp{Op: op}, env)
	case ir.OpReduce:
		return execReduce(ir.ReduceOp{Op: op}, env)
	case ir.OpFor:
		return execFor(ir.ForOp{Op: op}, env)
	case ir.OpParallel:
		return execParallel(ir.ParallelOp{Op: op}, env)
	}
	return fmt.Errorf("interp: unsupported operation %s", op.Name())
}

func evalMap(m affine.Map, operands []*ir.Value, env map[*ir.Value]any) ([]int64, error) {
	dims := make([]int64, len(operands))
	for i, v := range operands {
		n, ok := env[v].(int64)
		if !ok {
			return nil, fmt.Errorf("affine operand %d is not an index value", i)
		}
		dims[i] = n
	}
	return m.Eval(dims), nil
}

func execLoad(l ir.LoadOp, env map[*ir.Value]any) error {
	buf := env[l.MemRef()].(*Buffer)
	idx, err := evalMap(l.IndexMap(), l.IndexOperands(), env)
	if err != nil {
		return err
	}
	off, err := buf.offset(idx)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	if buf.F != nil {
		env[l.Op.Result(0)] = buf.F[off]
	} else {
		env[l.Op.Result(0)] = buf.I[off]
	}
	return nil
}

func execStore(s ir.StoreOp, env map[*ir.Value]any) error {
	buf := env[s.MemRef()].(*Buffer)
	idx, err := evalMap(s.IndexMap(), s.IndexOperands(), env)
	if err != nil {
		return err
	}
	off, err := buf.offset(idx)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if buf.F != nil {
		buf.F[off] = env[s.Value()].(float64)
	} else {
		buf.I[off] = env[s.Value()].(int64)
	}
	return nil
}

// execReduce is the reference read-modify-write the lowering must agree
// with, including false-on-NaN max/min and signed integer comparison.
func execReduce(r ir.ReduceOp, env map[*ir.Value]any) error {
	buf := env[r.MemRef()].(*Buffer)
	idx, err := evalMap(r.IndexMap(), r.IndexOperands(), env)
	if err != nil {
		return err
	}
	off, err := buf.offset(idx)
	if err != nil {
		return fmt.Errorf("reduce: %w", err)
	}
	if buf.F != nil {
		v := env[r.Value()].(float64)
		combined, err := combineFloat(r.Agg(), buf.F[off], v)
		if err != nil {
			return err
		}
		buf.F[off] = combined
		return nil
	}
	v := env[r.Value()].(int64)
	combined, err := combineInt(r.Agg(), buf.I[off], v)
	if err != nil {
		return err
	}
	buf.I[off] = combined
	return nil
}

func combineFloat(agg ir.AggKind, loaded, value float64) (float64, error) {
	switch agg {
	case ir.AggAssign:
		return value, nil
	case ir.AggAdd:
		return loaded + value, nil
	case ir.AggMul:
		return loaded * value, nil
	case ir.AggMax:
		if value > loaded {
			return value, nil
		}
		return loaded, nil
	case ir.AggMin:
		if value < loaded {
			return value, nil
		}
		return loaded, nil
	}
	return 0, fmt.Errorf("reduce: unsupported aggregation kind %s", agg)
}

func combineInt(agg ir.AggKind, loaded, value int64) (int64, error) {
	switch agg {
	case ir.AggAssign:
		return value, nil
	case ir.AggAdd:
		return loaded + value, nil
	case ir.AggMul:
		return loaded * value, nil
	case ir.AggMax:
		if value > loaded {
			return value, nil
		}
		return loaded, nil
	case ir.AggMin:
		if value < loaded {
			return value, nil
		}
		return loaded, nil
	}
	return 0, fmt.Errorf("reduce: unsupported aggregation kind %s", agg)
}

func execFor(f ir.ForOp, env map[*ir.Value]any) error {
	lb, err := evalMap(f.LowerBoundMap(), f.BoundOperands(), env)
	if err != nil {
		return err
	}
	ub, err := evalMap(f.UpperBoundMap(), f.BoundOperands(), env)
	if err != nil {
		return err
	}
	iv := f.InductionVar()
	for i := lb[0]; i < ub[0]; i += f.Step() {
		env[iv] = i
		if err := execBlock(f.Body(), env); err != nil {
			return err
		}
	}
	return nil
}

func execParallel(p ir.ParallelOp, env map[*ir.Value]any) error {
	lb, err := evalMap(p.LowerBoundsMap(), p.BoundOperands(), env)
	if err != nil {
		return err
	}
	ub, err := evalMap(p.UpperBoundsMap(), p.BoundOperands(), env)
	if err != nil {
		return err
	}
	steps := p.Steps()
	ivs := p.Body().Args()

	var run func(dim int) error
	run = func(dim int) error {
		if dim == len(steps) {
			return execBlock(p.Body(), env)
		}
		for i := lb[dim]; i < ub[dim]; i += steps[dim] {
			env[ivs[dim]] = i
			if err := run(dim + 1); err != nil {
				return err
			}
		}
		return nil
	}
	return run(0)
}
