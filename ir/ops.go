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

package ir

import (
	"github.com/parloop/parloop/affine"
)

// Operation names of the dialect set. The tile dialect is the lowering
// input; loop, mem, and arith are its output.
const (
	OpModule   = "module"
	OpFunc     = "func.func"
	OpReturn   = "func.return"
	OpParallel = "tile.parallel"
	OpReduce   = "tile.reduce"
	OpTileTerm = "tile.terminator"
	OpFor      = "loop.for"
	OpLoopTerm = "loop.terminator"
	OpLoad     = "mem.load"
	OpStore    = "mem.store"
	OpConstant = "arith.constant"
	OpAddF     = "arith.addf"
	OpAddI     = "arith.addi"
	OpMulF     = "arith.mulf"
	OpMulI     = "arith.muli"
	OpCmpF     = "arith.cmpf"
	OpCmpI     = "arith.cmpi"
	OpSelect   = "arith.select"
)

// Comparison predicates. Float predicates are ordered: any comparison
// against NaN evaluates false. Integer predicates are signed.
const (
	PredOGT = "ogt"
	PredOLT = "olt"
	PredSGT = "sgt"
	PredSLT = "slt"
)

// NewModule returns an empty top-level module operation.
func NewModule() ModuleOp {
	op := NewOperation(OpModule, nil, nil, nil, 1)
	op.Region(0).Block()
	return ModuleOp{op}
}

// ModuleOp wraps a "module" operation.
type ModuleOp struct {
	Op *Operation
}

// Body returns the module body block.
func (m ModuleOp) Body() *Block { return m.Op.Region(0).Block() }

// Funcs returns the functions held by the module, in order.
func (m ModuleOp) Funcs() []FuncOp {
	var fns []FuncOp
	for _, op := range m.Body().Ops() {
		if op.Name() == OpFunc {
			fns = append(fns, FuncOp{op})
		}
	}
	return fns
}

// Func returns the named function, if present.
func (m ModuleOp) Func(name string) (FuncOp, bool) {
	for _, fn := range m.Funcs() {
		if fn.SymName() == name {
			return fn, true
		}
	}
	return FuncOp{}, false
}

// NewFunc creates a function with the given argument types and appends it to
// the module. The body starts with just a func.return terminator.
func NewFunc(m ModuleOp, name string, argTypes []Type) FuncOp {
	op := NewOperation(OpFunc, nil, nil, map[string]Attr{"sym_name": StringAttr(name)}, 1)
	body := op.Region(0).Block()
	for _, t := range argTypes {
		body.AddArg(t)
	}
	ret := NewOperation(OpReturn, nil, nil, nil, 0)
	body.insert(0, ret)
	m.Body().insert(len(m.Body().ops), op)
	return FuncOp{op}
}

// FuncOp wraps a "func.func" operation.
type FuncOp struct {
	Op *Operation
}

// SymName returns the function's symbol name.
func (f FuncOp) SymName() string { return string(f.Op.Attr("sym_name").(StringAttr)) }

// Body returns the function body block.
func (f FuncOp) Body() *Block { return f.Op.Region(0).Block() }

// Parallel creates a tile.parallel at the insertion point. Both bound maps
// read the one shared operand pool. The body block receives one index
// argument per dimension and a tile.terminator.
func (b *Builder) Parallel(lb, ub affine.Map, boundOperands []*Value, steps []int64) ParallelOp {
	attrs := map[string]Attr{
		"lower_bounds": MapAttr{Map: lb},
		"upper_bounds": MapAttr{Map: ub},
		"steps":        IntsAttr(steps),
	}
	op := b.create(OpParallel, boundOperands, nil, attrs, 1)
	body := op.Region(0).Block()
	for range steps {
		body.AddArg(Index{})
	}
	body.insert(0, NewOperation(OpTileTerm, nil, nil, nil, 0))
	return ParallelOp{op}
}

// ParallelOp wraps a "tile.parallel" operation: the multi-index loop the
// lowering pass eliminates.
type ParallelOp struct {
	Op *Operation
}

// LowerBoundsMap returns the multi-result lower bound map.
func (p ParallelOp) LowerBoundsMap() affine.Map {
	return p.Op.Attr("lower_bounds").(MapAttr).Map
}

// UpperBoundsMap returns the multi-result upper bound map.
func (p ParallelOp) UpperBoundsMap() affine.Map {
	return p.Op.Attr("upper_bounds").(MapAttr).Map
}

// Steps returns the per-dimension steps, all positive.
func (p ParallelOp) Steps() []int64 { return []int64(p.Op.Attr("steps").(IntsAttr)) }

// NumDims returns the dimension count N.
func (p ParallelOp) NumDims() int { return len(p.Steps()) }

// BoundOperands returns the shared operand pool of both bound maps.
func (p ParallelOp) BoundOperands() []*Value { return p.Op.Operands() }

// Body returns the loop body block; its arguments are the placeholders for
// the N induction variables.
func (p ParallelOp) Body() *Block { return p.Op.Region(0).Block() }

// For creates a loop.for at the insertion point. Both single-result bound
// maps read the shared operand pool. The body block receives the induction
// variable and a loop.terminator.
func (b *Builder) For(lb, ub affine.Map, boundOperands []*Value, step int64) ForOp {
	attrs := map[string]Attr{
		"lower_bound": MapAttr{Map: lb},
		"upper_bound": MapAttr{Map: ub},
		"step":        IntAttr(step),
	}
	op := b.create(OpFor, boundOperands, nil, attrs, 1)
	body := op.Region(0).Block()
	body.AddArg(Index{})
	body.insert(0, NewOperation(OpLoopTerm, nil, nil, nil, 0))
	return ForOp{op}
}

// ForOp wraps a "loop.for" operation: a single-dimension sequential loop.
type ForOp struct {
	Op *Operation
}

// LowerBoundMap returns the single-result lower bound map.
func (f ForOp) LowerBoundMap() affine.Map { return f.Op.Attr("lower_bound").(MapAttr).Map }

// UpperBoundMap returns the single-result upper bound map.
func (f ForOp) UpperBoundMap() affine.Map { return f.Op.Attr("upper_bound").(MapAttr).Map }

// Step returns the positive loop step.
func (f ForOp) Step() int64 { return int64(f.Op.Attr("step").(IntAttr)) }

// BoundOperands returns the shared operand pool of both bound maps.
func (f ForOp) BoundOperands() []*Value { return f.Op.Operands() }

// Body returns the loop body block.
func (f ForOp) Body() *Block { return f.Op.Region(0).Block() }

// InductionVar returns the loop's induction variable.
func (f ForOp) InductionVar() *Value { return f.Body().Arg(0) }

// Reduce creates a tile.reduce at the insertion point: an atomic-intent
// read-modify-write of memref at the index map applied to idxOperands.
func (b *Builder) Reduce(agg AggKind, value, memref *Value, idxMap affine.Map, idxOperands []*Value) ReduceOp {
	operands := append([]*Value{value, memref}, idxOperands...)
	attrs := map[string]Attr{
		"agg": AggAttr(agg),
		"map": MapAttr{Map: idxMap},
	}
	return ReduceOp{b.create(OpReduce, operands, nil, attrs, 0)}
}

// ReduceOp wraps a "tile.reduce" operation.
type ReduceOp struct {
	Op *Operation
}

// Agg returns the aggregation kind.
func (r ReduceOp) Agg() AggKind { return AggKind(r.Op.Attr("agg").(AggAttr)) }

// Value returns the value being combined into memory.
func (r ReduceOp) Value() *Value { return r.Op.Operand(0) }

// MemRef returns the target memory reference.
func (r ReduceOp) MemRef() *Value { return r.Op.Operand(1) }

// IndexMap returns the affine index mapping.
func (r ReduceOp) IndexMap() affine.Map { return r.Op.Attr("map").(MapAttr).Map }

// IndexOperands returns the index map's operands.
func (r ReduceOp) IndexOperands() []*Value { return r.Op.Operands()[2:] }

// Load creates a mem.load at the insertion point and returns its result.
func (b *Builder) Load(memref *Value, idxMap affine.Map, idxOperands []*Value) *Value {
	elem := memref.Type().(MemRef).Elem
	operands := append([]*Value{memref}, idxOperands...)
	op := b.create(OpLoad, operands, []Type{elem}, map[string]Attr{"map": MapAttr{Map: idxMap}}, 0)
	return op.Result(0)
}

// LoadOp wraps a "mem.load" operation.
type LoadOp struct {
	Op *Operation
}

// MemRef returns the loaded memory reference.
func (l LoadOp) MemRef() *Value { return l.Op.Operand(0) }

// IndexMap returns the affine index mapping.
func (l LoadOp) IndexMap() affine.Map { return l.Op.Attr("map").(MapAttr).Map }

// IndexOperands returns the index map's operands.
func (l LoadOp) IndexOperands() []*Value { return l.Op.Operands()[1:] }

// Store creates a mem.store at the insertion point.
func (b *Builder) Store(value, memref *Value, idxMap affine.Map, idxOperands []*Value) StoreOp {
	operands := append([]*Value{value, memref}, idxOperands...)
	op := b.create(OpStore, operands, nil, map[string]Attr{"map": MapAttr{Map: idxMap}}, 0)
	return StoreOp{op}
}

// StoreOp wraps a "mem.store" operation.
type StoreOp struct {
	Op *Operation
}

// Value returns the stored value.
func (s StoreOp) Value() *Value { return s.Op.Operand(0) }

// MemRef returns the target memory reference.
func (s StoreOp) MemRef() *Value { return s.Op.Operand(1) }

// IndexMap returns the affine index mapping.
func (s StoreOp) IndexMap() affine.Map { return s.Op.Attr("map").(MapAttr).Map }

// IndexOperands returns the index map's operands.
func (s StoreOp) IndexOperands() []*Value { return s.Op.Operands()[2:] }

// FloatConstant creates an arith.constant of floating type t.
func (b *Builder) FloatConstant(v float64, t Float) *Value {
	op := b.create(OpConstant, nil, []Type{t}, map[string]Attr{"value": FloatAttr(v)}, 0)
	return op.Result(0)
}

// IntConstant creates an arith.constant of integer type t.
func (b *Builder) IntConstant(v int64, t Int) *Value {
	op := b.create(OpConstant, nil, []Type{t}, map[string]Attr{"value": IntAttr(v)}, 0)
	return op.Result(0)
}

// AddF creates an arith.addf and returns its result.
func (b *Builder) AddF(lhs, rhs *Value) *Value { return b.binary(OpAddF, lhs, rhs) }

// AddI creates an arith.addi and returns its result.
func (b *Builder) AddI(lhs, rhs *Value) *Value { return b.binary(OpAddI, lhs, rhs) }

// MulF creates an arith.mulf and returns its result.
func (b *Builder) MulF(lhs, rhs *Value) *Value { return b.binary(OpMulF, lhs, rhs) }

// MulI creates an arith.muli and returns its result.
func (b *Builder) MulI(lhs, rhs *Value) *Value { return b.binary(OpMulI, lhs, rhs) }

func (b *Builder) binary(name string, lhs, rhs *Value) *Value {
	op := b.create(name, []*Value{lhs, rhs}, []Type{lhs.Type()}, nil, 0)
	return op.Result(0)
}

// CmpF creates an ordered float comparison (result i1).
func (b *Builder) CmpF(pred string, lhs, rhs *Value) *Value {
	op := b.create(OpCmpF, []*Value{lhs, rhs}, []Type{Bool}, map[string]Attr{"predicate": StringAttr(pred)}, 0)
	return op.Result(0)
}

// CmpI creates a signed integer comparison (result i1).
func (b *Builder) CmpI(pred string, lhs, rhs *Value) *Value {
	op := b.create(OpCmpI, []*Value{lhs, rhs}, []Type{Bool}, map[string]Attr{"predicate": StringAttr(pred)}, 0)
	return op.Result(0)
}

// Select creates an arith.select: cond ? ifTrue : ifFalse.
func (b *Builder) Select(cond, ifTrue, ifFalse *Value) *Value {
	op := b.create(OpSelect, []*Value{cond, ifTrue, ifFalse}, []Type{ifTrue.Type()}, nil, 0)
	return op.Result(0)
}

// IsTerminator reports whether the named op terminates a block.
func IsTerminator(name string) bool {
	switch name {
	case OpReturn, OpTileTerm, OpLoopTerm:
		return true
	}
	return false
}
