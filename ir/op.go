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

// Package ir implements the operation graph the rewrite passes run on:
// typed SSA values with use-def edges, operations with attributes and
// nested regions, and a builder with an explicit insertion point.
//
// Moving operations between blocks is parent-edge reassignment, never a
// copy, so rewrites splice bodies without disturbing value identity.
package ir

import (
	"fmt"
	"strings"
)

// Value is an SSA value: the result of an operation or a block argument.
type Value struct {
	typ   Type
	def   *Operation // non-nil for op results
	owner *Block     // non-nil for block arguments
	index int
	uses  map[*Operand]struct{}
}

// Type returns the value's type.
func (v *Value) Type() Type { return v.typ }

// DefiningOp returns the operation producing v, or nil for block arguments.
func (v *Value) DefiningOp() *Operation { return v.def }

// OwnerBlock returns the block owning v when v is a block argument.
func (v *Value) OwnerBlock() *Block { return v.owner }

// Index returns the result or argument position of v.
func (v *Value) Index() int { return v.index }

// NumUses returns the number of operand slots referencing v.
func (v *Value) NumUses() int { return len(v.uses) }

// Users returns the set of operations referencing v. Order is unspecified.
func (v *Value) Users() []*Operation {
	seen := make(map[*Operation]struct{}, len(v.uses))
	users := make([]*Operation, 0, len(v.uses))
	for use := range v.uses {
		if _, ok := seen[use.owner]; !ok {
			seen[use.owner] = struct{}{}
			users = append(users, use.owner)
		}
	}
	return users
}

// ReplaceAllUsesWith relinks every use of v to point at repl. This is an
// edge-relinking traversal over v's use list only; no other value is
// examined, so unrelated operations are never touched.
func (v *Value) ReplaceAllUsesWith(repl *Value) {
	if v == repl {
		return
	}
	for use := range v.uses {
		use.value = repl
		repl.uses[use] = struct{}{}
	}
	v.uses = make(map[*Operand]struct{})
}

// Operand is one operand slot of an operation. The slot, not the value, is
// the unit of the use-def index: replacing a value rewrites slots in place.
type Operand struct {
	owner *Operation
	value *Value
}

// Value returns the value currently held by the slot.
func (o *Operand) Value() *Value { return o.value }

// Owner returns the operation the slot belongs to.
func (o *Operand) Owner() *Operation { return o.owner }

func (o *Operand) set(v *Value) {
	if o.value != nil {
		delete(o.value.uses, o)
	}
	o.value = v
	if v != nil {
		v.uses[o] = struct{}{}
	}
}

// Operation is one node of the graph: a name in "dialect.op" form, operand
// slots, result values, attributes, and nested single-block regions.
type Operation struct {
	name     string
	operands []*Operand
	results  []*Value
	attrs    map[string]Attr
	regions  []*Region
	block    *Block // parent, nil while detached
}

// NewOperation constructs a detached operation. Most callers should go
// through the Builder, which also places the op.
func NewOperation(name string, operands []*Value, resultTypes []Type, attrs map[string]Attr, numRegions int) *Operation {
	op := &Operation{name: name, attrs: attrs}
	if op.attrs == nil {
		op.attrs = map[string]Attr{}
	}
	op.operands = make([]*Operand, len(operands))
	for i, v := range operands {
		slot := &Operand{owner: op}
		slot.set(v)
		op.operands[i] = slot
	}
	op.results = make([]*Value, len(resultTypes))
	for i, t := range resultTypes {
		op.results[i] = &Value{typ: t, def: op, index: i, uses: map[*Operand]struct{}{}}
	}
	op.regions = make([]*Region, numRegions)
	for i := range op.regions {
		op.regions[i] = &Region{owner: op}
	}
	return op
}

// Name returns the full operation name, e.g. "tile.parallel".
func (op *Operation) Name() string { return op.name }

// Dialect returns the name prefix before the first dot.
func (op *Operation) Dialect() string {
	if i := strings.IndexByte(op.name, '.'); i >= 0 {
		return op.name[:i]
	}
	return op.name
}

// NumOperands returns the operand count.
func (op *Operation) NumOperands() int { return len(op.operands) }

// Operand returns the value in operand slot i.
func (op *Operation) Operand(i int) *Value { return op.operands[i].value }

// Operands returns the operand values in slot order.
func (op *Operation) Operands() []*Value {
	vals := make([]*Value, len(op.operands))
	for i, slot := range op.operands {
		vals[i] = slot.value
	}
	return vals
}

// NumResults returns the result count.
func (op *Operation) NumResults() int { return len(op.results) }

// Result returns result value i.
func (op *Operation) Result(i int) *Value { return op.results[i] }

// Attr returns the named attribute, or nil.
func (op *Operation) Attr(name string) Attr { return op.attrs[name] }

// SetAttr stores an attribute on the operation.
func (op *Operation) SetAttr(name string, a Attr) { op.attrs[name] = a }

// NumRegions returns the region count.
func (op *Operation) NumRegions() int { return len(op.regions) }

// Region returns nested region i.
func (op *Operation) Region(i int) *Region { return op.regions[i] }

// Parent returns the block containing the operation, or nil when detached.
func (op *Operation) Parent() *Block { return op.block }

// ParentOp returns the operation owning the block containing op, or nil.
func (op *Operation) ParentOp() *Operation {
	if op.block == nil || op.block.region == nil {
		return nil
	}
	return op.block.region.owner
}

// MoveBefore detaches op from its current block and reinserts it
// immediately before other. Values defined by op keep their identity.
func (op *Operation) MoveBefore(other *Operation) {
	if other.block == nil {
		panic("ir: MoveBefore target is detached")
	}
	if op.block != nil {
		op.block.remove(op)
	}
	dst := other.block
	dst.insert(dst.indexOf(other), op)
}

// MoveToEnd detaches op and appends it to block.
func (op *Operation) MoveToEnd(block *Block) {
	if op.block != nil {
		op.block.remove(op)
	}
	block.insert(len(block.ops), op)
}

// Erase removes the operation from its parent, drops its operand uses, and
// recursively destroys nested regions. Results must be unused; erasing a
// live definition is a programming error.
func (op *Operation) Erase() {
	for _, res := range op.results {
		if len(res.uses) != 0 {
			panic(fmt.Sprintf("ir: erasing %s with live uses of result %d", op.name, res.index))
		}
	}
	if op.block != nil {
		op.block.remove(op)
	}
	op.dropAllReferences()
}

func (op *Operation) dropAllReferences() {
	for _, slot := range op.operands {
		slot.set(nil)
	}
	for _, r := range op.regions {
		for _, b := range r.blocks {
			// Reverse order so uses inside the block are dropped before
			// their definitions.
			for i := len(b.ops) - 1; i >= 0; i-- {
				inner := b.ops[i]
				inner.block = nil
				inner.dropAllReferences()
			}
			b.ops = nil
		}
	}
}

// Walk visits op and every operation nested in its regions, pre-order. The
// callback must not remove operations other than the one it was given.
func (op *Operation) Walk(fn func(*Operation)) {
	fn(op)
	for _, r := range op.regions {
		for _, b := range r.blocks {
			for _, inner := range append([]*Operation(nil), b.ops...) {
				if inner.block != nil {
					inner.Walk(fn)
				}
			}
		}
	}
}

// Region is a list of blocks owned by an operation. Every region in this
// dialect set holds exactly one block.
type Region struct {
	owner  *Operation
	blocks []*Block
}

// Owner returns the operation owning the region.
func (r *Region) Owner() *Operation { return r.owner }

// Block returns the region's single block, creating it on first use.
func (r *Region) Block() *Block {
	if len(r.blocks) == 0 {
		r.blocks = append(r.blocks, &Block{region: r})
	}
	return r.blocks[0]
}

// Block holds an ordered operation list and typed block arguments.
type Block struct {
	region *Region
	args   []*Value
	ops    []*Operation
}

// AddArg appends a block argument of the given type.
func (b *Block) AddArg(t Type) *Value {
	arg := &Value{typ: t, owner: b, index: len(b.args), uses: map[*Operand]struct{}{}}
	b.args = append(b.args, arg)
	return arg
}

// Args returns the block arguments in order.
func (b *Block) Args() []*Value { return b.args }

// NumArgs returns the block argument count.
func (b *Block) NumArgs() int { return len(b.args) }

// Arg returns block argument i.
func (b *Block) Arg(i int) *Value { return b.args[i] }

// Ops returns the block's operations in order. The returned slice is the
// live list; callers that mutate the block while iterating must copy it.
func (b *Block) Ops() []*Operation { return b.ops }

// Empty reports whether the block holds no operations.
func (b *Block) Empty() bool { return len(b.ops) == 0 }

// Terminator returns the block's final operation, or nil when empty.
func (b *Block) Terminator() *Operation {
	if len(b.ops) == 0 {
		return nil
	}
	return b.ops[len(b.ops)-1]
}

// Parent returns the operation owning the block's region, or nil.
func (b *Block) Parent() *Operation {
	if b.region == nil {
		return nil
	}
	return b.region.owner
}

func (b *Block) indexOf(op *Operation) int {
	for i, o := range b.ops {
		if o == op {
			return i
		}
	}
	panic("ir: operation not in block")
}

func (b *Block) insert(pos int, op *Operation) {
	b.ops = append(b.ops, nil)
	copy(b.ops[pos+1:], b.ops[pos:])
	b.ops[pos] = op
	op.block = b
}

func (b *Block) remove(op *Operation) {
	i := b.indexOf(op)
	copy(b.ops[i:], b.ops[i+1:])
	b.ops = b.ops[:len(b.ops)-1]
	op.block = nil
}

// Builder creates operations at an explicit insertion point. The point is
// anchored on an operation ("insert before ref"), or the block end when ref
// is nil, so it stays valid as surrounding operations move.
type Builder struct {
	block *Block
	ref   *Operation // insert before ref; nil means block end
}

// NewBuilder returns a builder with no insertion point set.
func NewBuilder() *Builder { return &Builder{} }

// SetInsertionPointToStart places the point before the block's first op.
func (b *Builder) SetInsertionPointToStart(blk *Block) {
	b.block = blk
	if len(blk.ops) > 0 {
		b.ref = blk.ops[0]
	} else {
		b.ref = nil
	}
}

// SetInsertionPointToEnd places the point after the block's last op.
func (b *Builder) SetInsertionPointToEnd(blk *Block) {
	b.block = blk
	b.ref = nil
}

// SetInsertionPointBefore places the point immediately before op.
func (b *Builder) SetInsertionPointBefore(op *Operation) {
	b.block = op.block
	b.ref = op
}

// SetInsertionPointAfter places the point immediately after op.
func (b *Builder) SetInsertionPointAfter(op *Operation) {
	blk := op.block
	b.block = blk
	i := blk.indexOf(op)
	if i+1 < len(blk.ops) {
		b.ref = blk.ops[i+1]
	} else {
		b.ref = nil
	}
}

// InsertionBlock returns the block the builder currently inserts into.
func (b *Builder) InsertionBlock() *Block { return b.block }

// Insert places a detached operation at the insertion point and returns it.
func (b *Builder) Insert(op *Operation) *Operation {
	if b.block == nil {
		panic("ir: builder has no insertion point")
	}
	pos := len(b.block.ops)
	if b.ref != nil {
		pos = b.block.indexOf(b.ref)
	}
	b.block.insert(pos, op)
	return op
}

func (b *Builder) create(name string, operands []*Value, resultTypes []Type, attrs map[string]Attr, numRegions int) *Operation {
	return b.Insert(NewOperation(name, operands, resultTypes, attrs, numRegions))
}
