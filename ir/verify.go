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
	"fmt"

	"github.com/parloop/parloop/affine"
)

// Verify checks the structural invariants of every operation under op.
// Malformed structure is a precondition violation for the rewrite passes,
// so the verifier runs before and between passes rather than inside them.
func Verify(op *Operation) error {
	var firstErr error
	op.Walk(func(inner *Operation) {
		if firstErr != nil {
			return
		}
		if err := verifyOp(inner); err != nil {
			firstErr = fmt.Errorf("%s: %w", inner.Name(), err)
		}
	})
	return firstErr
}

// VerifyModule verifies a whole module.
func VerifyModule(m ModuleOp) error {
	return Verify(m.Op)
}

func verifyOp(op *Operation) error {
	for i, v := range op.Operands() {
		if v == nil {
			return fmt.Errorf("operand %d is nil", i)
		}
	}
	switch op.Name() {
	case OpFunc:
		return verifyTerminated(op.Region(0).Block(), OpReturn)
	case OpParallel:
		return verifyParallel(ParallelOp{op})
	case OpFor:
		return verifyFor(ForOp{op})
	case OpReduce:
		return verifyReduce(ReduceOp{op})
	case OpLoad:
		l := LoadOp{op}
		return verifyAccess(l.MemRef(), l.IndexMap(), l.IndexOperands())
	case OpStore:
		s := StoreOp{op}
		if err := verifyAccess(s.MemRef(), s.IndexMap(), s.IndexOperands()); err != nil {
			return err
		}
		mt := s.MemRef().Type().(MemRef)
		if !TypeEqual(s.Value().Type(), mt.Elem) {
			return fmt.Errorf("stored value type %s does not match element type %s", s.Value().Type(), mt.Elem)
		}
		return nil
	case OpCmpF, OpCmpI:
		pred := string(op.Attr("predicate").(StringAttr))
		switch pred {
		case PredOGT, PredOLT, PredSGT, PredSLT:
			return nil
		}
		return fmt.Errorf("unknown predicate %q", pred)
	}
	return nil
}

func verifyTerminated(b *Block, term string) error {
	t := b.Terminator()
	if t == nil || t.Name() != term {
		return fmt.Errorf("body must end with %s", term)
	}
	for i, inner := range b.Ops() {
		if IsTerminator(inner.Name()) && i != len(b.Ops())-1 {
			return fmt.Errorf("terminator %s in mid-block position %d", inner.Name(), i)
		}
	}
	return nil
}

func verifyParallel(p ParallelOp) error {
	lb, ub := p.LowerBoundsMap(), p.UpperBoundsMap()
	n := len(p.Steps())
	if lb.NumResults() != n || ub.NumResults() != n {
		return fmt.Errorf("bound maps yield %d/%d results for %d steps", lb.NumResults(), ub.NumResults(), n)
	}
	if p.Body().NumArgs() != n {
		return fmt.Errorf("body has %d index arguments for %d dimensions", p.Body().NumArgs(), n)
	}
	if got, want := len(p.BoundOperands()), lb.NumDims; got != want || ub.NumDims != want {
		return fmt.Errorf("bound maps read %d/%d dims but %d operands given", lb.NumDims, ub.NumDims, got)
	}
	for i, s := range p.Steps() {
		if s <= 0 {
			return fmt.Errorf("step %d is %d; steps must be positive", i, s)
		}
	}
	for _, arg := range p.Body().Args() {
		if !TypeEqual(arg.Type(), Index{}) {
			return fmt.Errorf("index argument has type %s", arg.Type())
		}
	}
	return verifyTerminated(p.Body(), OpTileTerm)
}

func verifyFor(f ForOp) error {
	lb, ub := f.LowerBoundMap(), f.UpperBoundMap()
	if lb.NumResults() != 1 || ub.NumResults() != 1 {
		return fmt.Errorf("bound maps yield %d/%d results; want single-result", lb.NumResults(), ub.NumResults())
	}
	if got := len(f.BoundOperands()); lb.NumDims != got || ub.NumDims != got {
		return fmt.Errorf("bound maps read %d/%d dims but %d operands given", lb.NumDims, ub.NumDims, got)
	}
	if f.Step() <= 0 {
		return fmt.Errorf("step is %d; steps must be positive", f.Step())
	}
	if f.Body().NumArgs() != 1 {
		return fmt.Errorf("body has %d arguments; want exactly the induction variable", f.Body().NumArgs())
	}
	return verifyTerminated(f.Body(), OpLoopTerm)
}

func verifyReduce(r ReduceOp) error {
	if int(r.Agg()) >= len(aggNames) {
		return fmt.Errorf("unknown aggregation kind %d", uint8(r.Agg()))
	}
	mt, ok := r.MemRef().Type().(MemRef)
	if !ok {
		return fmt.Errorf("reduce target has type %s; want memref", r.MemRef().Type())
	}
	if !TypeEqual(r.Value().Type(), mt.Elem) {
		return fmt.Errorf("reduced value type %s does not match element type %s", r.Value().Type(), mt.Elem)
	}
	if !IsFloat(mt.Elem) && !IsInteger(mt.Elem) {
		return fmt.Errorf("element type %s is neither floating nor integer", mt.Elem)
	}
	return verifyAccess(r.MemRef(), r.IndexMap(), r.IndexOperands())
}

func verifyAccess(memref *Value, m affine.Map, operands []*Value) error {
	mt, ok := memref.Type().(MemRef)
	if !ok {
		return fmt.Errorf("access target has type %s; want memref", memref.Type())
	}
	if m.NumResults() != mt.Rank() {
		return fmt.Errorf("index map yields %d results for rank-%d memref", m.NumResults(), mt.Rank())
	}
	if m.NumDims != len(operands) {
		return fmt.Errorf("index map reads %d dims but %d operands given", m.NumDims, len(operands))
	}
	for _, v := range operands {
		if !TypeEqual(v.Type(), Index{}) {
			return fmt.Errorf("index operand has type %s", v.Type())
		}
	}
	return nil
}
