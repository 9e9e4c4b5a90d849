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
	"strconv"
	"strings"

	"github.com/parloop/parloop/affine"
)

// Print renders a module in the textual form understood by the parse
// package. Output is deterministic: function arguments are numbered
// %arg0..., every other value %0, %1, ... in definition order, and
// block terminators are implicit.
func Print(m ModuleOp) string {
	var sb strings.Builder
	for i, fn := range m.Funcs() {
		if i > 0 {
			sb.WriteByte('\n')
		}
		p := &printer{sb: &sb, names: map[*Value]string{}}
		p.printFunc(fn)
	}
	return sb.String()
}

// PrintOp renders a single operation subtree, used for diagnostics dumps.
func PrintOp(op *Operation) string {
	var sb strings.Builder
	p := &printer{sb: &sb, names: map[*Value]string{}}
	p.printOp(op)
	return sb.String()
}

type printer struct {
	sb     *strings.Builder
	names  map[*Value]string
	nextID int
	indent int
}

func (p *printer) name(v *Value) string {
	if n, ok := p.names[v]; ok {
		return n
	}
	n := fmt.Sprintf("%%%d", p.nextID)
	p.nextID++
	p.names[v] = n
	return n
}

func (p *printer) line(format string, args ...any) {
	p.sb.WriteString(strings.Repeat("  ", p.indent))
	fmt.Fprintf(p.sb, format, args...)
	p.sb.WriteByte('\n')
}

func (p *printer) printFunc(fn FuncOp) {
	args := fn.Body().Args()
	parts := make([]string, len(args))
	for i, a := range args {
		p.names[a] = fmt.Sprintf("%%arg%d", i)
		parts[i] = fmt.Sprintf("%s: %s", p.names[a], a.Type())
	}
	p.line("func @%s(%s) {", fn.SymName(), strings.Join(parts, ", "))
	p.indent++
	p.printBlock(fn.Body())
	p.indent--
	p.line("}")
}

func (p *printer) printBlock(b *Block) {
	for _, op := range b.Ops() {
		if IsTerminator(op.Name()) {
			continue
		}
		p.printOp(op)
	}
}

func (p *printer) printOp(op *Operation) {
	switch op.Name() {
	case OpFunc:
		p.printFunc(FuncOp{op})
	case OpConstant:
		res := p.name(op.Result(0))
		switch v := op.Attr("value").(type) {
		case FloatAttr:
			p.line("%s = %s %s : %s", res, OpConstant, formatFloat(float64(v)), op.Result(0).Type())
		case IntAttr:
			p.line("%s = %s %d : %s", res, OpConstant, int64(v), op.Result(0).Type())
		}
	case OpAddF, OpAddI, OpMulF, OpMulI:
		p.line("%s = %s %s, %s : %s",
			p.name(op.Result(0)), op.Name(),
			p.name(op.Operand(0)), p.name(op.Operand(1)), op.Result(0).Type())
	case OpCmpF, OpCmpI:
		p.line("%s = %s %s, %s, %s : %s",
			p.name(op.Result(0)), op.Name(),
			string(op.Attr("predicate").(StringAttr)),
			p.name(op.Operand(0)), p.name(op.Operand(1)), op.Operand(0).Type())
	case OpSelect:
		p.line("%s = %s %s, %s, %s : %s",
			p.name(op.Result(0)), op.Name(),
			p.name(op.Operand(0)), p.name(op.Operand(1)), p.name(op.Operand(2)),
			op.Result(0).Type())
	case OpLoad:
		l := LoadOp{op}
		p.line("%s = %s %s[%s] : %s",
			p.name(op.Result(0)), OpLoad, p.name(l.MemRef()),
			p.indexList(l.IndexMap(), l.IndexOperands()), l.MemRef().Type())
	case OpStore:
		s := StoreOp{op}
		p.line("%s %s, %s[%s] : %s",
			OpStore, p.name(s.Value()), p.name(s.MemRef()),
			p.indexList(s.IndexMap(), s.IndexOperands()), s.MemRef().Type())
	case OpReduce:
		r := ReduceOp{op}
		p.line("%s %s %s, %s[%s] : %s",
			OpReduce, r.Agg(), p.name(r.Value()), p.name(r.MemRef()),
			p.indexList(r.IndexMap(), r.IndexOperands()), r.MemRef().Type())
	case OpFor:
		f := ForOp{op}
		operands := boundNames(p, f.BoundOperands())
		p.line("%s %s = %s to %s step %d {",
			OpFor, p.name(f.InductionVar()),
			affine.ExprString(f.LowerBoundMap().Exprs[0], operands),
			affine.ExprString(f.UpperBoundMap().Exprs[0], operands),
			f.Step())
		p.indent++
		p.printBlock(f.Body())
		p.indent--
		p.line("}")
	case OpParallel:
		pl := ParallelOp{op}
		operands := boundNames(p, pl.BoundOperands())
		ivs := make([]string, pl.Body().NumArgs())
		for i, iv := range pl.Body().Args() {
			ivs[i] = p.name(iv)
		}
		steps := make([]string, len(pl.Steps()))
		for i, s := range pl.Steps() {
			steps[i] = strconv.FormatInt(s, 10)
		}
		p.line("%s (%s) = (%s) to (%s) step (%s) {",
			OpParallel, strings.Join(ivs, ", "),
			p.mapResults(pl.LowerBoundsMap(), operands),
			p.mapResults(pl.UpperBoundsMap(), operands),
			strings.Join(steps, ", "))
		p.indent++
		p.printBlock(pl.Body())
		p.indent--
		p.line("}")
	default:
		p.printGeneric(op)
	}
}

// printGeneric is the fallback form for ops without custom syntax, used
// only in diagnostics output.
func (p *printer) printGeneric(op *Operation) {
	var sb strings.Builder
	if op.NumResults() > 0 {
		names := make([]string, op.NumResults())
		for i := range names {
			names[i] = p.name(op.Result(i))
		}
		sb.WriteString(strings.Join(names, ", "))
		sb.WriteString(" = ")
	}
	fmt.Fprintf(&sb, "%q", op.Name())
	sb.WriteByte('(')
	for i, v := range op.Operands() {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.name(v))
	}
	sb.WriteByte(')')
	p.line("%s", sb.String())
	for _, r := range op.regions {
		p.indent++
		for _, blk := range r.blocks {
			p.printBlock(blk)
		}
		p.indent--
	}
}

func (p *printer) indexList(m affine.Map, operands []*Value) string {
	names := boundNames(p, operands)
	return p.mapResults(m, names)
}

func (p *printer) mapResults(m affine.Map, operandNames []string) string {
	parts := make([]string, len(m.Exprs))
	for i, e := range m.Exprs {
		parts[i] = affine.ExprString(e, operandNames)
	}
	return strings.Join(parts, ", ")
}

func boundNames(p *printer, operands []*Value) []string {
	names := make([]string, len(operands))
	for i, v := range operands {
		names[i] = p.name(v)
	}
	return names
}

func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'g', -1, 64)
	// Keep constants recognizably floating in the textual form.
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}
