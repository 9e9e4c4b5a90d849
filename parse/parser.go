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

package parse

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/parloop/parloop/affine"
	"github.com/parloop/parloop/ir"
)

// Parse reads a textual module. Terminators are implicit in the text; every
// parsed block receives its terminator automatically. The returned module
// has passed the structural verifier.
func Parse(src string) (ir.ModuleOp, error) {
	if !utf8.ValidString(src) {
		return ir.ModuleOp{}, fmt.Errorf("source is not valid UTF-8")
	}
	p := &parser{lex: newLexer(src)}
	if err := p.bump(); err != nil {
		return ir.ModuleOp{}, err
	}
	m := ir.NewModule()
	for p.tok.kind != tokEOF {
		if err := p.parseFunc(m); err != nil {
			return ir.ModuleOp{}, err
		}
	}
	if err := ir.VerifyModule(m); err != nil {
		return ir.ModuleOp{}, fmt.Errorf("verify parsed module: %w", err)
	}
	return m, nil
}

type parser struct {
	lex    *lexer
	tok    token
	b      *ir.Builder
	values map[string]*ir.Value
}

func (p *parser) bump() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%d:%d: %s", p.tok.line, p.tok.col, fmt.Sprintf(format, args...))
}

func (p *parser) expect(kind tokKind, what string) (token, error) {
	if p.tok.kind != kind {
		return token{}, p.errorf("expected %s, found %s", what, p.tok)
	}
	t := p.tok
	if err := p.bump(); err != nil {
		return token{}, err
	}
	return t, nil
}

func (p *parser) expectKeyword(kw string) error {
	if p.tok.kind != tokIdent || p.tok.text != kw {
		return p.errorf("expected %q, found %s", kw, p.tok)
	}
	return p.bump()
}

func (p *parser) define(name string, v *ir.Value) error {
	if _, exists := p.values[name]; exists {
		return p.errorf("value %%%s redefined", name)
	}
	p.values[name] = v
	return nil
}

func (p *parser) lookup(name string) (*ir.Value, error) {
	v, ok := p.values[name]
	if !ok {
		return nil, p.errorf("undefined value %%%s", name)
	}
	return v, nil
}

func (p *parser) parseFunc(m ir.ModuleOp) error {
	if err := p.expectKeyword("func"); err != nil {
		return err
	}
	name, err := p.expect(tokAtIdent, "function name")
	if err != nil {
		return err
	}

	var argNames []string
	var argTypes []ir.Type
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return err
	}
	for p.tok.kind != tokRParen {
		if len(argNames) > 0 {
			if _, err := p.expect(tokComma, "','"); err != nil {
				return err
			}
		}
		arg, err := p.expect(tokValueID, "argument name")
		if err != nil {
			return err
		}
		if _, err := p.expect(tokColon, "':'"); err != nil {
			return err
		}
		t, err := p.parseType()
		if err != nil {
			return err
		}
		argNames = append(argNames, arg.text)
		argTypes = append(argTypes, t)
	}
	if err := p.bump(); err != nil { // consume ')'
		return err
	}

	fn := ir.NewFunc(m, name.text, argTypes)
	p.values = make(map[string]*ir.Value, len(argNames))
	for i, n := range argNames {
		if err := p.define(n, fn.Body().Arg(i)); err != nil {
			return err
		}
	}
	p.b = ir.NewBuilder()
	p.b.SetInsertionPointBefore(fn.Body().Terminator())
	return p.parseBlockBody()
}

// parseBlockBody parses "{ op* }" at the current insertion point.
func (p *parser) parseBlockBody() error {
	if _, err := p.expect(tokLBrace, "'{'"); err != nil {
		return err
	}
	for p.tok.kind != tokRBrace {
		if err := p.parseOp(); err != nil {
			return err
		}
	}
	return p.bump() // consume '}'
}

func (p *parser) parseOp() error {
	switch p.tok.kind {
	case tokValueID:
		return p.parseAssignment()
	case tokIdent:
		switch p.tok.text {
		case ir.OpParallel:
			return p.parseParallel()
		case ir.OpFor:
			return p.parseFor()
		case ir.OpStore:
			return p.parseStore()
		case ir.OpReduce:
			return p.parseReduce()
		case ir.OpReturn, ir.OpTileTerm, ir.OpLoopTerm:
			// Terminators are implicit; tolerate explicit ones.
			return p.bump()
		}
		return p.errorf("unknown operation %q", p.tok.text)
	}
	return p.errorf("expected operation, found %s", p.tok)
}

func (p *parser) parseAssignment() error {
	res := p.tok
	if err := p.bump(); err != nil {
		return err
	}
	if _, err := p.expect(tokEqual, "'='"); err != nil {
		return err
	}
	opName, err := p.expect(tokIdent, "operation name")
	if err != nil {
		return err
	}

	var value *ir.Value
	switch opName.text {
	case ir.OpConstant:
		value, err = p.parseConstant()
	case ir.OpAddF, ir.OpAddI, ir.OpMulF, ir.OpMulI:
		value, err = p.parseBinary(opName.text)
	case ir.OpCmpF, ir.OpCmpI:
		value, err = p.parseCmp(opName.text)
	case ir.OpSelect:
		value, err = p.parseSelect()
	case ir.OpLoad:
		value, err = p.parseLoad()
	default:
		return p.errorf("operation %q does not produce a result or is unknown", opName.text)
	}
	if err != nil {
		return err
	}
	return p.define(res.text, value)
}

func (p *parser) parseConstant() (*ir.Value, error) {
	lit := p.tok
	switch lit.kind {
	case tokNumber, tokFloat:
	case tokIdent:
		// NaN and Inf spell as identifiers.
	default:
		return nil, p.errorf("expected constant literal, found %s", lit)
	}
	if err := p.bump(); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokColon, "':'"); err != nil {
		return nil, err
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	switch ty := t.(type) {
	case ir.Float:
		f, err := strconv.ParseFloat(lit.text, 64)
		if err != nil {
			return nil, fmt.Errorf("%d:%d: bad float constant %q", lit.line, lit.col, lit.text)
		}
		return p.b.FloatConstant(f, ty), nil
	case ir.Int:
		n, err := strconv.ParseInt(lit.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%d:%d: bad integer constant %q", lit.line, lit.col, lit.text)
		}
		return p.b.IntConstant(n, ty), nil
	}
	return nil, p.errorf("constants must have scalar type, got %s", t)
}

func (p *parser) parseBinary(name string) (*ir.Value, error) {
	lhs, rhs, err := p.parseValuePair()
	if err != nil {
		return nil, err
	}
	if _, err := p.parseTypeSuffix(lhs.Type()); err != nil {
		return nil, err
	}
	switch name {
	case ir.OpAddF:
		return p.b.AddF(lhs, rhs), nil
	case ir.OpAddI:
		return p.b.AddI(lhs, rhs), nil
	case ir.OpMulF:
		return p.b.MulF(lhs, rhs), nil
	default:
		return p.b.MulI(lhs, rhs), nil
	}
}

func (p *parser) parseCmp(name string) (*ir.Value, error) {
	pred, err := p.expect(tokIdent, "comparison predicate")
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokComma, "','"); err != nil {
		return nil, err
	}
	lhs, rhs, err := p.parseValuePair()
	if err != nil {
		return nil, err
	}
	if _, err := p.parseTypeSuffix(lhs.Type()); err != nil {
		return nil, err
	}
	if name == ir.OpCmpF {
		return p.b.CmpF(pred.text, lhs, rhs), nil
	}
	return p.b.CmpI(pred.text, lhs, rhs), nil
}

func (p *parser) parseSelect() (*ir.Value, error) {
	cond, err := p.parseValueRef()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokComma, "','"); err != nil {
		return nil, err
	}
	lhs, rhs, err := p.parseValuePair()
	if err != nil {
		return nil, err
	}
	if _, err := p.parseTypeSuffix(lhs.Type()); err != nil {
		return nil, err
	}
	return p.b.Select(cond, lhs, rhs), nil
}

func (p *parser) parseLoad() (*ir.Value, error) {
	memref, m, operands, err := p.parseAccess()
	if err != nil {
		return nil, err
	}
	return p.b.Load(memref, m, operands), nil
}

func (p *parser) parseStore() error {
	if err := p.bump(); err != nil { // consume op name
		return err
	}
	value, err := p.parseValueRef()
	if err != nil {
		return err
	}
	if _, err := p.expect(tokComma, "','"); err != nil {
		return err
	}
	memref, m, operands, err := p.parseAccess()
	if err != nil {
		return err
	}
	p.b.Store(value, memref, m, operands)
	return nil
}

func (p *parser) parseReduce() error {
	if err := p.bump(); err != nil { // consume op name
		return err
	}
	aggTok, err := p.expect(tokIdent, "aggregation kind")
	if err != nil {
		return err
	}
	agg, err := ir.ParseAggKind(aggTok.text)
	if err != nil {
		return fmt.Errorf("%d:%d: %w", aggTok.line, aggTok.col, err)
	}
	value, err := p.parseValueRef()
	if err != nil {
		return err
	}
	if _, err := p.expect(tokComma, "','"); err != nil {
		return err
	}
	memref, m, operands, err := p.parseAccess()
	if err != nil {
		return err
	}
	p.b.Reduce(agg, value, memref, m, operands)
	return nil
}

// parseAccess parses "%ref[expr, ...] : memref<...>" and returns the memref
// value, the index map, and its operands.
func (p *parser) parseAccess() (*ir.Value, affine.Map, []*ir.Value, error) {
	memref, err := p.parseValueRef()
	if err != nil {
		return nil, affine.Map{}, nil, err
	}
	if _, err := p.expect(tokLBracket, "'['"); err != nil {
		return nil, affine.Map{}, nil, err
	}
	pool := newOperandPool()
	var exprs []affine.Expr
	for p.tok.kind != tokRBracket {
		if len(exprs) > 0 {
			if _, err := p.expect(tokComma, "','"); err != nil {
				return nil, affine.Map{}, nil, err
			}
		}
		e, err := p.parseAffineExpr(pool)
		if err != nil {
			return nil, affine.Map{}, nil, err
		}
		exprs = append(exprs, e)
	}
	if err := p.bump(); err != nil { // consume ']'
		return nil, affine.Map{}, nil, err
	}
	if _, err := p.parseTypeSuffix(memref.Type()); err != nil {
		return nil, affine.Map{}, nil, err
	}
	m, err := affine.NewMap(len(pool.operands), exprs...)
	if err != nil {
		return nil, affine.Map{}, nil, err
	}
	return memref, m, pool.operands, nil
}

func (p *parser) parseParallel() error {
	if err := p.bump(); err != nil { // consume op name
		return err
	}
	ivNames, err := p.parseValueIDList()
	if err != nil {
		return err
	}
	if _, err := p.expect(tokEqual, "'='"); err != nil {
		return err
	}

	// Both bound tuples share one operand pool.
	pool := newOperandPool()
	lbExprs, err := p.parseExprTuple(pool, len(ivNames))
	if err != nil {
		return err
	}
	if err := p.expectKeyword("to"); err != nil {
		return err
	}
	ubExprs, err := p.parseExprTuple(pool, len(ivNames))
	if err != nil {
		return err
	}
	if err := p.expectKeyword("step"); err != nil {
		return err
	}
	steps, err := p.parseIntTuple(len(ivNames))
	if err != nil {
		return err
	}

	lb, err := affine.NewMap(len(pool.operands), lbExprs...)
	if err != nil {
		return err
	}
	ub, err := affine.NewMap(len(pool.operands), ubExprs...)
	if err != nil {
		return err
	}
	pl := p.b.Parallel(lb, ub, pool.operands, steps)
	for i, n := range ivNames {
		if err := p.define(n, pl.Body().Arg(i)); err != nil {
			return err
		}
	}

	saved := *p.b
	p.b.SetInsertionPointBefore(pl.Body().Terminator())
	if err := p.parseBlockBody(); err != nil {
		return err
	}
	*p.b = saved
	return nil
}

func (p *parser) parseFor() error {
	if err := p.bump(); err != nil { // consume op name
		return err
	}
	ivName, err := p.expect(tokValueID, "induction variable")
	if err != nil {
		return err
	}
	if _, err := p.expect(tokEqual, "'='"); err != nil {
		return err
	}

	pool := newOperandPool()
	lbExpr, err := p.parseAffineExpr(pool)
	if err != nil {
		return err
	}
	if err := p.expectKeyword("to"); err != nil {
		return err
	}
	ubExpr, err := p.parseAffineExpr(pool)
	if err != nil {
		return err
	}
	if err := p.expectKeyword("step"); err != nil {
		return err
	}
	stepTok, err := p.expect(tokNumber, "step")
	if err != nil {
		return err
	}
	step, err := strconv.ParseInt(stepTok.text, 10, 64)
	if err != nil {
		return fmt.Errorf("%d:%d: bad step %q", stepTok.line, stepTok.col, stepTok.text)
	}

	lb, err := affine.NewMap(len(pool.operands), lbExpr)
	if err != nil {
		return err
	}
	ub, err := affine.NewMap(len(pool.operands), ubExpr)
	if err != nil {
		return err
	}
	f := p.b.For(lb, ub, pool.operands, step)
	if err := p.define(ivName.text, f.InductionVar()); err != nil {
		return err
	}

	saved := *p.b
	p.b.SetInsertionPointBefore(f.Body().Terminator())
	if err := p.parseBlockBody(); err != nil {
		return err
	}
	*p.b = saved
	return nil
}

// operandPool assigns affine dims to SSA values in first-use order, so
// values shared between expressions share a dim.
type operandPool struct {
	operands []*ir.Value
	dims     map[*ir.Value]int
}

func newOperandPool() *operandPool {
	return &operandPool{dims: map[*ir.Value]int{}}
}

func (pool *operandPool) dim(v *ir.Value) affine.Expr {
	d, ok := pool.dims[v]
	if !ok {
		d = len(pool.operands)
		pool.dims[v] = d
		pool.operands = append(pool.operands, v)
	}
	return affine.Dim(d)
}

// parseAffineExpr parses sums of products over integers and index values.
func (p *parser) parseAffineExpr(pool *operandPool) (affine.Expr, error) {
	e, err := p.parseAffineTerm(pool)
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokPlus {
		if err := p.bump(); err != nil {
			return nil, err
		}
		rhs, err := p.parseAffineTerm(pool)
		if err != nil {
			return nil, err
		}
		e = affine.Add(e, rhs)
	}
	return e, nil
}

func (p *parser) parseAffineTerm(pool *operandPool) (affine.Expr, error) {
	e, err := p.parseAffineFactor(pool)
	if err != nil {
		return nil, err
	}
	for p.tok.kind == tokStar {
		if err := p.bump(); err != nil {
			return nil, err
		}
		rhs, err := p.parseAffineFactor(pool)
		if err != nil {
			return nil, err
		}
		e = affine.Mul(e, rhs)
	}
	return e, nil
}

func (p *parser) parseAffineFactor(pool *operandPool) (affine.Expr, error) {
	switch p.tok.kind {
	case tokNumber:
		n, err := strconv.ParseInt(p.tok.text, 10, 64)
		if err != nil {
			return nil, p.errorf("bad integer %q", p.tok.text)
		}
		if err := p.bump(); err != nil {
			return nil, err
		}
		return affine.Const(n), nil
	case tokValueID:
		v, err := p.lookup(p.tok.text)
		if err != nil {
			return nil, err
		}
		if !ir.TypeEqual(v.Type(), ir.Index{}) {
			return nil, p.errorf("value %%%s has type %s; affine operands must be index", p.tok.text, v.Type())
		}
		if err := p.bump(); err != nil {
			return nil, err
		}
		return pool.dim(v), nil
	case tokLParen:
		if err := p.bump(); err != nil {
			return nil, err
		}
		e, err := p.parseAffineExpr(pool)
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil
	}
	return nil, p.errorf("expected affine expression, found %s", p.tok)
}

func (p *parser) parseExprTuple(pool *operandPool, want int) ([]affine.Expr, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var exprs []affine.Expr
	for p.tok.kind != tokRParen {
		if len(exprs) > 0 {
			if _, err := p.expect(tokComma, "','"); err != nil {
				return nil, err
			}
		}
		e, err := p.parseAffineExpr(pool)
		if err != nil {
			return nil, err
		}
		exprs = append(exprs, e)
	}
	if err := p.bump(); err != nil {
		return nil, err
	}
	if len(exprs) != want {
		return nil, p.errorf("expected %d bound expressions, found %d", want, len(exprs))
	}
	return exprs, nil
}

func (p *parser) parseIntTuple(want int) ([]int64, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var ints []int64
	for p.tok.kind != tokRParen {
		if len(ints) > 0 {
			if _, err := p.expect(tokComma, "','"); err != nil {
				return nil, err
			}
		}
		t, err := p.expect(tokNumber, "integer")
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%d:%d: bad integer %q", t.line, t.col, t.text)
		}
		ints = append(ints, n)
	}
	if err := p.bump(); err != nil {
		return nil, err
	}
	if len(ints) != want {
		return nil, p.errorf("expected %d steps, found %d", want, len(ints))
	}
	return ints, nil
}

func (p *parser) parseValueIDList() ([]string, error) {
	if _, err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}
	var names []string
	for p.tok.kind != tokRParen {
		if len(names) > 0 {
			if _, err := p.expect(tokComma, "','"); err != nil {
				return nil, err
			}
		}
		t, err := p.expect(tokValueID, "value name")
		if err != nil {
			return nil, err
		}
		names = append(names, t.text)
	}
	if err := p.bump(); err != nil {
		return nil, err
	}
	return names, nil
}

func (p *parser) parseValuePair() (*ir.Value, *ir.Value, error) {
	lhs, err := p.parseValueRef()
	if err != nil {
		return nil, nil, err
	}
	if _, err := p.expect(tokComma, "','"); err != nil {
		return nil, nil, err
	}
	rhs, err := p.parseValueRef()
	if err != nil {
		return nil, nil, err
	}
	return lhs, rhs, nil
}

func (p *parser) parseValueRef() (*ir.Value, error) {
	t, err := p.expect(tokValueID, "value reference")
	if err != nil {
		return nil, err
	}
	v, ok := p.values[t.text]
	if !ok {
		return nil, fmt.Errorf("%d:%d: undefined value %%%s", t.line, t.col, t.text)
	}
	return v, nil
}

// parseTypeSuffix parses ": type" and checks it against want.
func (p *parser) parseTypeSuffix(want ir.Type) (ir.Type, error) {
	if _, err := p.expect(tokColon, "':'"); err != nil {
		return nil, err
	}
	t, err := p.parseType()
	if err != nil {
		return nil, err
	}
	if !ir.TypeEqual(t, want) {
		return nil, p.errorf("type annotation %s does not match %s", t, want)
	}
	return t, nil
}

func (p *parser) parseType() (ir.Type, error) {
	t, err := p.expect(tokIdent, "type")
	if err != nil {
		return nil, err
	}
	if t.text == "memref" {
		return p.parseMemRef(t)
	}
	st, ok := scalarType(t.text)
	if !ok {
		return nil, fmt.Errorf("%d:%d: unknown type %q", t.line, t.col, t.text)
	}
	return st, nil
}

// parseMemRef parses "<4x8xf32>" following the memref keyword. The shape
// lexes as interleaved number and ident tokens; they are joined back and
// split on 'x'.
func (p *parser) parseMemRef(kw token) (ir.Type, error) {
	if _, err := p.expect(tokLess, "'<'"); err != nil {
		return nil, err
	}
	var raw strings.Builder
	for p.tok.kind == tokNumber || p.tok.kind == tokIdent {
		raw.WriteString(p.tok.text)
		if err := p.bump(); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(tokGreater, "'>'"); err != nil {
		return nil, err
	}

	parts := strings.Split(raw.String(), "x")
	elemName := parts[len(parts)-1]
	elem, ok := scalarType(elemName)
	if !ok {
		return nil, fmt.Errorf("%d:%d: unknown element type %q", kw.line, kw.col, elemName)
	}
	shape := make([]int64, 0, len(parts)-1)
	for _, part := range parts[:len(parts)-1] {
		d, err := strconv.ParseInt(part, 10, 64)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("%d:%d: bad memref dimension %q", kw.line, kw.col, part)
		}
		shape = append(shape, d)
	}
	return ir.MemRef{Shape: shape, Elem: elem}, nil
}

func scalarType(name string) (ir.Type, bool) {
	switch name {
	case "f32":
		return ir.F32, true
	case "f64":
		return ir.F64, true
	case "i32":
		return ir.I32, true
	case "i64":
		return ir.I64, true
	case "i1":
		return ir.Bool, true
	case "index":
		return ir.Index{}, true
	}
	return nil, false
}
