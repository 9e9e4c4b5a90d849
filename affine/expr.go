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

// Package affine implements integer-affine expressions and multi-result
// affine maps, the bound and index language of the tile and loop dialects.
//
// An expression is a linear combination of map dimensions and integer
// constants. Maps read all of their inputs as dimensions over a single
// shared operand pool; there is no separate symbol class, so projecting a
// map onto one result (SubMap) trivially preserves the operand pool.
package affine

import (
	"fmt"
	"strings"
)

// Expr is a sealed interface over affine expressions.
// Only DimExpr, ConstExpr, and BinExpr implement it.
type Expr interface {
	// Eval computes the expression over concrete dimension values.
	Eval(dims []int64) int64

	// MaxDim returns the largest dimension index referenced, or -1.
	MaxDim() int

	affineExpr()
}

// DimExpr references map input i.
type DimExpr struct {
	Index int
}

// ConstExpr is an integer constant.
type ConstExpr struct {
	Value int64
}

// BinKind discriminates binary expression nodes.
type BinKind uint8

const (
	BinAdd BinKind = iota
	BinMul
)

// BinExpr combines two subexpressions with + or *.
type BinExpr struct {
	Kind BinKind
	LHS  Expr
	RHS  Expr
}

func (DimExpr) affineExpr()   {}
func (ConstExpr) affineExpr() {}
func (BinExpr) affineExpr()   {}

// Dim returns an expression referencing map input i.
func Dim(i int) Expr {
	if i < 0 {
		panic(fmt.Sprintf("affine: negative dim index %d", i))
	}
	return DimExpr{Index: i}
}

// Const returns a constant expression.
func Const(v int64) Expr {
	return ConstExpr{Value: v}
}

// Add returns a + b, folding when both sides are constants.
func Add(a, b Expr) Expr {
	ca, aok := a.(ConstExpr)
	cb, bok := b.(ConstExpr)
	if aok && bok {
		return ConstExpr{Value: ca.Value + cb.Value}
	}
	if aok && ca.Value == 0 {
		return b
	}
	if bok && cb.Value == 0 {
		return a
	}
	return BinExpr{Kind: BinAdd, LHS: a, RHS: b}
}

// Mul returns a * b, folding constants and the multiplicative identities.
func Mul(a, b Expr) Expr {
	ca, aok := a.(ConstExpr)
	cb, bok := b.(ConstExpr)
	if aok && bok {
		return ConstExpr{Value: ca.Value * cb.Value}
	}
	if aok {
		switch ca.Value {
		case 0:
			return ConstExpr{Value: 0}
		case 1:
			return b
		}
	}
	if bok {
		switch cb.Value {
		case 0:
			return ConstExpr{Value: 0}
		case 1:
			return a
		}
	}
	return BinExpr{Kind: BinMul, LHS: a, RHS: b}
}

func (e DimExpr) Eval(dims []int64) int64 {
	return dims[e.Index]
}

func (e ConstExpr) Eval(dims []int64) int64 {
	return e.Value
}

func (e BinExpr) Eval(dims []int64) int64 {
	l := e.LHS.Eval(dims)
	r := e.RHS.Eval(dims)
	if e.Kind == BinMul {
		return l * r
	}
	return l + r
}

func (e DimExpr) MaxDim() int   { return e.Index }
func (e ConstExpr) MaxDim() int { return -1 }

func (e BinExpr) MaxDim() int {
	l := e.LHS.MaxDim()
	if r := e.RHS.MaxDim(); r > l {
		return r
	}
	return l
}

// ExprString renders e with the given dimension names. Multiplication binds
// tighter than addition, so additive subexpressions of a product are
// parenthesized.
func ExprString(e Expr, dimNames []string) string {
	var sb strings.Builder
	writeExpr(&sb, e, dimNames, false)
	return sb.String()
}

func writeExpr(sb *strings.Builder, e Expr, dimNames []string, inMul bool) {
	switch x := e.(type) {
	case DimExpr:
		if x.Index < len(dimNames) {
			sb.WriteString(dimNames[x.Index])
		} else {
			fmt.Fprintf(sb, "d%d", x.Index)
		}
	case ConstExpr:
		fmt.Fprintf(sb, "%d", x.Value)
	case BinExpr:
		op := " + "
		paren := inMul
		if x.Kind == BinMul {
			op = " * "
			paren = false
		}
		if paren {
			sb.WriteByte('(')
		}
		writeExpr(sb, x.LHS, dimNames, x.Kind == BinMul)
		sb.WriteString(op)
		writeExpr(sb, x.RHS, dimNames, x.Kind == BinMul)
		if paren {
			sb.WriteByte(')')
		}
	}
}
