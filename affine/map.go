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

package affine

import (
	"fmt"
	"strings"
)

// Map is a multi-result affine map: NumDims inputs, one expression per
// result. A map with zero results is valid (a zero-dimension loop has one).
type Map struct {
	NumDims int
	Exprs   []Expr
}

// NewMap builds a map and validates that every expression stays within the
// declared input pool.
func NewMap(numDims int, exprs ...Expr) (Map, error) {
	for i, e := range exprs {
		if e == nil {
			return Map{}, fmt.Errorf("result %d: nil expression", i)
		}
		if m := e.MaxDim(); m >= numDims {
			return Map{}, fmt.Errorf("result %d references d%d but map has %d dims", i, m, numDims)
		}
	}
	return Map{NumDims: numDims, Exprs: exprs}, nil
}

// MustMap is NewMap for statically known-good maps; it panics on error.
func MustMap(numDims int, exprs ...Expr) Map {
	m, err := NewMap(numDims, exprs...)
	if err != nil {
		panic("affine: " + err.Error())
	}
	return m
}

// ConstantMap returns a zero-input map whose results are the given constants.
func ConstantMap(values ...int64) Map {
	exprs := make([]Expr, len(values))
	for i, v := range values {
		exprs[i] = Const(v)
	}
	return Map{Exprs: exprs}
}

// IdentityMap returns the n-input map (d0, ..., dn-1) -> (d0, ..., dn-1).
func IdentityMap(n int) Map {
	exprs := make([]Expr, n)
	for i := range exprs {
		exprs[i] = Dim(i)
	}
	return Map{NumDims: n, Exprs: exprs}
}

// NumResults returns the number of result expressions.
func (m Map) NumResults() int {
	return len(m.Exprs)
}

// SubMap projects the map onto result i. The full input pool is retained so
// the projected map keeps reading the same operand list as the original.
func (m Map) SubMap(i int) Map {
	return Map{NumDims: m.NumDims, Exprs: []Expr{m.Exprs[i]}}
}

// Eval computes every result over concrete dimension values. The dims slice
// must have exactly NumDims entries.
func (m Map) Eval(dims []int64) []int64 {
	if len(dims) != m.NumDims {
		panic(fmt.Sprintf("affine: map with %d dims evaluated with %d values", m.NumDims, len(dims)))
	}
	out := make([]int64, len(m.Exprs))
	for i, e := range m.Exprs {
		out[i] = e.Eval(dims)
	}
	return out
}

// String renders the map in "(d0, d1) -> (d0 + 1, 8)" form.
func (m Map) String() string {
	names := make([]string, m.NumDims)
	for i := range names {
		names[i] = fmt.Sprintf("d%d", i)
	}
	var sb strings.Builder
	sb.WriteByte('(')
	sb.WriteString(strings.Join(names, ", "))
	sb.WriteString(") -> (")
	for i, e := range m.Exprs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(ExprString(e, names))
	}
	sb.WriteByte(')')
	return sb.String()
}
