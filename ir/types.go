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
	"strings"
)

// Type is a sealed interface over the value types of the dialect set.
// Only Float, Int, Index, and MemRef implement it.
type Type interface {
	String() string
	irType()
}

// Float is a floating-point scalar type (f32 or f64).
type Float struct {
	Bits int
}

// Int is an integer scalar type. Bits == 1 is the comparison result type.
type Int struct {
	Bits int
}

// Index is the loop induction and memory index type.
type Index struct{}

// MemRef is a shaped, row-major memory reference.
type MemRef struct {
	Shape []int64
	Elem  Type
}

func (Float) irType()  {}
func (Int) irType()    {}
func (Index) irType()  {}
func (MemRef) irType() {}

func (t Float) String() string { return fmt.Sprintf("f%d", t.Bits) }
func (t Int) String() string   { return fmt.Sprintf("i%d", t.Bits) }
func (Index) String() string   { return "index" }

func (t MemRef) String() string {
	var sb strings.Builder
	sb.WriteString("memref<")
	for _, d := range t.Shape {
		fmt.Fprintf(&sb, "%dx", d)
	}
	sb.WriteString(t.Elem.String())
	sb.WriteByte('>')
	return sb.String()
}

// Common scalar types.
var (
	F32  = Float{Bits: 32}
	F64  = Float{Bits: 64}
	I32  = Int{Bits: 32}
	I64  = Int{Bits: 64}
	Bool = Int{Bits: 1}
)

// Rank returns the number of memref dimensions.
func (t MemRef) Rank() int {
	return len(t.Shape)
}

// NumElements returns the total element count of the memref.
func (t MemRef) NumElements() int64 {
	n := int64(1)
	for _, d := range t.Shape {
		n *= d
	}
	return n
}

// IsFloat reports whether t is a floating-point scalar.
func IsFloat(t Type) bool {
	_, ok := t.(Float)
	return ok
}

// IsInteger reports whether t is an integer scalar (index excluded).
func IsInteger(t Type) bool {
	_, ok := t.(Int)
	return ok
}

// TypeEqual compares two types structurally.
func TypeEqual(a, b Type) bool {
	switch x := a.(type) {
	case Float:
		y, ok := b.(Float)
		return ok && x.Bits == y.Bits
	case Int:
		y, ok := b.(Int)
		return ok && x.Bits == y.Bits
	case Index:
		_, ok := b.(Index)
		return ok
	case MemRef:
		y, ok := b.(MemRef)
		if !ok || len(x.Shape) != len(y.Shape) || !TypeEqual(x.Elem, y.Elem) {
			return false
		}
		for i := range x.Shape {
			if x.Shape[i] != y.Shape[i] {
				return false
			}
		}
		return true
	}
	return false
}
