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

// Attr is a sealed interface over operation attribute payloads.
type Attr interface {
	irAttr()
}

// IntAttr holds a single integer (steps, widths).
type IntAttr int64

// IntsAttr holds an ordered integer list (parallel steps).
type IntsAttr []int64

// FloatAttr holds a floating constant payload.
type FloatAttr float64

// StringAttr holds a name or predicate.
type StringAttr string

// MapAttr holds an affine map (bounds, index mappings).
type MapAttr struct {
	Map affine.Map
}

// TypeAttr holds a type payload.
type TypeAttr struct {
	Type Type
}

// AggAttr holds an aggregation kind.
type AggAttr AggKind

func (IntAttr) irAttr()    {}
func (IntsAttr) irAttr()   {}
func (FloatAttr) irAttr()  {}
func (StringAttr) irAttr() {}
func (MapAttr) irAttr()    {}
func (TypeAttr) irAttr()   {}
func (AggAttr) irAttr()    {}

// AggKind enumerates the supported reduce aggregations. The set is closed:
// expansion of any other kind is a fatal error, never a fallback combine.
type AggKind uint8

const (
	AggAssign AggKind = iota
	AggAdd
	AggMul
	AggMax
	AggMin
)

var aggNames = [...]string{"assign", "add", "mul", "max", "min"}

func (k AggKind) String() string {
	if int(k) < len(aggNames) {
		return aggNames[k]
	}
	return fmt.Sprintf("agg(%d)", uint8(k))
}

// ParseAggKind maps a textual aggregation name to its kind.
func ParseAggKind(s string) (AggKind, error) {
	for i, n := range aggNames {
		if n == s {
			return AggKind(i), nil
		}
	}
	return 0, fmt.Errorf("unknown aggregation kind %q", s)
}
