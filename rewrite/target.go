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

package rewrite

import (
	"github.com/parloop/parloop/ir"
)

// Target records which constructs a conversion makes illegal and which it
// accepts as output. Per-op entries override dialect entries; operations
// mentioned by neither are left alone (partial conversion).
type Target struct {
	legalDialects   map[string]bool
	illegalDialects map[string]bool
	legalOps        map[string]bool
	illegalOps      map[string]bool
}

// NewTarget returns an empty legality target.
func NewTarget() *Target {
	return &Target{
		legalDialects:   map[string]bool{},
		illegalDialects: map[string]bool{},
		legalOps:        map[string]bool{},
		illegalOps:      map[string]bool{},
	}
}

// AddLegalDialect marks every op of the named dialects as legal output.
func (t *Target) AddLegalDialect(names ...string) {
	for _, n := range names {
		t.legalDialects[n] = true
	}
}

// AddIllegalDialect marks every op of the named dialects as must-convert.
func (t *Target) AddIllegalDialect(names ...string) {
	for _, n := range names {
		t.illegalDialects[n] = true
	}
}

// AddLegalOp marks individual op names as legal output.
func (t *Target) AddLegalOp(names ...string) {
	for _, n := range names {
		t.legalOps[n] = true
	}
}

// AddIllegalOp marks individual op names as must-convert.
func (t *Target) AddIllegalOp(names ...string) {
	for _, n := range names {
		t.illegalOps[n] = true
	}
}

// IsLegal reports whether op may remain in the graph when conversion ends.
// Per-op entries take precedence over dialect entries; a dialect marked both
// legal and illegal counts as legal.
func (t *Target) IsLegal(op *ir.Operation) bool {
	if t.illegalOps[op.Name()] {
		return false
	}
	if t.legalOps[op.Name()] {
		return true
	}
	if t.legalDialects[op.Dialect()] {
		return true
	}
	return !t.illegalDialects[op.Dialect()]
}
