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

// Package rewrite implements the conversion driver: rewrite patterns keyed
// by operation name, a legality target, partial conversion to fixpoint, and
// a pass manager. Patterns are independent leaves; the driver owns
// scheduling and makes no ordering promise beyond one-rewrite-at-a-time.
package rewrite

import (
	"fmt"

	"github.com/parloop/parloop/ir"
)

// Pattern rewrites one kind of operation. Match is unconditional: every
// operation named Root() is handed to Rewrite, which must leave the graph
// fully valid and erase the matched operation before returning. A returned
// error aborts the whole conversion; there is no soft "could not rewrite".
type Pattern interface {
	// Root is the operation name this pattern matches.
	Root() string

	// Rewrite replaces op with its lowered form. The rewriter's insertion
	// point starts immediately before op.
	Rewrite(op *ir.Operation, r *Rewriter) error
}

// Rewriter is the mutation surface handed to patterns: a builder positioned
// at the matched operation plus erase/replace helpers.
type Rewriter struct {
	*ir.Builder
}

// Erase removes op from the graph. Its results must be unused.
func (r *Rewriter) Erase(op *ir.Operation) {
	op.Erase()
}

// ReplaceAllUses relinks every use of from to to.
func (r *Rewriter) ReplaceAllUses(from, to *ir.Value) {
	from.ReplaceAllUsesWith(to)
}

// PatternSet holds patterns indexed by root operation name.
type PatternSet struct {
	byRoot map[string]Pattern
}

// NewPatternSet builds a set from the given patterns. Two patterns for the
// same root are a configuration error.
func NewPatternSet(patterns ...Pattern) (*PatternSet, error) {
	set := &PatternSet{byRoot: make(map[string]Pattern, len(patterns))}
	for _, p := range patterns {
		if _, dup := set.byRoot[p.Root()]; dup {
			return nil, fmt.Errorf("duplicate pattern for %s", p.Root())
		}
		set.byRoot[p.Root()] = p
	}
	return set, nil
}

// For returns the pattern registered for the op name, if any.
func (s *PatternSet) For(name string) (Pattern, bool) {
	p, ok := s.byRoot[name]
	return p, ok
}
