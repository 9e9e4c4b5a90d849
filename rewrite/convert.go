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
	"errors"
	"fmt"
	"strings"

	"github.com/parloop/parloop/ir"
)

// ErrIncompleteConversion reports that illegal operations survived an
// exhaustive application of the pattern set. There is no partial success:
// callers must reject the whole unit of work.
var ErrIncompleteConversion = errors.New("illegal operations remain after conversion")

// ApplyPartialConversion rewrites every illegal operation under root using
// the pattern set, repeating until no illegal operation with a matching
// pattern remains, then checks that no illegal operation of any kind
// survived. Visitation order carries no semantic weight: each pattern
// rewrites only its matched op and the op's immediate surroundings, and
// every rewrite completes before the next begins.
func ApplyPartialConversion(root *ir.Operation, target *Target, patterns *PatternSet) error {
	for {
		worklist := collectIllegal(root, target, patterns)
		if len(worklist) == 0 {
			break
		}
		for _, op := range worklist {
			if op.Parent() == nil {
				// Detached by an earlier rewrite in this round.
				continue
			}
			pat, _ := patterns.For(op.Name())
			r := &Rewriter{Builder: ir.NewBuilder()}
			r.SetInsertionPointBefore(op)
			if err := pat.Rewrite(op, r); err != nil {
				return fmt.Errorf("rewrite %s: %w", op.Name(), err)
			}
			if op.Parent() != nil {
				return fmt.Errorf("rewrite %s: pattern left the matched operation in place", op.Name())
			}
		}
	}

	var remaining []string
	root.Walk(func(op *ir.Operation) {
		if !target.IsLegal(op) {
			remaining = append(remaining, op.Name())
		}
	})
	if len(remaining) > 0 {
		return fmt.Errorf("%w: %s", ErrIncompleteConversion, strings.Join(remaining, ", "))
	}
	return nil
}

// collectIllegal gathers the illegal ops that have a registered pattern.
// Illegal ops without one are left for the final legality sweep.
func collectIllegal(root *ir.Operation, target *Target, patterns *PatternSet) []*ir.Operation {
	var ops []*ir.Operation
	root.Walk(func(op *ir.Operation) {
		if target.IsLegal(op) {
			return
		}
		if _, ok := patterns.For(op.Name()); ok {
			ops = append(ops, op)
		}
	})
	return ops
}
