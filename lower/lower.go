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

// Package lower eliminates the tile dialect: tile.parallel becomes a nest
// of sequential loop.for operations, and tile.reduce becomes an explicit
// load, combine, store triple. Both rewrites are destructive, in-place,
// and single-shot; the conversion driver rejects the whole module if any
// tile operation survives.
package lower

import (
	"github.com/parloop/parloop/ir"
	"github.com/parloop/parloop/rewrite"
)

// PassName is the pipeline name of the lowering pass.
const PassName = "lower-tile"

type loweringPass struct{}

// NewPass returns the tile-to-loops lowering pass. It declares the tile
// dialect illegal and the loop, mem, arith, and func dialects legal.
func NewPass() rewrite.Pass {
	return loweringPass{}
}

func (loweringPass) Name() string { return PassName }

func (loweringPass) Run(m ir.ModuleOp) error {
	target := rewrite.NewTarget()
	target.AddLegalDialect("loop", "mem", "arith", "func")
	target.AddIllegalDialect("tile")
	target.AddIllegalOp(ir.OpParallel, ir.OpReduce)

	patterns, err := rewrite.NewPatternSet(parallelLowering{}, reduceExpansion{})
	if err != nil {
		return err
	}
	return rewrite.ApplyPartialConversion(m.Op, target, patterns)
}
