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

package lower

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/parloop/parloop/ir"
	"github.com/parloop/parloop/parse"
)

// TestLowerGolden pins the full textual output of the lowering pass.
func TestLowerGolden(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{
			"strided_add",
			`
func @main(%out: memref<4x8xf32>) {
  %c = arith.constant 1.0 : f32
  tile.parallel (%i, %j) = (0, 0) to (4, 8) step (1, 2) {
    tile.reduce add %c, %out[%i, %j] : memref<4x8xf32>
  }
}
`,
		},
		{
			"min_select",
			`
func @main(%out: memref<4xf32>) {
  %c = arith.constant 2.5 : f32
  tile.parallel (%i) = (0) to (4) step (1) {
    tile.reduce min %c, %out[%i] : memref<4xf32>
  }
}
`,
		},
	}
	g := goldie.New(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := parse.Parse(tt.src)
			require.NoError(t, err)
			require.NoError(t, NewPass().Run(m))
			g.Assert(t, tt.name, []byte(ir.Print(m)))
		})
	}
}
