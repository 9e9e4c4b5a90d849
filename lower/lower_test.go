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
	"fmt"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/parloop/parloop/interp"
	"github.com/parloop/parloop/ir"
	"github.com/parloop/parloop/parse"
)

// runMain parses src, optionally lowers it, and interprets @main with one
// zero-filled buffer bound to its single memref parameter.
func runMain(t *testing.T, src string, lowered bool) *interp.Buffer {
	t.Helper()
	m, err := parse.Parse(src)
	require.NoError(t, err)
	if lowered {
		require.NoError(t, NewPass().Run(m))
		require.NoError(t, ir.VerifyModule(m))
	}
	fn, ok := m.Func("main")
	require.True(t, ok)
	buf := interp.NewBuffer(fn.Body().Arg(0).Type().(ir.MemRef))
	require.NoError(t, interp.Call(fn, []any{buf}))
	return buf
}

func TestLoweredKernelEndToEnd(t *testing.T) {
	src := `
func @main(%out: memref<4x8xf32>) {
  %c = arith.constant 1.0 : f32
  tile.parallel (%i, %j) = (0, 0) to (4, 8) step (1, 2) {
    tile.reduce add %c, %out[%i, %j] : memref<4x8xf32>
  }
}
`
	buf := runMain(t, src, true)

	want := make([]float64, 4*8)
	for i := 0; i < 4; i++ {
		for j := 0; j < 8; j += 2 {
			want[i*8+j] = 1
		}
	}
	if diff := cmp.Diff(want, buf.F); diff != "" {
		t.Errorf("buffer mismatch (-want +got):\n%s", diff)
	}
}

func TestLoweringPreservesSemantics(t *testing.T) {
	srcs := []struct {
		name string
		src  string
	}{
		{
			"accumulate",
			`
func @main(%out: memref<4xf32>) {
  %c = arith.constant 2.5 : f32
  tile.parallel (%i, %j) = (0, 0) to (4, 3) step (1, 1) {
    tile.reduce add %c, %out[%i] : memref<4xf32>
  }
}
`,
		},
		{
			"strided max",
			`
func @main(%out: memref<8xf32>) {
  %c = arith.constant -1.5 : f32
  tile.parallel (%i) = (0) to (8) step (2) {
    tile.reduce max %c, %out[%i] : memref<8xf32>
  }
}
`,
		},
		{
			"affine index",
			`
func @main(%out: memref<16xf32>) {
  %c = arith.constant 1.0 : f32
  tile.parallel (%i, %j) = (0, 0) to (4, 4) step (1, 1) {
    tile.reduce assign %c, %out[4 * %i + %j] : memref<16xf32>
  }
}
`,
		},
	}
	for _, tt := range srcs {
		t.Run(tt.name, func(t *testing.T) {
			direct := runMain(t, tt.src, false)
			lowered := runMain(t, tt.src, true)
			if diff := cmp.Diff(direct.F, lowered.F); diff != "" {
				t.Errorf("lowering changed semantics (-direct +lowered):\n%s", diff)
			}
		})
	}
}

func TestCombineValuesFloat(t *testing.T) {
	// Accumulator starts at 3.0 via assign, then one combine of 5.0.
	tests := []struct {
		agg  string
		want float64
	}{
		{"assign", 5},
		{"add", 8},
		{"mul", 15},
		{"max", 5},
		{"min", 3},
	}
	for _, tt := range tests {
		t.Run(tt.agg, func(t *testing.T) {
			src := fmt.Sprintf(`
func @main(%%out: memref<1xf32>) {
  %%a = arith.constant 3.0 : f32
  %%v = arith.constant 5.0 : f32
  tile.reduce assign %%a, %%out[0] : memref<1xf32>
  tile.reduce %s %%v, %%out[0] : memref<1xf32>
}
`, tt.agg)
			buf := runMain(t, src, true)
			require.Equal(t, tt.want, buf.F[0])
		})
	}
}

func TestCombineValuesInt(t *testing.T) {
	// Accumulator starts at -2, then one combine of 7. Comparisons are
	// signed, so max picks 7 and min keeps -2.
	tests := []struct {
		agg  string
		want int64
	}{
		{"assign", 7},
		{"add", 5},
		{"mul", -14},
		{"max", 7},
		{"min", -2},
	}
	for _, tt := range tests {
		t.Run(tt.agg, func(t *testing.T) {
			src := fmt.Sprintf(`
func @main(%%out: memref<1xi64>) {
  %%a = arith.constant -2 : i64
  %%v = arith.constant 7 : i64
  tile.reduce assign %%a, %%out[0] : memref<1xi64>
  tile.reduce %s %%v, %%out[0] : memref<1xi64>
}
`, tt.agg)
			buf := runMain(t, src, true)
			require.Equal(t, tt.want, buf.I[0])
		})
	}
}

func TestMaxKeepsNaNAccumulator(t *testing.T) {
	// Ordered comparison is false against NaN, so a NaN accumulator never
	// loses to a finite candidate.
	src := `
func @main(%out: memref<1xf64>) {
  %a = arith.constant NaN : f64
  %v = arith.constant 5.0 : f64
  tile.reduce assign %a, %out[0] : memref<1xf64>
  tile.reduce max %v, %out[0] : memref<1xf64>
}
`
	buf := runMain(t, src, true)
	require.True(t, math.IsNaN(buf.F[0]), "NaN accumulator replaced by %v", buf.F[0])
}

func TestMaxDropsNaNCandidate(t *testing.T) {
	src := `
func @main(%out: memref<1xf64>) {
  %a = arith.constant 3.0 : f64
  %v = arith.constant NaN : f64
  tile.reduce assign %a, %out[0] : memref<1xf64>
  tile.reduce max %v, %out[0] : memref<1xf64>
}
`
	buf := runMain(t, src, true)
	require.Equal(t, 3.0, buf.F[0])
}

func TestMinKeepsNaNAccumulator(t *testing.T) {
	src := `
func @main(%out: memref<1xf64>) {
  %a = arith.constant NaN : f64
  %v = arith.constant 5.0 : f64
  tile.reduce assign %a, %out[0] : memref<1xf64>
  tile.reduce min %v, %out[0] : memref<1xf64>
}
`
	buf := runMain(t, src, true)
	require.True(t, math.IsNaN(buf.F[0]), "NaN accumulator replaced by %v", buf.F[0])
}

func TestMinDropsNaNCandidate(t *testing.T) {
	src := `
func @main(%out: memref<1xf64>) {
  %a = arith.constant 3.0 : f64
  %v = arith.constant NaN : f64
  tile.reduce assign %a, %out[0] : memref<1xf64>
  tile.reduce min %v, %out[0] : memref<1xf64>
}
`
	buf := runMain(t, src, true)
	require.Equal(t, 3.0, buf.F[0])
}
