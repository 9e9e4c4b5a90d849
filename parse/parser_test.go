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

package parse

import (
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"github.com/parloop/parloop/ir"
)

// TestRoundTrip parses every canonical module in the txtar corpus and
// checks that printing reproduces the input byte for byte.
func TestRoundTrip(t *testing.T) {
	arch, err := txtar.ParseFile(filepath.Join("testdata", "roundtrip.txtar"))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range arch.Files {
		t.Run(f.Name, func(t *testing.T) {
			src := string(f.Data)
			m, err := Parse(src)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := ir.Print(m); got != src {
				t.Errorf("round trip mismatch\ngot:\n%s\nwant:\n%s", got, src)
			}
		})
	}
}

func TestParseStructure(t *testing.T) {
	src := `
// A strided accumulation kernel.
func @main(%out: memref<4x8xf32>) {
  %c = arith.constant 1.0 : f32
  tile.parallel (%i, %j) = (0, 0) to (4, 8) step (1, 2) {
    tile.reduce add %c, %out[%i, %j] : memref<4x8xf32>
  }
}
`
	m, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	fn, ok := m.Func("main")
	if !ok {
		t.Fatal("function main not found")
	}

	ops := fn.Body().Ops()
	if ops[0].Name() != ir.OpConstant || ops[1].Name() != ir.OpParallel {
		t.Fatalf("unexpected body %v, %v", ops[0].Name(), ops[1].Name())
	}
	pl := ir.ParallelOp{Op: ops[1]}
	if pl.NumDims() != 2 {
		t.Errorf("NumDims = %d, want 2", pl.NumDims())
	}
	if got := pl.Steps(); got[0] != 1 || got[1] != 2 {
		t.Errorf("Steps = %v, want [1 2]", got)
	}
	red := ir.ReduceOp{Op: pl.Body().Ops()[0]}
	if red.Agg() != ir.AggAdd {
		t.Errorf("Agg = %s, want add", red.Agg())
	}
	// Index operands are the parallel's induction placeholders in order.
	for i, v := range red.IndexOperands() {
		if v != pl.Body().Arg(i) {
			t.Errorf("index operand %d is not induction variable %d", i, i)
		}
	}
}

func TestSharedOperandPool(t *testing.T) {
	// %i appears in both results; the pool assigns it one dim.
	src := `
func @main(%out: memref<4x4xf32>) {
  %c = arith.constant 1.0 : f32
  tile.parallel (%i) = (0) to (4) step (1) {
    tile.reduce assign %c, %out[%i, %i] : memref<4x4xf32>
  }
}
`
	m, err := Parse(src)
	if err != nil {
		t.Fatal(err)
	}
	fn, _ := m.Func("main")
	pl := ir.ParallelOp{Op: fn.Body().Ops()[1]}
	red := ir.ReduceOp{Op: pl.Body().Ops()[0]}
	if got := len(red.IndexOperands()); got != 1 {
		t.Fatalf("shared value duplicated in pool: %d operands", got)
	}
	if red.IndexMap().NumResults() != 2 {
		t.Fatalf("NumResults = %d, want 2", red.IndexMap().NumResults())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		wantSub string
	}{
		{
			"undefined value",
			`func @f() { %0 = arith.addf %a, %b : f32 }`,
			"undefined value %a",
		},
		{
			"redefined value",
			`func @f() {
  %0 = arith.constant 1.0 : f32
  %0 = arith.constant 2.0 : f32
}`,
			"redefined",
		},
		{
			"type annotation mismatch",
			`func @f() {
  %0 = arith.constant 1.0 : f32
  %1 = arith.constant 2.0 : f64
  %2 = arith.addf %0, %1 : f64
}`,
			"does not match",
		},
		{
			"unknown operation",
			`func @f() { tile.fuse }`,
			"unknown operation",
		},
		{
			"unknown aggregation",
			`func @f(%m: memref<1xf32>) {
  %0 = arith.constant 1.0 : f32
  tile.reduce xor %0, %m[0] : memref<1xf32>
}`,
			"unknown aggregation kind",
		},
		{
			"bad memref dimension",
			`func @f(%m: memref<0xf32>) { }`,
			"bad memref dimension",
		},
		{
			"index arity",
			`func @f(%m: memref<2x2xf32>) {
  %0 = arith.constant 1.0 : f32
  mem.store %0, %m[0] : memref<2x2xf32>
}`,
			"verify parsed module",
		},
		{
			"step count mismatch",
			`func @f(%m: memref<4xf32>) {
  tile.parallel (%i) = (0) to (4) step (1, 1) {
  }
}`,
			"expected 1 steps",
		},
		{
			"non-index affine operand",
			`func @f(%m: memref<4xf32>) {
  %0 = arith.constant 1.0 : f32
  %1 = mem.load %m[%0] : memref<4xf32>
}`,
			"must be index",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.src)
			if err == nil {
				t.Fatal("malformed source accepted")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestParseEmptySource(t *testing.T) {
	m, err := Parse("")
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Funcs()) != 0 {
		t.Errorf("empty source yielded %d functions", len(m.Funcs()))
	}
}

func TestParseNormalizesIdentifiers(t *testing.T) {
	const body = `(%out: memref<1xf32>) {
  %c = arith.constant 1.0 : f32
  mem.store %c, %out[0] : memref<1xf32>
}
`
	composed := "café"   // é as U+00E9
	decomposed := "café" // e + combining acute

	printed := make([]string, 0, 2)
	for _, name := range []string{composed, decomposed} {
		m, err := Parse("func @" + name + body)
		if err != nil {
			t.Fatalf("parse %q spelling: %v", name, err)
		}
		if _, ok := m.Func(composed); !ok {
			t.Fatalf("%q spelling not reachable under its composed name", name)
		}
		printed = append(printed, ir.Print(m))
	}
	if printed[0] != printed[1] {
		t.Errorf("spellings print differently:\n%s\n%s", printed[0], printed[1])
	}
}

func TestParseRejectsInvalidUTF8(t *testing.T) {
	_, err := Parse("func @f\xff(%out: memref<1xf32>) {\n}\n")
	if err == nil {
		t.Fatal("invalid UTF-8 accepted")
	}
	if !strings.Contains(err.Error(), "UTF-8") {
		t.Errorf("error %q does not mention UTF-8", err)
	}
}
