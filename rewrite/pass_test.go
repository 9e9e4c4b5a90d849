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
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/parloop/parloop/affine"
	"github.com/parloop/parloop/ir"
)

type funcPass struct {
	name string
	run  func(ir.ModuleOp) error
}

func (p funcPass) Name() string            { return p.name }
func (p funcPass) Run(m ir.ModuleOp) error { return p.run(m) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestManagerRunsPassesInOrder(t *testing.T) {
	m := ir.NewModule()
	ir.NewFunc(m, "f", nil)

	var order []string
	pm := NewManager(quietLogger()).Add(
		funcPass{name: "a", run: func(ir.ModuleOp) error { order = append(order, "a"); return nil }},
		funcPass{name: "b", run: func(ir.ModuleOp) error { order = append(order, "b"); return nil }},
	)

	require.NoError(t, pm.Run(m))
	require.Equal(t, []string{"a", "b"}, order)
}

func TestManagerStopsAndDumpsOnFailure(t *testing.T) {
	m := ir.NewModule()
	ir.NewFunc(m, "f", nil)

	boom := errors.New("boom")
	var dump bytes.Buffer
	reached := false
	pm := NewManager(quietLogger()).Add(
		funcPass{name: "bad", run: func(ir.ModuleOp) error { return boom }},
		funcPass{name: "after", run: func(ir.ModuleOp) error { reached = true; return nil }},
	)
	pm.DumpWriter = &dump

	err := pm.Run(m)
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "pass bad")
	require.False(t, reached, "pass after a failure still ran")
	require.True(t, strings.Contains(dump.String(), "pass bad failed"), "dump header missing: %q", dump.String())
	require.True(t, strings.Contains(dump.String(), "func @f"), "dump does not include the module")
}

func TestManagerVerifiesBetweenPasses(t *testing.T) {
	m := ir.NewModule()
	ir.NewFunc(m, "f", nil)

	var dump bytes.Buffer
	pm := NewManager(quietLogger()).SetVerifyEach(true).Add(
		funcPass{name: "corrupt", run: func(m ir.ModuleOp) error {
			// Step 0 is structurally invalid.
			b := ir.NewBuilder()
			fn, _ := m.Func("f")
			b.SetInsertionPointBefore(fn.Body().Terminator())
			b.Parallel(affine.ConstantMap(0), affine.ConstantMap(4), nil, []int64{0})
			return nil
		}},
	)
	pm.DumpWriter = &dump

	err := pm.Run(m)
	require.ErrorContains(t, err, "verify after corrupt")
	require.NotEmpty(t, dump.String())
}
