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
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/parloop/parloop/internal/diag"
	"github.com/parloop/parloop/ir"
)

// Pass is one stateless module-at-a-time transformation.
type Pass interface {
	// Name is the pass's pipeline name, e.g. "lower-parallel".
	Name() string

	// Run transforms the module in place. A failed pass leaves no partial
	// success to report; the module contents are undefined beyond "dumpable".
	Run(m ir.ModuleOp) error
}

// Manager runs an ordered pass list over one module at a time. On failure
// it dumps the offending module to DumpWriter for diagnosis and stops.
type Manager struct {
	log        *slog.Logger
	passes     []Pass
	verifyEach bool

	// DumpWriter receives the best-effort module dump when a pass or a
	// verification step fails. Defaults to stderr.
	DumpWriter io.Writer
}

// NewManager returns a manager logging through log, or slog.Default when
// log is nil.
func NewManager(log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{log: log, DumpWriter: os.Stderr}
}

// Add appends passes to the pipeline.
func (pm *Manager) Add(passes ...Pass) *Manager {
	pm.passes = append(pm.passes, passes...)
	return pm
}

// SetVerifyEach enables structural verification after every pass.
func (pm *Manager) SetVerifyEach(v bool) *Manager {
	pm.verifyEach = v
	return pm
}

// Run executes the pipeline. The first failing pass aborts the run.
func (pm *Manager) Run(m ir.ModuleOp) error {
	for _, p := range pm.passes {
		pm.log.Debug("running pass", "pass", p.Name())
		if err := p.Run(m); err != nil {
			diag.DumpModule(pm.DumpWriter, fmt.Sprintf("pass %s failed: %v", p.Name(), err), m)
			return fmt.Errorf("pass %s: %w", p.Name(), err)
		}
		if pm.verifyEach {
			if err := ir.VerifyModule(m); err != nil {
				diag.DumpModule(pm.DumpWriter, fmt.Sprintf("verifier failed after %s: %v", p.Name(), err), m)
				return fmt.Errorf("verify after %s: %w", p.Name(), err)
			}
		}
		pm.log.Debug("pass complete", "pass", p.Name())
	}
	return nil
}
