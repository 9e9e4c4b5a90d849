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

package diag

import (
	"bytes"
	"strings"
	"testing"

	"github.com/parloop/parloop/ir"
)

func TestDumpModule(t *testing.T) {
	m := ir.NewModule()
	ir.NewFunc(m, "f", nil)

	var buf bytes.Buffer
	DumpModule(&buf, "pass lower-tile failed: boom", m)

	out := buf.String()
	if !strings.HasPrefix(out, "// ----- pass lower-tile failed: boom -----\n") {
		t.Errorf("missing header: %q", out)
	}
	if !strings.Contains(out, "func @f() {") {
		t.Errorf("missing module body: %q", out)
	}
}
