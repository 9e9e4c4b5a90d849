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

// Package diag renders best-effort failure dumps. A dump is diagnostic
// output only: it never fails the caller, even when the writer does.
package diag

import (
	"fmt"
	"io"

	"github.com/parloop/parloop/ir"
)

// DumpModule writes a header line followed by the module's textual form.
func DumpModule(w io.Writer, header string, m ir.ModuleOp) {
	fmt.Fprintf(w, "// ----- %s -----\n", header)
	io.WriteString(w, ir.Print(m))
}
