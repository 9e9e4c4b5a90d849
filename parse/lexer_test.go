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

import "testing"

func lexAll(t *testing.T, src string) []token {
	t.Helper()
	lex := newLexer(src)
	var toks []token
	for {
		tok, err := lex.next()
		if err != nil {
			t.Fatalf("lex: %v", err)
		}
		if tok.kind == tokEOF {
			return toks
		}
		toks = append(toks, tok)
	}
}

func TestLexTokens(t *testing.T) {
	toks := lexAll(t, "loop.for %iv = -2 to 4 step 1 { } // trailing comment")
	want := []struct {
		kind tokKind
		text string
	}{
		{tokIdent, "loop.for"},
		{tokValueID, "iv"},
		{tokEqual, "="},
		{tokNumber, "-2"},
		{tokIdent, "to"},
		{tokNumber, "4"},
		{tokIdent, "step"},
		{tokNumber, "1"},
		{tokLBrace, "{"},
		{tokRBrace, "}"},
	}
	if len(toks) != len(want) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(want))
	}
	for i, w := range want {
		if toks[i].kind != w.kind || toks[i].text != w.text {
			t.Errorf("token %d = (%d, %q), want (%d, %q)", i, toks[i].kind, toks[i].text, w.kind, w.text)
		}
	}
}

func TestLexFloats(t *testing.T) {
	tests := []struct {
		src  string
		kind tokKind
	}{
		{"3", tokNumber},
		{"-7", tokNumber},
		{"2.5", tokFloat},
		{"-1.5", tokFloat},
		{"1e+21", tokFloat},
		{"2E-4", tokFloat},
	}
	for _, tt := range tests {
		toks := lexAll(t, tt.src)
		if len(toks) != 1 || toks[0].kind != tt.kind || toks[0].text != tt.src {
			t.Errorf("lex(%q) = %v", tt.src, toks)
		}
	}
}

func TestLexComments(t *testing.T) {
	toks := lexAll(t, "// a full-line comment\nfunc")
	if len(toks) != 1 || toks[0].text != "func" {
		t.Errorf("comment not skipped: %v", toks)
	}
	if toks[0].line != 2 {
		t.Errorf("line = %d, want 2", toks[0].line)
	}
}

func TestLexNormalizesIdentifiers(t *testing.T) {
	composed := lexAll(t, "%café")       // é as U+00E9
	decomposed := lexAll(t, "%café")    // e + combining acute
	if len(composed) != 1 || len(decomposed) != 1 {
		t.Fatalf("token counts: %d, %d", len(composed), len(decomposed))
	}
	if composed[0].text != "café" {
		t.Errorf("composed spelling lexed as %q", composed[0].text)
	}
	if decomposed[0].text != composed[0].text {
		t.Errorf("decomposed spelling lexed as %q, want %q", decomposed[0].text, composed[0].text)
	}
}
