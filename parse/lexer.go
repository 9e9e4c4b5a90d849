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

// Package parse reads the textual IR form produced by ir.Print.
package parse

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

type tokKind uint8

const (
	tokEOF tokKind = iota
	tokIdent
	tokAtIdent  // @name
	tokValueID  // %name
	tokNumber   // integer literal, possibly negative
	tokFloat    // literal containing . or an exponent
	tokLParen
	tokRParen
	tokLBrace
	tokRBrace
	tokLBracket
	tokRBracket
	tokLess
	tokGreater
	tokComma
	tokColon
	tokEqual
	tokPlus
	tokStar
)

type token struct {
	kind tokKind
	text string
	line int
	col  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of input"
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

type lexer struct {
	src  string
	pos  int
	line int
	col  int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) errorf(line, col int, format string, args ...any) error {
	return fmt.Errorf("%d:%d: %s", line, col, fmt.Sprintf(format, args...))
}

func (l *lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

// next scans one token. Line comments start with "//".
func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		c := l.peek()
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			l.advance()
		case c == '/' && strings.HasPrefix(l.src[l.pos:], "//"):
			for l.pos < len(l.src) && l.peek() != '\n' {
				l.advance()
			}
		default:
			return l.scan()
		}
	}
	return token{kind: tokEOF, line: l.line, col: l.col}, nil
}

func (l *lexer) scan() (token, error) {
	line, col := l.line, l.col
	c := l.peek()

	switch c {
	case '(':
		l.advance()
		return token{tokLParen, "(", line, col}, nil
	case ')':
		l.advance()
		return token{tokRParen, ")", line, col}, nil
	case '{':
		l.advance()
		return token{tokLBrace, "{", line, col}, nil
	case '}':
		l.advance()
		return token{tokRBrace, "}", line, col}, nil
	case '[':
		l.advance()
		return token{tokLBracket, "[", line, col}, nil
	case ']':
		l.advance()
		return token{tokRBracket, "]", line, col}, nil
	case '<':
		l.advance()
		return token{tokLess, "<", line, col}, nil
	case '>':
		l.advance()
		return token{tokGreater, ">", line, col}, nil
	case ',':
		l.advance()
		return token{tokComma, ",", line, col}, nil
	case ':':
		l.advance()
		return token{tokColon, ":", line, col}, nil
	case '=':
		l.advance()
		return token{tokEqual, "=", line, col}, nil
	case '+':
		l.advance()
		return token{tokPlus, "+", line, col}, nil
	case '*':
		l.advance()
		return token{tokStar, "*", line, col}, nil
	case '@':
		l.advance()
		name, err := l.scanIdentText(line, col)
		if err != nil {
			return token{}, err
		}
		return token{tokAtIdent, name, line, col}, nil
	case '%':
		l.advance()
		name, err := l.scanIdentText(line, col)
		if err != nil {
			return token{}, err
		}
		return token{tokValueID, name, line, col}, nil
	case '-':
		l.advance()
		if !isDigit(l.peek()) {
			return token{}, l.errorf(line, col, "expected digit after '-'")
		}
		return l.scanNumber(line, col, "-")
	}

	if isDigit(c) {
		return l.scanNumber(line, col, "")
	}
	r, size := utf8.DecodeRuneInString(l.src[l.pos:])
	if r == utf8.RuneError && size == 1 {
		return token{}, l.errorf(line, col, "invalid UTF-8 byte 0x%02x", c)
	}
	if isIdentStart(r) {
		name, err := l.scanIdentText(line, col)
		if err != nil {
			return token{}, err
		}
		return token{tokIdent, name, line, col}, nil
	}
	return token{}, l.errorf(line, col, "unexpected character %q", r)
}

// scanIdentText reads an identifier. Dots are allowed inside so operation
// names like "tile.parallel" lex as one token. The result is normalized to
// NFC, so composed and decomposed spellings of the same name are identical.
func (l *lexer) scanIdentText(line, col int) (string, error) {
	start := l.pos
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if r == utf8.RuneError && size == 1 {
			return "", l.errorf(l.line, l.col, "invalid UTF-8 byte 0x%02x", l.src[l.pos])
		}
		if !isIdentStart(r) && !unicode.IsDigit(r) && !unicode.IsMark(r) && r != '.' {
			break
		}
		// Identifier runes never include '\n'; one column per rune.
		l.pos += size
		l.col++
	}
	if l.pos == start {
		return "", l.errorf(line, col, "expected identifier")
	}
	return norm.NFC.String(l.src[start:l.pos]), nil
}

func (l *lexer) scanNumber(line, col int, prefix string) (token, error) {
	start := l.pos
	kind := tokNumber
	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.advance()
	}
	if l.peek() == '.' {
		kind = tokFloat
		l.advance()
		for l.pos < len(l.src) && isDigit(l.peek()) {
			l.advance()
		}
	}
	if c := l.peek(); c == 'e' || c == 'E' {
		kind = tokFloat
		l.advance()
		if c := l.peek(); c == '+' || c == '-' {
			l.advance()
		}
		if !isDigit(l.peek()) {
			return token{}, l.errorf(line, col, "malformed exponent")
		}
		for l.pos < len(l.src) && isDigit(l.peek()) {
			l.advance()
		}
	}
	return token{kind, prefix + l.src[start:l.pos], line, col}, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}
