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

package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/parloop/parloop/interp"
	"github.com/parloop/parloop/ir"
	"github.com/parloop/parloop/parse"
)

const (
	promptMain  = "==> "
	promptCont  = "... "
	historyFile = ".parloop_history"
)

const replHelp = `REPL commands:
  :lower            Lower the current module and keep the result
  :run [n ...]      Interpret @main; n values bind index parameters in order
  :print            Print the current module
  :quit             Exit the REPL
Type a module (func @name(...) { ... }) to make it current.`

func newReplCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Interactive lowering session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(opts)
		},
	}
}

func runREPL(opts *rootOptions) error {
	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	histPath := filepath.Join(os.TempDir(), historyFile)
	if f, err := os.Open(histPath); err == nil {
		ln.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			ln.WriteHistory(f)
			f.Close()
		}
	}()

	fmt.Println("parloop REPL. Ctrl+C cancels input, Ctrl+D exits. Type :help for commands.")

	var moduleText string
	for {
		text, quit, err := readModuleOrCommand(ln)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue
			}
			return err
		}
		if quit {
			return nil
		}
		switch {
		case text == "":
			continue
		case text == ":help":
			fmt.Println(replHelp)
		case text == ":print":
			fmt.Print(moduleText)
		case text == ":lower":
			lowered, err := lowerText(opts, moduleText)
			if err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				continue
			}
			moduleText = lowered
			fmt.Print(moduleText)
		case text == ":run" || strings.HasPrefix(text, ":run "):
			if err := runText(moduleText, strings.Fields(text)[1:]); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
			}
		case strings.HasPrefix(text, ":"):
			fmt.Fprintf(os.Stderr, "unknown command %s (try :help)\n", text)
		default:
			// A complete module: parse to validate, then make it current.
			if _, err := parse.Parse(text); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)
				continue
			}
			moduleText = text
		}
	}
}

// readModuleOrCommand accumulates input lines until braces balance, so a
// whole func can be typed across lines. Commands are single lines starting
// with ':'. quit is reported on EOF or :quit.
func readModuleOrCommand(ln *liner.State) (text string, quit bool, err error) {
	var sb strings.Builder
	depth := 0
	prompt := promptMain
	for {
		line, err := ln.Prompt(prompt)
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				return "", false, err
			}
			return "", true, nil // EOF
		}
		trimmed := strings.TrimSpace(line)
		if sb.Len() == 0 {
			if trimmed == "" {
				return "", false, nil
			}
			if trimmed == ":quit" {
				return "", true, nil
			}
			if strings.HasPrefix(trimmed, ":") {
				ln.AppendHistory(trimmed)
				return trimmed, false, nil
			}
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
		depth += strings.Count(line, "{") - strings.Count(line, "}")
		if depth <= 0 {
			ln.AppendHistory(strings.TrimSpace(line))
			return sb.String(), false, nil
		}
		prompt = promptCont
	}
}

// runText interprets @main of the current module. Memref parameters start
// zero-filled and are printed after the run; index parameters are bound
// from the command's arguments in order.
func runText(text string, indexArgs []string) error {
	if text == "" {
		return fmt.Errorf("no module entered yet")
	}
	m, err := parse.Parse(text)
	if err != nil {
		return err
	}
	fn, ok := m.Func("main")
	if !ok {
		return fmt.Errorf("no function @main")
	}

	args := make([]any, 0, fn.Body().NumArgs())
	next := 0
	for i, param := range fn.Body().Args() {
		switch t := param.Type().(type) {
		case ir.MemRef:
			args = append(args, interp.NewBuffer(t))
		case ir.Index:
			if next >= len(indexArgs) {
				return fmt.Errorf("parameter %d is an index; pass it as :run argument", i)
			}
			n, err := strconv.ParseInt(indexArgs[next], 10, 64)
			if err != nil {
				return fmt.Errorf("bad index value %q", indexArgs[next])
			}
			args = append(args, n)
			next++
		default:
			return fmt.Errorf("parameter %d has uninterpretable type %s", i, t)
		}
	}

	if err := interp.Call(fn, args); err != nil {
		return err
	}
	for i, arg := range args {
		if buf, ok := arg.(*interp.Buffer); ok {
			fmt.Printf("%%arg%d: %s = %s\n", i, fn.Body().Arg(i).Type(), formatBuffer(buf))
		}
	}
	return nil
}

func lowerText(opts *rootOptions, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("no module entered yet")
	}
	m, err := parse.Parse(text)
	if err != nil {
		return "", err
	}
	pm, err := buildManager(defaultPipeline(), opts)
	if err != nil {
		return "", err
	}
	if err := pm.Run(m); err != nil {
		return "", err
	}
	return ir.Print(m), nil
}
