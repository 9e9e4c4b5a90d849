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
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/parloop/parloop/interp"
	"github.com/parloop/parloop/ir"
	"github.com/parloop/parloop/parse"
)

func newRunCommand(opts *rootOptions) *cobra.Command {
	var (
		funcName string
		indexes  []string
	)

	cmd := &cobra.Command{
		Use:   "run <file>",
		Short: "Interpret a module",
		Long: `Parse a module and interpret one of its functions. Memref
parameters start zero-filled and are printed after the run; index
parameters are bound from --index in declaration order.

Example:
  parloop run kernel.pir --func main --index 4 --index 8`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInterp(args[0], funcName, indexes, cmd)
		},
	}

	cmd.Flags().StringVar(&funcName, "func", "main", "function to interpret")
	cmd.Flags().StringArrayVar(&indexes, "index", nil, "value for the next index parameter")

	return cmd
}

func runInterp(path, funcName string, indexes []string, cmd *cobra.Command) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}
	m, err := parse.Parse(string(src))
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	fn, ok := m.Func(funcName)
	if !ok {
		return fmt.Errorf("no function @%s in %s", funcName, path)
	}

	args := make([]any, 0, fn.Body().NumArgs())
	nextIndex := 0
	for i, param := range fn.Body().Args() {
		switch t := param.Type().(type) {
		case ir.MemRef:
			args = append(args, interp.NewBuffer(t))
		case ir.Index:
			if nextIndex >= len(indexes) {
				return fmt.Errorf("parameter %d is an index; pass it with --index", i)
			}
			n, err := strconv.ParseInt(indexes[nextIndex], 10, 64)
			if err != nil {
				return fmt.Errorf("bad --index value %q", indexes[nextIndex])
			}
			args = append(args, n)
			nextIndex++
		default:
			return fmt.Errorf("parameter %d has uninterpretable type %s", i, t)
		}
	}

	if err := interp.Call(fn, args); err != nil {
		return fmt.Errorf("interpret @%s: %w", funcName, err)
	}

	for i, arg := range args {
		if buf, ok := arg.(*interp.Buffer); ok {
			fmt.Fprintf(cmd.OutOrStdout(), "%%arg%d: %s = %s\n", i, fn.Body().Arg(i).Type(), formatBuffer(buf))
		}
	}
	return nil
}

func formatBuffer(b *interp.Buffer) string {
	var parts []string
	if b.F != nil {
		for _, v := range b.F {
			parts = append(parts, strconv.FormatFloat(v, 'g', -1, 64))
		}
	} else {
		for _, v := range b.I {
			parts = append(parts, strconv.FormatInt(v, 10))
		}
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
