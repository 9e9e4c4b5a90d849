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

	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"

	"github.com/parloop/parloop/ir"
	"github.com/parloop/parloop/parse"
)

func newLowerCommand(opts *rootOptions) *cobra.Command {
	var (
		output       string
		pipelinePath string
	)

	cmd := &cobra.Command{
		Use:   "lower <file>",
		Short: "Run the lowering pipeline over a module",
		Long: `Parse a textual module, run the pass pipeline (by default the
tile-to-loops lowering), and print the result.

Example:
  parloop lower kernel.pir
  parloop lower kernel.pir -o lowered.pir --pipeline pipeline.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLower(opts, args[0], output, pipelinePath)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write result to file instead of stdout")
	cmd.Flags().StringVar(&pipelinePath, "pipeline", env.Str("PARLOOP_PIPELINE"), "YAML pipeline config")

	return cmd
}

func runLower(opts *rootOptions, path, output, pipelinePath string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read module: %w", err)
	}
	m, err := parse.Parse(string(src))
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	cfg, err := loadPipeline(pipelinePath)
	if err != nil {
		return err
	}
	pm, err := buildManager(cfg, opts)
	if err != nil {
		return err
	}
	if err := pm.Run(m); err != nil {
		return err
	}

	text := ir.Print(m)
	if output == "" {
		fmt.Print(text)
		return nil
	}
	if err := os.WriteFile(output, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
