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

	"gopkg.in/yaml.v3"

	"github.com/parloop/parloop/lower"
	"github.com/parloop/parloop/rewrite"
)

// pipelineConfig selects which passes run and whether the verifier runs
// after each one.
type pipelineConfig struct {
	Passes     []string `yaml:"passes"`
	VerifyEach bool     `yaml:"verify_each"`
}

func defaultPipeline() pipelineConfig {
	return pipelineConfig{Passes: []string{lower.PassName}, VerifyEach: true}
}

// loadPipeline reads a YAML pipeline file, or returns the default pipeline
// when path is empty.
func loadPipeline(path string) (pipelineConfig, error) {
	cfg := defaultPipeline()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read pipeline: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse pipeline %s: %w", path, err)
	}
	if len(cfg.Passes) == 0 {
		cfg.Passes = defaultPipeline().Passes
	}
	return cfg, nil
}

// passByName maps pipeline names to passes.
func passByName(name string) (rewrite.Pass, error) {
	switch name {
	case lower.PassName:
		return lower.NewPass(), nil
	}
	return nil, fmt.Errorf("unknown pass %q", name)
}

// buildManager assembles a pass manager from a pipeline config.
func buildManager(cfg pipelineConfig, opts *rootOptions) (*rewrite.Manager, error) {
	pm := rewrite.NewManager(opts.logger()).SetVerifyEach(cfg.VerifyEach)
	for _, name := range cfg.Passes {
		p, err := passByName(name)
		if err != nil {
			return nil, err
		}
		pm.Add(p)
	}
	return pm, nil
}
