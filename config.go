// ©Hayabusa Cloud Co., Ltd. 2025. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package corevm

import (
	"encoding/json"
	"fmt"
	"os"

	yaml "github.com/goccy/go-yaml"
	"github.com/xeipuuv/gojsonschema"
)

// FileConfig is the on-disk shape of a Startup configuration, for
// embedders that prefer a config file over composing Options in code
// (e.g. the corevmctl CLI). Fields mirror the Option constructors.
type FileConfig struct {
	PoolScale    int    `yaml:"pool_scale"`
	HeapQuota    uint64 `yaml:"heap_quota"`
	Checked      bool   `yaml:"checked"`
	StackInitial int    `yaml:"stack_initial_cells"`
	StackMax     int    `yaml:"stack_max_cells"`
	StackPoison  bool   `yaml:"stack_poison"`
	Ballast      uint64 `yaml:"ballast"`
}

// configSchema constrains FileConfig's shape before it is unmarshaled
// into options, catching typos in hand-written YAML (a negative pool
// scale, a misspelled key with a similar one silently defaulting)
// before Startup ever sees them.
const configSchema = `{
  "type": "object",
  "properties": {
    "pool_scale": {"type": "integer", "minimum": 1},
    "heap_quota": {"type": "integer", "minimum": 0},
    "checked": {"type": "boolean"},
    "stack_initial_cells": {"type": "integer", "minimum": 1},
    "stack_max_cells": {"type": "integer", "minimum": 1},
    "stack_poison": {"type": "boolean"},
    "ballast": {"type": "integer", "minimum": 0}
  },
  "additionalProperties": false
}`

// LoadFileConfig reads and validates a YAML config file, returning the
// decoded FileConfig.
func LoadFileConfig(path string) (*FileConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("corevm: reading config: %w", err)
	}

	// Round-trip through encoding/json so gojsonschema (which only
	// understands plain JSON-shaped documents) can validate a YAML
	// document's structure.
	var generic map[string]any
	if err := yaml.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("corevm: parsing config: %w", err)
	}
	asJSON, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("corevm: re-encoding config: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(configSchema),
		gojsonschema.NewBytesLoader(asJSON),
	)
	if err != nil {
		return nil, fmt.Errorf("corevm: validating config: %w", err)
	}
	if !result.Valid() {
		msg := ""
		for i, e := range result.Errors() {
			if i > 0 {
				msg += "; "
			}
			msg += e.String()
		}
		return nil, fmt.Errorf("corevm: invalid config: %s", msg)
	}

	cfg := &FileConfig{PoolScale: 1, StackInitial: defaultStackInitialCells, StackMax: defaultStackMaxCells, Ballast: defaultBallast}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("corevm: decoding config: %w", err)
	}
	return cfg, nil
}

// Options converts a FileConfig into the Option list Startup expects.
func (fc *FileConfig) Options() []Option {
	return []Option{
		WithPoolScale(fc.PoolScale),
		WithHeapQuota(fc.HeapQuota),
		WithChecked(fc.Checked),
		WithDataStack(fc.StackInitial, fc.StackMax, fc.StackPoison),
		WithBallast(fc.Ballast),
	}
}
