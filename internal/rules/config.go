// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package rules

import (
	"bytes"
	"os"

	"github.com/habitat-sh/hab-auto-build/internal/herr"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

// PlanConfigFileName is the per-plan override file read from each plan
// context.
const PlanConfigFileName = ".hab-plan-config.toml"

// RuleOverride is one [rules.<name>] entry in .hab-plan-config.toml.
// Level is required; SourceShasum and IgnoredPackages are optional.
type RuleOverride struct {
	Level           string   `toml:"level"`
	SourceShasum    string   `toml:"source-shasum"`
	IgnoredPackages []string `toml:"ignored_packages"`
}

// PlanConfig is the parsed .hab-plan-config.toml shape.
type PlanConfig struct {
	Rules map[string]RuleOverride `toml:"rules"`
}

// LoadPlanConfig reads a .hab-plan-config.toml at path. Unknown keys are
// rejected as RuleConfigInvalid rather than silently ignored. A missing file
// is not an error: it returns (nil, nil).
func LoadPlanConfig(path string) (*PlanConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading %s", path)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var cfg PlanConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, &herr.RuleConfigInvalid{Path: path, Err: err}
	}
	for name, ov := range cfg.Rules {
		switch ov.Level {
		case "off", "warning", "error", "":
		default:
			return nil, &herr.RuleConfigInvalid{Path: path, Err: errors.Errorf("rule %q: invalid level %q", name, ov.Level)}
		}
	}
	return &cfg, nil
}
