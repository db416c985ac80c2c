// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

// Package habconfig loads hab-auto-build.json. The wire format is plain
// JSON, so loading is stdlib encoding/json; TOML (internal/rules) is
// reserved for the richer per-plan override format.
package habconfig

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/habitat-sh/hab-auto-build/internal/herr"
	"github.com/pkg/errors"
)

// RepoConfig describes one source repository to scan. ExtractShell/ExtractPwsh
// name the repo's own metadata-extraction helpers, relative to
// Source; when unset they default to the conventional `hab-extract.sh` /
// `hab-extract.ps1` at the repo root, so a repo that follows the convention
// needs no extra configuration at all.
type RepoConfig struct {
	ID              string   `json:"id"`
	Source          string   `json:"source"`
	NativePackages  []string `json:"native_packages,omitempty"`
	IgnoredPackages []string `json:"ignored_packages,omitempty"`
	ExtractShell    string   `json:"extract_shell,omitempty"`
	ExtractPwsh     string   `json:"extract_pwsh,omitempty"`
}

// DefaultExtractShell and DefaultExtractPwsh are the conventional
// repo-relative helper script paths used when a RepoConfig leaves its own
// unset.
const (
	DefaultExtractShell = "hab-extract.sh"
	DefaultExtractPwsh  = "hab-extract.ps1"
)

// ShellHelperPath returns the absolute path to this repo's shell extraction
// helper, honoring an explicit override.
func (r RepoConfig) ShellHelperPath() string {
	if r.ExtractShell != "" {
		return filepath.Join(r.Source, r.ExtractShell)
	}
	return filepath.Join(r.Source, DefaultExtractShell)
}

// PwshHelperPath returns the absolute path to this repo's PowerShell
// extraction helper, honoring an explicit override.
func (r RepoConfig) PwshHelperPath() string {
	if r.ExtractPwsh != "" {
		return filepath.Join(r.Source, r.ExtractPwsh)
	}
	return filepath.Join(r.Source, DefaultExtractPwsh)
}

// Config is the top-level hab-auto-build.json shape.
type Config struct {
	Repos []RepoConfig `json:"repos"`

	// dir is the directory the config file was loaded from, used to resolve
	// relative repo sources.
	dir string
}

// Load reads and validates a hab-auto-build.json file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &herr.ConfigParse{Path: path, Err: err}
	}
	cfg.dir = filepath.Dir(path)
	if err := cfg.resolveAndValidate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) resolveAndValidate() error {
	seen := make(map[string]bool, len(c.Repos))
	for i, r := range c.Repos {
		if r.ID == "" {
			return &herr.ConfigParse{Path: c.dir, Err: errors.New("repo missing id")}
		}
		if seen[r.ID] {
			return &herr.DuplicateRepoId{Id: r.ID}
		}
		seen[r.ID] = true
		if r.Source == "" {
			return &herr.MissingRepoSource{Id: r.ID, Source: r.Source}
		}
		source := r.Source
		if !filepath.IsAbs(source) {
			source = filepath.Join(c.dir, source)
		}
		info, err := os.Stat(source)
		if err != nil || !info.IsDir() {
			return &herr.MissingRepoSource{Id: r.ID, Source: r.Source}
		}
		c.Repos[i].Source = source
	}
	return nil
}
