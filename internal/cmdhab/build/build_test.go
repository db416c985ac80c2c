// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package build

import "testing"

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"dry run needs nothing", Config{CheckLevel: "strict", DryRun: true}, false},
		{"missing builder", Config{CheckLevel: "strict"}, true},
		{"builder set", Config{CheckLevel: "strict", BuilderBinary: "hab-build"}, false},
		{"docker without image", Config{CheckLevel: "strict", Docker: true}, true},
		{"docker with image", Config{CheckLevel: "strict", Docker: true, DockerImage: "hab/builder"}, false},
		{"bad check level", Config{CheckLevel: "yolo", DryRun: true}, true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.cfg.Validate()
			if (err != nil) != c.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, c.wantErr)
			}
		})
	}
}
