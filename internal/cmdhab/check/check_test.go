// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package check

import "testing"

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		level   string
		wantErr bool
	}{
		{"strict", false},
		{"allow-warnings", false},
		{"allow-all", false},
		{"lenient", true},
		{"", true},
	}
	for _, c := range cases {
		cfg := Config{CheckLevel: c.level}
		err := cfg.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("CheckLevel=%q: err=%v, wantErr=%v", c.level, err, c.wantErr)
		}
	}
}
