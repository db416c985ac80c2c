// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package changes

import "testing"

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		format  string
		wantErr bool
	}{
		{"text", false},
		{"json", false},
		{"yaml", true},
	}
	for _, c := range cases {
		cfg := Config{Format: c.format}
		err := cfg.Validate()
		if (err != nil) != c.wantErr {
			t.Errorf("Format=%q: err=%v, wantErr=%v", c.format, err, c.wantErr)
		}
	}
}
