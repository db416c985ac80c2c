// Copyright 2026 The HAB Authors
// SPDX-License-Identifier: Apache-2.0

package add

import "testing"

func TestConfigValidate(t *testing.T) {
	if err := (Config{}).Validate(); err == nil {
		t.Fatal("expected error for empty plan list")
	}
	if err := (Config{Plans: []string{"core/zlib"}}).Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
