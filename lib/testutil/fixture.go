// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
)

var sequence atomic.Uint64

// WriteFile writes data to name inside a fresh t.TempDir() and returns
// the absolute path. Use it for configuration files, replay scripts,
// and header fixtures.
//
//	path := testutil.WriteFile(t, "headerservice.yaml", []byte(config))
func WriteFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// ImageName returns an image name under prefix with the next sequence
// number of the test binary, e.g. "AT_O_20240101_000007". The prefix is
// "{telescope}_{controller}_{dayobs}".
func ImageName(prefix string) string {
	return fmt.Sprintf("%s_%06d", prefix, sequence.Add(1))
}
