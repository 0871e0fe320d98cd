// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	originalCommit, originalDirty := GitCommit, GitDirty
	t.Cleanup(func() { GitCommit, GitDirty = originalCommit, originalDirty })

	GitCommit = "abc1234"
	GitDirty = "true"
	if info := Info(); !strings.Contains(info, "abc1234-dirty") || !strings.HasPrefix(info, Version) {
		t.Errorf("Info() = %q", info)
	}
	if full := Full(); !strings.Contains(full, "Go: go") {
		t.Errorf("Full() = %q", full)
	}
}

func TestInfoWithoutLinkerFlags(t *testing.T) {
	originalCommit, originalDirty := GitCommit, GitDirty
	t.Cleanup(func() { GitCommit, GitDirty = originalCommit, originalDirty })

	GitCommit, GitDirty = "unknown", "false"
	commit, _ := revision()
	if commit == "" {
		t.Error("revision returned an empty commit")
	}
	if !strings.HasPrefix(Info(), Version+" (") {
		t.Errorf("Info() = %q", Info())
	}
}
