// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which build of header-service or headerctl
// is running.
//
// Release builds stamp the variables with the linker:
//
//	go build -ldflags "-X github.com/bureau-foundation/headerservice/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/header-service
//
// A binary built without -ldflags reports the VCS revision the go
// command stamped into it, when there is one. [Info] is the --version
// output; [Full] adds the Go toolchain and platform and backs
// "headerctl version".
package version
