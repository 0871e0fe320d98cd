// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process holds the exit path shared by header-service and
// headerctl. Both keep main to one line:
//
//	func main() { process.Exit(run()) }
package process
