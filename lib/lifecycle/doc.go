// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package lifecycle provides the operating-state capability the header
// service runs under.
//
// The session manager never inspects summary states directly. It asks
// an [OperatingState] whether it is active, registers a hook to drop
// its sessions on deactivation, and reports per-image failures through
// a [FaultReporter]. [Controller] implements both for a standalone
// process; a deployment embedded in a larger control system can supply
// its own.
package lifecycle
