// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package bus is the header service's view of the observatory pub/sub
// transport.
//
// [Transport] is the whole contract: a non-blocking latest-sample read,
// a callback subscription, and an outbound publish. [Bus] implements it
// in memory for the standalone process and for tests. [Replay] drives a
// Bus from a JSONC [Script] on an injected clock, which is how a
// sequence of controller events is reproduced without the facility
// network.
package bus
