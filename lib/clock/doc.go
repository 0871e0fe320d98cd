// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides the injectable time source used by the header
// service.
//
// The session manager arms one cancellable timer per in-flight image and
// the announce handler waits between upload attempts. Both take a Clock
// instead of calling time.Now, time.After, or time.AfterFunc directly so
// tests can drive timeouts deterministically.
//
// In production:
//
//	manager := session.New(session.Options{Clock: clock.Real(), ...})
//
// In tests:
//
//	c := clock.Fake(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
//	manager := session.New(session.Options{Clock: c, ...})
//	manager.HandleStart("AT_O_20240101_000001")
//	c.Advance(20 * time.Second) // fires the image timeout synchronously
//
// # Fake synchronization
//
// AfterFunc callbacks registered on a FakeClock run synchronously inside
// Advance, in deadline order, without the clock's mutex held. Goroutines
// blocked in After register a pending waiter first; WaitForTimers blocks
// until that registration has happened so a test never advances past a
// deadline nobody is waiting on yet.
package clock
