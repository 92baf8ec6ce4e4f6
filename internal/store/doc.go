// Package store owns database handles and the boundaries around them.
//
// # Scopes
//
// A Scope turns a validated config.Config into Handles. Each Acquire opens
// one connection through the Scope's Connector; Within pairs the acquisition
// with a deferred Release so the handle is closed exactly once whether the
// callback returns, fails or panics.
//
// # Transactions
//
// Handle.Begin starts a transaction that subsequent Handle.Query and
// Handle.Exec calls run inside. InTx commits when the callback succeeds and
// rolls back otherwise, returning the callback's error unchanged. A failed
// rollback is logged, never returned in place of that error.
//
// # Database Configuration
//
// SQLite connections (both the cgo and the pure Go driver) get:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
