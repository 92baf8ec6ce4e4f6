// Package fault defines the error taxonomy shared by every querypipe wrapper.
//
// Three kinds of fault exist:
//
//   - Configuration: a required setting (usually the secret) is missing or
//     invalid. Fatal, never retried, reported before any connection attempt.
//   - Connection: acquiring a database handle failed. Retried only when a
//     retry stage sits outside the resource scope.
//   - Operation: the wrapped business operation failed. Triggers rollback
//     in a transaction boundary and is retried by an enclosing retry stage.
//
// Wrappers never replace a fault with their own: cleanup errors (release,
// rollback) are logged and the original fault is what the caller sees.
package fault
