// Package pipeline composes database operations with cross-cutting stages.
//
// An Operation is the innermost unit of work. A Stage wraps an Operation and
// returns another Operation; Chain applies stages so that the first stage
// listed is the outermost:
//
//	op := pipeline.Chain(pipeline.Exec,
//		pipeline.Scope[store.ExecResult](scope), // acquire + release
//		pipeline.Transaction[store.ExecResult](), // commit / rollback
//		retry,                                   // bounded retry
//	)
//
// ReadPath and WritePath build the two standard compositions.
//
// # Stage placement
//
// Stages that need a connection (Transaction, and operations such as
// Records and Exec) read it from Call.Handle, which only a Scope stage
// sets. Placing Retry outside Scope retries acquisition failures; placing
// it inside Transaction retries within one transaction; RetryTx runs every
// attempt as its own transaction.
package pipeline
