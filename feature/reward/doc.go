// Package reward implements the reward settlement pipeline.
//
// A reward record is created pending when a reader hits a milestone. The
// settlement worker (settle) broadcasts the transfer to the ledger; the
// reconciliation engine (reconcile) cross-references the record store with
// ledger-confirmed transfers and repairs divergence; the repair tool (repair)
// is the operator's targeted entry point into the same guarded transitions.
//
// The record store is the single source of truth. Every mutation is a
// conditional update guarded on the current status, so the worker, the
// engine and an operator can act concurrently without double-applying a
// transition.
//
// Subpackages:
//   - models:    the RewardRecord data model and state machine
//   - store:     the record store with guarded conditional updates
//   - reconcile: the reconciliation engine
//   - settle:    the settlement worker
//   - repair:    the manual repair tool
package reward
