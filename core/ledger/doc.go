// Package ledger provides the client for the distributed ledger gateway.
//
// The gateway exposes a small JSON API for submitting token transfers and
// querying confirmed ones. This package wraps it behind the Client interface
// so the settlement pipeline can be tested against a mock (core/ledger/mocks).
//
// # Error Model
//
// Submission has three outcomes, not two:
//   - success: a transaction reference is returned
//   - rejection (KindRejected): the ledger refused the transfer
//   - unknown (KindUnavailable): timeout or transport failure; the transfer
//     may have landed anyway
//
// Callers must never treat an unknown outcome as a failure. The
// reconciliation engine recovers transfers that landed without the reference
// ever reaching the record store.
package ledger
