package models

import (
	"time"
)

// Status is the lifecycle state of a reward record.
type Status string

const (
	// StatusPending means the reward intent is recorded but not yet sent to the ledger.
	StatusPending Status = "pending"
	// StatusSubmitted means the transfer was broadcast and a confirmation is awaited.
	StatusSubmitted Status = "submitted"
	// StatusCompleted means the transfer is confirmed on the ledger. Terminal.
	StatusCompleted Status = "completed"
	// StatusFailed means the submission was rejected or abandoned. Terminal,
	// but an operator may reopen it to pending.
	StatusFailed Status = "failed"
	// StatusAnomalous means the ledger evidence is ambiguous or mismatched.
	// Terminal; requires operator judgment, never auto-resolved.
	StatusAnomalous Status = "anomalous"
)

// Terminal reports whether the status is final. No record leaves a terminal
// state automatically; only failed may be manually reopened.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusAnomalous:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSubmitted, StatusCompleted, StatusFailed, StatusAnomalous:
		return true
	}
	return false
}

// transitions is the allowed transition table. pending can complete directly
// when the reconciliation lookback adopts an orphaned transfer, and can fail
// directly on an explicit ledger rejection. failed -> pending is the manual
// reopen path, never taken automatically.
var transitions = map[Status][]Status{
	StatusPending:   {StatusSubmitted, StatusCompleted, StatusFailed, StatusAnomalous},
	StatusSubmitted: {StatusCompleted, StatusFailed, StatusAnomalous},
	StatusFailed:    {StatusPending},
}

// CanTransition reports whether from -> to is an allowed transition.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// RewardRecord is the unit of work of the settlement pipeline: one token
// reward owed to a reader for a reading milestone. Records are an append-only
// audit trail; recipient, amount and source reference are never mutated after
// creation, and no record is ever deleted.
type RewardRecord struct {
	// ID is the unique record identifier, assigned at creation.
	ID string `gorm:"primaryKey;size:36" json:"id"`

	// RecipientAddress is the ledger account the reward pays to.
	RecipientAddress string `gorm:"size:128;not null;index" json:"recipient_address"`

	// Amount is the reward quantity in base units of the reward asset.
	Amount int64 `gorm:"not null" json:"amount"`

	// SourceReference identifies the triggering milestone (e.g. a book ID).
	// Together with recipient and amount it forms the identity used by the
	// reconciliation lookback.
	SourceReference string `gorm:"size:128;not null" json:"source_reference"`

	// Status is the current lifecycle state.
	Status Status `gorm:"size:16;not null;index" json:"status"`

	// TransactionRef is the ledger transaction reference. NULL while pending
	// and for failed records; the unique index therefore enforces that no two
	// settled records share a reference.
	TransactionRef *string `gorm:"size:128;uniqueIndex" json:"transaction_ref,omitempty"`

	// Details carries human-readable failure or anomaly evidence.
	Details string `gorm:"size:1024" json:"details,omitempty"`

	// Attempts counts submission attempts, used for backoff scheduling.
	Attempts int `gorm:"not null;default:0" json:"attempts"`

	// NextAttemptAt is the earliest time the settlement worker may submit
	// (or resubmit) this record.
	NextAttemptAt time.Time `gorm:"index" json:"next_attempt_at"`

	// SubmittedAt is when the transfer was broadcast; the reconciliation
	// grace period is measured from here.
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`

	// CreatedAt is when the record was created.
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// ProcessedAt is set only on a terminal transition.
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// TableName sets the table name for GORM.
func (RewardRecord) TableName() string {
	return "reward_records"
}

// ExpectedColumns lists the columns the settlement pipeline writes. The
// integrity command verifies them against the live schema.
func ExpectedColumns() []string {
	return []string{
		"id",
		"recipient_address",
		"amount",
		"source_reference",
		"status",
		"transaction_ref",
		"details",
		"attempts",
		"next_attempt_at",
		"submitted_at",
		"created_at",
		"processed_at",
	}
}
