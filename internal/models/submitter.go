package models

import "time"

// SubmitterRecord is the durable per-submitter moderation record stored in the
// 'violators' table. Created on first violation, never deleted. Ban is monotonic:
// once warning_count reaches the ban threshold the flag is set and the ledger
// never clears it.
type SubmitterRecord struct {
	SubmitterID  int64  `db:"submitter_id"`
	DisplayName  string `db:"display_name"`
	WarningCount uint   `db:"warning_count"`
	Banned       bool   `db:"banned"`
	Violations   []Violation
}

// Violation is one recorded banned-term hit, stored in the 'violations' table.
// RawMessage keeps the offending text verbatim; it is re-displayed to moderators
// and must round-trip losslessly.
type Violation struct {
	ID          int64     `db:"id"`
	SubmitterID int64     `db:"submitter_id"`
	Term        string    `db:"term"`
	RawMessage  string    `db:"raw_message"`
	CreatedAt   time.Time `db:"created_at"`
}
