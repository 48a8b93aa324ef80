package models

import "time"

// MappingEntry binds a published channel message to its anonymous author, stored
// in the 'mappings' table. ThreadRootID stays NULL until the linking step matches
// the auto-mirrored discussion-thread root by content fingerprint; once set it is
// never overwritten (first writer wins).
type MappingEntry struct {
	ID           int64     `db:"id"`
	MessageID    int64     `db:"message_id"`
	AuthorID     int64     `db:"author_id"`
	Fingerprint  string    `db:"fingerprint"`
	RawText      string    `db:"raw_text"`
	ThreadRootID *int64    `db:"thread_root_id"`
	CreatedAt    time.Time `db:"created_at"`
}
