package repository

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"menfess/internal/models"
)

// MappingRepository persists the published-message -> anonymous-author map.
type MappingRepository interface {
	Upsert(entry *models.MappingEntry) error
	GetByMessageID(messageID int64) (*models.MappingEntry, error)
	FirstUnlinkedByFingerprint(fingerprint string) (*models.MappingEntry, error)
	SetThreadRoot(messageID, threadRootID int64) error
	GetByThreadRoot(threadRootID int64) (*models.MappingEntry, error)
}

type mappingRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewMappingRepository(db *sqlx.DB, logger *zap.Logger) MappingRepository {
	return &mappingRepository{db: db, logger: logger}
}

// Upsert stores the entry keyed by its published message id. On a republish of
// the same id the author, fingerprint and raw text are refreshed but an already
// linked thread root is preserved.
func (r *mappingRepository) Upsert(entry *models.MappingEntry) error {
	query := `
		INSERT INTO mappings (message_id, author_id, fingerprint, raw_text)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (message_id)
		DO UPDATE SET author_id = $2, fingerprint = $3, raw_text = $4
		RETURNING id, created_at
	`
	err := r.db.QueryRowx(query, entry.MessageID, entry.AuthorID, entry.Fingerprint, entry.RawText).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to upsert mapping", zap.Int64("message_id", entry.MessageID), zap.Error(err))
		return err
	}
	return nil
}

func (r *mappingRepository) GetByMessageID(messageID int64) (*models.MappingEntry, error) {
	var entry models.MappingEntry
	query := `
		SELECT id, message_id, author_id, fingerprint, raw_text, thread_root_id, created_at
		FROM mappings WHERE message_id = $1
	`
	err := r.db.Get(&entry, query, messageID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get mapping", zap.Int64("message_id", messageID), zap.Error(err))
		return nil, err
	}
	return &entry, nil
}

// FirstUnlinkedByFingerprint returns the oldest registered entry with a matching
// fingerprint and no thread root yet, or nil if none qualifies. Registration
// order (the serial id) decides which entry wins when texts collide.
func (r *mappingRepository) FirstUnlinkedByFingerprint(fingerprint string) (*models.MappingEntry, error) {
	var entry models.MappingEntry
	query := `
		SELECT id, message_id, author_id, fingerprint, raw_text, thread_root_id, created_at
		FROM mappings
		WHERE fingerprint = $1 AND thread_root_id IS NULL
		ORDER BY id
		LIMIT 1
	`
	err := r.db.Get(&entry, query, fingerprint)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to scan for unlinked mapping", zap.Error(err))
		return nil, err
	}
	return &entry, nil
}

// SetThreadRoot links the entry to its discussion-thread root. The NULL guard
// makes the write first-writer-wins: a root already set is never overwritten.
func (r *mappingRepository) SetThreadRoot(messageID, threadRootID int64) error {
	query := `UPDATE mappings SET thread_root_id = $1 WHERE message_id = $2 AND thread_root_id IS NULL`
	result, err := r.db.Exec(query, threadRootID, messageID)
	if err != nil {
		r.logger.Error("Failed to set thread root",
			zap.Int64("message_id", messageID),
			zap.Int64("thread_root_id", threadRootID),
			zap.Error(err))
		return err
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rowsAffected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (r *mappingRepository) GetByThreadRoot(threadRootID int64) (*models.MappingEntry, error) {
	var entry models.MappingEntry
	query := `
		SELECT id, message_id, author_id, fingerprint, raw_text, thread_root_id, created_at
		FROM mappings
		WHERE thread_root_id = $1
		ORDER BY id
		LIMIT 1
	`
	err := r.db.Get(&entry, query, threadRootID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get mapping by thread root", zap.Int64("thread_root_id", threadRootID), zap.Error(err))
		return nil, err
	}
	return &entry, nil
}
