package repository

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"menfess/internal/models"
)

// ViolatorRepository persists the per-submitter warning/ban ledger.
type ViolatorRepository interface {
	GetBySubmitterID(submitterID int64) (*models.SubmitterRecord, error)
	Upsert(record *models.SubmitterRecord) error
	AddViolation(v *models.Violation) error
	GetViolations(submitterID int64) ([]models.Violation, error)
	List() ([]*models.SubmitterRecord, error)
	SetBanned(submitterID int64, banned bool) error
}

type violatorRepository struct {
	db     *sqlx.DB
	logger *zap.Logger
}

func NewViolatorRepository(db *sqlx.DB, logger *zap.Logger) ViolatorRepository {
	return &violatorRepository{db: db, logger: logger}
}

// GetBySubmitterID returns the submitter's record, or nil if none exists yet.
// Violations are not populated; use GetViolations when the history is needed.
func (r *violatorRepository) GetBySubmitterID(submitterID int64) (*models.SubmitterRecord, error) {
	var record models.SubmitterRecord
	query := `SELECT submitter_id, display_name, warning_count, banned FROM violators WHERE submitter_id = $1`
	err := r.db.Get(&record, query, submitterID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		r.logger.Error("Failed to get violator record", zap.Int64("submitter_id", submitterID), zap.Error(err))
		return nil, err
	}
	return &record, nil
}

func (r *violatorRepository) Upsert(record *models.SubmitterRecord) error {
	query := `
		INSERT INTO violators (submitter_id, display_name, warning_count, banned)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (submitter_id)
		DO UPDATE SET display_name = $2, warning_count = $3, banned = $4
	`
	_, err := r.db.Exec(query, record.SubmitterID, record.DisplayName, record.WarningCount, record.Banned)
	if err != nil {
		r.logger.Error("Failed to upsert violator record", zap.Int64("submitter_id", record.SubmitterID), zap.Error(err))
		return err
	}
	return nil
}

func (r *violatorRepository) AddViolation(v *models.Violation) error {
	query := `
		INSERT INTO violations (submitter_id, term, raw_message, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now()
	}
	err := r.db.QueryRowx(query, v.SubmitterID, v.Term, v.RawMessage, v.CreatedAt).Scan(&v.ID)
	if err != nil {
		r.logger.Error("Failed to add violation", zap.Int64("submitter_id", v.SubmitterID), zap.Error(err))
		return err
	}
	return nil
}

func (r *violatorRepository) GetViolations(submitterID int64) ([]models.Violation, error) {
	var violations []models.Violation
	query := `
		SELECT id, submitter_id, term, raw_message, created_at
		FROM violations
		WHERE submitter_id = $1
		ORDER BY id
	`
	err := r.db.Select(&violations, query, submitterID)
	if err != nil {
		r.logger.Error("Failed to get violations", zap.Int64("submitter_id", submitterID), zap.Error(err))
		return nil, err
	}
	return violations, nil
}

func (r *violatorRepository) List() ([]*models.SubmitterRecord, error) {
	var records []*models.SubmitterRecord
	query := `SELECT submitter_id, display_name, warning_count, banned FROM violators ORDER BY submitter_id`
	err := r.db.Select(&records, query)
	if err != nil {
		r.logger.Error("Failed to list violator records", zap.Error(err))
		return nil, err
	}
	return records, nil
}

func (r *violatorRepository) SetBanned(submitterID int64, banned bool) error {
	query := `UPDATE violators SET banned = $1 WHERE submitter_id = $2`
	result, err := r.db.Exec(query, banned, submitterID)
	if err != nil {
		r.logger.Error("Failed to set banned flag", zap.Int64("submitter_id", submitterID), zap.Error(err))
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
