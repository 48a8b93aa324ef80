package ledger

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"menfess/internal/models"
	"menfess/internal/repository"
)

// Ledger records banned-term violations per submitter and escalates to a ban
// once the warning threshold is reached. The underlying store is read-modify-
// write, so each submitter's record is updated under a per-submitter lock to
// avoid losing concurrent writes from the same user.
type Ledger struct {
	repo      repository.ViolatorRepository
	logger    *zap.Logger
	threshold uint

	mu    sync.Mutex
	locks map[int64]*sync.Mutex
}

// New creates a ledger. threshold is the warning count at which a submitter is
// banned; the ban is monotonic and never cleared by RecordViolation.
func New(repo repository.ViolatorRepository, threshold uint, logger *zap.Logger) *Ledger {
	return &Ledger{
		repo:      repo,
		logger:    logger,
		threshold: threshold,
		locks:     make(map[int64]*sync.Mutex),
	}
}

func (l *Ledger) lockFor(submitterID int64) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[submitterID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[submitterID] = lock
	}
	return lock
}

// RecordViolation loads the submitter's record (creating it on first
// violation), increments the warning count, appends the violation with its
// timestamp, sets the banned flag once the threshold is reached, persists, and
// returns the post-update counters. The record must be persisted before the
// violation is reported back to the submitter, regardless of later steps.
func (l *Ledger) RecordViolation(submitterID int64, displayName, term, rawMessage string) (uint, bool, error) {
	lock := l.lockFor(submitterID)
	lock.Lock()
	defer lock.Unlock()

	record, err := l.repo.GetBySubmitterID(submitterID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to load violator record: %w", err)
	}
	if record == nil {
		record = &models.SubmitterRecord{SubmitterID: submitterID}
	}

	record.DisplayName = displayName
	record.WarningCount++
	if record.WarningCount >= l.threshold {
		record.Banned = true
	}

	if err := l.repo.Upsert(record); err != nil {
		return 0, false, fmt.Errorf("failed to persist violator record: %w", err)
	}

	violation := &models.Violation{
		SubmitterID: submitterID,
		Term:        term,
		RawMessage:  rawMessage,
		CreatedAt:   time.Now(),
	}
	if err := l.repo.AddViolation(violation); err != nil {
		return 0, false, fmt.Errorf("failed to persist violation: %w", err)
	}

	l.logger.Info("Violation recorded",
		zap.Int64("submitter_id", submitterID),
		zap.String("term", term),
		zap.Uint("warnings", record.WarningCount),
		zap.Bool("banned", record.Banned))

	return record.WarningCount, record.Banned, nil
}

// IsBanned is a pure read; unknown submitters are not banned.
func (l *Ledger) IsBanned(submitterID int64) (bool, error) {
	record, err := l.repo.GetBySubmitterID(submitterID)
	if err != nil {
		return false, fmt.Errorf("failed to load violator record: %w", err)
	}
	return record != nil && record.Banned, nil
}

// List returns all submitter records with their violation history, for the
// moderator surfaces.
func (l *Ledger) List() ([]*models.SubmitterRecord, error) {
	records, err := l.repo.List()
	if err != nil {
		return nil, fmt.Errorf("failed to list violator records: %w", err)
	}
	for _, record := range records {
		violations, err := l.repo.GetViolations(record.SubmitterID)
		if err != nil {
			return nil, fmt.Errorf("failed to load violations: %w", err)
		}
		record.Violations = violations
	}
	return records, nil
}

// Unban clears the banned flag but keeps the warning history. This is an
// administrative operation outside the escalation path; RecordViolation alone
// never un-bans anyone.
func (l *Ledger) Unban(submitterID int64) error {
	lock := l.lockFor(submitterID)
	lock.Lock()
	defer lock.Unlock()

	if err := l.repo.SetBanned(submitterID, false); err != nil {
		return fmt.Errorf("failed to unban submitter: %w", err)
	}
	l.logger.Info("Submitter unbanned", zap.Int64("submitter_id", submitterID))
	return nil
}
