package identity

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"menfess/internal/canonical"
	"menfess/internal/models"
	"menfess/internal/repository"
)

// Map binds published messages to their anonymous authors and, once the
// transport's auto-mirrored copy is observed, to the discussion-thread root.
// The mirror carries no explicit back-reference to the original post, so the
// canonical content fingerprint is the only correlation signal: two posts with
// byte-identical canonical text are indistinguishable and may link to the wrong
// root. That ambiguity is accepted, not hidden.
type Map struct {
	repo   repository.MappingRepository
	logger *zap.Logger

	// Guards the scan-and-set in LinkThreadRoot so two concurrent mirror
	// events cannot claim the same entry.
	mu sync.Mutex
}

func New(repo repository.MappingRepository, logger *zap.Logger) *Map {
	return &Map{repo: repo, logger: logger}
}

// Register stores the mapping for a freshly published message. Re-registering
// the same message id refreshes author and text but preserves an already linked
// thread root.
func (m *Map) Register(messageID, authorID int64, rawText string) error {
	entry := &models.MappingEntry{
		MessageID:   messageID,
		AuthorID:    authorID,
		Fingerprint: canonical.Fold(rawText),
		RawText:     rawText,
	}
	if err := m.repo.Upsert(entry); err != nil {
		return fmt.Errorf("failed to register mapping: %w", err)
	}
	m.logger.Info("Mapping registered", zap.Int64("message_id", messageID))
	return nil
}

// LinkThreadRoot fingerprints the observed mirror text and links the first
// registered entry whose fingerprint matches and whose thread root is still
// empty. Returns false when no entry qualifies; such events are dropped by the
// caller, not retried.
func (m *Map) LinkThreadRoot(candidateRootID int64, observedText string) (bool, error) {
	fingerprint := canonical.Fold(observedText)

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.repo.FirstUnlinkedByFingerprint(fingerprint)
	if err != nil {
		return false, fmt.Errorf("failed to scan mappings: %w", err)
	}
	if entry == nil {
		return false, nil
	}

	if err := m.repo.SetThreadRoot(entry.MessageID, candidateRootID); err != nil {
		return false, fmt.Errorf("failed to link thread root: %w", err)
	}

	m.logger.Info("Thread root linked",
		zap.Int64("message_id", entry.MessageID),
		zap.Int64("thread_root_id", candidateRootID))
	return true, nil
}

// AuthorByThreadRoot resolves the anonymous author of the post whose discussion
// thread is rooted at rootID.
func (m *Map) AuthorByThreadRoot(rootID int64) (int64, bool, error) {
	entry, err := m.repo.GetByThreadRoot(rootID)
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up thread root: %w", err)
	}
	if entry == nil {
		return 0, false, nil
	}
	return entry.AuthorID, true, nil
}
