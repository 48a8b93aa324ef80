package relay

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"menfess/internal/filter"
	"menfess/internal/identity"
	"menfess/internal/ledger"
	"menfess/internal/ratelimit"
)

// Transport is the messaging-platform client the coordinator drives. Publish
// posts to the public feed, SendPrivate notifies an author, SendThreaded posts
// a reply into the discussion thread.
type Transport interface {
	Publish(text, photoID string) (int64, error)
	DeleteMessage(messageID int64) error
	SendPrivate(userID int64, text string) (int64, error)
	SendThreaded(replyToID int64, text string) (int64, error)
}

// Coordinator orchestrates the moderation and anonymous-relay pipeline:
// publish, mapping registration, thread-root linking, comment notification and
// anonymized reply relay. The correlation and reply-parent tables are
// process-lifetime state; the ledger and identity map are durable.
type Coordinator struct {
	transport Transport
	filter    *filter.Filter
	ledger    *ledger.Ledger
	gate      *ratelimit.Gate
	identity  *identity.Map
	logger    *zap.Logger

	mu           sync.Mutex
	correlations map[int64]int64 // notification message id -> comment id
	replyParents map[int64]int64 // comment id -> reply parent id
}

func NewCoordinator(
	transport Transport,
	contentFilter *filter.Filter,
	violationLedger *ledger.Ledger,
	gate *ratelimit.Gate,
	identityMap *identity.Map,
	logger *zap.Logger,
) *Coordinator {
	return &Coordinator{
		transport:    transport,
		filter:       contentFilter,
		ledger:       violationLedger,
		gate:         gate,
		identity:     identityMap,
		logger:       logger,
		correlations: make(map[int64]int64),
		replyParents: make(map[int64]int64),
	}
}

// Dispatch routes an inbound event to its handler. The switch is exhaustive
// over the closed Event set.
func (c *Coordinator) Dispatch(ev Event) error {
	switch e := ev.(type) {
	case SubmissionReceived:
		_, err := c.HandleSubmission(e)
		return err
	case MirroredPostObserved:
		return c.HandleMirrored(e)
	case CommentReceived:
		return c.HandleComment(e)
	case PrivateReplyReceived:
		_, _, err := c.HandlePrivateReply(e)
		return err
	default:
		return fmt.Errorf("unknown event type %T", ev)
	}
}

// HandleSubmission runs the full submission pipeline and returns the published
// message id. Rejections come back as the typed errors in errors.go; the
// cooldown is stamped only after the publish fully succeeds, so a blocked or
// filtered attempt never resets the clock.
func (c *Coordinator) HandleSubmission(ev SubmissionReceived) (int64, error) {
	banned, err := c.ledger.IsBanned(ev.SubmitterID)
	if err != nil {
		return 0, fmt.Errorf("failed to check ban state: %w", err)
	}
	if banned {
		return 0, ErrBanned
	}

	if ok, remaining := c.gate.Check(ev.SubmitterID, ev.IsAdmin); !ok {
		return 0, &RateLimitedError{RemainingMinutes: remaining}
	}

	if term, hit := c.filter.Match(ev.Text); hit {
		warnings, bannedNow, err := c.ledger.RecordViolation(ev.SubmitterID, ev.DisplayName, term, ev.Text)
		if err != nil {
			return 0, fmt.Errorf("failed to record violation: %w", err)
		}
		return 0, &ContentRejectedError{Term: term, Warnings: warnings, Banned: bannedNow}
	}

	submission, err := ParseSubmission(ev.Text)
	if err != nil {
		return 0, err
	}

	caption := submission.Caption()
	messageID, err := c.transport.Publish(caption, ev.PhotoID)
	if err != nil {
		return 0, &TransportError{Op: "publish", Err: err}
	}

	// The mirror will carry the published text, so the fingerprint is taken
	// from the caption, not the raw submission.
	if err := c.identity.Register(messageID, ev.SubmitterID, caption); err != nil {
		// A published post without a mapping could never relay comments back
		// to its author; take it down rather than leave it orphaned.
		if delErr := c.transport.DeleteMessage(messageID); delErr != nil {
			c.logger.Error("Failed to delete post after registration failure",
				zap.Int64("message_id", messageID), zap.Error(delErr))
		}
		return 0, fmt.Errorf("failed to register mapping: %w", err)
	}

	c.gate.MarkAccepted(ev.SubmitterID)

	c.logger.Info("Menfess published",
		zap.Int64("message_id", messageID),
		zap.Bool("has_photo", ev.PhotoID != ""))
	return messageID, nil
}

// HandleMirrored tries to link an auto-mirrored post to its registered
// original by content fingerprint. Unmatched mirrors are dropped; mirroring
// and publication race but resolve quickly.
func (c *Coordinator) HandleMirrored(ev MirroredPostObserved) error {
	linked, err := c.identity.LinkThreadRoot(ev.MirrorID, ev.Text)
	if err != nil {
		return err
	}
	if !linked {
		c.logger.Debug("Mirror did not match any unlinked mapping, dropping",
			zap.Int64("mirror_id", ev.MirrorID))
	}
	return nil
}

// HandleComment walks the reply chain to its thread root, resolves the
// anonymous author and notifies them privately. Comments on unknown threads
// are ignored.
func (c *Coordinator) HandleComment(ev CommentReceived) error {
	c.mu.Lock()
	c.replyParents[ev.CommentID] = ev.ReplyParentID
	c.mu.Unlock()

	rootID := c.resolveThreadRoot(ev.ReplyParentID)

	authorID, ok, err := c.identity.AuthorByThreadRoot(rootID)
	if err != nil {
		return err
	}
	if !ok {
		c.logger.Debug("Comment on unknown thread, ignoring",
			zap.Int64("comment_id", ev.CommentID),
			zap.Int64("thread_root_id", rootID))
		return nil
	}

	notification := fmt.Sprintf(
		"💬 Ada komentar baru di menfessmu:\n\n%s\n\nBalas pesan ini untuk membalas secara anonim.",
		ev.Text)

	notificationID, err := c.transport.SendPrivate(authorID, notification)
	if err != nil {
		return &TransportError{Op: "notify", Err: err}
	}

	c.mu.Lock()
	c.correlations[notificationID] = ev.CommentID
	c.mu.Unlock()

	c.logger.Info("Author notified of comment",
		zap.Int64("comment_id", ev.CommentID),
		zap.Int64("notification_id", notificationID))
	return nil
}

// HandlePrivateReply relays an author's reply to a comment notification into
// the discussion thread without identity markers. A reply is moderated like a
// fresh submission (filter + ledger + ban check) but is not rate limited. A
// private reply that does not correlate to a notification falls through to the
// submission pipeline, reported by the second return value being false.
func (c *Coordinator) HandlePrivateReply(ev PrivateReplyReceived) (int64, bool, error) {
	c.mu.Lock()
	commentID, isRelay := c.correlations[ev.ReplyParentID]
	c.mu.Unlock()

	if !isRelay {
		publishedID, err := c.HandleSubmission(SubmissionReceived{
			SubmitterID: ev.SubmitterID,
			DisplayName: ev.DisplayName,
			Text:        ev.Text,
			PhotoID:     ev.PhotoID,
			IsAdmin:     ev.IsAdmin,
		})
		return publishedID, false, err
	}

	banned, err := c.ledger.IsBanned(ev.SubmitterID)
	if err != nil {
		return 0, true, fmt.Errorf("failed to check ban state: %w", err)
	}
	if banned {
		return 0, true, ErrBanned
	}

	if term, hit := c.filter.Match(ev.Text); hit {
		warnings, bannedNow, err := c.ledger.RecordViolation(ev.SubmitterID, ev.DisplayName, term, ev.Text)
		if err != nil {
			return 0, true, fmt.Errorf("failed to record violation: %w", err)
		}
		return 0, true, &ContentRejectedError{Term: term, Warnings: warnings, Banned: bannedNow}
	}

	relayID, err := c.transport.SendThreaded(commentID, "💬 Balasan anonim:\n\n"+ev.Text)
	if err != nil {
		// The correlation stays resolvable so the author can retry.
		return 0, true, &TransportError{Op: "relay", Err: err}
	}

	// Comments replying to the relayed message must still walk to the root.
	c.mu.Lock()
	c.replyParents[relayID] = commentID
	c.mu.Unlock()

	c.logger.Info("Anonymous reply relayed",
		zap.Int64("comment_id", commentID),
		zap.Int64("relay_id", relayID))
	return relayID, true, nil
}

// resolveThreadRoot walks the recorded reply-parent chain upwards until a
// message with no known parent is found. The depth cap guards against a
// malformed cycle in observed events.
func (c *Coordinator) resolveThreadRoot(parentID int64) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	rootID := parentID
	for i := 0; i < 64; i++ {
		next, ok := c.replyParents[rootID]
		if !ok {
			break
		}
		rootID = next
	}
	return rootID
}
