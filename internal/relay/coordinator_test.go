package relay

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"menfess/internal/filter"
	"menfess/internal/identity"
	"menfess/internal/ledger"
	"menfess/internal/models"
	"menfess/internal/ratelimit"
)

// --- fakes ---

type publishedPost struct {
	ID      int64
	Text    string
	PhotoID string
}

type sentMessage struct {
	ID     int64
	Target int64 // user id for private, reply-to id for threaded
	Text   string
}

type fakeTransport struct {
	nextID   int64
	posts    []publishedPost
	privates []sentMessage
	threaded []sentMessage
	deleted  []int64

	failPublish  error
	failPrivate  error
	failThreaded error
}

func (f *fakeTransport) Publish(text, photoID string) (int64, error) {
	if f.failPublish != nil {
		return 0, f.failPublish
	}
	f.nextID++
	f.posts = append(f.posts, publishedPost{ID: f.nextID, Text: text, PhotoID: photoID})
	return f.nextID, nil
}

func (f *fakeTransport) DeleteMessage(messageID int64) error {
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeTransport) SendPrivate(userID int64, text string) (int64, error) {
	if f.failPrivate != nil {
		return 0, f.failPrivate
	}
	f.nextID++
	f.privates = append(f.privates, sentMessage{ID: f.nextID, Target: userID, Text: text})
	return f.nextID, nil
}

func (f *fakeTransport) SendThreaded(replyToID int64, text string) (int64, error) {
	if f.failThreaded != nil {
		return 0, f.failThreaded
	}
	f.nextID++
	f.threaded = append(f.threaded, sentMessage{ID: f.nextID, Target: replyToID, Text: text})
	return f.nextID, nil
}

type fakeViolatorRepo struct {
	records    map[int64]models.SubmitterRecord
	violations []models.Violation
}

func newFakeViolatorRepo() *fakeViolatorRepo {
	return &fakeViolatorRepo{records: make(map[int64]models.SubmitterRecord)}
}

func (f *fakeViolatorRepo) GetBySubmitterID(submitterID int64) (*models.SubmitterRecord, error) {
	record, ok := f.records[submitterID]
	if !ok {
		return nil, nil
	}
	copied := record
	return &copied, nil
}

func (f *fakeViolatorRepo) Upsert(record *models.SubmitterRecord) error {
	f.records[record.SubmitterID] = *record
	return nil
}

func (f *fakeViolatorRepo) AddViolation(v *models.Violation) error {
	v.ID = int64(len(f.violations) + 1)
	f.violations = append(f.violations, *v)
	return nil
}

func (f *fakeViolatorRepo) GetViolations(submitterID int64) ([]models.Violation, error) {
	var out []models.Violation
	for _, v := range f.violations {
		if v.SubmitterID == submitterID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (f *fakeViolatorRepo) List() ([]*models.SubmitterRecord, error) {
	var out []*models.SubmitterRecord
	for _, record := range f.records {
		copied := record
		out = append(out, &copied)
	}
	return out, nil
}

func (f *fakeViolatorRepo) SetBanned(submitterID int64, banned bool) error {
	record, ok := f.records[submitterID]
	if !ok {
		return nil
	}
	record.Banned = banned
	f.records[submitterID] = record
	return nil
}

type fakeMappingRepo struct {
	nextID     int64
	entries    map[int64]*models.MappingEntry
	failUpsert error
}

func newFakeMappingRepo() *fakeMappingRepo {
	return &fakeMappingRepo{entries: make(map[int64]*models.MappingEntry)}
}

func (f *fakeMappingRepo) Upsert(entry *models.MappingEntry) error {
	if f.failUpsert != nil {
		return f.failUpsert
	}
	if existing, ok := f.entries[entry.MessageID]; ok {
		existing.AuthorID = entry.AuthorID
		existing.Fingerprint = entry.Fingerprint
		existing.RawText = entry.RawText
		return nil
	}
	f.nextID++
	entry.ID = f.nextID
	copied := *entry
	f.entries[entry.MessageID] = &copied
	return nil
}

func (f *fakeMappingRepo) GetByMessageID(messageID int64) (*models.MappingEntry, error) {
	entry, ok := f.entries[messageID]
	if !ok {
		return nil, nil
	}
	copied := *entry
	return &copied, nil
}

func (f *fakeMappingRepo) FirstUnlinkedByFingerprint(fingerprint string) (*models.MappingEntry, error) {
	var matches []*models.MappingEntry
	for _, entry := range f.entries {
		if entry.Fingerprint == fingerprint && entry.ThreadRootID == nil {
			matches = append(matches, entry)
		}
	}
	if len(matches) == 0 {
		return nil, nil
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	copied := *matches[0]
	return &copied, nil
}

func (f *fakeMappingRepo) SetThreadRoot(messageID, threadRootID int64) error {
	entry, ok := f.entries[messageID]
	if !ok || entry.ThreadRootID != nil {
		return nil
	}
	rootID := threadRootID
	entry.ThreadRootID = &rootID
	return nil
}

func (f *fakeMappingRepo) GetByThreadRoot(threadRootID int64) (*models.MappingEntry, error) {
	for _, entry := range f.entries {
		if entry.ThreadRootID != nil && *entry.ThreadRootID == threadRootID {
			copied := *entry
			return &copied, nil
		}
	}
	return nil, nil
}

// --- harness ---

type harness struct {
	coordinator *Coordinator
	transport   *fakeTransport
	violators   *fakeViolatorRepo
	mappings    *fakeMappingRepo
	clock       *clock.Mock
}

func newHarness(t *testing.T, bannedTerms ...string) *harness {
	t.Helper()
	if len(bannedTerms) == 0 {
		bannedTerms = []string{"anjing", "kontol"}
	}

	transport := &fakeTransport{}
	violators := newFakeViolatorRepo()
	mappings := newFakeMappingRepo()
	mockClock := clock.NewMock()
	logger := zap.NewNop()

	coordinator := NewCoordinator(
		transport,
		filter.New(bannedTerms),
		ledger.New(violators, 3, logger),
		ratelimit.New(600*time.Second, mockClock),
		identity.New(mappings, logger),
		logger,
	)
	return &harness{
		coordinator: coordinator,
		transport:   transport,
		violators:   violators,
		mappings:    mappings,
		clock:       mockClock,
	}
}

const validSubmission = "Dibalik Masker : seorang pengagum\nTarget : kamu\nUngkapan : semoga harimu indah"

// --- tests ---

func TestEndToEndCommentRelay(t *testing.T) {
	h := newHarness(t)

	// Submitter A publishes a correctly formatted menfess.
	publishedID, err := h.coordinator.HandleSubmission(SubmissionReceived{
		SubmitterID: 42, DisplayName: "budi", Text: validSubmission,
	})
	require.NoError(t, err)
	require.Len(t, h.transport.posts, 1)

	entry, err := h.mappings.GetByMessageID(publishedID)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Nil(t, entry.ThreadRootID, "mapping starts with an empty thread root")

	// The transport mirrors the post into the discussion thread.
	mirrorID := int64(5000)
	require.NoError(t, h.coordinator.Dispatch(MirroredPostObserved{
		MirrorID: mirrorID, Text: h.transport.posts[0].Text,
	}))

	entry, err = h.mappings.GetByMessageID(publishedID)
	require.NoError(t, err)
	require.NotNil(t, entry.ThreadRootID)
	assert.Equal(t, mirrorID, *entry.ThreadRootID)

	// A comment arrives replying to the mirrored post.
	require.NoError(t, h.coordinator.Dispatch(CommentReceived{
		CommentID: 6000, ReplyParentID: mirrorID, Text: "kamu siapa?",
	}))
	require.Len(t, h.transport.privates, 1)
	notification := h.transport.privates[0]
	assert.Equal(t, int64(42), notification.Target, "the anonymous author is notified")
	assert.Contains(t, notification.Text, "kamu siapa?")

	// The author replies to the notification with clean text.
	relayID, relayed, err := h.coordinator.HandlePrivateReply(PrivateReplyReceived{
		SubmitterID: 42, DisplayName: "budi",
		ReplyParentID: notification.ID, Text: "aku rahasia",
	})
	require.NoError(t, err)
	assert.True(t, relayed)
	require.Len(t, h.transport.threaded, 1)
	relayPost := h.transport.threaded[0]
	assert.Equal(t, relayID, relayPost.ID)
	assert.Equal(t, int64(6000), relayPost.Target, "relay is addressed to the original comment")
	assert.Contains(t, relayPost.Text, "aku rahasia")
	assert.NotContains(t, relayPost.Text, "budi", "relay must carry no identity markers")
	assert.NotContains(t, relayPost.Text, "42")
}

func TestTransitiveReplyChainResolvesRoot(t *testing.T) {
	h := newHarness(t)

	_, err := h.coordinator.HandleSubmission(SubmissionReceived{
		SubmitterID: 42, DisplayName: "budi", Text: validSubmission,
	})
	require.NoError(t, err)

	mirrorID := int64(5000)
	require.NoError(t, h.coordinator.Dispatch(MirroredPostObserved{
		MirrorID: mirrorID, Text: h.transport.posts[0].Text,
	}))

	// First comment replies to the mirror, second replies to the first.
	require.NoError(t, h.coordinator.Dispatch(CommentReceived{
		CommentID: 6000, ReplyParentID: mirrorID, Text: "halo",
	}))
	require.NoError(t, h.coordinator.Dispatch(CommentReceived{
		CommentID: 6001, ReplyParentID: 6000, Text: "ikut nimbrung",
	}))

	require.Len(t, h.transport.privates, 2)
	assert.Equal(t, int64(42), h.transport.privates[1].Target,
		"a transitive reply still resolves to the thread root's author")
}

func TestDisguisedViolationsEscalateToBan(t *testing.T) {
	h := newHarness(t)

	disguises := []string{
		"Dibalik Masker : x\nTarget : y\nUngkapan : dasar 4nj1ng",
		"Dibalik Masker : x\nTarget : y\nUngkapan : dasar ᴀɴjɪɴɢ",
		"Dibalik Masker : x\nTarget : y\nUngkapan : dasar AnJiNg",
	}

	for i, text := range disguises {
		_, err := h.coordinator.HandleSubmission(SubmissionReceived{
			SubmitterID: 7, DisplayName: "siti", Text: text,
		})
		var rejected *ContentRejectedError
		require.ErrorAs(t, err, &rejected, "disguise %d must be detected", i)
		assert.Equal(t, "anjing", rejected.Term)
		assert.Equal(t, uint(i+1), rejected.Warnings)
		assert.Equal(t, i == 2, rejected.Banned)
	}

	// A subsequent clean submission is rejected as banned, not evaluated
	// against rate limit or format.
	_, err := h.coordinator.HandleSubmission(SubmissionReceived{
		SubmitterID: 7, DisplayName: "siti", Text: "teks bebas tanpa format",
	})
	assert.ErrorIs(t, err, ErrBanned)
	assert.Empty(t, h.transport.posts, "nothing may be published")
}

func TestRateLimitBetweenSubmissions(t *testing.T) {
	h := newHarness(t)

	_, err := h.coordinator.HandleSubmission(SubmissionReceived{
		SubmitterID: 42, DisplayName: "budi", Text: validSubmission,
	})
	require.NoError(t, err)

	h.clock.Add(599 * time.Second)
	_, err = h.coordinator.HandleSubmission(SubmissionReceived{
		SubmitterID: 42, DisplayName: "budi", Text: validSubmission,
	})
	var limited *RateLimitedError
	require.ErrorAs(t, err, &limited)
	assert.Equal(t, 1, limited.RemainingMinutes)

	h.clock.Add(2 * time.Second)
	_, err = h.coordinator.HandleSubmission(SubmissionReceived{
		SubmitterID: 42, DisplayName: "budi", Text: validSubmission,
	})
	assert.NoError(t, err)
}

func TestRejectedSubmissionDoesNotStampCooldown(t *testing.T) {
	h := newHarness(t)

	_, err := h.coordinator.HandleSubmission(SubmissionReceived{
		SubmitterID: 42, DisplayName: "budi", Text: "format salah",
	})
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)

	// The failed attempt must not start a cooldown.
	_, err = h.coordinator.HandleSubmission(SubmissionReceived{
		SubmitterID: 42, DisplayName: "budi", Text: validSubmission,
	})
	assert.NoError(t, err)
}

func TestAdminExemptFromRateLimit(t *testing.T) {
	h := newHarness(t)

	for i := 0; i < 3; i++ {
		_, err := h.coordinator.HandleSubmission(SubmissionReceived{
			SubmitterID: 1, DisplayName: "admin", Text: validSubmission, IsAdmin: true,
		})
		require.NoError(t, err)
	}
	assert.Len(t, h.transport.posts, 3)
}

func TestPublishFailureLeavesNoMapping(t *testing.T) {
	h := newHarness(t)
	h.transport.failPublish = errors.New("telegram down")

	_, err := h.coordinator.HandleSubmission(SubmissionReceived{
		SubmitterID: 42, DisplayName: "budi", Text: validSubmission,
	})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "publish", transportErr.Op)
	assert.Empty(t, h.mappings.entries, "no orphaned mapping")

	// The failed publish must not stamp the cooldown either.
	h.transport.failPublish = nil
	_, err = h.coordinator.HandleSubmission(SubmissionReceived{
		SubmitterID: 42, DisplayName: "budi", Text: validSubmission,
	})
	assert.NoError(t, err)
}

func TestRegistrationFailureDeletesPublishedPost(t *testing.T) {
	h := newHarness(t)
	h.mappings.failUpsert = errors.New("db down")

	_, err := h.coordinator.HandleSubmission(SubmissionReceived{
		SubmitterID: 42, DisplayName: "budi", Text: validSubmission,
	})
	require.Error(t, err)
	require.Len(t, h.transport.posts, 1)
	assert.Equal(t, []int64{h.transport.posts[0].ID}, h.transport.deleted,
		"the unmapped post is taken down")
}

func TestCommentOnUnknownThreadIgnored(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.coordinator.Dispatch(CommentReceived{
		CommentID: 6000, ReplyParentID: 9999, Text: "obrolan lepas",
	}))
	assert.Empty(t, h.transport.privates)
}

func TestUnmatchedMirrorDropped(t *testing.T) {
	h := newHarness(t)

	require.NoError(t, h.coordinator.Dispatch(MirroredPostObserved{
		MirrorID: 5000, Text: "tidak terdaftar",
	}))
}

func TestRelayReplyIsModerated(t *testing.T) {
	h := newHarness(t)

	notificationID := h.setupNotifiedComment(t, 42)

	_, _, err := h.coordinator.HandlePrivateReply(PrivateReplyReceived{
		SubmitterID: 42, DisplayName: "budi",
		ReplyParentID: notificationID, Text: "dasar k0n70l",
	})
	var rejected *ContentRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "kontol", rejected.Term)
	assert.Empty(t, h.transport.threaded, "a rejected reply is never relayed")

	violations, err := h.violators.GetViolations(42)
	require.NoError(t, err)
	assert.Len(t, violations, 1, "the violation is recorded before reporting")
}

func TestRelayFailureKeepsCorrelation(t *testing.T) {
	h := newHarness(t)

	notificationID := h.setupNotifiedComment(t, 42)

	h.transport.failThreaded = errors.New("flood wait")
	_, _, err := h.coordinator.HandlePrivateReply(PrivateReplyReceived{
		SubmitterID: 42, DisplayName: "budi",
		ReplyParentID: notificationID, Text: "coba lagi nanti",
	})
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "relay", transportErr.Op)

	// Retrying against the same notification succeeds.
	h.transport.failThreaded = nil
	_, relayed, err := h.coordinator.HandlePrivateReply(PrivateReplyReceived{
		SubmitterID: 42, DisplayName: "budi",
		ReplyParentID: notificationID, Text: "coba lagi nanti",
	})
	assert.NoError(t, err)
	assert.True(t, relayed)
	assert.Len(t, h.transport.threaded, 1)
}

func TestUncorrelatedPrivateReplyIsSubmission(t *testing.T) {
	h := newHarness(t)

	// Reply to some unrelated bot message: falls through to the submission
	// pipeline, where the template is enforced.
	_, relayed, err := h.coordinator.HandlePrivateReply(PrivateReplyReceived{
		SubmitterID: 42, DisplayName: "budi",
		ReplyParentID: 777, Text: "bukan format menfess",
	})
	assert.False(t, relayed)
	var formatErr *FormatError
	require.ErrorAs(t, err, &formatErr)

	_, _, err = h.coordinator.HandlePrivateReply(PrivateReplyReceived{
		SubmitterID: 42, DisplayName: "budi",
		ReplyParentID: 777, Text: validSubmission,
	})
	require.NoError(t, err)
	assert.Len(t, h.transport.posts, 1)
}

func TestUncorrelatedPhotoReplyKeepsPhoto(t *testing.T) {
	h := newHarness(t)

	// A photo submission sent as a reply to an unrelated bot message still
	// carries its photo through the fall-through pipeline.
	_, relayed, err := h.coordinator.HandlePrivateReply(PrivateReplyReceived{
		SubmitterID: 42, DisplayName: "budi",
		ReplyParentID: 777, Text: validSubmission, PhotoID: "photo-abc",
	})
	require.NoError(t, err)
	assert.False(t, relayed)
	require.Len(t, h.transport.posts, 1)
	assert.Equal(t, "photo-abc", h.transport.posts[0].PhotoID)
}

func TestCommentOnRelayedReplyReachesAuthor(t *testing.T) {
	h := newHarness(t)

	notificationID := h.setupNotifiedComment(t, 42)

	relayID, relayed, err := h.coordinator.HandlePrivateReply(PrivateReplyReceived{
		SubmitterID: 42, DisplayName: "budi",
		ReplyParentID: notificationID, Text: "jawaban rahasia",
	})
	require.NoError(t, err)
	require.True(t, relayed)

	// A public comment replying to the anonymized relay still walks the chain
	// to the thread root and notifies the author.
	require.NoError(t, h.coordinator.Dispatch(CommentReceived{
		CommentID: 6001, ReplyParentID: relayID, Text: "siapa nih?",
	}))
	require.Len(t, h.transport.privates, 2)
	followUp := h.transport.privates[1]
	assert.Equal(t, int64(42), followUp.Target)
	assert.Contains(t, followUp.Text, "siapa nih?")
}

// setupNotifiedComment publishes, links, and delivers one comment so that the
// author has a pending notification. Returns the notification message id.
func (h *harness) setupNotifiedComment(t *testing.T, authorID int64) int64 {
	t.Helper()

	_, err := h.coordinator.HandleSubmission(SubmissionReceived{
		SubmitterID: authorID, DisplayName: "budi", Text: validSubmission,
	})
	require.NoError(t, err)

	mirrorID := int64(5000)
	require.NoError(t, h.coordinator.Dispatch(MirroredPostObserved{
		MirrorID: mirrorID, Text: h.transport.posts[len(h.transport.posts)-1].Text,
	}))
	require.NoError(t, h.coordinator.Dispatch(CommentReceived{
		CommentID: 6000, ReplyParentID: mirrorID, Text: "komentar publik",
	}))

	require.NotEmpty(t, h.transport.privates)
	return h.transport.privates[len(h.transport.privates)-1].ID
}

func TestDispatchUnknownEvent(t *testing.T) {
	h := newHarness(t)

	err := h.coordinator.Dispatch(nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unknown event"), fmt.Sprint(err))
}
