package relay

// Event is the closed set of inbound transport events the coordinator handles.
// The transport glue constructs exactly these variants; Dispatch switches over
// them exhaustively instead of probing dynamic payloads.
type Event interface {
	isEvent()
}

// SubmissionReceived is a fresh anonymous submission from a private chat.
type SubmissionReceived struct {
	SubmitterID int64
	DisplayName string
	Text        string
	PhotoID     string // transport file id, empty when text-only
	IsAdmin     bool
}

// MirroredPostObserved is the transport's automatic copy of a published post
// into the discussion surface. It carries no back-reference to the original.
type MirroredPostObserved struct {
	MirrorID int64
	Text     string
}

// CommentReceived is a public reply observed in the discussion surface.
type CommentReceived struct {
	CommentID     int64
	ReplyParentID int64
	Text          string
}

// PrivateReplyReceived is a private-chat message that replies to an earlier
// message from the bot. When the replied-to id is a known notification it is a
// relay request; otherwise it is treated as a fresh submission.
type PrivateReplyReceived struct {
	SubmitterID   int64
	DisplayName   string
	ReplyParentID int64
	Text          string
	PhotoID       string // transport file id, empty when text-only
	IsAdmin       bool
}

func (SubmissionReceived) isEvent()   {}
func (MirroredPostObserved) isEvent() {}
func (CommentReceived) isEvent()      {}
func (PrivateReplyReceived) isEvent() {}
