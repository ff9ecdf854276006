package domain

// PartType tags a message part variant. The platform delivers each message as
// a list of typed parts; unrecognized types fall through to a no-op handler.
type PartType string

const (
	PartText      PartType = "text"
	PartImage     PartType = "image"
	PartVideo     PartType = "video"
	PartSticker   PartType = "face"
	PartReply     PartType = "reply"
	PartShareCard PartType = "json"
	PartForward   PartType = "forward"
)

// Sender identifies who sent a message within a group.
type Sender struct {
	UserID   int64  `json:"user_id"`
	Nickname string `json:"nickname"`
	Card     string `json:"card,omitempty"` // group-specific display name
}

// DisplayName prefers the group card over the account nickname.
func (s Sender) DisplayName() string {
	if s.Card != "" {
		return s.Card
	}
	if s.Nickname != "" {
		return s.Nickname
	}
	return "未知用户"
}

// RawMessage is a single platform message as returned by the history API.
// Seq is monotonically increasing per group but not necessarily contiguous.
type RawMessage struct {
	MessageID int64         `json:"message_id"`
	Seq       int64         `json:"message_seq"`
	Sender    Sender        `json:"sender"`
	Time      int64         `json:"time"` // epoch seconds
	Raw       string        `json:"raw_message,omitempty"`
	Parts     []MessagePart `json:"message"`
}

// MessagePart is one typed segment of a message.
type MessagePart struct {
	Type PartType `json:"type"`
	Data PartData `json:"data"`
}

// PartData is the union of type-specific payload fields. Only the fields
// relevant to the part's Type are populated.
type PartData struct {
	Text     string       `json:"text,omitempty"`     // text, inline reply fallback
	URL      string       `json:"url,omitempty"`      // image
	File     string       `json:"file,omitempty"`     // image (alternate), outbound image ref
	Summary  string       `json:"summary,omitempty"`  // image marker, e.g. [动画表情]
	ID       string       `json:"id,omitempty"`       // reply: referenced message id
	Nickname string       `json:"nickname,omitempty"` // reply: inline fallback sender name
	Name     string       `json:"name,omitempty"`     // reply: alternate fallback sender name
	UserID   int64        `json:"user_id,omitempty"`  // reply: inline fallback sender id
	Payload  string       `json:"data,omitempty"`     // share card: embedded JSON blob
	Content  []RawMessage `json:"content,omitempty"`  // forward: nested messages
}

// TextPart builds a plain text part, used when sending messages back.
func TextPart(text string) MessagePart {
	return MessagePart{Type: PartText, Data: PartData{Text: text}}
}

// ImagePart builds an image part referencing a file or URL.
func ImagePart(ref string) MessagePart {
	return MessagePart{Type: PartImage, Data: PartData{File: ref}}
}
