package models

import (
	"encoding/json"
	"strconv"
	"strings"
)

// UserGeneratedAction is the action type of messages typed by a participant.
// Every other action type is a system event (renames, joins, calls).
const UserGeneratedAction = "ma-type:user-generated-message"

const authorPrefix = "fbid:"

// ConversationKind distinguishes group threads from one-to-one threads
type ConversationKind string

const (
	KindGroup  ConversationKind = "group"
	KindDirect ConversationKind = "direct"
)

// Status is the directory partition a conversation was discovered in
type Status string

const (
	StatusActive   Status = "active"
	StatusArchived Status = "archived"
)

// Conversation is one thread of the directory
type Conversation struct {
	ID            string           `json:"id"`
	Kind          ConversationKind `json:"kind"`
	Name          string           `json:"name"`
	Status        Status           `json:"status"`
	Participants  []string         `json:"participants"`
	OtherUserID   string           `json:"other_user_id,omitempty"`
	LastMessageAt int64            `json:"last_message_timestamp"`
}

// Participant is a directory entry shared by every conversation referencing it
type Participant struct {
	ID   string `json:"fbid"`
	Name string `json:"name"`
}

// Message is one action record of a conversation history. Decoding keeps the
// original bytes so a dump written back out is identical to what was received.
type Message struct {
	ThreadID    *string      `json:"thread_fbid"`
	OtherUserID *string      `json:"other_user_fbid"`
	Author      string       `json:"author"`
	Body        string       `json:"body"`
	Timestamp   int64        `json:"timestamp"`
	ActionType  string       `json:"action_type"`
	Attachments []Attachment `json:"attachments"`
	Ranges      []Range      `json:"ranges,omitempty"`

	raw json.RawMessage
}

type messageAlias Message

// UnmarshalJSON decodes the known fields and retains the source bytes
func (m *Message) UnmarshalJSON(data []byte) error {
	var alias messageAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}
	*m = Message(alias)
	m.raw = append(json.RawMessage(nil), data...)
	return nil
}

// MarshalJSON returns the retained source bytes when present
func (m Message) MarshalJSON() ([]byte, error) {
	if len(m.raw) > 0 {
		return m.raw, nil
	}
	return json.Marshal(messageAlias(m))
}

// IsUserGenerated reports whether the message was typed by a participant
func (m *Message) IsUserGenerated() bool {
	return m.ActionType == UserGeneratedAction
}

// AuthorID returns the author's participant id without the "fbid:" prefix
func (m *Message) AuthorID() string {
	return ParticipantRef(m.Author)
}

// ConversationID returns the id the message belongs to: the other user for
// direct threads, the thread id for groups.
func (m *Message) ConversationID() string {
	if m.OtherUserID != nil && *m.OtherUserID != "" {
		return *m.OtherUserID
	}
	if m.ThreadID != nil {
		return *m.ThreadID
	}
	return ""
}

// StampString renders the message timestamp as a request cursor value
func (m *Message) StampString() string {
	return strconv.FormatInt(m.Timestamp, 10)
}

// AttachmentKind is the attach_type of an attachment
type AttachmentKind string

const (
	AttachPhoto         AttachmentKind = "photo"
	AttachAnimatedImage AttachmentKind = "animated_image"
	AttachVideo         AttachmentKind = "video"
	AttachFile          AttachmentKind = "file"
	AttachShare         AttachmentKind = "share"
	AttachError         AttachmentKind = "error"
)

// Attachment describes a payload attached to a message
type Attachment struct {
	Kind       AttachmentKind `json:"attach_type"`
	Name       string         `json:"name"`
	PreviewURL *string        `json:"preview_url,omitempty"`
	URL        *string        `json:"url,omitempty"`
	Share      *Share         `json:"share,omitempty"`
}

// Share is the nested descriptor of a share attachment
type Share struct {
	URI *string `json:"uri"`
}

// RetrievalURL returns the URL the attachment content is fetched from, or ""
// when it is not retrievable. Images use the preview URL, the rest the URL.
func (a *Attachment) RetrievalURL() string {
	var u *string
	switch a.Kind {
	case AttachPhoto, AttachAnimatedImage:
		u = a.PreviewURL
	case AttachVideo, AttachFile:
		u = a.URL
	}
	if u == nil {
		return ""
	}
	return *u
}

// Range is an inline link found in a message body
type Range struct {
	Entity RangeEntity `json:"entity"`
}

// RangeEntity holds the target of an inline link
type RangeEntity struct {
	URL string `json:"url"`
}

// ParticipantRef strips the "fbid:" prefix used by participant references
func ParticipantRef(ref string) string {
	return strings.TrimPrefix(ref, authorPrefix)
}
