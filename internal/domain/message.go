package domain

import (
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxContentLength is the longest message body accepted, in characters.
const MaxContentLength = 4000

type Message struct {
	ID        uuid.UUID  `json:"id"`
	RoomID    uuid.UUID  `json:"room_id"`
	AuthorID  uuid.UUID  `json:"author_id"`
	Content   *string    `json:"content"`
	FileURL   *string    `json:"file_url"`
	Sequence  int64      `json:"sequence"`
	Version   int64      `json:"version"`
	Deleted   bool       `json:"deleted"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	// Derived from FileURL
	AttachmentKind AttachmentKind `json:"attachment_kind,omitempty"`
	// Joined fields
	AuthorUsername    string     `json:"author_username,omitempty"`
	AuthorDisplayName string     `json:"author_display_name,omitempty"`
	AuthorRole        MemberRole `json:"author_role,omitempty"`
}

// HasFile reports whether the message is an attachment.
func (m *Message) HasFile() bool {
	return m.FileURL != nil && *m.FileURL != ""
}

// Editable reports whether the content of the message may still change.
func (m *Message) Editable() bool {
	return !m.Deleted && !m.HasFile()
}

// Tombstone turns the message into its soft-deleted form.
func (m *Message) Tombstone(now time.Time) {
	m.Deleted = true
	m.Content = nil
	m.FileURL = nil
	m.AttachmentKind = ""
	m.Version++
	m.UpdatedAt = now
}

// Decorate fills derived fields after the message is loaded.
func (m *Message) Decorate() {
	m.AttachmentKind = ""
	if m.HasFile() {
		m.AttachmentKind = AttachmentKindOf(*m.FileURL)
	}
}

// AttachmentKind is a rendering hint for clients, never used for validation.
type AttachmentKind string

const (
	AttachmentImage AttachmentKind = "image"
	AttachmentPDF   AttachmentKind = "pdf"
	AttachmentAudio AttachmentKind = "audio"
	AttachmentVideo AttachmentKind = "video"
	AttachmentFile  AttachmentKind = "file"
)

var attachmentSuffixes = map[string]AttachmentKind{
	"jpg":  AttachmentImage,
	"jpeg": AttachmentImage,
	"png":  AttachmentImage,
	"gif":  AttachmentImage,
	"webp": AttachmentImage,
	"pdf":  AttachmentPDF,
	"mp3":  AttachmentAudio,
	"ogg":  AttachmentAudio,
	"wav":  AttachmentAudio,
	"mp4":  AttachmentVideo,
	"avi":  AttachmentVideo,
	"mkv":  AttachmentVideo,
	"webm": AttachmentVideo,
}

// AttachmentKindOf infers the attachment kind from the URL suffix.
func AttachmentKindOf(fileURL string) AttachmentKind {
	p := fileURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	if kind, ok := attachmentSuffixes[ext]; ok {
		return kind
	}
	return AttachmentFile
}

// MessagePage is one page of room history in ascending sequence order.
type MessagePage struct {
	Messages   []Message `json:"messages"`
	HasMore    bool      `json:"has_more"`
	NextCursor *int64    `json:"next_cursor,omitempty"`
}
