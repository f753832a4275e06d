package models

import (
	"time"
)

// Message carries the metadata the pipeline needs about one inbox message.
// Immutable once retrieved from the mail source.
type Message struct {
	// Provider-scoped identifier. Opaque and not necessarily portable
	// across mailboxes, which is why InternetMessageID is kept alongside.
	ID                string
	InternetMessageID string
	Subject           string
	SenderEmail       string
	SenderName        string
	ReceivedAt        time.Time
	WebLink           string
	Categories        []string
	BodyPreview       string
}

// Attachment describes one file attachment; its ID is scoped to the parent
// message.
type Attachment struct {
	ID          string
	Name        string
	ContentType string
	Size        int64
	IsInline    bool
}

// MessageWithAttachments is what mail sources yield: a message that is
// guaranteed to carry at least one file attachment.
type MessageWithAttachments struct {
	Message     Message
	Attachments []Attachment
}
