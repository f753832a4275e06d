package interfaces

import (
	"context"
	"time"

	"github.com/mailsink/mailsink/internal/models"
)

// MessageIterator walks one enumeration of the mailbox. It is forward-only
// and not restartable; Next returns (nil, nil) once the sequence is
// exhausted.
type MessageIterator interface {
	Next(ctx context.Context) (*models.MessageWithAttachments, error)
}

// MailSource is the capability surface the orchestrator consumes from a
// mail provider. Implementations only yield messages that carry file
// attachments and handle pagination themselves.
type MailSource interface {
	// Messages starts an enumeration, newest first, optionally bounded by a
	// lower received-time cutoff and a maximum message count.
	Messages(ctx context.Context, since *time.Time, maxMessages int) (MessageIterator, error)
	// DownloadAttachment fetches the raw bytes of one attachment.
	DownloadAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error)
}
