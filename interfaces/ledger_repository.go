package interfaces

import (
	"context"

	"github.com/mailsink/mailsink/internal/models"
)

// LedgerRepository is the single source of truth for "already handled".
type LedgerRepository interface {
	// Seen reports whether a ledger entry exists for the composite key.
	// Cheap; safe to call before any download happens.
	Seen(ctx context.Context, messageID, attachmentID string) (bool, error)
	// Record upserts the entry keyed on (message id, attachment id).
	// Last write wins; it never produces a duplicate row.
	Record(ctx context.Context, entry *models.LedgerEntry) error
	// Get returns the stored entry, or (nil, nil) when none exists.
	Get(ctx context.Context, messageID, attachmentID string) (*models.LedgerEntry, error)
}
