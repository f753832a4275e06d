package repository

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mailsink/mailsink/interfaces"
	"github.com/mailsink/mailsink/internal/models"
	"github.com/mailsink/mailsink/internal/tracing"
	"github.com/mailsink/mailsink/internal/utils"
)

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) interfaces.LedgerRepository {
	return &ledgerRepository{db: db}
}

// Seen reports whether the composite key is already in the ledger.
func (r *ledgerRepository) Seen(ctx context.Context, messageID, attachmentID string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ledgerRepository.Seen")
	defer span.Finish()
	tracing.SetDefaultLedgerRepositorySpanTags(ctx, span)
	tracing.TagMessage(span, messageID)

	var count int64
	result := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Where("message_id = ? AND attachment_id = ?", messageID, attachmentID).
		Count(&count)

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return false, fmt.Errorf("failed to check ledger: %w", result.Error)
	}

	span.SetTag("seen", count > 0)
	return count > 0, nil
}

// Record upserts the entry on its composite primary key. Calling it twice
// with the same key overwrites the non-key fields, it never creates a
// second row.
func (r *ledgerRepository) Record(ctx context.Context, entry *models.LedgerEntry) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ledgerRepository.Record")
	defer span.Finish()
	tracing.SetDefaultLedgerRepositorySpanTags(ctx, span)
	tracing.TagMessage(span, entry.MessageID)

	if entry.ProcessedAt.IsZero() {
		entry.ProcessedAt = utils.Now()
	}

	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "message_id"}, {Name: "attachment_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"internet_message_id", "checksum", "sink_document_id", "processed_at",
			}),
		}).
		Create(entry)

	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return fmt.Errorf("failed to record ledger entry: %w", result.Error)
	}

	return nil
}

// Get returns the stored entry for the composite key, or (nil, nil) when
// the pair has never been processed.
func (r *ledgerRepository) Get(ctx context.Context, messageID, attachmentID string) (*models.LedgerEntry, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "ledgerRepository.Get")
	defer span.Finish()
	tracing.SetDefaultLedgerRepositorySpanTags(ctx, span)
	tracing.TagMessage(span, messageID)

	var entry models.LedgerEntry
	result := r.db.WithContext(ctx).
		Where("message_id = ? AND attachment_id = ?", messageID, attachmentID).
		First(&entry)

	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, nil
		}
		tracing.TraceErr(span, result.Error)
		return nil, fmt.Errorf("failed to get ledger entry: %w", result.Error)
	}

	return &entry, nil
}
