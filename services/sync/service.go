package sync

import (
	"context"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailsink/mailsink/interfaces"
	"github.com/mailsink/mailsink/internal/logger"
	"github.com/mailsink/mailsink/internal/models"
	"github.com/mailsink/mailsink/internal/tracing"
	"github.com/mailsink/mailsink/internal/utils"
)

// SyncService drives one end-to-end pass: enumerate candidate messages,
// filter attachments, consult the ledger, download, upload, record. All of
// it strictly sequential; attachment N+1 is never started before N's ledger
// record (or skip) completed.
type SyncService struct {
	source        interfaces.MailSource
	sink          interfaces.DocumentSink
	filter        interfaces.InvoiceFilter
	ledger        interfaces.LedgerRepository
	archive       interfaces.StorageService
	titleTemplate string
	log           logger.Logger
}

type Dependencies struct {
	Source interfaces.MailSource
	Sink   interfaces.DocumentSink
	Filter interfaces.InvoiceFilter
	Ledger interfaces.LedgerRepository
	// Archive is optional; when set, raw bytes are mirrored to object
	// storage before the sink upload.
	Archive       interfaces.StorageService
	TitleTemplate string
	Log           logger.Logger
}

func NewSyncService(deps Dependencies) *SyncService {
	return &SyncService{
		source:        deps.Source,
		sink:          deps.Sink,
		filter:        deps.Filter,
		ledger:        deps.Ledger,
		archive:       deps.Archive,
		titleTemplate: deps.TitleTemplate,
		log:           deps.Log,
	}
}

type RunOptions struct {
	Since       *time.Time
	MaxMessages int
	DryRun      bool
}

// Run executes one sync pass and returns its counters. Any collaborator
// error aborts the run; the ledger keeps already-recorded work safe for the
// next attempt.
func (s *SyncService) Run(ctx context.Context, opts RunOptions) (*RunStats, error) {
	runID := utils.GenerateNanoIDWithPrefix("run", 12)
	ctx = tracing.WithRunID(ctx, runID)

	span, ctx := tracing.StartTracerSpan(ctx, "SyncService.Run")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("dry_run", opts.DryRun)

	s.log.Infof("starting sync run %s (dry_run=%v)", runID, opts.DryRun)

	stats := &RunStats{}

	iterator, err := s.source.Messages(ctx, opts.Since, opts.MaxMessages)
	if err != nil {
		tracing.TraceErr(span, err)
		return stats, errors.Wrap(err, "failed to enumerate messages")
	}

	for {
		item, err := iterator.Next(ctx)
		if err != nil {
			tracing.TraceErr(span, err)
			return stats, errors.Wrap(err, "message enumeration failed")
		}
		if item == nil {
			break
		}

		for i := range item.Attachments {
			if err := s.processAttachment(ctx, &item.Message, &item.Attachments[i], opts, stats); err != nil {
				tracing.TraceErr(span, err)
				return stats, err
			}
		}
	}

	s.log.Infof("run %s complete: %s", runID, stats)
	return stats, nil
}

func (s *SyncService) processAttachment(ctx context.Context, message *models.Message, attachment *models.Attachment, opts RunOptions, stats *RunStats) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SyncService.processAttachment")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMessage(span, message.ID)
	span.SetTag("attachment.name", attachment.Name)

	// Inline parts are never candidates; neither the filter nor the ledger
	// is consulted for them.
	if attachment.IsInline {
		s.log.Debugf("skipping inline attachment %s for message %s", attachment.Name, message.ID)
		span.SetTag("outcome", "skipped-inline")
		stats.skipInline()
		return nil
	}

	if !s.filter.LooksLikeInvoice(message, attachment) {
		span.SetTag("outcome", "skipped-filtered")
		stats.skipFiltered()
		return nil
	}

	// Ledger check happens before any download so duplicates cost nothing.
	seen, err := s.ledger.Seen(ctx, message.ID, attachment.ID)
	if err != nil {
		return err
	}
	if seen {
		s.log.Infof("already processed message %s attachment %s; skipping", message.InternetMessageID, attachment.Name)
		span.SetTag("outcome", "skipped-duplicate")
		stats.skipDuplicate()
		return nil
	}

	stats.Processed++

	if opts.DryRun {
		s.log.Infof("[dry-run] would upload %q from message %q", attachment.Name, message.Subject)
		span.SetTag("outcome", "dry-run")
		return nil
	}

	content, err := s.source.DownloadAttachment(ctx, message.ID, attachment.ID)
	if err != nil {
		return errors.Wrapf(err, "failed to download attachment %q", attachment.Name)
	}

	checksum := utils.Sha256Hex(content)

	if s.archive != nil {
		archiveKey := checksum + "/" + attachment.Name
		if err := s.archive.Upload(ctx, archiveKey, content, attachment.ContentType); err != nil {
			return errors.Wrapf(err, "failed to archive attachment %q", attachment.Name)
		}
		s.log.Debugf("archived attachment %q as %s", attachment.Name, archiveKey)
	}

	title := resolveTitle(s.titleTemplate, message.Subject, attachment.Name)

	documentID, err := s.sink.UploadDocument(ctx, &interfaces.DocumentUpload{
		Content:     content,
		Filename:    attachment.Name,
		Title:       title,
		ContentType: attachment.ContentType,
		CreatedAt:   message.ReceivedAt,
		Metadata:    documentMetadata(message, attachment, checksum),
	})
	if err != nil {
		return errors.Wrapf(err, "failed to upload attachment %q", attachment.Name)
	}

	if documentID == nil {
		s.log.Warnf("sink did not return a document id for attachment %q; recorded as processed anyway", attachment.Name)
	}

	if err := s.ledger.Record(ctx, &models.LedgerEntry{
		MessageID:         message.ID,
		AttachmentID:      attachment.ID,
		InternetMessageID: message.InternetMessageID,
		Checksum:          checksum,
		SinkDocumentID:    documentID,
		ProcessedAt:       utils.Now(),
	}); err != nil {
		return err
	}

	stats.Uploaded++
	span.SetTag("outcome", "uploaded")
	return nil
}

func documentMetadata(message *models.Message, attachment *models.Attachment, checksum string) map[string]interface{} {
	return map[string]interface{}{
		"sender_email":        message.SenderEmail,
		"sender_name":         message.SenderName,
		"subject":             message.Subject,
		"internet_message_id": message.InternetMessageID,
		"provider_message_id": message.ID,
		"web_link":            message.WebLink,
		"categories":          message.Categories,
		"checksum":            checksum,
		"content_type":        attachment.ContentType,
		"size":                attachment.Size,
	}
}
