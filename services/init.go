package services

import (
	"context"

	"github.com/pkg/errors"

	"github.com/mailsink/mailsink/config"
	"github.com/mailsink/mailsink/interfaces"
	localerrors "github.com/mailsink/mailsink/internal/errors"
	"github.com/mailsink/mailsink/internal/logger"
	"github.com/mailsink/mailsink/internal/repository"
	"github.com/mailsink/mailsink/services/filter"
	"github.com/mailsink/mailsink/services/graph"
	"github.com/mailsink/mailsink/services/imapsource"
	"github.com/mailsink/mailsink/services/paperless"
	"github.com/mailsink/mailsink/services/storage"
	"github.com/mailsink/mailsink/services/sync"
)

type Services struct {
	MailSource     interfaces.MailSource
	DocumentSink   interfaces.DocumentSink
	InvoiceFilter  interfaces.InvoiceFilter
	ArchiveStorage interfaces.StorageService
	SyncService    *sync.SyncService
}

func InitServices(ctx context.Context, cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	invoiceFilter, err := filter.NewInvoiceFilterService(filter.Options{
		SubjectKeywords:  cfg.FilterConfig.SubjectKeywords(),
		FilenamePatterns: cfg.FilterConfig.FilenamePatterns(),
		SenderWhitelist:  cfg.FilterConfig.SenderWhitelist(),
		AllowAll:         cfg.FilterConfig.ProcessAllAttachments,
	}, log)
	if err != nil {
		return nil, err
	}

	var mailSource interfaces.MailSource
	switch cfg.AppConfig.MailSource {
	case config.MailSourceGraph:
		mailSource, err = graph.NewGraphMailSource(ctx, cfg.GraphConfig, log)
		if err != nil {
			return nil, err
		}
	case config.MailSourceIMAP:
		mailSource = imapsource.NewIMAPMailSource(cfg.IMAPConfig, log)
	default:
		return nil, errors.Wrapf(localerrors.ErrInvalidConfig, "unknown mail source %q", cfg.AppConfig.MailSource)
	}

	documentSink := paperless.NewPaperlessService(cfg.PaperlessConfig, log)

	var archiveStorage interfaces.StorageService
	if cfg.ArchiveConfig.Enabled {
		archiveStorage = storage.NewArchiveStorageService(cfg.ArchiveConfig)
	}

	syncService := sync.NewSyncService(sync.Dependencies{
		Source:        mailSource,
		Sink:          documentSink,
		Filter:        invoiceFilter,
		Ledger:        repos.LedgerRepository,
		Archive:       archiveStorage,
		TitleTemplate: cfg.PaperlessConfig.TitleTemplate,
		Log:           log,
	})

	return &Services{
		MailSource:     mailSource,
		DocumentSink:   documentSink,
		InvoiceFilter:  invoiceFilter,
		ArchiveStorage: archiveStorage,
		SyncService:    syncService,
	}, nil
}
