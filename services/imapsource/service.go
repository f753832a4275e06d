package imapsource

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailsink/mailsink/config"
	"github.com/mailsink/mailsink/interfaces"
	localerrors "github.com/mailsink/mailsink/internal/errors"
	"github.com/mailsink/mailsink/internal/logger"
	"github.com/mailsink/mailsink/internal/models"
	"github.com/mailsink/mailsink/internal/tracing"
	"github.com/mailsink/mailsink/internal/utils"
)

// imapMailSource yields messages with file attachments from a plain IMAP
// mailbox. Attachment listings come from the BODYSTRUCTURE so nothing heavy
// is transferred before the orchestrator decides to download.
type imapMailSource struct {
	cfg    *config.IMAPConfig
	log    logger.Logger
	client *client.Client
}

func NewIMAPMailSource(cfg *config.IMAPConfig, log logger.Logger) interfaces.MailSource {
	return &imapMailSource{
		cfg: cfg,
		log: log,
	}
}

func (s *imapMailSource) ensureConnected() (*client.Client, error) {
	if s.client != nil {
		if err := s.client.Noop(); err == nil {
			return s.client, nil
		}
		s.client = nil
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var (
		c   *client.Client
		err error
	)
	if s.cfg.UseTLS {
		c, err = client.DialTLS(addr, nil)
	} else {
		c, err = client.Dial(addr)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s", addr)
	}

	if err := c.Login(s.cfg.Username, s.cfg.Password); err != nil {
		c.Logout()
		return nil, errors.Wrap(localerrors.ErrAuthenticationFailed, err.Error())
	}

	if _, err := c.Select(s.cfg.Folder, true); err != nil {
		c.Logout()
		return nil, errors.Wrapf(err, "failed to select folder %s", s.cfg.Folder)
	}

	s.client = c
	return c, nil
}

// Messages searches the folder and walks the matching UIDs newest first.
func (s *imapMailSource) Messages(ctx context.Context, since *time.Time, maxMessages int) (interfaces.MessageIterator, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "imapMailSource.Messages")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	c, err := s.ensureConnected()
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	criteria := imap.NewSearchCriteria()
	if since != nil {
		// IMAP SINCE has day granularity; the precise cutoff is re-checked
		// per message below.
		criteria.Since = since.UTC()
	}

	uids, err := c.UidSearch(criteria)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "imap search failed")
	}

	// Higher UIDs are newer.
	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	span.SetTag("matched", len(uids))

	return &messageIterator{
		source:      s,
		uids:        uids,
		since:       since,
		maxMessages: maxMessages,
	}, nil
}

type messageIterator struct {
	source      *imapMailSource
	uids        []uint32
	since       *time.Time
	maxMessages int
	yielded     int
}

func (it *messageIterator) Next(ctx context.Context) (*models.MessageWithAttachments, error) {
	if it.maxMessages > 0 && it.yielded >= it.maxMessages {
		return nil, nil
	}

	for len(it.uids) > 0 {
		uid := it.uids[0]
		it.uids = it.uids[1:]

		msg, err := it.source.fetchMessageMetadata(ctx, uid)
		if err != nil {
			return nil, err
		}
		if msg == nil {
			continue
		}
		if it.since != nil && msg.Message.ReceivedAt.Before(*it.since) {
			continue
		}
		if len(msg.Attachments) == 0 {
			continue
		}

		it.yielded++
		return msg, nil
	}

	return nil, nil
}

func (s *imapMailSource) fetchMessageMetadata(ctx context.Context, uid uint32) (*models.MessageWithAttachments, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "imapMailSource.fetchMessageMetadata")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("uid", uid)

	c, err := s.ensureConnected()
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, []imap.FetchItem{imap.FetchEnvelope, imap.FetchBodyStructure, imap.FetchUid}, messages)
	}()

	var fetched *imap.Message
	for msg := range messages {
		fetched = msg
	}
	if err := <-done; err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(err, "failed to fetch message %d", uid)
	}
	if fetched == nil || fetched.Envelope == nil {
		return nil, nil
	}

	message := envelopeToMessage(uid, fetched.Envelope)
	attachments := attachmentsFromStructure(fetched.BodyStructure)

	return &models.MessageWithAttachments{
		Message:     *message,
		Attachments: attachments,
	}, nil
}

func envelopeToMessage(uid uint32, envelope *imap.Envelope) *models.Message {
	message := &models.Message{
		ID:                fmt.Sprintf("%d", uid),
		InternetMessageID: utils.NormalizeMessageID(envelope.MessageId),
		Subject:           envelope.Subject,
		ReceivedAt:        utils.EnsureUTC(envelope.Date),
	}
	if len(envelope.From) > 0 {
		sender := envelope.From[0]
		message.SenderEmail = strings.ToLower(sender.Address())
		message.SenderName = sender.PersonalName
	}
	return message
}
