package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"

	"github.com/mailsink/mailsink/config"
	"github.com/mailsink/mailsink/interfaces"
	localerrors "github.com/mailsink/mailsink/internal/errors"
	"github.com/mailsink/mailsink/internal/logger"
	"github.com/mailsink/mailsink/internal/models"
	"github.com/mailsink/mailsink/internal/tracing"
	"github.com/mailsink/mailsink/internal/utils"
)

const (
	graphBaseURL       = "https://graph.microsoft.com/v1.0"
	requestTimeout     = 30 * time.Second
	messageSelect      = "id,subject,internetMessageId,from,receivedDateTime,webLink,categories,bodyPreview,hasAttachments"
	attachmentsSelect  = "id,name,contentType,size,isInline"
	fileAttachmentType = "#microsoft.graph.fileAttachment"
)

// graphMailSource yields messages with file attachments from a Microsoft
// Graph mailbox.
type graphMailSource struct {
	cfg        *config.GraphConfig
	httpClient *http.Client
	baseURL    string
	log        logger.Logger
}

func NewGraphMailSource(ctx context.Context, cfg *config.GraphConfig, log logger.Logger) (interfaces.MailSource, error) {
	tokenSource, err := newTokenSource(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	httpClient := oauth2.NewClient(ctx, tokenSource)
	httpClient.Timeout = requestTimeout

	return &graphMailSource{
		cfg:        cfg,
		httpClient: httpClient,
		baseURL:    graphBaseURL,
		log:        log,
	}, nil
}

// Messages starts a paged enumeration, newest first. When a fixed mailbox is
// addressed the attachment and time bounds are pushed into a server-side
// $filter; otherwise the cutoff is applied client-side while consuming the
// descending sequence.
func (s *graphMailSource) Messages(ctx context.Context, since *time.Time, maxMessages int) (interfaces.MessageIterator, error) {
	serverFiltered := s.cfg.Mailbox != ""

	params := url.Values{}
	params.Set("$select", messageSelect)
	params.Set("$orderby", "receivedDateTime desc")
	params.Set("$top", strconv.Itoa(s.cfg.PageSize))

	if serverFiltered {
		filterClauses := []string{"hasAttachments eq true"}
		if since != nil {
			filterClauses = append(filterClauses, "receivedDateTime ge "+utils.FormatISOUTC(*since))
		}
		params.Set("$filter", strings.Join(filterClauses, " and "))
	}

	firstURL := fmt.Sprintf("%s%s/messages?%s", s.baseURL, s.messagesRoot(), params.Encode())

	return &messageIterator{
		source:         s,
		nextURL:        firstURL,
		since:          since,
		maxMessages:    maxMessages,
		serverFiltered: serverFiltered,
	}, nil
}

// DownloadAttachment fetches the raw bytes of one attachment.
func (s *graphMailSource) DownloadAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "graphMailSource.DownloadAttachment")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMessage(span, messageID)

	requestURL := fmt.Sprintf("%s%s/messages/%s/attachments/%s/$value",
		s.baseURL, s.messagesRoot(), url.PathEscape(messageID), url.PathEscape(attachmentID))

	body, err := s.get(ctx, requestURL)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	span.SetTag("size", len(body))
	return body, nil
}

func (s *graphMailSource) messagesRoot() string {
	if s.cfg.Mailbox != "" {
		return "/users/" + url.PathEscape(s.cfg.Mailbox)
	}
	return "/me"
}

func (s *graphMailSource) get(ctx context.Context, requestURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("client-request-id", uuid.New().String())

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "graph request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read graph response")
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, errors.Wrapf(localerrors.ErrAuthenticationFailed, "graph returned %d", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		s.log.Errorf("graph request failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
		return nil, errors.Errorf("graph request failed (%d)", resp.StatusCode)
	}

	return body, nil
}

func (s *graphMailSource) getJSON(ctx context.Context, requestURL string, target interface{}) error {
	body, err := s.get(ctx, requestURL)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, target)
}

// listFileAttachments pages through a message's attachments, keeping only
// real file attachments.
func (s *graphMailSource) listFileAttachments(ctx context.Context, messageID string) ([]models.Attachment, error) {
	params := url.Values{}
	params.Set("$select", attachmentsSelect)
	nextURL := fmt.Sprintf("%s%s/messages/%s/attachments?%s",
		s.baseURL, s.messagesRoot(), url.PathEscape(messageID), params.Encode())

	var attachments []models.Attachment
	for nextURL != "" {
		var page attachmentsPage
		if err := s.getJSON(ctx, nextURL, &page); err != nil {
			return nil, err
		}
		for _, raw := range page.Value {
			if raw.ODataType != fileAttachmentType {
				continue
			}
			attachments = append(attachments, models.Attachment{
				ID:          raw.ID,
				Name:        raw.Name,
				ContentType: raw.ContentType,
				Size:        raw.Size,
				IsInline:    raw.IsInline,
			})
		}
		nextURL = page.NextLink
	}

	return attachments, nil
}

type messageIterator struct {
	source         *graphMailSource
	nextURL        string
	pending        []graphMessage
	since          *time.Time
	maxMessages    int
	serverFiltered bool
	yielded        int
	done           bool
}

// Next returns the next message that carries at least one file attachment,
// or (nil, nil) once the sequence is exhausted. It is forward-only; the
// cursor cannot be rewound.
func (it *messageIterator) Next(ctx context.Context) (*models.MessageWithAttachments, error) {
	if it.done {
		return nil, nil
	}
	if it.maxMessages > 0 && it.yielded >= it.maxMessages {
		it.done = true
		return nil, nil
	}

	for {
		if len(it.pending) == 0 {
			if it.nextURL == "" {
				it.done = true
				return nil, nil
			}
			var page messagesPage
			if err := it.source.getJSON(ctx, it.nextURL, &page); err != nil {
				return nil, err
			}
			it.pending = page.Value
			it.nextURL = page.NextLink
			continue
		}

		raw := it.pending[0]
		it.pending = it.pending[1:]

		if !raw.HasAttachments {
			continue
		}

		message, err := raw.toMessage()
		if err != nil {
			return nil, err
		}

		// Pages arrive newest first, so the first message past the cutoff
		// ends the enumeration.
		if !it.serverFiltered && it.since != nil && message.ReceivedAt.Before(*it.since) {
			it.done = true
			return nil, nil
		}

		attachments, err := it.source.listFileAttachments(ctx, message.ID)
		if err != nil {
			return nil, err
		}
		if len(attachments) == 0 {
			continue
		}

		it.yielded++
		return &models.MessageWithAttachments{
			Message:     *message,
			Attachments: attachments,
		}, nil
	}
}

type messagesPage struct {
	Value    []graphMessage `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

type graphMessage struct {
	ID                string   `json:"id"`
	InternetMessageID string   `json:"internetMessageId"`
	Subject           string   `json:"subject"`
	ReceivedDateTime  string   `json:"receivedDateTime"`
	WebLink           string   `json:"webLink"`
	Categories        []string `json:"categories"`
	BodyPreview       string   `json:"bodyPreview"`
	HasAttachments    bool     `json:"hasAttachments"`
	From              *struct {
		EmailAddress struct {
			Name    string `json:"name"`
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
}

func (m graphMessage) toMessage() (*models.Message, error) {
	receivedAt, err := utils.ParseISOTime(m.ReceivedDateTime)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid receivedDateTime for message %s", m.ID)
	}

	message := &models.Message{
		ID:                m.ID,
		InternetMessageID: m.InternetMessageID,
		Subject:           m.Subject,
		ReceivedAt:        receivedAt,
		WebLink:           m.WebLink,
		Categories:        m.Categories,
		BodyPreview:       m.BodyPreview,
	}
	if m.From != nil {
		message.SenderEmail = m.From.EmailAddress.Address
		message.SenderName = m.From.EmailAddress.Name
	}
	return message, nil
}

type attachmentsPage struct {
	Value    []graphAttachment `json:"value"`
	NextLink string            `json:"@odata.nextLink"`
}

type graphAttachment struct {
	ODataType   string `json:"@odata.type"`
	ID          string `json:"id"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
	IsInline    bool   `json:"isInline"`
}
