package graph

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/mailsink/mailsink/config"
	localerrors "github.com/mailsink/mailsink/internal/errors"
	"github.com/mailsink/mailsink/internal/logger"
)

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func newTestSource(serverURL, mailbox string) *graphMailSource {
	return &graphMailSource{
		cfg: &config.GraphConfig{
			Mailbox:  mailbox,
			PageSize: 25,
		},
		httpClient: &http.Client{},
		baseURL:    serverURL,
		log:        getLogger(),
	}
}

func messageJSON(id, subject, receivedAt string, hasAttachments bool) string {
	return fmt.Sprintf(`{
		"id": %q,
		"subject": %q,
		"internetMessageId": "<%s@mail.example.com>",
		"receivedDateTime": %q,
		"hasAttachments": %v,
		"from": {"emailAddress": {"name": "Acme Billing", "address": "billing@acme.com"}}
	}`, id, subject, id, receivedAt, hasAttachments)
}

func fileAttachmentJSON(id, name string) string {
	return fmt.Sprintf(`{
		"@odata.type": "#microsoft.graph.fileAttachment",
		"id": %q,
		"name": %q,
		"contentType": "application/pdf",
		"size": 1024,
		"isInline": false
	}`, id, name)
}

func TestMessages_PagesThroughNextLink(t *testing.T) {
	// Arrange
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/attachments"):
			fmt.Fprintf(w, `{"value": [%s]}`, fileAttachmentJSON("att-1", "invoice.pdf"))
		case r.URL.Query().Get("page") == "2":
			fmt.Fprintf(w, `{"value": [%s]}`, messageJSON("msg-2", "Invoice B", "2026-03-01T09:00:00Z", true))
		default:
			fmt.Fprintf(w, `{"value": [%s], "@odata.nextLink": %q}`,
				messageJSON("msg-1", "Invoice A", "2026-03-01T10:00:00Z", true),
				server.URL+"/v1.0/me/messages?page=2")
		}
	}))
	defer server.Close()

	source := newTestSource(server.URL, "")
	iterator, err := source.Messages(context.Background(), nil, 0)
	assert.NoError(t, err)

	// Act
	first, err := iterator.Next(context.Background())
	assert.NoError(t, err)
	second, err := iterator.Next(context.Background())
	assert.NoError(t, err)
	third, err := iterator.Next(context.Background())
	assert.NoError(t, err)

	// Assert
	assert.NotNil(t, first)
	assert.Equal(t, "msg-1", first.Message.ID)
	assert.Equal(t, "billing@acme.com", first.Message.SenderEmail)
	assert.Len(t, first.Attachments, 1)
	assert.NotNil(t, second)
	assert.Equal(t, "msg-2", second.Message.ID)
	assert.Nil(t, third)
}

func TestMessages_SkipsMessagesWithoutAttachments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/attachments") {
			fmt.Fprintf(w, `{"value": [%s]}`, fileAttachmentJSON("att-1", "invoice.pdf"))
			return
		}
		fmt.Fprintf(w, `{"value": [%s, %s]}`,
			messageJSON("msg-1", "No files here", "2026-03-01T10:00:00Z", false),
			messageJSON("msg-2", "Invoice", "2026-03-01T09:00:00Z", true))
	}))
	defer server.Close()

	source := newTestSource(server.URL, "")
	iterator, err := source.Messages(context.Background(), nil, 0)
	assert.NoError(t, err)

	item, err := iterator.Next(context.Background())
	assert.NoError(t, err)
	assert.NotNil(t, item)
	assert.Equal(t, "msg-2", item.Message.ID)
}

func TestMessages_ClientSideCutoffEndsEnumeration(t *testing.T) {
	// Without a fixed mailbox the cutoff is applied while consuming the
	// newest-first sequence.
	attachmentCalls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/attachments") {
			attachmentCalls++
			fmt.Fprintf(w, `{"value": [%s]}`, fileAttachmentJSON("att-1", "invoice.pdf"))
			return
		}
		assert.Empty(t, r.URL.Query().Get("$filter"))
		fmt.Fprintf(w, `{"value": [%s, %s]}`,
			messageJSON("msg-new", "Recent", "2026-03-10T10:00:00Z", true),
			messageJSON("msg-old", "Ancient", "2026-01-01T10:00:00Z", true))
	}))
	defer server.Close()

	source := newTestSource(server.URL, "")
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	iterator, err := source.Messages(context.Background(), &since, 0)
	assert.NoError(t, err)

	first, err := iterator.Next(context.Background())
	assert.NoError(t, err)
	second, err := iterator.Next(context.Background())
	assert.NoError(t, err)

	assert.NotNil(t, first)
	assert.Equal(t, "msg-new", first.Message.ID)
	assert.Nil(t, second)
	assert.Equal(t, 1, attachmentCalls)
}

func TestMessages_FixedMailboxUsesServerFilter(t *testing.T) {
	var gotFilter, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/attachments") {
			fmt.Fprint(w, `{"value": []}`)
			return
		}
		gotFilter = r.URL.Query().Get("$filter")
		gotPath = r.URL.Path
		fmt.Fprint(w, `{"value": []}`)
	}))
	defer server.Close()

	source := newTestSource(server.URL, "billing@contoso.com")
	since := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	iterator, err := source.Messages(context.Background(), &since, 0)
	assert.NoError(t, err)

	item, err := iterator.Next(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, item)
	assert.Equal(t, "hasAttachments eq true and receivedDateTime ge 2026-03-01T00:00:00Z", gotFilter)
	assert.Contains(t, gotPath, "/users/billing@contoso.com/messages")
}

func TestMessages_FiltersNonFileAttachments(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/attachments") {
			fmt.Fprintf(w, `{"value": [
				{"@odata.type": "#microsoft.graph.itemAttachment", "id": "att-item", "name": "forwarded mail"},
				%s
			]}`, fileAttachmentJSON("att-file", "invoice.pdf"))
			return
		}
		fmt.Fprintf(w, `{"value": [%s]}`, messageJSON("msg-1", "Invoice", "2026-03-01T10:00:00Z", true))
	}))
	defer server.Close()

	source := newTestSource(server.URL, "")
	iterator, err := source.Messages(context.Background(), nil, 0)
	assert.NoError(t, err)

	item, err := iterator.Next(context.Background())
	assert.NoError(t, err)
	assert.NotNil(t, item)
	assert.Len(t, item.Attachments, 1)
	assert.Equal(t, "att-file", item.Attachments[0].ID)
}

func TestMessages_SkipsMessagesWhereOnlyItemAttachmentsExist(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/attachments") {
			if strings.Contains(r.URL.Path, "msg-1") {
				fmt.Fprint(w, `{"value": [{"@odata.type": "#microsoft.graph.itemAttachment", "id": "att-item", "name": "forwarded"}]}`)
			} else {
				fmt.Fprintf(w, `{"value": [%s]}`, fileAttachmentJSON("att-1", "invoice.pdf"))
			}
			return
		}
		fmt.Fprintf(w, `{"value": [%s, %s]}`,
			messageJSON("msg-1", "Forwarded mail", "2026-03-01T10:00:00Z", true),
			messageJSON("msg-2", "Invoice", "2026-03-01T09:00:00Z", true))
	}))
	defer server.Close()

	source := newTestSource(server.URL, "")
	iterator, err := source.Messages(context.Background(), nil, 0)
	assert.NoError(t, err)

	item, err := iterator.Next(context.Background())
	assert.NoError(t, err)
	assert.NotNil(t, item)
	assert.Equal(t, "msg-2", item.Message.ID)
}

func TestMessages_MaxMessagesCapsEnumeration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/attachments") {
			fmt.Fprintf(w, `{"value": [%s]}`, fileAttachmentJSON("att-1", "invoice.pdf"))
			return
		}
		fmt.Fprintf(w, `{"value": [%s, %s]}`,
			messageJSON("msg-1", "Invoice A", "2026-03-01T10:00:00Z", true),
			messageJSON("msg-2", "Invoice B", "2026-03-01T09:00:00Z", true))
	}))
	defer server.Close()

	source := newTestSource(server.URL, "")
	iterator, err := source.Messages(context.Background(), nil, 1)
	assert.NoError(t, err)

	first, err := iterator.Next(context.Background())
	assert.NoError(t, err)
	second, err := iterator.Next(context.Background())
	assert.NoError(t, err)

	assert.NotNil(t, first)
	assert.Nil(t, second)
}

func TestDownloadAttachment_ReturnsRawBytes(t *testing.T) {
	content := []byte("%PDF-1.4 raw bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/me/messages/msg-1/attachments/att-1/$value", r.URL.Path)
		assert.NotEmpty(t, r.Header.Get("client-request-id"))
		w.Write(content)
	}))
	defer server.Close()

	source := newTestSource(server.URL, "")

	got, err := source.DownloadAttachment(context.Background(), "msg-1", "att-1")

	assert.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestDownloadAttachment_AuthFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	source := newTestSource(server.URL, "")

	_, err := source.DownloadAttachment(context.Background(), "msg-1", "att-1")

	assert.Error(t, err)
	assert.True(t, errors.Is(err, localerrors.ErrAuthenticationFailed))
}
