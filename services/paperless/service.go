package paperless

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailsink/mailsink/config"
	"github.com/mailsink/mailsink/interfaces"
	localerrors "github.com/mailsink/mailsink/internal/errors"
	"github.com/mailsink/mailsink/internal/logger"
	"github.com/mailsink/mailsink/internal/tracing"
	"github.com/mailsink/mailsink/internal/utils"
)

const uploadTimeout = 60 * time.Second

// paperlessService uploads documents and metadata to a Paperless-ngx
// instance.
type paperlessService struct {
	baseURL         string
	apiToken        string
	documentTypeID  *int64
	correspondentID *int64
	tagIDs          []string
	httpClient      *http.Client
	log             logger.Logger
}

func NewPaperlessService(cfg *config.PaperlessConfig, log logger.Logger) interfaces.DocumentSink {
	return &paperlessService{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		apiToken:        cfg.APIToken,
		documentTypeID:  cfg.DocumentTypeID,
		correspondentID: cfg.CorrespondentID,
		tagIDs:          cfg.TagIDs(),
		httpClient:      &http.Client{Timeout: uploadTimeout},
		log:             log,
	}
}

// UploadDocument posts the document to Paperless and returns the document id
// when one can be parsed from the response. A response without an id is not
// an error; the caller decides how to handle the nil.
func (s *paperlessService) UploadDocument(ctx context.Context, upload *interfaces.DocumentUpload) (*int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "paperlessService.UploadDocument")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	span.SetTag("filename", upload.Filename)

	body, contentType, err := s.buildRequestBody(upload)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	url := s.baseURL + "/api/documents/post_document/"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+s.apiToken)
	req.Header.Set("Content-Type", contentType)

	s.log.Infof("uploading %q to paperless", upload.Title)
	resp, err := s.httpClient.Do(req)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "paperless upload failed")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrap(err, "failed to read paperless response")
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		err := errors.Wrapf(localerrors.ErrAuthenticationFailed, "paperless rejected the api token (%d)", resp.StatusCode)
		tracing.TraceErr(span, err)
		return nil, err
	}
	if resp.StatusCode >= 400 {
		err := errors.Errorf("paperless upload failed (%d): %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
		tracing.TraceErr(span, err)
		return nil, err
	}

	documentID := extractDocumentID(respBody)
	if documentID == nil {
		s.log.Warnf("paperless response did not include a document id; response=%s", strings.TrimSpace(string(respBody)))
	}
	return documentID, nil
}

func (s *paperlessService) buildRequestBody(upload *interfaces.DocumentUpload) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	fields := map[string]string{
		"title":   upload.Title,
		"created": utils.FormatISOUTC(upload.CreatedAt),
	}
	if upload.Metadata != nil {
		metadataJSON, err := json.Marshal(upload.Metadata)
		if err != nil {
			return nil, "", errors.Wrap(err, "failed to encode document metadata")
		}
		fields["metadata"] = string(metadataJSON)
	}
	if s.documentTypeID != nil {
		fields["document_type"] = strconv.FormatInt(*s.documentTypeID, 10)
	}
	if s.correspondentID != nil {
		fields["correspondent"] = strconv.FormatInt(*s.correspondentID, 10)
	}
	if len(s.tagIDs) > 0 {
		fields["tags"] = strings.Join(s.tagIDs, ",")
	}

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			return nil, "", err
		}
	}

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="document"; filename=%q`, upload.Filename))
	header.Set("Content-Type", contentType)

	part, err := writer.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(upload.Content); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

// extractDocumentID tolerates the response shapes Paperless deployments
// produce: a JSON object with "id" or "document.id", or a bare numeric
// text body. Anything else yields nil.
func extractDocumentID(body []byte) *int64 {
	var payload map[string]interface{}
	if err := json.Unmarshal(body, &payload); err == nil {
		if id := numericField(payload["id"]); id != nil {
			return id
		}
		if document, ok := payload["document"].(map[string]interface{}); ok {
			return numericField(document["id"])
		}
		return nil
	}

	trimmed := strings.Trim(strings.TrimSpace(string(body)), `"`)
	if id, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return &id
	}
	return nil
}

func numericField(value interface{}) *int64 {
	switch v := value.(type) {
	case float64:
		id := int64(v)
		return &id
	case string:
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return &id
		}
	}
	return nil
}
