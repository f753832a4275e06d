package interfaces

import (
	"context"
	"time"
)

// DocumentUpload is everything the sink needs to ingest one document.
type DocumentUpload struct {
	Content     []byte
	Filename    string
	Title       string
	ContentType string
	CreatedAt   time.Time
	Metadata    map[string]interface{}
}

// DocumentSink is the document-management upload target. The returned
// document id is optional: some sinks queue the ingestion and respond with
// a body no id can be parsed from.
type DocumentSink interface {
	UploadDocument(ctx context.Context, upload *DocumentUpload) (*int64, error)
}
