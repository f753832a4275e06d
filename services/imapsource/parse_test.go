package imapsource

import (
	"testing"

	"github.com/emersion/go-imap"
	"github.com/stretchr/testify/assert"
)

func multipartStructure() *imap.BodyStructure {
	return &imap.BodyStructure{
		MIMEType:    "multipart",
		MIMESubType: "mixed",
		Parts: []*imap.BodyStructure{
			{
				MIMEType:    "text",
				MIMESubType: "plain",
			},
			{
				MIMEType:          "application",
				MIMESubType:       "pdf",
				Disposition:       "attachment",
				DispositionParams: map[string]string{"filename": "invoice.pdf"},
				Size:              2048,
			},
			{
				MIMEType:    "image",
				MIMESubType: "png",
				Disposition: "inline",
				Params:      map[string]string{"name": "logo.png"},
				Size:        512,
			},
			{
				MIMEType:    "multipart",
				MIMESubType: "alternative",
				Parts: []*imap.BodyStructure{
					{
						MIMEType:          "application",
						MIMESubType:       "xml",
						Disposition:       "ATTACHMENT",
						DispositionParams: map[string]string{"filename": "invoice.xml"},
						Size:              128,
					},
				},
			},
		},
	}
}

func TestAttachmentsFromStructure(t *testing.T) {
	attachments := attachmentsFromStructure(multipartStructure())

	assert.Len(t, attachments, 3)

	assert.Equal(t, "a0", attachments[0].ID)
	assert.Equal(t, "invoice.pdf", attachments[0].Name)
	assert.Equal(t, "application/pdf", attachments[0].ContentType)
	assert.Equal(t, int64(2048), attachments[0].Size)
	assert.False(t, attachments[0].IsInline)

	assert.Equal(t, "i0", attachments[1].ID)
	assert.Equal(t, "logo.png", attachments[1].Name)
	assert.True(t, attachments[1].IsInline)

	// Nested attachments get the next file ordinal, depth-first.
	assert.Equal(t, "a1", attachments[2].ID)
	assert.Equal(t, "invoice.xml", attachments[2].Name)
}

func TestAttachmentsFromStructure_BodyPartsIgnored(t *testing.T) {
	bs := &imap.BodyStructure{
		MIMEType:    "multipart",
		MIMESubType: "alternative",
		Parts: []*imap.BodyStructure{
			{MIMEType: "text", MIMESubType: "plain"},
			{MIMEType: "text", MIMESubType: "html"},
		},
	}

	assert.Empty(t, attachmentsFromStructure(bs))
}

func TestAttachmentsFromStructure_NilStructure(t *testing.T) {
	assert.Empty(t, attachmentsFromStructure(nil))
}

func TestPartFilename_Fallbacks(t *testing.T) {
	withDisposition := &imap.BodyStructure{
		MIMESubType:       "pdf",
		DispositionParams: map[string]string{"filename": "from-disposition.pdf"},
		Params:            map[string]string{"name": "from-params.pdf"},
	}
	assert.Equal(t, "from-disposition.pdf", partFilename(withDisposition))

	withParams := &imap.BodyStructure{
		MIMESubType: "pdf",
		Params:      map[string]string{"name": "from-params.pdf"},
	}
	assert.Equal(t, "from-params.pdf", partFilename(withParams))

	bare := &imap.BodyStructure{MIMESubType: "PDF"}
	assert.Equal(t, "attachment.pdf", partFilename(bare))
}
