package imapsource

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/jhillyerd/enmime"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailsink/mailsink/internal/models"
	"github.com/mailsink/mailsink/internal/tracing"
)

// Attachment ids are ordinals over the depth-first walk: "a<n>" for file
// attachments, "i<n>" for inline parts. The same ordering rule is applied
// when the full message is parsed for download, so the ids stay stable
// between listing and fetch.
const (
	attachmentIDPrefix = "a"
	inlineIDPrefix     = "i"
)

// attachmentsFromStructure lists file attachments from a BODYSTRUCTURE
// without transferring any content.
func attachmentsFromStructure(bs *imap.BodyStructure) []models.Attachment {
	var attachments []models.Attachment
	var attachedIdx, inlineIdx int
	walkStructure(bs, func(part *imap.BodyStructure) {
		inline := strings.EqualFold(part.Disposition, "inline")

		var id string
		if inline {
			id = fmt.Sprintf("%s%d", inlineIDPrefix, inlineIdx)
			inlineIdx++
		} else {
			id = fmt.Sprintf("%s%d", attachmentIDPrefix, attachedIdx)
			attachedIdx++
		}

		attachments = append(attachments, models.Attachment{
			ID:          id,
			Name:        partFilename(part),
			ContentType: fmt.Sprintf("%s/%s", strings.ToLower(part.MIMEType), strings.ToLower(part.MIMESubType)),
			Size:        int64(part.Size),
			IsInline:    inline,
		})
	})
	return attachments
}

func walkStructure(bs *imap.BodyStructure, visit func(*imap.BodyStructure)) {
	if bs == nil {
		return
	}
	if strings.EqualFold(bs.Disposition, "attachment") || strings.EqualFold(bs.Disposition, "inline") {
		visit(bs)
	}
	for _, part := range bs.Parts {
		walkStructure(part, visit)
	}
}

func partFilename(part *imap.BodyStructure) string {
	if part.DispositionParams != nil {
		if filename, ok := part.DispositionParams["filename"]; ok && filename != "" {
			return filename
		}
	}
	if part.Params != nil {
		if name, ok := part.Params["name"]; ok && name != "" {
			return name
		}
	}
	return fmt.Sprintf("attachment.%s", strings.ToLower(part.MIMESubType))
}

// DownloadAttachment fetches the full raw message and pulls the one
// attachment out of the parsed MIME tree.
func (s *imapMailSource) DownloadAttachment(ctx context.Context, messageID, attachmentID string) ([]byte, error) {
	span, _ := opentracing.StartSpanFromContext(ctx, "imapMailSource.DownloadAttachment")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagMessage(span, messageID)
	span.SetTag("attachment.id", attachmentID)

	uid, err := strconv.ParseUint(messageID, 10, 32)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid imap message id %q", messageID)
	}

	idx, err := strconv.Atoi(strings.TrimPrefix(attachmentID, attachmentIDPrefix))
	if err != nil || !strings.HasPrefix(attachmentID, attachmentIDPrefix) {
		return nil, errors.Errorf("invalid attachment id %q", attachmentID)
	}

	envelope, err := s.fetchParsedMessage(ctx, uint32(uid))
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	if idx >= len(envelope.Attachments) {
		return nil, errors.Errorf("attachment %s not found in message %s", attachmentID, messageID)
	}
	return envelope.Attachments[idx].Content, nil
}

func (s *imapMailSource) fetchParsedMessage(ctx context.Context, uid uint32) (*enmime.Envelope, error) {
	c, err := s.ensureConnected()
	if err != nil {
		return nil, err
	}

	seqSet := new(imap.SeqSet)
	seqSet.AddNum(uid)

	section := &imap.BodySectionName{Peek: true}
	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqSet, []imap.FetchItem{section.FetchItem()}, messages)
	}()

	var fetched *imap.Message
	for msg := range messages {
		fetched = msg
	}
	if err := <-done; err != nil {
		return nil, errors.Wrapf(err, "failed to fetch body of message %d", uid)
	}
	if fetched == nil {
		return nil, errors.Errorf("message %d not found", uid)
	}

	body := fetched.GetBody(section)
	if body == nil {
		return nil, errors.Errorf("no body returned for message %d", uid)
	}

	envelope, err := enmime.ReadEnvelope(body)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse message %d", uid)
	}
	return envelope, nil
}
