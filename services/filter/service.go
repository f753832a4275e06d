package filter

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/mailsink/mailsink/interfaces"
	"github.com/mailsink/mailsink/internal/logger"
	"github.com/mailsink/mailsink/internal/models"
)

// invoiceFilterService evaluates sender/subject/filename heuristics to spot
// invoice attachments. It holds no mutable state once constructed, so a
// single instance serves a whole run.
type invoiceFilterService struct {
	subjectKeywords  []string
	filenamePatterns []*regexp.Regexp
	senderWhitelist  map[string]struct{}
	allowAll         bool
	log              logger.Logger
}

type Options struct {
	SubjectKeywords  []string
	FilenamePatterns []string
	SenderWhitelist  []string
	AllowAll         bool
}

func NewInvoiceFilterService(opts Options, log logger.Logger) (interfaces.InvoiceFilter, error) {
	s := &invoiceFilterService{
		allowAll: opts.AllowAll,
		log:      log,
	}

	for _, keyword := range opts.SubjectKeywords {
		s.subjectKeywords = append(s.subjectKeywords, strings.ToLower(keyword))
	}

	for _, pattern := range opts.FilenamePatterns {
		if pattern == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid filename pattern %q", pattern)
		}
		s.filenamePatterns = append(s.filenamePatterns, re)
	}

	s.senderWhitelist = make(map[string]struct{}, len(opts.SenderWhitelist))
	for _, sender := range opts.SenderWhitelist {
		s.senderWhitelist[strings.ToLower(sender)] = struct{}{}
	}

	return s, nil
}

// LooksLikeInvoice returns true if any heuristic indicates an invoice.
// First match wins: allow-all, then sender whitelist, then subject
// keywords, then filename patterns.
func (s *invoiceFilterService) LooksLikeInvoice(message *models.Message, attachment *models.Attachment) bool {
	if s.allowAll {
		s.log.Debugf("process-all enabled, auto-accepting attachment %s", attachment.ID)
		return true
	}

	sender := strings.ToLower(message.SenderEmail)
	if sender != "" {
		if _, ok := s.senderWhitelist[sender]; ok {
			s.log.Debugf("sender %s whitelisted as invoice", sender)
			return true
		}
	}

	subject := strings.ToLower(message.Subject)
	for _, keyword := range s.subjectKeywords {
		if strings.Contains(subject, keyword) {
			s.log.Debugf("subject %q matched invoice keyword %q", message.Subject, keyword)
			return true
		}
	}

	for _, pattern := range s.filenamePatterns {
		if pattern.MatchString(attachment.Name) {
			s.log.Debugf("attachment %q matched invoice filename pattern %s", attachment.Name, pattern)
			return true
		}
	}

	s.log.Debugf("attachment %s from message %s did not match invoice heuristics", attachment.ID, message.ID)
	return false
}
