package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveTitle(t *testing.T) {
	tests := []struct {
		name     string
		template string
		subject  string
		fallback string
		expected string
	}{
		{
			name:     "subject substituted",
			template: "{subject}",
			subject:  "Invoice March",
			fallback: "invoice.pdf",
			expected: "Invoice March",
		},
		{
			name:     "template with prefix",
			template: "Mail: {subject}",
			subject:  "Invoice March",
			fallback: "invoice.pdf",
			expected: "Mail: Invoice March",
		},
		{
			name:     "empty subject falls back to attachment name",
			template: "{subject}",
			subject:  "",
			fallback: "invoice.pdf",
			expected: "invoice.pdf",
		},
		{
			name:     "empty template falls back to attachment name",
			template: "",
			subject:  "Invoice March",
			fallback: "invoice.pdf",
			expected: "invoice.pdf",
		},
		{
			name:     "whitespace subject treated as empty",
			template: "{subject}",
			subject:  "   ",
			fallback: "invoice.pdf",
			expected: "invoice.pdf",
		},
		{
			name:     "literal template kept as is",
			template: "Incoming document",
			subject:  "Invoice March",
			fallback: "invoice.pdf",
			expected: "Incoming document",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, resolveTitle(tt.template, tt.subject, tt.fallback))
		})
	}
}
