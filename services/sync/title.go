package sync

import "strings"

const subjectPlaceholder = "{subject}"

// resolveTitle renders the configured title template. An empty subject falls
// back to the attachment name, as does a template that resolves to nothing.
func resolveTitle(template, subject, fallback string) string {
	if strings.TrimSpace(template) == "" {
		return fallback
	}

	value := subject
	if strings.TrimSpace(value) == "" {
		value = fallback
	}

	title := strings.ReplaceAll(template, subjectPlaceholder, value)
	if strings.TrimSpace(title) == "" {
		return fallback
	}
	return title
}
