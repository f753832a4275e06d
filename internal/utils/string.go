package utils

import (
	"regexp"
	"strings"
)

var listSeparator = regexp.MustCompile(`[;,]`)

// SplitList turns delimiter-separated config strings into cleaned lists.
// Both ';' and ',' act as separators, blank items are dropped.
func SplitList(value string, coerceLower bool) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	var cleaned []string
	for _, item := range listSeparator.Split(value, -1) {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		if coerceLower {
			trimmed = strings.ToLower(trimmed)
		}
		cleaned = append(cleaned, trimmed)
	}
	return cleaned
}

func NormalizeMessageID(messageID string) string {
	messageID = strings.TrimSpace(messageID)
	messageID = strings.TrimPrefix(messageID, "<")
	messageID = strings.TrimSuffix(messageID, ">")
	return messageID
}

func IsStringInSlice(s string, slice []string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
