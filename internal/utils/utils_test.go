package utils

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSha256Hex(t *testing.T) {
	payload := []byte("invoice body")

	first := Sha256Hex(payload)
	second := Sha256Hex(payload)

	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
	assert.Equal(t, strings.ToLower(first), first)
	assert.NotEqual(t, first, Sha256Hex([]byte("different body")))
}

func TestSha256Hex_KnownVector(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Sha256Hex(nil))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"invoice", "rechnung"}, SplitList("invoice;rechnung", true))
	assert.Equal(t, []string{"invoice", "rechnung"}, SplitList("Invoice, Rechnung", true))
	assert.Equal(t, []string{"A", "b"}, SplitList(" A ;; b ", false))
	assert.Nil(t, SplitList("   ", true))
	assert.Nil(t, SplitList("", true))
}

func TestNormalizeMessageID(t *testing.T) {
	assert.Equal(t, "abc@mail.example.com", NormalizeMessageID("<abc@mail.example.com>"))
	assert.Equal(t, "abc@mail.example.com", NormalizeMessageID(" abc@mail.example.com "))
	assert.Equal(t, "", NormalizeMessageID("<>"))
}

func TestParseISOTime(t *testing.T) {
	parsed, err := ParseISOTime("2026-03-01T10:30:00Z")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), parsed)

	parsed, err = ParseISOTime("2026-03-01T12:30:00+02:00")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 1, 10, 30, 0, 0, time.UTC), parsed)
	assert.Equal(t, time.UTC, parsed.Location())

	_, err = ParseISOTime("yesterday")
	assert.Error(t, err)
}

func TestFormatISOUTC(t *testing.T) {
	berlin := time.FixedZone("CET", 3600)
	assert.Equal(t, "2026-03-01T09:30:00Z", FormatISOUTC(time.Date(2026, 3, 1, 10, 30, 0, 0, berlin)))
}

func TestGenerateNanoIDWithPrefix(t *testing.T) {
	id := GenerateNanoIDWithPrefix("run", 12)

	assert.True(t, strings.HasPrefix(id, "run_"))
	assert.Len(t, id, len("run_")+12)
	assert.NotEqual(t, id, GenerateNanoIDWithPrefix("run", 12))
}

func TestGetOrDefault(t *testing.T) {
	value := 5
	assert.Equal(t, 5, GetOrDefault(&value, 9))
	assert.Equal(t, 9, GetOrDefault[int](nil, 9))
}
