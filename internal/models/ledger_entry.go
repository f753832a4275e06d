package models

import (
	"time"
)

// LedgerEntry marks one (message, attachment) pair as handled. The composite
// primary key is the uniqueness invariant the whole pipeline leans on.
type LedgerEntry struct {
	MessageID         string    `gorm:"column:message_id;type:varchar(512);primaryKey"`
	AttachmentID      string    `gorm:"column:attachment_id;type:varchar(512);primaryKey"`
	InternetMessageID string    `gorm:"column:internet_message_id;type:varchar(512);index"`
	Checksum          string    `gorm:"column:checksum;type:varchar(64);index"`
	SinkDocumentID    *int64    `gorm:"column:sink_document_id"`
	ProcessedAt       time.Time `gorm:"column:processed_at;not null"`
}

func (LedgerEntry) TableName() string {
	return "ledger_entries"
}
