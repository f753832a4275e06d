package interfaces

import (
	"github.com/mailsink/mailsink/internal/models"
)

// InvoiceFilter decides attachment candidacy from metadata alone. Pure and
// deterministic: the same inputs always produce the same answer.
type InvoiceFilter interface {
	LooksLikeInvoice(message *models.Message, attachment *models.Attachment) bool
}
