package adapter

import (
	"context"

	"telegram-playlist-bot/internal/domain/model"
)

// InvoiceSender delivers an invoice to a chat on the payment rail.
type InvoiceSender interface {
	SendInvoice(ctx context.Context, chatID int64, inv model.Invoice) error
}
