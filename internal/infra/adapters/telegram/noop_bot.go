package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/adapter"
)

var _ adapter.InvoiceSender = (*NoopInvoiceSender)(nil)

// NoopInvoiceSender logs invoices instead of sending them. Used for local
// runs without a bot token.
type NoopInvoiceSender struct {
	log *zerolog.Logger
}

func NewNoopInvoiceSender(logger *zerolog.Logger) *NoopInvoiceSender {
	return &NoopInvoiceSender{log: logger}
}

func (s *NoopInvoiceSender) SendInvoice(ctx context.Context, chatID int64, inv model.Invoice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.log.Info().
		Int64("chat_id", chatID).
		Str("title", inv.Title).
		Int64("price_stars", inv.PriceStars).
		Str("payload", inv.Payload).
		Msg("[noop-telegram] invoice")
	return nil
}
