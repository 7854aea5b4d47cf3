package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"telegram-playlist-bot/internal/domain"
	"telegram-playlist-bot/internal/domain/model"
	"telegram-playlist-bot/internal/domain/ports/adapter"
	"telegram-playlist-bot/internal/infra/i18n"
	"telegram-playlist-bot/internal/infra/worker"
	"telegram-playlist-bot/internal/usecase"
)

// CurrencyStars is the Telegram Stars currency code. Stars invoices carry no
// provider token.
const CurrencyStars = "XTR"

// paymentGrace bounds a payment update handled after shutdown began.
const paymentGrace = 10 * time.Second

// BotAPI is the subset of *tgbotapi.BotAPI the adapter uses.
type BotAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

var _ BotAPI = (*tgbotapi.BotAPI)(nil)

func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	return tgbotapi.NewBotAPI(token)
}

// ---- Invoice sender ----

var _ adapter.InvoiceSender = (*StarsInvoiceSender)(nil)

type StarsInvoiceSender struct {
	api BotAPI
}

func NewStarsInvoiceSender(api BotAPI) *StarsInvoiceSender {
	return &StarsInvoiceSender{api: api}
}

func (s *StarsInvoiceSender) SendInvoice(ctx context.Context, chatID int64, inv model.Invoice) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg := tgbotapi.NewInvoice(chatID, inv.Title, inv.Description, inv.Payload, "", "", CurrencyStars,
		[]tgbotapi.LabeledPrice{{Label: inv.Title, Amount: int(inv.PriceStars)}})
	// a nil slice is sent as null and rejected by the API
	cfg.SuggestedTipAmounts = []int{}
	if _, err := s.api.Send(cfg); err != nil {
		return fmt.Errorf("send invoice: %w", err)
	}
	return nil
}

// ---- Update handling ----

// UpdateHandler answers pre-checkout queries, reconciles successful payments
// and serves the few chat commands that touch entitlements.
type UpdateHandler struct {
	api      BotAPI
	payments usecase.PaymentUseCase
	access   usecase.AccessUseCase
	users    usecase.UserUseCase
	texts    *i18n.Bundle
	pool     *worker.Pool
	log      *zerolog.Logger

	// backoff paces retries of a reconcile that failed for a transient reason
	backoff func() retry.Backoff
}

func NewUpdateHandler(api BotAPI, payments usecase.PaymentUseCase, access usecase.AccessUseCase, users usecase.UserUseCase, texts *i18n.Bundle, pool *worker.Pool, logger *zerolog.Logger) *UpdateHandler {
	l := logger.With().Str("component", "TelegramUpdates").Logger()
	return &UpdateHandler{api: api, payments: payments, access: access, users: users, texts: texts, pool: pool, log: &l, backoff: defaultReconcileBackoff}
}

func defaultReconcileBackoff() retry.Backoff {
	b := retry.NewExponential(200 * time.Millisecond)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithCappedDuration(5*time.Second, b)
	return retry.WithMaxRetries(6, b)
}

// Run polls updates and hands each one to the worker pool until ctx ends.
// The poll offset moves past every update it reads, so payment updates wait
// for a free slot instead of being dropped.
func (h *UpdateHandler) Run(ctx context.Context, pollTimeout int) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	u.AllowedUpdates = []string{"message", "pre_checkout_query"}
	updates := h.api.GetUpdatesChan(u)
	defer h.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			task := func(ctx context.Context) error { return h.HandleUpdate(ctx, up) }
			if !isPayment(up) {
				if err := h.pool.Submit(task); err != nil {
					h.log.Warn().Err(err).Int("update_id", up.UpdateID).Msg("dropping update")
				}
				continue
			}
			if err := h.pool.SubmitWait(ctx, task); err != nil {
				h.handleDetached(ctx, up)
			}
		}
	}
}

func isPayment(up tgbotapi.Update) bool {
	return up.PreCheckoutQuery != nil || (up.Message != nil && up.Message.SuccessfulPayment != nil)
}

// handleDetached runs a payment update that could not be queued because ctx
// ended.
func (h *UpdateHandler) handleDetached(ctx context.Context, up tgbotapi.Update) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), paymentGrace)
	defer cancel()
	if err := h.HandleUpdate(dctx, up); err != nil {
		h.log.Error().Err(err).Int("update_id", up.UpdateID).Msg("payment update failed during shutdown")
	}
}

func (h *UpdateHandler) HandleUpdate(ctx context.Context, up tgbotapi.Update) error {
	switch {
	case up.PreCheckoutQuery != nil:
		return h.onPreCheckout(ctx, up.PreCheckoutQuery)
	case up.Message != nil && up.Message.SuccessfulPayment != nil:
		return h.onSuccessfulPayment(ctx, up.Message)
	case up.Message != nil && up.Message.IsCommand():
		return h.onCommand(ctx, up.Message)
	}
	return nil
}

// onPreCheckout must be answered within ten seconds, so it only reads.
func (h *UpdateHandler) onPreCheckout(ctx context.Context, q *tgbotapi.PreCheckoutQuery) error {
	tr := h.tr(q.From)
	answer := tgbotapi.PreCheckoutConfig{PreCheckoutQueryID: q.ID, OK: true}
	if q.Currency != CurrencyStars {
		answer.OK, answer.ErrorMessage = false, tr.T("precheckout_currency")
	} else if err := h.payments.PreConfirm(ctx, q.InvoicePayload, int64(q.TotalAmount)); err != nil {
		answer.OK, answer.ErrorMessage = false, tr.T(preCheckoutKey(err))
		h.log.Info().Err(err).Str("query_id", q.ID).Msg("pre-checkout rejected")
	}
	if _, err := h.api.Request(answer); err != nil {
		return fmt.Errorf("answer pre-checkout: %w", err)
	}
	return nil
}

func (h *UpdateHandler) onSuccessfulPayment(ctx context.Context, m *tgbotapi.Message) error {
	sp := m.SuccessfulPayment
	tr := h.tr(m.From)
	act, err := h.reconcile(ctx, model.PaymentConfirmation{
		Payload:    sp.InvoicePayload,
		AmountPaid: int64(sp.TotalAmount),
		ChargeID:   sp.TelegramPaymentChargeID,
	})
	if err != nil {
		h.log.Error().Err(err).Str("charge_id", sp.TelegramPaymentChargeID).Msg("payment reconcile failed")
		return h.reply(m.Chat.ID, tr.T("payment_failed"))
	}
	return h.reply(m.Chat.ID, tr.T("payment_activated", act.Tier, act.Ceiling))
}

// reconcile retries transient failures. Reconcile is idempotent, and a
// confirmation that still fails stays recorded for the intent sweeper.
func (h *UpdateHandler) reconcile(ctx context.Context, conf model.PaymentConfirmation) (*model.Activation, error) {
	return retry.DoValue(ctx, h.backoff(), func(ctx context.Context) (*model.Activation, error) {
		act, err := h.payments.Reconcile(ctx, conf)
		if err != nil && !paymentRejected(err) {
			h.log.Warn().Err(err).Str("charge_id", conf.ChargeID).Msg("payment reconcile failed, retrying")
			return nil, retry.RetryableError(err)
		}
		return act, err
	})
}

// paymentRejected reports errors that no retry can change.
func paymentRejected(err error) bool {
	return errors.Is(err, domain.ErrPaymentAmountMismatch) ||
		errors.Is(err, domain.ErrUnknownOrReplayedIntent) ||
		errors.Is(err, domain.ErrInvalidArgument)
}

func (h *UpdateHandler) onCommand(ctx context.Context, m *tgbotapi.Message) error {
	if m.From == nil {
		return nil
	}
	userID := m.From.ID
	tr := h.tr(m.From)
	if _, err := h.users.RegisterOrFetch(ctx, userID, m.From.UserName); err != nil {
		return err
	}

	switch m.Command() {
	case "start":
		token := strings.TrimSpace(m.CommandArguments())
		if token == "" {
			return h.reply(m.Chat.ID, tr.T("start_help"))
		}
		p, joined, err := h.access.RedeemInvite(ctx, userID, token)
		if err != nil {
			return h.reply(m.Chat.ID, tr.T(inviteKey(err)))
		}
		if !joined {
			return h.reply(m.Chat.ID, tr.T("invite_already_member", p.Title))
		}
		return h.reply(m.Chat.ID, tr.T("invite_joined", p.Title))

	case "plans":
		var b strings.Builder
		b.WriteString(tr.T("plans_header"))
		for _, o := range h.payments.Offers() {
			b.WriteString("\n")
			b.WriteString(tr.T("plans_line", o.Tier, o.Ceiling, o.PriceStars))
		}
		return h.reply(m.Chat.ID, b.String())

	case "buy":
		tier, err := model.ParseTier(strings.TrimSpace(m.CommandArguments()))
		if err != nil || !tier.Paid() {
			return h.reply(m.Chat.ID, tr.T("buy_usage"))
		}
		if _, _, err := h.payments.SendInvoice(ctx, m.Chat.ID, userID, tier); err != nil {
			h.log.Error().Err(err).Int64("user_id", userID).Msg("send invoice failed")
			return h.reply(m.Chat.ID, tr.T("buy_failed"))
		}
		return nil
	}
	return nil
}

func (h *UpdateHandler) tr(u *tgbotapi.User) *i18n.Translator {
	if u == nil {
		return h.texts.For(i18n.DefaultLang)
	}
	return h.texts.For(u.LanguageCode)
}

func (h *UpdateHandler) reply(chatID int64, text string) error {
	_, err := h.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

func preCheckoutKey(err error) string {
	var mm *domain.PaymentAmountMismatchError
	switch {
	case errors.As(err, &mm):
		return "precheckout_price_changed"
	case errors.Is(err, domain.ErrUnknownOrReplayedIntent):
		return "precheckout_invalid"
	default:
		return "precheckout_unavailable"
	}
}

func inviteKey(err error) string {
	var denied *domain.AuthorizationDeniedError
	if errors.As(err, &denied) && denied.Reason == domain.ReasonInvitationExpired {
		return "invite_expired"
	}
	return "invite_invalid"
}
