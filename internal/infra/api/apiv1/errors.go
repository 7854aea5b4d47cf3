package apiv1

import (
	"context"
	"errors"
	"net/http"

	"telegram-playlist-bot/internal/domain"
)

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// errorBody is the discriminated error the front end renders. Only the
// fields relevant to Code are set.
type errorBody struct {
	Code      string `json:"code"`
	Reason    string `json:"reason,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
	Owned     *int   `json:"owned,omitempty"`
	Limit     *int   `json:"limit,omitempty"`
	Expected  *int64 `json:"expected,omitempty"`
	Paid      *int64 `json:"paid,omitempty"`
}

func mapError(err error) (int, errorBody) {
	var (
		denied   *domain.AuthorizationDeniedError
		quota    *domain.QuotaExceededError
		mismatch *domain.PaymentAmountMismatchError
		intent   *domain.PaymentIntentError
	)
	switch {
	case errors.As(err, &denied):
		return http.StatusForbidden, errorBody{Code: "authorization_denied", Reason: denied.Reason}
	case errors.As(err, &quota):
		return http.StatusConflict, errorBody{Code: "quota_exceeded", Owned: &quota.Owned, Limit: &quota.Limit}
	case errors.As(err, &mismatch):
		return http.StatusConflict, errorBody{Code: "payment_amount_mismatch", Expected: &mismatch.Expected, Paid: &mismatch.Paid}
	case errors.As(err, &intent):
		status := http.StatusConflict
		if intent.Reason == domain.ReasonUnknownIntent {
			status = http.StatusNotFound
		}
		return status, errorBody{Code: "unknown_or_replayed_intent", Reason: intent.Reason}
	case errors.Is(err, domain.ErrConflictExhausted):
		return http.StatusConflict, errorBody{Code: "conflict_exhausted", Retryable: true}
	case errors.Is(err, domain.ErrNoEffect):
		return http.StatusConflict, errorBody{Code: "no_effect", Retryable: true}
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable, errorBody{Code: "unavailable", Retryable: true}
	case errors.Is(err, domain.ErrRemoteNotFound):
		return http.StatusNotFound, errorBody{Code: "remote_not_found"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, errorBody{Code: "not_found"}
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, errorBody{Code: "rate_limited"}
	case errors.Is(err, domain.ErrCredentialRejected):
		return http.StatusUnprocessableEntity, errorBody{Code: "credential_rejected"}
	case errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, errorBody{Code: "invalid_argument"}
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, errorBody{Code: "already_exists"}
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, errorBody{Code: "timeout", Retryable: true}
	default:
		return http.StatusInternalServerError, errorBody{Code: "internal"}
	}
}
