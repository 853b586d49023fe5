package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jcmexdev/shoe-market/internal/marketplace/domain"
)

// writeDomainError maps the core error taxonomy onto HTTP statuses. Order
// matters: an inconsistent-state fault must never read as a plain 404.
func writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInconsistentState):
		slog.ErrorContext(ctx, "request failed with inconsistent state", "error", err)
		writeError(w, http.StatusInternalServerError, "inconsistent_state", err.Error())
	case errors.Is(err, domain.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, "unauthenticated", err.Error())
	case errors.Is(err, domain.ErrInvalidPayload):
		writeError(w, http.StatusBadRequest, "invalid_payload", err.Error())
	case errors.Is(err, domain.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not_owner", err.Error())
	case errors.Is(err, domain.ErrVerificationFailed):
		writeError(w, http.StatusPaymentRequired, "verification_failed", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, domain.ErrLedgerUnavailable):
		writeError(w, http.StatusBadGateway, "ledger_unavailable", err.Error())
	default:
		slog.ErrorContext(ctx, "request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
