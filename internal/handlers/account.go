package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"messaging-service/internal/observability"
	"messaging-service/internal/repositories"
	"messaging-service/internal/telemetry"
)

// AccountHandler receives account-deletion callbacks from the account
// collaborator. The same cleanup also runs off the AMQP account events queue;
// this endpoint exists for deployments without a broker.
type AccountHandler struct {
	cleaner repositories.CleanupRepository
	emitter *telemetry.Emitter
	logger  zerolog.Logger
	timeout time.Duration
}

// NewAccountHandler builds an AccountHandler.
func NewAccountHandler(cleaner repositories.CleanupRepository, emitter *telemetry.Emitter, logger zerolog.Logger, timeout time.Duration) *AccountHandler {
	return &AccountHandler{
		cleaner: cleaner,
		emitter: emitter,
		logger:  logger,
		timeout: timeout,
	}
}

// OnAccountDeleted handles DELETE /accounts/:account_id/data. It fails closed:
// if the cascade cannot complete, the error propagates and nothing is deleted.
func (h *AccountHandler) OnAccountDeleted(c *gin.Context) {
	accountID, ok := parseIDParam(c, "account_id")
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	result, err := h.cleaner.DeleteAccountData(ctx, accountID)
	if err != nil {
		observability.IncAccountCleanup("failed")
		h.logger.Error().
			Err(err).
			Int64("account_id", accountID).
			Msg("account cleanup failed, manual intervention required")
		respondError(c, err)
		return
	}

	observability.IncAccountCleanup("ok")
	h.emitter.Emit(c.Request.Context(), "account.cleaned", requestIDFromContext(c), gin.H{
		"account_id":    accountID,
		"messages":      result.Messages,
		"notifications": result.Notifications,
		"histories":     result.Histories,
	})
	c.Status(http.StatusNoContent)
}
