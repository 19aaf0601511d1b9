package reconcile

import (
	"context"
	"errors"
	"io"
	"net/http"

	"payhub/internal/api"
	"payhub/internal/gateway"
	"payhub/internal/logger"
	"payhub/internal/order"
	"payhub/internal/webhook"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	processor *Processor
}

func NewHandler(processor *Processor) *Handler {
	return &Handler{processor: processor}
}

// Notify returns the endpoint for one provider's notifications.
func (h *Handler) Notify(provider gateway.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "unreadable body"})
			return
		}

		// Reconciliation outlives the gateway connection.
		ctx := context.WithoutCancel(c.Request.Context())

		out, err := h.processor.Reconcile(ctx, provider, raw, c.Request.Header)
		if err != nil {
			switch {
			case errors.Is(err, webhook.ErrUnauthenticated):
				c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "unauthenticated"})
			case errors.Is(err, order.ErrOrderNotFound), errors.Is(err, gateway.ErrUnknownProvider):
				c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "order not found"})
			case errors.Is(err, ErrMalformedPayload):
				c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "malformed payload"})
			default:
				logger.Error("webhook processing failed", "provider", provider, "error", err)
				c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "internal error"})
			}
			return
		}

		c.JSON(http.StatusOK, api.WebhookAck{Status: string(out.Result)})
	}
}
