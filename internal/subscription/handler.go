package subscription

import (
	"errors"
	"net/http"

	"payhub/internal/api"
	"payhub/internal/auth"
	"payhub/internal/logger"
	"payhub/internal/wallet"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type PurchaseRequest struct {
	PlanCode string `json:"plan_code" binding:"required"`
}

type PurchaseResponse struct {
	Purchase *Purchase `json:"purchase"`
	PaidWith string    `json:"paid_with"`
	Amount   int64     `json:"amount"`
}

func (h *Handler) Purchase(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}

	p, err := h.service.Purchase(c.Request.Context(), userID, req.PlanCode)
	if err != nil {
		switch {
		case errors.Is(err, ErrUnknownPlan):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "unknown plan"})
		case errors.Is(err, wallet.ErrInsufficientBalance):
			c.JSON(http.StatusPaymentRequired, api.ErrorResponse{Error: "insufficient wallet balance"})
		case errors.Is(err, ErrTierLimit):
			c.JSON(http.StatusForbidden, api.ErrorResponse{Error: "plan not available for this account"})
		default:
			logger.Errorf("Failed to purchase plan %s for user %s: %v", req.PlanCode, userID, err)
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to purchase subscription"})
		}
		return
	}

	c.JSON(http.StatusCreated, PurchaseResponse{Purchase: p, PaidWith: "wallet", Amount: p.Amount})
}

func (h *Handler) ListMy(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	purchases, err := h.service.ListActive(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load subscriptions"})
		return
	}

	c.JSON(http.StatusOK, purchases)
}

func (h *Handler) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, Plans())
}

// Refund is an admin operation.
func (h *Handler) Refund(c *gin.Context) {
	p, err := h.service.Refund(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrPurchaseNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "purchase not found"})
		case errors.Is(err, ErrNotActive):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "purchase is not active"})
		default:
			logger.Errorf("Failed to refund purchase %s: %v", c.Param("id"), err)
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to refund subscription"})
		}
		return
	}

	c.JSON(http.StatusOK, p)
}
