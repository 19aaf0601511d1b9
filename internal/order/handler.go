package order

import (
	"errors"
	"net/http"
	"strconv"

	"payhub/internal/api"
	"payhub/internal/auth"
	"payhub/internal/gateway"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

type CreateTopUpRequest struct {
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	PaymentMethod string `json:"payment_method" binding:"omitempty,max=50"`
	CustomerName  string `json:"customer_name" binding:"omitempty,max=100"`
}

type GatewayFailureResponse struct {
	Error   string `json:"error"`
	OrderID string `json:"order_id,omitempty"`
}

func (h *Handler) CreateTopUp(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	var req CreateTopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid request body"})
		return
	}

	o, err := h.manager.CreateOrder(c.Request.Context(), CreateOrderInput{
		UserID:        userID,
		Amount:        req.Amount,
		PaymentMethod: req.PaymentMethod,
		CustomerEmail: auth.GetUserEmail(c),
		CustomerName:  req.CustomerName,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrValidation):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		case errors.Is(err, gateway.ErrNoActiveGateway):
			c.JSON(http.StatusServiceUnavailable, api.ErrorResponse{Error: "top-up is temporarily unavailable"})
		case o != nil:
			c.JSON(http.StatusBadGateway, GatewayFailureResponse{
				Error:   "payment gateway unavailable, please retry",
				OrderID: o.ID,
			})
		default:
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to create top-up"})
		}
		return
	}

	c.JSON(http.StatusCreated, o)
}

func (h *Handler) GetTopUp(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	o, err := h.manager.GetForUser(c.Request.Context(), userID, c.Param("orderID"))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "top-up not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load top-up"})
		return
	}

	c.JSON(http.StatusOK, o)
}

func (h *Handler) ListTopUps(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "user not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	orders, err := h.manager.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load top-ups"})
		return
	}

	c.JSON(http.StatusOK, api.ListResponse{Items: orders, Limit: limit, Offset: offset})
}
