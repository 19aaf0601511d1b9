package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"payhub/internal/api"
	"payhub/internal/gateway"
	"payhub/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx/types"
)

type GatewayHandler struct {
	repo gateway.ConfigRepository
}

func NewGatewayHandler(repo gateway.ConfigRepository) *GatewayHandler {
	return &GatewayHandler{repo: repo}
}

// GatewayView is a config row with its secrets masked.
type GatewayView struct {
	gateway.Config
	Credentials map[string]string `json:"credentials"`
}

type UpsertGatewayRequest struct {
	DisplayName      string              `json:"display_name" binding:"required,max=100"`
	IsActive         bool                `json:"is_active"`
	SupportedMethods []string            `json:"supported_methods" binding:"omitempty,max=50,dive,required,max=50"`
	Credentials      gateway.Credentials `json:"credentials"`
}

func view(cfg gateway.Config) (GatewayView, error) {
	creds, err := cfg.Credentials()
	if err != nil {
		return GatewayView{}, err
	}
	return GatewayView{Config: cfg, Credentials: creds.Redacted()}, nil
}

func (h *GatewayHandler) List(c *gin.Context) {
	cfgs, err := h.repo.List(c.Request.Context())
	if err != nil {
		logger.Error("failed to list gateway configs", "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to list gateways"})
		return
	}

	views := make([]GatewayView, 0, len(cfgs))
	for _, cfg := range cfgs {
		v, err := view(cfg)
		if err != nil {
			logger.Error("unreadable gateway config", "provider", cfg.Provider, "error", err)
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to list gateways"})
			return
		}
		views = append(views, v)
	}

	c.JSON(http.StatusOK, views)
}

// Upsert writes a provider row. Credential fields left empty keep their stored value.
func (h *GatewayHandler) Upsert(c *gin.Context) {
	provider, err := gateway.ParseProvider(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "unknown gateway provider"})
		return
	}

	var req UpsertGatewayRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	creds := req.Credentials
	existing, err := h.repo.Get(ctx, provider)
	switch {
	case err == nil:
		stored, err := existing.Credentials()
		if err != nil {
			logger.Error("unreadable gateway config", "provider", provider, "error", err)
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to update gateway"})
			return
		}
		creds = creds.Merge(stored)
	case !errors.Is(err, gateway.ErrConfigNotFound):
		logger.Error("failed to load gateway config", "provider", provider, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to update gateway"})
		return
	}

	settings, err := json.Marshal(creds)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to update gateway"})
		return
	}

	cfg := gateway.Config{
		Provider:         provider,
		DisplayName:      req.DisplayName,
		IsActive:         req.IsActive,
		Settings:         types.JSONText(settings),
		SupportedMethods: req.SupportedMethods,
	}
	if err := h.repo.Upsert(ctx, cfg); err != nil {
		logger.Error("failed to upsert gateway config", "provider", provider, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to update gateway"})
		return
	}

	logger.Info("gateway config updated", "provider", provider, "active", req.IsActive)
	h.respondWith(c, provider)
}

// SetPrimary makes provider the only primary gateway. New top-ups use it at once.
func (h *GatewayHandler) SetPrimary(c *gin.Context) {
	provider, err := gateway.ParseProvider(c.Param("provider"))
	if err != nil {
		c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "unknown gateway provider"})
		return
	}

	if err := h.repo.SetPrimary(c.Request.Context(), provider); err != nil {
		if errors.Is(err, gateway.ErrConfigNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: "gateway is not configured"})
			return
		}
		logger.Error("failed to switch primary gateway", "provider", provider, "error", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to switch gateway"})
		return
	}

	logger.Info("primary gateway switched", "provider", provider)
	h.respondWith(c, provider)
}

func (h *GatewayHandler) respondWith(c *gin.Context, provider gateway.Provider) {
	cfg, err := h.repo.Get(c.Request.Context(), provider)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load gateway"})
		return
	}
	v, err := view(*cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load gateway"})
		return
	}
	c.JSON(http.StatusOK, v)
}
