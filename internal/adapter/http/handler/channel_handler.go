package handler

import (
	"strings"

	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/adapter/http/dto"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports"
	"github.com/mamadousy92i/Mobile-Money-Transfert/pkg/apperror"
	"github.com/mamadousy92i/Mobile-Money-Transfert/pkg/response"

	"github.com/gin-gonic/gin"
)

// ChannelHandler exposes read-only channel introspection.
type ChannelHandler struct {
	registry ports.GatewayRegistry
}

// NewChannelHandler creates a new ChannelHandler.
func NewChannelHandler(registry ports.GatewayRegistry) *ChannelHandler {
	return &ChannelHandler{registry: registry}
}

// List handles GET /api/v1/channels.
func (h *ChannelHandler) List(c *gin.Context) {
	kinds := h.registry.Kinds()
	items := make([]dto.ChannelResponse, 0, len(kinds))
	for _, kind := range kinds {
		info, err := h.registry.Info(kind)
		if err != nil {
			continue
		}
		items = append(items, dto.FromGatewayInfo(info))
	}
	response.OK(c, items)
}

// Get handles GET /api/v1/channels/:kind.
func (h *ChannelHandler) Get(c *gin.Context) {
	kind, err := domain.ParseChannelKind(strings.ToUpper(c.Param("kind")))
	if err != nil {
		response.Error(c, apperror.ErrChannelNotAvailable(c.Param("kind")))
		return
	}

	info, err := h.registry.Info(kind)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromGatewayInfo(info))
}
