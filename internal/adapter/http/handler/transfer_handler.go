package handler

import (
	"strconv"
	"strings"

	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/adapter/http/dto"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports"
	"github.com/mamadousy92i/Mobile-Money-Transfert/pkg/apperror"
	"github.com/mamadousy92i/Mobile-Money-Transfert/pkg/response"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey deduplicates transfer submissions across retries.
const HeaderIdempotencyKey = "X-Idempotency-Key"

// TransferHandler handles money transfer endpoints.
type TransferHandler struct {
	transferSvc ports.TransferService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(transferSvc ports.TransferService) *TransferHandler {
	return &TransferHandler{transferSvc: transferSvc}
}

// Submit handles POST /api/v1/transfers.
func (h *TransferHandler) Submit(c *gin.Context) {
	var req dto.SubmitTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	amount, err := domain.MoneyFromString(req.Amount, req.Currency)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	channel, err := domain.ParseChannelKind(strings.ToUpper(req.Channel))
	if err != nil {
		response.Error(c, apperror.ErrChannelNotAvailable(req.Channel))
		return
	}

	tx, err := h.transferSvc.Submit(c.Request.Context(), ports.SubmitRequest{
		SenderRef:       req.SenderRef,
		RecipientPhone:  req.RecipientPhone,
		RecipientName:   req.RecipientName,
		Amount:          amount,
		ReceiveCurrency: req.ReceiveCurrency,
		Channel:         channel,
		IdempotencyKey:  c.GetHeader(HeaderIdempotencyKey),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.FromTransaction(tx))
}

// Get handles GET /api/v1/transfers/:code.
func (h *TransferHandler) Get(c *gin.Context) {
	tx, err := h.transferSvc.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromTransaction(tx))
}

// UpdateStatus handles PATCH /api/v1/transfers/:code/status.
func (h *TransferHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateTransferStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	next, err := domain.ParseTransactionStatus(req.Status)
	if err != nil {
		response.Error(c, apperror.Validation("unknown status: "+req.Status))
		return
	}

	tx, err := h.transferSvc.UpdateStatus(c.Request.Context(), c.Param("code"), next)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromTransaction(tx))
}

// List handles GET /api/v1/transfers.
func (h *TransferHandler) List(c *gin.Context) {
	params := ports.TransactionListParams{
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "page_size", 20),
	}

	if s := c.Query("status"); s != "" {
		status, err := domain.ParseTransactionStatus(s)
		if err != nil {
			response.Error(c, apperror.Validation("unknown status: "+s))
			return
		}
		params.Status = &status
	}
	if ch := c.Query("channel"); ch != "" {
		kind, err := domain.ParseChannelKind(strings.ToUpper(ch))
		if err != nil {
			response.Error(c, apperror.Validation("unknown channel: "+ch))
			return
		}
		params.Channel = &kind
	}

	items, total, err := h.transferSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.TransactionListResponse{
		Items:    make([]dto.TransactionResponse, 0, len(items)),
		Total:    total,
		Page:     params.Page,
		PageSize: params.PageSize,
	}
	for i := range items {
		resp.Items = append(resp.Items, dto.FromTransaction(&items[i]))
	}
	if params.PageSize > 0 {
		resp.TotalPages = int((total + int64(params.PageSize) - 1) / int64(params.PageSize))
	}
	response.OK(c, resp)
}

// Stats handles GET /api/v1/transfers/stats.
func (h *TransferHandler) Stats(c *gin.Context) {
	stats, err := h.transferSvc.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromStats(stats))
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
