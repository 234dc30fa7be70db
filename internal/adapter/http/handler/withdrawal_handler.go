package handler

import (
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/adapter/http/dto"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/adapter/http/middleware"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports"
	"github.com/mamadousy92i/Mobile-Money-Transfert/pkg/apperror"
	"github.com/mamadousy92i/Mobile-Money-Transfert/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// WithdrawalHandler handles cash-out endpoints. Every route sits behind
// agent authentication.
type WithdrawalHandler struct {
	withdrawalSvc ports.WithdrawalService
}

// NewWithdrawalHandler creates a new WithdrawalHandler.
func NewWithdrawalHandler(withdrawalSvc ports.WithdrawalService) *WithdrawalHandler {
	return &WithdrawalHandler{withdrawalSvc: withdrawalSvc}
}

func agentRef(c *gin.Context) (string, bool) {
	ref, ok := c.Get(middleware.CtxAgentRef)
	if !ok {
		return "", false
	}
	s, ok := ref.(string)
	return s, ok && s != ""
}

// Create handles POST /api/v1/withdrawals.
func (h *WithdrawalHandler) Create(c *gin.Context) {
	agent, ok := agentRef(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.CreateWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	var amount domain.Money
	if req.Amount != "" {
		if req.Currency == "" {
			response.Error(c, apperror.Validation("currency is required when amount is set"))
			return
		}
		parsed, err := domain.MoneyFromString(req.Amount, req.Currency)
		if err != nil {
			response.Error(c, apperror.ErrInvalidAmount())
			return
		}
		amount = parsed
	}

	w, err := h.withdrawalSvc.Create(c.Request.Context(), ports.CreateWithdrawalRequest{
		TransactionCode: req.TransactionCode,
		AgentRef:        agent,
		BeneficiaryRef:  req.BeneficiaryRef,
		Amount:          amount,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.FromWithdrawal(w))
}

// Get handles GET /api/v1/withdrawals/:code.
func (h *WithdrawalHandler) Get(c *gin.Context) {
	w, err := h.withdrawalSvc.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromWithdrawal(w))
}

// Accept handles POST /api/v1/withdrawals/:code/accept.
func (h *WithdrawalHandler) Accept(c *gin.Context) {
	agent, ok := agentRef(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	w, err := h.withdrawalSvc.Accept(c.Request.Context(), c.Param("code"), agent)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromWithdrawal(w))
}

// Finalize handles POST /api/v1/withdrawals/:code/finalize.
func (h *WithdrawalHandler) Finalize(c *gin.Context) {
	agent, ok := agentRef(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return
	}

	var req dto.FinalizeWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	verification := domain.VerificationData{
		IDDocumentChecked: req.IDDocumentChecked,
		SMSCodeChecked:    req.SMSCodeChecked,
		Notes:             req.Notes,
	}
	var err error
	if verification.Latitude, err = parseCoordinate(req.Latitude); err != nil {
		response.Error(c, apperror.Validation("invalid latitude"))
		return
	}
	if verification.Longitude, err = parseCoordinate(req.Longitude); err != nil {
		response.Error(c, apperror.Validation("invalid longitude"))
		return
	}

	w, err := h.withdrawalSvc.Finalize(c.Request.Context(), c.Param("code"), agent, verification)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromWithdrawal(w))
}

// Cancel handles POST /api/v1/withdrawals/:code/cancel.
func (h *WithdrawalHandler) Cancel(c *gin.Context) {
	var req dto.CancelWithdrawalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	w, err := h.withdrawalSvc.Cancel(c.Request.Context(), c.Param("code"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FromWithdrawal(w))
}

func parseCoordinate(raw *string) (*decimal.Decimal, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(*raw)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
