package dto

import (
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/domain"
	"github.com/mamadousy92i/Mobile-Money-Transfert/internal/core/ports"
)

// SubmitTransferRequest is the request body for transfer submission.
// Amounts travel as decimal strings; floats never cross the wire.
type SubmitTransferRequest struct {
	SenderRef       string  `json:"sender_ref" binding:"required,safe_id,max=64"`
	RecipientPhone  string  `json:"recipient_phone" binding:"required,max=20"`
	RecipientName   *string `json:"recipient_name,omitempty" binding:"omitempty,max=100"`
	Amount          string  `json:"amount" binding:"required,decimal"`
	Currency        string  `json:"currency" binding:"required,len=3"`
	ReceiveCurrency string  `json:"receive_currency,omitempty" binding:"omitempty,len=3"`
	Channel         string  `json:"channel" binding:"required,max=30"`
}

// UpdateTransferStatusRequest is the request body for a manual status change.
type UpdateTransferStatusRequest struct {
	Status string `json:"status" binding:"required,max=20"`
}

// CreateWithdrawalRequest is the request body for creating a cash-out.
// Amount and Currency are required only for standalone cash-outs; a linked
// withdrawal inherits the transaction's received amount.
type CreateWithdrawalRequest struct {
	TransactionCode *string `json:"transaction_code,omitempty" binding:"omitempty,safe_id,max=20"`
	BeneficiaryRef  string  `json:"beneficiary_ref" binding:"required,safe_id,max=64"`
	Amount          string  `json:"amount,omitempty" binding:"omitempty,decimal"`
	Currency        string  `json:"currency,omitempty" binding:"omitempty,len=3"`
}

// FinalizeWithdrawalRequest carries the agent's verification record.
type FinalizeWithdrawalRequest struct {
	IDDocumentChecked bool    `json:"id_document_checked"`
	SMSCodeChecked    bool    `json:"sms_code_checked"`
	Notes             string  `json:"notes,omitempty" binding:"omitempty,max=500"`
	Latitude          *string `json:"latitude,omitempty" binding:"omitempty,decimal"`
	Longitude         *string `json:"longitude,omitempty" binding:"omitempty,decimal"`
}

// CancelWithdrawalRequest is the request body for cancelling a cash-out.
type CancelWithdrawalRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// MoneyResponse is the wire form of a monetary value.
type MoneyResponse struct {
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// TransactionResponse is the response body for transfer results.
type TransactionResponse struct {
	ID              string        `json:"id"`
	Num             int64         `json:"num"`
	Code            string        `json:"code"`
	SenderRef       string        `json:"sender_ref"`
	RecipientPhone  string        `json:"recipient_phone"`
	RecipientRef    *string       `json:"recipient_ref,omitempty"`
	RecipientName   *string       `json:"recipient_name,omitempty"`
	AmountSent      MoneyResponse `json:"amount_sent"`
	AmountConverted MoneyResponse `json:"amount_converted"`
	AmountReceived  MoneyResponse `json:"amount_received"`
	Fees            MoneyResponse `json:"fees"`
	FeeDetail       string        `json:"fee_detail"`
	Channel         string        `json:"channel"`
	Status          string        `json:"status"`
	GatewayRef      *string       `json:"gateway_ref,omitempty"`
	ErrorCode       *string       `json:"error_code,omitempty"`
	CreatedAt       string        `json:"created_at"`
	UpdatedAt       string        `json:"updated_at"`
}

// TransactionListResponse wraps a paginated transaction list.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// TransferStatsResponse is the response for transfer statistics.
type TransferStatsResponse struct {
	TotalTransactions int64  `json:"total_transactions"`
	Pending           int64  `json:"pending"`
	Sent              int64  `json:"sent"`
	Done              int64  `json:"done"`
	Cancelled         int64  `json:"cancelled"`
	TotalAmountSent   string `json:"total_amount_sent"`
	TotalFees         string `json:"total_fees"`
}

// WithdrawalResponse is the response body for cash-out results.
type WithdrawalResponse struct {
	ID                string        `json:"id"`
	Code              string        `json:"code"`
	QRCode            string        `json:"qr_code"`
	TransactionID     *string       `json:"transaction_id,omitempty"`
	AgentRef          string        `json:"agent_ref"`
	BeneficiaryRef    string        `json:"beneficiary_ref"`
	Amount            MoneyResponse `json:"amount"`
	Commission        MoneyResponse `json:"commission"`
	Status            string        `json:"status"`
	IDDocumentChecked bool          `json:"id_document_checked"`
	SMSCodeChecked    bool          `json:"sms_code_checked"`
	Notes             string        `json:"notes,omitempty"`
	RequestedAt       string        `json:"requested_at"`
	CompletedAt       *string       `json:"completed_at,omitempty"`
}

// ChannelResponse is the read-only channel introspection payload.
type ChannelResponse struct {
	Kind        string  `json:"kind"`
	Name        string  `json:"name"`
	Active      bool    `json:"active"`
	SuccessRate float64 `json:"success_rate"`
	MinAmount   string  `json:"min_amount"`
	MaxAmount   string  `json:"max_amount"`
	Percent     string  `json:"fee_percent"`
	Fixed       string  `json:"fee_fixed"`
	MinFee      string  `json:"fee_min"`
	MaxFee      string  `json:"fee_max"`
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func toMoneyResponse(m domain.Money) MoneyResponse {
	return MoneyResponse{Amount: m.Amount().StringFixed(domain.MoneyScale), Currency: m.Currency()}
}

// FromTransaction converts a domain transaction to its wire form.
func FromTransaction(tx *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:              tx.ID.String(),
		Num:             tx.Num,
		Code:            tx.Code,
		SenderRef:       tx.SenderRef,
		RecipientPhone:  tx.RecipientPhone,
		RecipientRef:    tx.RecipientRef,
		RecipientName:   tx.RecipientName,
		AmountSent:      toMoneyResponse(tx.AmountSent),
		AmountConverted: toMoneyResponse(tx.AmountConverted),
		AmountReceived:  toMoneyResponse(tx.AmountReceived),
		Fees:            toMoneyResponse(tx.Fees),
		FeeDetail:       tx.FeeDetail,
		Channel:         string(tx.Channel),
		Status:          string(tx.Status),
		GatewayRef:      tx.GatewayRef,
		ErrorCode:       tx.ErrorCode,
		CreatedAt:       tx.CreatedAt.Format(timeLayout),
		UpdatedAt:       tx.UpdatedAt.Format(timeLayout),
	}
	return resp
}

// FromWithdrawal converts a domain withdrawal to its wire form.
func FromWithdrawal(w *domain.Withdrawal) WithdrawalResponse {
	resp := WithdrawalResponse{
		ID:                w.ID.String(),
		Code:              w.Code,
		QRCode:            w.QRCode,
		AgentRef:          w.AgentRef,
		BeneficiaryRef:    w.BeneficiaryRef,
		Amount:            toMoneyResponse(w.Amount),
		Commission:        toMoneyResponse(w.Commission),
		Status:            string(w.Status),
		IDDocumentChecked: w.Verification.IDDocumentChecked,
		SMSCodeChecked:    w.Verification.SMSCodeChecked,
		Notes:             w.Verification.Notes,
		RequestedAt:       w.RequestedAt.Format(timeLayout),
	}
	if w.TransactionID != nil {
		s := w.TransactionID.String()
		resp.TransactionID = &s
	}
	if w.CompletedAt != nil {
		s := w.CompletedAt.Format(timeLayout)
		resp.CompletedAt = &s
	}
	return resp
}

// FromGatewayInfo converts channel introspection data to its wire form.
func FromGatewayInfo(info *ports.GatewayInfo) ChannelResponse {
	return ChannelResponse{
		Kind:        string(info.Kind),
		Name:        info.Name,
		Active:      info.Active,
		SuccessRate: info.SuccessRate,
		MinAmount:   info.MinAmount,
		MaxAmount:   info.MaxAmount,
		Percent:     info.Fees.Percentage.String(),
		Fixed:       info.Fees.Fixed.String(),
		MinFee:      info.Fees.Min.String(),
		MaxFee:      info.Fees.Max.String(),
	}
}

// FromStats converts aggregated counters to their wire form.
func FromStats(s *ports.TransferStats) TransferStatsResponse {
	return TransferStatsResponse{
		TotalTransactions: s.TotalTransactions,
		Pending:           s.Pending,
		Sent:              s.Sent,
		Done:              s.Done,
		Cancelled:         s.Cancelled,
		TotalAmountSent:   s.TotalAmountSent,
		TotalFees:         s.TotalFees,
	}
}
