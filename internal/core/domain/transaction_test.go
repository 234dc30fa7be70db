package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func allTransactionStatuses() []TransactionStatus {
	return []TransactionStatus{
		TransactionPending, TransactionAccepted, TransactionSent,
		TransactionDone, TransactionCancelled,
	}
}

func TestTransactionStatus_TransitionTable(t *testing.T) {
	allowed := map[TransactionStatus]map[TransactionStatus]bool{
		TransactionPending:  {TransactionAccepted: true, TransactionCancelled: true},
		TransactionAccepted: {TransactionSent: true, TransactionCancelled: true},
		TransactionSent:     {TransactionDone: true},
	}

	// Every (from, to) pair not in the table must be rejected.
	for _, from := range allTransactionStatuses() {
		for _, to := range allTransactionStatuses() {
			want := allowed[from][to]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestTransactionStatus_IsTerminal(t *testing.T) {
	assert.False(t, TransactionPending.IsTerminal())
	assert.False(t, TransactionAccepted.IsTerminal())
	assert.False(t, TransactionSent.IsTerminal())
	assert.True(t, TransactionDone.IsTerminal())
	assert.True(t, TransactionCancelled.IsTerminal())
}

func TestTransaction_Advance_RejectsIllegalMove(t *testing.T) {
	txn := &Transaction{Status: TransactionDone}

	err := txn.Advance(TransactionSent)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, TransactionDone, txn.Status, "status must stay unchanged on failure")
}

func TestTransaction_Advance_LinearPath(t *testing.T) {
	txn := &Transaction{Status: TransactionPending}

	assert.NoError(t, txn.Advance(TransactionAccepted))
	assert.NoError(t, txn.Advance(TransactionSent))
	assert.True(t, txn.ReadyForCashOut())
	assert.NoError(t, txn.Advance(TransactionDone))
	assert.ErrorIs(t, txn.Advance(TransactionCancelled), ErrInvalidTransition)
}

func TestParseTransactionStatus(t *testing.T) {
	s, err := ParseTransactionStatus("SENT")
	assert.NoError(t, err)
	assert.Equal(t, TransactionSent, s)

	_, err = ParseTransactionStatus("SHIPPED")
	assert.Error(t, err)
}

func TestWithdrawalStatus_TransitionTable(t *testing.T) {
	statuses := []WithdrawalStatus{
		WithdrawalPending, WithdrawalAccepted, WithdrawalDone, WithdrawalCancelled,
	}
	allowed := map[WithdrawalStatus]map[WithdrawalStatus]bool{
		WithdrawalPending:  {WithdrawalAccepted: true, WithdrawalCancelled: true},
		WithdrawalAccepted: {WithdrawalDone: true, WithdrawalCancelled: true},
	}

	for _, from := range statuses {
		for _, to := range statuses {
			want := allowed[from][to]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestWithdrawal_InProgress(t *testing.T) {
	w := &Withdrawal{Status: WithdrawalPending}
	assert.True(t, w.InProgress())

	_ = w.Advance(WithdrawalAccepted)
	assert.True(t, w.InProgress())

	_ = w.Advance(WithdrawalDone)
	assert.False(t, w.InProgress())
}

func TestParseChannelKind(t *testing.T) {
	kind, err := ParseChannelKind("WAVE")
	assert.NoError(t, err)
	assert.Equal(t, ChannelWave, kind)

	_, err = ParseChannelKind("KPAY")
	assert.ErrorIs(t, err, ErrUnknownChannel)
}

func TestNormalizePhone(t *testing.T) {
	assert.Equal(t, "+221771234567", NormalizePhone("+221 77 123-45-67"))
}
