package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exchange-backend/model"
	"exchange-backend/pkg/event"
)

func terminalEvent(typ event.Type, transactionID string) event.Event {
	e := event.New(typ)
	e.TransactionID = transactionID
	e.BuyerID = buyerID
	e.SellerID = sellerID
	return e
}

func TestRedeliveredEventAdjustsScoreOnce(t *testing.T) {
	f := newFixture(t)
	e := terminalEvent(event.TransactionCompleted, "T1")

	for i := 0; i < 3; i++ {
		require.NoError(t, f.reputation.HandleTransactionEvent(f.ctx, e))
	}

	for _, uid := range []string{buyerID, sellerID} {
		u := f.user(t, uid)
		assert.Equal(t, model.DefaultCreditScore+CompletionScoreDelta, u.CreditScore, uid)
		assert.Equal(t, 1, u.CompletedTransactions, uid)
	}
	assert.Len(t, f.notifier.Emails(), 1, "seller is emailed once")
}

func TestDistinctTransactionsAccumulate(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.reputation.HandleTransactionEvent(f.ctx, terminalEvent(event.TransactionCompleted, "T1")))
	require.NoError(t, f.reputation.HandleTransactionEvent(f.ctx, terminalEvent(event.TransactionCanceled, "T2")))

	u := f.user(t, buyerID)
	assert.Equal(t, model.DefaultCreditScore+CompletionScoreDelta+CancellationScoreDelta, u.CreditScore)
	assert.Equal(t, 1, u.CompletedTransactions)
	assert.Equal(t, 1, u.CanceledTransactions)
	assert.Equal(t, 1, u.TotalTransactions)
}

func TestMissingParticipantDoesNotBlockTheOther(t *testing.T) {
	f := newFixture(t)
	e := terminalEvent(event.TransactionCanceled, "T1")
	e.BuyerID = "ghost"

	err := f.reputation.HandleTransactionEvent(f.ctx, e)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
	assert.Equal(t, model.DefaultCreditScore+CancellationScoreDelta, f.user(t, sellerID).CreditScore)

	// The failed unit left no ledger entry behind, so a later retry can still apply.
	require.NoError(t, f.store.CreateUser(f.ctx, &model.User{ID: "ghost", Email: "ghost@example.com", CreditScore: model.DefaultCreditScore, CreatedAt: time.Now()}))
	require.NoError(t, f.reputation.HandleTransactionEvent(f.ctx, e))
	assert.Equal(t, model.DefaultCreditScore+CancellationScoreDelta, f.user(t, "ghost").CreditScore)
	assert.Equal(t, model.DefaultCreditScore+CancellationScoreDelta, f.user(t, sellerID).CreditScore)
}

func TestUnexpectedEventType(t *testing.T) {
	f := newFixture(t)
	assert.Error(t, f.reputation.HandleTransactionEvent(f.ctx, terminalEvent(event.ReviewAdded, "T1")))
}

func TestCompletionEmailMentionsItem(t *testing.T) {
	subject, body := completionEmail(&model.User{Name: "Sam"}, &model.Item{Name: "Desk lamp"}, "T9")
	assert.NotEmpty(t, subject)
	assert.Contains(t, body, "Sam")
	assert.Contains(t, body, `"Desk lamp"`)
	assert.Contains(t, body, "T9")
}
