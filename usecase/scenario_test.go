package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exchange-backend/model"
	"exchange-backend/pkg/apperr"
)

// Item X at 300; U1 reserves, U2 is turned away, the seller confirms, U1
// completes and reviews once.
func TestExchangeScenario(t *testing.T) {
	f := newFixture(t)
	x := f.addItem(t, 300)

	t1, err := f.transactions.Reserve(f.ctx, ReserveInput{ItemID: x.ID, BuyerID: buyerID, Price: 300})
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusPending, t1.Status)
	assert.Equal(t, model.ItemStatusReserved, f.item(t, x.ID).Status)

	_, err = f.transactions.Reserve(f.ctx, ReserveInput{ItemID: x.ID, BuyerID: otherID, Price: 300})
	require.ErrorIs(t, err, apperr.ErrConflict)
	assert.Equal(t, buyerID, *f.item(t, x.ID).ReservedBy)

	t1, err = f.transactions.ConfirmTime(f.ctx, sellerID, t1.ID)
	require.NoError(t, err)
	assert.True(t, t1.IsTimeAgreed)

	t1, err = f.transactions.SetStatus(f.ctx, buyerID, t1.ID, model.TransactionStatusCompleted, "")
	require.NoError(t, err)
	assert.Equal(t, model.TransactionStatusCompleted, t1.Status)
	f.settle(t)
	assert.Equal(t, model.DefaultCreditScore+5, f.user(t, buyerID).CreditScore)
	assert.Equal(t, model.DefaultCreditScore+5, f.user(t, sellerID).CreditScore)

	_, err = f.reviews.AddReview(f.ctx, buyerID, t1.ID, sellerID, 5, "great")
	require.NoError(t, err)
	assert.True(t, f.transaction(t, t1.ID).BuyerRated)

	_, err = f.reviews.AddReview(f.ctx, buyerID, t1.ID, sellerID, 5, "great")
	require.ErrorIs(t, err, apperr.ErrAlreadyExists)

	f.settle(t)
	assert.Equal(t, 5.0, f.user(t, sellerID).AverageRating)
}
