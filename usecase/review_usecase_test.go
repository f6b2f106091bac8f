package usecase

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exchange-backend/model"
	"exchange-backend/pkg/apperr"
	"exchange-backend/pkg/event"
)

func (f *fixture) completed(t *testing.T) *model.Transaction {
	t.Helper()
	tr := f.reserve(t, 48*time.Hour)
	_, err := f.transactions.ConfirmTime(f.ctx, sellerID, tr.ID)
	require.NoError(t, err)
	tr, err = f.transactions.SetStatus(f.ctx, buyerID, tr.ID, model.TransactionStatusCompleted, "")
	require.NoError(t, err)
	f.settle(t)
	return tr
}

func TestAddReviewGuards(t *testing.T) {
	f := newFixture(t)
	pending := f.reserve(t, 48*time.Hour)

	_, err := f.reviews.AddReview(f.ctx, buyerID, pending.ID, sellerID, 5, "")
	assert.ErrorIs(t, err, apperr.ErrFailedPrecondition)

	tr := f.completed(t)
	cases := []struct {
		name   string
		uid    string
		target string
		rating int
		want   error
	}{
		{"rating too low", buyerID, sellerID, 0, apperr.ErrInvalidArgument},
		{"rating too high", buyerID, sellerID, 6, apperr.ErrInvalidArgument},
		{"outsider", otherID, sellerID, 4, apperr.ErrPermissionDenied},
		{"self review", buyerID, buyerID, 4, apperr.ErrInvalidArgument},
		{"third party target", buyerID, otherID, 4, apperr.ErrInvalidArgument},
		{"anonymous", "", sellerID, 4, apperr.ErrUnauthenticated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.reviews.AddReview(f.ctx, tc.uid, tr.ID, tc.target, tc.rating, "")
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestAddReviewOncePerRater(t *testing.T) {
	f := newFixture(t)
	tr := f.completed(t)

	review, err := f.reviews.AddReview(f.ctx, buyerID, tr.ID, sellerID, 4, "  friendly  ")
	require.NoError(t, err)
	assert.Equal(t, "friendly", review.Comment)
	assert.True(t, f.transaction(t, tr.ID).BuyerRated)

	_, err = f.reviews.AddReview(f.ctx, buyerID, tr.ID, sellerID, 5, "again")
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	_, err = f.reviews.AddReview(f.ctx, sellerID, tr.ID, buyerID, 5, "")
	require.NoError(t, err, "the other side still has its own review")

	f.settle(t)
	seller := f.user(t, sellerID)
	assert.Equal(t, 1, seller.RatingCount)
	assert.Equal(t, 4, seller.RatingSum)
	assert.Equal(t, 4.0, seller.AverageRating)

	reviews, err := f.reviews.ListFor(f.ctx, sellerID)
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}

func TestConcurrentReviewsForSameTargetAllCount(t *testing.T) {
	f := newFixture(t)

	const n = 12
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e := event.New(event.ReviewAdded)
			e.ReviewID = fmt.Sprintf("r-%d", i)
			e.TargetUID = sellerID
			e.Rating = i%5 + 1
			assert.NoError(t, f.reviews.HandleReviewAdded(f.ctx, e))
		}(i)
	}
	wg.Wait()

	seller := f.user(t, sellerID)
	assert.Equal(t, n, seller.RatingCount)
	sum := 0
	for i := 0; i < n; i++ {
		sum += i%5 + 1
	}
	assert.Equal(t, sum, seller.RatingSum)
	assert.Equal(t, averageRating(sum, n), seller.AverageRating)
}

func TestReviewAggregationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	e := event.New(event.ReviewAdded)
	e.ReviewID = "r-1"
	e.TargetUID = buyerID
	e.Rating = 3

	require.NoError(t, f.reviews.HandleReviewAdded(f.ctx, e))
	require.NoError(t, f.reviews.HandleReviewAdded(f.ctx, e))

	buyer := f.user(t, buyerID)
	assert.Equal(t, 1, buyer.RatingCount)
	assert.Equal(t, 3, buyer.RatingSum)
}

func TestAverageRatingRoundsToOneDecimal(t *testing.T) {
	assert.Equal(t, 0.0, averageRating(0, 0))
	assert.Equal(t, 4.7, averageRating(14, 3))
	assert.Equal(t, 3.3, averageRating(10, 3))
	assert.Equal(t, 5.0, averageRating(5, 1))
}
