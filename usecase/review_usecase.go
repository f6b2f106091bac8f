package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"exchange-backend/dao"
	"exchange-backend/model"
	"exchange-backend/pkg/apperr"
	"exchange-backend/pkg/event"
)

type ReviewUsecase struct {
	store  dao.Store
	events event.Publisher
	logger *zap.Logger
	now    func() time.Time
}

func NewReviewUsecase(store dao.Store, events event.Publisher, logger *zap.Logger) *ReviewUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewUsecase{store: store, events: events, logger: logger.Named("review"), now: time.Now}
}

func (u *ReviewUsecase) Subscribe(bus *event.Bus) {
	bus.Subscribe(event.ReviewAdded, u.HandleReviewAdded)
}

// AddReview records the caller's single review of the counter-party on a
// completed transaction.
func (u *ReviewUsecase) AddReview(ctx context.Context, uid, transactionID, targetUID string, rating int, comment string) (*model.Review, error) {
	if err := requireCaller(uid); err != nil {
		return nil, err
	}
	if transactionID == "" || targetUID == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "transaction_id and target_uid are required")
	}
	if rating < model.MinRating || rating > model.MaxRating {
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "rating must be between %d and %d", model.MinRating, model.MaxRating)
	}

	var review *model.Review
	err := u.store.RunInTx(ctx, func(ctx context.Context, tx dao.Tx) error {
		t, err := tx.GetTransactionForUpdate(ctx, transactionID)
		if err != nil {
			return fromStore(err, "transaction "+transactionID)
		}
		if t.Status != model.TransactionStatusCompleted {
			return apperr.New(apperr.CodeFailedPrecondition, "only completed transactions can be reviewed")
		}
		if !t.IsParticipant(uid) {
			return apperr.New(apperr.CodePermissionDenied, "not a participant of this transaction")
		}
		if targetUID != t.CounterParty(uid) {
			return apperr.New(apperr.CodeInvalidArgument, "target must be the other participant")
		}

		rated := &t.BuyerRated
		if uid == t.SellerID {
			rated = &t.SellerRated
		}
		if *rated {
			return apperr.New(apperr.CodeAlreadyExists, "you have already reviewed this transaction")
		}

		now := u.now()
		review = &model.Review{
			ID:            newID(),
			TransactionID: t.ID,
			FromUID:       uid,
			ToUID:         targetUID,
			Rating:        rating,
			Comment:       strings.TrimSpace(comment),
			CreatedAt:     now,
		}
		if err := tx.InsertReview(ctx, review); err != nil {
			if errors.Is(err, dao.ErrDuplicate) {
				return apperr.New(apperr.CodeAlreadyExists, "you have already reviewed this transaction")
			}
			return err
		}

		*rated = true
		t.UpdatedAt = now
		return tx.UpdateTransaction(ctx, t)
	})
	if err != nil {
		return nil, fromStore(err, "add review")
	}

	u.logger.Info("review added",
		zap.String("transaction_id", transactionID),
		zap.String("user_id", uid),
		zap.String("target_uid", targetUID),
		zap.Int("rating", rating))

	if u.events != nil {
		e := event.New(event.ReviewAdded)
		e.TransactionID = transactionID
		e.ActorID = uid
		e.ReviewID = review.ID
		e.TargetUID = targetUID
		e.Rating = rating
		u.events.Publish(ctx, e)
	}
	return review, nil
}

func (u *ReviewUsecase) ListFor(ctx context.Context, uid string) ([]model.Review, error) {
	if _, err := u.store.GetUser(ctx, uid); err != nil {
		return nil, fromStore(err, "user "+uid)
	}
	reviews, err := u.store.ListReviewsFor(ctx, uid)
	if err != nil {
		return nil, fromStore(err, "list reviews")
	}
	return reviews, nil
}

// HandleReviewAdded folds the rating into the target's running average. The
// read-modify-write runs under the target's row lock and the store replays
// it on contention.
func (u *ReviewUsecase) HandleReviewAdded(ctx context.Context, e event.Event) error {
	if e.TargetUID == "" || e.ReviewID == "" {
		return fmt.Errorf("review event %s is missing target or review id", e.ID)
	}

	return u.store.RunInTx(ctx, func(ctx context.Context, tx dao.Tx) error {
		fresh, err := tx.RecordLedgerEntry(ctx, e.TargetUID, "review:"+e.ReviewID, 0)
		if err != nil || !fresh {
			return err
		}

		user, err := tx.GetUserForUpdate(ctx, e.TargetUID)
		if err != nil {
			return err
		}
		user.RatingCount++
		user.RatingSum += e.Rating
		user.AverageRating = averageRating(user.RatingSum, user.RatingCount)
		return tx.UpdateUser(ctx, user)
	})
}

// averageRating rounds to one decimal place.
func averageRating(sum, count int) float64 {
	if count == 0 {
		return 0
	}
	return math.Round(float64(sum)/float64(count)*10) / 10
}
