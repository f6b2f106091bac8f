package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"exchange-backend/dao"
	"exchange-backend/model"
	"exchange-backend/pkg/apperr"
	"exchange-backend/pkg/event"
)

const (
	MaxReschedules = 2
	// RescheduleWindow is how close to the meeting a reschedule may still be requested.
	RescheduleWindow = 2 * time.Hour
)

type TransactionUsecase struct {
	store  dao.Store
	events event.Publisher
	logger *zap.Logger
	now    func() time.Time
}

func NewTransactionUsecase(store dao.Store, events event.Publisher, logger *zap.Logger) *TransactionUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransactionUsecase{
		store:  store,
		events: events,
		logger: logger.Named("transaction"),
		now:    time.Now,
	}
}

type ReserveInput struct {
	ItemID  string
	BuyerID string
	// Price is the agreed price; 0 takes the listed price.
	Price           int
	MeetingTime     *time.Time
	MeetingLocation string
}

// Reserve flips the item from available to reserved and opens a pending
// transaction for it. Both happen in one atomic unit.
func (u *TransactionUsecase) Reserve(ctx context.Context, in ReserveInput) (*model.Transaction, error) {
	if err := requireCaller(in.BuyerID); err != nil {
		return nil, err
	}
	if in.ItemID == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "item_id is required")
	}
	if in.Price < 0 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "price must not be negative")
	}

	var created *model.Transaction
	err := u.store.RunInTx(ctx, func(ctx context.Context, tx dao.Tx) error {
		item, err := tx.GetItemForUpdate(ctx, in.ItemID)
		if err != nil {
			return fromStore(err, "item "+in.ItemID)
		}
		if item.Status != model.ItemStatusAvailable {
			return apperr.Newf(apperr.CodeConflict, "item %s is %s", item.ID, item.Status)
		}
		if item.UserID == in.BuyerID {
			return apperr.New(apperr.CodeInvalidArgument, "cannot reserve your own item")
		}

		now := u.now()
		item.Status = model.ItemStatusReserved
		buyer := in.BuyerID
		item.ReservedBy = &buyer
		item.UpdatedAt = now
		if err := tx.UpdateItem(ctx, item); err != nil {
			return err
		}

		price := in.Price
		if price == 0 {
			price = item.Price
		}
		t := &model.Transaction{
			ID:              newID(),
			ItemID:          item.ID,
			BuyerID:         in.BuyerID,
			SellerID:        item.UserID,
			Price:           price,
			Status:          model.TransactionStatusPending,
			MeetingTime:     in.MeetingTime,
			MeetingLocation: in.MeetingLocation,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.InsertTransaction(ctx, t); err != nil {
			return err
		}
		created = t
		return nil
	})
	if err != nil {
		return nil, fromStore(err, "reserve")
	}

	u.logger.Info("item reserved",
		zap.String("transaction_id", created.ID),
		zap.String("item_id", created.ItemID),
		zap.String("user_id", created.BuyerID))
	return created, nil
}

func (u *TransactionUsecase) Get(ctx context.Context, uid, id string) (*model.Transaction, error) {
	if err := requireCaller(uid); err != nil {
		return nil, err
	}
	t, err := u.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, fromStore(err, "transaction "+id)
	}
	if !t.IsParticipant(uid) {
		return nil, apperr.New(apperr.CodePermissionDenied, "not a participant of this transaction")
	}
	return t, nil
}

func (u *TransactionUsecase) List(ctx context.Context, uid string) ([]model.Transaction, error) {
	if err := requireCaller(uid); err != nil {
		return nil, err
	}
	ts, err := u.store.ListTransactionsByUser(ctx, uid)
	if err != nil {
		return nil, fromStore(err, "list transactions")
	}
	return ts, nil
}

// mutate runs fn against the locked transaction row and persists it.
func (u *TransactionUsecase) mutate(ctx context.Context, id string, fn func(ctx context.Context, tx dao.Tx, t *model.Transaction, now time.Time) error) (*model.Transaction, error) {
	var out *model.Transaction
	err := u.store.RunInTx(ctx, func(ctx context.Context, tx dao.Tx) error {
		t, err := tx.GetTransactionForUpdate(ctx, id)
		if err != nil {
			return fromStore(err, "transaction "+id)
		}
		now := u.now()
		if err := fn(ctx, tx, t, now); err != nil {
			return err
		}
		t.UpdatedAt = now
		if err := tx.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, fromStore(err, "transaction "+id)
	}
	return out, nil
}

// ConfirmTime lets the seller accept the meeting time the buyer proposed.
func (u *TransactionUsecase) ConfirmTime(ctx context.Context, uid, id string) (*model.Transaction, error) {
	if err := requireCaller(uid); err != nil {
		return nil, err
	}
	return u.mutate(ctx, id, func(_ context.Context, _ dao.Tx, t *model.Transaction, _ time.Time) error {
		if t.SellerID != uid {
			return apperr.New(apperr.CodePermissionDenied, "only the seller can confirm the meeting time")
		}
		if t.Status != model.TransactionStatusPending {
			return apperr.Newf(apperr.CodeFailedPrecondition, "transaction is %s", t.Status)
		}
		if t.IsTimeAgreed {
			return apperr.New(apperr.CodeFailedPrecondition, "meeting time already agreed")
		}
		t.IsTimeAgreed = true
		return nil
	})
}

type RescheduleInput struct {
	NewTime     time.Time
	NewLocation string
	Reason      string
}

func (u *TransactionUsecase) RequestReschedule(ctx context.Context, uid, id string, in RescheduleInput) (*model.Transaction, error) {
	if err := requireCaller(uid); err != nil {
		return nil, err
	}
	if in.NewTime.IsZero() {
		return nil, apperr.New(apperr.CodeInvalidArgument, "new_time is required")
	}

	return u.mutate(ctx, id, func(_ context.Context, _ dao.Tx, t *model.Transaction, now time.Time) error {
		if !t.IsParticipant(uid) {
			return apperr.New(apperr.CodePermissionDenied, "not a participant of this transaction")
		}
		if t.Status != model.TransactionStatusPending {
			return apperr.Newf(apperr.CodeFailedPrecondition, "transaction is %s", t.Status)
		}
		if t.RescheduleCount >= MaxReschedules {
			return apperr.Newf(apperr.CodeResourceExhausted, "reschedule limit of %d reached", MaxReschedules)
		}
		if t.RescheduleRequest != nil {
			return apperr.New(apperr.CodeAlreadyExists, "a reschedule request is already pending")
		}
		if t.MeetingTime != nil && t.MeetingTime.Sub(now) < RescheduleWindow {
			return apperr.Newf(apperr.CodeDeadlineExceeded, "meeting is less than %s away", RescheduleWindow)
		}
		if !in.NewTime.After(now) {
			return apperr.New(apperr.CodeInvalidArgument, "new_time must be in the future")
		}

		t.RescheduleRequest = &model.RescheduleRequest{
			NewTime:     in.NewTime,
			NewLocation: in.NewLocation,
			RequesterID: uid,
			Reason:      in.Reason,
			RequestedAt: now,
		}
		return nil
	})
}

// RespondReschedule resolves the outstanding request. Only the participant
// who did not ask may answer.
func (u *TransactionUsecase) RespondReschedule(ctx context.Context, uid, id string, accept bool) (*model.Transaction, error) {
	if err := requireCaller(uid); err != nil {
		return nil, err
	}

	return u.mutate(ctx, id, func(_ context.Context, _ dao.Tx, t *model.Transaction, _ time.Time) error {
		req := t.RescheduleRequest
		if req == nil {
			return apperr.New(apperr.CodeFailedPrecondition, "no pending reschedule request")
		}
		if req.RequesterID == uid {
			return apperr.New(apperr.CodePermissionDenied, "cannot respond to your own request")
		}
		if !t.IsParticipant(uid) {
			return apperr.New(apperr.CodePermissionDenied, "not a participant of this transaction")
		}
		if t.Status != model.TransactionStatusPending {
			return apperr.Newf(apperr.CodeFailedPrecondition, "transaction is %s", t.Status)
		}

		t.RescheduleRequest = nil
		if !accept {
			return nil
		}
		if t.RescheduleCount >= MaxReschedules {
			return apperr.Newf(apperr.CodeResourceExhausted, "reschedule limit of %d reached", MaxReschedules)
		}
		newTime := req.NewTime
		t.MeetingTime = &newTime
		if req.NewLocation != "" {
			t.MeetingLocation = req.NewLocation
		}
		t.RescheduleCount++
		t.IsMeetingNudgeSent = false
		t.IsReminderSent = false
		return nil
	})
}

// SetStatus moves a pending transaction to completed or canceled and
// resolves the item in the same unit.
func (u *TransactionUsecase) SetStatus(ctx context.Context, uid, id string, status model.TransactionStatus, reason string) (*model.Transaction, error) {
	if err := requireCaller(uid); err != nil {
		return nil, err
	}
	if status != model.TransactionStatusCompleted && status != model.TransactionStatusCanceled {
		return nil, apperr.Newf(apperr.CodeInvalidArgument, "invalid status %q", status)
	}

	t, err := u.mutate(ctx, id, func(ctx context.Context, tx dao.Tx, t *model.Transaction, now time.Time) error {
		if t.Status != model.TransactionStatusPending {
			return apperr.Newf(apperr.CodeFailedPrecondition, "transaction is already %s", t.Status)
		}
		if !t.IsParticipant(uid) {
			return apperr.New(apperr.CodePermissionDenied, "not a participant of this transaction")
		}
		if status == model.TransactionStatusCompleted {
			if uid != t.BuyerID {
				return apperr.New(apperr.CodePermissionDenied, "only the buyer can complete the transaction")
			}
			if !t.IsTimeAgreed {
				return apperr.New(apperr.CodeFailedPrecondition, "meeting time has not been agreed")
			}
			return u.complete(ctx, tx, t, now)
		}
		return u.cancel(ctx, tx, t, uid, reason, now)
	})
	if err != nil {
		return nil, err
	}
	u.publishTerminal(ctx, t, uid)
	return t, nil
}

// ReportOutcome records a participant's answer to the post-meeting nudge.
// Two successes complete the transaction; one failure cancels it.
func (u *TransactionUsecase) ReportOutcome(ctx context.Context, uid, id string, success bool, reason string) (*model.Transaction, error) {
	if err := requireCaller(uid); err != nil {
		return nil, err
	}

	t, err := u.mutate(ctx, id, func(ctx context.Context, tx dao.Tx, t *model.Transaction, now time.Time) error {
		if !t.IsParticipant(uid) {
			return apperr.New(apperr.CodePermissionDenied, "not a participant of this transaction")
		}
		if t.Status != model.TransactionStatusPending {
			return apperr.Newf(apperr.CodeFailedPrecondition, "transaction is already %s", t.Status)
		}
		if !success {
			if reason == "" {
				reason = "meeting failed"
			}
			return u.cancel(ctx, tx, t, uid, reason, now)
		}

		if uid == t.BuyerID {
			t.BuyerConfirmed = true
		} else {
			t.SellerConfirmed = true
		}
		if t.BuyerConfirmed && t.SellerConfirmed {
			return u.complete(ctx, tx, t, now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.publishTerminal(ctx, t, uid)
	return t, nil
}

func (u *TransactionUsecase) complete(ctx context.Context, tx dao.Tx, t *model.Transaction, now time.Time) error {
	item, err := tx.GetItemForUpdate(ctx, t.ItemID)
	if err != nil {
		return fromStore(err, "item "+t.ItemID)
	}
	item.Status = model.ItemStatusSold
	item.UpdatedAt = now
	if err := tx.UpdateItem(ctx, item); err != nil {
		return err
	}

	t.Status = model.TransactionStatusCompleted
	t.CompletedAt = &now
	t.RescheduleRequest = nil
	return nil
}

func (u *TransactionUsecase) cancel(ctx context.Context, tx dao.Tx, t *model.Transaction, uid, reason string, now time.Time) error {
	item, err := tx.GetItemForUpdate(ctx, t.ItemID)
	if err != nil {
		return fromStore(err, "item "+t.ItemID)
	}
	item.Status = model.ItemStatusAvailable
	item.ReservedBy = nil
	item.UpdatedAt = now
	if err := tx.UpdateItem(ctx, item); err != nil {
		return err
	}

	by := uid
	t.Status = model.TransactionStatusCanceled
	t.CanceledBy = &by
	t.CancelReason = reason
	t.CanceledAt = &now
	t.RescheduleRequest = nil
	return nil
}

// publishTerminal emits the post-commit event for a transaction that has
// just reached a terminal state. Non-terminal results are ignored.
func (u *TransactionUsecase) publishTerminal(ctx context.Context, t *model.Transaction, actor string) {
	var typ event.Type
	switch t.Status {
	case model.TransactionStatusCompleted:
		typ = event.TransactionCompleted
	case model.TransactionStatusCanceled:
		typ = event.TransactionCanceled
	default:
		return
	}

	u.logger.Info("transaction resolved",
		zap.String("transaction_id", t.ID),
		zap.String("status", string(t.Status)),
		zap.String("user_id", actor))

	if u.events == nil {
		return
	}
	e := event.New(typ)
	e.TransactionID = t.ID
	e.ItemID = t.ItemID
	e.BuyerID = t.BuyerID
	e.SellerID = t.SellerID
	e.ActorID = actor
	u.events.Publish(ctx, e)
}
