package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"exchange-backend/dao"
	"exchange-backend/model"
	"exchange-backend/pkg/event"
)

const (
	CompletionScoreDelta   = 5
	CancellationScoreDelta = -10
)

// ReputationUsecase applies the credit consequences of terminal
// transactions. It runs after the transition has committed and never
// affects it.
type ReputationUsecase struct {
	store    dao.Store
	notifier Notifier
	logger   *zap.Logger
}

func NewReputationUsecase(store dao.Store, notifier Notifier, logger *zap.Logger) *ReputationUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReputationUsecase{store: store, notifier: notifier, logger: logger.Named("reputation")}
}

func (u *ReputationUsecase) Subscribe(bus *event.Bus) {
	bus.Subscribe(event.TransactionCompleted, u.HandleTransactionEvent)
	bus.Subscribe(event.TransactionCanceled, u.HandleTransactionEvent)
}

// HandleTransactionEvent adjusts both participants. Each participant is its
// own atomic unit keyed by the transaction id in the ledger, so a
// redelivered event changes nothing.
func (u *ReputationUsecase) HandleTransactionEvent(ctx context.Context, e event.Event) error {
	var delta int
	switch e.Type {
	case event.TransactionCompleted:
		delta = CompletionScoreDelta
	case event.TransactionCanceled:
		delta = CancellationScoreDelta
	default:
		return fmt.Errorf("unexpected event type %q", e.Type)
	}

	var errs []error
	sellerApplied := false
	for _, uid := range []string{e.BuyerID, e.SellerID} {
		if uid == "" {
			continue
		}
		applied, err := u.apply(ctx, uid, e.TransactionID, delta, e.Type)
		if err != nil {
			errs = append(errs, fmt.Errorf("user %s: %w", uid, err))
			continue
		}
		if applied && uid == e.SellerID {
			sellerApplied = true
		}
	}

	if e.Type == event.TransactionCompleted && sellerApplied {
		u.emailSeller(ctx, e)
	}
	return errors.Join(errs...)
}

func (u *ReputationUsecase) apply(ctx context.Context, uid, transactionID string, delta int, typ event.Type) (bool, error) {
	applied := false
	err := u.store.RunInTx(ctx, func(ctx context.Context, tx dao.Tx) error {
		fresh, err := tx.RecordLedgerEntry(ctx, uid, transactionID, delta)
		if err != nil || !fresh {
			return err
		}

		user, err := tx.GetUserForUpdate(ctx, uid)
		if err != nil {
			return err
		}
		user.CreditScore += delta
		if typ == event.TransactionCompleted {
			user.CompletedTransactions++
			user.TotalTransactions++
		} else {
			user.CanceledTransactions++
		}
		if err := tx.UpdateUser(ctx, user); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if applied {
		u.logger.Info("credit score adjusted",
			zap.String("user_id", uid),
			zap.String("transaction_id", transactionID),
			zap.Int("delta", delta))
	} else {
		u.logger.Debug("credit adjustment already applied",
			zap.String("user_id", uid),
			zap.String("transaction_id", transactionID))
	}
	return applied, nil
}

func (u *ReputationUsecase) emailSeller(ctx context.Context, e event.Event) {
	if u.notifier == nil {
		return
	}
	seller, err := u.store.GetUser(ctx, e.SellerID)
	if err != nil {
		u.logger.Warn("seller lookup for completion email failed", zap.String("user_id", e.SellerID), zap.Error(err))
		return
	}
	if seller.Email == "" {
		return
	}

	var item *model.Item
	if e.ItemID != "" {
		item, _ = u.store.GetItem(ctx, e.ItemID)
	}
	subject, body := completionEmail(seller, item, e.TransactionID)
	u.notifier.Email(ctx, seller.Email, subject, body)
}

func completionEmail(seller *model.User, item *model.Item, transactionID string) (string, string) {
	name := "your item"
	if item != nil && item.Name != "" {
		name = fmt.Sprintf("%q", item.Name)
	}
	subject := "Your exchange has been completed"
	body := fmt.Sprintf("Hi %s,\n\nThe buyer has confirmed receipt of %s.\nTransaction: %s\nYour credit score went up by %d points.\n\nThanks for trading with us.\n",
		seller.Name, name, transactionID, CompletionScoreDelta)
	return subject, body
}
