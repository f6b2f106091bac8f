package dao

import (
	"context"
	"errors"
	"time"

	"exchange-backend/model"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store is the backing store of the exchange. RunInTx is the only way to
// change items, transactions, reviews and reputation: fn either commits as a
// whole or leaves nothing behind. Implementations retry fn transparently on
// write conflicts, so fn must not have effects outside tx.
type Store interface {
	Reader

	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// ClaimReminder flips the reminder flag of kind from false to true and
	// reports whether this caller performed the flip.
	ClaimReminder(ctx context.Context, transactionID string, kind model.ReminderKind) (bool, error)

	CreateUser(ctx context.Context, user *model.User) error
	CreateItem(ctx context.Context, item *model.Item) error
	// CreateBindingCode fails with ErrDuplicate when the code is taken.
	CreateBindingCode(ctx context.Context, code *model.BindingCode) error
}

// Reader holds the non-transactional queries. Two reads are not guaranteed
// to observe the same snapshot.
type Reader interface {
	GetItem(ctx context.Context, id string) (*model.Item, error)
	ListItems(ctx context.Context) ([]model.Item, error)
	GetUser(ctx context.Context, uid string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	ListTransactionsByUser(ctx context.Context, uid string) ([]model.Transaction, error)
	// ListDueMeetings returns pending transactions whose meeting time is at or before now.
	ListDueMeetings(ctx context.Context, now time.Time) ([]model.Transaction, error)
	// ListUpcomingMeetings returns pending transactions meeting in (after, until].
	ListUpcomingMeetings(ctx context.Context, after, until time.Time) ([]model.Transaction, error)
	ListReviewsFor(ctx context.Context, uid string) ([]model.Review, error)
}

// Tx is the view of the store inside one atomic unit. The ForUpdate reads
// lock the row until the unit ends.
type Tx interface {
	GetItemForUpdate(ctx context.Context, id string) (*model.Item, error)
	UpdateItem(ctx context.Context, item *model.Item) error

	InsertTransaction(ctx context.Context, t *model.Transaction) error
	GetTransactionForUpdate(ctx context.Context, id string) (*model.Transaction, error)
	UpdateTransaction(ctx context.Context, t *model.Transaction) error

	InsertReview(ctx context.Context, r *model.Review) error

	GetUserForUpdate(ctx context.Context, uid string) (*model.User, error)
	UpdateUser(ctx context.Context, user *model.User) error
	// UpdateLineBinding writes the LINE account and notification switch.
	UpdateLineBinding(ctx context.Context, user *model.User) error
	// TakeBindingCode deletes the code and returns it, expired or not.
	TakeBindingCode(ctx context.Context, code string) (*model.BindingCode, error)
	// RecordLedgerEntry stores the (uid, key) idempotency key and reports
	// false if it was already present.
	RecordLedgerEntry(ctx context.Context, uid, key string, delta int) (bool, error)
}
