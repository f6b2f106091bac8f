package dao

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"exchange-backend/model"
	"exchange-backend/pkg/backoff"
)

const (
	defaultTxAttempts = 3
	txRetryBase       = 20 * time.Millisecond
)

// MySQLStore implements Store on top of InnoDB row locks.
type MySQLStore struct {
	db      *sql.DB
	items   *ItemRepository
	users   *UserRepository
	txs     *TransactionRepository
	reviews *ReviewRepository
	logger  *zap.Logger

	attempts int
}

func NewMySQLStore(db *sql.DB, logger *zap.Logger) *MySQLStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MySQLStore{
		db:       db,
		items:    NewItemRepository(db),
		users:    NewUserRepository(db),
		txs:      NewTransactionRepository(db),
		reviews:  NewReviewRepository(db),
		logger:   logger,
		attempts: defaultTxAttempts,
	}
}

// RunInTx runs fn in a database transaction and replays it when InnoDB picks
// it as a deadlock victim or a lock wait times out.
func (s *MySQLStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	var err error
	for attempt := 0; attempt < s.attempts; attempt++ {
		if attempt > 0 {
			delay := backoff.ExponentialWithJitter(txRetryBase, attempt)
			s.logger.Debug("retrying transaction", zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))
			if serr := backoff.Sleep(ctx, delay); serr != nil {
				return serr
			}
		}

		err = s.runOnce(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}
	}
	return fmt.Errorf("transaction gave up after %d attempts: %w", s.attempts, err)
}

func (s *MySQLStore) runOnce(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	tx := &mysqlTx{
		items:   s.items.withTx(sqlTx),
		users:   s.users.withTx(sqlTx),
		txs:     s.txs.withTx(sqlTx),
		reviews: s.reviews.withTx(sqlTx),
	}
	if err := fn(ctx, tx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			s.logger.Warn("rollback failed", zap.Error(rbErr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *MySQLStore) ClaimReminder(ctx context.Context, transactionID string, kind model.ReminderKind) (bool, error) {
	return s.txs.ClaimReminder(ctx, transactionID, kind)
}

func (s *MySQLStore) CreateUser(ctx context.Context, user *model.User) error {
	return s.users.Insert(ctx, user)
}

func (s *MySQLStore) CreateItem(ctx context.Context, item *model.Item) error {
	return s.items.Insert(ctx, item)
}

func (s *MySQLStore) CreateBindingCode(ctx context.Context, code *model.BindingCode) error {
	return s.users.InsertBindingCode(ctx, code)
}

func (s *MySQLStore) GetItem(ctx context.Context, id string) (*model.Item, error) {
	return s.items.GetByID(ctx, id)
}

func (s *MySQLStore) ListItems(ctx context.Context) ([]model.Item, error) {
	return s.items.GetAll(ctx)
}

func (s *MySQLStore) GetUser(ctx context.Context, uid string) (*model.User, error) {
	return s.users.GetByID(ctx, uid)
}

func (s *MySQLStore) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.users.GetByEmail(ctx, email)
}

func (s *MySQLStore) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	return s.txs.GetByID(ctx, id)
}

func (s *MySQLStore) ListTransactionsByUser(ctx context.Context, uid string) ([]model.Transaction, error) {
	return s.txs.ListByUser(ctx, uid)
}

func (s *MySQLStore) ListDueMeetings(ctx context.Context, now time.Time) ([]model.Transaction, error) {
	return s.txs.ListDue(ctx, now)
}

func (s *MySQLStore) ListUpcomingMeetings(ctx context.Context, after, until time.Time) ([]model.Transaction, error) {
	return s.txs.ListUpcoming(ctx, after, until)
}

func (s *MySQLStore) ListReviewsFor(ctx context.Context, uid string) ([]model.Review, error) {
	return s.reviews.ListFor(ctx, uid)
}

type mysqlTx struct {
	items   *ItemRepository
	users   *UserRepository
	txs     *TransactionRepository
	reviews *ReviewRepository
}

func (t *mysqlTx) GetItemForUpdate(ctx context.Context, id string) (*model.Item, error) {
	return t.items.getForUpdate(ctx, id)
}

func (t *mysqlTx) UpdateItem(ctx context.Context, item *model.Item) error {
	return t.items.Update(ctx, item)
}

func (t *mysqlTx) InsertTransaction(ctx context.Context, tr *model.Transaction) error {
	return t.txs.Insert(ctx, tr)
}

func (t *mysqlTx) GetTransactionForUpdate(ctx context.Context, id string) (*model.Transaction, error) {
	return t.txs.getForUpdate(ctx, id)
}

func (t *mysqlTx) UpdateTransaction(ctx context.Context, tr *model.Transaction) error {
	return t.txs.Update(ctx, tr)
}

func (t *mysqlTx) InsertReview(ctx context.Context, r *model.Review) error {
	return t.reviews.Insert(ctx, r)
}

func (t *mysqlTx) GetUserForUpdate(ctx context.Context, uid string) (*model.User, error) {
	return t.users.getForUpdate(ctx, uid)
}

func (t *mysqlTx) UpdateUser(ctx context.Context, user *model.User) error {
	return t.users.Update(ctx, user)
}

func (t *mysqlTx) UpdateLineBinding(ctx context.Context, user *model.User) error {
	return t.users.UpdateLineBinding(ctx, user)
}

func (t *mysqlTx) TakeBindingCode(ctx context.Context, code string) (*model.BindingCode, error) {
	return t.users.takeBindingCode(ctx, code)
}

func (t *mysqlTx) RecordLedgerEntry(ctx context.Context, uid, key string, delta int) (bool, error) {
	return t.users.recordLedger(ctx, uid, key, delta)
}

var _ Store = (*MySQLStore)(nil)
