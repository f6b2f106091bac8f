package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"exchange-backend/model"
)

type TransactionRepository struct {
	db querier
}

func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (r *TransactionRepository) withTx(tx *sql.Tx) *TransactionRepository {
	return &TransactionRepository{db: tx}
}

const transactionColumns = `id, item_id, buyer_id, seller_id, price, status,
	meeting_time, meeting_location, is_time_agreed, reschedule_count,
	reschedule_new_time, reschedule_new_location, reschedule_requester_id, reschedule_reason, reschedule_requested_at,
	is_meeting_nudge_sent, is_reminder_sent, buyer_rated, seller_rated, buyer_confirmed, seller_confirmed,
	canceled_by, cancel_reason, completed_at, canceled_at, created_at, updated_at`

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var t model.Transaction
	var (
		meetingTime, reqTime, reqAt, completedAt, canceledAt sql.NullTime
		reqLocation, reqRequester, reqReason, canceledBy     sql.NullString
	)

	err := row.Scan(
		&t.ID, &t.ItemID, &t.BuyerID, &t.SellerID, &t.Price, &t.Status,
		&meetingTime, &t.MeetingLocation, &t.IsTimeAgreed, &t.RescheduleCount,
		&reqTime, &reqLocation, &reqRequester, &reqReason, &reqAt,
		&t.IsMeetingNudgeSent, &t.IsReminderSent, &t.BuyerRated, &t.SellerRated, &t.BuyerConfirmed, &t.SellerConfirmed,
		&canceledBy, &t.CancelReason, &completedAt, &canceledAt, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.MeetingTime = timePtr(meetingTime)
	t.CanceledBy = stringPtr(canceledBy)
	t.CompletedAt = timePtr(completedAt)
	t.CanceledAt = timePtr(canceledAt)
	if reqRequester.Valid && reqTime.Valid {
		t.RescheduleRequest = &model.RescheduleRequest{
			NewTime:     reqTime.Time,
			NewLocation: reqLocation.String,
			RequesterID: reqRequester.String,
			Reason:      reqReason.String,
			RequestedAt: reqAt.Time,
		}
	}
	return &t, nil
}

// rescheduleArgs flattens the optional request into its nullable columns.
func rescheduleArgs(req *model.RescheduleRequest) []any {
	if req == nil {
		return []any{sql.NullTime{}, sql.NullString{}, sql.NullString{}, sql.NullString{}, sql.NullTime{}}
	}
	return []any{
		sql.NullTime{Time: req.NewTime, Valid: true},
		sql.NullString{String: req.NewLocation, Valid: true},
		sql.NullString{String: req.RequesterID, Valid: true},
		sql.NullString{String: req.Reason, Valid: true},
		sql.NullTime{Time: req.RequestedAt, Valid: true},
	}
}

func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*model.Transaction, error) {
	return r.get(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
}

func (r *TransactionRepository) getForUpdate(ctx context.Context, id string) (*model.Transaction, error) {
	return r.get(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE id = ? FOR UPDATE`, id)
}

func (r *TransactionRepository) get(ctx context.Context, query, id string) (*model.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get transaction %s: %w", id, err)
	}
	return t, nil
}

func (r *TransactionRepository) list(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []model.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (r *TransactionRepository) ListByUser(ctx context.Context, uid string) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE buyer_id = ? OR seller_id = ? ORDER BY created_at DESC`
	return r.list(ctx, query, uid, uid)
}

func (r *TransactionRepository) ListDue(ctx context.Context, now time.Time) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE status = ? AND meeting_time IS NOT NULL AND meeting_time <= ? AND is_meeting_nudge_sent = FALSE
		ORDER BY meeting_time ASC`
	return r.list(ctx, query, model.TransactionStatusPending, now)
}

func (r *TransactionRepository) ListUpcoming(ctx context.Context, after, until time.Time) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE status = ? AND meeting_time > ? AND meeting_time <= ? AND is_reminder_sent = FALSE
		ORDER BY meeting_time ASC`
	return r.list(ctx, query, model.TransactionStatusPending, after, until)
}

func (r *TransactionRepository) Insert(ctx context.Context, t *model.Transaction) error {
	query := `INSERT INTO transactions (` + transactionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	args := []any{t.ID, t.ItemID, t.BuyerID, t.SellerID, t.Price, t.Status,
		nullTime(t.MeetingTime), t.MeetingLocation, t.IsTimeAgreed, t.RescheduleCount}
	args = append(args, rescheduleArgs(t.RescheduleRequest)...)
	args = append(args, t.IsMeetingNudgeSent, t.IsReminderSent, t.BuyerRated, t.SellerRated, t.BuyerConfirmed, t.SellerConfirmed,
		nullString(t.CanceledBy), t.CancelReason, nullTime(t.CompletedAt), nullTime(t.CanceledAt), t.CreatedAt, t.UpdatedAt)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert transaction: %w", translate(err))
	}
	return nil
}

func (r *TransactionRepository) Update(ctx context.Context, t *model.Transaction) error {
	query := `UPDATE transactions SET status = ?, meeting_time = ?, meeting_location = ?, is_time_agreed = ?, reschedule_count = ?,
		reschedule_new_time = ?, reschedule_new_location = ?, reschedule_requester_id = ?, reschedule_reason = ?, reschedule_requested_at = ?,
		is_meeting_nudge_sent = ?, is_reminder_sent = ?, buyer_rated = ?, seller_rated = ?, buyer_confirmed = ?, seller_confirmed = ?,
		canceled_by = ?, cancel_reason = ?, completed_at = ?, canceled_at = ?, updated_at = ?
		WHERE id = ?`
	args := []any{t.Status, nullTime(t.MeetingTime), t.MeetingLocation, t.IsTimeAgreed, t.RescheduleCount}
	args = append(args, rescheduleArgs(t.RescheduleRequest)...)
	args = append(args, t.IsMeetingNudgeSent, t.IsReminderSent, t.BuyerRated, t.SellerRated, t.BuyerConfirmed, t.SellerConfirmed,
		nullString(t.CanceledBy), t.CancelReason, nullTime(t.CompletedAt), nullTime(t.CanceledAt), t.UpdatedAt, t.ID)

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	return expectRow(res)
}

// ClaimReminder is a single conditional UPDATE, so concurrent sweeps race on
// the row lock and exactly one of them sees an affected row.
func (r *TransactionRepository) ClaimReminder(ctx context.Context, id string, kind model.ReminderKind) (bool, error) {
	var query string
	switch kind {
	case model.ReminderNudge:
		query = `UPDATE transactions SET is_meeting_nudge_sent = TRUE WHERE id = ? AND status = ? AND is_meeting_nudge_sent = FALSE`
	case model.ReminderUpcoming:
		query = `UPDATE transactions SET is_reminder_sent = TRUE WHERE id = ? AND status = ? AND is_reminder_sent = FALSE`
	default:
		return false, fmt.Errorf("unknown reminder kind %q", kind)
	}

	res, err := r.db.ExecContext(ctx, query, id, model.TransactionStatusPending)
	if err != nil {
		return false, fmt.Errorf("claim %s reminder for %s: %w", kind, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
