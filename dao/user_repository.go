package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"exchange-backend/model"
)

type UserRepository struct {
	db querier
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) withTx(tx *sql.Tx) *UserRepository {
	return &UserRepository{db: tx}
}

const userColumns = `id, name, email, line_user_id, notifications_enabled, credit_score,
	completed_transactions, total_transactions, canceled_transactions,
	rating_count, rating_sum, average_rating, created_at`

func scanUser(row rowScanner) (*model.User, error) {
	var u model.User
	var lineUserID sql.NullString
	err := row.Scan(&u.ID, &u.Name, &u.Email, &lineUserID, &u.NotificationsEnabled, &u.CreditScore,
		&u.CompletedTransactions, &u.TotalTransactions, &u.CanceledTransactions,
		&u.RatingCount, &u.RatingSum, &u.AverageRating, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	u.LineUserID = lineUserID.String
	return &u, nil
}

func (r *UserRepository) Insert(ctx context.Context, user *model.User) error {
	query := `INSERT INTO users (` + userColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, user.ID, user.Name, user.Email, lineUserID(user), user.NotificationsEnabled, user.CreditScore,
		user.CompletedTransactions, user.TotalTransactions, user.CanceledTransactions,
		user.RatingCount, user.RatingSum, user.AverageRating, user.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", translate(err))
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (r *UserRepository) getForUpdate(ctx context.Context, id string) (*model.User, error) {
	return r.get(ctx, `SELECT `+userColumns+` FROM users WHERE id = ? FOR UPDATE`, id)
}

func (r *UserRepository) get(ctx context.Context, query, arg string) (*model.User, error) {
	u, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// Update writes the reputation aggregates. Profile fields are not touched.
func (r *UserRepository) Update(ctx context.Context, user *model.User) error {
	query := `UPDATE users SET credit_score = ?, completed_transactions = ?, total_transactions = ?, canceled_transactions = ?,
		rating_count = ?, rating_sum = ?, average_rating = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, user.CreditScore, user.CompletedTransactions, user.TotalTransactions, user.CanceledTransactions,
		user.RatingCount, user.RatingSum, user.AverageRating, user.ID)
	if err != nil {
		return fmt.Errorf("update user %s: %w", user.ID, err)
	}
	return expectRow(res)
}

// UpdateLineBinding writes the LINE link and the notification switch. An
// empty LineUserID is stored as NULL.
func (r *UserRepository) UpdateLineBinding(ctx context.Context, user *model.User) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET line_user_id = ?, notifications_enabled = ? WHERE id = ?`,
		lineUserID(user), user.NotificationsEnabled, user.ID)
	if err != nil {
		return fmt.Errorf("update line binding %s: %w", user.ID, err)
	}
	return expectRow(res)
}

func lineUserID(user *model.User) sql.NullString {
	if user.LineUserID == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: user.LineUserID, Valid: true}
}

func (r *UserRepository) InsertBindingCode(ctx context.Context, c *model.BindingCode) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO line_binding_codes (code, uid, expires_at, created_at) VALUES (?, ?, ?, ?)`,
		c.Code, c.UserID, c.ExpiresAt, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert binding code: %w", translate(err))
	}
	return nil
}

// takeBindingCode locks the code row and deletes it. The delete is undone if
// the surrounding unit rolls back.
func (r *UserRepository) takeBindingCode(ctx context.Context, code string) (*model.BindingCode, error) {
	var c model.BindingCode
	err := r.db.QueryRowContext(ctx, `SELECT code, uid, expires_at, created_at FROM line_binding_codes WHERE code = ? FOR UPDATE`, code).
		Scan(&c.Code, &c.UserID, &c.ExpiresAt, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get binding code: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, `DELETE FROM line_binding_codes WHERE code = ?`, code); err != nil {
		return nil, fmt.Errorf("delete binding code: %w", err)
	}
	return &c, nil
}

// recordLedger inserts the idempotency row. A duplicate key means the event
// was already applied to this user.
func (r *UserRepository) recordLedger(ctx context.Context, uid, key string, delta int) (bool, error) {
	_, err := r.db.ExecContext(ctx, `INSERT INTO reputation_ledger (uid, event_key, delta) VALUES (?, ?, ?)`, uid, key, delta)
	if err == nil {
		return true, nil
	}
	if errors.Is(translate(err), ErrDuplicate) {
		return false, nil
	}
	return false, fmt.Errorf("record ledger %s/%s: %w", uid, key, err)
}
