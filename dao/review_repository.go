package dao

import (
	"context"
	"database/sql"
	"fmt"

	"exchange-backend/model"
)

type ReviewRepository struct {
	db querier
}

func NewReviewRepository(db *sql.DB) *ReviewRepository {
	return &ReviewRepository{db: db}
}

func (r *ReviewRepository) withTx(tx *sql.Tx) *ReviewRepository {
	return &ReviewRepository{db: tx}
}

// Insert relies on the (transaction_id, from_uid) unique key to reject a
// second review by the same rater.
func (r *ReviewRepository) Insert(ctx context.Context, rv *model.Review) error {
	query := `INSERT INTO reviews (id, transaction_id, from_uid, to_uid, rating, comment, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, rv.ID, rv.TransactionID, rv.FromUID, rv.ToUID, rv.Rating, rv.Comment, rv.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert review: %w", translate(err))
	}
	return nil
}

func (r *ReviewRepository) ListFor(ctx context.Context, uid string) ([]model.Review, error) {
	query := `SELECT id, transaction_id, from_uid, to_uid, rating, comment, created_at FROM reviews WHERE to_uid = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, uid)
	if err != nil {
		return nil, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []model.Review
	for rows.Next() {
		var rv model.Review
		if err := rows.Scan(&rv.ID, &rv.TransactionID, &rv.FromUID, &rv.ToUID, &rv.Rating, &rv.Comment, &rv.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, rv)
	}
	return reviews, rows.Err()
}
