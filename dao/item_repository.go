package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"exchange-backend/model"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type ItemRepository struct {
	db querier
}

func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

func (r *ItemRepository) withTx(tx *sql.Tx) *ItemRepository {
	return &ItemRepository{db: tx}
}

const itemColumns = `id, name, price, description, user_id, reserved_by, status, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*model.Item, error) {
	var item model.Item
	var reservedBy sql.NullString

	if err := row.Scan(&item.ID, &item.Name, &item.Price, &item.Description, &item.UserID, &reservedBy, &item.Status, &item.CreatedAt, &item.UpdatedAt); err != nil {
		return nil, err
	}
	if reservedBy.Valid {
		item.ReservedBy = &reservedBy.String
	}
	return &item, nil
}

func (r *ItemRepository) GetAll(ctx context.Context) ([]model.Item, error) {
	query := `SELECT ` + itemColumns + ` FROM items ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *ItemRepository) GetByID(ctx context.Context, id string) (*model.Item, error) {
	return r.get(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
}

func (r *ItemRepository) getForUpdate(ctx context.Context, id string) (*model.Item, error) {
	return r.get(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ? FOR UPDATE`, id)
}

func (r *ItemRepository) get(ctx context.Context, query, id string) (*model.Item, error) {
	item, err := scanItem(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item %s: %w", id, err)
	}
	return item, nil
}

func (r *ItemRepository) Insert(ctx context.Context, item *model.Item) error {
	query := `INSERT INTO items (id, name, price, description, user_id, reserved_by, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query, item.ID, item.Name, item.Price, item.Description, item.UserID, nullString(item.ReservedBy), item.Status, item.CreatedAt, item.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert item: %w", translate(err))
	}
	return nil
}

func (r *ItemRepository) Update(ctx context.Context, item *model.Item) error {
	query := `UPDATE items SET name = ?, price = ?, description = ?, reserved_by = ?, status = ?, updated_at = ? WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query, item.Name, item.Price, item.Description, nullString(item.ReservedBy), item.Status, item.UpdatedAt, item.ID)
	if err != nil {
		return fmt.Errorf("update item %s: %w", item.ID, err)
	}
	return expectRow(res)
}
