package model

import "time"

type ItemStatus string

const (
	ItemStatusAvailable ItemStatus = "available"
	ItemStatusReserved  ItemStatus = "reserved"
	ItemStatusSold      ItemStatus = "sold"
)

type Item struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Price       int        `json:"price"`
	Description string     `json:"description"`
	UserID      string     `json:"user_id"`
	ReservedBy  *string    `json:"reserved_by,omitempty"` // Nullable
	Status      ItemStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
