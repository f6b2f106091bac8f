package model

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

type Review struct {
	ID            string    `json:"id"`
	TransactionID string    `json:"transaction_id"`
	FromUID       string    `json:"from_uid"`
	ToUID         string    `json:"to_uid"`
	Rating        int       `json:"rating"`
	Comment       string    `json:"comment"`
	CreatedAt     time.Time `json:"created_at"`
}
