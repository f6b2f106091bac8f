package model

import "time"

const DefaultCreditScore = 100

type User struct {
	ID                    string    `json:"id"`
	Name                  string    `json:"name"`
	Email                 string    `json:"email"`
	LineUserID            string    `json:"-"`
	NotificationsEnabled  bool      `json:"notifications_enabled"`
	CreditScore           int       `json:"credit_score"`
	CompletedTransactions int       `json:"completed_transactions"`
	TotalTransactions     int       `json:"total_transactions"`
	CanceledTransactions  int       `json:"canceled_transactions"`
	RatingCount           int       `json:"rating_count"`
	RatingSum             int       `json:"rating_sum"`
	AverageRating         float64   `json:"average_rating"`
	CreatedAt             time.Time `json:"created_at"`
}

// CanBeNotified reports whether push reminders may be delivered to the user.
func (u *User) CanBeNotified() bool {
	return u != nil && u.NotificationsEnabled && u.LineUserID != ""
}

// BindingCodeTTL bounds how long a LINE binding code can be redeemed.
const BindingCodeTTL = 10 * time.Minute

// BindingCode is a short-lived six-digit code a user sends to the LINE bot
// to link the LINE account to the exchange account.
type BindingCode struct {
	Code      string    `json:"code"`
	UserID    string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"-"`
}

func (c *BindingCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
