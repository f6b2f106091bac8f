package model

import "time"

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusCanceled  TransactionStatus = "canceled"
)

// RescheduleRequest is the single outstanding proposal to move a meeting.
type RescheduleRequest struct {
	NewTime     time.Time `json:"new_time"`
	NewLocation string    `json:"new_location,omitempty"`
	RequesterID string    `json:"requester_id"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

type Transaction struct {
	ID                 string             `json:"id"`
	ItemID             string             `json:"item_id"`
	BuyerID            string             `json:"buyer_id"`
	SellerID           string             `json:"seller_id"`
	Price              int                `json:"price"`
	Status             TransactionStatus  `json:"status"`
	MeetingTime        *time.Time         `json:"meeting_time,omitempty"`
	MeetingLocation    string             `json:"meeting_location,omitempty"`
	IsTimeAgreed       bool               `json:"is_time_agreed"`
	RescheduleCount    int                `json:"reschedule_count"`
	RescheduleRequest  *RescheduleRequest `json:"reschedule_request,omitempty"`
	IsMeetingNudgeSent bool               `json:"is_meeting_nudge_sent"`
	IsReminderSent     bool               `json:"is_reminder_sent"`
	BuyerRated         bool               `json:"buyer_rated"`
	SellerRated        bool               `json:"seller_rated"`
	BuyerConfirmed     bool               `json:"buyer_confirmed"`
	SellerConfirmed    bool               `json:"seller_confirmed"`
	CanceledBy         *string            `json:"canceled_by,omitempty"`
	CancelReason       string             `json:"cancel_reason,omitempty"`
	CompletedAt        *time.Time         `json:"completed_at,omitempty"`
	CanceledAt         *time.Time         `json:"canceled_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

func (t *Transaction) IsParticipant(uid string) bool {
	return uid != "" && (uid == t.BuyerID || uid == t.SellerID)
}

// CounterParty returns the other participant, or "" if uid is not one.
func (t *Transaction) CounterParty(uid string) string {
	switch uid {
	case t.BuyerID:
		return t.SellerID
	case t.SellerID:
		return t.BuyerID
	}
	return ""
}

// ReminderKind names the one-shot reminder flags on a transaction.
type ReminderKind string

const (
	// ReminderUpcoming is sent once when the meeting enters the lead window.
	ReminderUpcoming ReminderKind = "upcoming"
	// ReminderNudge asks both parties to report the outcome after the meeting.
	ReminderNudge ReminderKind = "nudge"
)
