// Package notify delivers push and email notifications on a best-effort
// basis. Nothing here reports failure back to the caller's state machine.
package notify

import "context"

// Action is a button attached to an interactive message. Data is returned to
// the webhook when the recipient taps it.
type Action struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

// Message is a push notification. With Actions it is rendered as an
// interactive confirm template, otherwise as plain text.
type Message struct {
	Text    string
	AltText string
	Actions []Action
}

// Pusher sends a message to a channel-specific address (a LINE user id).
type Pusher interface {
	Push(ctx context.Context, to string, msg Message) error
}

// Mailer sends a plain-text email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}
