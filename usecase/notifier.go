package usecase

import (
	"context"

	"exchange-backend/pkg/notify"
)

// Notifier is the fire-and-forget delivery front. *notify.Dispatcher
// implements it.
type Notifier interface {
	Push(ctx context.Context, to string, msg notify.Message)
	Email(ctx context.Context, to, subject, body string)
}
