package controller

import (
	"net/http"

	"go.uber.org/zap"

	"exchange-backend/usecase"
)

type Usecases struct {
	Items        *usecase.ItemUsecase
	Users        *usecase.UserUsecase
	Transactions *usecase.TransactionUsecase
	Reviews      *usecase.ReviewUsecase
	Reminders    *usecase.ReminderUsecase
	Line         *usecase.LineUsecase
}

// Options carries the shared secrets of the machine-to-machine routes. A
// route whose secret is empty is not registered.
type Options struct {
	LineChannelSecret string
	SweepTriggerToken string
}

func NewRouter(uc Usecases, opts Options, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("http")

	items := NewItemController(uc.Items, logger)
	users := NewUserController(uc.Users, uc.Reviews, logger)
	transactions := NewTransactionController(uc.Transactions, uc.Reviews, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /items", items.GetItems)
	mux.HandleFunc("POST /items", items.CreateItem)
	mux.HandleFunc("GET /items/{id}", items.GetItem)

	mux.HandleFunc("POST /users", users.Register)
	mux.HandleFunc("GET /users/{id}", users.GetUser)
	mux.HandleFunc("GET /users/{id}/reviews", users.GetReviews)
	mux.HandleFunc("POST /users/me/line/binding-code", users.CreateBindingCode)
	mux.HandleFunc("DELETE /users/me/line", users.UnbindLine)
	mux.HandleFunc("PUT /users/me/notifications", users.SetNotifications)

	mux.HandleFunc("POST /transactions", transactions.Reserve)
	mux.HandleFunc("GET /transactions", transactions.List)
	mux.HandleFunc("GET /transactions/{id}", transactions.Get)
	mux.HandleFunc("POST /transactions/{id}/confirm-time", transactions.ConfirmTime)
	mux.HandleFunc("POST /transactions/{id}/reschedule", transactions.RequestReschedule)
	mux.HandleFunc("POST /transactions/{id}/reschedule/respond", transactions.RespondReschedule)
	mux.HandleFunc("POST /transactions/{id}/status", transactions.SetStatus)
	mux.HandleFunc("POST /transactions/{id}/outcome", transactions.ReportOutcome)
	mux.HandleFunc("POST /transactions/{id}/reviews", transactions.AddReview)

	if opts.SweepTriggerToken != "" && uc.Reminders != nil {
		reminders := NewReminderController(uc.Reminders, opts.SweepTriggerToken, logger)
		mux.HandleFunc("POST /internal/reminders/sweep", reminders.Sweep)
	}
	if opts.LineChannelSecret != "" && uc.Line != nil {
		line := NewLineController(uc.Line, opts.LineChannelSecret, logger)
		mux.HandleFunc("POST /line/webhook", line.Webhook)
	}

	return withCORS(mux)
}
