package usecase

import (
	"context"
	"errors"
	"net/url"

	"go.uber.org/zap"

	"exchange-backend/dao"
	"exchange-backend/model"
	"exchange-backend/pkg/apperr"
	"exchange-backend/pkg/notify"
)

const (
	LineEventMessage  = "message"
	LineEventPostback = "postback"
)

// LineEvent is the part of a LINE webhook event the bot acts on.
type LineEvent struct {
	Type         string
	SourceUserID string
	Text         string
	PostbackData string
}

// LineUsecase handles what users send to the LINE bot: binding codes typed
// as text, and the outcome buttons of the post-meeting nudge.
type LineUsecase struct {
	store        dao.Reader
	users        *UserUsecase
	transactions *TransactionUsecase
	notifier     Notifier
	logger       *zap.Logger
}

func NewLineUsecase(store dao.Reader, users *UserUsecase, transactions *TransactionUsecase, notifier Notifier, logger *zap.Logger) *LineUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LineUsecase{
		store:        store,
		users:        users,
		transactions: transactions,
		notifier:     notifier,
		logger:       logger.Named("line"),
	}
}

// HandleEvents processes a webhook batch. A failing event is answered and
// logged; it never stops the rest of the batch.
func (u *LineUsecase) HandleEvents(ctx context.Context, events []LineEvent) {
	for _, e := range events {
		if e.SourceUserID == "" {
			continue
		}
		switch e.Type {
		case LineEventMessage:
			u.handleText(ctx, e)
		case LineEventPostback:
			u.handlePostback(ctx, e)
		default:
			u.logger.Debug("ignoring line event", zap.String("type", e.Type))
		}
	}
}

func (u *LineUsecase) handleText(ctx context.Context, e LineEvent) {
	if !bindingCodePattern.MatchString(e.Text) {
		return
	}

	_, err := u.users.BindLine(ctx, e.Text, e.SourceUserID)
	switch {
	case err == nil:
		u.reply(ctx, e.SourceUserID, "Your account is linked. You will now receive exchange notifications here.")
	case errors.Is(err, apperr.ErrNotFound):
		u.reply(ctx, e.SourceUserID, "That binding code was not found. Please check it and try again.")
	case errors.Is(err, apperr.ErrFailedPrecondition):
		u.reply(ctx, e.SourceUserID, "That binding code has expired. Please generate a new one.")
	default:
		u.logger.Error("line binding failed", zap.Error(err))
		u.reply(ctx, e.SourceUserID, "Something went wrong. Please try again later.")
	}
}

func (u *LineUsecase) handlePostback(ctx context.Context, e LineEvent) {
	q, err := url.ParseQuery(e.PostbackData)
	if err != nil {
		u.logger.Warn("malformed postback data", zap.Error(err))
		return
	}
	action, transactionID, uid := q.Get("action"), q.Get("transactionId"), q.Get("userId")
	if transactionID == "" || uid == "" {
		u.logger.Warn("postback without transaction or user", zap.String("action", action))
		return
	}
	if action != ActionConfirmSuccess && action != ActionReportFailure {
		u.logger.Debug("ignoring postback action", zap.String("action", action))
		return
	}

	// The postback names the exchange user; only that user's linked LINE
	// account may act for them.
	user, err := u.store.GetUser(ctx, uid)
	if err != nil || user.LineUserID != e.SourceUserID {
		u.logger.Warn("postback from a LINE account not linked to the user",
			zap.String("transaction_id", transactionID),
			zap.String("user_id", uid))
		return
	}

	success := action == ActionConfirmSuccess
	t, err := u.transactions.ReportOutcome(ctx, uid, transactionID, success, q.Get("reason"))
	switch {
	case err == nil:
		u.reply(ctx, e.SourceUserID, outcomeReply(t, success))
	case errors.Is(err, apperr.ErrFailedPrecondition):
		u.reply(ctx, e.SourceUserID, "This transaction has already ended.")
	default:
		u.logger.Error("outcome report failed",
			zap.String("transaction_id", transactionID),
			zap.String("user_id", uid),
			zap.Error(err))
		u.reply(ctx, e.SourceUserID, "Something went wrong. Please try again later.")
	}
}

func outcomeReply(t *model.Transaction, success bool) string {
	switch {
	case !success:
		return "Recorded the failed meeting. The transaction has been canceled."
	case t.Status == model.TransactionStatusCompleted:
		return "Both sides confirmed. The transaction is complete."
	default:
		return "Recorded. The transaction completes once the other side confirms."
	}
}

func (u *LineUsecase) reply(ctx context.Context, to, text string) {
	if u.notifier == nil {
		return
	}
	u.notifier.Push(ctx, to, notify.Message{Text: text})
}
