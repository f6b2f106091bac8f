package usecase

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exchange-backend/model"
)

func outcomeEvent(lineUserID, action, transactionID, uid string) LineEvent {
	data := url.Values{"action": {action}, "transactionId": {transactionID}, "userId": {uid}}
	return LineEvent{Type: LineEventPostback, SourceUserID: lineUserID, PostbackData: data.Encode()}
}

func lastReply(t *testing.T, f *fixture, to string) string {
	t.Helper()
	pushes := f.notifier.Pushes()
	require.NotEmpty(t, pushes)
	last := pushes[len(pushes)-1]
	assert.Equal(t, to, last.To)
	return last.Msg.Text
}

func TestLineTextBindsAccount(t *testing.T) {
	f := newFixture(t)
	code, err := f.users.GenerateBindingCode(f.ctx, otherID)
	require.NoError(t, err)

	f.line.HandleEvents(f.ctx, []LineEvent{{Type: LineEventMessage, SourceUserID: "Uother", Text: "hello"}})
	assert.Empty(t, f.notifier.Pushes(), "plain chat is not answered")

	f.line.HandleEvents(f.ctx, []LineEvent{{Type: LineEventMessage, SourceUserID: "Uother", Text: code.Code}})
	assert.Contains(t, lastReply(t, f, "Uother"), "linked")
	assert.True(t, f.user(t, otherID).CanBeNotified())

	f.line.HandleEvents(f.ctx, []LineEvent{{Type: LineEventMessage, SourceUserID: "Uother", Text: code.Code}})
	assert.Contains(t, lastReply(t, f, "Uother"), "not found")
}

func TestLineExpiredCodeIsAnswered(t *testing.T) {
	f := newFixture(t)
	code, err := f.users.GenerateBindingCode(f.ctx, otherID)
	require.NoError(t, err)
	f.now = f.now.Add(model.BindingCodeTTL + time.Second)

	f.line.HandleEvents(f.ctx, []LineEvent{{Type: LineEventMessage, SourceUserID: "Uother", Text: code.Code}})
	assert.Contains(t, lastReply(t, f, "Uother"), "expired")
	assert.Empty(t, f.user(t, otherID).LineUserID)
}

func TestLineOutcomeButtonsComplete(t *testing.T) {
	f := newFixture(t)
	tr := f.reserve(t, time.Hour)

	f.line.HandleEvents(f.ctx, []LineEvent{outcomeEvent("Ubuyer", ActionConfirmSuccess, tr.ID, buyerID)})
	assert.Contains(t, lastReply(t, f, "Ubuyer"), "other side")
	got := f.transaction(t, tr.ID)
	assert.True(t, got.BuyerConfirmed)
	assert.Equal(t, model.TransactionStatusPending, got.Status)

	f.line.HandleEvents(f.ctx, []LineEvent{outcomeEvent("Useller", ActionConfirmSuccess, tr.ID, sellerID)})
	assert.Contains(t, lastReply(t, f, "Useller"), "complete")
	f.settle(t)
	assert.Equal(t, model.TransactionStatusCompleted, f.transaction(t, tr.ID).Status)
	assert.Equal(t, model.ItemStatusSold, f.item(t, tr.ItemID).Status)

	f.line.HandleEvents(f.ctx, []LineEvent{outcomeEvent("Ubuyer", ActionReportFailure, tr.ID, buyerID)})
	assert.Contains(t, lastReply(t, f, "Ubuyer"), "already ended")
	assert.Equal(t, model.TransactionStatusCompleted, f.transaction(t, tr.ID).Status)
}

func TestLineReportFailureCancelsWithReason(t *testing.T) {
	f := newFixture(t)
	tr := f.reserve(t, time.Hour)

	e := outcomeEvent("Useller", ActionReportFailure, tr.ID, sellerID)
	e.PostbackData += "&reason=" + url.QueryEscape("buyer never came")
	f.line.HandleEvents(f.ctx, []LineEvent{e})
	f.settle(t)

	got := f.transaction(t, tr.ID)
	assert.Equal(t, model.TransactionStatusCanceled, got.Status)
	require.NotNil(t, got.CanceledBy)
	assert.Equal(t, sellerID, *got.CanceledBy)
	assert.Equal(t, "buyer never came", got.CancelReason)
	assert.Contains(t, lastReply(t, f, "Useller"), "canceled")
}

func TestLinePostbackIgnoredFromOtherAccounts(t *testing.T) {
	f := newFixture(t)
	tr := f.reserve(t, time.Hour)

	f.line.HandleEvents(f.ctx, []LineEvent{
		outcomeEvent("Ustranger", ActionReportFailure, tr.ID, buyerID),
		outcomeEvent("Useller", ActionReportFailure, tr.ID, buyerID),
		outcomeEvent("Ubuyer", "delete_everything", tr.ID, buyerID),
		{Type: LineEventPostback, SourceUserID: "Ubuyer", PostbackData: "%zz"},
		{Type: LineEventPostback, SourceUserID: "Ubuyer", PostbackData: "action=confirm_success"},
		{Type: "follow", SourceUserID: "Ubuyer"},
	})

	assert.Empty(t, f.notifier.Pushes())
	assert.Equal(t, model.TransactionStatusPending, f.transaction(t, tr.ID).Status)
}
