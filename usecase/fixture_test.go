package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"exchange-backend/dao"
	"exchange-backend/model"
	"exchange-backend/pkg/event"
	"exchange-backend/pkg/notify"
)

type pushed struct {
	To  string
	Msg notify.Message
}

type mailed struct {
	To, Subject, Body string
}

type fakeNotifier struct {
	mu     sync.Mutex
	pushes []pushed
	emails []mailed
}

func (f *fakeNotifier) Push(_ context.Context, to string, msg notify.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pushes = append(f.pushes, pushed{To: to, Msg: msg})
}

func (f *fakeNotifier) Email(_ context.Context, to, subject, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emails = append(f.emails, mailed{To: to, Subject: subject, Body: body})
}

func (f *fakeNotifier) Pushes() []pushed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pushed(nil), f.pushes...)
}

func (f *fakeNotifier) Emails() []mailed {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mailed(nil), f.emails...)
}

// fixture wires every usecase against one MemoryStore and a live bus.
type fixture struct {
	ctx      context.Context
	store    *dao.MemoryStore
	bus      *event.Bus
	notifier *fakeNotifier

	items        *ItemUsecase
	users        *UserUsecase
	transactions *TransactionUsecase
	reputation   *ReputationUsecase
	reviews      *ReviewUsecase
	reminders    *ReminderUsecase
	line         *LineUsecase

	now time.Time
}

const (
	sellerID = "seller"
	buyerID  = "buyer"
	otherID  = "other"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:      context.Background(),
		store:    dao.NewMemoryStore(),
		bus:      event.NewBus(nil),
		notifier: &fakeNotifier{},
		now:      time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	f.items = NewItemUsecase(f.store, nil)
	f.users = NewUserUsecase(f.store, nil)
	f.users.now = clock
	f.transactions = NewTransactionUsecase(f.store, f.bus, nil)
	f.transactions.now = clock
	f.reputation = NewReputationUsecase(f.store, f.notifier, nil)
	f.reputation.Subscribe(f.bus)
	f.reviews = NewReviewUsecase(f.store, f.bus, nil)
	f.reviews.now = clock
	f.reviews.Subscribe(f.bus)
	f.reminders = NewReminderUsecase(f.store, f.notifier, nil, ReminderConfig{LeadTime: 24 * time.Hour}, nil)
	f.reminders.now = clock
	f.line = NewLineUsecase(f.store, f.users, f.transactions, f.notifier, nil)

	for _, u := range []*model.User{
		{ID: sellerID, Name: "Sam", Email: "seller@example.com", LineUserID: "Useller", NotificationsEnabled: true, CreditScore: model.DefaultCreditScore},
		{ID: buyerID, Name: "Bea", Email: "buyer@example.com", LineUserID: "Ubuyer", NotificationsEnabled: true, CreditScore: model.DefaultCreditScore},
		{ID: otherID, Name: "Oli", Email: "other@example.com", CreditScore: model.DefaultCreditScore},
	} {
		require.NoError(t, f.store.CreateUser(f.ctx, u))
	}
	return f
}

func (f *fixture) addItem(t *testing.T, price int) *model.Item {
	t.Helper()
	item, err := f.items.CreateItem(f.ctx, sellerID, "Calculus textbook", price, "lightly used")
	require.NoError(t, err)
	return item
}

func (f *fixture) at(d time.Duration) *time.Time {
	v := f.now.Add(d)
	return &v
}

// reserve opens a pending transaction with a meeting in the future.
func (f *fixture) reserve(t *testing.T, meetingIn time.Duration) *model.Transaction {
	t.Helper()
	item := f.addItem(t, 300)
	tr, err := f.transactions.Reserve(f.ctx, ReserveInput{
		ItemID: item.ID, BuyerID: buyerID, MeetingTime: f.at(meetingIn), MeetingLocation: "Library gate",
	})
	require.NoError(t, err)
	return tr
}

func (f *fixture) settle(t *testing.T) {
	t.Helper()
	require.NoError(t, f.bus.Wait())
}

func (f *fixture) user(t *testing.T, uid string) *model.User {
	t.Helper()
	u, err := f.store.GetUser(f.ctx, uid)
	require.NoError(t, err)
	return u
}

func (f *fixture) transaction(t *testing.T, id string) *model.Transaction {
	t.Helper()
	tr, err := f.store.GetTransaction(f.ctx, id)
	require.NoError(t, err)
	return tr
}

func (f *fixture) item(t *testing.T, id string) *model.Item {
	t.Helper()
	item, err := f.store.GetItem(f.ctx, id)
	require.NoError(t, err)
	return item
}
