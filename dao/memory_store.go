package dao

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"exchange-backend/model"
)

// MemoryStore is a process-local Store. RunInTx holds one mutex for the whole
// unit, so units are serialized; writes are staged and applied only when fn
// returns nil.
type MemoryStore struct {
	mu           sync.Mutex
	items        map[string]*model.Item
	users        map[string]*model.User
	transactions map[string]*model.Transaction
	reviews      map[string]*model.Review
	reviewKeys   map[string]struct{}
	ledger       map[string]int
	codes        map[string]model.BindingCode
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:        make(map[string]*model.Item),
		users:        make(map[string]*model.User),
		transactions: make(map[string]*model.Transaction),
		reviews:      make(map[string]*model.Review),
		reviewKeys:   make(map[string]struct{}),
		ledger:       make(map[string]int),
		codes:        make(map[string]model.BindingCode),
	}
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:        s,
		items:        make(map[string]*model.Item),
		users:        make(map[string]*model.User),
		transactions: make(map[string]*model.Transaction),
		ledger:       make(map[string]int),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) ClaimReminder(_ context.Context, transactionID string, kind model.ReminderKind) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[transactionID]
	if !ok || t.Status != model.TransactionStatusPending {
		return false, nil
	}
	switch kind {
	case model.ReminderNudge:
		if t.IsMeetingNudgeSent {
			return false, nil
		}
		t.IsMeetingNudgeSent = true
	case model.ReminderUpcoming:
		if t.IsReminderSent {
			return false, nil
		}
		t.IsReminderSent = true
	default:
		return false, fmt.Errorf("unknown reminder kind %q", kind)
	}
	return true, nil
}

func (s *MemoryStore) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[user.ID]; ok {
		return fmt.Errorf("%w: user %s", ErrDuplicate, user.ID)
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return fmt.Errorf("%w: email %s", ErrDuplicate, user.Email)
		}
	}
	s.users[user.ID] = cloneUser(user)
	return nil
}

func (s *MemoryStore) CreateItem(_ context.Context, item *model.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[item.ID]; ok {
		return fmt.Errorf("%w: item %s", ErrDuplicate, item.ID)
	}
	s.items[item.ID] = cloneItem(item)
	return nil
}

func (s *MemoryStore) CreateBindingCode(_ context.Context, code *model.BindingCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.codes[code.Code]; ok {
		return fmt.Errorf("%w: binding code", ErrDuplicate)
	}
	s.codes[code.Code] = *code
	return nil
}

func (s *MemoryStore) GetItem(_ context.Context, id string) (*model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneItem(item), nil
}

func (s *MemoryStore) ListItems(_ context.Context) ([]model.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *cloneItem(item))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) GetUser(_ context.Context, uid string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[uid]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Email == email {
			return cloneUser(u), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetTransaction(_ context.Context, id string) (*model.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTransaction(t), nil
}

func (s *MemoryStore) ListTransactionsByUser(_ context.Context, uid string) ([]model.Transaction, error) {
	out := s.filterTransactions(func(t *model.Transaction) bool { return t.IsParticipant(uid) })
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListDueMeetings(_ context.Context, now time.Time) ([]model.Transaction, error) {
	out := s.filterTransactions(func(t *model.Transaction) bool {
		return t.Status == model.TransactionStatusPending && t.MeetingTime != nil &&
			!t.MeetingTime.After(now) && !t.IsMeetingNudgeSent
	})
	sortByMeeting(out)
	return out, nil
}

func (s *MemoryStore) ListUpcomingMeetings(_ context.Context, after, until time.Time) ([]model.Transaction, error) {
	out := s.filterTransactions(func(t *model.Transaction) bool {
		return t.Status == model.TransactionStatusPending && t.MeetingTime != nil &&
			t.MeetingTime.After(after) && !t.MeetingTime.After(until) && !t.IsReminderSent
	})
	sortByMeeting(out)
	return out, nil
}

func (s *MemoryStore) ListReviewsFor(_ context.Context, uid string) ([]model.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Review
	for _, r := range s.reviews {
		if r.ToUID == uid {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) filterTransactions(keep func(*model.Transaction) bool) []model.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Transaction
	for _, t := range s.transactions {
		if keep(t) {
			out = append(out, *cloneTransaction(t))
		}
	}
	return out
}

func sortByMeeting(ts []model.Transaction) {
	sort.Slice(ts, func(i, j int) bool { return ts[i].MeetingTime.Before(*ts[j].MeetingTime) })
}

func ledgerKey(uid, key string) string {
	return uid + "|" + key
}

func reviewKey(transactionID, fromUID string) string {
	return transactionID + "|" + fromUID
}

// memoryTx stages writes; the store mutex is held by RunInTx for its lifetime.
type memoryTx struct {
	store        *MemoryStore
	items        map[string]*model.Item
	users        map[string]*model.User
	transactions map[string]*model.Transaction
	reviews      []*model.Review
	ledger       map[string]int
	takenCodes   []string
}

func (t *memoryTx) GetItemForUpdate(_ context.Context, id string) (*model.Item, error) {
	if item, ok := t.items[id]; ok {
		return cloneItem(item), nil
	}
	item, ok := t.store.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneItem(item), nil
}

func (t *memoryTx) UpdateItem(_ context.Context, item *model.Item) error {
	_, staged := t.items[item.ID]
	if _, ok := t.store.items[item.ID]; !ok && !staged {
		return ErrNotFound
	}
	t.items[item.ID] = cloneItem(item)
	return nil
}

func (t *memoryTx) InsertTransaction(_ context.Context, tr *model.Transaction) error {
	_, staged := t.transactions[tr.ID]
	if _, ok := t.store.transactions[tr.ID]; ok || staged {
		return fmt.Errorf("%w: transaction %s", ErrDuplicate, tr.ID)
	}
	t.transactions[tr.ID] = cloneTransaction(tr)
	return nil
}

func (t *memoryTx) GetTransactionForUpdate(_ context.Context, id string) (*model.Transaction, error) {
	if tr, ok := t.transactions[id]; ok {
		return cloneTransaction(tr), nil
	}
	tr, ok := t.store.transactions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneTransaction(tr), nil
}

func (t *memoryTx) UpdateTransaction(_ context.Context, tr *model.Transaction) error {
	_, staged := t.transactions[tr.ID]
	if _, ok := t.store.transactions[tr.ID]; !ok && !staged {
		return ErrNotFound
	}
	t.transactions[tr.ID] = cloneTransaction(tr)
	return nil
}

func (t *memoryTx) InsertReview(_ context.Context, r *model.Review) error {
	key := reviewKey(r.TransactionID, r.FromUID)
	if _, ok := t.store.reviewKeys[key]; ok {
		return fmt.Errorf("%w: review by %s on %s", ErrDuplicate, r.FromUID, r.TransactionID)
	}
	for _, staged := range t.reviews {
		if reviewKey(staged.TransactionID, staged.FromUID) == key {
			return fmt.Errorf("%w: review by %s on %s", ErrDuplicate, r.FromUID, r.TransactionID)
		}
	}
	cp := *r
	t.reviews = append(t.reviews, &cp)
	return nil
}

func (t *memoryTx) GetUserForUpdate(_ context.Context, uid string) (*model.User, error) {
	if u, ok := t.users[uid]; ok {
		return cloneUser(u), nil
	}
	u, ok := t.store.users[uid]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneUser(u), nil
}

func (t *memoryTx) UpdateUser(_ context.Context, user *model.User) error {
	_, staged := t.users[user.ID]
	if _, ok := t.store.users[user.ID]; !ok && !staged {
		return ErrNotFound
	}
	t.users[user.ID] = cloneUser(user)
	return nil
}

func (t *memoryTx) UpdateLineBinding(ctx context.Context, user *model.User) error {
	current, err := t.GetUserForUpdate(ctx, user.ID)
	if err != nil {
		return err
	}
	current.LineUserID = user.LineUserID
	current.NotificationsEnabled = user.NotificationsEnabled
	t.users[user.ID] = current
	return nil
}

func (t *memoryTx) TakeBindingCode(_ context.Context, code string) (*model.BindingCode, error) {
	if slices.Contains(t.takenCodes, code) {
		return nil, ErrNotFound
	}
	c, ok := t.store.codes[code]
	if !ok {
		return nil, ErrNotFound
	}
	t.takenCodes = append(t.takenCodes, code)
	return &c, nil
}

func (t *memoryTx) RecordLedgerEntry(_ context.Context, uid, key string, delta int) (bool, error) {
	k := ledgerKey(uid, key)
	if _, ok := t.store.ledger[k]; ok {
		return false, nil
	}
	if _, ok := t.ledger[k]; ok {
		return false, nil
	}
	t.ledger[k] = delta
	return true, nil
}

func (t *memoryTx) commit() {
	s := t.store
	for id, item := range t.items {
		s.items[id] = item
	}
	for id, u := range t.users {
		s.users[id] = u
	}
	for id, tr := range t.transactions {
		s.transactions[id] = tr
	}
	for _, r := range t.reviews {
		s.reviews[r.ID] = r
		s.reviewKeys[reviewKey(r.TransactionID, r.FromUID)] = struct{}{}
	}
	for k, d := range t.ledger {
		s.ledger[k] = d
	}
	for _, code := range t.takenCodes {
		delete(s.codes, code)
	}
}

func cloneItem(in *model.Item) *model.Item {
	out := *in
	if in.ReservedBy != nil {
		v := *in.ReservedBy
		out.ReservedBy = &v
	}
	return &out
}

func cloneUser(in *model.User) *model.User {
	out := *in
	return &out
}

func cloneTime(in *time.Time) *time.Time {
	if in == nil {
		return nil
	}
	v := *in
	return &v
}

func cloneTransaction(in *model.Transaction) *model.Transaction {
	out := *in
	out.MeetingTime = cloneTime(in.MeetingTime)
	out.CompletedAt = cloneTime(in.CompletedAt)
	out.CanceledAt = cloneTime(in.CanceledAt)
	if in.CanceledBy != nil {
		v := *in.CanceledBy
		out.CanceledBy = &v
	}
	if in.RescheduleRequest != nil {
		req := *in.RescheduleRequest
		out.RescheduleRequest = &req
	}
	return &out
}

var _ Store = (*MemoryStore)(nil)
