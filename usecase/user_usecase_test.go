package usecase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"exchange-backend/model"
	"exchange-backend/pkg/apperr"
)

func TestRegisterUserOnlyReturnsAccountToItsOwner(t *testing.T) {
	f := newFixture(t)

	u, err := f.users.RegisterUser(f.ctx, "", RegisterInput{Name: "Ada", Email: " Ada@Example.com ", LineUserID: "Uada", NotificationsEnabled: true})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, model.DefaultCreditScore, u.CreditScore)
	assert.True(t, u.CanBeNotified())

	_, err = f.users.RegisterUser(f.ctx, "", RegisterInput{Name: "Someone else", Email: "ada@example.com"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)
	_, err = f.users.RegisterUser(f.ctx, otherID, RegisterInput{Email: "ada@example.com"})
	assert.ErrorIs(t, err, apperr.ErrAlreadyExists)

	again, err := f.users.RegisterUser(f.ctx, u.ID, RegisterInput{Name: "Someone else", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)
	assert.Equal(t, "Ada", again.Name)

	_, err = f.users.RegisterUser(f.ctx, "", RegisterInput{Name: "x"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestNotificationsNeedALineAccount(t *testing.T) {
	f := newFixture(t)
	u, err := f.users.RegisterUser(f.ctx, "", RegisterInput{Email: "nolink@example.com", NotificationsEnabled: true})
	require.NoError(t, err)
	assert.False(t, u.NotificationsEnabled)

	_, err = f.users.SetNotifications(f.ctx, u.ID, true)
	assert.ErrorIs(t, err, apperr.ErrFailedPrecondition)
}

func TestBindLineWithCode(t *testing.T) {
	f := newFixture(t)

	code, err := f.users.GenerateBindingCode(f.ctx, otherID)
	require.NoError(t, err)
	assert.Regexp(t, `^\d{6}$`, code.Code)
	assert.Equal(t, f.now.Add(model.BindingCodeTTL), code.ExpiresAt)

	_, err = f.users.BindLine(f.ctx, "12ab56", "Uother")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)

	u, err := f.users.BindLine(f.ctx, code.Code, "Uother")
	require.NoError(t, err)
	assert.True(t, u.CanBeNotified())
	assert.Equal(t, "Uother", f.user(t, otherID).LineUserID)

	_, err = f.users.BindLine(f.ctx, code.Code, "Uother")
	assert.ErrorIs(t, err, apperr.ErrNotFound, "codes are single use")

	u, err = f.users.SetNotifications(f.ctx, otherID, false)
	require.NoError(t, err)
	assert.False(t, u.NotificationsEnabled)
	assert.Equal(t, "Uother", u.LineUserID)

	u, err = f.users.UnbindLine(f.ctx, otherID)
	require.NoError(t, err)
	assert.Empty(t, u.LineUserID)
	assert.False(t, f.user(t, otherID).CanBeNotified())
}

func TestExpiredBindingCodeIsRejected(t *testing.T) {
	f := newFixture(t)
	code, err := f.users.GenerateBindingCode(f.ctx, otherID)
	require.NoError(t, err)

	f.now = f.now.Add(model.BindingCodeTTL)
	_, err = f.users.BindLine(f.ctx, code.Code, "Uother")
	assert.ErrorIs(t, err, apperr.ErrFailedPrecondition)
	assert.Empty(t, f.user(t, otherID).LineUserID)

	_, err = f.users.GenerateBindingCode(f.ctx, "nobody")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.users.GenerateBindingCode(f.ctx, "")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestGetUser(t *testing.T) {
	f := newFixture(t)
	u, err := f.users.GetUser(f.ctx, sellerID)
	require.NoError(t, err)
	assert.Equal(t, "Sam", u.Name)

	_, err = f.users.GetUser(f.ctx, "nobody")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCreateAndListItems(t *testing.T) {
	f := newFixture(t)

	_, err := f.items.CreateItem(f.ctx, sellerID, "  ", 100, "")
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = f.items.CreateItem(f.ctx, "", "Lamp", 100, "")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)

	item, err := f.items.CreateItem(f.ctx, sellerID, "Lamp", 100, "warm light")
	require.NoError(t, err)
	assert.Equal(t, model.ItemStatusAvailable, item.Status)
	assert.Len(t, item.ID, 26)

	got, err := f.items.GetItemByID(f.ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lamp", got.Name)

	items, err := f.items.GetAllItems(f.ctx)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = f.items.GetItemByID(f.ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
