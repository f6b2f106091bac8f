package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransactionParticipants(t *testing.T) {
	tx := &Transaction{BuyerID: "buyer", SellerID: "seller"}

	assert.True(t, tx.IsParticipant("buyer"))
	assert.True(t, tx.IsParticipant("seller"))
	assert.False(t, tx.IsParticipant("stranger"))
	assert.False(t, tx.IsParticipant(""))

	assert.Equal(t, "seller", tx.CounterParty("buyer"))
	assert.Equal(t, "buyer", tx.CounterParty("seller"))
	assert.Empty(t, tx.CounterParty("stranger"))
}

func TestUserCanBeNotified(t *testing.T) {
	var nilUser *User
	assert.False(t, nilUser.CanBeNotified())
	assert.False(t, (&User{NotificationsEnabled: true}).CanBeNotified())
	assert.False(t, (&User{LineUserID: "U1"}).CanBeNotified())
	assert.True(t, (&User{NotificationsEnabled: true, LineUserID: "U1"}).CanBeNotified())
}
