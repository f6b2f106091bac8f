package dao

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
)

func TestIsRetryable(t *testing.T) {
	deadlock := &mysql.MySQLError{Number: mysqlErrDeadlock, Message: "Deadlock found"}
	lockWait := &mysql.MySQLError{Number: mysqlErrLockWaitTimeout, Message: "Lock wait timeout exceeded"}
	dup := &mysql.MySQLError{Number: mysqlErrDuplicateEntry, Message: "Duplicate entry"}

	assert.True(t, isRetryable(deadlock))
	assert.True(t, isRetryable(fmt.Errorf("update item: %w", lockWait)))
	assert.False(t, isRetryable(dup))
	assert.False(t, isRetryable(errors.New("connection refused")))
	assert.False(t, isRetryable(nil))
}

func TestTranslateDuplicate(t *testing.T) {
	err := translate(&mysql.MySQLError{Number: mysqlErrDuplicateEntry, Message: "Duplicate entry 'x' for key 'PRIMARY'"})
	assert.ErrorIs(t, err, ErrDuplicate)

	other := errors.New("syntax error")
	assert.Equal(t, other, translate(other))
}

func TestNullableHelpers(t *testing.T) {
	assert.False(t, nullString(nil).Valid)
	s := "buyer"
	assert.Equal(t, "buyer", nullString(&s).String)
	assert.Nil(t, stringPtr(nullString(nil)))
	assert.Equal(t, "buyer", *stringPtr(nullString(&s)))

	now := time.Now().UTC()
	assert.False(t, nullTime(nil).Valid)
	assert.Nil(t, timePtr(nullTime(nil)))
	assert.Equal(t, now, *timePtr(nullTime(&now)))
}
