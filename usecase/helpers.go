package usecase

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"exchange-backend/dao"
	"exchange-backend/pkg/apperr"
)

func newID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Now(), entropy).String()
}

func requireCaller(uid string) error {
	if uid == "" {
		return apperr.New(apperr.CodeUnauthenticated, "sign in required")
	}
	return nil
}

// fromStore passes business errors through and classifies storage errors.
func fromStore(err error, what string) error {
	if err == nil {
		return nil
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return err
	}
	if errors.Is(err, dao.ErrNotFound) {
		return apperr.Newf(apperr.CodeNotFound, "%s not found", what)
	}
	return fmt.Errorf("%s: %w", what, err)
}
