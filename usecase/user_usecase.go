package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"exchange-backend/dao"
	"exchange-backend/model"
	"exchange-backend/pkg/apperr"
)

const bindingCodeAttempts = 5

var bindingCodePattern = regexp.MustCompile(`^\d{6}$`)

type UserUsecase struct {
	store  dao.Store
	logger *zap.Logger
	now    func() time.Time
}

func NewUserUsecase(store dao.Store, logger *zap.Logger) *UserUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserUsecase{store: store, logger: logger.Named("user"), now: time.Now}
}

type RegisterInput struct {
	Name                 string
	Email                string
	LineUserID           string
	NotificationsEnabled bool
}

// RegisterUser creates an account with a fresh reputation record. An email
// that is already registered is only handed back to the caller who owns it.
func (u *UserUsecase) RegisterUser(ctx context.Context, callerUID string, in RegisterInput) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "email is required")
	}

	existing, err := u.store.GetUserByEmail(ctx, email)
	if err == nil {
		return u.existingAccount(existing, callerUID)
	}
	if !errors.Is(err, dao.ErrNotFound) {
		return nil, fromStore(err, "lookup user")
	}

	user := &model.User{
		ID:                   newID(),
		Name:                 strings.TrimSpace(in.Name),
		Email:                email,
		LineUserID:           in.LineUserID,
		NotificationsEnabled: in.NotificationsEnabled && in.LineUserID != "",
		CreditScore:          model.DefaultCreditScore,
		CreatedAt:            u.now().UTC(),
	}
	if err := u.store.CreateUser(ctx, user); err != nil {
		// Lost a race with a concurrent registration for the same email.
		if errors.Is(err, dao.ErrDuplicate) {
			if existing, lookupErr := u.store.GetUserByEmail(ctx, email); lookupErr == nil {
				return u.existingAccount(existing, callerUID)
			}
		}
		return nil, fromStore(err, "create user")
	}

	u.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

func (u *UserUsecase) existingAccount(user *model.User, callerUID string) (*model.User, error) {
	if callerUID != "" && callerUID == user.ID {
		return user, nil
	}
	return nil, apperr.New(apperr.CodeAlreadyExists, "email is already registered")
}

func (u *UserUsecase) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := u.store.GetUser(ctx, id)
	if err != nil {
		return nil, fromStore(err, "user "+id)
	}
	return user, nil
}

// GenerateBindingCode issues a six-digit code the caller sends to the LINE
// bot to link their LINE account.
func (u *UserUsecase) GenerateBindingCode(ctx context.Context, uid string) (*model.BindingCode, error) {
	if err := requireCaller(uid); err != nil {
		return nil, err
	}
	if _, err := u.store.GetUser(ctx, uid); err != nil {
		return nil, fromStore(err, "user "+uid)
	}

	now := u.now()
	for attempt := 0; attempt < bindingCodeAttempts; attempt++ {
		code, err := randomBindingCode()
		if err != nil {
			return nil, fmt.Errorf("generate binding code: %w", err)
		}
		c := &model.BindingCode{Code: code, UserID: uid, ExpiresAt: now.Add(model.BindingCodeTTL), CreatedAt: now}
		err = u.store.CreateBindingCode(ctx, c)
		if err == nil {
			u.logger.Info("binding code issued", zap.String("user_id", uid))
			return c, nil
		}
		if !errors.Is(err, dao.ErrDuplicate) {
			return nil, fromStore(err, "create binding code")
		}
	}
	return nil, apperr.New(apperr.CodeResourceExhausted, "could not allocate a binding code, try again")
}

func randomBindingCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// BindLine redeems a binding code sent from lineUserID and enables push
// notifications for the code's owner. A code is single use.
func (u *UserUsecase) BindLine(ctx context.Context, code, lineUserID string) (*model.User, error) {
	code = strings.TrimSpace(code)
	if !bindingCodePattern.MatchString(code) {
		return nil, apperr.New(apperr.CodeInvalidArgument, "binding code must be six digits")
	}
	if lineUserID == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "line user id is required")
	}

	var bound *model.User
	err := u.store.RunInTx(ctx, func(ctx context.Context, tx dao.Tx) error {
		c, err := tx.TakeBindingCode(ctx, code)
		if errors.Is(err, dao.ErrNotFound) {
			return apperr.New(apperr.CodeNotFound, "binding code not found")
		}
		if err != nil {
			return err
		}
		if c.Expired(u.now()) {
			return apperr.New(apperr.CodeFailedPrecondition, "binding code has expired")
		}

		user, err := tx.GetUserForUpdate(ctx, c.UserID)
		if err != nil {
			return fromStore(err, "user "+c.UserID)
		}
		user.LineUserID = lineUserID
		user.NotificationsEnabled = true
		if err := tx.UpdateLineBinding(ctx, user); err != nil {
			return err
		}
		bound = user
		return nil
	})
	if err != nil {
		return nil, fromStore(err, "bind line account")
	}

	u.logger.Info("line account bound", zap.String("user_id", bound.ID))
	return bound, nil
}

// UnbindLine removes the LINE link and turns push notifications off.
func (u *UserUsecase) UnbindLine(ctx context.Context, uid string) (*model.User, error) {
	if err := requireCaller(uid); err != nil {
		return nil, err
	}
	return u.updateLineBinding(ctx, uid, func(user *model.User) error {
		user.LineUserID = ""
		user.NotificationsEnabled = false
		return nil
	})
}

func (u *UserUsecase) SetNotifications(ctx context.Context, uid string, enabled bool) (*model.User, error) {
	if err := requireCaller(uid); err != nil {
		return nil, err
	}
	return u.updateLineBinding(ctx, uid, func(user *model.User) error {
		if enabled && user.LineUserID == "" {
			return apperr.New(apperr.CodeFailedPrecondition, "link a LINE account before enabling notifications")
		}
		user.NotificationsEnabled = enabled
		return nil
	})
}

func (u *UserUsecase) updateLineBinding(ctx context.Context, uid string, fn func(*model.User) error) (*model.User, error) {
	var out *model.User
	err := u.store.RunInTx(ctx, func(ctx context.Context, tx dao.Tx) error {
		user, err := tx.GetUserForUpdate(ctx, uid)
		if err != nil {
			return fromStore(err, "user "+uid)
		}
		if err := fn(user); err != nil {
			return err
		}
		if err := tx.UpdateLineBinding(ctx, user); err != nil {
			return err
		}
		out = user
		return nil
	})
	if err != nil {
		return nil, fromStore(err, "update line binding")
	}
	u.logger.Info("notification settings changed",
		zap.String("user_id", uid),
		zap.Bool("line_linked", out.LineUserID != ""),
		zap.Bool("notifications_enabled", out.NotificationsEnabled))
	return out, nil
}
