package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"exchange-backend/dao"
	"exchange-backend/model"
	"exchange-backend/pkg/apperr"
)

type ItemUsecase struct {
	store  dao.Store
	logger *zap.Logger
}

func NewItemUsecase(store dao.Store, logger *zap.Logger) *ItemUsecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ItemUsecase{store: store, logger: logger.Named("item")}
}

func (u *ItemUsecase) GetAllItems(ctx context.Context) ([]model.Item, error) {
	items, err := u.store.ListItems(ctx)
	if err != nil {
		return nil, fromStore(err, "list items")
	}
	return items, nil
}

func (u *ItemUsecase) GetItemByID(ctx context.Context, id string) (*model.Item, error) {
	item, err := u.store.GetItem(ctx, id)
	if err != nil {
		return nil, fromStore(err, "item "+id)
	}
	return item, nil
}

// CreateItem lists a new available item owned by userID.
func (u *ItemUsecase) CreateItem(ctx context.Context, userID, name string, price int, description string) (*model.Item, error) {
	if err := requireCaller(userID); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.CodeInvalidArgument, "name is required")
	}
	if price < 0 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "price must not be negative")
	}

	now := time.Now().UTC()
	item := &model.Item{
		ID:          newID(),
		Name:        name,
		Price:       price,
		Description: description,
		UserID:      userID,
		Status:      model.ItemStatusAvailable,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := u.store.CreateItem(ctx, item); err != nil {
		return nil, fromStore(err, "create item")
	}

	u.logger.Info("item listed", zap.String("item_id", item.ID), zap.String("user_id", userID))
	return item, nil
}
