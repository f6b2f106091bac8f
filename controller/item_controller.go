package controller

import (
	"net/http"

	"go.uber.org/zap"

	"exchange-backend/model"
	"exchange-backend/usecase"
)

type ItemController struct {
	usecase *usecase.ItemUsecase
	logger  *zap.Logger
}

func NewItemController(usecase *usecase.ItemUsecase, logger *zap.Logger) *ItemController {
	return &ItemController{usecase: usecase, logger: logger}
}

func (c *ItemController) GetItems(w http.ResponseWriter, r *http.Request) {
	items, err := c.usecase.GetAllItems(r.Context())
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	if items == nil {
		items = []model.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

type createItemRequest struct {
	Name        string `json:"name"`
	Price       int    `json:"price"`
	Description string `json:"description"`
}

func (c *ItemController) CreateItem(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	var req createItemRequest
	if err := decode(r, &req); err != nil {
		writeError(w, c.logger, r, err)
		return
	}

	item, err := c.usecase.CreateItem(r.Context(), uid, req.Name, req.Price, req.Description)
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (c *ItemController) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := c.usecase.GetItemByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}
