package controller

import (
	"net/http"

	"go.uber.org/zap"

	"exchange-backend/model"
	"exchange-backend/pkg/apperr"
	"exchange-backend/usecase"
)

type UserController struct {
	users   *usecase.UserUsecase
	reviews *usecase.ReviewUsecase
	logger  *zap.Logger
}

func NewUserController(users *usecase.UserUsecase, reviews *usecase.ReviewUsecase, logger *zap.Logger) *UserController {
	return &UserController{users: users, reviews: reviews, logger: logger}
}

type registerRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	LineUserID           string `json:"line_user_id"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

func (c *UserController) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		writeError(w, c.logger, r, err)
		return
	}

	// The identity header is optional here; it only lets an owner log back in.
	user, err := c.users.RegisterUser(r.Context(), r.Header.Get(UserIDHeader), usecase.RegisterInput{
		Name:                 req.Name,
		Email:                req.Email,
		LineUserID:           req.LineUserID,
		NotificationsEnabled: req.NotificationsEnabled,
	})
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (c *UserController) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := c.users.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (c *UserController) GetReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := c.reviews.ListFor(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	if reviews == nil {
		reviews = []model.Review{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (c *UserController) CreateBindingCode(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	code, err := c.users.GenerateBindingCode(r.Context(), uid)
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, code)
}

func (c *UserController) UnbindLine(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	user, err := c.users.UnbindLine(r.Context(), uid)
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type notificationsRequest struct {
	Enabled *bool `json:"enabled"`
}

func (c *UserController) SetNotifications(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	var req notificationsRequest
	if err := decode(r, &req); err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	if req.Enabled == nil {
		writeError(w, c.logger, r, apperr.New(apperr.CodeInvalidArgument, "enabled is required"))
		return
	}
	user, err := c.users.SetNotifications(r.Context(), uid, *req.Enabled)
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}
