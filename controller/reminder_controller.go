package controller

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"exchange-backend/pkg/apperr"
	"exchange-backend/usecase"
)

// ReminderController exposes the sweep to an external scheduler holding the
// shared trigger token.
type ReminderController struct {
	usecase *usecase.ReminderUsecase
	token   []byte
	logger  *zap.Logger
}

func NewReminderController(usecase *usecase.ReminderUsecase, triggerToken string, logger *zap.Logger) *ReminderController {
	return &ReminderController{usecase: usecase, token: []byte(triggerToken), logger: logger}
}

func (c *ReminderController) Sweep(w http.ResponseWriter, r *http.Request) {
	if !c.authorized(r) {
		writeError(w, c.logger, r, apperr.New(apperr.CodeUnauthenticated, "missing or invalid trigger token"))
		return
	}

	n, err := c.usecase.Sweep(r.Context())
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"processed": n})
}

func (c *ReminderController) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok || len(c.token) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), c.token) == 1
}
