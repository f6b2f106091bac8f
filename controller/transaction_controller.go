package controller

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"exchange-backend/model"
	"exchange-backend/pkg/apperr"
	"exchange-backend/usecase"
)

type TransactionController struct {
	transactions *usecase.TransactionUsecase
	reviews      *usecase.ReviewUsecase
	logger       *zap.Logger
}

func NewTransactionController(transactions *usecase.TransactionUsecase, reviews *usecase.ReviewUsecase, logger *zap.Logger) *TransactionController {
	return &TransactionController{transactions: transactions, reviews: reviews, logger: logger}
}

type reserveRequest struct {
	ItemID          string     `json:"item_id"`
	Price           int        `json:"price"`
	MeetingTime     *time.Time `json:"meeting_time"`
	MeetingLocation string     `json:"meeting_location"`
}

func (c *TransactionController) Reserve(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	var req reserveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, c.logger, r, err)
		return
	}

	t, err := c.transactions.Reserve(r.Context(), usecase.ReserveInput{
		ItemID:          req.ItemID,
		BuyerID:         uid,
		Price:           req.Price,
		MeetingTime:     req.MeetingTime,
		MeetingLocation: req.MeetingLocation,
	})
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"transaction_id": t.ID})
}

func (c *TransactionController) List(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	ts, err := c.transactions.List(r.Context(), uid)
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	if ts == nil {
		ts = []model.Transaction{}
	}
	writeJSON(w, http.StatusOK, ts)
}

func (c *TransactionController) Get(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, func(uid, id string) (*model.Transaction, error) {
		return c.transactions.Get(r.Context(), uid, id)
	})
}

func (c *TransactionController) ConfirmTime(w http.ResponseWriter, r *http.Request) {
	c.respond(w, r, func(uid, id string) (*model.Transaction, error) {
		return c.transactions.ConfirmTime(r.Context(), uid, id)
	})
}

type rescheduleRequest struct {
	NewTime     time.Time `json:"new_time"`
	NewLocation string    `json:"new_location"`
	Reason      string    `json:"reason"`
}

func (c *TransactionController) RequestReschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	c.respondWithBody(w, r, &req, func(uid, id string) (*model.Transaction, error) {
		return c.transactions.RequestReschedule(r.Context(), uid, id, usecase.RescheduleInput{
			NewTime:     req.NewTime,
			NewLocation: req.NewLocation,
			Reason:      req.Reason,
		})
	})
}

type respondRequest struct {
	Response string `json:"response"`
}

func (c *TransactionController) RespondReschedule(w http.ResponseWriter, r *http.Request) {
	var req respondRequest
	c.respondWithBody(w, r, &req, func(uid, id string) (*model.Transaction, error) {
		switch req.Response {
		case "accept":
			return c.transactions.RespondReschedule(r.Context(), uid, id, true)
		case "reject":
			return c.transactions.RespondReschedule(r.Context(), uid, id, false)
		}
		return nil, apperr.New(apperr.CodeInvalidArgument, `response must be "accept" or "reject"`)
	})
}

type statusRequest struct {
	Status model.TransactionStatus `json:"status"`
	Reason string                  `json:"reason"`
}

func (c *TransactionController) SetStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	c.respondWithBody(w, r, &req, func(uid, id string) (*model.Transaction, error) {
		return c.transactions.SetStatus(r.Context(), uid, id, req.Status, req.Reason)
	})
}

type outcomeRequest struct {
	Result string `json:"result"`
	Reason string `json:"reason"`
}

func (c *TransactionController) ReportOutcome(w http.ResponseWriter, r *http.Request) {
	var req outcomeRequest
	c.respondWithBody(w, r, &req, func(uid, id string) (*model.Transaction, error) {
		switch req.Result {
		case "success":
			return c.transactions.ReportOutcome(r.Context(), uid, id, true, "")
		case "failure":
			return c.transactions.ReportOutcome(r.Context(), uid, id, false, req.Reason)
		}
		return nil, apperr.New(apperr.CodeInvalidArgument, `result must be "success" or "failure"`)
	})
}

type reviewRequest struct {
	TargetUID string `json:"target_uid"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

func (c *TransactionController) AddReview(w http.ResponseWriter, r *http.Request) {
	uid, err := callerID(r)
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	var req reviewRequest
	if err := decode(r, &req); err != nil {
		writeError(w, c.logger, r, err)
		return
	}

	review, err := c.reviews.AddReview(r.Context(), uid, r.PathValue("id"), req.TargetUID, req.Rating, req.Comment)
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

func (c *TransactionController) respond(w http.ResponseWriter, r *http.Request, fn func(uid, id string) (*model.Transaction, error)) {
	uid, err := callerID(r)
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	t, err := fn(uid, r.PathValue("id"))
	if err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// respondWithBody decodes the request into req before calling fn.
func (c *TransactionController) respondWithBody(w http.ResponseWriter, r *http.Request, req any, fn func(uid, id string) (*model.Transaction, error)) {
	if _, err := callerID(r); err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	if err := decode(r, req); err != nil {
		writeError(w, c.logger, r, err)
		return
	}
	c.respond(w, r, fn)
}
