package controller

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"exchange-backend/pkg/apperr"
	"exchange-backend/usecase"
)

const lineSignatureHeader = "X-Line-Signature"

// LineController receives the LINE Messaging API webhook.
type LineController struct {
	usecase *usecase.LineUsecase
	secret  []byte
	logger  *zap.Logger
}

func NewLineController(usecase *usecase.LineUsecase, channelSecret string, logger *zap.Logger) *LineController {
	return &LineController{usecase: usecase, secret: []byte(channelSecret), logger: logger}
}

type lineWebhookRequest struct {
	Events []lineWebhookEvent `json:"events"`
}

type lineWebhookEvent struct {
	Type   string `json:"type"`
	Source struct {
		UserID string `json:"userId"`
	} `json:"source"`
	Message *struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
	Postback *struct {
		Data string `json:"data"`
	} `json:"postback"`
}

func (c *LineController) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, c.logger, r, apperr.New(apperr.CodeInvalidArgument, "unreadable body"))
		return
	}
	if !validLineSignature(c.secret, body, r.Header.Get(lineSignatureHeader)) {
		writeError(w, c.logger, r, apperr.New(apperr.CodeUnauthenticated, "invalid "+lineSignatureHeader))
		return
	}

	// LINE adds fields over time, so unknown ones are tolerated here.
	var req lineWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, c.logger, r, apperr.Newf(apperr.CodeInvalidArgument, "invalid webhook body: %v", err))
		return
	}

	events := make([]usecase.LineEvent, 0, len(req.Events))
	for _, e := range req.Events {
		ev := usecase.LineEvent{Type: e.Type, SourceUserID: e.Source.UserID}
		switch {
		case e.Type == usecase.LineEventMessage && e.Message != nil && e.Message.Type == "text":
			ev.Text = e.Message.Text
		case e.Type == usecase.LineEventPostback && e.Postback != nil:
			ev.PostbackData = e.Postback.Data
		default:
			continue
		}
		events = append(events, ev)
	}

	c.usecase.HandleEvents(r.Context(), events)
	writeJSON(w, http.StatusOK, struct{}{})
}

// validLineSignature checks the base64 HMAC-SHA256 of body keyed by the
// channel secret.
func validLineSignature(secret, body []byte, signature string) bool {
	if len(secret) == 0 || signature == "" {
		return false
	}
	got, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
