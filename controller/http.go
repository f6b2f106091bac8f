package controller

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"exchange-backend/pkg/apperr"
)

// UserIDHeader carries the caller identity set by the upstream auth proxy.
const UserIDHeader = "X-User-ID"

const maxBodyBytes = 1 << 20

type errorBody struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

// withCORS answers preflight requests and decorates every response.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+UserIDHeader)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func callerID(r *http.Request) (string, error) {
	uid := r.Header.Get(UserIDHeader)
	if uid == "" {
		return "", apperr.New(apperr.CodeUnauthenticated, "missing "+UserIDHeader+" header")
	}
	return uid, nil
}

func decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.New(apperr.CodeInvalidArgument, "request body is empty")
		}
		return apperr.Newf(apperr.CodeInvalidArgument, "invalid request body: %v", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto its HTTP status. Internal errors are logged and
// their detail withheld from the client.
func writeError(w http.ResponseWriter, logger *zap.Logger, r *http.Request, err error) {
	code := apperr.CodeOf(err)
	msg := err.Error()
	var ae *apperr.Error
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	if code == apperr.CodeInternal {
		logger.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal error"
	}
	writeJSON(w, apperr.HTTPStatus(code), map[string]errorBody{"error": {Code: code, Message: msg}})
}
