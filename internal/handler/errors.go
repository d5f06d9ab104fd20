package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/laundry-billing/internal/domain/auth"
	"github.com/xenking/laundry-billing/internal/domain/order"
	"github.com/xenking/laundry-billing/pkg/httpmiddleware"
)

// apiError is the JSON error envelope of every failed request.
type apiError struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

func newError(code, message string, status int) apiError {
	return apiError{Code: code, Message: sanitize(message, 512), Status: status}
}

func (e apiError) withDetails(details map[string]any) apiError {
	e.Details = details
	return e
}

func writeError(ctx context.Context, w http.ResponseWriter, e apiError) {
	status := e.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	payload := map[string]any{
		"error":   e.Code,
		"message": e.Message,
		"status":  status,
	}
	if id := httpmiddleware.RequestIDFromContext(ctx); id != "" {
		payload["request_id"] = id
	}
	if len(e.Details) > 0 {
		payload["details"] = e.Details
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeDomainError maps service errors to HTTP responses.
func writeDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	var verr order.ValidationErrors
	if errors.As(err, &verr) {
		writeError(ctx, w, newError("validation_failed", "request validation failed", http.StatusUnprocessableEntity).
			withDetails(map[string]any{"fields": verr.Fields()}))
		return
	}

	switch {
	case errors.Is(err, order.ErrNotFound):
		writeError(ctx, w, newError("order_not_found", "order not found", http.StatusNotFound))
		return
	case errors.Is(err, order.ErrCustomerNotFound):
		writeError(ctx, w, newError("customer_not_found", "customer not found", http.StatusNotFound))
		return
	case errors.Is(err, order.ErrAlreadyDelivered):
		writeError(ctx, w, newError("already_delivered", "order already delivered", http.StatusConflict))
		return
	}

	var serr *order.StorageError
	if errors.As(err, &serr) {
		zctx.From(ctx).Warn("Storage rejected request", zap.String("op", serr.Op), zap.Error(serr.Err))
		writeError(ctx, w, newError("storage_error", serr.Error(), http.StatusBadGateway))
		return
	}

	zctx.From(ctx).Error("Request failed", zap.Error(err))
	writeError(ctx, w, newError("internal_error", "internal server error", http.StatusInternalServerError))
}

func isNotFound(err error) bool {
	return errors.Is(err, auth.ErrKeyNotFound)
}

func sanitize(value string, limit int) string {
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.TrimSpace(value)
	if len(value) > limit {
		cut := limit
		for cut > 0 && !utf8.RuneStart(value[cut]) {
			cut--
		}
		value = value[:cut]
	}
	return value
}
