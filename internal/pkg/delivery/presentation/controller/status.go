package controller

import (
	"errors"
	"net/http"

	delivery "go-courier/internal/pkg/delivery/application/domain"
	"go-courier/internal/pkg/delivery/application/usecase"
)

// statusFor maps domain and use case errors onto HTTP statuses shared
// by every endpoint.
func statusFor(err error) int {
	switch {
	case errors.Is(err, delivery.ErrMessageNotFound), errors.Is(err, delivery.ErrRoomNotFound):
		return http.StatusNotFound
	case errors.Is(err, delivery.ErrNotSender), errors.Is(err, delivery.ErrNotRecipient):
		return http.StatusForbidden
	case errors.Is(err, delivery.ErrConcurrentModificationExceeded):
		// Transient: the caller should retry the request.
		return http.StatusConflict
	case errors.Is(err, usecase.ErrPersistence):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
