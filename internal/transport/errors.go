package transport

import (
	"errors"
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"go.uber.org/zap"
)

var errorStatuses = []struct {
	err    error
	status int
}{
	{repository.ErrProductNotFound, http.StatusNotFound},
	{repository.ErrCartNotFound, http.StatusNotFound},
	{repository.ErrAddressNotFound, http.StatusNotFound},
	{service.ErrCartItemNotFound, http.StatusNotFound},
	{repository.ErrCategoryNotFound, http.StatusBadRequest},
	{service.ErrInvalidQuantity, http.StatusBadRequest},
	{service.ErrAddressLine1Required, http.StatusBadRequest},
	{service.ErrProductNameRequired, http.StatusBadRequest},
	{service.ErrNegativePrice, http.StatusBadRequest},
	{service.ErrNegativeStock, http.StatusBadRequest},
	{service.ErrCategoryRequired, http.StatusBadRequest},
	{service.ErrOwnerRequired, http.StatusUnauthorized},
	{service.ErrInsufficientStock, http.StatusConflict},
	{repository.ErrCategoryAlreadyExists, http.StatusConflict},
	{repository.ErrDefaultAddressConflict, http.StatusConflict},
}

// respondWithServiceError maps service and store errors onto HTTP statuses.
// Unknown errors are logged and hidden behind fallback.
func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, err error, fallback string) {
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			logger.Debug("Request failed", zap.Error(err))
			middleware.RespondWithError(w, e.status, e.err.Error())
			return
		}
	}

	logger.Error(fallback, zap.Error(err))
	middleware.RespondWithError(w, http.StatusInternalServerError, fallback)
}

func respondWithDecodeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	logger.Debug("Request validation failed", zap.Error(err))
	middleware.RespondWithValidationErrors(w, middleware.FormatValidationErrors(err))
}

// requireOwner returns the authenticated owner key or writes a 401.
func requireOwner(w http.ResponseWriter, r *http.Request) (string, bool) {
	owner, ok := middleware.GetOwner(r.Context())
	if !ok || owner == "" {
		middleware.RespondWithError(w, http.StatusUnauthorized, "missing owner")
		return "", false
	}
	return owner, true
}
