package transport

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddressRequest is the payload for adding and replacing an address.
type AddressRequest struct {
	AddressLine1 string `json:"address_line1" validate:"required,max=255"`
	AddressLine2 string `json:"address_line2" validate:"max=255"`
	City         string `json:"city" validate:"max=100"`
	State        string `json:"state" validate:"max=100"`
	PostalCode   string `json:"postal_code" validate:"max=20"`
	Country      string `json:"country" validate:"max=100"`
	IsDefault    bool   `json:"is_default"`
}

func (req AddressRequest) input() service.AddressInput {
	return service.AddressInput{
		AddressLine1: req.AddressLine1,
		AddressLine2: req.AddressLine2,
		City:         req.City,
		State:        req.State,
		PostalCode:   req.PostalCode,
		Country:      req.Country,
		IsDefault:    req.IsDefault,
	}
}

type AddressHandler struct {
	addresses service.AddressService
	logger    *zap.Logger
}

func NewAddressHandler(addresses service.AddressService, logger *zap.Logger) *AddressHandler {
	return &AddressHandler{
		addresses: addresses,
		logger:    logger,
	}
}

func (h *AddressHandler) RegisterRoutes(r chi.Router, authenticated func(http.Handler) http.Handler) {
	r.Route("/api/addresses", func(r chi.Router) {
		r.Use(authenticated)
		r.Get("/", h.List)
		r.Post("/", h.Add)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Delete)
	})
}

func (h *AddressHandler) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	addresses, err := h.addresses.GetAll(r.Context(), owner)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to list addresses")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, addresses)
}

func (h *AddressHandler) Add(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	var req AddressRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	address, err := h.addresses.Add(r.Context(), owner, req.input())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to add address")
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, address)
}

func (h *AddressHandler) Update(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	var req AddressRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	address, err := h.addresses.Update(r.Context(), owner, chi.URLParam(r, "id"), req.input())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to update address")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, address)
}

func (h *AddressHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	if err := h.addresses.Delete(r.Context(), owner, chi.URLParam(r, "id")); err != nil {
		respondWithServiceError(w, h.logger, err, "failed to delete address")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
