package transport

import (
	"net/http"

	"storefront/internal/middleware"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddItemRequest adds quantity units of a product to the caller's cart.
type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
}

// UpdateQuantityRequest sets a line's quantity; zero or less removes the line.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

// CartHandler serves the authenticated caller's cart.
type CartHandler struct {
	carts  service.CartService
	logger *zap.Logger
}

func NewCartHandler(carts service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:  carts,
		logger: logger,
	}
}

func (h *CartHandler) RegisterRoutes(r chi.Router, authenticated func(http.Handler) http.Handler) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Use(authenticated)
		r.Get("/", h.Get)
		r.Delete("/", h.Clear)
		r.Post("/items", h.AddItem)
		r.Put("/items/{productID}", h.UpdateQuantity)
		r.Delete("/items/{productID}", h.RemoveItem)
	})
}

func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	cart, err := h.carts.GetCart(r.Context(), owner)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to load cart")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	var req AddItemRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	cart, err := h.carts.AddItem(r.Context(), owner, req.ProductID, req.Quantity)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to add item")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	var req UpdateQuantityRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	cart, err := h.carts.UpdateQuantity(r.Context(), owner, chi.URLParam(r, "productID"), req.Quantity)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to update item")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	cart, err := h.carts.RemoveItem(r.Context(), owner, chi.URLParam(r, "productID"))
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to remove item")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}

func (h *CartHandler) Clear(w http.ResponseWriter, r *http.Request) {
	owner, ok := requireOwner(w, r)
	if !ok {
		return
	}
	cart, err := h.carts.ClearCart(r.Context(), owner)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to clear cart")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, cart)
}
