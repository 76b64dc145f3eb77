package transport

import (
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/middleware"
	"storefront/internal/repository"
	"storefront/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest is the payload for creating and replacing a product.
type ProductRequest struct {
	Name           string          `json:"name" validate:"required,max=200"`
	Description    string          `json:"description" validate:"max=2000"`
	Price          decimal.Decimal `json:"price" validate:"gte=0"`
	CategoryID     int64           `json:"category_id" validate:"required,gt=0"`
	ImageURL       string          `json:"image_url" validate:"omitempty,max=500"`
	StockQuantity  int             `json:"stock_quantity" validate:"gte=0"`
	Brand          string          `json:"brand" validate:"max=100"`
	Rating         decimal.Decimal `json:"rating" validate:"gte=0,lte=5"`
	ReviewCount    int             `json:"review_count" validate:"gte=0"`
	Specifications string          `json:"specifications"`
	IsActive       *bool           `json:"is_active"`
}

func (req ProductRequest) input() service.ProductInput {
	return service.ProductInput{
		Name:           req.Name,
		Description:    req.Description,
		Price:          req.Price,
		CategoryID:     req.CategoryID,
		ImageURL:       req.ImageURL,
		StockQuantity:  req.StockQuantity,
		Brand:          req.Brand,
		Rating:         req.Rating,
		ReviewCount:    req.ReviewCount,
		Specifications: req.Specifications,
		IsActive:       req.IsActive,
	}
}

// StockResponse answers a stock availability check.
type StockResponse struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Available bool   `json:"available"`
}

// ProductHandler handles HTTP requests for the catalog
type ProductHandler struct {
	products service.ProductService
	logger   *zap.Logger
}

func NewProductHandler(products service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		products: products,
		logger:   logger,
	}
}

// RegisterRoutes registers the catalog routes. Reads are public; writes
// need an authenticated admin.
func (h *ProductHandler) RegisterRoutes(r chi.Router, authenticated, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/search", h.Search)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/stock", h.CheckStock)

		r.Group(func(r chi.Router) {
			r.Use(authenticated, adminOnly)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.GetAll(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to list products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// Search accepts q, category_id, min_price, max_price and brand.
func (h *ProductHandler) Search(w http.ResponseWriter, r *http.Request) {
	filter, verrs := parseProductFilter(r)
	if len(verrs) > 0 {
		middleware.RespondWithValidationErrors(w, verrs)
		return
	}

	products, err := h.products.Search(r.Context(), filter)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to search products")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, products)
}

func parseProductFilter(r *http.Request) (repository.ProductFilter, []middleware.ValidationError) {
	q := r.URL.Query()
	filter := repository.ProductFilter{
		Query: strings.TrimSpace(q.Get("q")),
		Brand: strings.TrimSpace(q.Get("brand")),
	}

	var verrs []middleware.ValidationError
	if raw := q.Get("category_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			verrs = append(verrs, middleware.ValidationError{Field: "category_id", Message: "Value must be a positive integer"})
		} else {
			filter.CategoryID = &id
		}
	}
	for field, dst := range map[string]**decimal.Decimal{
		"min_price": &filter.MinPrice,
		"max_price": &filter.MaxPrice,
	} {
		raw := q.Get(field)
		if raw == "" {
			continue
		}
		d, err := decimal.NewFromString(raw)
		if err != nil || d.IsNegative() {
			verrs = append(verrs, middleware.ValidationError{Field: field, Message: "Value must be a non-negative number"})
			continue
		}
		*dst = &d
	}
	return filter, verrs
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	product, err := h.products.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to load product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// CheckStock reports whether ?quantity= units (default 1) can be sold.
func (h *ProductHandler) CheckStock(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	quantity := 1
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
				{Field: "quantity", Message: "Value must be greater than 0"},
			})
			return
		}
		quantity = n
	}

	available, err := h.products.CheckStockAvailability(r.Context(), id, quantity)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to check stock")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, StockResponse{
		ProductID: id,
		Quantity:  quantity,
		Available: available,
	})
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	product, err := h.products.Create(r.Context(), req.input())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to create product")
		return
	}

	h.logger.Info("Product created", zap.String("product_id", product.ID))
	middleware.RespondWithJSON(w, http.StatusCreated, product)
}

func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	product, err := h.products.Update(r.Context(), chi.URLParam(r, "id"), req.input())
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to update product")
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, product)
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	deleted, err := h.products.Delete(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, h.logger, err, "failed to delete product")
		return
	}
	if !deleted {
		middleware.RespondWithError(w, http.StatusNotFound, repository.ErrProductNotFound.Error())
		return
	}

	h.logger.Info("Product deactivated", zap.String("product_id", id))
	w.WriteHeader(http.StatusNoContent)
}
