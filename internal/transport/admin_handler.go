package transport

import (
	"context"
	"net/http"
	"strconv"

	"storefront/internal/divergence"
	"storefront/internal/domain"
	"storefront/internal/middleware"
	"storefront/internal/routing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxAdminListLimit = 500

// LinkLister lists identity links, newest first.
type LinkLister interface {
	Links(ctx context.Context, entity domain.EntityType, limit int64) ([]domain.IdentityLink, error)
}

// AdminHandler exposes the migration state: the active routing policies,
// the most recent divergent writes and the identity links per entity type.
type AdminHandler struct {
	router  *routing.Router
	journal divergence.Journal
	links   LinkLister
	logger  *zap.Logger
}

func NewAdminHandler(router *routing.Router, journal divergence.Journal, links LinkLister, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		router:  router,
		journal: journal,
		links:   links,
		logger:  logger,
	}
}

func (h *AdminHandler) RegisterRoutes(r chi.Router, authenticated, adminOnly func(http.Handler) http.Handler) {
	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authenticated, adminOnly)
		r.Get("/routing", h.Routing)
		r.Get("/divergences/{entity}", h.Divergences)
		r.Get("/links/{entity}", h.Links)
	})
}

func (h *AdminHandler) Routing(w http.ResponseWriter, r *http.Request) {
	middleware.RespondWithJSON(w, http.StatusOK, h.router.Snapshot())
}

// entityAndLimit reads the {entity} path parameter and the optional ?limit=.
// It writes the error response itself and reports false on bad input.
func entityAndLimit(w http.ResponseWriter, r *http.Request) (domain.EntityType, int64, bool) {
	entity := domain.EntityType(chi.URLParam(r, "entity"))
	switch entity {
	case domain.EntityProduct, domain.EntityCart, domain.EntityAddress:
	default:
		middleware.RespondWithError(w, http.StatusNotFound, "unknown entity type")
		return "", 0, false
	}

	var limit int64
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 || n > maxAdminListLimit {
			middleware.RespondWithValidationErrors(w, []middleware.ValidationError{
				{Field: "limit", Message: "Value must be between 1 and " + strconv.Itoa(maxAdminListLimit)},
			})
			return "", 0, false
		}
		limit = n
	}
	return entity, limit, true
}

// Divergences lists the newest journal entries for one entity type,
// ?limit= caps the count.
func (h *AdminHandler) Divergences(w http.ResponseWriter, r *http.Request) {
	entity, limit, ok := entityAndLimit(w, r)
	if !ok {
		return
	}

	entries, err := h.journal.Recent(r.Context(), entity, limit)
	if err != nil {
		h.logger.Error("Failed to read divergence journal", zap.Error(err), zap.String("entity", string(entity)))
		middleware.RespondWithError(w, http.StatusServiceUnavailable, "divergence journal unavailable")
		return
	}
	if entries == nil {
		entries = []divergence.Entry{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, entries)
}

// Links lists which relational row and document belong together for one
// entity type. Without ?limit= at most maxAdminListLimit links are returned.
func (h *AdminHandler) Links(w http.ResponseWriter, r *http.Request) {
	entity, limit, ok := entityAndLimit(w, r)
	if !ok {
		return
	}
	if limit == 0 {
		limit = maxAdminListLimit
	}

	links, err := h.links.Links(r.Context(), entity, limit)
	if err != nil {
		h.logger.Error("Failed to list identity links", zap.Error(err), zap.String("entity", string(entity)))
		middleware.RespondWithError(w, http.StatusInternalServerError, "failed to list identity links")
		return
	}
	if links == nil {
		links = []domain.IdentityLink{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, links)
}
