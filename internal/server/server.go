package server

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/database"
	"storefront/internal/divergence"
	"storefront/internal/domain"
	"storefront/internal/identity"
	custommiddleware "storefront/internal/middleware"
	"storefront/internal/repository/mongodb"
	"storefront/internal/repository/postgres"
	"storefront/internal/routing"
	"storefront/internal/service"
	"storefront/internal/transport"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Stores are the live connections the server owns and closes.
// Redis is optional.
type Stores struct {
	DB    *sql.DB
	Mongo *mongo.Client
	// Document is the database inside Mongo holding the collections.
	Document *mongo.Database
	Redis    *redis.Client
}

type Server struct {
	*http.Server
	config *config.Config
	logger *zap.Logger
	stores Stores
}

func NewServer(cfg *config.Config, logger *zap.Logger, stores Stores) *Server {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(custommiddleware.LoggingMiddleware(logger.Named("http")))
	router.Use(custommiddleware.ErrorHandlingMiddleware(logger))
	router.Use(custommiddleware.CORSMiddleware(cfg.Server.AllowedOrigins, cfg.Server.Env != "production"))
	router.Use(middleware.Compress(5))

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		health := map[string]interface{}{
			"status":   "ok",
			"postgres": database.Health(r.Context(), stores.DB),
		}
		if err := stores.Mongo.Ping(r.Context(), nil); err != nil {
			health["status"] = "degraded"
			health["mongo"] = err.Error()
		}
		custommiddleware.RespondWithJSON(w, http.StatusOK, health)
	})

	policies := routing.FromConfig(cfg.Features)
	for entity, policy := range policies.Snapshot() {
		logger.Info("Store routing",
			zap.String("entity", entity),
			zap.Bool("use_secondary", policy.UseSecondary),
			zap.Bool("dual_write", policy.DualWrite),
		)
	}

	var journal divergence.Journal = divergence.Nop{}
	if stores.Redis != nil {
		journal = divergence.NewRedisJournal(stores.Redis, divergence.DefaultMaxEntries)
	}

	mapper := identity.NewPostgresMapper(stores.DB)

	productService := service.NewProductService(
		postgres.NewProductRepository(stores.DB),
		mongodb.NewProductRepository(stores.Document),
		postgres.NewCategoryRepository(stores.DB),
		mapper,
		policies.Policy(domain.EntityProduct),
		journal,
		logger,
	)
	cartService := service.NewCartService(
		postgres.NewCartRepository(stores.DB),
		mongodb.NewCartRepository(stores.Document),
		productService,
		mapper,
		policies.Policy(domain.EntityCart),
		journal,
		logger,
	)
	addressService := service.NewAddressService(
		postgres.NewAddressRepository(stores.DB),
		mongodb.NewAddressRepository(stores.Document),
		mapper,
		policies.Policy(domain.EntityAddress),
		journal,
		logger,
	)

	authenticated := custommiddleware.AuthMiddleware(cfg.JWT.Secret, logger)
	if stores.Redis != nil && cfg.RateLimit.Requests > 0 {
		limiter := custommiddleware.RateLimitMiddleware(stores.Redis, custommiddleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimit.Requests,
			Window:            cfg.RateLimit.Window,
			KeyPrefix:         "ratelimit",
		}, logger)
		auth := authenticated
		authenticated = func(next http.Handler) http.Handler {
			return auth(limiter(next))
		}
	}
	adminOnly := custommiddleware.RequireAdmin(logger)

	transport.NewProductHandler(productService, logger).RegisterRoutes(router, authenticated, adminOnly)
	transport.NewCartHandler(cartService, logger).RegisterRoutes(router, authenticated)
	transport.NewAddressHandler(addressService, logger).RegisterRoutes(router, authenticated)
	transport.NewAdminHandler(policies, journal, mapper, logger).RegisterRoutes(router, authenticated, adminOnly)

	return &Server{
		Server: &http.Server{
			Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
			Handler:      router,
			IdleTimeout:  time.Minute,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		config: cfg,
		logger: logger,
		stores: stores,
	}
}

// Close releases every store connection. Call it after Shutdown.
func (s *Server) Close() error {
	s.logger.Info("Closing server resources")
	s.stores.Close(s.logger)
	_ = s.logger.Sync()
	return nil
}

// Close releases whichever connections are open.
func (st Stores) Close(logger *zap.Logger) {
	if st.Redis != nil {
		if err := st.Redis.Close(); err != nil {
			logger.Error("Failed to close redis connection", zap.Error(err))
		}
	}

	if st.Mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := st.Mongo.Disconnect(ctx); err != nil {
			logger.Error("Failed to disconnect from MongoDB", zap.Error(err))
		}
	}

	if st.DB != nil {
		if err := st.DB.Close(); err != nil {
			logger.Error("Failed to close database connection", zap.Error(err))
		}
	}
}
