package router

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jafsabakes/bakery-api/app/api"
	"github.com/jafsabakes/bakery-api/app/catalog"
	"github.com/jafsabakes/bakery-api/app/categories"
	"github.com/jafsabakes/bakery-api/app/config"
	"github.com/jafsabakes/bakery-api/app/database"
	"github.com/jafsabakes/bakery-api/app/media"
	m "github.com/jafsabakes/bakery-api/app/middleware"
	"github.com/jafsabakes/bakery-api/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Deps is everything the HTTP surface needs.
type Deps struct {
	Config *config.Config
	DB     *gorm.DB
	Store  media.Store
	Logger *zerolog.Logger
}

func SetupRouter(d Deps) *chi.Mux {
	cf := d.Config
	r := chi.NewRouter()

	r.Use(m.RequestIdMiddleware)
	r.Use(middleware.RealIP)
	r.Use(m.LoggerMiddleware(d.Logger))
	r.Use(m.RecoverMiddleware)
	r.Use(m.AllowedHostsMiddleware(cf.AllowedHosts))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cf.CorsAllowedOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Content-Disposition", m.RequestHeader},
		ExposedHeaders:   []string{m.RequestHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.StripSlashes)
	r.Use(m.AccessPolicyMiddleware(cf.AccessPolicy, []byte(cf.AuthTokenSecret)))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		api.ErrorResponse(w, http.StatusNotFound, "Not found.")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		api.ErrorResponse(w, http.StatusMethodNotAllowed, fmt.Sprintf("Method %q not allowed.", r.Method))
	})

	categoriesRepo := models.NewCategoriesRepository(d.DB)
	productsRepo := models.NewProductsRepository(d.DB)

	categoryHandler := categories.NewCategoryHandler(categoriesRepo, cf.ExposeErrorDetails)
	catalogHandler := catalog.NewCatalogHandler(productsRepo, categoriesRepo, d.Store, catalog.Options{
		MediaURL:           cf.MediaURL,
		MaxUploadBytes:     cf.MaxUploadBytes,
		ExposeErrorDetails: cf.ExposeErrorDetails,
	})

	r.Get("/healthz", healthHandler(d.DB))

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", categoryHandler.HandleGetAll)
		r.Post("/", categoryHandler.HandleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", categoryHandler.HandleGet)
			r.Put("/", categoryHandler.HandleUpdate)
			r.Patch("/", categoryHandler.HandlePartialUpdate)
			r.Delete("/", categoryHandler.HandleDelete)
		})
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", catalogHandler.HandleGet)
		r.Post("/", catalogHandler.HandleCreate)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", catalogHandler.HandleGetProduct)
			r.Put("/", catalogHandler.HandleUpdate)
			r.Patch("/", catalogHandler.HandlePartialUpdate)
			r.Delete("/", catalogHandler.HandleDelete)
		})
	})

	if cf.MediaServe && cf.MediaBackend == config.MediaLocal {
		prefix := strings.TrimSuffix(cf.MediaURL, "/")
		r.Handle(prefix+"/*", http.StripPrefix(prefix, http.FileServer(http.Dir(cf.MediaRoot))))
	}

	_ = chi.Walk(r, func(method string, route string, handler http.Handler, middlewares ...func(http.Handler) http.Handler) error {
		d.Logger.Debug().Str("method", method).Str("route", route).Msg("route registered")
		return nil
	})
	return r
}

func healthHandler(db *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := database.Ping(ctx, db); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("health check failed")
			api.ErrorResponse(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		api.JSONResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
