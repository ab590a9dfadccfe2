package router

import (
	"log"
	"net/http"

	"github.com/farmanova/api/internal/config"
	"github.com/farmanova/api/internal/erp"
	"github.com/farmanova/api/internal/handler"
	"github.com/farmanova/api/internal/wizard"
	"github.com/farmanova/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
)

// New creates a Chi router with all application routes wired up.
func New(cfg *config.Config, erpClient *erp.Client, sessions *wizard.Store, ctrl *wizard.Controller, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// CORS configuration for the browser front end
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// WebSocket route: enrichment panels subscribe per wizard session
	r.Get("/ws/wizard/{sid}", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, func(id uuid.UUID) bool {
			_, ok := sessions.Get(id)
			return ok
		}, w, r)
	})

	// Production order catalog (wizard step 1)
	catalogHandler := handler.NewCatalogHandler(erpClient)
	r.Route("/orders", catalogHandler.RegisterRoutes)

	// Dispensation assistant sessions
	wizardHandler := handler.NewWizardHandler(sessions, ctrl)
	r.Route("/wizard/sessions", wizardHandler.RegisterRoutes)

	// Read-only stock browse and kardex views
	stockHandler := handler.NewStockHandler(erpClient)
	r.Route("/stock", stockHandler.RegisterStockRoutes)
	r.Route("/products", stockHandler.RegisterKardexRoutes)

	log.Println("Router initialized with all handlers")
	return r
}
