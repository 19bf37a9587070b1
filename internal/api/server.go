// Package api provides the HTTP API server and handlers.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/tallyapp/tally-server/internal/config"
	"github.com/tallyapp/tally-server/internal/service"
	"github.com/tallyapp/tally-server/internal/sse"
	"github.com/tallyapp/tally-server/internal/store"
)

// Services bundles the service dependencies handlers reach for.
type Services struct {
	Auth    *service.AuthService
	Rooms   *service.RoomService
	Items   *service.ItemService
	Invites *service.InviteService
	Profile *service.ProfileService
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store      *store.Store
	services   *Services
	sseHandler *sse.Handler
	router     *chi.Mux
	api        huma.API
	cfg        *config.Config
	logger     *slog.Logger
}

// NewServer creates an HTTP server with all routes configured.
func NewServer(st *store.Store, services *Services, sseHandler *sse.Handler, cfg *config.Config, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Compress(5))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(authMiddleware(services.Auth))

	humaConfig := huma.DefaultConfig("Tally API", "1.0.0")
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "PASETO",
		},
	}

	api := humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s := &Server{
		store:      st,
		services:   services,
		sseHandler: sseHandler,
		router:     router,
		api:        api,
		cfg:        cfg,
		logger:     logger,
	}

	s.registerHealthRoutes()
	s.registerAuthRoutes()
	s.registerRoomRoutes()
	s.registerItemRoutes()
	s.registerInviteRoutes()
	s.registerProfileRoutes()

	// Event stream and avatar bytes are served by chi directly; huma's
	// typed responses don't fit streaming or raw images.
	if sseHandler != nil {
		s.router.Get("/api/v1/events", sseHandler.ServeHTTP)
	}
	s.router.Get("/avatars/{id}", s.handleServeAvatar)

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
