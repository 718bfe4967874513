package server

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/faciam-dev/gcform/internal/api/handler"
	"github.com/faciam-dev/gcform/internal/server/middleware"
	"github.com/faciam-dev/gcform/internal/service"
)

// New builds the form API around svc.
func New(svc *service.Service, cfg Config) huma.API {
	r := chi.NewRouter()
	origins := cfg.Origins
	if len(origins) == 0 {
		origins = allowedOrigins()
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Location"},
		AllowCredentials: true,
	}))

	api := humachi.New(r, huma.DefaultConfig("Form API", "1.0.0"))
	setupMetrics(api, r)

	h := &handler.FormHandler{Service: svc}
	// Public operations are registered before the token middleware so that
	// they stay reachable without a token.
	handler.RegisterPublic(api, h, cfg.Tokens)
	api.UseMiddleware(middleware.Authenticate(api, cfg.Tokens, true))
	handler.Register(api, h)
	return api
}
