package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/mermaid-studio/engine/internal/api/handlers"
	mw "github.com/mermaid-studio/engine/internal/api/middleware"
)

type Dependencies struct {
	Tokens          mw.TokenParser
	CORSOrigins     []string
	RateLimitRPS    float64
	RateLimitBurst  int
	AuthHandler     *handlers.AuthHandler
	DiagramsHandler *handlers.DiagramsHandler
	SharingHandler  *handlers.SharingHandler
	LabelsHandler   *handlers.LabelsHandler
	StreamHandler   *handlers.StreamHandler
	HealthHandler   *handlers.HealthHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS(dep.CORSOrigins))
	r.Use(mw.RateLimit(dep.RateLimitRPS, dep.RateLimitBurst))
	r.Use(chimid.Compress(5))

	hh := dep.HealthHandler
	if hh == nil {
		hh = handlers.NewHealthHandler(nil)
	}
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)

	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/docs/doc.json")))

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", dep.AuthHandler.Register)
			ar.Post("/login", dep.AuthHandler.Login)
		})

		api.Group(func(protected chi.Router) {
			protected.Use(mw.Auth(dep.Tokens))

			protected.Route("/diagrams", func(dr chi.Router) {
				dr.Get("/", dep.DiagramsHandler.List)
				dr.Post("/", dep.DiagramsHandler.Create)
				// Static segments must precede /{id}.
				dr.Get("/search", dep.DiagramsHandler.Search)
				dr.Get("/stats", dep.DiagramsHandler.Stats)

				dr.Route("/{id}", func(ir chi.Router) {
					ir.Get("/", dep.DiagramsHandler.Get)
					ir.Put("/", dep.DiagramsHandler.Update)
					ir.Delete("/", dep.DiagramsHandler.Delete)
					ir.Put("/content", dep.DiagramsHandler.UpdateContent)
					ir.Post("/duplicate", dep.DiagramsHandler.Duplicate)
					ir.Get("/export", dep.DiagramsHandler.Export)
					ir.Put("/public", dep.SharingHandler.SetPublic)
					ir.Post("/share", dep.SharingHandler.Share)
					ir.Put("/shares/{user_id}", dep.SharingHandler.Grant)
					ir.Delete("/shares/{user_id}", dep.SharingHandler.Revoke)
					if dep.StreamHandler != nil {
						ir.Get("/events", dep.StreamHandler.Events)
					}
				})
			})

			protected.Route("/categories", func(cr chi.Router) {
				cr.Get("/", dep.LabelsHandler.ListCategories)
				cr.Post("/", dep.LabelsHandler.CreateCategory)
				cr.With(mw.RequireAdmin).Put("/{id}", dep.LabelsHandler.UpdateCategory)
				cr.With(mw.RequireAdmin).Delete("/{id}", dep.LabelsHandler.DeleteCategory)
			})

			protected.Route("/tags", func(tr chi.Router) {
				tr.Get("/", dep.LabelsHandler.ListTags)
				tr.Post("/", dep.LabelsHandler.CreateTag)
				tr.With(mw.RequireAdmin).Put("/{id}", dep.LabelsHandler.UpdateTag)
				tr.With(mw.RequireAdmin).Delete("/{id}", dep.LabelsHandler.DeleteTag)
			})
		})
	})

	return r
}
