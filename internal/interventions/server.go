package interventions

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/sav-suite/internal/auth"
	"github.com/diewo77/sav-suite/internal/config"
	"github.com/diewo77/sav-suite/internal/httpx"
	"github.com/diewo77/sav-suite/internal/logging"
	"github.com/diewo77/sav-suite/internal/lookup"
)

func NewRouter(conn *gorm.DB, log *zap.Logger, cfg config.Config) http.Handler {
	hc := lookup.NewHTTPClient(cfg.LookupTimeout)
	articles := lookup.NewArticleClient(cfg.ArticlesBaseURL, hc, log)
	customers := lookup.NewCustomerClient(cfg.CustomersBaseURL, hc, log)

	svc := NewService(conn, log, cfg)
	h := NewHandler(svc, articles, customers, log)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logging.RequestLogger(log))
	r.Use(auth.Middleware(cfg.JWTSecret))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	staff := auth.RequireRole(auth.RoleResponsableSAV)
	client := auth.RequireRole(auth.RoleClient)

	r.Route("/api/interventions", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.With(staff).Get("/", h.List)
		r.With(client).Get("/my", h.My)
		r.Get("/by-reclamation/{reclamationId}", h.ByReclamation)
		r.With(staff).Get("/client/{clientId}", h.ByClient)
		r.Get("/{id}", h.Get)
		r.Get("/{id}/details", h.Details)
		r.Get("/{id}/total-cost", h.TotalCost)
		r.With(staff).Post("/", h.Create)
		r.With(staff).Put("/{id}", h.Update)
		r.With(staff).Patch("/{id}/status", h.UpdateStatus)
		r.With(staff).Put("/{id}/close", h.Close)
		r.With(staff).Delete("/{id}", h.Delete)

		r.Get("/{id}/parts", h.ListParts)
		r.With(staff).Post("/{id}/parts", h.AddPart)
		r.With(staff).Put("/{id}/parts", h.UpsertPart)
		r.With(staff).Delete("/parts/{partId}", h.RemovePart)
	})

	r.Route("/api/techniciens", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Get("/", h.ListTechniciens)
		r.Get("/{id}", h.GetTechnicien)
		r.With(staff).Post("/", h.CreateTechnicien)
		r.With(staff).Put("/{id}", h.UpdateTechnicien)
		r.With(staff).Delete("/{id}", h.DeleteTechnicien)
	})

	r.Route("/api/dashboard", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.With(staff).Get("/interventions/today", h.Today)
	})

	return r
}

// Migrate creates the service schema.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(&Intervention{}, &InterventionPart{}, &Technicien{})
}
