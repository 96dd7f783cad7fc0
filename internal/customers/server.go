package customers

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
	interventions := lookup.NewInterventionClient(cfg.InterventionsBaseURL, hc, log)

	svc := NewService(conn, log, articles, interventions)
	h := NewHandler(svc, log)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logging.RequestLogger(log))
	r.Use(auth.Middleware(cfg.JWTSecret))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	staff := auth.RequireRole(auth.RoleResponsableSAV)
	client := auth.RequireRole(auth.RoleClient)

	r.Route("/api/customers", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.With(staff).Get("/", h.List)
		r.With(client).Get("/me", h.Me)
		r.With(client).Get("/me/client-id", h.MyClientID)
		r.Get("/client-id", h.ClientIDByUser)
		r.Get("/{id}", h.Get)
		r.Post("/register", h.Register)
		r.Put("/{id}", h.Update)
		r.With(staff).Delete("/{id}", h.Delete)
	})

	r.Route("/api/reclamations", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Post("/", h.CreateReclamation)
		r.Get("/my", h.MyReclamations)
		r.With(staff).Get("/", h.AllReclamations)
		r.Get("/{id}", h.GetReclamation)
		r.Get("/{id}/details", h.ReclamationDetails)
		r.With(staff).Patch("/{id}/status", h.UpdateReclamationStatus)
	})

	r.Route("/api/dashboard", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.With(staff).Get("/reclamations/stats", h.Stats)
		r.Get("/client/stats", h.ClientStats)
	})

	return r
}

// Migrate creates the service schema.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(&Customer{}, &Reclamation{})
}
