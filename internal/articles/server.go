package articles

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

// NewRouter assembles the articles service routes. Serial and warranty
// verification stay public; catalog writes are staff-only.
func NewRouter(conn *gorm.DB, log *zap.Logger, cfg config.Config) http.Handler {
	hc := lookup.NewHTTPClient(cfg.LookupTimeout)
	customers := lookup.NewCustomerClient(cfg.CustomersBaseURL, hc, log)

	svc := NewService(conn, log, cfg.StockClampAtZero)
	h := NewHandler(svc, customers, log)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(logging.RequestLogger(log))
	r.Use(auth.Middleware(cfg.JWTSecret))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	staff := auth.RequireRole(auth.RoleResponsableSAV)

	r.Route("/api/articles", func(r chi.Router) {
		r.Use(auth.RequireAuth)
		r.Get("/", h.List)
		r.Get("/{id}", h.Get)
		r.Get("/reference/{reference}", h.GetByReference)
		r.Get("/categorie/{categorie}", h.ListByCategorie)
		r.Get("/type/{type}", h.ListByType)
		r.Get("/marque/{marque}", h.ListByMarque)
		r.Get("/search/{term}", h.Search)

		r.With(staff).Post("/", h.Create)
		r.With(staff).Put("/{id}", h.Update)
		r.With(staff).Delete("/{id}", h.Delete)
		r.With(staff).Patch("/{id}/stock", h.UpdateStock)
	})

	r.Route("/api/customer-articles", func(r chi.Router) {
		// public, used from the warranty check widget
		r.Get("/serial/{numeroSerie}", h.GetCustomerArticleBySerial)
		r.Get("/{id}/verifier-garantie", h.VerifyWarranty)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Get("/{id}", h.GetCustomerArticle)
			r.Get("/client/{clientId}/article/{articleId}", h.ListCustomerArticlesByClientAndArticle)
			r.With(auth.RequireRole(auth.RoleResponsableSAV, auth.RoleClient)).
				Get("/client/{clientId}/sous-garantie", h.ListUnderWarranty)
			r.With(auth.RequireRole(auth.RoleClient)).Get("/my", h.MyArticles)

			r.With(staff).Get("/", h.ListCustomerArticles)
			r.With(staff).Get("/client/{clientId}", h.ListCustomerArticlesByClient)
			r.With(staff).Get("/article/{articleId}", h.ListCustomerArticlesByArticle)
			r.With(staff).Post("/", h.CreateCustomerArticle)
			r.With(staff).Put("/{id}", h.UpdateCustomerArticle)
			r.With(staff).Delete("/{id}", h.DeleteCustomerArticle)
		})
	})

	return r
}

// Migrate creates the service schema.
func Migrate(conn *gorm.DB) error {
	return conn.AutoMigrate(&Article{}, &CustomerArticle{})
}
