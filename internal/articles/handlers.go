package articles

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/diewo77/sav-suite/internal/auth"
	"github.com/diewo77/sav-suite/internal/httpx"
	"github.com/diewo77/sav-suite/internal/lookup"
)

type Handler struct {
	Svc       *Service
	Customers *lookup.CustomerClient
	Log       *zap.Logger
}

func NewHandler(svc *Service, customers *lookup.CustomerClient, log *zap.Logger) *Handler {
	return &Handler{Svc: svc, Customers: customers, Log: log}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, ErrInvalidReference):
		httpx.JSONError(w, http.StatusBadRequest, "invalid_reference", nil)
	case errors.Is(err, ErrDuplicate):
		httpx.JSONError(w, http.StatusConflict, "duplicate", nil)
	case errors.Is(err, ErrArticleInUse):
		httpx.JSONError(w, http.StatusConflict, "article_in_use", nil)
	default:
		h.Log.Error("articles: unexpected error", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// --- Articles ---

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.ListArticles(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	a, err := h.Svc.ArticleByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) GetByReference(w http.ResponseWriter, r *http.Request) {
	a, err := h.Svc.ArticleByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func (h *Handler) ListByCategorie(w http.ResponseWriter, r *http.Request) {
	h.listByField(w, r, "categorie", chi.URLParam(r, "categorie"))
}

func (h *Handler) ListByType(w http.ResponseWriter, r *http.Request) {
	h.listByField(w, r, "type", chi.URLParam(r, "type"))
}

func (h *Handler) ListByMarque(w http.ResponseWriter, r *http.Request) {
	h.listByField(w, r, "marque", chi.URLParam(r, "marque"))
}

func (h *Handler) listByField(w http.ResponseWriter, r *http.Request, column, value string) {
	out, err := h.Svc.ArticlesByField(r.Context(), column, value)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.SearchArticles(r.Context(), chi.URLParam(r, "term"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var a Article
	if err := httpx.DecodeJSON(w, r, &a); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if details := validateArticle(&a); details != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", details)
		return
	}
	if err := h.Svc.CreateArticle(r.Context(), &a); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var a Article
	if err := httpx.DecodeJSON(w, r, &a); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if details := validateArticle(&a); details != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", details)
		return
	}
	updated, err := h.Svc.UpdateArticle(r.Context(), id, &a)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Svc.DeleteArticle(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) UpdateStock(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	a, err := h.Svc.UpdateStock(r.Context(), id, req.Quantity)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
}

func validateArticle(a *Article) map[string]string {
	details := map[string]string{}
	if a.Nom == "" {
		details["nom"] = "required"
	}
	if a.Reference == "" {
		details["reference"] = "required"
	}
	if a.Marque == "" {
		details["marque"] = "required"
	}
	if a.DureeGarantie < 0 {
		details["dureeGarantie"] = "must_be_positive"
	}
	if len(details) == 0 {
		return nil
	}
	return details
}

// --- Customer articles ---

func (h *Handler) ListCustomerArticles(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.ListCustomerArticles(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) GetCustomerArticle(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	ca, err := h.Svc.CustomerArticleByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ca)
}

func (h *Handler) ListCustomerArticlesByClient(w http.ResponseWriter, r *http.Request) {
	clientID, err := httpx.URLID(r, "clientId")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	out, err := h.Svc.CustomerArticlesByClient(r.Context(), clientID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) ListCustomerArticlesByClientAndArticle(w http.ResponseWriter, r *http.Request) {
	clientID, err := httpx.URLID(r, "clientId")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	articleID, err := httpx.URLID(r, "articleId")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	out, err := h.Svc.CustomerArticlesByClientAndArticle(r.Context(), clientID, articleID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) ListCustomerArticlesByArticle(w http.ResponseWriter, r *http.Request) {
	articleID, err := httpx.URLID(r, "articleId")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	out, err := h.Svc.CustomerArticlesByArticle(r.Context(), articleID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) GetCustomerArticleBySerial(w http.ResponseWriter, r *http.Request) {
	ca, err := h.Svc.CustomerArticleBySerial(r.Context(), chi.URLParam(r, "numeroSerie"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ca)
}

// ListUnderWarranty is open to staff, and to a client for their own
// records only; the caller's client id is resolved via the customers
// service.
func (h *Handler) ListUnderWarranty(w http.ResponseWriter, r *http.Request) {
	clientID, err := httpx.URLID(r, "clientId")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	claims, _ := auth.FromContext(r.Context())
	if claims.Role == auth.RoleClient {
		own, ok := h.Customers.MyClientID(r.Context(), auth.TokenFromContext(r.Context()))
		if !ok || own != clientID {
			httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
			return
		}
	}
	out, err := h.Svc.CustomerArticlesUnderWarranty(r.Context(), clientID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) CreateCustomerArticle(w http.ResponseWriter, r *http.Request) {
	var ca CustomerArticle
	if err := httpx.DecodeJSON(w, r, &ca); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if ca.ClientID == 0 || ca.ArticleID == 0 || ca.NumeroSerie == "" || ca.DateAchat.IsZero() {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed",
			map[string]string{"clientId": "required", "articleId": "required", "numeroSerie": "required", "dateAchat": "required"})
		return
	}
	if err := h.Svc.CreateCustomerArticle(r.Context(), &ca); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ca)
}

func (h *Handler) UpdateCustomerArticle(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var ca CustomerArticle
	if err := httpx.DecodeJSON(w, r, &ca); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	updated, err := h.Svc.UpdateCustomerArticle(r.Context(), id, &ca)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteCustomerArticle(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Svc.DeleteCustomerArticle(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) VerifyWarranty(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	active, err := h.Svc.VerifyWarranty(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"customerArticleId": id, "estSousGarantie": active})
}

// MyArticles feeds the reclamation form with the purchases owned by the
// logged-in customer.
func (h *Handler) MyArticles(w http.ResponseWriter, r *http.Request) {
	clientID, ok := h.Customers.MyClientID(r.Context(), auth.TokenFromContext(r.Context()))
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "profile_not_found", nil)
		return
	}
	out, err := h.Svc.MyArticles(r.Context(), clientID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}
