package customers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/diewo77/sav-suite/internal/auth"
	"github.com/diewo77/sav-suite/internal/httpx"
)

type Handler struct {
	Svc *Service
	Log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{Svc: svc, Log: log}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, ErrProfileNotFound):
		httpx.JSONError(w, http.StatusNotFound, "profile_not_found", nil)
	case errors.Is(err, ErrDuplicate):
		httpx.JSONError(w, http.StatusConflict, "duplicate", nil)
	default:
		h.Log.Error("customers: unexpected error", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// --- Customers ---

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.ListCustomers(r.Context())
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
	c, err := h.Svc.CustomerByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	c, err := h.Svc.CustomerByUserID(r.Context(), claims.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	var c Customer
	if err := httpx.DecodeJSON(w, r, &c); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	c.UserID = claims.UserID
	if c.FirstName == "" || c.LastName == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed",
			map[string]string{"firstName": "required", "lastName": "required"})
		return
	}
	if err := h.Svc.Register(r.Context(), &c); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

// Update is allowed for staff, or for the owner of the profile.
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	claims, _ := auth.FromContext(r.Context())
	if claims.Role != auth.RoleResponsableSAV {
		existing, err := h.Svc.CustomerByID(r.Context(), id)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if existing.UserID != claims.UserID {
			httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
			return
		}
	}
	var c Customer
	if err := httpx.DecodeJSON(w, r, &c); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	updated, err := h.Svc.UpdateCustomer(r.Context(), id, &c)
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
	if err := h.Svc.DeleteCustomer(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MyClientID maps the caller's identity subject to their customer
// record id; the articles service uses it to scope "my" queries.
func (h *Handler) MyClientID(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	c, err := h.Svc.CustomerByUserID(r.Context(), claims.UserID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]uint{"clientId": c.ID})
}

func (h *Handler) ClientIDByUser(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	if userID == "" {
		httpx.JSONError(w, http.StatusBadRequest, "missing_user_id", nil)
		return
	}
	c, err := h.Svc.CustomerByUserID(r.Context(), userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]uint{"clientId": c.ID})
}

// --- Reclamations ---

func (h *Handler) CreateReclamation(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	var in CreateReclamationInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if in.ArticleID == 0 || in.Description == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed",
			map[string]string{"articleId": "required", "description": "required"})
		return
	}
	rec, err := h.Svc.CreateReclamation(r.Context(), claims.UserID, auth.TokenFromContext(r.Context()), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rec)
}

func (h *Handler) MyReclamations(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	out, err := h.Svc.MyReclamations(r.Context(), claims.UserID, auth.TokenFromContext(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) AllReclamations(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.AllReclamations(r.Context(), auth.TokenFromContext(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

// GetReclamation serves the raw record to its owner or to staff.
func (h *Handler) GetReclamation(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadOwnedReclamation(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

func (h *Handler) ReclamationDetails(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.loadOwnedReclamation(w, r)
	if !ok {
		return
	}
	details := h.Svc.ReclamationDetails(r.Context(), auth.TokenFromContext(r.Context()), rec)
	httpx.JSON(w, http.StatusOK, details)
}

// loadOwnedReclamation fetches the record and enforces the owner-or-
// staff rule shared by the read endpoints.
func (h *Handler) loadOwnedReclamation(w http.ResponseWriter, r *http.Request) (*Reclamation, bool) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return nil, false
	}
	rec, err := h.Svc.ReclamationByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return nil, false
	}
	claims, _ := auth.FromContext(r.Context())
	if claims.Role != auth.RoleResponsableSAV {
		if rec.Customer == nil || rec.Customer.UserID != claims.UserID {
			httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
			return nil, false
		}
	}
	return rec, true
}

func (h *Handler) UpdateReclamationStatus(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var req struct {
		Statut string `json:"statut"`
	}
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	status, err := ParseStatus(req.Statut)
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed",
			map[string]string{"statut": "valeurs possibles : EnAttente, Planifiée, EnCours, Terminée"})
		return
	}
	rec, err := h.Svc.UpdateStatus(r.Context(), id, status)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, rec)
}

// --- Dashboards ---

func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	st, err := h.Svc.Stats(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}

func (h *Handler) ClientStats(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	st, err := h.Svc.ClientStatsFor(r.Context(), claims.UserID, auth.TokenFromContext(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, st)
}
