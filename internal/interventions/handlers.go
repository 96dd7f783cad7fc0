package interventions

import (
	"errors"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/diewo77/sav-suite/internal/auth"
	"github.com/diewo77/sav-suite/internal/httpx"
	"github.com/diewo77/sav-suite/internal/lookup"
)

type Handler struct {
	Svc       *Service
	Articles  *lookup.ArticleClient
	Customers *lookup.CustomerClient
	Log       *zap.Logger
}

func NewHandler(svc *Service, articles *lookup.ArticleClient, customers *lookup.CustomerClient, log *zap.Logger) *Handler {
	return &Handler{Svc: svc, Articles: articles, Customers: customers, Log: log}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		httpx.JSONError(w, http.StatusNotFound, "not_found", nil)
	case errors.Is(err, ErrPartNotFound):
		httpx.JSONError(w, http.StatusNotFound, "part_not_found", nil)
	default:
		h.Log.Error("interventions: unexpected error", zap.Error(err))
		httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
	}
}

// --- Interventions ---

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	ivs, err := h.Svc.List(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.buildViews(r, ivs))
}

// buildViews stitches display names in from the sibling services,
// degrading to placeholders on any lookup failure.
func (h *Handler) buildViews(r *http.Request, ivs []Intervention) []InterventionView {
	token := auth.TokenFromContext(r.Context())
	out := make([]InterventionView, 0, len(ivs))
	for _, iv := range ivs {
		v := InterventionView{
			ID:              iv.ID,
			ReclamationID:   iv.ReclamationID,
			ClientID:        iv.ClientID,
			ClientNom:       lookup.ClientPlaceholder(iv.ClientID),
			ArticleID:       iv.ArticleID,
			ArticleNom:      lookup.UnknownArticle,
			EstSousGarantie: iv.EstSousGarantie,
			TechnicienNom:   iv.TechnicienNom,
			Statut:          iv.Statut,
			DateCreation:    iv.DateCreation,
		}
		if v.TechnicienNom == "" {
			v.TechnicienNom = lookup.UnassignedTechnician
		}
		if c, ok := h.Customers.Customer(r.Context(), token, iv.ClientID); ok && c.FullName() != "" {
			v.ClientNom = c.FullName()
		}
		if a, ok := h.Articles.Article(r.Context(), token, iv.ArticleID); ok {
			v.ArticleNom = a.DisplayName()
		}
		out = append(out, v)
	}
	return out
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	iv, err := h.Svc.ByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, iv)
}

func (h *Handler) Details(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	iv, err := h.Svc.ByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	token := auth.TokenFromContext(r.Context())
	d := InterventionDetails{
		Intervention:    *iv,
		ClientNom:       lookup.ClientPlaceholder(iv.ClientID),
		ClientAddress:   lookup.UnknownAddress,
		ClientTelephone: "-",
		ArticleNom:      lookup.UnknownArticle,
	}
	if c, ok := h.Customers.Customer(r.Context(), token, iv.ClientID); ok {
		if c.FullName() != "" {
			d.ClientNom = c.FullName()
		}
		if c.Address != "" {
			d.ClientAddress = c.Address
		}
		if c.Phone != "" {
			d.ClientTelephone = c.Phone
		}
	}
	if a, ok := h.Articles.Article(r.Context(), token, iv.ArticleID); ok {
		d.ArticleNom = a.DisplayName()
	}
	httpx.JSON(w, http.StatusOK, d)
}

func (h *Handler) ByClient(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "clientId")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	ivs, err := h.Svc.ByClient(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ivs)
}

// My lists the caller's own interventions, resolving their client id
// through the customers service.
func (h *Handler) My(w http.ResponseWriter, r *http.Request) {
	token := auth.TokenFromContext(r.Context())
	clientID, ok := h.Customers.MyClientID(r.Context(), token)
	if !ok {
		httpx.JSONError(w, http.StatusNotFound, "profile_not_found", nil)
		return
	}
	ivs, err := h.Svc.ByClient(r.Context(), clientID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ivs)
}

func (h *Handler) ByReclamation(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "reclamationId")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	ivs, err := h.Svc.ByReclamation(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ivs)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var iv Intervention
	if err := httpx.DecodeJSON(w, r, &iv); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if iv.ReclamationID == 0 || iv.ClientID == 0 || iv.ArticleID == 0 || iv.Description == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed", map[string]string{
			"reclamationId": "required", "clientId": "required",
			"articleId": "required", "description": "required",
		})
		return
	}
	if err := h.Svc.Create(r.Context(), &iv); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, iv)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var in Intervention
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	iv, err := h.Svc.Update(r.Context(), id, &in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, iv)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
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
	switch req.Statut {
	case StatutPlanifiee, StatutEnCours, StatutTerminee, StatutAnnulee:
	default:
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed",
			map[string]string{"statut": "valeurs possibles : Planifiée, EnCours, Terminée, Annulée"})
		return
	}
	iv, err := h.Svc.UpdateStatus(r.Context(), id, req.Statut)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, iv)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) Close(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var in CloseInput
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	iv, inv, err := h.Svc.Close(r.Context(), id, in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"intervention": iv,
		"facture":      inv,
	})
}

func (h *Handler) TotalCost(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	total, err := h.Svc.TotalCost(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]decimal.Decimal{"montantTotal": total})
}

// --- Parts ---

func (h *Handler) ListParts(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	parts, err := h.Svc.Parts(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, parts)
}

func (h *Handler) AddPart(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var p InterventionPart
	if err := httpx.DecodeJSON(w, r, &p); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if p.NomPiece == "" || p.Quantite <= 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed",
			map[string]string{"nomPiece": "required", "quantite": "must be positive"})
		return
	}
	iv, err := h.Svc.AddPart(r.Context(), id, &p)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, iv)
}

// UpsertPart adds the line when the body carries no id, updates it
// otherwise.
func (h *Handler) UpsertPart(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var p InterventionPart
	if err := httpx.DecodeJSON(w, r, &p); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if p.NomPiece == "" || p.Quantite <= 0 {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed",
			map[string]string{"nomPiece": "required", "quantite": "must be positive"})
		return
	}
	var iv *Intervention
	if p.ID == 0 {
		iv, err = h.Svc.AddPart(r.Context(), id, &p)
	} else {
		iv, err = h.Svc.UpdatePart(r.Context(), id, p.ID, &p)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, iv)
}

func (h *Handler) RemovePart(w http.ResponseWriter, r *http.Request) {
	partID, err := httpx.URLID(r, "partId")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	iv, err := h.Svc.RemovePart(r.Context(), partID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, iv)
}

// --- Techniciens ---

func (h *Handler) ListTechniciens(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.ListTechniciens(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) GetTechnicien(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	t, err := h.Svc.TechnicienByID(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) CreateTechnicien(w http.ResponseWriter, r *http.Request) {
	var t Technicien
	if err := httpx.DecodeJSON(w, r, &t); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	if t.Nom == "" || t.Prenom == "" {
		httpx.JSONError(w, http.StatusBadRequest, "validation_failed",
			map[string]string{"nom": "required", "prenom": "required"})
		return
	}
	if err := h.Svc.CreateTechnicien(r.Context(), &t); err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, t)
}

func (h *Handler) UpdateTechnicien(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var in Technicien
	if err := httpx.DecodeJSON(w, r, &in); err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_json", nil)
		return
	}
	t, err := h.Svc.UpdateTechnicien(r.Context(), id, &in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, t)
}

func (h *Handler) DeleteTechnicien(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.URLID(r, "id")
	if err != nil {
		httpx.JSONError(w, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	if err := h.Svc.DeleteTechnicien(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Dashboard ---

// Today serves the daily planning rows with client contact data stitched
// in from the customers service.
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	ivs, err := h.Svc.Today(r.Context(), time.Now())
	if err != nil {
		h.writeError(w, err)
		return
	}
	token := auth.TokenFromContext(r.Context())
	out := make([]TodayIntervention, 0, len(ivs))
	for _, iv := range ivs {
		row := TodayIntervention{
			ID:         iv.ID,
			Heure:      iv.DateIntervention.Format("15:04"),
			Technicien: iv.TechnicienNom,
			Client:     lookup.ClientPlaceholder(iv.ClientID),
			Adresse:    lookup.UnknownAddress,
			Telephone:  "-",
			Statut:     iv.Statut,
		}
		if row.Technicien == "" {
			row.Technicien = lookup.UnassignedTechnician
		}
		if c, ok := h.Customers.Customer(r.Context(), token, iv.ClientID); ok {
			if c.FullName() != "" {
				row.Client = c.FullName()
			}
			if c.Address != "" {
				row.Adresse = c.Address
			}
			if c.Phone != "" {
				row.Telephone = c.Phone
			}
		}
		out = append(out, row)
	}
	httpx.JSON(w, http.StatusOK, out)
}
