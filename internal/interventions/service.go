package interventions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/sav-suite/internal/config"
)

var (
	ErrNotFound     = errors.New("intervention: not found")
	ErrPartNotFound = errors.New("intervention: part not found")
)

// Service owns interventions, their part lines and the technician
// directory. Part and total mutations on one intervention are
// serialised through a per-id lock so concurrent edits cannot interleave
// between the recompute and the save.
type Service struct {
	db  *gorm.DB
	log *zap.Logger
	cfg config.Config

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func NewService(db *gorm.DB, log *zap.Logger, cfg config.Config) *Service {
	return &Service{db: db, log: log, cfg: cfg, locks: make(map[uint]*sync.Mutex)}
}

func (s *Service) lock(id uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// --- Billing ---

// laborCost is duration (hours) × hourly rate, rounded to the cent.
func laborCost(duration, rate decimal.Decimal) decimal.Decimal {
	return duration.Mul(rate).Round(2)
}

// SimpleTotal is the running total shown while the job is open: free
// under warranty, otherwise parts plus labor. Travel and VAT only enter
// at close time.
func SimpleTotal(underWarranty bool, parts, labor decimal.Decimal) decimal.Decimal {
	if underWarranty {
		return decimal.Zero
	}
	return parts.Add(labor).Round(2)
}

// Invoice is the closing bill: (parts + labor + travel) × (1 + VAT).
type Invoice struct {
	MontantPieces     decimal.Decimal `json:"montantPieces"`
	MontantMainOeuvre decimal.Decimal `json:"montantMainOeuvre"`
	Deplacement       decimal.Decimal `json:"deplacement"`
	SousTotal         decimal.Decimal `json:"sousTotal"`
	TVA               decimal.Decimal `json:"tva"`
	Total             decimal.Decimal `json:"total"`
}

// ComputeInvoice applies the full bill regardless of the warranty flag;
// warranty only zeroes the running total, never the closing invoice.
func ComputeInvoice(parts, labor, travel, vatRate decimal.Decimal) Invoice {
	sub := parts.Add(labor).Add(travel).Round(2)
	vat := sub.Mul(vatRate).Round(2)
	return Invoice{
		MontantPieces:     parts.Round(2),
		MontantMainOeuvre: labor,
		Deplacement:       travel.Round(2),
		SousTotal:         sub,
		TVA:               vat,
		Total:             sub.Add(vat).Round(2),
	}
}

// partsTotal sums the part lines of an intervention inside tx.
func partsTotal(tx *gorm.DB, interventionID uint) (decimal.Decimal, error) {
	var parts []InterventionPart
	if err := tx.Where("intervention_id = ?", interventionID).Find(&parts).Error; err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, p := range parts {
		total = total.Add(p.PrixTotal)
	}
	return total, nil
}

// recomputeTotal refreshes labor and the running total of an open
// intervention inside tx.
func recomputeTotal(tx *gorm.DB, iv *Intervention) error {
	parts, err := partsTotal(tx, iv.ID)
	if err != nil {
		return err
	}
	iv.MontantMainOeuvre = laborCost(iv.DureeIntervention, iv.TarifHoraire)
	iv.MontantTotal = SimpleTotal(iv.EstSousGarantie, parts, iv.MontantMainOeuvre)
	now := time.Now()
	iv.DateMiseAJour = &now
	return tx.Save(iv).Error
}

// --- Interventions ---

func (s *Service) List(ctx context.Context) ([]Intervention, error) {
	var out []Intervention
	err := s.db.WithContext(ctx).Preload("Pieces").Order("date_creation DESC").Find(&out).Error
	return out, err
}

func (s *Service) ByID(ctx context.Context, id uint) (*Intervention, error) {
	var iv Intervention
	err := s.db.WithContext(ctx).Preload("Pieces").First(&iv, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &iv, err
}

func (s *Service) ByClient(ctx context.Context, clientID uint) ([]Intervention, error) {
	var out []Intervention
	err := s.db.WithContext(ctx).Preload("Pieces").
		Where("client_id = ?", clientID).Order("date_creation DESC").Find(&out).Error
	return out, err
}

// ByReclamation lists newest-first so callers can take the head as the
// latest intervention.
func (s *Service) ByReclamation(ctx context.Context, reclamationID uint) ([]Intervention, error) {
	var out []Intervention
	err := s.db.WithContext(ctx).Preload("Pieces").
		Where("reclamation_id = ?", reclamationID).Order("date_creation DESC").Find(&out).Error
	return out, err
}

// Today lists interventions scheduled on the given calendar day.
func (s *Service) Today(ctx context.Context, day time.Time) ([]Intervention, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)
	var out []Intervention
	err := s.db.WithContext(ctx).
		Where("date_intervention >= ? AND date_intervention < ?", start, end).
		Order("date_intervention").Find(&out).Error
	return out, err
}

// Create fills billing defaults for omitted rates and computes the
// initial labor and running total.
func (s *Service) Create(ctx context.Context, iv *Intervention) error {
	if iv.Statut == "" {
		iv.Statut = StatutPlanifiee
	}
	if iv.TarifHoraire.IsZero() {
		iv.TarifHoraire = s.cfg.HourlyRateDefault
	}
	if iv.MontantDeplacement.IsZero() {
		iv.MontantDeplacement = s.cfg.TravelAmountDefault
	}
	if iv.TauxTVA.IsZero() {
		iv.TauxTVA = s.cfg.VATRateDefault
	}
	iv.MontantMainOeuvre = laborCost(iv.DureeIntervention, iv.TarifHoraire)
	iv.MontantTotal = SimpleTotal(iv.EstSousGarantie, decimal.Zero, iv.MontantMainOeuvre)
	iv.DateCreation = time.Now()

	if err := s.db.WithContext(ctx).Create(iv).Error; err != nil {
		return err
	}
	s.log.Info("intervention créée",
		zap.Uint("id", iv.ID), zap.Uint("reclamationId", iv.ReclamationID), zap.Uint("clientId", iv.ClientID))
	return nil
}

// Update rewrites the editable fields and recomputes the running total.
// Money already settled at close is not touched here; closing again is
// the only way to re-bill.
func (s *Service) Update(ctx context.Context, id uint, in *Intervention) (*Intervention, error) {
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	var iv Intervention
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&iv, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		iv.Description = in.Description
		iv.DateIntervention = in.DateIntervention
		iv.TechnicienNom = in.TechnicienNom
		iv.EstSousGarantie = in.EstSousGarantie
		iv.DureeIntervention = in.DureeIntervention
		if !in.TarifHoraire.IsZero() {
			iv.TarifHoraire = in.TarifHoraire
		}
		if !in.MontantDeplacement.IsZero() {
			iv.MontantDeplacement = in.MontantDeplacement
		}
		if !in.TauxTVA.IsZero() {
			iv.TauxTVA = in.TauxTVA
		}
		iv.Commentaire = in.Commentaire
		return recomputeTotal(tx, &iv)
	})
	if err != nil {
		return nil, err
	}
	return &iv, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uint, statut string) (*Intervention, error) {
	var iv Intervention
	if err := s.db.WithContext(ctx).First(&iv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	iv.Statut = statut
	now := time.Now()
	iv.DateMiseAJour = &now
	if err := s.db.WithContext(ctx).Save(&iv).Error; err != nil {
		return nil, err
	}
	s.log.Info("statut intervention mis à jour", zap.Uint("id", id), zap.String("statut", statut))
	return &iv, nil
}

// Delete removes the intervention and its part lines in one
// transaction.
func (s *Service) Delete(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var iv Intervention
		if err := tx.First(&iv, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Where("intervention_id = ?", id).Delete(&InterventionPart{}).Error; err != nil {
			return err
		}
		return tx.Delete(&iv).Error
	})
}

// CloseInput carries the final billing figures of a close request. The
// duration is usually only known at close time; zero-valued rates fall
// back to what the row holds, then to the configured defaults.
type CloseInput struct {
	DureeIntervention  decimal.Decimal `json:"dureeIntervention"`
	TarifHoraire       decimal.Decimal `json:"tarifHoraire"`
	MontantDeplacement decimal.Decimal `json:"montantDeplacement"`
	TauxTVA            decimal.Decimal `json:"tauxTVA"`
	ModePaiement       string          `json:"modePaiement"`
	StatutPaiement     string          `json:"statutPaiement"`
	Commentaire        string          `json:"commentaire"`
}

// Close applies the request figures to the row, settles the bill and
// marks the job Terminée. The invoice applies travel and VAT on top of
// parts and labor whatever the warranty flag says; warranty only
// affects the running total of an open job.
func (s *Service) Close(ctx context.Context, id uint, in CloseInput) (*Intervention, Invoice, error) {
	l := s.lock(id)
	l.Lock()
	defer l.Unlock()

	var iv Intervention
	var inv Invoice
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&iv, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		if !in.DureeIntervention.IsZero() {
			iv.DureeIntervention = in.DureeIntervention
		}
		if !in.TarifHoraire.IsZero() {
			iv.TarifHoraire = in.TarifHoraire
		}
		if iv.TarifHoraire.IsZero() {
			iv.TarifHoraire = s.cfg.HourlyRateDefault
		}
		if !in.MontantDeplacement.IsZero() {
			iv.MontantDeplacement = in.MontantDeplacement
		}
		if iv.MontantDeplacement.IsZero() {
			iv.MontantDeplacement = s.cfg.TravelAmountDefault
		}
		if !in.TauxTVA.IsZero() {
			iv.TauxTVA = in.TauxTVA
		}
		if iv.TauxTVA.IsZero() {
			iv.TauxTVA = s.cfg.VATRateDefault
		}

		parts, err := partsTotal(tx, id)
		if err != nil {
			return err
		}
		labor := laborCost(iv.DureeIntervention, iv.TarifHoraire)
		inv = ComputeInvoice(parts, labor, iv.MontantDeplacement, iv.TauxTVA)

		now := time.Now()
		iv.Statut = StatutTerminee
		iv.MontantMainOeuvre = inv.MontantMainOeuvre
		iv.MontantTotal = inv.Total
		iv.ModePaiement = in.ModePaiement
		iv.StatutPaiement = in.StatutPaiement
		if iv.StatutPaiement == "" {
			iv.StatutPaiement = "Payé"
		}
		if in.Commentaire != "" {
			iv.Commentaire = in.Commentaire
		}
		iv.DateMiseAJour = &now
		return tx.Save(&iv).Error
	})
	if err != nil {
		return nil, Invoice{}, err
	}
	s.log.Info("intervention clôturée",
		zap.Uint("id", id), zap.String("total", inv.Total.String()), zap.String("modePaiement", in.ModePaiement))
	return &iv, inv, nil
}

// TotalCost recomputes the running total from current rows without
// persisting anything.
func (s *Service) TotalCost(ctx context.Context, id uint) (decimal.Decimal, error) {
	var iv Intervention
	if err := s.db.WithContext(ctx).First(&iv, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return decimal.Zero, ErrNotFound
		}
		return decimal.Zero, err
	}
	parts, err := partsTotal(s.db.WithContext(ctx), id)
	if err != nil {
		return decimal.Zero, err
	}
	labor := laborCost(iv.DureeIntervention, iv.TarifHoraire)
	return SimpleTotal(iv.EstSousGarantie, parts, labor), nil
}

// --- Parts ---

func (s *Service) Parts(ctx context.Context, interventionID uint) ([]InterventionPart, error) {
	var out []InterventionPart
	err := s.db.WithContext(ctx).Where("intervention_id = ?", interventionID).Order("id").Find(&out).Error
	return out, err
}

// AddPart appends a part line and refreshes the running total in one
// transaction.
func (s *Service) AddPart(ctx context.Context, interventionID uint, p *InterventionPart) (*Intervention, error) {
	l := s.lock(interventionID)
	l.Lock()
	defer l.Unlock()

	var iv Intervention
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&iv, interventionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		p.InterventionID = interventionID
		p.PrixTotal = p.PrixUnitaire.Mul(decimal.NewFromInt(int64(p.Quantite))).Round(2)
		if err := tx.Create(p).Error; err != nil {
			return err
		}
		return recomputeTotal(tx, &iv)
	})
	if err != nil {
		return nil, err
	}
	return &iv, nil
}

// UpdatePart rewrites a part line and refreshes the running total.
func (s *Service) UpdatePart(ctx context.Context, interventionID, partID uint, in *InterventionPart) (*Intervention, error) {
	l := s.lock(interventionID)
	l.Lock()
	defer l.Unlock()

	var iv Intervention
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&iv, interventionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		var p InterventionPart
		if err := tx.Where("id = ? AND intervention_id = ?", partID, interventionID).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPartNotFound
			}
			return err
		}
		p.NomPiece = in.NomPiece
		p.Reference = in.Reference
		p.Quantite = in.Quantite
		p.PrixUnitaire = in.PrixUnitaire
		p.Description = in.Description
		p.PrixTotal = p.PrixUnitaire.Mul(decimal.NewFromInt(int64(p.Quantite))).Round(2)
		if err := tx.Save(&p).Error; err != nil {
			return err
		}
		return recomputeTotal(tx, &iv)
	})
	if err != nil {
		return nil, err
	}
	return &iv, nil
}

// RemovePart deletes a part line by its own id; the owning intervention
// is resolved from the row so the total can be refreshed.
func (s *Service) RemovePart(ctx context.Context, partID uint) (*Intervention, error) {
	var p InterventionPart
	if err := s.db.WithContext(ctx).First(&p, partID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPartNotFound
		}
		return nil, err
	}

	l := s.lock(p.InterventionID)
	l.Lock()
	defer l.Unlock()

	var iv Intervention
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&iv, p.InterventionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		if err := tx.Delete(&InterventionPart{}, partID).Error; err != nil {
			return err
		}
		return recomputeTotal(tx, &iv)
	})
	if err != nil {
		return nil, err
	}
	return &iv, nil
}

// --- Techniciens ---

func (s *Service) ListTechniciens(ctx context.Context) ([]Technicien, error) {
	var out []Technicien
	err := s.db.WithContext(ctx).Order("nom, prenom").Find(&out).Error
	return out, err
}

func (s *Service) TechnicienByID(ctx context.Context, id uint) (*Technicien, error) {
	var t Technicien
	err := s.db.WithContext(ctx).First(&t, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &t, err
}

func (s *Service) CreateTechnicien(ctx context.Context, t *Technicien) error {
	return s.db.WithContext(ctx).Create(t).Error
}

func (s *Service) UpdateTechnicien(ctx context.Context, id uint, in *Technicien) (*Technicien, error) {
	var t Technicien
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	t.Nom = in.Nom
	t.Prenom = in.Prenom
	t.Telephone = in.Telephone
	t.Specialite = in.Specialite
	if err := s.db.WithContext(ctx).Save(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Service) DeleteTechnicien(ctx context.Context, id uint) error {
	var t Technicien
	if err := s.db.WithContext(ctx).First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.db.WithContext(ctx).Delete(&t).Error
}
