package customers

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/sav-suite/internal/lookup"
)

var (
	ErrNotFound        = errors.New("customers: not found")
	ErrProfileNotFound = errors.New("customers: profile not found")
	ErrDuplicate       = errors.New("customers: profile already exists")
)

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	articles      *lookup.ArticleClient
	interventions *lookup.InterventionClient
}

func NewService(db *gorm.DB, log *zap.Logger, articles *lookup.ArticleClient, interventions *lookup.InterventionClient) *Service {
	return &Service{db: db, log: log, articles: articles, interventions: interventions}
}

// --- Customers ---

func (s *Service) ListCustomers(ctx context.Context) ([]Customer, error) {
	var out []Customer
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&out).Error
	return out, err
}

func (s *Service) CustomerByID(ctx context.Context, id uint) (*Customer, error) {
	var c Customer
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &c, err
}

func (s *Service) CustomerByUserID(ctx context.Context, userID string) (*Customer, error) {
	var c Customer
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrProfileNotFound
	}
	return &c, err
}

// Register creates the profile for an identity subject. One profile per
// subject.
func (s *Service) Register(ctx context.Context, c *Customer) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Customer{}).Where("user_id = ?", c.UserID).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}
	c.CreatedAt = time.Now()
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return err
	}
	s.log.Info("profil client créé", zap.Uint("id", c.ID))
	return nil
}

func (s *Service) UpdateCustomer(ctx context.Context, id uint, in *Customer) (*Customer, error) {
	var existing Customer
	if err := s.db.WithContext(ctx).First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	existing.FirstName = in.FirstName
	existing.LastName = in.LastName
	existing.Phone = in.Phone
	existing.Address = in.Address
	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

func (s *Service) DeleteCustomer(ctx context.Context, id uint) error {
	var c Customer
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("customer_id = ?", id).Delete(&Reclamation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&c).Error
	})
}

// --- Reclamations ---

type CreateReclamationInput struct {
	ArticleID               uint       `json:"articleId"`
	ProblemType             string     `json:"problemType"`
	Description             string     `json:"description"`
	DesiredInterventionDate *time.Time `json:"desiredInterventionDate"`
}

// CreateReclamation requires an existing profile for the acting
// identity. The serial number lookup is deliberately best-effort: a
// failed or empty lookup stores "" rather than failing the creation.
func (s *Service) CreateReclamation(ctx context.Context, userID, token string, in CreateReclamationInput) (*Reclamation, error) {
	customer, err := s.CustomerByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	serial := ""
	if sn, ok := s.articles.SerialNumber(ctx, token, customer.ID, in.ArticleID); ok {
		serial = sn
	}

	rec := &Reclamation{
		CustomerID:              customer.ID,
		ArticleID:               in.ArticleID,
		SerialNumber:            serial,
		ProblemType:             in.ProblemType,
		Description:             in.Description,
		DesiredInterventionDate: in.DesiredInterventionDate,
		Status:                  StatusEnAttente,
		CreatedAt:               time.Now().UTC(),
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, err
	}
	s.log.Info("réclamation créée", zap.Uint("id", rec.ID), zap.Uint("customerId", customer.ID))
	return rec, nil
}

func (s *Service) ReclamationByID(ctx context.Context, id uint) (*Reclamation, error) {
	var rec Reclamation
	err := s.db.WithContext(ctx).Preload("Customer").First(&rec, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &rec, err
}

// UpdateStatus sets the status directly. Entering Terminée stamps
// resolved-at; leaving it clears resolved-at; every change stamps
// processed-at. Out-of-convention transitions are allowed but logged;
// the historical behaviour is permissive.
func (s *Service) UpdateStatus(ctx context.Context, id uint, newStatus Status) (*Reclamation, error) {
	var rec Reclamation
	if err := s.db.WithContext(ctx).First(&rec, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if rec.Status != newStatus && !CanTransition(rec.Status, newStatus) {
		s.log.Warn("transition hors convention",
			zap.Uint("id", id),
			zap.String("from", string(rec.Status)),
			zap.String("to", string(newStatus)))
	}

	now := time.Now().UTC()
	rec.Status = newStatus
	if newStatus == StatusTerminee {
		rec.ResolvedAt = &now
	} else {
		rec.ResolvedAt = nil
	}
	rec.ProcessedAt = &now

	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// MyReclamations aggregates the caller's reclamations with article
// display data; lookups degrade to placeholders.
func (s *Service) MyReclamations(ctx context.Context, userID, token string) ([]ReclamationView, error) {
	customer, err := s.CustomerByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			return []ReclamationView{}, nil
		}
		return nil, err
	}
	var recs []Reclamation
	if err := s.db.WithContext(ctx).
		Where("customer_id = ?", customer.ID).
		Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return s.buildViews(ctx, token, recs, customer), nil
}

// AllReclamations is the staff list, newest first, with the same
// aggregation.
func (s *Service) AllReclamations(ctx context.Context, token string) ([]ReclamationView, error) {
	var recs []Reclamation
	if err := s.db.WithContext(ctx).Preload("Customer").
		Order("created_at DESC").Find(&recs).Error; err != nil {
		return nil, err
	}
	return s.buildViews(ctx, token, recs, nil), nil
}

func (s *Service) buildViews(ctx context.Context, token string, recs []Reclamation, owner *Customer) []ReclamationView {
	views := make([]ReclamationView, 0, len(recs))
	for _, r := range recs {
		v := ReclamationView{
			ID:                      r.ID,
			ArticleID:               r.ArticleID,
			ArticleNom:              lookup.UnknownArticle,
			Description:             r.Description,
			ProblemType:             r.ProblemType,
			DesiredInterventionDate: r.DesiredInterventionDate,
			Status:                  r.Status,
			CreatedAt:               r.CreatedAt,
			ResolvedAt:              r.ResolvedAt,
			CustomerID:              r.CustomerID,
		}
		if article, ok := s.articles.Article(ctx, token, r.ArticleID); ok {
			v.ArticleNom = article.DisplayName()
			v.EstSousGarantie = article.FirstPurchaseUnderWarranty()
		}
		switch {
		case owner != nil:
			v.CustomerNom = owner.FullName()
		case r.Customer != nil:
			v.CustomerNom = r.Customer.FullName()
		default:
			v.CustomerNom = lookup.ClientPlaceholder(r.CustomerID)
		}
		views = append(views, v)
	}
	return views
}

// ReclamationDetails assembles the detail view. The invoice total is
// only surfaced when the reclamation is Terminée and the intervention
// was not under warranty.
func (s *Service) ReclamationDetails(ctx context.Context, token string, rec *Reclamation) ReclamationDetails {
	d := ReclamationDetails{
		ID:                      rec.ID,
		Description:             rec.Description,
		ProblemType:             rec.ProblemType,
		Status:                  rec.Status,
		CreatedAt:               rec.CreatedAt,
		DesiredInterventionDate: rec.DesiredInterventionDate,
		ArticleNom:              lookup.UnknownArticle,
		TechnicienNom:           lookup.UnassignedTechnician,
	}
	if d.ProblemType == "" {
		d.ProblemType = "Non spécifié"
	}

	if article, ok := s.articles.Article(ctx, token, rec.ArticleID); ok {
		d.ArticleNom = article.DisplayName()
	}

	if iv, ok := s.interventions.LatestByReclamation(ctx, token, rec.ID); ok {
		if iv.TechnicienNom != "" {
			d.TechnicienNom = iv.TechnicienNom
		}
		d.DateIntervention = iv.DateIntervention
		d.EstSousGarantie = iv.EstSousGarantie
		if rec.Status == StatusTerminee && !iv.EstSousGarantie {
			total := iv.MontantTotal
			d.MontantTotal = &total
		}
	}
	return d
}

// --- Dashboards ---

type ReclamationStats struct {
	Actives         int64 `json:"actives"`
	EnAttente       int64 `json:"enAttente"`
	TermineesCeMois int64 `json:"termineesCeMois"`
}

func (s *Service) Stats(ctx context.Context) (ReclamationStats, error) {
	var st ReclamationStats
	db := s.db.WithContext(ctx).Model(&Reclamation{})

	if err := db.Session(&gorm.Session{}).
		Where("status IN ?", []Status{StatusPlanifiee, StatusEnCours}).
		Count(&st.Actives).Error; err != nil {
		return st, err
	}
	if err := db.Session(&gorm.Session{}).
		Where("status = ?", StatusEnAttente).
		Count(&st.EnAttente).Error; err != nil {
		return st, err
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	if err := db.Session(&gorm.Session{}).
		Where("status = ? AND resolved_at >= ? AND resolved_at < ?",
			StatusTerminee, monthStart, monthStart.AddDate(0, 1, 0)).
		Count(&st.TermineesCeMois).Error; err != nil {
		return st, err
	}
	return st, nil
}

type ClientStats struct {
	TotalReclamations int64 `json:"totalReclamations"`
	EnCours           int64 `json:"enCours"`
	Terminees         int64 `json:"terminees"`
	Articles          int   `json:"articles"`
}

// ClientStatsFor counts the caller's reclamations and their owned
// articles; the article count degrades to zero when the articles
// service is unreachable.
func (s *Service) ClientStatsFor(ctx context.Context, userID, token string) (ClientStats, error) {
	var st ClientStats
	customer, err := s.CustomerByUserID(ctx, userID)
	if err != nil {
		return st, err
	}

	db := s.db.WithContext(ctx).Model(&Reclamation{})
	if err := db.Session(&gorm.Session{}).
		Where("customer_id = ?", customer.ID).Count(&st.TotalReclamations).Error; err != nil {
		return st, err
	}
	if err := db.Session(&gorm.Session{}).
		Where("customer_id = ? AND status IN ?", customer.ID, []Status{StatusPlanifiee, StatusEnCours}).
		Count(&st.EnCours).Error; err != nil {
		return st, err
	}
	if err := db.Session(&gorm.Session{}).
		Where("customer_id = ? AND status = ?", customer.ID, StatusTerminee).
		Count(&st.Terminees).Error; err != nil {
		return st, err
	}

	if count, ok := s.articles.MyArticleCount(ctx, token); ok {
		st.Articles = count
	}
	return st, nil
}
