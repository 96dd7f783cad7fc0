package articles

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/diewo77/sav-suite/internal/warranty"
)

var (
	ErrNotFound         = errors.New("article: not found")
	ErrInvalidReference = errors.New("article: invalid reference")
	ErrDuplicate        = errors.New("article: duplicate unique field")
	ErrArticleInUse     = errors.New("article: referenced by purchases")
)

// Service owns catalog and ownership records. clampStock selects the
// stock policy: the historical behaviour allows negative stock, so the
// clamp is opt-in.
type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	clampStock bool
}

func NewService(db *gorm.DB, log *zap.Logger, clampStock bool) *Service {
	return &Service{db: db, log: log, clampStock: clampStock}
}

// --- Articles ---

func (s *Service) ListArticles(ctx context.Context) ([]Article, error) {
	var out []Article
	err := s.db.WithContext(ctx).Order("categorie, nom").Find(&out).Error
	return out, err
}

func (s *Service) ArticleByID(ctx context.Context, id uint) (*Article, error) {
	var a Article
	err := s.db.WithContext(ctx).Preload("ArticlesClients").First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (s *Service) ArticleByReference(ctx context.Context, reference string) (*Article, error) {
	var a Article
	err := s.db.WithContext(ctx).Where("reference = ?", reference).First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &a, err
}

func (s *Service) ArticlesByField(ctx context.Context, field, value string) ([]Article, error) {
	var out []Article
	err := s.db.WithContext(ctx).Where(field+" = ?", value).Order("nom").Find(&out).Error
	return out, err
}

// SearchArticles matches a case-insensitive substring over nom,
// reference, description and marque.
func (s *Service) SearchArticles(ctx context.Context, term string) ([]Article, error) {
	like := "%" + strings.ToLower(term) + "%"
	var out []Article
	err := s.db.WithContext(ctx).
		Where("lower(nom) LIKE ? OR lower(reference) LIKE ? OR lower(description) LIKE ? OR lower(marque) LIKE ?",
			like, like, like, like).
		Order("nom").
		Find(&out).Error
	return out, err
}

func (s *Service) CreateArticle(ctx context.Context, a *Article) error {
	var count int64
	if err := s.db.WithContext(ctx).Model(&Article{}).Where("reference = ?", a.Reference).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}
	a.DateCreation = time.Now()
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return err
	}
	s.log.Info("article créé", zap.Uint("id", a.ID), zap.String("reference", a.Reference))
	return nil
}

func (s *Service) UpdateArticle(ctx context.Context, id uint, in *Article) (*Article, error) {
	var existing Article
	if err := s.db.WithContext(ctx).First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if in.Reference != existing.Reference {
		var count int64
		if err := s.db.WithContext(ctx).Model(&Article{}).
			Where("reference = ? AND id <> ?", in.Reference, id).Count(&count).Error; err != nil {
			return nil, err
		}
		if count > 0 {
			return nil, ErrDuplicate
		}
	}

	now := time.Now()
	existing.Nom = in.Nom
	existing.Reference = in.Reference
	existing.Description = in.Description
	existing.Categorie = in.Categorie
	existing.Type = in.Type
	existing.Marque = in.Marque
	existing.Modele = in.Modele
	existing.Prix = in.Prix
	existing.DureeGarantie = in.DureeGarantie
	existing.EstDisponible = in.EstDisponible
	existing.Stock = in.Stock
	existing.ImageURL = in.ImageURL
	existing.DateMiseAJour = &now

	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

// DeleteArticle refuses to remove an article that still has purchase
// records (restrict semantics).
func (s *Service) DeleteArticle(ctx context.Context, id uint) error {
	var a Article
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&CustomerArticle{}).Where("article_id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrArticleInUse
	}
	return s.db.WithContext(ctx).Delete(&a).Error
}

// UpdateStock applies a signed delta. Availability flips off once stock
// reaches zero or below; it is never flipped back here, re-enabling
// requires an explicit article update. Without the clamp policy the
// stock may go negative, matching the historical behaviour.
func (s *Service) UpdateStock(ctx context.Context, id uint, delta int) (*Article, error) {
	var a Article
	if err := s.db.WithContext(ctx).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	a.Stock += delta
	if s.clampStock && a.Stock < 0 {
		a.Stock = 0
	}
	if a.Stock <= 0 {
		a.EstDisponible = false
	}
	now := time.Now()
	a.DateMiseAJour = &now

	if err := s.db.WithContext(ctx).Save(&a).Error; err != nil {
		return nil, err
	}
	s.log.Info("stock mis à jour", zap.Uint("id", id), zap.Int("delta", delta), zap.Int("stock", a.Stock))
	return &a, nil
}

// --- Customer articles ---

func (s *Service) ListCustomerArticles(ctx context.Context) ([]CustomerArticle, error) {
	var out []CustomerArticle
	err := s.db.WithContext(ctx).Preload("Article").Order("date_achat DESC").Find(&out).Error
	return out, err
}

func (s *Service) CustomerArticleByID(ctx context.Context, id uint) (*CustomerArticle, error) {
	var ca CustomerArticle
	err := s.db.WithContext(ctx).Preload("Article").First(&ca, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &ca, err
}

func (s *Service) CustomerArticlesByClient(ctx context.Context, clientID uint) ([]CustomerArticle, error) {
	var out []CustomerArticle
	err := s.db.WithContext(ctx).Preload("Article").
		Where("client_id = ?", clientID).Order("date_achat DESC").Find(&out).Error
	return out, err
}

func (s *Service) CustomerArticlesByArticle(ctx context.Context, articleID uint) ([]CustomerArticle, error) {
	var out []CustomerArticle
	err := s.db.WithContext(ctx).Preload("Article").
		Where("article_id = ?", articleID).Order("date_achat DESC").Find(&out).Error
	return out, err
}

// CustomerArticlesByClientAndArticle backs the serial-number audit
// lookup performed by the customers service at reclamation creation.
func (s *Service) CustomerArticlesByClientAndArticle(ctx context.Context, clientID, articleID uint) ([]CustomerArticle, error) {
	var out []CustomerArticle
	err := s.db.WithContext(ctx).
		Where("client_id = ? AND article_id = ?", clientID, articleID).
		Order("date_achat DESC").Find(&out).Error
	return out, err
}

func (s *Service) CustomerArticleBySerial(ctx context.Context, numeroSerie string) (*CustomerArticle, error) {
	var ca CustomerArticle
	err := s.db.WithContext(ctx).Preload("Article").
		Where("numero_serie = ?", numeroSerie).First(&ca).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	return &ca, err
}

func (s *Service) CustomerArticlesUnderWarranty(ctx context.Context, clientID uint) ([]CustomerArticle, error) {
	var out []CustomerArticle
	err := s.db.WithContext(ctx).Preload("Article").
		Where("client_id = ? AND est_sous_garantie = ?", clientID, true).
		Order("date_fin_garantie DESC").Find(&out).Error
	return out, err
}

// CreateCustomerArticle derives the warranty window from the purchase
// date and the article's current duration. A missing article id is an
// invalid reference, no row is created.
func (s *Service) CreateCustomerArticle(ctx context.Context, ca *CustomerArticle) error {
	var a Article
	if err := s.db.WithContext(ctx).First(&a, ca.ArticleID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrInvalidReference
		}
		return err
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&CustomerArticle{}).
		Where("numero_serie = ?", ca.NumeroSerie).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrDuplicate
	}

	ca.DateFinGarantie = warranty.End(ca.DateAchat, a.DureeGarantie)
	ca.EstSousGarantie = warranty.IsUnderWarranty(time.Now(), ca.DateFinGarantie)
	ca.DateCreation = time.Now()
	ca.Article = nil

	if err := s.db.WithContext(ctx).Create(ca).Error; err != nil {
		return err
	}
	s.log.Info("article client créé", zap.Uint("id", ca.ID), zap.Uint("articleId", ca.ArticleID))
	return nil
}

// UpdateCustomerArticle recomputes the warranty window from the
// (possibly changed) purchase date and the article's current duration.
func (s *Service) UpdateCustomerArticle(ctx context.Context, id uint, in *CustomerArticle) (*CustomerArticle, error) {
	var existing CustomerArticle
	if err := s.db.WithContext(ctx).First(&existing, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	now := time.Now()
	existing.NumeroSerie = in.NumeroSerie
	existing.DateAchat = in.DateAchat
	existing.NumeroFacture = in.NumeroFacture
	existing.Remarques = in.Remarques
	existing.DateMiseAJour = &now

	var a Article
	if err := s.db.WithContext(ctx).First(&a, existing.ArticleID).Error; err == nil {
		existing.DateFinGarantie = warranty.End(existing.DateAchat, a.DureeGarantie)
		existing.EstSousGarantie = warranty.IsUnderWarranty(now, existing.DateFinGarantie)
	}

	if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
		return nil, err
	}
	return &existing, nil
}

func (s *Service) DeleteCustomerArticle(ctx context.Context, id uint) error {
	var ca CustomerArticle
	if err := s.db.WithContext(ctx).First(&ca, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.db.WithContext(ctx).Delete(&ca).Error
}

// VerifyWarranty re-derives the flag from the stored end date, not from
// the article's current duration, and persists it when it changed.
func (s *Service) VerifyWarranty(ctx context.Context, id uint) (bool, error) {
	var ca CustomerArticle
	if err := s.db.WithContext(ctx).First(&ca, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrNotFound
		}
		return false, err
	}

	active := warranty.IsUnderWarranty(time.Now(), ca.DateFinGarantie)
	if ca.EstSousGarantie != active {
		now := time.Now()
		ca.EstSousGarantie = active
		ca.DateMiseAJour = &now
		if err := s.db.WithContext(ctx).Save(&ca).Error; err != nil {
			return false, err
		}
	}
	return active, nil
}

// MyArticles lists the purchases of one client as display records.
func (s *Service) MyArticles(ctx context.Context, clientID uint) ([]MyArticle, error) {
	cas, err := s.CustomerArticlesByClient(ctx, clientID)
	if err != nil {
		return nil, err
	}
	out := make([]MyArticle, 0, len(cas))
	for _, ca := range cas {
		m := MyArticle{
			CustomerArticleID: ca.ID,
			ArticleID:         ca.ArticleID,
			DateAchat:         ca.DateAchat,
			SerialNumber:      ca.NumeroSerie,
			EstSousGarantie:   ca.EstSousGarantie,
		}
		end := ca.DateFinGarantie
		m.DateFinGarantie = &end
		if ca.Article != nil {
			m.DisplayName = ca.Article.DisplayName()
		}
		out = append(out, m)
	}
	return out, nil
}
