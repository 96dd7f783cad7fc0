package articles

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Article is a catalog entry. DureeGarantie is in calendar months.
type Article struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	Nom           string          `json:"nom" gorm:"size:100;not null"`
	Reference     string          `json:"reference" gorm:"size:50;not null;uniqueIndex"`
	Description   string          `json:"description" gorm:"size:500"`
	Categorie     string          `json:"categorie" gorm:"size:50;not null"`
	Type          string          `json:"type" gorm:"size:50;not null"`
	Marque        string          `json:"marque" gorm:"size:100;not null"`
	Modele        string          `json:"modele" gorm:"size:50"`
	Prix          decimal.Decimal `json:"prix" gorm:"type:decimal(18,2);not null"`
	DureeGarantie int             `json:"dureeGarantie" gorm:"not null"`
	EstDisponible bool            `json:"estDisponible" gorm:"default:true"`
	Stock         int             `json:"stock" gorm:"not null"`
	ImageURL      string          `json:"imageUrl" gorm:"size:200"`
	DateCreation  time.Time       `json:"dateCreation"`
	DateMiseAJour *time.Time      `json:"dateMiseAJour"`

	ArticlesClients []CustomerArticle `json:"articlesClients,omitempty" gorm:"foreignKey:ArticleID"`
}

// DisplayName renders "Marque - Nom - Modèle X", skipping blank parts.
func (a Article) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Marque, a.Nom} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	if strings.TrimSpace(a.Modele) != "" {
		parts = append(parts, "Modèle "+a.Modele)
	}
	return strings.Join(parts, " - ")
}

// CustomerArticle records a customer's purchase of an article, with the
// warranty window derived from the article's duration at write time.
// It is not re-synced when the catalog entry changes later.
type CustomerArticle struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	ClientID        uint       `json:"clientId" gorm:"not null;index"`
	ArticleID       uint       `json:"articleId" gorm:"not null;index"`
	NumeroSerie     string     `json:"numeroSerie" gorm:"size:100;not null;uniqueIndex"`
	DateAchat       time.Time  `json:"dateAchat" gorm:"not null"`
	DateFinGarantie time.Time  `json:"dateFinGarantie"`
	EstSousGarantie bool       `json:"estSousGarantie"`
	NumeroFacture   string     `json:"numeroFacture" gorm:"size:100"`
	Remarques       string     `json:"remarques" gorm:"size:500"`
	DateCreation    time.Time  `json:"dateCreation"`
	DateMiseAJour   *time.Time `json:"dateMiseAJour"`

	Article *Article `json:"article,omitempty" gorm:"foreignKey:ArticleID"`
}

// MyArticle is the display shape for the reclamation form: what the
// logged-in customer owns, with the warranty status attached.
type MyArticle struct {
	CustomerArticleID uint       `json:"customerArticleId"`
	ArticleID         uint       `json:"articleId"`
	DateAchat         time.Time  `json:"dateAchat"`
	DisplayName       string     `json:"displayName"`
	SerialNumber      string     `json:"serialNumber"`
	EstSousGarantie   bool       `json:"estSousGarantie"`
	DateFinGarantie   *time.Time `json:"dateFinGarantie"`
}
