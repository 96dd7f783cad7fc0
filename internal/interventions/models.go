package interventions

import (
	"time"

	"github.com/shopspring/decimal"
)

// Intervention statuses. Annulée is terminal with no side effects
// beyond the value itself.
const (
	StatutPlanifiee = "Planifiée"
	StatutEnCours   = "EnCours"
	StatutTerminee  = "Terminée"
	StatutAnnulee   = "Annulée"
)

// Intervention is a repair job addressing a reclamation. The warranty
// flag is copied from the purchase record at creation time and never
// recomputed here.
type Intervention struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	ReclamationID uint   `json:"reclamationId" gorm:"not null;index"`
	ClientID      uint   `json:"clientId" gorm:"not null;index"`
	ArticleID     uint   `json:"articleId" gorm:"not null"`
	Description   string `json:"description" gorm:"size:200;not null"`

	DateIntervention time.Time `json:"dateIntervention" gorm:"not null"`
	Statut           string    `json:"statut" gorm:"size:50;not null;default:Planifiée"`
	EstSousGarantie  bool      `json:"estSousGarantie"`
	TechnicienNom    string    `json:"technicienNom" gorm:"size:100"`

	DureeIntervention  decimal.Decimal `json:"dureeIntervention" gorm:"type:decimal(18,2)"`
	TarifHoraire       decimal.Decimal `json:"tarifHoraire" gorm:"type:decimal(18,2)"`
	MontantDeplacement decimal.Decimal `json:"montantDeplacement" gorm:"type:decimal(18,2)"`
	TauxTVA            decimal.Decimal `json:"tauxTVA" gorm:"type:decimal(18,4)"`
	MontantMainOeuvre  decimal.Decimal `json:"montantMainOeuvre" gorm:"type:decimal(18,2)"`
	MontantTotal       decimal.Decimal `json:"montantTotal" gorm:"type:decimal(18,2)"`

	ModePaiement   string `json:"modePaiement" gorm:"size:50"`
	StatutPaiement string `json:"statutPaiement" gorm:"size:50"`
	Commentaire    string `json:"commentaire" gorm:"size:500"`

	DateCreation  time.Time  `json:"dateCreation"`
	DateMiseAJour *time.Time `json:"dateMiseAJour"`

	Pieces []InterventionPart `json:"pieces,omitempty" gorm:"foreignKey:InterventionID"`
}

// InterventionPart is one part line; PrixTotal is always
// quantity × unit price, recomputed on every mutation.
type InterventionPart struct {
	ID             uint            `json:"id" gorm:"primaryKey"`
	InterventionID uint            `json:"interventionId" gorm:"not null;index"`
	NomPiece       string          `json:"nomPiece" gorm:"size:100;not null"`
	Reference      string          `json:"reference" gorm:"size:50"`
	Quantite       int             `json:"quantite" gorm:"not null"`
	PrixUnitaire   decimal.Decimal `json:"prixUnitaire" gorm:"type:decimal(18,2);not null"`
	PrixTotal      decimal.Decimal `json:"prixTotal" gorm:"type:decimal(18,2)"`
	Description    string          `json:"description" gorm:"size:200"`
}

// Technicien is flat reference data.
type Technicien struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	Nom        string `json:"nom" gorm:"size:100;not null"`
	Prenom     string `json:"prenom" gorm:"size:100;not null"`
	Telephone  string `json:"telephone" gorm:"size:50"`
	Specialite string `json:"specialite" gorm:"size:100"`
}

// InterventionView is the staff list shape with client/article names
// stitched in from the sibling services.
type InterventionView struct {
	ID              uint      `json:"id"`
	ReclamationID   uint      `json:"reclamationId"`
	ClientID        uint      `json:"clientId"`
	ClientNom       string    `json:"clientNom"`
	ArticleID       uint      `json:"articleId"`
	ArticleNom      string    `json:"articleNom"`
	EstSousGarantie bool      `json:"estSousGarantie"`
	TechnicienNom   string    `json:"technicienNom"`
	Statut          string    `json:"statut"`
	DateCreation    time.Time `json:"dateCreation"`
}

// InterventionDetails extends the raw record with display data for the
// back-office detail page.
type InterventionDetails struct {
	Intervention
	ClientNom       string `json:"clientNom"`
	ClientAddress   string `json:"clientAddress"`
	ClientTelephone string `json:"clientTelephone"`
	ArticleNom      string `json:"articleNom"`
}

// TodayIntervention is one row of the daily planning dashboard.
type TodayIntervention struct {
	ID         uint   `json:"id"`
	Heure      string `json:"heure"`
	Technicien string `json:"technicien"`
	Client     string `json:"client"`
	Adresse    string `json:"adresse"`
	Telephone  string `json:"telephone"`
	Statut     string `json:"statut"`
}
