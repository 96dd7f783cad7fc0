package customers

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Customer is the profile attached to an identity-provider subject.
type Customer struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"userId" gorm:"size:64;not null;uniqueIndex"`
	FirstName string    `json:"firstName" gorm:"size:100"`
	LastName  string    `json:"lastName" gorm:"size:100"`
	Phone     string    `json:"phone" gorm:"size:50"`
	Address   string    `json:"address" gorm:"size:300"`
	CreatedAt time.Time `json:"createdAt"`

	Reclamations []Reclamation `json:"reclamations,omitempty" gorm:"foreignKey:CustomerID"`
}

func (c Customer) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Status is the reclamation lifecycle state. The order below is the
// staff convention; out-of-order jumps are allowed (see CanTransition).
type Status string

const (
	StatusEnAttente Status = "EnAttente"
	StatusPlanifiee Status = "Planifiée"
	StatusEnCours   Status = "EnCours"
	StatusTerminee  Status = "Terminée"
)

// ParseStatus accepts the canonical spelling case-insensitively.
func ParseStatus(s string) (Status, error) {
	for _, st := range []Status{StatusEnAttente, StatusPlanifiee, StatusEnCours, StatusTerminee} {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("statut invalide: %q", s)
}

// transitions is the conventional forward flow. It is informative, not
// enforced: staff may set any status from any other, and the service
// only logs when a change leaves the convention.
var transitions = map[Status]Status{
	StatusEnAttente: StatusPlanifiee,
	StatusPlanifiee: StatusEnCours,
	StatusEnCours:   StatusTerminee,
}

// CanTransition reports whether from→to follows the conventional flow.
func CanTransition(from, to Status) bool {
	return transitions[from] == to
}

// Reclamation is a customer complaint about a purchased article. The
// serial number is copied from the purchase record at creation time for
// the audit trail and never updated afterwards.
type Reclamation struct {
	ID                      uint       `json:"id" gorm:"primaryKey"`
	CustomerID              uint       `json:"customerId" gorm:"not null;index"`
	ArticleID               uint       `json:"articleId" gorm:"not null"`
	SerialNumber            string     `json:"serialNumber" gorm:"size:100"`
	ProblemType             string     `json:"problemType" gorm:"size:100"`
	Description             string     `json:"description" gorm:"size:1000"`
	DesiredInterventionDate *time.Time `json:"desiredInterventionDate"`
	Status                  Status     `json:"status" gorm:"size:20;not null;default:EnAttente"`
	CreatedAt               time.Time  `json:"createdAt"`
	ProcessedAt             *time.Time `json:"processedAt"`
	ResolvedAt              *time.Time `json:"resolvedAt"`
	InterventionID          *uint      `json:"interventionId"`

	Customer *Customer `json:"customer,omitempty" gorm:"foreignKey:CustomerID"`
}

// ReclamationView is the aggregated list shape: article and customer
// display data stitched in from the sibling services, best-effort.
type ReclamationView struct {
	ID                      uint       `json:"id"`
	ArticleID               uint       `json:"articleId"`
	ArticleNom              string     `json:"articleNom"`
	Description             string     `json:"description"`
	ProblemType             string     `json:"problemType,omitempty"`
	DesiredInterventionDate *time.Time `json:"desiredInterventionDate,omitempty"`
	Status                  Status     `json:"status"`
	CreatedAt               time.Time  `json:"createdAt"`
	ResolvedAt              *time.Time `json:"resolvedAt,omitempty"`
	EstSousGarantie         bool       `json:"estSousGarantie"`
	CustomerID              uint       `json:"customerId"`
	CustomerNom             string     `json:"customerNom"`
}

// ReclamationDetails adds the latest intervention to the detail view.
// MontantTotal is only exposed once the work is done and payable:
// status Terminée and not under warranty.
type ReclamationDetails struct {
	ID                      uint             `json:"id"`
	Description             string           `json:"description"`
	ProblemType             string           `json:"problemType"`
	Status                  Status           `json:"status"`
	CreatedAt               time.Time        `json:"createdAt"`
	DesiredInterventionDate *time.Time       `json:"desiredInterventionDate,omitempty"`
	ArticleNom              string           `json:"articleNom"`
	TechnicienNom           string           `json:"technicienNom"`
	DateIntervention        *time.Time       `json:"dateIntervention,omitempty"`
	EstSousGarantie         bool             `json:"estSousGarantie"`
	MontantTotal            *decimal.Decimal `json:"montantTotal,omitempty"`
}
