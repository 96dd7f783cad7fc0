// Package lookup holds the cross-service read clients. Every call is a
// best-effort synchronous GET with a bounded timeout: any failure
// (connection error, non-2xx, malformed body) yields ok=false and the
// caller substitutes a placeholder. There is deliberately no retry and
// no circuit breaker; staleness is accepted suite-wide.
package lookup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Placeholder values shown when a lookup degrades.
const (
	UnknownArticle       = "Article inconnu"
	UnassignedTechnician = "Non assigné"
	UnknownAddress       = "Non définie"
)

// ClientPlaceholder is the display fallback for an unresolvable client.
func ClientPlaceholder(clientID uint) string {
	return fmt.Sprintf("Client #%d", clientID)
}

// NewHTTPClient builds the shared outbound client. The timeout is the
// hard bound on every cross-service read.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// fetchJSON is the single swallow-and-fallback point: it reports false
// on any failure and logs the reason for operability.
func fetchJSON(ctx context.Context, hc *http.Client, log *zap.Logger, url, token string, out any) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := hc.Do(req)
	if err != nil {
		log.Warn("lookup request failed", zap.String("url", url), zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn("lookup returned non-2xx", zap.String("url", url), zap.Int("status", resp.StatusCode))
		return false
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Warn("lookup body decode failed", zap.String("url", url), zap.Error(err))
		return false
	}
	return true
}

// --- Articles service ---

type ArticleInfo struct {
	ID            uint   `json:"id"`
	Nom           string `json:"nom"`
	Marque        string `json:"marque"`
	Modele        string `json:"modele"`
	Reference     string `json:"reference"`
	DureeGarantie int    `json:"dureeGarantie"`

	ArticlesClients []struct {
		EstSousGarantie bool `json:"estSousGarantie"`
	} `json:"articlesClients"`
}

// DisplayName renders "Marque - Nom - Modèle X", skipping blank parts.
func (a ArticleInfo) DisplayName() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{a.Marque, a.Nom} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	if strings.TrimSpace(a.Modele) != "" {
		parts = append(parts, "Modèle "+a.Modele)
	}
	if len(parts) == 0 {
		return UnknownArticle
	}
	return strings.Join(parts, " - ")
}

// FirstPurchaseUnderWarranty mirrors the historical read of the first
// attached purchase record; false when none are attached.
func (a ArticleInfo) FirstPurchaseUnderWarranty() bool {
	return len(a.ArticlesClients) > 0 && a.ArticlesClients[0].EstSousGarantie
}

type customerArticleInfo struct {
	NumeroSerie string `json:"numeroSerie"`
}

type ArticleClient struct {
	base string
	hc   *http.Client
	log  *zap.Logger
}

func NewArticleClient(baseURL string, hc *http.Client, log *zap.Logger) *ArticleClient {
	return &ArticleClient{base: strings.TrimRight(baseURL, "/"), hc: hc, log: log}
}

func (c *ArticleClient) Article(ctx context.Context, token string, id uint) (ArticleInfo, bool) {
	var info ArticleInfo
	ok := fetchJSON(ctx, c.hc, c.log, fmt.Sprintf("%s/api/articles/%d", c.base, id), token, &info)
	return info, ok
}

// SerialNumber returns the serial of the purchase linking (client,
// article), used for the reclamation audit trail.
func (c *ArticleClient) SerialNumber(ctx context.Context, token string, clientID, articleID uint) (string, bool) {
	var list []customerArticleInfo
	url := fmt.Sprintf("%s/api/customer-articles/client/%d/article/%d", c.base, clientID, articleID)
	if !fetchJSON(ctx, c.hc, c.log, url, token, &list) || len(list) == 0 {
		return "", false
	}
	return list[0].NumeroSerie, true
}

// MyArticleCount counts the caller's owned articles for the client
// dashboard.
func (c *ArticleClient) MyArticleCount(ctx context.Context, token string) (int, bool) {
	var list []json.RawMessage
	if !fetchJSON(ctx, c.hc, c.log, c.base+"/api/customer-articles/my", token, &list) {
		return 0, false
	}
	return len(list), true
}

// --- Customers service ---

type CustomerInfo struct {
	ID        uint   `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
}

func (c CustomerInfo) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

type CustomerClient struct {
	base string
	hc   *http.Client
	log  *zap.Logger
}

func NewCustomerClient(baseURL string, hc *http.Client, log *zap.Logger) *CustomerClient {
	return &CustomerClient{base: strings.TrimRight(baseURL, "/"), hc: hc, log: log}
}

func (c *CustomerClient) Customer(ctx context.Context, token string, id uint) (CustomerInfo, bool) {
	var info CustomerInfo
	ok := fetchJSON(ctx, c.hc, c.log, fmt.Sprintf("%s/api/customers/%d", c.base, id), token, &info)
	return info, ok
}

// MyClientID resolves the caller's customer record id from their
// identity subject.
func (c *CustomerClient) MyClientID(ctx context.Context, token string) (uint, bool) {
	var out struct {
		ClientID uint `json:"clientId"`
	}
	if !fetchJSON(ctx, c.hc, c.log, c.base+"/api/customers/me/client-id", token, &out) || out.ClientID == 0 {
		return 0, false
	}
	return out.ClientID, true
}

// --- Interventions service ---

type InterventionInfo struct {
	ID               uint            `json:"id"`
	TechnicienNom    string          `json:"technicienNom"`
	DateIntervention *time.Time      `json:"dateIntervention"`
	EstSousGarantie  bool            `json:"estSousGarantie"`
	MontantTotal     decimal.Decimal `json:"montantTotal"`
	Statut           string          `json:"statut"`
}

type InterventionClient struct {
	base string
	hc   *http.Client
	log  *zap.Logger
}

func NewInterventionClient(baseURL string, hc *http.Client, log *zap.Logger) *InterventionClient {
	return &InterventionClient{base: strings.TrimRight(baseURL, "/"), hc: hc, log: log}
}

// LatestByReclamation returns the most recently created intervention
// for a reclamation; the upstream list is newest-first.
func (c *InterventionClient) LatestByReclamation(ctx context.Context, token string, reclamationID uint) (InterventionInfo, bool) {
	var list []InterventionInfo
	url := fmt.Sprintf("%s/api/interventions/by-reclamation/%d", c.base, reclamationID)
	if !fetchJSON(ctx, c.hc, c.log, url, token, &list) || len(list) == 0 {
		return InterventionInfo{}, false
	}
	return list[0], true
}
