package articles

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Use a unique in-memory database per test to avoid cross-test collisions.
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Article{}, &CustomerArticle{}))
	return db
}

func newTestService(t *testing.T, clampStock bool) *Service {
	t.Helper()
	return NewService(setupTestDB(t), zap.NewNop(), clampStock)
}

func seedArticle(t *testing.T, svc *Service, ref string, stock, dureeGarantie int) *Article {
	t.Helper()
	a := &Article{
		Nom:           "Mitigeur thermostatique",
		Reference:     ref,
		Categorie:     "Robinetterie",
		Marque:        "Grohe",
		Modele:        "GRT-300",
		Prix:          decimal.RequireFromString("129.90"),
		DureeGarantie: dureeGarantie,
		EstDisponible: true,
		Stock:         stock,
	}
	require.NoError(t, svc.CreateArticle(context.Background(), a))
	return a
}

func TestCreateArticleRejectsDuplicateReference(t *testing.T) {
	svc := newTestService(t, false)
	seedArticle(t, svc, "REF-001", 10, 24)

	dup := &Article{Nom: "Autre", Reference: "REF-001"}
	err := svc.CreateArticle(context.Background(), dup)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestSearchArticlesMatchesBrandCaseInsensitive(t *testing.T) {
	svc := newTestService(t, false)
	seedArticle(t, svc, "REF-001", 10, 24)

	other := &Article{Nom: "Chauffe-eau", Reference: "REF-002", Marque: "Atlantic"}
	require.NoError(t, svc.CreateArticle(context.Background(), other))

	found, err := svc.SearchArticles(context.Background(), "grohe")
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "REF-001", found[0].Reference)
}

func TestUpdateStockGoesNegativeWithoutClamp(t *testing.T) {
	svc := newTestService(t, false)
	a := seedArticle(t, svc, "REF-001", 5, 24)

	got, err := svc.UpdateStock(context.Background(), a.ID, -10)
	require.NoError(t, err)
	require.Equal(t, -5, got.Stock)
	require.False(t, got.EstDisponible)
}

func TestUpdateStockClampPolicy(t *testing.T) {
	svc := newTestService(t, true)
	a := seedArticle(t, svc, "REF-001", 5, 24)

	got, err := svc.UpdateStock(context.Background(), a.ID, -10)
	require.NoError(t, err)
	require.Equal(t, 0, got.Stock)
	require.False(t, got.EstDisponible)
}

func TestUpdateStockNeverReenablesAvailability(t *testing.T) {
	svc := newTestService(t, false)
	a := seedArticle(t, svc, "REF-001", 5, 24)

	_, err := svc.UpdateStock(context.Background(), a.ID, -5)
	require.NoError(t, err)

	// Restocking leaves the flag off; re-enabling is an explicit update.
	got, err := svc.UpdateStock(context.Background(), a.ID, 20)
	require.NoError(t, err)
	require.Equal(t, 20, got.Stock)
	require.False(t, got.EstDisponible)
}

func TestDeleteArticleRestrictedWhenPurchased(t *testing.T) {
	svc := newTestService(t, false)
	a := seedArticle(t, svc, "REF-001", 10, 24)

	ca := &CustomerArticle{ClientID: 1, ArticleID: a.ID, NumeroSerie: "SN-1", DateAchat: time.Now()}
	require.NoError(t, svc.CreateCustomerArticle(context.Background(), ca))

	err := svc.DeleteArticle(context.Background(), a.ID)
	require.ErrorIs(t, err, ErrArticleInUse)

	require.NoError(t, svc.DeleteCustomerArticle(context.Background(), ca.ID))
	require.NoError(t, svc.DeleteArticle(context.Background(), a.ID))
}

func TestCreateCustomerArticleComputesWarranty(t *testing.T) {
	svc := newTestService(t, false)
	a := seedArticle(t, svc, "REF-001", 10, 24)

	// Mid-month date: no day clamping involved, the end date is exactly
	// purchase plus 24 months.
	now := time.Now()
	purchase := time.Date(now.Year(), now.Month(), 15, 10, 0, 0, 0, time.UTC).AddDate(0, -6, 0)
	ca := &CustomerArticle{ClientID: 1, ArticleID: a.ID, NumeroSerie: "SN-1", DateAchat: purchase}
	require.NoError(t, svc.CreateCustomerArticle(context.Background(), ca))

	require.True(t, ca.EstSousGarantie)
	require.Equal(t, purchase.AddDate(0, 24, 0), ca.DateFinGarantie)
}

func TestCreateCustomerArticleExpiredWarranty(t *testing.T) {
	svc := newTestService(t, false)
	a := seedArticle(t, svc, "REF-001", 10, 12)

	ca := &CustomerArticle{ClientID: 1, ArticleID: a.ID, NumeroSerie: "SN-1",
		DateAchat: time.Now().AddDate(-2, 0, 0)}
	require.NoError(t, svc.CreateCustomerArticle(context.Background(), ca))
	require.False(t, ca.EstSousGarantie)
}

func TestCreateCustomerArticleUnknownArticle(t *testing.T) {
	svc := newTestService(t, false)

	ca := &CustomerArticle{ClientID: 1, ArticleID: 999, NumeroSerie: "SN-1", DateAchat: time.Now()}
	err := svc.CreateCustomerArticle(context.Background(), ca)
	require.ErrorIs(t, err, ErrInvalidReference)
}

func TestCreateCustomerArticleDuplicateSerial(t *testing.T) {
	svc := newTestService(t, false)
	a := seedArticle(t, svc, "REF-001", 10, 24)

	ca := &CustomerArticle{ClientID: 1, ArticleID: a.ID, NumeroSerie: "SN-1", DateAchat: time.Now()}
	require.NoError(t, svc.CreateCustomerArticle(context.Background(), ca))

	dup := &CustomerArticle{ClientID: 2, ArticleID: a.ID, NumeroSerie: "SN-1", DateAchat: time.Now()}
	err := svc.CreateCustomerArticle(context.Background(), dup)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestVerifyWarrantyPersistsChangedFlag(t *testing.T) {
	svc := newTestService(t, false)
	a := seedArticle(t, svc, "REF-001", 10, 24)

	ca := &CustomerArticle{ClientID: 1, ArticleID: a.ID, NumeroSerie: "SN-1", DateAchat: time.Now()}
	require.NoError(t, svc.CreateCustomerArticle(context.Background(), ca))
	require.True(t, ca.EstSousGarantie)

	// Simulate a stale flag against an expired stored end date.
	require.NoError(t, svc.db.Model(&CustomerArticle{}).Where("id = ?", ca.ID).
		Update("date_fin_garantie", time.Now().AddDate(0, 0, -1)).Error)

	active, err := svc.VerifyWarranty(context.Background(), ca.ID)
	require.NoError(t, err)
	require.False(t, active)

	stored, err := svc.CustomerArticleByID(context.Background(), ca.ID)
	require.NoError(t, err)
	require.False(t, stored.EstSousGarantie)
	require.NotNil(t, stored.DateMiseAJour)
}

func TestVerifyWarrantyUsesStoredEndDate(t *testing.T) {
	svc := newTestService(t, false)
	a := seedArticle(t, svc, "REF-001", 10, 24)

	ca := &CustomerArticle{ClientID: 1, ArticleID: a.ID, NumeroSerie: "SN-1", DateAchat: time.Now()}
	require.NoError(t, svc.CreateCustomerArticle(context.Background(), ca))

	// Shortening the catalogue duration afterwards must not affect the
	// verification, which reads the stored end date only.
	a.DureeGarantie = 0
	_, err := svc.UpdateArticle(context.Background(), a.ID, a)
	require.NoError(t, err)

	active, err := svc.VerifyWarranty(context.Background(), ca.ID)
	require.NoError(t, err)
	require.True(t, active)
}

func TestMyArticlesBuildsDisplayRecords(t *testing.T) {
	svc := newTestService(t, false)
	a := seedArticle(t, svc, "REF-001", 10, 24)

	ca := &CustomerArticle{ClientID: 7, ArticleID: a.ID, NumeroSerie: "SN-7", DateAchat: time.Now()}
	require.NoError(t, svc.CreateCustomerArticle(context.Background(), ca))

	out, err := svc.MyArticles(context.Background(), 7)
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "Grohe - Mitigeur thermostatique - Modèle GRT-300", out[0].DisplayName)
	require.Equal(t, "SN-7", out[0].SerialNumber)
	require.True(t, out[0].EstSousGarantie)
}
