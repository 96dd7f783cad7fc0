package interventions

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/diewo77/sav-suite/internal/config"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// Use a unique in-memory database per test to avoid cross-test collisions.
	dsn := "file:" + t.Name() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Intervention{}, &InterventionPart{}, &Technicien{}))
	return db
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := config.Config{
		HourlyRateDefault:   decimal.NewFromInt(40),
		TravelAmountDefault: decimal.NewFromInt(15),
		VATRateDefault:      decimal.RequireFromString("0.19"),
	}
	return NewService(setupTestDB(t), zap.NewNop(), cfg)
}

func seedIntervention(t *testing.T, svc *Service, underWarranty bool) *Intervention {
	t.Helper()
	iv := &Intervention{
		ReclamationID:     1,
		ClientID:          1,
		ArticleID:         1,
		Description:       "Remplacement cartouche",
		DateIntervention:  time.Now(),
		EstSousGarantie:   underWarranty,
		TechnicienNom:     "M. Ba",
		DureeIntervention: decimal.NewFromInt(2),
	}
	require.NoError(t, svc.Create(context.Background(), iv))
	return iv
}

func TestCreateAppliesBillingDefaults(t *testing.T) {
	svc := newTestService(t)
	iv := seedIntervention(t, svc, false)

	require.True(t, iv.TarifHoraire.Equal(decimal.NewFromInt(40)))
	require.True(t, iv.MontantDeplacement.Equal(decimal.NewFromInt(15)))
	require.True(t, iv.TauxTVA.Equal(decimal.RequireFromString("0.19")))
	require.Equal(t, StatutPlanifiee, iv.Statut)
	// 2h × 40, no parts yet.
	require.Equal(t, "80.00", iv.MontantMainOeuvre.StringFixed(2))
	require.Equal(t, "80.00", iv.MontantTotal.StringFixed(2))
}

func TestRunningTotalIsZeroUnderWarranty(t *testing.T) {
	svc := newTestService(t)
	iv := seedIntervention(t, svc, true)
	require.True(t, iv.MontantTotal.IsZero())

	got, err := svc.AddPart(context.Background(), iv.ID, &InterventionPart{
		NomPiece: "Cartouche", Quantite: 2, PrixUnitaire: decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	require.True(t, got.MontantTotal.IsZero())

	total, err := svc.TotalCost(context.Background(), iv.ID)
	require.NoError(t, err)
	require.True(t, total.IsZero())
}

func TestAddPartRefreshesRunningTotal(t *testing.T) {
	svc := newTestService(t)
	iv := seedIntervention(t, svc, false)

	got, err := svc.AddPart(context.Background(), iv.ID, &InterventionPart{
		NomPiece: "Cartouche", Quantite: 2, PrixUnitaire: decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	// parts 100 + labor 80; travel and VAT wait for the close.
	require.Equal(t, "180.00", got.MontantTotal.StringFixed(2))
}

func TestUpdatePartRecomputesLineAndTotal(t *testing.T) {
	svc := newTestService(t)
	iv := seedIntervention(t, svc, false)

	_, err := svc.AddPart(context.Background(), iv.ID, &InterventionPart{
		NomPiece: "Cartouche", Quantite: 2, PrixUnitaire: decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	parts, err := svc.Parts(context.Background(), iv.ID)
	require.NoError(t, err)
	require.Len(t, parts, 1)

	got, err := svc.UpdatePart(context.Background(), iv.ID, parts[0].ID, &InterventionPart{
		NomPiece: "Cartouche céramique", Quantite: 3, PrixUnitaire: decimal.NewFromInt(20),
	})
	require.NoError(t, err)
	require.Equal(t, "140.00", got.MontantTotal.StringFixed(2))

	parts, err = svc.Parts(context.Background(), iv.ID)
	require.NoError(t, err)
	require.Equal(t, "60.00", parts[0].PrixTotal.StringFixed(2))
}

func TestRemovePartRefreshesRunningTotal(t *testing.T) {
	svc := newTestService(t)
	iv := seedIntervention(t, svc, false)

	_, err := svc.AddPart(context.Background(), iv.ID, &InterventionPart{
		NomPiece: "Cartouche", Quantite: 2, PrixUnitaire: decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	parts, err := svc.Parts(context.Background(), iv.ID)
	require.NoError(t, err)

	got, err := svc.RemovePart(context.Background(), parts[0].ID)
	require.NoError(t, err)
	require.Equal(t, "80.00", got.MontantTotal.StringFixed(2))
}

func TestCloseComputesInvoice(t *testing.T) {
	svc := newTestService(t)
	iv := seedIntervention(t, svc, false)

	_, err := svc.AddPart(context.Background(), iv.ID, &InterventionPart{
		NomPiece: "Cartouche", Quantite: 2, PrixUnitaire: decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	closed, inv, err := svc.Close(context.Background(), iv.ID, CloseInput{ModePaiement: "CB", Commentaire: "RAS"})
	require.NoError(t, err)

	// (100 + 80 + 15) = 195.00, VAT 19% = 37.05, total 232.05.
	require.Equal(t, "100.00", inv.MontantPieces.StringFixed(2))
	require.Equal(t, "80.00", inv.MontantMainOeuvre.StringFixed(2))
	require.Equal(t, "15.00", inv.Deplacement.StringFixed(2))
	require.Equal(t, "195.00", inv.SousTotal.StringFixed(2))
	require.Equal(t, "37.05", inv.TVA.StringFixed(2))
	require.Equal(t, "232.05", inv.Total.StringFixed(2))

	require.Equal(t, StatutTerminee, closed.Statut)
	require.Equal(t, "CB", closed.ModePaiement)
	require.Equal(t, "Payé", closed.StatutPaiement)
	require.Equal(t, "232.05", closed.MontantTotal.StringFixed(2))
}

func TestCloseBillsEvenUnderWarranty(t *testing.T) {
	// The running total is zero under warranty, but the closing invoice
	// applies the full bill whatever the flag says.
	svc := newTestService(t)
	iv := seedIntervention(t, svc, true)

	_, err := svc.AddPart(context.Background(), iv.ID, &InterventionPart{
		NomPiece: "Cartouche", Quantite: 2, PrixUnitaire: decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	_, inv, err := svc.Close(context.Background(), iv.ID, CloseInput{})
	require.NoError(t, err)
	require.Equal(t, "232.05", inv.Total.StringFixed(2))
}

func TestCloseAppliesRequestFigures(t *testing.T) {
	// The usual workflow: the duration is only known when the job ends,
	// so the close request carries the final billing figures.
	svc := newTestService(t)
	iv := &Intervention{
		ReclamationID:    1,
		ClientID:         1,
		ArticleID:        1,
		Description:      "Remplacement cartouche",
		DateIntervention: time.Now(),
	}
	require.NoError(t, svc.Create(context.Background(), iv))
	require.True(t, iv.DureeIntervention.IsZero())

	_, err := svc.AddPart(context.Background(), iv.ID, &InterventionPart{
		NomPiece: "Cartouche", Quantite: 2, PrixUnitaire: decimal.NewFromInt(50),
	})
	require.NoError(t, err)

	closed, inv, err := svc.Close(context.Background(), iv.ID, CloseInput{
		DureeIntervention:  decimal.NewFromInt(2),
		TarifHoraire:       decimal.NewFromInt(40),
		MontantDeplacement: decimal.NewFromInt(15),
		TauxTVA:            decimal.RequireFromString("0.19"),
		ModePaiement:       "CB",
		StatutPaiement:     "En attente",
	})
	require.NoError(t, err)

	require.Equal(t, "80.00", inv.MontantMainOeuvre.StringFixed(2))
	require.Equal(t, "232.05", inv.Total.StringFixed(2))
	require.Equal(t, "En attente", closed.StatutPaiement)
	require.True(t, closed.DureeIntervention.Equal(decimal.NewFromInt(2)))

	stored, err := svc.ByID(context.Background(), iv.ID)
	require.NoError(t, err)
	require.Equal(t, "232.05", stored.MontantTotal.StringFixed(2))
	require.True(t, stored.DureeIntervention.Equal(decimal.NewFromInt(2)))
}

func TestCloseMissingIntervention(t *testing.T) {
	svc := newTestService(t)
	_, _, err := svc.Close(context.Background(), 999, CloseInput{ModePaiement: "CB"})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAddPartMissingIntervention(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.AddPart(context.Background(), 999, &InterventionPart{
		NomPiece: "Cartouche", Quantite: 1, PrixUnitaire: decimal.NewFromInt(10),
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteRemovesParts(t *testing.T) {
	svc := newTestService(t)
	iv := seedIntervention(t, svc, false)

	_, err := svc.AddPart(context.Background(), iv.ID, &InterventionPart{
		NomPiece: "Cartouche", Quantite: 1, PrixUnitaire: decimal.NewFromInt(10),
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), iv.ID))

	var count int64
	require.NoError(t, svc.db.Model(&InterventionPart{}).Where("intervention_id = ?", iv.ID).Count(&count).Error)
	require.Zero(t, count)
}

func TestByReclamationNewestFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		iv := &Intervention{
			ReclamationID: 5, ClientID: 1, ArticleID: 1,
			Description:      "Passage",
			DateIntervention: time.Now(),
		}
		require.NoError(t, svc.Create(ctx, iv))
		// Spread creation instants so the ordering is observable.
		require.NoError(t, svc.db.Model(iv).
			Update("date_creation", time.Now().Add(time.Duration(i)*time.Minute)).Error)
	}

	out, err := svc.ByReclamation(ctx, 5)
	require.NoError(t, err)
	require.Len(t, out, 3)
	require.True(t, out[0].DateCreation.After(out[1].DateCreation))
	require.True(t, out[1].DateCreation.After(out[2].DateCreation))
}

func TestConcurrentAddPartsSerialised(t *testing.T) {
	svc := newTestService(t)
	iv := seedIntervention(t, svc, false)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddPart(context.Background(), iv.ID, &InterventionPart{
				NomPiece: "Joint", Quantite: 1, PrixUnitaire: decimal.NewFromInt(5),
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := svc.ByID(context.Background(), iv.ID)
	require.NoError(t, err)
	require.Len(t, got.Pieces, 8)
	// 8 × 5 parts + 80 labor.
	require.Equal(t, "120.00", got.MontantTotal.StringFixed(2))
}

func TestTodayFiltersByCalendarDay(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	today := &Intervention{ReclamationID: 1, ClientID: 1, ArticleID: 1,
		Description: "Aujourd'hui", DateIntervention: time.Now()}
	require.NoError(t, svc.Create(ctx, today))
	tomorrow := &Intervention{ReclamationID: 2, ClientID: 1, ArticleID: 1,
		Description: "Demain", DateIntervention: time.Now().AddDate(0, 0, 1)}
	require.NoError(t, svc.Create(ctx, tomorrow))

	out, err := svc.Today(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, today.ID, out[0].ID)
}

func TestTechnicienCRUD(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	tech := &Technicien{Nom: "Ba", Prenom: "Moussa", Specialite: "Plomberie"}
	require.NoError(t, svc.CreateTechnicien(ctx, tech))

	got, err := svc.UpdateTechnicien(ctx, tech.ID, &Technicien{Nom: "Ba", Prenom: "Moussa", Telephone: "0708"})
	require.NoError(t, err)
	require.Equal(t, "0708", got.Telephone)
	require.Empty(t, got.Specialite)

	require.NoError(t, svc.DeleteTechnicien(ctx, tech.ID))
	_, err = svc.TechnicienByID(ctx, tech.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
