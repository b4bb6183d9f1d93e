package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kortstore/internal/domain"
)

func rawSnapshot() *domain.CatalogSnapshot {
	return &domain.CatalogSnapshot{Products: []domain.Product{
		{ID: "1", Title: "KORT Optimizer", Price: 49.90, Category: "Otimização", Icon: "kort.png"},
		{ID: "2", Title: "Shield", Price: 29.90, Category: "Segurança"},
		{ID: "3", Title: "Unknown Tool", Price: 9.90, Category: "Planilhas"},
	}}
}

func TestPrepareAssignsDemoMedia(t *testing.T) {
	snap := Prepare(rawSnapshot())

	byID := snap.ProductIndex()
	assert.Equal(t, categoryScreenshots["Otimização"], byID["1"].Screenshots)
	assert.Equal(t, categoryVideos["Segurança"], byID["2"].DemoVideo)
	assert.Equal(t, defaultScreenshots, byID["3"].Screenshots)
	assert.Equal(t, defaultVideo, byID["3"].DemoVideo)
}

func TestPrepareKeepsExistingMedia(t *testing.T) {
	raw := rawSnapshot()
	raw.Products[0].Screenshots = "https://example.com/own.png"
	raw.Products[0].DemoVideo = "https://example.com/own.mp4"

	snap := Prepare(raw)

	p, _ := snap.ProductByID("1")
	assert.Equal(t, "https://example.com/own.png", p.Screenshots)
	assert.Equal(t, "https://example.com/own.mp4", p.DemoVideo)
}

func TestPrepareSynthesizesFlagshipPlans(t *testing.T) {
	snap := Prepare(rawSnapshot())

	plans := map[domain.ProductID]domain.Product{}
	for _, p := range snap.Products {
		if p.Kind == domain.KindSubscription {
			plans[p.ID] = p
		}
	}
	require.Len(t, plans, 4)

	weekly := plans["kortex5-7dias"]
	assert.Equal(t, "Kortex 5", weekly.Title)
	assert.Equal(t, domain.PeriodSevenDay, weekly.Period)
	assert.Equal(t, 9.90, weekly.MonthlyPrice)

	biweekly := plans["kortex5-15dias"]
	assert.Equal(t, 14.90, biweekly.MonthlyPrice)

	monthly := plans["kortex5-mensal"]
	assert.Equal(t, 19.90, monthly.MonthlyPrice)
	assert.True(t, monthly.Featured)
	assert.Equal(t, 19.90, monthly.UnitPrice())

	yearly := plans["kortex5-anual"]
	assert.Equal(t, 19.90, yearly.MonthlyPrice)
	assert.Equal(t, 179.90, yearly.YearlyPrice)
	assert.Equal(t, 179.90, yearly.UnitPrice())

	// Plans inherit the flagship's icon and get the Otimização media.
	assert.Equal(t, "kort.png", weekly.Icon)
	assert.Equal(t, categoryScreenshots["Otimização"], weekly.Screenshots)
}

func TestPrepareSkipsPlansShippedUnderLegacyTitle(t *testing.T) {
	raw := rawSnapshot()
	raw.Products = append(raw.Products, domain.Product{
		ID:           "opt-monthly",
		Title:        "KORT Optimizer",
		Kind:         domain.KindSubscription,
		Period:       domain.PeriodMonthly,
		MonthlyPrice: 24.90,
	})

	snap := Prepare(raw)

	monthly := 0
	for _, p := range snap.Products {
		if p.Kind == domain.KindSubscription && p.Period == domain.PeriodMonthly {
			monthly++
		}
	}
	assert.Equal(t, 1, monthly, "source-provided monthly plan must not be duplicated")

	_, synthesized := snap.ProductByID("kortex5-mensal")
	assert.False(t, synthesized)
	_, yearly := snap.ProductByID("kortex5-anual")
	assert.True(t, yearly, "missing periods are still synthesized")
}

func TestPrepareIsIdempotentPerDocument(t *testing.T) {
	raw := rawSnapshot()

	first := Prepare(raw)
	second := Prepare(first)

	assert.Equal(t, len(first.Products), len(second.Products), "already synthesized plans are not duplicated")
}

func TestPrepareDoesNotMutateRawSnapshot(t *testing.T) {
	raw := rawSnapshot()
	_ = Prepare(raw)

	assert.Len(t, raw.Products, 3)
	assert.Empty(t, raw.Products[0].Screenshots)
}

func TestPrepareWithoutFlagship(t *testing.T) {
	snap := Prepare(&domain.CatalogSnapshot{Products: []domain.Product{
		{ID: "9", Title: "Outro", Price: 5},
	}})

	assert.Len(t, snap.Products, 1, "no flagship, no synthetic plans")
}
