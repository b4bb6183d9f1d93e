package catalog

import (
	"strings"

	"kortstore/internal/domain"
)

// Category-based placeholder media assigned to products that ship without
// demo content. Assignment is deterministic so repeated passes over the same
// raw snapshot produce identical results.
var categoryScreenshots = map[string]string{
	"Otimização":    "https://i.imgur.com/print_app.png,https://i.imgur.com/print_app2.png,https://i.imgur.com/print_app3.png",
	"Segurança":     "https://i.imgur.com/security_app1.png,https://i.imgur.com/security_app2.png,https://i.imgur.com/security_app3.png",
	"Produtividade": "https://i.imgur.com/productivity_app1.png,https://i.imgur.com/productivity_app2.png,https://i.imgur.com/productivity_app3.png",
}

var categoryVideos = map[string]string{
	"Otimização":    "https://www.youtube.com/watch?v=demo_optimization",
	"Segurança":     "https://www.youtube.com/watch?v=demo_security",
	"Produtividade": "https://www.youtube.com/watch?v=demo_productivity",
}

const (
	defaultScreenshots = "https://i.imgur.com/default_app1.png,https://i.imgur.com/default_app2.png,https://i.imgur.com/default_app3.png"
	defaultVideo       = "https://www.youtube.com/watch?v=default_demo"

	flagshipTitle       = "Kortex 5"
	flagshipLegacyTitle = "KORT Optimizer"
	flagshipNumericID   = domain.ProductID("1")
)

// Prepare returns a display-ready copy of the raw snapshot: demo media for
// every product plus synthesized flagship subscription plans. The raw
// snapshot is never mutated and never written back to the source, so the
// pass is idempotent per fetched document.
func Prepare(raw *domain.CatalogSnapshot) *domain.CatalogSnapshot {
	if raw == nil {
		return nil
	}
	snap := raw.Clone()
	enrichDemoMedia(snap)
	synthesizeFlagshipPlans(snap)
	return snap
}

func enrichDemoMedia(snap *domain.CatalogSnapshot) {
	for i := range snap.Products {
		p := &snap.Products[i]
		if p.Screenshots == "" {
			p.Screenshots = screenshotsFor(p)
		}
		if p.DemoVideo == "" {
			p.DemoVideo = videoFor(p)
		}
	}
}

func screenshotsFor(p *domain.Product) string {
	if s, ok := categoryScreenshots[p.Category]; ok {
		return s
	}
	if strings.Contains(p.Title, "Kortex") {
		return categoryScreenshots["Otimização"]
	}
	return defaultScreenshots
}

func videoFor(p *domain.Product) string {
	if v, ok := categoryVideos[p.Category]; ok {
		return v
	}
	if strings.Contains(p.Title, "Kortex") {
		return categoryVideos["Otimização"]
	}
	return defaultVideo
}

// synthesizeFlagshipPlans appends the weekly, biweekly, monthly and yearly
// subscription variants of the flagship product when the snapshot does not
// carry them. Synthetic ids are fixed, so a snapshot that already contains
// them (from a previous pass or from the source itself) gains nothing.
func synthesizeFlagshipPlans(snap *domain.CatalogSnapshot) {
	flagship := findFlagship(snap)
	if flagship == nil {
		return
	}

	plans := []struct {
		id       domain.ProductID
		period   domain.Period
		desc     string
		monthly  float64
		yearly   float64
		featured bool
		lastFeat string
	}{
		{"kortex5-7dias", domain.PeriodSevenDay, "Acesso por 7 dias ao otimizador completo", 9.90, 0, false, "Acesso por 7 dias"},
		{"kortex5-15dias", domain.PeriodFifteenDay, "Acesso por 15 dias ao otimizador completo", 14.90, 0, false, "Acesso por 15 dias"},
		{"kortex5-mensal", domain.PeriodMonthly, "Assinatura mensal do otimizador completo", 19.90, 0, true, "Atualizações mensais"},
		{"kortex5-anual", domain.PeriodYearly, "Assinatura anual do otimizador completo", 19.90, 179.90, true, "Atualizações por um ano"},
	}

	for _, plan := range plans {
		if hasFlagshipPlan(snap, plan.id, plan.period) {
			continue
		}
		longDesc := flagship.LongDescription
		if longDesc == "" {
			longDesc = "O Kortex 5 é a solução definitiva para otimização de sistema, internet e desempenho."
		}
		largeImage := flagship.LargeImage
		if largeImage == "" {
			largeImage = flagship.Icon
		}
		snap.Products = append(snap.Products, domain.Product{
			ID:              plan.id,
			Title:           flagshipTitle,
			Description:     plan.desc,
			LongDescription: longDesc,
			Icon:            flagship.Icon,
			LargeImage:      largeImage,
			Category:        "Otimização",
			Kind:            domain.KindSubscription,
			Period:          plan.period,
			Featured:        plan.featured,
			MonthlyPrice:    plan.monthly,
			YearlyPrice:     plan.yearly,
			DemoVideo:       flagship.DemoVideo,
			Screenshots:     categoryScreenshots["Otimização"],
			Features: []string{
				"Otimização de sistema",
				"Acelerador de internet",
				"Limpeza de arquivos",
				"Proteção em tempo real",
				plan.lastFeat,
			},
		})
	}
}

func findFlagship(snap *domain.CatalogSnapshot) *domain.Product {
	for i := range snap.Products {
		p := &snap.Products[i]
		if p.Title == flagshipTitle || p.Title == flagshipLegacyTitle || p.ID == flagshipNumericID {
			return p
		}
	}
	return nil
}

// hasFlagshipPlan recognizes an existing variant by its synthetic id or by a
// subscription for the same period under either flagship title, so a source
// document that already ships plans never gains duplicates.
func hasFlagshipPlan(snap *domain.CatalogSnapshot, id domain.ProductID, period domain.Period) bool {
	for _, p := range snap.Products {
		if p.ID == id {
			return true
		}
		if p.Kind != domain.KindSubscription || p.Period != period {
			continue
		}
		if p.Title == flagshipTitle || p.Title == flagshipLegacyTitle {
			return true
		}
	}
	return false
}
