package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Kind distinguishes one-time purchases from recurring subscriptions. The
// values mirror the catalog wire format.
type Kind string

const (
	KindPurchase     Kind = "compra"
	KindSubscription Kind = "assinatura"
)

// Period is the billing cadence of a subscription entry.
type Period string

const (
	PeriodNone       Period = ""
	PeriodSevenDay   Period = "7dias"
	PeriodFifteenDay Period = "15dias"
	PeriodMonthly    Period = "mensal"
	PeriodYearly     Period = "anual"
)

// ProductID is a catalog product key. The upstream catalog mixes numeric ids
// for regular products with string ids for synthesized subscription variants,
// so the JSON codec accepts both.
type ProductID string

func (id ProductID) String() string { return string(id) }

func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ProductID(n.String())
	return nil
}

func (id ProductID) MarshalJSON() ([]byte, error) {
	// Preserve the numeric form for ids that arrived as numbers.
	if _, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// Product is a single catalog entry. Field names follow the remote catalog
// document, which is the contract with the storefront content repository.
type Product struct {
	ID              ProductID `json:"id"`
	Title           string    `json:"titulo"`
	Description     string    `json:"descricao,omitempty"`
	LongDescription string    `json:"descricao_longa,omitempty"`
	Icon            string    `json:"icone,omitempty"`
	LargeImage      string    `json:"imagem_grande,omitempty"`
	Category        string    `json:"categoria,omitempty"`
	Kind            Kind      `json:"tipo,omitempty"`
	Period          Period    `json:"periodo,omitempty"`
	Featured        bool      `json:"destaque,omitempty"`

	Price         float64 `json:"preco,omitempty"`
	OriginalPrice float64 `json:"preco_original,omitempty"`
	MonthlyPrice  float64 `json:"preco_mensal,omitempty"`
	YearlyPrice   float64 `json:"preco_anual,omitempty"`

	DemoVideo   string   `json:"video_demo,omitempty"`
	Screenshots string   `json:"screenshots,omitempty"`
	Features    []string `json:"recursos,omitempty"`
}

// UnitPrice returns the price a cart entry for this product would carry:
// the one-time price for purchases, the cadence price for subscriptions.
func (p Product) UnitPrice() float64 {
	if p.Kind == KindSubscription {
		if p.Period == PeriodYearly && p.YearlyPrice > 0 {
			return p.YearlyPrice
		}
		if p.MonthlyPrice > 0 {
			return p.MonthlyPrice
		}
	}
	return p.Price
}

// ScreenshotURLs splits the comma-separated screenshot field.
func (p Product) ScreenshotURLs() []string {
	if strings.TrimSpace(p.Screenshots) == "" {
		return nil
	}
	parts := strings.Split(p.Screenshots, ",")
	urls := make([]string, 0, len(parts))
	for _, part := range parts {
		if u := strings.TrimSpace(part); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Bundle groups several products under a combined price.
type Bundle struct {
	ID          ProductID   `json:"id"`
	Title       string      `json:"titulo"`
	Description string      `json:"descricao,omitempty"`
	Icon        string      `json:"icone,omitempty"`
	ProductIDs  []ProductID `json:"produtos"`
	Price       float64     `json:"preco"`
	DiscountPct float64     `json:"desconto,omitempty"`
}

// CatalogSnapshot is one fetched version of the remote catalog document.
type CatalogSnapshot struct {
	Products     []Product   `json:"produtos"`
	LaunchBanner *Product    `json:"banner_lancamento,omitempty"`
	FeaturedIDs  []ProductID `json:"produtos_destaque,omitempty"`
	Bundles      []Bundle    `json:"pacotes,omitempty"`
}

// ProductByID returns the product with the given id, if present. Ids are
// unique within a snapshot.
func (s *CatalogSnapshot) ProductByID(id ProductID) (Product, bool) {
	if s == nil {
		return Product{}, false
	}
	for _, p := range s.Products {
		if p.ID == id {
			return p, true
		}
	}
	return Product{}, false
}

// ProductIndex builds an id lookup map over the snapshot products.
func (s *CatalogSnapshot) ProductIndex() map[ProductID]Product {
	if s == nil {
		return nil
	}
	idx := make(map[ProductID]Product, len(s.Products))
	for _, p := range s.Products {
		idx[p.ID] = p
	}
	return idx
}

// FeaturedProducts resolves the featured id list to products. Ids missing
// from the snapshot are skipped.
func (s *CatalogSnapshot) FeaturedProducts() []Product {
	if s == nil || len(s.FeaturedIDs) == 0 {
		return nil
	}
	out := make([]Product, 0, len(s.FeaturedIDs))
	for _, id := range s.FeaturedIDs {
		if p, ok := s.ProductByID(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// BundleTotal resolves a bundle's effective price. An explicit bundle price
// wins; otherwise the member products' unit prices are summed and the
// bundle's discount percentage, if any, is applied.
func (s *CatalogSnapshot) BundleTotal(b Bundle) float64 {
	if b.Price > 0 {
		return b.Price
	}
	var sum float64
	for _, id := range b.ProductIDs {
		if p, ok := s.ProductByID(id); ok {
			sum += p.UnitPrice()
		}
	}
	if b.DiscountPct > 0 {
		sum *= 1 - b.DiscountPct/100
	}
	return sum
}

// Clone deep-copies the snapshot so enrichment passes never mutate the raw
// fetched document.
func (s *CatalogSnapshot) Clone() *CatalogSnapshot {
	if s == nil {
		return nil
	}
	out := &CatalogSnapshot{}
	out.Products = append([]Product(nil), s.Products...)
	for i := range out.Products {
		out.Products[i].Features = append([]string(nil), s.Products[i].Features...)
	}
	if s.LaunchBanner != nil {
		banner := *s.LaunchBanner
		banner.Features = append([]string(nil), s.LaunchBanner.Features...)
		out.LaunchBanner = &banner
	}
	out.FeaturedIDs = append([]ProductID(nil), s.FeaturedIDs...)
	out.Bundles = append([]Bundle(nil), s.Bundles...)
	for i := range out.Bundles {
		out.Bundles[i].ProductIDs = append([]ProductID(nil), s.Bundles[i].ProductIDs...)
	}
	return out
}
