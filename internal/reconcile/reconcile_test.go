package reconcile

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/priceguard/sentinel/internal/audit"
	"github.com/priceguard/sentinel/internal/metrics"
	"github.com/priceguard/sentinel/internal/platformconfig"
	"github.com/priceguard/sentinel/internal/sor"
)

type fakeStore struct {
	rows     map[string]*sor.Product
	reviews  []sor.ReviewHistoryEntry
	prices   []sor.PriceHistoryEntry
	applyErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: map[string]*sor.Product{}}
}

func key(platform, productID string) string { return platform + "/" + productID }

func (f *fakeStore) Get(ctx context.Context, platform, productID string) (*sor.Product, error) {
	row, ok := f.rows[key(platform, productID)]
	if !ok {
		row = &sor.Product{Platform: platform, ProductID: productID}
		f.rows[key(platform, productID)] = row
	}
	return row, nil
}

func (f *fakeStore) ListByPlatformAndSaleState(ctx context.Context, platform, saleState string) ([]*sor.Product, error) {
	var out []*sor.Product
	for _, row := range f.rows {
		if row.Platform == platform && row.SaleState == saleState {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeStore) ApplyUpdate(ctx context.Context, platform, productID string, fields map[string]any) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	row, _ := f.Get(ctx, platform, productID)
	for k, v := range fields {
		switch k {
		case "name":
			row.Name = v.(string)
		case "thumbnail":
			row.Thumbnail = v.(string)
		case "original_price":
			row.OriginalPrice = v.(float64)
		case "discounted_price":
			row.DiscountedPrice = v.(float64)
		case "sale_state":
			row.SaleState = v.(string)
		}
	}
	return nil
}

func (f *fakeStore) RecordReview(ctx context.Context, entry sor.ReviewHistoryEntry) error {
	f.reviews = append(f.reviews, entry)
	return nil
}

func (f *fakeStore) RecordPriceChange(ctx context.Context, entry sor.PriceHistoryEntry) error {
	f.prices = append(f.prices, entry)
	return nil
}

func writeAuditLog(t *testing.T, records []audit.Record) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "job.jsonl")
	w := audit.NewWriter()
	if err := w.Initialize(path, audit.Header{JobID: "j1", Platform: "hwahae"}); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	for _, r := range records {
		if err := w.Append(r); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	if err := w.Finalize(time.Now()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	return path
}

func TestRunAppliesMismatchedFields(t *testing.T) {
	records := []audit.Record{
		{
			Platform:  "hwahae",
			ProductID: "p1",
			Status:    audit.StatusSuccess,
			Match:     false,
			DB:        audit.Snapshot{Name: "Old", OriginalPrice: 100, SaleState: "off_sale"},
			Fetch:     &audit.Snapshot{Name: "New", OriginalPrice: 90, SaleState: "on_sale"},
			Comparison: &audit.Comparison{
				Name:            false,
				Thumbnail:       true,
				OriginalPrice:   false,
				DiscountedPrice: true,
				SaleState:       false,
			},
		},
	}
	path := writeAuditLog(t, records)
	store := newFakeStore()

	res, err := Run(context.Background(), path, "hwahae", nil, store, Config{}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Updated != 1 {
		t.Fatalf("Updated = %d, want 1", res.Updated)
	}
	row := store.rows[key("hwahae", "p1")]
	if row.Name != "New" || row.OriginalPrice != 90 || row.SaleState != "on_sale" {
		t.Fatalf("row = %+v", row)
	}
	if len(store.reviews) != 1 {
		t.Fatalf("len(reviews) = %d, want 1", len(store.reviews))
	}
	if len(store.prices) != 1 {
		t.Fatalf("len(prices) = %d, want 1 (original_price changed)", len(store.prices))
	}
}

func TestRunRecordsMetrics(t *testing.T) {
	records := []audit.Record{
		{
			Platform:  "hwahae",
			ProductID: "p1",
			Status:    audit.StatusSuccess,
			Match:     false,
			DB:        audit.Snapshot{Name: "Old", OriginalPrice: 100, SaleState: "off_sale"},
			Fetch:     &audit.Snapshot{Name: "New", OriginalPrice: 90, SaleState: "on_sale"},
			Comparison: &audit.Comparison{
				Name: false, Thumbnail: true, OriginalPrice: false, DiscountedPrice: true, SaleState: false,
			},
		},
	}
	path := writeAuditLog(t, records)
	store := newFakeStore()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	if _, err := Run(context.Background(), path, "hwahae", nil, store, Config{}, m); err != nil {
		t.Fatalf("Run: %v", err)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	var updated float64
	for _, mf := range families {
		if mf.GetName() != "sentinel_reconcile_items_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "outcome" && lp.GetValue() == "updated" {
					updated = metric.GetCounter().GetValue()
				}
			}
		}
	}
	if updated != 1 {
		t.Fatalf("reconcile items{outcome=updated} = %v, want 1", updated)
	}
}

func TestRunSkipsExcludedFields(t *testing.T) {
	records := []audit.Record{
		{
			Platform:  "hwahae",
			ProductID: "p1",
			Status:    audit.StatusSuccess,
			Match:     false,
			DB:        audit.Snapshot{Name: "Old"},
			Fetch:     &audit.Snapshot{Name: "New"},
			Comparison: &audit.Comparison{
				Name:            false,
				Thumbnail:       true,
				OriginalPrice:   true,
				DiscountedPrice: true,
				SaleState:       true,
			},
		},
	}
	path := writeAuditLog(t, records)
	store := newFakeStore()
	policy := &platformconfig.Config{
		UpdateExclusions: platformconfig.ExclusionPolicy{SkipFields: []string{"name"}},
	}

	res, err := Run(context.Background(), path, "hwahae", policy, store, Config{}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Updated != 0 {
		t.Fatalf("Updated = %d, want 0 (only excluded field changed)", res.Updated)
	}
	if res.Skipped != 1 {
		t.Fatalf("Skipped = %d, want 1", res.Skipped)
	}
}

func TestRunHandlesFetchNullOnSale(t *testing.T) {
	records := []audit.Record{
		{
			Platform:  "hwahae",
			ProductID: "p1",
			Status:    audit.StatusSuccess,
			Match:     false,
			DB:        audit.Snapshot{SaleState: "on_sale"},
			Fetch:     nil,
		},
	}
	path := writeAuditLog(t, records)
	store := newFakeStore()

	res, err := Run(context.Background(), path, "hwahae", nil, store, Config{}, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Updated != 1 {
		t.Fatalf("Updated = %d, want 1", res.Updated)
	}
	row := store.rows[key("hwahae", "p1")]
	if row.SaleState != "off_sale" {
		t.Fatalf("SaleState = %q, want off_sale", row.SaleState)
	}
	if store.reviews[0].Classification != sor.ReviewConfused {
		t.Fatalf("Classification = %v", store.reviews[0].Classification)
	}
}
