// Package reconcile implements the reconciliation stage (spec §4.I): it
// reads a finished workflow run's audit log, builds sparse field-masked
// updates, applies a platform's exclusion policy, and writes the result to
// the source of record in batches.
package reconcile

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/priceguard/sentinel/internal/audit"
	"github.com/priceguard/sentinel/internal/metrics"
	"github.com/priceguard/sentinel/internal/platformconfig"
	"github.com/priceguard/sentinel/internal/sor"
)

// onSaleSynonyms are upstream strings normalized to the closed sale_state
// enum's "on_sale" value (spec §4.I step 3 / §9 Open Question 1). Anything
// else, including the empty string, normalizes to off_sale.
var onSaleSynonyms = map[string]bool{
	"on_sale": true,
	"onsale":  true,
	"sale":    true,
	"true":    true,
}

func normalizeSaleState(raw string) string {
	if onSaleSynonyms[strings.ToLower(strings.TrimSpace(raw))] {
		return "on_sale"
	}
	return "off_sale"
}

// Update is one product's pending source-of-record write.
type Update struct {
	Platform       string
	ProductID      string
	Fields         map[string]any
	Before         audit.Snapshot
	After          audit.Snapshot
	Classification sor.ReviewClassification
	FetchNull      bool
}

// Result summarizes one reconciliation run.
type Result struct {
	Parsed             int
	Eligible           int
	Updated            int
	Skipped            int
	Errors             []string
	VerificationPassed bool
	VerificationRan    bool
}

// Config tunes batching and verification sampling.
type Config struct {
	BatchSize          int
	BatchDelay         time.Duration
	VerificationSample float64 // fraction in [0,1] of updated records to re-check
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 20
	}
	if c.BatchDelay <= 0 {
		c.BatchDelay = 200 * time.Millisecond
	}
	return c
}

// Run executes the full reconciliation pipeline for one audit log. m is
// optional; a nil value disables instrumentation.
func Run(ctx context.Context, logPath, platform string, policy *platformconfig.Config, store sor.Store, cfg Config, m *metrics.Metrics) (*Result, error) {
	cfg = cfg.withDefaults()

	log, err := audit.ReadFile(logPath)
	if err != nil {
		return nil, fmt.Errorf("reconcile: read audit log: %w", err)
	}

	res := &Result{Parsed: len(log.Records)}

	var updates []Update
	for _, rec := range log.Records {
		if u, ok := buildUpdate(rec); ok {
			updates = append(updates, u)
		}
	}
	res.Eligible = len(updates)

	if policy != nil {
		for i := range updates {
			for field := range updates[i].Fields {
				if policy.IsExcluded(field) {
					delete(updates[i].Fields, field)
				}
			}
		}
	}

	filtered := updates[:0]
	for _, u := range updates {
		if len(u.Fields) == 0 {
			res.Skipped++
			if m != nil {
				m.IncReconcileItem(platform, "skipped")
			}
			continue
		}
		filtered = append(filtered, u)
	}
	updates = filtered

	for start := 0; start < len(updates); start += cfg.BatchSize {
		end := start + cfg.BatchSize
		if end > len(updates) {
			end = len(updates)
		}
		batch := updates[start:end]

		for _, u := range batch {
			if err := applyOne(ctx, store, u); err != nil {
				res.Errors = append(res.Errors, fmt.Sprintf("%s/%s: %v", u.Platform, u.ProductID, err))
				if m != nil {
					m.IncReconcileItem(platform, "error")
				}
				continue
			}
			res.Updated++
			if m != nil {
				m.IncReconcileItem(platform, "updated")
			}
		}
		if m != nil {
			m.IncReconcileBatch(platform)
		}

		if end < len(updates) {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(cfg.BatchDelay):
			}
		}
	}

	if cfg.VerificationSample > 0 && res.Updated > 0 {
		res.VerificationRan = true
		res.VerificationPassed = verify(ctx, store, updates, cfg.VerificationSample)
	}

	return res, nil
}

func buildUpdate(rec audit.Record) (Update, bool) {
	fetchNullEligible := rec.Status == audit.StatusSuccess || rec.Status == audit.StatusNotFound
	if fetchNullEligible && rec.Fetch == nil && rec.DB.SaleState == "on_sale" {
		return Update{
			Platform:       rec.Platform,
			ProductID:      rec.ProductID,
			Fields:         map[string]any{"sale_state": "off_sale"},
			Before:         rec.DB,
			After:          audit.Snapshot{SaleState: "off_sale"},
			Classification: sor.ReviewConfused,
			FetchNull:      true,
		}, true
	}

	if rec.Status != audit.StatusSuccess {
		return Update{}, false
	}

	if rec.Match || rec.Fetch == nil || rec.Comparison == nil {
		return Update{}, false
	}

	fields := map[string]any{}
	priceChanged := false
	onlyPrice := true

	if !rec.Comparison.Name {
		fields["name"] = rec.Fetch.Name
		onlyPrice = false
	}
	if !rec.Comparison.Thumbnail {
		fields["thumbnail"] = rec.Fetch.Thumbnail
		onlyPrice = false
	}
	if !rec.Comparison.OriginalPrice && rec.Fetch.OriginalPrice != 0 {
		fields["original_price"] = rec.Fetch.OriginalPrice
		priceChanged = true
	}
	if !rec.Comparison.DiscountedPrice && rec.Fetch.DiscountedPrice != 0 {
		fields["discounted_price"] = rec.Fetch.DiscountedPrice
		priceChanged = true
	}
	if !rec.Comparison.SaleState {
		fields["sale_state"] = normalizeSaleState(rec.Fetch.SaleState)
		onlyPrice = false
	}

	if len(fields) == 0 {
		return Update{}, false
	}

	classification := sor.ReviewAll
	if onlyPrice && priceChanged {
		classification = sor.ReviewOnlyPrice
	}

	return Update{
		Platform:       rec.Platform,
		ProductID:      rec.ProductID,
		Fields:         fields,
		Before:         rec.DB,
		After:          *rec.Fetch,
		Classification: classification,
	}, true
}

func applyOne(ctx context.Context, store sor.Store, u Update) error {
	if err := store.ApplyUpdate(ctx, u.Platform, u.ProductID, u.Fields); err != nil {
		return err
	}

	comment := reviewComment(u)
	if err := store.RecordReview(ctx, sor.ReviewHistoryEntry{
		Platform:       u.Platform,
		ProductID:      u.ProductID,
		Classification: u.Classification,
		Comment:        comment,
	}); err != nil {
		return err
	}

	if _, changed := u.Fields["original_price"]; changed {
		return recordPrice(ctx, store, u)
	}
	if _, changed := u.Fields["discounted_price"]; changed {
		return recordPrice(ctx, store, u)
	}
	return nil
}

func recordPrice(ctx context.Context, store sor.Store, u Update) error {
	return store.RecordPriceChange(ctx, sor.PriceHistoryEntry{
		Platform:        u.Platform,
		ProductID:       u.ProductID,
		OriginalPrice:   u.After.OriginalPrice,
		DiscountedPrice: u.After.DiscountedPrice,
	})
}

// reviewComment builds the "field: before -> after" multi-line comment
// (spec §4.I "Comment generation"), or the fetch-null sentence.
func reviewComment(u Update) string {
	if u.FetchNull {
		return "fetch 가 실패했습니다\nsale_state: " + u.Before.SaleState + " -> off_sale"
	}

	var lines []string
	for field, newVal := range u.Fields {
		oldVal := fieldValue(u.Before, field)
		lines = append(lines, fmt.Sprintf("%s: %v -> %v", field, oldVal, newVal))
	}
	return strings.Join(lines, "\n")
}

func fieldValue(s audit.Snapshot, field string) any {
	switch field {
	case "name":
		return s.Name
	case "thumbnail":
		return s.Thumbnail
	case "original_price":
		return s.OriginalPrice
	case "discounted_price":
		return s.DiscountedPrice
	case "sale_state":
		return s.SaleState
	default:
		return nil
	}
}

func verify(ctx context.Context, store sor.Store, updates []Update, sample float64) bool {
	ok := true
	for _, u := range updates {
		if rand.Float64() > sample {
			continue
		}
		row, err := store.Get(ctx, u.Platform, u.ProductID)
		if err != nil {
			ok = false
			continue
		}
		for field, want := range u.Fields {
			if fmt.Sprint(fieldValue(audit.Snapshot{
				Name:            row.Name,
				Thumbnail:       row.Thumbnail,
				OriginalPrice:   row.OriginalPrice,
				DiscountedPrice: row.DiscountedPrice,
				SaleState:       row.SaleState,
			}, field)) != fmt.Sprint(want) {
				ok = false
			}
		}
	}
	return ok
}
