package node

import (
	"context"
	"time"

	"github.com/priceguard/sentinel/internal/audit"
)

// CompareNode diffs the five tracked fields between each fetched product's
// db snapshot and its live snapshot, producing one audit.Record per item
// (spec §4.C "compare"). It performs no I/O of its own; it only reads the
// FetchOutcome slice the preceding fetch node left in shared state.
type CompareNode struct{}

func (n *CompareNode) Validate(input map[string]any) ValidationResult { return OK() }

func (n *CompareNode) Execute(ctx context.Context, input map[string]any, nctx *Context) Result {
	raw, _ := nctx.State["fetch_results"].([]FetchOutcome)
	records := make([]audit.Record, 0, len(raw))
	now := time.Now()

	for _, o := range raw {
		dbSnap := audit.Snapshot{
			Name:            o.DB.Name,
			Thumbnail:       o.DB.Thumbnail,
			OriginalPrice:   o.DB.OriginalPrice,
			DiscountedPrice: o.DB.DiscountedPrice,
			SaleState:       o.DB.SaleState,
		}
		rec := audit.Record{
			ProductSetID: o.ProductSetID,
			ProductID:    o.ProductID,
			Platform:     nctx.Platform,
			URL:          o.URL,
			DB:           dbSnap,
			Status:       o.Status,
			ValidatedAt:  now,
		}

		if o.Status == audit.StatusSuccess && o.Fetch != nil {
			fetchSnap := audit.Snapshot{
				Name:            o.Fetch.Name,
				Thumbnail:       o.Fetch.Thumbnail,
				OriginalPrice:   o.Fetch.OriginalPrice,
				DiscountedPrice: o.Fetch.DiscountedPrice,
				SaleState:       string(o.Fetch.SaleState),
			}
			cmp := audit.Comparison{
				Name:            dbSnap.Name == fetchSnap.Name,
				Thumbnail:       dbSnap.Thumbnail == fetchSnap.Thumbnail,
				OriginalPrice:   dbSnap.OriginalPrice == fetchSnap.OriginalPrice,
				DiscountedPrice: dbSnap.DiscountedPrice == fetchSnap.DiscountedPrice,
				SaleState:       dbSnap.SaleState == fetchSnap.SaleState,
			}
			rec.Fetch = &fetchSnap
			rec.Comparison = &cmp
			rec.Match = cmp.Name && cmp.Thumbnail && cmp.OriginalPrice && cmp.DiscountedPrice && cmp.SaleState
		}

		records = append(records, rec)
	}

	nctx.State["audit_records"] = records
	return Success(map[string]any{"audit_records": records})
}

func (n *CompareNode) Rollback(ctx context.Context, input map[string]any, nctx *Context) {}
