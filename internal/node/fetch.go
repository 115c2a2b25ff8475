package node

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/priceguard/sentinel/internal/audit"
	"github.com/priceguard/sentinel/internal/platformclient"
	"github.com/priceguard/sentinel/internal/sor"
)

// FetchOutcome is one product's fetch result, accumulated by a FetchNode
// and consumed by the Compare node downstream (spec §4.C "fetch_api" /
// "fetch_scrape").
type FetchOutcome struct {
	ProductSetID string
	ProductID    string
	URL          string
	DB           *sor.Product
	Fetch        *platformclient.Snapshot
	Status       audit.Status
}

// FetchNode is the shared implementation registered under both the
// "fetch_api" and "fetch_scrape" node type tags: each platform's Fetcher is
// injected by wiring (an APIFetcher or a ScrapeFetcher, both satisfying
// platformclient.Fetcher), so the node itself only knows how to enumerate
// the platform's current sale-state batch from the source of record and
// route each URL through the right one.
type FetchNode struct {
	Store    sor.Store
	Fetchers map[string]platformclient.Fetcher
}

func (n *FetchNode) Validate(input map[string]any) ValidationResult {
	saleState, ok := input["sale_state"].(string)
	if !ok || saleState == "" {
		return Invalid("sale_state is required")
	}
	return OK()
}

func (n *FetchNode) Execute(ctx context.Context, input map[string]any, nctx *Context) Result {
	saleState, _ := input["sale_state"].(string)
	pattern, _ := input["link_url_pattern"].(string)

	fetcher, ok := n.Fetchers[nctx.Platform]
	if !ok {
		return Failure("ConfigError", fmt.Sprintf("no fetcher configured for platform %q", nctx.Platform))
	}

	products, err := n.Store.ListByPlatformAndSaleState(ctx, nctx.Platform, saleState)
	if err != nil {
		return Failure("FetchError", err.Error())
	}

	outcomes := make([]FetchOutcome, 0, len(products))
	for _, p := range products {
		url := buildURL(pattern, p.ProductID)
		snap, ferr := fetcher.Fetch(ctx, url)

		outcome := FetchOutcome{ProductSetID: p.ProductSetID, ProductID: p.ProductID, URL: url, DB: p}
		switch {
		case ferr == nil:
			outcome.Fetch = snap
			outcome.Status = audit.StatusSuccess
		case errors.Is(ferr, platformclient.ErrNotFound):
			outcome.Status = audit.StatusNotFound
		default:
			outcome.Status = audit.StatusFailed
			nctx.Log.Warn().Err(ferr).Str("product_id", p.ProductID).Msg("fetch failed")
		}
		outcomes = append(outcomes, outcome)
	}

	nctx.State["fetch_results"] = outcomes
	return Success(map[string]any{"fetch_results": outcomes})
}

func (n *FetchNode) Rollback(ctx context.Context, input map[string]any, nctx *Context) {}

func buildURL(pattern, productID string) string {
	if pattern == "" {
		return productID
	}
	return strings.ReplaceAll(pattern, "{product_id}", productID)
}
