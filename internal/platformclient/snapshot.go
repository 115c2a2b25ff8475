// Package platformclient defines the output shape every platform fetch
// adapter produces. The adapters themselves — three HTTP/GraphQL clients
// and three headless-browser scrapers — are out of core scope (spec §1);
// this package specifies only what a fetch returns, per spec's "specified
// only by their output shape" boundary.
package platformclient

import (
	"context"
	"errors"
)

// ErrNotFound is the upstream "no such product" marker (spec §7 NotFound):
// not an error condition for the workflow, just a status the compare node
// records.
var ErrNotFound = errors.New("platformclient: product not found upstream")

// SaleState is the normalized two-valued label every snapshot reports
// (spec glossary "Sale state").
type SaleState string

const (
	SaleStateOnSale  SaleState = "on_sale"
	SaleStateOffSale SaleState = "off_sale"
)

// Snapshot is the live storefront state for one product, in the same
// shape as the "db" and "fetch" objects of an Audit Record (spec §3).
type Snapshot struct {
	Name             string    `json:"name"`
	Thumbnail        string    `json:"thumbnail"`
	OriginalPrice    float64   `json:"original_price"`
	DiscountedPrice  float64   `json:"discounted_price"`
	SaleState        SaleState `json:"sale_state"`
}

// Fetcher retrieves a live Snapshot for one product URL. API platforms
// implement it over HTTP/GraphQL; scrape platforms implement it over a
// browserpool.Session. Returning ErrNotFound signals the upstream
// not-found marker rather than a transport failure.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Snapshot, error)
}
