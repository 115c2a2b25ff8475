package platformclient

import (
	"context"

	"github.com/priceguard/sentinel/internal/browserpool"
)

// ScrapeFetcher is the out-of-core-detail implementation for the three
// headless-browser storefront platforms, mirroring APIFetcher's
// request/Extract split: acquiring and releasing the pooled browser
// resource is in-core (spec §4.F "browser acquisition happens inside
// fetch_scrape nodes, released via defer on every exit path"), while the
// actual page navigation and field extraction is an injected plugin, since
// no browser-automation library exists anywhere in the retrieval pack to
// drive a real renderer (spec §1 "platform-specific ... parsers ...
// specified only by their output shape").
type ScrapeFetcher struct {
	Pool    *browserpool.Pool
	Extract func(ctx context.Context, session browserpool.Session, url string) (*Snapshot, error)
}

// NewScrapeFetcher builds a ScrapeFetcher over an already-configured pool.
func NewScrapeFetcher(pool *browserpool.Pool, extract func(context.Context, browserpool.Session, string) (*Snapshot, error)) *ScrapeFetcher {
	return &ScrapeFetcher{Pool: pool, Extract: extract}
}

// Fetch acquires a pooled session, extracts a Snapshot from url, and
// records the outcome against the handle's rotation/circuit-breaker
// counters before releasing it.
func (f *ScrapeFetcher) Fetch(ctx context.Context, url string) (*Snapshot, error) {
	h, err := f.Pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer f.Pool.Release(ctx, h)

	snap, err := f.Extract(ctx, h.Session, url)
	if err != nil {
		h.RecordFailure()
		return nil, err
	}
	h.RecordSuccess()
	return snap, nil
}

var _ Fetcher = (*ScrapeFetcher)(nil)
