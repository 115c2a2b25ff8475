package platformclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// APIFetcher is the out-of-core-detail implementation for the three
// HTTP/GraphQL storefront platforms. Real extraction logic (mapping a
// platform's bespoke JSON response into a Snapshot) is explicitly out of
// scope (spec §1 "platform-specific ... parsers ... specified only by
// their output shape"); this fetcher performs the request and hands the
// decoded body to an injected Extract func, which is where a platform
// integration plugs in its own field mapping.
type APIFetcher struct {
	HTTPClient *http.Client
	UserAgent  string
	Extract    func(body map[string]any) (*Snapshot, error)
}

// NewAPIFetcher builds an APIFetcher with sane request timeouts.
func NewAPIFetcher(userAgent string, extract func(map[string]any) (*Snapshot, error)) *APIFetcher {
	return &APIFetcher{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		UserAgent:  userAgent,
		Extract:    extract,
	}
}

func (f *APIFetcher) Fetch(ctx context.Context, url string) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("platformclient: unexpected status %d from %s", resp.StatusCode, url)
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return f.Extract(body)
}

// ToFloat is a small helper platform Extract funcs can use since upstream
// APIs are inconsistent about whether prices arrive as numbers or strings.
func ToFloat(v any) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(t, 64)
		return f
	default:
		return 0
	}
}
