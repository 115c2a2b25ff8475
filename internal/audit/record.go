package audit

import "time"

// Snapshot mirrors the db/fetch object shape of an Audit Record (spec §3):
// the same five fields describe both the source-of-record state and the
// live-fetched state so a Record's two snapshots compare directly.
type Snapshot struct {
	Name            string  `json:"name"`
	Thumbnail       string  `json:"thumbnail"`
	OriginalPrice   float64 `json:"original_price"`
	DiscountedPrice float64 `json:"discounted_price"`
	SaleState       string  `json:"sale_state"`
}

// Comparison is the per-field equality flags between DB and Fetch.
type Comparison struct {
	Name            bool `json:"name"`
	Thumbnail       bool `json:"thumbnail"`
	OriginalPrice   bool `json:"original_price"`
	DiscountedPrice bool `json:"discounted_price"`
	SaleState       bool `json:"sale_state"`
}

// Status is the per-item outcome of a compare node.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusFailed   Status = "failed"
	StatusNotFound Status = "not-found"
)

// Record is one line of the audit log: the canonical per-item row emitted
// by the compare stage (spec §3).
type Record struct {
	Meta         bool        `json:"_meta,omitempty"`
	ProductSetID string      `json:"product_set_id"`
	ProductID    string      `json:"product_id"`
	Platform     string      `json:"platform"`
	URL          string      `json:"url"`
	DB           Snapshot    `json:"db"`
	Fetch        *Snapshot   `json:"fetch"`
	Comparison   *Comparison `json:"comparison"`
	Match        bool        `json:"match"`
	Status       Status      `json:"status"`
	ValidatedAt  time.Time   `json:"validated_at"`
}

// Header is the first line of a well-formed audit log.
type Header struct {
	Meta       bool      `json:"_meta"`
	Type       string    `json:"type"`
	JobID      string    `json:"job_id"`
	WorkflowID string    `json:"workflow_id"`
	Platform   string    `json:"platform"`
	StartedAt  time.Time `json:"started_at"`
}

// Summary is the footer's aggregate counters.
type Summary struct {
	Total     int     `json:"total"`
	Success   int     `json:"success"`
	Failed    int     `json:"failed"`
	NotFound  int     `json:"not_found"`
	MatchRate float64 `json:"match_rate"`
}

// Footer is the last line of a well-formed audit log.
type Footer struct {
	Meta        bool      `json:"_meta"`
	Type        string    `json:"type"`
	CompletedAt time.Time `json:"completed_at"`
	Summary     Summary   `json:"summary"`
}

const (
	typeHeader = "header"
	typeFooter = "footer"
)
