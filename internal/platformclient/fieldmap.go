package platformclient

import (
	"fmt"
	"strings"
)

// FieldMap names, per Snapshot field, the dot-path to read out of a
// decoded JSON response body. It is the generic, config-driven stand-in
// for the bespoke per-platform field mapping spec §1 scopes out of core:
// cmd/worker builds one FieldMap per platform from that platform's YAML
// `extraction` block rather than compiling in platform-specific code.
type FieldMap struct {
	Name            string `mapstructure:"name"`
	Thumbnail       string `mapstructure:"thumbnail"`
	OriginalPrice   string `mapstructure:"original_price"`
	DiscountedPrice string `mapstructure:"discounted_price"`
	SaleState       string `mapstructure:"sale_state"`
	// SaleStateOnValues lists the upstream values (case-insensitive) that
	// map to SaleStateOnSale; anything else maps to SaleStateOffSale.
	SaleStateOnValues []string `mapstructure:"sale_state_on_values"`
}

// NewFieldMapExtract builds an APIFetcher Extract func driven by fm. It
// never performs I/O itself; it only walks an already-decoded JSON body.
func NewFieldMapExtract(fm FieldMap) func(body map[string]any) (*Snapshot, error) {
	onValues := make(map[string]bool, len(fm.SaleStateOnValues))
	for _, v := range fm.SaleStateOnValues {
		onValues[strings.ToLower(v)] = true
	}

	return func(body map[string]any) (*Snapshot, error) {
		name, err := lookupString(body, fm.Name)
		if err != nil {
			return nil, err
		}
		thumbnail, _ := lookupString(body, fm.Thumbnail)

		originalPrice, err := lookupFloat(body, fm.OriginalPrice)
		if err != nil {
			return nil, err
		}
		discountedPrice, err := lookupFloat(body, fm.DiscountedPrice)
		if err != nil {
			return nil, err
		}

		rawState, _ := lookupString(body, fm.SaleState)
		state := SaleStateOffSale
		if onValues[strings.ToLower(rawState)] {
			state = SaleStateOnSale
		}

		return &Snapshot{
			Name:            name,
			Thumbnail:       thumbnail,
			OriginalPrice:   originalPrice,
			DiscountedPrice: discountedPrice,
			SaleState:       state,
		}, nil
	}
}

func lookupPath(body map[string]any, path string) (any, error) {
	if path == "" {
		return nil, nil
	}
	cur := any(body)
	for _, seg := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("platformclient: field path %q: %q is not an object", path, seg)
		}
		v, ok := m[seg]
		if !ok {
			return nil, fmt.Errorf("platformclient: field path %q: missing segment %q", path, seg)
		}
		cur = v
	}
	return cur, nil
}

func lookupString(body map[string]any, path string) (string, error) {
	v, err := lookupPath(body, path)
	if err != nil || v == nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("platformclient: field path %q did not resolve to a string", path)
	}
	return s, nil
}

func lookupFloat(body map[string]any, path string) (float64, error) {
	v, err := lookupPath(body, path)
	if err != nil || v == nil {
		return 0, err
	}
	return ToFloat(v), nil
}
