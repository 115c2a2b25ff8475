package engine

import (
	"fmt"
	"regexp"
)

var varPattern = regexp.MustCompile(`\$\{(\w+)\}`)

// mergeConfig builds the config a node sees for one execution: the node's
// declared config, with any param keys it doesn't already define added in,
// and every `${name}` token in a string value substituted from params
// (spec §4.D step 4).
func mergeConfig(nodeConfig, params map[string]any) map[string]any {
	merged := make(map[string]any, len(nodeConfig)+len(params))
	for k, v := range nodeConfig {
		merged[k] = v
	}
	for k, v := range params {
		if _, exists := merged[k]; !exists {
			merged[k] = v
		}
	}
	for k, v := range merged {
		merged[k] = substituteValue(v, params)
	}
	return merged
}

func substituteValue(v any, params map[string]any) any {
	switch val := v.(type) {
	case string:
		return substituteString(val, params)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = substituteValue(vv, params)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = substituteValue(vv, params)
		}
		return out
	default:
		return v
	}
}

func substituteString(s string, params map[string]any) string {
	return varPattern.ReplaceAllStringFunc(s, func(token string) string {
		name := varPattern.FindStringSubmatch(token)[1]
		if v, ok := params[name]; ok {
			return fmt.Sprintf("%v", v)
		}
		return token
	})
}
