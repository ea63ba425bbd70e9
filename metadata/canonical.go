// Package metadata resolves JSON sidecar files along the BIDS inheritance
// principle and stores the merged result per file, in canonical string form.
package metadata

import (
	"strconv"

	"github.com/hupe1980/bidsgo/codec"
)

// CanonicalValue renders a decoded JSON value as its canonical string form:
// strings verbatim, numbers and booleans via their literal form, null as
// "null", and composite values as compact JSON.
func CanonicalValue(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "null", true
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), true
	case int64:
		return strconv.FormatInt(val, 10), true
	default:
		b, err := codec.Default.Marshal(v)
		if err != nil {
			return "", false
		}
		return string(b), true
	}
}

// Canonicalize renders every key of a decoded JSON object.
func Canonicalize(obj map[string]any) map[string]string {
	out := make(map[string]string, len(obj))
	for k, v := range obj {
		if s, ok := CanonicalValue(v); ok {
			out[k] = s
		}
	}
	return out
}
