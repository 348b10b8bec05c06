package vectorstore

import (
	"encoding/json"
	"math"
	"reflect"
)

// CosineSimilarity returns dot(a, b) / (|a| * |b|). ok is false when either
// vector has zero norm, the lengths differ, or the result is not finite.
func CosineSimilarity(a, b []float32) (float64, bool) {
	if len(a) != len(b) {
		return 0, false
	}
	na := norm(a)
	if na == 0 {
		return 0, false
	}
	return cosine(a, na, b)
}

func cosine(query []float32, queryNorm float64, doc []float32) (float64, bool) {
	var dot, sum float64
	for i := range doc {
		d := float64(doc[i])
		dot += float64(query[i]) * d
		sum += d * d
	}
	if sum == 0 {
		return 0, false
	}
	score := dot / (queryNorm * math.Sqrt(sum))
	if !isFinite(score) {
		return 0, false
	}
	return score, true
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// MatchFilter reports whether every filter key is present in meta with an
// equal value. A nil or empty filter matches everything.
func MatchFilter(meta map[string]interface{}, filter map[string]interface{}) bool {
	for key, want := range filter {
		got, ok := meta[key]
		if !ok || !valuesEqual(got, want) {
			return false
		}
	}
	return true
}

// valuesEqual treats numbers by value so 1 and 1.0 match after a json round trip.
func valuesEqual(a, b interface{}) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA || okB {
		return okA && okB && fa == fb
	}
	ja, err := json.Marshal(a)
	if err != nil {
		return false
	}
	jb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ja) == string(jb)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
