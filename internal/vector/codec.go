package vector

import (
	"fmt"
	"math"
	"strings"

	gojson "github.com/goccy/go-json"
)

// Decode parses the textual form of a vector: a JSON array of numbers, which
// is also the text representation of a pgvector column.
func Decode(serialized string) (Vector, error) {
	s := strings.TrimSpace(serialized)
	if s == "" {
		return nil, fmt.Errorf("%w: empty input", ErrMalformedVector)
	}
	var raw []*float64
	if err := gojson.Unmarshal([]byte(s), &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVector, err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: no components", ErrMalformedVector)
	}
	v := make(Vector, len(raw))
	for i, p := range raw {
		if p == nil {
			return nil, fmt.Errorf("%w: component %d is null", ErrMalformedVector, i)
		}
		x := *p
		f := float32(x)
		if math.IsNaN(x) || math.IsInf(float64(f), 0) {
			return nil, fmt.Errorf("%w: component %d is not finite", ErrMalformedVector, i)
		}
		v[i] = f
	}
	return v, nil
}

// Encode is the inverse of Decode.
func Encode(v Vector) (string, error) {
	if len(v) == 0 {
		return "", fmt.Errorf("%w: no components", ErrMalformedVector)
	}
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return "", fmt.Errorf("%w: component %d is not finite", ErrMalformedVector, i)
		}
	}
	b, err := gojson.Marshal([]float32(v))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedVector, err)
	}
	return string(b), nil
}
