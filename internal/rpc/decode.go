package rpc

import (
	"encoding/json"
	"fmt"
	"math"
)

// requireFloat converts a required numeric field. Upstreams deliver numbers
// either as JSON numbers or as numeric strings; json.Number accepts both.
func requireFloat(source, field string, n *json.Number) (float64, error) {
	if n == nil {
		return 0, &ParseError{Source: source, Field: field}
	}
	f, err := n.Float64()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ParseError{Source: source, Field: field, Err: fmt.Errorf("not a number: %q", n.String())}
	}
	return f, nil
}

// requireInt converts a required integer field
func requireInt(source, field string, n *json.Number) (int64, error) {
	if n == nil {
		return 0, &ParseError{Source: source, Field: field}
	}
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	// Some APIs render integer counters as floats ("12.0")
	f, err := requireFloat(source, field, n)
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, &ParseError{Source: source, Field: field, Err: fmt.Errorf("not an integer: %q", n.String())}
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, &ParseError{Source: source, Field: field, Err: fmt.Errorf("out of range: %q", n.String())}
	}
	return int64(f), nil
}
