package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/reflred/internal/ir"
)

// marshalDetail converts event detail to canonical JSON TEXT for storage.
func marshalDetail(detail map[string]string) (string, error) {
	if detail == nil {
		detail = map[string]string{}
	}
	data, err := ir.MarshalCanonical(detail)
	if err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return string(data), nil
}

// unmarshalDetail parses detail JSON. Empty detail yields an empty map.
func unmarshalDetail(data string) (map[string]string, error) {
	detail := map[string]string{}
	if data == "" || data == "{}" {
		return detail, nil
	}
	if err := json.Unmarshal([]byte(data), &detail); err != nil {
		return nil, fmt.Errorf("unmarshal detail: %w", err)
	}
	return detail, nil
}

// marshalCurve encodes the three curve arrays as JSON number arrays.
// Canonical JSON excludes floats, so curves use encoding/json directly.
func marshalCurve(c ir.Curve) (q, r, dr string, err error) {
	if err := c.Validate(); err != nil {
		return "", "", "", err
	}
	parts := make([]string, 3)
	for i, values := range [][]float64{c.Q, c.R, c.DR} {
		if values == nil {
			values = []float64{}
		}
		data, err := json.Marshal(values)
		if err != nil {
			return "", "", "", fmt.Errorf("marshal curve: %w", err)
		}
		parts[i] = string(data)
	}
	return parts[0], parts[1], parts[2], nil
}

func unmarshalCurve(q, r, dr string) (ir.Curve, error) {
	var c ir.Curve
	for _, p := range []struct {
		data string
		dst  *[]float64
	}{{q, &c.Q}, {r, &c.R}, {dr, &c.DR}} {
		if err := json.Unmarshal([]byte(p.data), p.dst); err != nil {
			return ir.Curve{}, fmt.Errorf("unmarshal curve: %w", err)
		}
	}
	return c, nil
}
