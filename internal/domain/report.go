package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// OverallKey is the report entry holding aggregate metrics.
const OverallKey = "overall"

// UnmatchedClass is the report row collecting samples the model returned no
// prediction for. It has no support and scores zero, dragging the macro
// averages down.
const UnmatchedClass = "null"

// IsReservedLabel reports whether label collides with a report key.
func IsReservedLabel(label string) bool {
	l := strings.ToLower(strings.TrimSpace(label))
	return l == OverallKey || l == UnmatchedClass
}

// ClassMetrics are the per-class scores of a classification report.
type ClassMetrics struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// OverallMetrics are macro averages plus accuracy.
type OverallMetrics struct {
	Accuracy       float64 `json:"accuracy"`
	MacroPrecision float64 `json:"macroPrecision"`
	MacroRecall    float64 `json:"macroRecall"`
	MacroF1        float64 `json:"macroF1"`
	Total          int     `json:"total"`
	Unmatched      int     `json:"unmatched"`
}

// Report is a multi-class classification report. Labels keeps the class
// order; on the wire the report is a flat object keyed by label with an
// additional "overall" entry.
type Report struct {
	Labels  []string
	Classes map[string]ClassMetrics
	Overall OverallMetrics
}

// Class returns the metrics for label.
func (r *Report) Class(label string) (ClassMetrics, bool) {
	m, ok := r.Classes[label]
	return m, ok
}

// MarshalJSON flattens the report.
func (r Report) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Classes)+1)
	for label, m := range r.Classes {
		out[label] = m
	}
	out[OverallKey] = r.Overall
	return json.Marshal(out)
}

// UnmarshalJSON restores a flattened report. Label order is not carried on
// the wire, so labels come back sorted.
func (r *Report) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	r.Classes = make(map[string]ClassMetrics, len(raw))
	r.Labels = r.Labels[:0]
	for key, v := range raw {
		if key == OverallKey {
			if err := json.Unmarshal(v, &r.Overall); err != nil {
				return fmt.Errorf("decode overall metrics: %w", err)
			}
			continue
		}
		var m ClassMetrics
		if err := json.Unmarshal(v, &m); err != nil {
			return fmt.Errorf("decode metrics for %q: %w", key, err)
		}
		r.Classes[key] = m
		r.Labels = append(r.Labels, key)
	}
	sort.Strings(r.Labels)
	return nil
}
