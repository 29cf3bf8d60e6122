package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Task types with a built-in dataset. Multilabel is accepted on input but
// only served from custom datasets.
const (
	TaskBinary     = "binary"
	TaskMulticlass = "multiclass"
	TaskMultilabel = "multilabel"
)

var integerLiteral = regexp.MustCompile(`^-?(0|[1-9][0-9]*)$`)

// SampleID identifies a dataset row. Datasets and model output carry ids as
// JSON numbers or strings interchangeably, so the id keeps the literal text
// of either form. Numeric ids are never routed through float64, which would
// corrupt 18-digit tweet ids.
type SampleID string

// UnmarshalJSON accepts a JSON string or number.
func (id *SampleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = SampleID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("sample id must be a string or number: %w", err)
	}
	*id = SampleID(n.String())
	return nil
}

// MarshalJSON writes integer-looking ids as bare numbers and everything else
// as strings.
func (id SampleID) MarshalJSON() ([]byte, error) {
	s := string(id)
	if integerLiteral.MatchString(s) {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

// Key is the comparison form of the id. "905" and 905 share a key.
func (id SampleID) Key() string {
	return strings.TrimSpace(string(id))
}

func (id SampleID) String() string { return string(id) }

// Sample is one labeled dataset row.
type Sample struct {
	ID    SampleID `json:"id"`
	Text  string   `json:"text"`
	Label string   `json:"label"`
}

// Prediction is one model classification after label canonicalization.
type Prediction struct {
	ID   SampleID `json:"id"`
	Pred string   `json:"pred"`
}

// MergedRecord is a sample joined with its prediction. PredictedLabel is nil
// when the model returned nothing for the sample's id.
type MergedRecord struct {
	Sample
	PredictedLabel *string `json:"predicted_label"`
}

// Matched reports whether a prediction was found for the record.
func (m MergedRecord) Matched() bool { return m.PredictedLabel != nil }

// Labels returns the distinct labels of samples in first-seen order.
func Labels(samples []Sample) []string {
	seen := make(map[string]struct{}, 4)
	var out []string
	for _, s := range samples {
		if _, ok := seen[s.Label]; ok {
			continue
		}
		seen[s.Label] = struct{}{}
		out = append(out, s.Label)
	}
	return out
}
