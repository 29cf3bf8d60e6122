package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ashureev/prompt-labs/internal/domain"
)

// ErrEmptyCSV is returned for a CSV without data rows.
var ErrEmptyCSV = errors.New("CSV file is empty")

// MissingColumnsError reports a CSV header without the required columns.
type MissingColumnsError struct {
	Found []string
}

func (e *MissingColumnsError) Error() string {
	return "CSV must contain columns: text (or tweet_text), label (or class_label), and id (or tweet_id)"
}

var columnAliases = map[string][]string{
	"id":    {"id", "tweet_id"},
	"text":  {"text", "tweet_text"},
	"label": {"label", "class_label"},
}

// ParseCSV reads labeled samples from CSV. Headers are trimmed and
// lowercased; blank lines are skipped. A row without an id gets its
// zero-based row index. Labels that collide with report keys ("overall",
// "null") are rejected with a ValidationError.
func ParseCSV(r io.Reader) ([]domain.Sample, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyCSV
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing CSV: %w", err)
	}
	for i, h := range header {
		header[i] = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	}

	idx := make(map[string]int, len(columnAliases))
	for col, aliases := range columnAliases {
		for _, a := range aliases {
			if i := indexOf(header, a); i >= 0 {
				idx[col] = i
				break
			}
		}
	}

	var samples []domain.Sample
	for row := 0; ; {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error parsing CSV: %w", err)
		}
		if blank(rec) {
			continue
		}

		if len(idx) < len(columnAliases) {
			return nil, &MissingColumnsError{Found: header}
		}
		s := domain.Sample{
			ID:    domain.SampleID(field(rec, idx["id"])),
			Text:  field(rec, idx["text"]),
			Label: field(rec, idx["label"]),
		}
		if domain.IsReservedLabel(s.Label) {
			return nil, domain.NewValidationError("label",
				"row %d uses reserved label %q", row+1, s.Label)
		}
		if s.ID.Key() == "" {
			s.ID = domain.SampleID(strconv.Itoa(row))
		}
		samples = append(samples, s)
		row++
	}

	if len(samples) == 0 {
		return nil, ErrEmptyCSV
	}
	return samples, nil
}

func indexOf(header []string, name string) int {
	for i, h := range header {
		if h == name {
			return i
		}
	}
	return -1
}

func field(rec []string, i int) string {
	if i < len(rec) {
		return strings.TrimSpace(rec[i])
	}
	return ""
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
