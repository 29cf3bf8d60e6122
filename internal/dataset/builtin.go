package dataset

import (
	"embed"
	"encoding/json"
	"fmt"

	"github.com/ashureev/prompt-labs/internal/domain"
)

//go:embed data/*.json
var builtinFS embed.FS

var builtinFiles = map[string]string{
	domain.TaskBinary:     "data/binary.json",
	domain.TaskMulticlass: "data/multiclass.json",
}

// record accepts both the current field names and the tweet_* names used
// by the bundled crisis datasets.
type record struct {
	ID         domain.SampleID `json:"id"`
	TweetID    domain.SampleID `json:"tweet_id"`
	Text       string          `json:"text"`
	TweetText  string          `json:"tweet_text"`
	Label      string          `json:"label"`
	ClassLabel string          `json:"class_label"`
}

func (r record) sample() domain.Sample {
	s := domain.Sample{ID: r.ID, Text: r.Text, Label: r.Label}
	if s.ID.Key() == "" {
		s.ID = r.TweetID
	}
	if s.Text == "" {
		s.Text = r.TweetText
	}
	if s.Label == "" {
		s.Label = r.ClassLabel
	}
	return s
}

// BuiltIn returns the bundled dataset for taskType.
func BuiltIn(taskType string) ([]domain.Sample, error) {
	name, ok := builtinFiles[taskType]
	if !ok {
		return nil, &domain.NotFoundError{Resource: "built-in dataset", Key: taskType}
	}
	data, err := builtinFS.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	samples := make([]domain.Sample, len(records))
	for i, r := range records {
		samples[i] = r.sample()
	}
	return samples, nil
}
