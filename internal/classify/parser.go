package classify

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ashureev/prompt-labs/internal/domain"
)

const snippetLimit = 200

var (
	jsonFence = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	anyFence  = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*(.*?)\\s*```")
)

const parseRemedy = "Could not read the model's answer as a list of predictions. " +
	"Make sure your prompt: 1) asks for exactly one of the allowed labels per item, " +
	"2) requests JSON-only output with no extra text, and " +
	"3) defines the task clearly enough that every item gets an unambiguous label."

// ExtractJSONArray isolates the JSON array in a model reply. Fenced code
// blocks win over the raw text. Anything after the last ']' is dropped, and
// the array starts at the '[' whose balanced match is that last ']'.
func ExtractJSONArray(text string) string {
	s := text
	if m := jsonFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	} else if m := anyFence.FindStringSubmatch(s); m != nil {
		s = m[1]
	}
	s = strings.TrimSpace(s)
	end := strings.LastIndex(s, "]")
	if end >= 0 {
		s = s[:end+1]
	}
	if i := arrayStart(s, end); i > 0 {
		s = s[i:]
	}
	return s
}

// arrayStart returns the first '[' that closes at end, or the first '[' in
// s when none does.
func arrayStart(s string, end int) int {
	for i := 0; i < end; i++ {
		if s[i] == '[' && matchingBracket(s, i) == end {
			return i
		}
	}
	return strings.Index(s, "[")
}

// matchingBracket returns the index of the ']' closing the '[' at open,
// ignoring brackets inside JSON strings, or -1.
func matchingBracket(s string, open int) int {
	depth := 0
	inString, escaped := false, false
	for i := open; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// rawPrediction accepts the field names models tend to use.
type rawPrediction struct {
	ID             *domain.SampleID `json:"id"`
	TweetID        *domain.SampleID `json:"tweet_id"`
	Pred           *string          `json:"pred"`
	PredictedLabel *string          `json:"predicted_label"`
	Label          *string          `json:"label"`
	ClassLabel     *string          `json:"class_label"`
}

func (r rawPrediction) id() domain.SampleID {
	if r.ID != nil && r.ID.Key() != "" {
		return *r.ID
	}
	if r.TweetID != nil {
		return *r.TweetID
	}
	return ""
}

func (r rawPrediction) pred() string {
	for _, p := range []*string{r.Pred, r.PredictedLabel, r.Label, r.ClassLabel} {
		if p != nil {
			return *p
		}
	}
	return ""
}

// ParseResponse decodes a model reply into predictions. canon, when set,
// maps every prediction onto the binary pair.
func ParseResponse(text string, canon *BinaryLabels) ([]domain.Prediction, error) {
	payload := ExtractJSONArray(text)

	var raw []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, newParseError(text, err)
	}
	if len(raw) == 0 {
		return nil, newParseError(text, fmt.Errorf("empty prediction array"))
	}

	out := make([]domain.Prediction, 0, len(raw))
	for i, item := range raw {
		var rp rawPrediction
		if err := json.Unmarshal(item, &rp); err != nil {
			return nil, newParseError(text, fmt.Errorf("element %d is not an object: %w", i, err))
		}
		p := rp.pred()
		if canon != nil {
			p = canon.Canonicalize(p)
		}
		out = append(out, domain.Prediction{ID: rp.id(), Pred: p})
	}
	return out, nil
}

func newParseError(text string, err error) *domain.ParseError {
	return &domain.ParseError{Message: parseRemedy, Snippet: snippet(text), Err: err}
}

func snippet(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= snippetLimit {
		return text
	}
	return string([]rune(text)[:snippetLimit])
}
