package classify

import (
	"strings"

	"github.com/ashureev/prompt-labs/internal/domain"
	"github.com/ashureev/prompt-labs/internal/prompt"
)

// BinaryLabels rewrites free-form binary predictions onto a positive and a
// negative label.
type BinaryLabels struct {
	Positive        string
	Negative        string
	NegationMarkers []string
}

// Humanitarian is the built-in binary vocabulary.
var Humanitarian = &BinaryLabels{
	Positive:        prompt.DefaultLabels[0],
	Negative:        prompt.DefaultLabels[1],
	NegationMarkers: []string{"not", "non"},
}

// Canonicalize maps label onto the pair. A label containing the positive
// word and no negation marker is positive, any label with a negation marker
// is negative, and everything else is returned trimmed and lowercased.
func (b *BinaryLabels) Canonicalize(label string) string {
	if b == nil {
		return strings.TrimSpace(label)
	}
	l := strings.ToLower(strings.TrimSpace(label))
	negated := false
	for _, m := range b.NegationMarkers {
		if strings.Contains(l, m) {
			negated = true
			break
		}
	}
	switch {
	case strings.Contains(l, b.Positive) && !negated:
		return b.Positive
	case negated:
		return b.Negative
	}
	return l
}

// CanonicalizerFor returns the canonicalizer for a task, or nil when
// predictions must be kept as the model wrote them. Only binary tasks over
// the built-in vocabulary are rewritten.
func CanonicalizerFor(taskType string, vocabulary []string) *BinaryLabels {
	if taskType != domain.TaskBinary {
		return nil
	}
	for _, l := range vocabulary {
		if l != Humanitarian.Positive && l != Humanitarian.Negative {
			return nil
		}
	}
	return Humanitarian
}
