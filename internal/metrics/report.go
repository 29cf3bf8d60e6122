// Package metrics computes classification reports.
package metrics

import (
	"fmt"
	"strings"

	"github.com/ashureev/prompt-labs/internal/domain"
)

// Report computes per-class precision, recall, F1 and support for every
// label in the union of true and predicted labels, plus macro averages and
// accuracy. A nil prediction never matches: it is a false negative for its
// true class and a false positive of the implicit domain.UnmatchedClass row,
// which then takes part in the macro averages.
func Report(trueLabels []string, predicted []*string) (*domain.Report, error) {
	if len(trueLabels) != len(predicted) {
		return nil, domain.NewValidationError("predicted",
			"length %d does not match %d true labels", len(predicted), len(trueLabels))
	}

	labels := classOrder(trueLabels, predicted)
	type counts struct{ tp, fp, fn, support int }
	tally := make(map[string]*counts, len(labels))
	for _, l := range labels {
		tally[l] = &counts{}
	}

	correct, unmatched := 0, 0
	for i, truth := range trueLabels {
		tally[truth].support++
		p := predicted[i]
		if p == nil {
			unmatched++
			tally[truth].fn++
			tally[domain.UnmatchedClass].fp++
			continue
		}
		if *p == truth {
			correct++
			tally[truth].tp++
			continue
		}
		tally[truth].fn++
		tally[*p].fp++
	}

	r := &domain.Report{
		Labels:  labels,
		Classes: make(map[string]domain.ClassMetrics, len(labels)),
		Overall: domain.OverallMetrics{Total: len(trueLabels), Unmatched: unmatched},
	}
	var sumP, sumR, sumF float64
	for _, l := range labels {
		c := tally[l]
		precision := ratio(c.tp, c.tp+c.fp)
		recall := ratio(c.tp, c.tp+c.fn)
		f1 := 0.0
		if precision+recall > 0 {
			f1 = 2 * precision * recall / (precision + recall)
		}
		r.Classes[l] = domain.ClassMetrics{Precision: precision, Recall: recall, F1: f1, Support: c.support}
		sumP += precision
		sumR += recall
		sumF += f1
	}
	if n := len(labels); n > 0 {
		r.Overall.MacroPrecision = sumP / float64(n)
		r.Overall.MacroRecall = sumR / float64(n)
		r.Overall.MacroF1 = sumF / float64(n)
	}
	r.Overall.Accuracy = ratio(correct, len(trueLabels))
	return r, nil
}

func classOrder(trueLabels []string, predicted []*string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(l string) {
		if _, ok := seen[l]; !ok {
			seen[l] = struct{}{}
			out = append(out, l)
		}
	}
	for _, l := range trueLabels {
		add(l)
	}
	for _, p := range predicted {
		if p == nil {
			add(domain.UnmatchedClass)
			continue
		}
		add(*p)
	}
	return out
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// FormatReport renders r as the plain-text results block shown to the
// feedback coach and stored as the attempt's llmOutput.
func FormatReport(r *domain.Report) string {
	if r == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Accuracy: %s (%d samples", percent(r.Overall.Accuracy), r.Overall.Total)
	if r.Overall.Unmatched > 0 {
		fmt.Fprintf(&b, ", %d without a prediction", r.Overall.Unmatched)
	}
	b.WriteString(")\n")
	fmt.Fprintf(&b, "Macro precision: %.3f, macro recall: %.3f, macro F1: %.3f\n",
		r.Overall.MacroPrecision, r.Overall.MacroRecall, r.Overall.MacroF1)
	for _, l := range r.Labels {
		m := r.Classes[l]
		fmt.Fprintf(&b, "- %s: precision %.3f, recall %.3f, f1 %.3f, support %d\n",
			l, m.Precision, m.Recall, m.F1, m.Support)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Summary is the one-line performance description used when comparing
// attempts.
func Summary(r *domain.Report) string {
	if r == nil {
		return "no results recorded"
	}
	return fmt.Sprintf("accuracy %s, macro F1 %.3f", percent(r.Overall.Accuracy), r.Overall.MacroF1)
}

func percent(v float64) string {
	return fmt.Sprintf("%.1f%%", v*100)
}
