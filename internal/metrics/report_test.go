package metrics

import (
	"testing"

	"github.com/ashureev/prompt-labs/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrs(labels ...string) []*string {
	out := make([]*string, len(labels))
	for i := range labels {
		l := labels[i]
		out[i] = &l
	}
	return out
}

func TestReportPerfectPredictions(t *testing.T) {
	t.Parallel()

	truth := []string{"humanitarian", "not_humanitarian", "humanitarian", "not_humanitarian"}
	r, err := Report(truth, ptrs(truth...))
	require.NoError(t, err)

	assert.Equal(t, 1.0, r.Overall.Accuracy)
	assert.Equal(t, 1.0, r.Overall.MacroF1)
	assert.Equal(t, []string{"humanitarian", "not_humanitarian"}, r.Labels)
	assert.Equal(t, 2, r.Classes["humanitarian"].Support)
}

func TestReportKnownValues(t *testing.T) {
	t.Parallel()

	truth := []string{"a", "a", "a", "b", "b"}
	pred := ptrs("a", "a", "b", "b", "a")
	r, err := Report(truth, pred)
	require.NoError(t, err)

	a := r.Classes["a"]
	assert.InDelta(t, 2.0/3, a.Precision, 1e-9)
	assert.InDelta(t, 2.0/3, a.Recall, 1e-9)
	b := r.Classes["b"]
	assert.InDelta(t, 0.5, b.Precision, 1e-9)
	assert.InDelta(t, 0.5, b.Recall, 1e-9)
	assert.InDelta(t, 0.6, r.Overall.Accuracy, 1e-9)
	assert.InDelta(t, (a.F1+b.F1)/2, r.Overall.MacroF1, 1e-12)
}

func TestReportPredictionOnlyClassGetsRow(t *testing.T) {
	t.Parallel()

	r, err := Report([]string{"a", "a"}, ptrs("a", "maybe"))
	require.NoError(t, err)

	m, ok := r.Class("maybe")
	require.True(t, ok)
	assert.Equal(t, 0, m.Support)
	assert.Equal(t, 0.0, m.Precision)
	assert.Equal(t, []string{"a", "maybe"}, r.Labels)
}

func TestReportNilPredictionsNeverMatch(t *testing.T) {
	t.Parallel()

	truth := []string{"a", "b", "a"}
	r, err := Report(truth, []*string{nil, nil, nil})
	require.NoError(t, err)

	assert.Equal(t, 0.0, r.Overall.Accuracy)
	assert.Equal(t, 3, r.Overall.Unmatched)
	assert.Equal(t, []string{"a", "b", domain.UnmatchedClass}, r.Labels)
	assert.Equal(t, 0.0, r.Classes["a"].Recall)
	assert.Equal(t, domain.ClassMetrics{}, r.Classes[domain.UnmatchedClass])
}

func TestReportMissingPredictionsLowerMacroAverages(t *testing.T) {
	t.Parallel()

	h, n := "humanitarian", "not_humanitarian"
	truth := []string{h, h, h, h, n, n, n, n}
	pred := ptrs(h, h, h, h, n, n, n, n)
	pred[2], pred[3], pred[6] = nil, nil, nil

	r, err := Report(truth, pred)
	require.NoError(t, err)

	assert.Equal(t, []string{h, n, domain.UnmatchedClass}, r.Labels)
	assert.InDelta(t, 0.625, r.Overall.Accuracy, 1e-9)
	assert.InDelta(t, 2.0/3, r.Overall.MacroPrecision, 1e-9)
	assert.InDelta(t, 1.25/3, r.Overall.MacroRecall, 1e-9)
	assert.InDelta(t, (2.0/3+6.0/7)/3, r.Overall.MacroF1, 1e-9)
	assert.Equal(t, 3, r.Overall.Unmatched)

	null, ok := r.Class(domain.UnmatchedClass)
	require.True(t, ok)
	assert.Equal(t, 0, null.Support)
	assert.Equal(t, 0.0, null.Precision)
	assert.Equal(t, 0.0, null.F1)
	assert.Equal(t, 1.0, r.Classes[h].Precision)
	assert.InDelta(t, 0.5, r.Classes[h].Recall, 1e-9)
}

func TestReportNoNullRowWhenEveryPredictionPresent(t *testing.T) {
	t.Parallel()

	r, err := Report([]string{"a", "b"}, ptrs("b", "b"))
	require.NoError(t, err)

	_, ok := r.Class(domain.UnmatchedClass)
	assert.False(t, ok)
}

func TestReportLengthMismatch(t *testing.T) {
	t.Parallel()

	_, err := Report([]string{"a"}, nil)
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
}

func TestReportEmptyInput(t *testing.T) {
	t.Parallel()

	r, err := Report(nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Overall.Accuracy)
	assert.Equal(t, 0.0, r.Overall.MacroF1)
	assert.Empty(t, r.Labels)
}

func TestReportBoundsAndMacroMean(t *testing.T) {
	t.Parallel()

	cases := []struct {
		truth []string
		pred  []*string
	}{
		{[]string{"x", "y", "z", "x"}, ptrs("y", "y", "x", "x")},
		{[]string{"x", "x", "x"}, ptrs("x", "y", "z")},
		{[]string{"p", "q", "p", "q", "r"}, append(ptrs("q", "q", "p"), nil, nil)},
	}
	for _, tc := range cases {
		r, err := Report(tc.truth, tc.pred)
		require.NoError(t, err)

		var sum float64
		for _, l := range r.Labels {
			m := r.Classes[l]
			for _, v := range []float64{m.Precision, m.Recall, m.F1} {
				assert.GreaterOrEqual(t, v, 0.0)
				assert.LessOrEqual(t, v, 1.0)
			}
			sum += m.F1
		}
		assert.InDelta(t, sum/float64(len(r.Labels)), r.Overall.MacroF1, 1e-12)

		matches := 0
		for i := range tc.truth {
			if tc.pred[i] != nil && *tc.pred[i] == tc.truth[i] {
				matches++
			}
		}
		assert.InDelta(t, float64(matches)/float64(len(tc.truth)), r.Overall.Accuracy, 1e-12)
	}
}

func TestFormatReportMentionsUnmatched(t *testing.T) {
	t.Parallel()

	r, err := Report([]string{"a", "b"}, []*string{nil, ptrs("b")[0]})
	require.NoError(t, err)

	text := FormatReport(r)
	assert.Contains(t, text, "Accuracy: 50.0%")
	assert.Contains(t, text, "1 without a prediction")
	assert.Contains(t, text, "- b: precision 1.000")
	assert.Contains(t, text, "- null: precision 0.000")
	assert.Equal(t, "accuracy 50.0%, macro F1 0.500", Summary(r))
}
