// Package prompt turns a learner's instructions into a classification prompt.
package prompt

import (
	"fmt"
	"strings"
)

// Technique identifiers.
const (
	ZeroShot       = "zero-shot"
	FewShot        = "few-shot"
	ChainOfThought = "chain-of-thought"
	Structured     = "structured"
)

// DefaultLabels is the vocabulary of the built-in binary dataset.
var DefaultLabels = []string{"humanitarian", "not_humanitarian"}

const outputDirective = `Return ONLY a JSON array with one object per item, using exactly the fields "id" and "pred":
[{"id": <id>, "pred": "<label>"}]
Do not add explanations, markdown or any text before or after the array.`

// Normalize appends the strict output-format directive to the learner's
// prompt without otherwise changing it.
func Normalize(raw string) string {
	return strings.TrimSpace(raw) + "\n\n" + outputDirective
}

// Technique describes a prompting scaffold offered to learners.
type Technique struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	BestFor     string `json:"bestFor"`
}

var techniques = []Technique{
	{
		ID:          ZeroShot,
		Name:        "Zero-Shot",
		Description: "Direct classification with clear role and output format",
		BestFor:     "Simple, clear prompts with well-defined categories",
	},
	{
		ID:          FewShot,
		Name:        "Few-Shot Learning",
		Description: "Includes labeled examples to guide the model",
		BestFor:     "When you want to show the model what good classifications look like",
	},
	{
		ID:          ChainOfThought,
		Name:        "Chain-of-Thought",
		Description: "Asks model to reason step-by-step before classifying",
		BestFor:     "Complex classification requiring nuanced judgment",
	},
	{
		ID:          Structured,
		Name:        "Structured Reasoning",
		Description: "Breaks down classification into systematic evaluation steps",
		BestFor:     "Ensuring consistent, methodical classification approach",
	},
}

// Techniques returns the technique catalogue.
func Techniques() []Technique {
	out := make([]Technique, len(techniques))
	copy(out, techniques)
	return out
}

// ParseTechnique canonicalizes a technique identifier. Unknown or empty
// identifiers resolve to zero-shot.
func ParseTechnique(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	for _, t := range techniques {
		if t.ID == id {
			return id
		}
	}
	return ZeroShot
}

// ApplyTechnique wraps raw in the scaffold named by technique. labels sets
// the vocabulary named in the output format and defaults to DefaultLabels.
func ApplyTechnique(raw, technique string, labels ...string) string {
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	format := outputFormat(labels)
	raw = strings.TrimSpace(raw)

	switch ParseTechnique(technique) {
	case FewShot:
		return fmt.Sprintf(`%s

Here are some examples of correctly classified tweets:

%s

Now apply the same classification logic:
%s

%s`, roleLine, fewShotBlock(), raw, format)
	case ChainOfThought:
		return fmt.Sprintf(`%s

%s

For each item, think through:
1. Does it provide actionable disaster relief information?
2. Does it request or offer help, aid or resources?
3. Does it contain safety warnings or damage reports?
4. Or is it just commentary, opinion or unrelated content?

Based on your reasoning, classify each item. Keep the reasoning to yourself and output only the final array.
%s`, roleLine, raw, format)
	case Structured:
		return fmt.Sprintf(`%s Follow this systematic approach:

STEP 1: Read the classification criteria
%s

STEP 2: For each item, evaluate:
- Primary intent: information sharing, help request, aid offer, or commentary?
- Action orientation: does it enable disaster response actions?
- Humanitarian value: is it useful for relief efforts?

STEP 3: Assign exactly one label from: %s

Output only the final array, with no reasoning.
%s`, roleLine, raw, quoteList(labels), format)
	default:
		return fmt.Sprintf("%s\n\n%s\n\n%s", roleLine, raw, format)
	}
}

const roleLine = "You are an expert disaster response classifier."

func outputFormat(labels []string) string {
	return fmt.Sprintf(`Output format: Return ONLY a JSON array with this structure:
[{"id": <id>, "pred": %s}]`, strings.Join(quoteEach(labels), " or "))
}

func quoteEach(labels []string) []string {
	out := make([]string, len(labels))
	for i, l := range labels {
		out[i] = fmt.Sprintf("%q", l)
	}
	return out
}

func quoteList(labels []string) string {
	return strings.Join(quoteEach(labels), ", ")
}
