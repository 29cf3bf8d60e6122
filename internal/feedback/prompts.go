package feedback

import (
	"fmt"
	"strings"

	"github.com/ashureev/prompt-labs/internal/domain"
	"github.com/ashureev/prompt-labs/internal/prompt"
)

var techniqueContext = map[string]string{
	prompt.ZeroShot:       "The user is using **Zero-Shot prompting**, which relies on clear instructions without examples. This works well for simple tasks but may need more guidance for nuanced classification.",
	prompt.FewShot:        "The user is using **Few-Shot Learning**, which provides labeled examples to guide the model. This is excellent for showing the model what good classifications look like.",
	prompt.ChainOfThought: "The user is using **Chain-of-Thought prompting**, which asks the model to reason step-by-step. This helps with complex decisions but remember the output should still be just JSON.",
	prompt.Structured:     "The user is using **Structured Reasoning**, which breaks classification into systematic steps. This ensures consistent evaluation across all items.",
}

// FixedChecklist is the canned feedback for the "fixed" level.
const FixedChecklist = `### Prompt Checklist

- **Define each label**: say what makes an item belong to every class, in one or two sentences.
- **Describe intent over keywords**: judge what the author is trying to achieve, not which words appear.
- **Cover the edge cases**: tell the model how to handle sarcasm, mixed messages and off-topic items.
- **Show an example or two**: a labeled example per class often helps more than another rule.
- **Keep it short**: remove instructions that do not change a decision.`

func taskContext(taskType string, labels []string) string {
	if len(labels) == 0 {
		labels = prompt.DefaultLabels
	}
	if taskType == domain.TaskBinary && isDefaultPair(labels) {
		return `The user is learning to prompt an AI to classify Hurricane Irma tweets as "humanitarian" or "not_humanitarian".`
	}
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = fmt.Sprintf("%q", l)
	}
	return fmt.Sprintf("The user is learning to prompt an AI to solve a %s classification task with the labels %s.",
		taskType, strings.Join(quoted, ", "))
}

func isDefaultPair(labels []string) bool {
	for _, l := range labels {
		if l != prompt.DefaultLabels[0] && l != prompt.DefaultLabels[1] {
			return false
		}
	}
	return true
}

func principles(taskType string, labels []string) string {
	if taskType == domain.TaskBinary && isDefaultPair(labels) {
		return `BINARY CLASSIFICATION PRINCIPLES:
- Clear definitions work better than exhaustive rules
- Focus on INTENT and IMPACT, not keyword matching
- Simple > Complex for most classification tasks
- Examples are powerful teachers (especially with few-shot learning)
- "humanitarian" = actionable disaster relief information (warnings, requests, damage reports, aid offers)
- "not_humanitarian" = everything else (opinions, commentary, unrelated content)`
	}
	return `CLASSIFICATION PRINCIPLES:
- Clear definitions work better than exhaustive rules
- Focus on INTENT and IMPACT, not keyword matching
- Simple > Complex for most classification tasks
- Examples are powerful teachers (especially with few-shot learning)
- Every label needs a definition that separates it from its closest neighbour`
}

func systemMessage(req Request, final bool) string {
	closing := principles(req.TaskType, req.Labels)
	if final {
		closing = "FINAL ATTEMPT - Provide a learning summary with key takeaways about prompt engineering principles."
	}

	return fmt.Sprintf(`You are an expert prompt engineering coach. Your role is to provide clear, actionable feedback that helps users improve their prompts.

CRITICAL RULES FOR YOUR FEEDBACK:
1. DO NOT include technical implementation details like JSON formatting, code blocks, or API syntax in the improved prompt
2. Focus on the CLASSIFICATION LOGIC and DECISION CRITERIA
3. Your improved prompt should read like natural instructions a human would give to another human
4. Be concise and specific - avoid generic advice
5. Acknowledge the prompting technique being used (%s)

TASK CONTEXT:
%s
- %s

GOOD FEEDBACK CHARACTERISTICS:
- Identifies specific issues with clarity, specificity, or logic
- Explains WHY something doesn't work (e.g., "too vague" vs "vague prompts work poorly")
- Provides concrete examples of improvements
- Balances encouragement with constructive criticism
- Improved prompts should be CLEAN and USER-FOCUSED (no JSON, no technical formatting instructions)

%s`, req.Technique, taskContext(req.TaskType, req.Labels), techniqueContext[req.Technique], closing)
}

func userMessage(req Request, final bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CURRENT ATTEMPT: %d of %d\n", req.AttemptNumber, domain.MaxAttempts)
	fmt.Fprintf(&b, "TECHNIQUE USED: %s\n", req.Technique)
	fmt.Fprintf(&b, "USER'S PROMPT: \"%s\"\n", req.UserPrompt)
	fmt.Fprintf(&b, "RESULTS: \"%s\"\n", req.ReportText)

	if len(req.PreviousContext) > 0 {
		b.WriteString("\nPREVIOUS ATTEMPTS:\n")
		for _, p := range req.PreviousContext {
			fmt.Fprintf(&b, "Attempt %d: %s\n", p.Attempt, p.Performance)
		}
		b.WriteString("\nCompare current performance with previous attempts. If performance declined, explain why. If improved, acknowledge what worked.\n")
	}

	b.WriteString("\n")
	if final {
		b.WriteString(`Provide a comprehensive learning summary:
1. Key lessons learned about prompt engineering
2. What techniques improved performance
3. Common mistakes to avoid
4. How to apply these principles to other tasks

Format with **bold headers** and bullet points (•).`)
		return b.String()
	}

	fmt.Fprintf(&b, `Provide your feedback in this structure:

### Guidance and Feedback

**Technique Used**: Acknowledge they're using %[1]s

**What Worked**: Specific positive elements (if any)

**What Needs Improvement**: Specific issues with their prompt (e.g., vague language, missing context, unclear criteria)

**Why Performance Is X%%**: Brief explanation tied to specific prompt weaknesses/strengths

### Improved Prompt

Provide a CLEAN, NATURAL improved version that:
- Reads like instructions to a human helper
- Focuses purely on the classification task and criteria
- Does NOT include JSON formatting, code syntax, or technical details
- Incorporates the %[1]s technique effectively
- Is clear, specific, and actionable

REMEMBER: The improved prompt should be the classification instructions ONLY. No JSON, no code blocks, no "output format" - just the decision logic.`, req.Technique)
	return b.String()
}
