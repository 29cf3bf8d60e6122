package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
)

// DatasetMarker precedes the serialized records in a classification request.
const DatasetMarker = "Dataset to classify:"

var (
	attemptLine = regexp.MustCompile(`CURRENT ATTEMPT:\s*(\d+)`)

	reliefKeywords = []string{
		"evacuat", "rescue", "shelter", "donat", "volunteer", "relief", "emergency",
		"help", "need", "damage", "destroy", "flood", "power outage", "without power",
		"injur", "missing", "aid", "supplies", "warning", "911",
	}
)

// DemoClient stands in for a real provider when no credential is
// configured. Classification requests get deterministic labels derived
// from the request itself and feedback requests get a templated message.
// It never fails.
type DemoClient struct{}

// NewDemoClient returns a DemoClient.
func NewDemoClient() *DemoClient { return &DemoClient{} }

func (d *DemoClient) Complete(ctx context.Context, messages []Message, _ Params) (*Completion, error) {
	var text string
	switch PurposeFrom(ctx) {
	case PurposeClassify:
		text = demoClassify(lastUserMessage(messages), LabelsFrom(ctx))
	case PurposeFeedback:
		text = demoFeedback(lastUserMessage(messages))
	default:
		text = "Demo mode is active: no model credential is configured."
	}

	var promptChars int
	for _, m := range messages {
		promptChars += len(m.Content)
	}
	return &Completion{
		Text:  text,
		Usage: domainUsage(promptChars/4, len(text)/4, 0),
		Model: "demo",
	}, nil
}

func (d *DemoClient) Name() string    { return "demo" }
func (d *DemoClient) ModelID() string { return "demo" }

func lastUserMessage(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

func demoFeedback(user string) string {
	attempt := "1"
	if m := attemptLine.FindStringSubmatch(user); m != nil {
		attempt = m[1]
	}
	return fmt.Sprintf("Demo feedback for attempt %s. Focus on clear task definition and structured output format.", attempt)
}

type demoItem struct {
	ID   json.RawMessage `json:"id"`
	Text string          `json:"text"`
}

type demoPrediction struct {
	ID   json.RawMessage `json:"id"`
	Pred string          `json:"pred"`
}

func demoClassify(user string, labels []string) string {
	idx := strings.LastIndex(user, DatasetMarker)
	if idx < 0 {
		return "[]"
	}
	var items []demoItem
	if err := json.Unmarshal([]byte(strings.TrimSpace(user[idx+len(DatasetMarker):])), &items); err != nil {
		return "[]"
	}
	if len(labels) == 0 {
		labels = []string{"humanitarian", "not_humanitarian"}
	}

	preds := make([]demoPrediction, 0, len(items))
	for _, it := range items {
		preds = append(preds, demoPrediction{ID: it.ID, Pred: demoLabel(it.Text, labels)})
	}
	out, err := json.Marshal(preds)
	if err != nil {
		return "[]"
	}
	return string(out)
}

// demoLabel picks a label for text. A positive/negative vocabulary gets a
// keyword heuristic; anything else gets a stable hash bucket.
func demoLabel(text string, labels []string) string {
	if len(labels) == 2 {
		pos, neg := labels[0], labels[1]
		if isNegated(pos) {
			pos, neg = neg, pos
		}
		if isNegated(neg) && !isNegated(pos) {
			lower := strings.ToLower(text)
			for _, kw := range reliefKeywords {
				if strings.Contains(lower, kw) {
					return pos
				}
			}
			return neg
		}
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	return labels[int(h.Sum32()%uint32(len(labels)))]
}

func isNegated(label string) bool {
	l := strings.ToLower(label)
	return strings.HasPrefix(l, "not") || strings.HasPrefix(l, "non")
}
