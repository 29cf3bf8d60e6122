// Package classify runs a learner's prompt against a labeled dataset by
// splitting it into chunks that are classified concurrently.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ashureev/prompt-labs/internal/domain"
	"github.com/ashureev/prompt-labs/internal/llm"
	"github.com/ashureev/prompt-labs/internal/metrics"
)

const defaultMaxTokens = 4096

// Options tunes the model calls made by a Classifier.
type Options struct {
	Model     string
	MaxTokens int
}

// Input is one classification request.
type Input struct {
	// Prompt is the normalized learner prompt.
	Prompt string
	// ChatHistory is replayed before each chunk. Callers cap its length.
	ChatHistory []llm.Message
	TaskType    string
	Dataset     []domain.Sample
}

// Result is the outcome of a classification.
type Result struct {
	Merged    []domain.MergedRecord
	Report    *domain.Report
	Usage     domain.Usage
	Unmatched int
}

// Classifier fans a dataset out to the model in ChunkCount parallel calls.
type Classifier struct {
	client llm.Client
	opts   Options
}

// New creates a Classifier backed by client.
func New(client llm.Client, opts Options) *Classifier {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return &Classifier{client: client, opts: opts}
}

type unlabeled struct {
	ID   domain.SampleID `json:"id"`
	Text string          `json:"text"`
}

type chunkResult struct {
	preds []domain.Prediction
	usage domain.Usage
}

// Classify labels every sample in in.Dataset and scores the result. Any
// chunk failure aborts the whole run and cancels the remaining calls.
func (c *Classifier) Classify(ctx context.Context, in Input, onProgress domain.ProgressFunc) (*Result, error) {
	// Chunk goroutines report concurrently; observers see one event at a time.
	var emitMu sync.Mutex
	emit := func(ev domain.ProgressEvent) {
		emitMu.Lock()
		defer emitMu.Unlock()
		onProgress.Emit(ev)
	}
	fail := func(err error) (*Result, error) {
		emit(domain.ProgressEvent{Status: domain.StatusError, Message: err.Error()})
		return nil, err
	}

	if len(in.Dataset) == 0 {
		return fail(domain.NewValidationError("dataset", "no samples to classify"))
	}

	vocab := domain.Labels(in.Dataset)
	canon := CanonicalizerFor(in.TaskType, vocab)
	system := systemPrompt(vocab)

	spans := Partition(len(in.Dataset), ChunkCount)
	emit(domain.ProgressEvent{
		Status:  domain.StatusChunking,
		Message: fmt.Sprintf("Split %d samples into %d chunks", len(in.Dataset), len(spans)),
		Total:   len(spans),
	})

	ctx = llm.WithLabels(llm.WithPurpose(ctx, llm.PurposeClassify), vocab)
	results := make([]chunkResult, len(spans))
	var done atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	for i, span := range spans {
		g.Go(func() error {
			if span.Len() > 0 {
				res, err := c.classifyChunk(gctx, system, in, in.Dataset[span.Start:span.End], canon)
				if err != nil {
					return fmt.Errorf("chunk %d: %w", i+1, err)
				}
				results[i] = res
			}
			n := int(done.Add(1))
			emit(domain.ProgressEvent{
				Status:  domain.StatusProcessing,
				Message: fmt.Sprintf("Processed chunk %d of %d", n, len(spans)),
				Current: n,
				Total:   len(spans),
			})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fail(err)
	}

	var preds []domain.Prediction
	var usage domain.Usage
	for _, r := range results {
		preds = append(preds, r.preds...)
		usage = usage.Add(r.usage)
	}

	merged, unmatched := Merge(in.Dataset, preds)
	mergeMsg := fmt.Sprintf("Merged %d predictions", len(preds))
	if unmatched > 0 {
		mergeMsg += fmt.Sprintf(", %d samples without a prediction", unmatched)
		slog.Warn("Predictions missing for samples",
			"user_id", llm.UserFrom(ctx),
			"unmatched", unmatched,
			"total", len(in.Dataset),
		)
	}
	emit(domain.ProgressEvent{Status: domain.StatusMerging, Message: mergeMsg})

	emit(domain.ProgressEvent{Status: domain.StatusCalculating, Message: "Calculating metrics"})
	trueLabels := make([]string, len(merged))
	predicted := make([]*string, len(merged))
	for i, m := range merged {
		trueLabels[i] = m.Label
		predicted[i] = m.PredictedLabel
	}
	report, err := metrics.Report(trueLabels, predicted)
	if err != nil {
		return fail(err)
	}

	emit(domain.ProgressEvent{
		Status:  domain.StatusComplete,
		Message: "Classification complete: " + metrics.Summary(report),
	})

	return &Result{Merged: merged, Report: report, Usage: usage, Unmatched: unmatched}, nil
}

func (c *Classifier) classifyChunk(ctx context.Context, system string, in Input, chunk []domain.Sample, canon *BinaryLabels) (chunkResult, error) {
	items := make([]unlabeled, len(chunk))
	for i, s := range chunk {
		items[i] = unlabeled{ID: s.ID, Text: s.Text}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return chunkResult{}, fmt.Errorf("encoding chunk: %w", err)
	}

	messages := make([]llm.Message, 0, len(in.ChatHistory)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	messages = append(messages, in.ChatHistory...)
	messages = append(messages, llm.Message{
		Role:    llm.RoleUser,
		Content: in.Prompt + "\n\n" + llm.DatasetMarker + "\n" + string(data),
	})

	resp, err := c.client.Complete(ctx, messages, llm.Params{
		Model:       c.opts.Model,
		Temperature: 0,
		MaxTokens:   c.opts.MaxTokens,
	})
	if err != nil {
		return chunkResult{}, &domain.ServiceError{Op: "classification request", Err: err}
	}

	preds, err := ParseResponse(resp.Text, canon)
	if err != nil {
		return chunkResult{}, err
	}
	return chunkResult{preds: preds, usage: resp.Usage}, nil
}

// Merge joins predictions onto samples by id. The first prediction for an
// id wins; samples without one get a nil PredictedLabel.
func Merge(samples []domain.Sample, preds []domain.Prediction) ([]domain.MergedRecord, int) {
	byID := make(map[string]string, len(preds))
	for _, p := range preds {
		k := p.ID.Key()
		if k == "" {
			continue
		}
		if _, ok := byID[k]; !ok {
			byID[k] = p.Pred
		}
	}

	merged := make([]domain.MergedRecord, len(samples))
	unmatched := 0
	for i, s := range samples {
		merged[i] = domain.MergedRecord{Sample: s}
		if p, ok := byID[s.ID.Key()]; ok {
			merged[i].PredictedLabel = &p
		} else {
			unmatched++
		}
	}
	return merged, unmatched
}

func systemPrompt(labels []string) string {
	quoted := make([]string, len(labels))
	for i, l := range labels {
		quoted[i] = fmt.Sprintf("%q", l)
	}
	allowed := strings.Join(quoted, " or ")

	var example string
	if len(labels) > 0 {
		example = fmt.Sprintf(`[{"id": 905739273827004417, "pred": %s}]`, quoted[0])
	}

	return `You are a text classification system. You MUST respond with ONLY a valid JSON array in this EXACT format:
` + example + `

CRITICAL RULES:
- Response must be ONLY the JSON array, no other text before or after
- Use EXACTLY one of these labels for pred values: ` + allowed + `
- Include ALL ids from the dataset
- No explanations, no reasoning, no markdown code blocks, no additional text
- The response should start with [ and end with ]
- If the user's prompt is unclear, still return the JSON format with your best classification attempt

IMPORTANT: Follow the user's classification instructions carefully. Apply their prompt logic to decide the label of each item.`
}
