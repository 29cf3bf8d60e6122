package attempt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/prompt-labs/internal/classify"
	"github.com/ashureev/prompt-labs/internal/domain"
	"github.com/ashureev/prompt-labs/internal/feedback"
	"github.com/ashureev/prompt-labs/internal/llm"
)

type fakeStore struct {
	mu       sync.Mutex
	attempts map[string]*domain.Attempt
	saveErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{attempts: map[string]*domain.Attempt{}}
}

func slotKey(userID string, n int) string { return fmt.Sprintf("%s/%d", userID, n) }

func (f *fakeStore) GetAttempt(_ context.Context, userID string, n int) (*domain.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts[slotKey(userID, n)], nil
}

func (f *fakeStore) UpsertAttempt(_ context.Context, a *domain.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	cp := *a
	f.attempts[slotKey(a.UserID, a.AttemptNumber)] = &cp
	return nil
}

func (f *fakeStore) ListAttempts(_ context.Context, userID string) ([]*domain.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Attempt
	for _, a := range f.attempts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AttemptNumber < out[j].AttemptNumber })
	return out, nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.attempts)
}

type fakeDatasets struct {
	samples []domain.Sample
	err     error
}

func (f fakeDatasets) Load(context.Context, string, string) ([]domain.Sample, error) {
	return f.samples, f.err
}

func eightSamples() []domain.Sample {
	texts := []string{
		"Shelters are open across Miami-Dade",
		"Enjoying the sunset before the storm",
		"Volunteers needed to deliver water in Naples",
		"Irma memes are the best memes",
		"Power lines down on 5th street",
		"Watching the game at home tonight",
		"Donate to the Red Cross to help Irma victims",
		"My cat is unimpressed by the wind",
	}
	out := make([]domain.Sample, len(texts))
	for i, text := range texts {
		label := "humanitarian"
		if i%2 == 1 {
			label = "not_humanitarian"
		}
		out[i] = domain.Sample{ID: domain.SampleID(fmt.Sprintf("%d", 905739273827004417+i)), Text: text, Label: label}
	}
	return out
}

// scriptedModel answers classification calls from the true labels and
// feedback calls with feedbackText, or feedbackErr when set.
type scriptedModel struct {
	truth        map[string]string
	feedbackText string
	feedbackErr  error
}

func (m *scriptedModel) respond(ctx context.Context, msgs []llm.Message, _ llm.Params) (llm.MockResponse, error) {
	if llm.PurposeFrom(ctx) == llm.PurposeFeedback {
		if m.feedbackErr != nil {
			return llm.MockResponse{Err: m.feedbackErr}, nil
		}
		return llm.MockResponse{Text: m.feedbackText, Usage: domain.Usage{TotalTokens: 7}}, nil
	}

	user := msgs[len(msgs)-1].Content
	idx := strings.Index(user, llm.DatasetMarker)
	var items []struct {
		ID domain.SampleID `json:"id"`
	}
	if err := json.Unmarshal([]byte(user[idx+len(llm.DatasetMarker):]), &items); err != nil {
		return llm.MockResponse{}, err
	}
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = fmt.Sprintf(`{"id": %s, "pred": %q}`, it.ID.Key(), m.truth[it.ID.Key()])
	}
	return llm.MockResponse{Text: "[" + strings.Join(parts, ",") + "]", Usage: domain.Usage{TotalTokens: 10}}, nil
}

type harness struct {
	svc   *Service
	store *fakeStore
	mock  *llm.MockClient
	model *scriptedModel
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	samples := eightSamples()
	truth := make(map[string]string, len(samples))
	for _, s := range samples {
		truth[s.ID.Key()] = s.Label
	}
	model := &scriptedModel{truth: truth, feedbackText: "Nice structure."}
	mock := &llm.MockClient{Responder: model.respond}
	store := newFakeStore()

	svc := NewService(Config{
		Store:      store,
		Datasets:   fakeDatasets{samples: samples},
		Classifier: classify.New(mock, classify.Options{}),
		Coach:      feedback.New(mock, feedback.Options{}),
		Provider:   "mock",
		Model:      "mock",
	})
	return &harness{svc: svc, store: store, mock: mock, model: model}
}

func validSubmission(n int) Submission {
	return Submission{
		UserID:        "anon_1",
		Prompt:        "Label tweets that carry actionable relief information as humanitarian.",
		AttemptNumber: n,
	}
}

type events struct {
	mu   sync.Mutex
	list []domain.ProgressEvent
}

func (e *events) record(ev domain.ProgressEvent) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.list = append(e.list, ev)
}

func (e *events) count(status string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, ev := range e.list {
		if ev.Status == status {
			n++
		}
	}
	return n
}

func (e *events) last() domain.ProgressEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.list[len(e.list)-1]
}

func TestNormalizeAttemptNumber(t *testing.T) {
	t.Parallel()

	want := []int{1, 2, 3, 1, 2, 3, 1}
	for raw := 1; raw <= 7; raw++ {
		assert.Equal(t, want[raw-1], NormalizeAttemptNumber(raw), "raw=%d", raw)
	}
}

func TestSubmissionValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		edit  func(*Submission)
		field string
	}{
		{"missing user", func(s *Submission) { s.UserID = "" }, "userId"},
		{"long user", func(s *Submission) { s.UserID = strings.Repeat("u", 101) }, "userId"},
		{"short prompt", func(s *Submission) { s.Prompt = "too short" }, "prompt"},
		{"long prompt", func(s *Submission) { s.Prompt = strings.Repeat("p", 2001) }, "prompt"},
		{"zero attempt", func(s *Submission) { s.AttemptNumber = 0 }, "attemptNumber"},
		{"bad task", func(s *Submission) { s.TaskType = "regression" }, "taskType"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sub := validSubmission(1)
			tt.edit(&sub)
			err := sub.WithDefaults().Validate()
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	assert.NoError(t, validSubmission(1).WithDefaults().Validate())
}

func TestProcessStoresScoredAttempt(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	var ev events

	a, err := h.svc.Process(context.Background(), validSubmission(1), ev.record)
	require.NoError(t, err)

	assert.Equal(t, 1, a.AttemptNumber)
	assert.NotEmpty(t, a.ID)
	assert.True(t, a.Completed)
	assert.Equal(t, domain.TaskBinary, a.TaskType)
	assert.Equal(t, domain.FeedbackLLM, a.FeedbackLevel)
	assert.InDelta(t, 1.0, a.Metrics.Overall.Accuracy, 1e-9)
	assert.Equal(t, "Nice structure.", a.Feedback)
	assert.Contains(t, a.LLMOutput, "Accuracy: 100.0%")
	assert.Equal(t, 40, a.Meta.ClassificationUsage.TotalTokens)
	assert.Equal(t, 7, a.Meta.FeedbackUsage.TotalTokens)
	require.Len(t, a.ChatHistory, 2)
	assert.Equal(t, domain.RoleUser, a.ChatHistory[0].Role)
	assert.Equal(t, "Nice structure.", a.ChatHistory[1].Content)

	assert.Equal(t, 1, h.store.count())
	assert.Equal(t, domain.StatusStarted, ev.list[0].Status)
	assert.Equal(t, domain.StatusDone, ev.last().Status)
	assert.Zero(t, ev.count(domain.StatusError))
	assert.Equal(t, 5, h.mock.CallCount())
}

func TestProcessReplaysPriorAttempts(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Process(ctx, validSubmission(1), nil)
	require.NoError(t, err)
	before := h.mock.CallCount()

	_, err = h.svc.Process(ctx, validSubmission(2), nil)
	require.NoError(t, err)

	calls := h.mock.Calls()[before:]
	for _, c := range calls {
		// system + two prior turns + current request
		require.Len(t, c.Messages, 4, "purpose %s", c.Purpose)
		assert.Equal(t, "Nice structure.", c.Messages[2].Content)
		if c.Purpose == llm.PurposeFeedback {
			assert.Contains(t, c.Messages[3].Content, "PREVIOUS ATTEMPTS:\nAttempt 1: accuracy 100.0%")
			assert.Contains(t, c.Messages[3].Content, "CURRENT ATTEMPT: 2 of 3")
		}
	}
}

func TestProcessRecyclesSlotAndKeepsID(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	first, err := h.svc.Process(ctx, validSubmission(1), nil)
	require.NoError(t, err)

	sub := validSubmission(4)
	sub.Prompt = "A different prompt that still has enough characters."
	second, err := h.svc.Process(ctx, sub, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, second.AttemptNumber)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 1, h.store.count())

	stored, err := h.store.GetAttempt(ctx, "anon_1", 1)
	require.NoError(t, err)
	assert.Equal(t, sub.Prompt, stored.Prompt)
}

func TestProcessFeedbackFailurePersistsNothing(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.model.feedbackErr = &llm.ErrProviderUnavailable{Err: errors.New("503")}
	var ev events

	a, err := h.svc.Process(context.Background(), validSubmission(1), ev.record)
	require.Error(t, err)
	assert.Nil(t, a)

	var se *domain.ServiceError
	assert.ErrorAs(t, err, &se)
	assert.Zero(t, h.store.count())
	assert.Equal(t, 1, ev.count(domain.StatusError))
	assert.Equal(t, domain.StatusError, ev.last().Status)
}

func TestProcessValidationFailsBeforeModelCalls(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	var ev events

	sub := validSubmission(1)
	sub.Prompt = "short"
	_, err := h.svc.Process(context.Background(), sub, ev.record)

	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Zero(t, h.mock.CallCount())
	assert.Equal(t, 1, ev.count(domain.StatusError))
}

func TestProcessSaveFailure(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	h.store.saveErr = errors.New("database is locked")
	var ev events

	_, err := h.svc.Process(context.Background(), validSubmission(1), ev.record)
	var se *domain.ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 1, ev.count(domain.StatusError))
}

func TestProcessDatasetMissing(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	mock := llm.NewMockClient()
	svc := NewService(Config{
		Store:      store,
		Datasets:   fakeDatasets{err: &domain.NotFoundError{Resource: "built-in dataset", Key: "multilabel"}},
		Classifier: classify.New(mock, classify.Options{}),
		Coach:      feedback.New(mock, feedback.Options{}),
	})

	_, err := svc.Process(context.Background(), validSubmission(1), nil)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Zero(t, mock.CallCount())
}

func TestChatHistory(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	ctx := context.Background()

	empty, err := h.svc.ChatHistory(ctx, "anon_1", 2)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	_, err = h.svc.Process(ctx, validSubmission(2), nil)
	require.NoError(t, err)

	turns, err := h.svc.ChatHistory(ctx, "anon_1", 2)
	require.NoError(t, err)
	assert.Len(t, turns, 2)

	_, err = h.svc.ChatHistory(ctx, "anon_1", 4)
	var ve *domain.ValidationError
	assert.ErrorAs(t, err, &ve)

	list, err := h.svc.ListAttempts(ctx, "anon_1")
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestPriorHistoryCap(t *testing.T) {
	t.Parallel()

	var attempts []*domain.Attempt
	for n := 1; n <= 3; n++ {
		a := &domain.Attempt{AttemptNumber: n}
		for i := range 6 {
			a.ChatHistory = append(a.ChatHistory, domain.ChatMessage{Content: fmt.Sprintf("%d-%d", n, i)})
		}
		attempts = append(attempts, a)
	}

	got := priorHistory(attempts, 3, 10)
	require.Len(t, got, 10)
	assert.Equal(t, "1-2", got[0].Content)
	assert.Equal(t, "2-5", got[9].Content)
	assert.Empty(t, priorHistory(attempts, 1, 10))
}
