package llm

import "context"

type contextKey string

const (
	purposeKey contextKey = "llm_purpose"
	userKey    contextKey = "llm_user"
	labelsKey  contextKey = "llm_labels"
)

// Purposes attached to requests.
const (
	PurposeClassify = "classify"
	PurposeFeedback = "feedback"
)

// WithPurpose attaches a purpose label to the context for transcripts and
// the demo client.
func WithPurpose(ctx context.Context, purpose string) context.Context {
	return context.WithValue(ctx, purposeKey, purpose)
}

// PurposeFrom extracts the purpose label from the context.
func PurposeFrom(ctx context.Context) string {
	if v, ok := ctx.Value(purposeKey).(string); ok {
		return v
	}
	return "unknown"
}

// WithUser attaches the requesting user's id.
func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey, userID)
}

// UserFrom returns the user id attached with WithUser.
func UserFrom(ctx context.Context) string {
	if v, ok := ctx.Value(userKey).(string); ok {
		return v
	}
	return ""
}

// WithLabels attaches the label vocabulary of a classification request.
func WithLabels(ctx context.Context, labels []string) context.Context {
	return context.WithValue(ctx, labelsKey, labels)
}

// LabelsFrom returns the vocabulary attached with WithLabels.
func LabelsFrom(ctx context.Context) []string {
	if v, ok := ctx.Value(labelsKey).([]string); ok {
		return v
	}
	return nil
}
