//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/prompt-labs/internal/dataset"
	"github.com/ashureev/prompt-labs/internal/domain"
	"github.com/ashureev/prompt-labs/internal/llm"
)

func TestJSON(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	JSON(w, http.StatusOK, map[string]string{"foo": "bar"})

	resp := w.Result()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var got map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, "bar", got["foo"])
}

func TestStatusFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", domain.NewValidationError("prompt", "too short"), http.StatusBadRequest},
		{"empty csv", dataset.ErrEmptyCSV, http.StatusBadRequest},
		{"not found", &domain.NotFoundError{Resource: "dataset", Key: "u1"}, http.StatusNotFound},
		{"parse", fmt.Errorf("chunk 2: %w", &domain.ParseError{Message: "bad"}), http.StatusUnprocessableEntity},
		{"provider", &domain.ServiceError{Op: "classification request", Err: &llm.ErrRateLimit{Err: errors.New("429")}}, http.StatusBadGateway},
		{"timeout", fmt.Errorf("attempt: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestWriteErrorMissingColumns(t *testing.T) {
	t.Parallel()

	w := httptest.NewRecorder()
	WriteError(w, &dataset.MissingColumnsError{Found: []string{"body", "tag"}})

	require.Equal(t, http.StatusBadRequest, w.Code)
	var got map[string]interface{}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&got))
	assert.Equal(t, false, got["success"])
	assert.Equal(t, []interface{}{"body", "tag"}, got["foundColumns"])
}
