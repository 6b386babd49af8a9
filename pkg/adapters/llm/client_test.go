package llm_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/sieve/pkg/adapters/llm"
	"github.com/aretw0/sieve/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Invoke(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"gpt-4o",
			"choices":[{"index":0,"message":{"role":"assistant","content":"{\"issues\": []}"},"finish_reason":"stop"}],
			"usage":{"prompt_tokens":10,"completion_tokens":3,"total_tokens":13}}`))
	}))
	defer srv.Close()

	client := llm.New(llm.Config{Endpoint: srv.URL, APIKey: "secret", JSONMode: true})
	text, err := client.Invoke(context.Background(), "openai/gpt-4o", "analyze these rules")
	require.NoError(t, err)
	assert.Equal(t, `{"issues": []}`, text)

	assert.Equal(t, "openai/gpt-4o", got["model"])
	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "analyze these rules", msgs[1].(map[string]any)["content"])
	assert.Equal(t, "json_object", got["response_format"].(map[string]any)["type"])
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit_error"}}`))
	}))
	defer srv.Close()

	_, err := llm.New(llm.Config{Endpoint: srv.URL}).Invoke(context.Background(), "m", "p")
	var fault *domain.CollaboratorFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "api", fault.Kind)
	assert.Contains(t, fault.Detail, "429")
}

func TestClient_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	_, err := llm.New(llm.Config{Endpoint: srv.URL}).Invoke(context.Background(), "m", "p")
	var fault *domain.CollaboratorFault
	require.ErrorAs(t, err, &fault)
	assert.Equal(t, "empty", fault.Kind)
}
