package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatHandler(t *testing.T, content string, capture *chatRequest) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/chat", r.URL.Path)

		if capture != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(capture))
		}

		resp := chatResponse{Done: true}
		resp.Message.Role = "assistant"
		resp.Message.Content = content
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}
}

func TestGenerate(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(chatHandler(t, "Once upon a time.", &captured))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithModel("test-model"))

	got, err := client.Generate(context.Background(), GenerateRequest{
		Prompt:      "Write an opening line",
		System:      "You are a novelist",
		Temperature: 0.8,
		MaxTokens:   3000,
	})
	require.NoError(t, err)
	assert.Equal(t, "Once upon a time.", got)

	assert.Equal(t, "test-model", captured.Model)
	assert.False(t, captured.Stream)
	assert.Equal(t, 0.8, captured.Options.Temperature)
	assert.Equal(t, 3000, captured.Options.NumPredict)
	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "You are a novelist", captured.Messages[0].Content)
	assert.Equal(t, "user", captured.Messages[1].Role)
}

func TestGenerateUnlimitedTokens(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(chatHandler(t, "text", &captured))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, -1, captured.Options.NumPredict)
}

func TestGenerateNoSystemMessage(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(chatHandler(t, "text", &captured))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
}

func TestGenerateRetriesOnFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "model loading", http.StatusInternalServerError)
			return
		}
		chatHandler(t, "recovered", nil)(w, r)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRetry(2))

	got, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRetry(1))

	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateEmptyCompletion(t *testing.T) {
	server := httptest.NewServer(chatHandler(t, "", nil))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithRetry(0))

	_, err := client.Generate(context.Background(), GenerateRequest{Prompt: "hi"})
	assert.ErrorIs(t, err, ErrGenerationFailed)
}

func TestGenerateJSONWrapsPromptAndSystem(t *testing.T) {
	var captured chatRequest
	server := httptest.NewServer(chatHandler(t, `{"ok":true}`, &captured))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	_, err := client.GenerateJSON(context.Background(), "List the gaps", "You are an analyst", `{"type":"object"}`)
	require.NoError(t, err)

	require.Len(t, captured.Messages, 2)
	assert.Contains(t, captured.Messages[0].Content, "You are an analyst")
	assert.Contains(t, captured.Messages[0].Content, "valid JSON only")
	assert.Contains(t, captured.Messages[1].Content, "List the gaps")
	assert.Contains(t, captured.Messages[1].Content, `{"type":"object"}`)
	assert.Equal(t, 0.3, captured.Options.Temperature)
}

func tagsServer(t *testing.T, names ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tags", r.URL.Path)
		var resp tagsResponse
		for _, n := range names {
			resp.Models = append(resp.Models, struct {
				Name string `json:"name"`
			}{Name: n})
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
}

func TestResolveModel(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		served     []string
		want       string
		wantErr    bool
	}{
		{"exact match", "llama3.1:8b", []string{"mistral:7b", "llama3.1:8b"}, "llama3.1:8b", false},
		{"prefix match", "llama3.1", []string{"llama3.1:8b-instruct-q4"}, "llama3.1:8b-instruct-q4", false},
		{"exact beats prefix", "llama3.1:8b", []string{"llama3.1:8b-instruct", "llama3.1:8b"}, "llama3.1:8b", false},
		{"not served", "gemma:2b", []string{"llama3.1:8b"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := tagsServer(t, tt.served...)
			defer server.Close()

			client := NewClient(WithBaseURL(server.URL), WithModel(tt.configured))
			got, err := client.ResolveModel(context.Background())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			// Resolution never rewrites the configured model.
			assert.Equal(t, tt.configured, client.Model())
		})
	}
}

func TestIsAvailable(t *testing.T) {
	server := tagsServer(t, "llama3.1:8b")
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL), WithModel("llama3.1:8b"))
	assert.True(t, client.IsAvailable(context.Background()))

	missing := NewClient(WithBaseURL(server.URL), WithModel("gemma:2b"))
	assert.False(t, missing.IsAvailable(context.Background()))

	server.Close()
	assert.False(t, client.IsAvailable(context.Background()))
}
