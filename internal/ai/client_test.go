package ai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestChatURL(t *testing.T) {
	cases := []struct {
		base string
		want string
	}{
		{"https://api.openai.com/v1", "https://api.openai.com/v1/chat/completions"},
		{"http://localhost:8080", "http://localhost:8080/v1/chat/completions"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, chatURL(tc.base), "base=%q", tc.base)
	}
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient("", "sk-test")
	require.Error(t, err)
	require.Contains(t, err.Error(), "base URL")

	_, err = NewClient("https://api.openai.com/v1", "  ")
	require.Error(t, err)
	require.Contains(t, err.Error(), "API key")

	c, err := NewClient("https://api.openai.com/v1/", "sk-test")
	require.NoError(t, err)
	require.Equal(t, "https://api.openai.com/v1", c.baseURL)
}

func newTestClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := NewClient(srv.URL, "sk-test",
		WithHTTPClient(&http.Client{Timeout: 2 * time.Second}))
	require.NoError(t, err)
	return c
}

func TestComplete_HappyPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var req chatRequest
		require.NoError(t, json.Unmarshal(raw, &req))
		require.Equal(t, "gpt-mock", req.Model)
		require.Len(t, req.Messages, 2)
		require.Equal(t, "system", req.Messages[0].Role)
		require.Equal(t, 512, req.MaxTokens)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-123",
			"model": "gpt-mock-2024",
			"choices": [{
				"index": 0,
				"message": { "role": "assistant", "content": "binomial theorem, step by step" }
			}],
			"usage": { "prompt_tokens": 42, "completion_tokens": 17, "total_tokens": 59 }
		}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	out, err := c.Complete(context.Background(), "gpt-mock", []Message{
		{Role: "system", Content: "you are a tutor"},
		{Role: "user", Content: "explain the binomial theorem"},
	}, 512)
	require.NoError(t, err)
	require.Equal(t, "binomial theorem, step by step", out.Text)
	require.Equal(t, "gpt-mock-2024", out.Model)
	require.Equal(t, 42, out.PromptTokens)
	require.Equal(t, 17, out.CompletionTokens)
	require.Equal(t, 59, out.TotalTokens)
	require.GreaterOrEqual(t, out.LatencyMs, int64(0))
}

func TestComplete_EmptyModelAndMessages(t *testing.T) {
	c, err := NewClient("http://localhost:9", "sk-test")
	require.NoError(t, err)

	_, err = c.Complete(context.Background(), "", []Message{{Role: "user", Content: "hi"}}, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "model")

	_, err = c.Complete(context.Background(), "gpt-mock", nil, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "messages")
}

func TestComplete_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), "gpt-mock", []Message{{Role: "user", Content: "hi"}}, 0)
	require.Error(t, err)

	var statusErr *HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
	require.Contains(t, statusErr.Body, "rate limited")
}

func TestComplete_MalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not-a-json`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), "gpt-mock", []Message{{Role: "user", Content: "hi"}}, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode response")
}

func TestComplete_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	_, err := c.Complete(context.Background(), "gpt-mock", []Message{{Role: "user", Content: "hi"}}, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no choices")
}

func TestComplete_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := newTestClient(t, srv)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Complete(ctx, "gpt-mock", []Message{{Role: "user", Content: "hi"}}, 0)
	require.Error(t, err)
	require.Contains(t, err.Error(), "request failed")
}
