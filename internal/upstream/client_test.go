package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseServer(t *testing.T, lines []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wireRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, line := range lines {
			w.Write([]byte(line + "\n\n"))
			flusher.Flush()
		}
	}))
}

func delta(content string) string {
	quoted, _ := json.Marshal(content)
	return `data: {"choices":[{"delta":{"content":` + string(quoted) + `}}]}`
}

func TestClient_Stream(t *testing.T) {
	srv := sseServer(t, []string{
		delta("Hello"),
		delta(" world"),
		`data: [DONE]`,
	})
	defer srv.Close()

	client := New(srv.URL, "test-key", "test-model", time.Minute)

	var got []string
	err := client.Stream(context.Background(), Request{Messages: []ChatMessage{{Role: "user", Content: "hi"}}}, func(d string) error {
		got = append(got, d)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"Hello", " world"}, got)
}

func TestClient_Stream_SkipsMalformedChunks(t *testing.T) {
	srv := sseServer(t, []string{
		delta("ok"),
		`data: {not valid json`,
		`: comment line`,
		`data: {"choices":[]}`,
		delta("fine"),
		`data: [DONE]`,
	})
	defer srv.Close()

	client := New(srv.URL, "test-key", "test-model", time.Minute)

	var got strings.Builder
	err := client.Stream(context.Background(), Request{}, func(d string) error {
		got.WriteString(d)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, "okfine", got.String())
}

func TestClient_Stream_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := New(srv.URL, "test-key", "test-model", time.Minute)

	err := client.Stream(context.Background(), Request{}, func(string) error { return nil })
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_Stream_ConnectionRefused(t *testing.T) {
	client := New("http://127.0.0.1:1", "test-key", "test-model", time.Second)

	err := client.Stream(context.Background(), Request{}, func(string) error { return nil })
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestClient_Stream_CallbackError(t *testing.T) {
	srv := sseServer(t, []string{delta("a"), delta("b"), `data: [DONE]`})
	defer srv.Close()

	client := New(srv.URL, "test-key", "test-model", time.Minute)

	wantErr := assert.AnError
	err := client.Stream(context.Background(), Request{}, func(string) error { return wantErr })
	assert.ErrorIs(t, err, wantErr)
}

func TestClient_Stream_DefaultModel(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wireRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotModel = req.Model
		w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	client := New(srv.URL, "test-key", "fallback-model", time.Minute)
	require.NoError(t, client.Stream(context.Background(), Request{}, func(string) error { return nil }))
	assert.Equal(t, "fallback-model", gotModel)
}

func TestClient_Complete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req wireRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.False(t, req.Stream)

		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "full reply"}},
			},
		})
	}))
	defer srv.Close()

	client := New(srv.URL, "test-key", "test-model", time.Minute)

	got, err := client.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "full reply", got)
}

func TestClient_Complete_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer srv.Close()

	client := New(srv.URL, "test-key", "test-model", time.Minute)

	got, err := client.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Empty(t, got)
}
