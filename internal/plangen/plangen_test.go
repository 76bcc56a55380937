package plangen_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/myrjola/runplan/internal/errors"
	"github.com/myrjola/runplan/internal/plangen"
	"github.com/myrjola/runplan/internal/testhelpers"
)

type chatRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

func completionServer(t *testing.T, content string, requests chan<- chatRequest) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var req chatRequest
		if err = json.Unmarshal(body, &req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if requests != nil {
			requests <- req
		}
		resp := map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1741000000,
			"model":   req.Model,
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
			"usage": map[string]any{"prompt_tokens": 120, "completion_tokens": 80, "total_tokens": 200},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func newClient(t *testing.T, server *httptest.Server) *plangen.Client {
	t.Helper()
	return plangen.New(plangen.Config{
		APIKey:     "test-key",
		Model:      "gpt-4o",
		BaseURL:    server.URL + "/",
		MaxRetries: 0,
	}, testhelpers.NewLogger(testhelpers.NewWriter(t)))
}

func TestClient_Generate(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "plain JSON", content: `{"weeks": [{"days": [{"type": "easy", "distance_km": 5}]}]}`},
		{name: "fenced JSON", content: "```json\n{\"weeks\": [{\"days\": [{\"type\": \"easy\", \"distance_km\": 5}]}]}\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			requests := make(chan chatRequest, 1)
			client := newClient(t, completionServer(t, tt.content, requests))

			plan, err := client.Generate(t.Context(), "Подготовка к полумарафону за 8 недель")
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}

			want := map[string]any{
				"weeks": []any{map[string]any{"days": []any{map[string]any{"type": "easy", "distance_km": 5.0}}}},
			}
			if diff := cmp.Diff(want, map[string]any(plan)); diff != "" {
				t.Errorf("plan mismatch (-want +got):\n%s", diff)
			}

			req := <-requests
			if req.Model != "gpt-4o" {
				t.Errorf("model = %q", req.Model)
			}
			if req.ResponseFormat.Type != "json_object" {
				t.Errorf("response_format = %q, want json_object", req.ResponseFormat.Type)
			}
			var roles []string
			for _, m := range req.Messages {
				roles = append(roles, m.Role)
			}
			if diff := cmp.Diff([]string{"system", "user"}, roles); diff != "" {
				t.Errorf("roles mismatch (-want +got):\n%s", diff)
			}
			if got := req.Messages[1].Content; got != "Подготовка к полумарафону за 8 недель" {
				t.Errorf("user prompt = %q", got)
			}
		})
	}
}

func TestClient_Generate_malformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "prose", content: "Вот ваш план: бегайте больше."},
		{name: "null", content: "null"},
		{name: "array", content: `[{"days": []}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newClient(t, completionServer(t, tt.content, nil))
			if _, err := client.Generate(t.Context(), "план"); !errors.Is(err, plangen.ErrMalformedResponse) {
				t.Errorf("Generate() error = %v, want %v", err, plangen.ErrMalformedResponse)
			}
		})
	}
}

func TestClient_Generate_serverError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error": {"message": "invalid api key", "type": "invalid_request_error"}}`)
	}))
	t.Cleanup(server.Close)

	_, err := newClient(t, server).Generate(t.Context(), "план")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, plangen.ErrMalformedResponse) {
		t.Errorf("transport error reported as malformed response: %v", err)
	}
}
