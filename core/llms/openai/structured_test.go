package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type callVerdict struct {
	Result string `json:"result"`
	Reason string `json:"reason"`
}

func TestPromptJSONSchema(t *testing.T) {
	var gotBody schemaRequestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"{\"result\":\"pass\",\"reason\":\"all steps honored\"}"}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(WithAPIKey("test-key"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	verdict, err := PromptJSONSchema[callVerdict](context.Background(), client, "Evaluate the call.")
	if err != nil {
		t.Fatalf("structured prompt failed: %v", err)
	}

	if verdict.Result != "pass" || verdict.Reason != "all steps honored" {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}

	if gotBody.ResponseFormat == nil || gotBody.ResponseFormat.Type != "json_schema" {
		t.Fatalf("response format not requested: %+v", gotBody.ResponseFormat)
	}
	if gotBody.ResponseFormat.JSONSchema == nil || gotBody.ResponseFormat.JSONSchema.Name != "callVerdict" {
		t.Fatalf("unexpected schema name: %+v", gotBody.ResponseFormat.JSONSchema)
	}
}

func TestPromptJSONSchemaFencedContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := map[string]any{
			"choices": []map[string]any{{
				"message": map[string]any{
					"role":    "assistant",
					"content": "```json\n{\"result\":\"fail\",\"reason\":\"wrong date offered\"}\n```",
				},
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(body)
	}))
	defer server.Close()

	client, err := NewClient(WithAPIKey("test-key"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	verdict, err := PromptJSONSchema[callVerdict](context.Background(), client, "Evaluate the call.")
	if err != nil {
		t.Fatalf("structured prompt failed: %v", err)
	}

	if verdict.Result != "fail" || verdict.Reason != "wrong date offered" {
		t.Fatalf("unexpected verdict: %+v", verdict)
	}
}

func TestPromptJSONSchemaMalformedContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"not json at all"}}]}`))
	}))
	defer server.Close()

	client, err := NewClient(WithAPIKey("test-key"), WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	if _, err := PromptJSONSchema[callVerdict](context.Background(), client, "Evaluate the call."); err == nil {
		t.Fatal("expected error for malformed content")
	}
}
