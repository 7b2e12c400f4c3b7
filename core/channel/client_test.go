package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateSessionExtractsTopLevelToken(t *testing.T) {
	var gotPath string
	var gotBody createSessionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"token": "tok-123"}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "ch-1", WithAccessToken("secret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := client.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "tok-123" {
		t.Fatalf("unexpected token: %q", token)
	}
	if gotPath != "/web_channel/channel/ch-1/agentic_agents/create_session" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotBody.User != probeUser {
		t.Fatalf("unexpected session user: %+v", gotBody.User)
	}
}

func TestCreateSessionExtractsNestedToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": {"token": "tok-456"}}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "ch-1", WithAccessToken("secret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	token, err := client.CreateSession(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "tok-456" {
		t.Fatalf("unexpected token: %q", token)
	}
}

func TestCreateSessionErrorsWithoutToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "ok"}`))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "ch-1", WithAccessToken("secret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.CreateSession(context.Background()); err == nil {
		t.Fatal("expected an error when the response has no token")
	}
}

func TestCreateSessionErrorsOnHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "ch-1", WithAccessToken("secret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.CreateSession(context.Background()); err == nil {
		t.Fatal("expected an error on HTTP failure")
	}
}

func TestNewClientRequiresChannelID(t *testing.T) {
	if _, err := NewClient("http://localhost", "", WithAccessToken("secret")); err == nil {
		t.Fatal("expected an error for a missing channel ID")
	}
}

func TestFetchConversationProcessesArchive(t *testing.T) {
	archive := `{
		"entries": [
			{
				"content_type": "audio",
				"timetoken": 100,
				"attachments": [{"files": [{"url": "https://files.test/full.mp3", "name": "full_call.mp3", "size": 2500000}]}]
			},
			{
				"content_type": "text",
				"content": "*transcript*\nSystem: connected\n  Agent: Hello, how can I help?\nUser: I want to confirm my appointment\nAgent: Sure, what is your name?\n User: John Doe\nnoise line"
			},
			{
				"content_type": "audio",
				"timetoken": 300,
				"user": {"phone": "9876543210"},
				"attachments": [{"files": [{"url": "https://files.test/segment-2.mp3", "name": "audio_segment_2.mp3", "size": 42000}]}]
			},
			{
				"content_type": "audio",
				"timetoken": 200,
				"user": {"phone": "9876543210"},
				"attachments": [{"files": [{"url": "https://files.test/segment-1.mp3", "name": "audio_segment_1.mp3", "size": 41000}]}]
			}
		]
	}`

	var gotToken, gotDevice, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotToken = r.Header.Get("Access-Token")
		gotDevice = r.Header.Get("Device-Id")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(archive))
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "ch-1", WithAccessToken("secret"), WithDeviceID("device-7"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conv, err := client.FetchConversation(context.Background(), "conv-9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/conversations/conv-9/messages.json" {
		t.Fatalf("unexpected path: %q", gotPath)
	}
	if gotToken != "secret" || gotDevice != "device-7" {
		t.Fatalf("unexpected auth headers: token=%q device=%q", gotToken, gotDevice)
	}

	if conv.FullAudioURL != "https://files.test/full.mp3" {
		t.Fatalf("unexpected full audio URL: %q", conv.FullAudioURL)
	}
	wantTranscript := "Agent: Hello, how can I help?\nUser: I want to confirm my appointment\nAgent: Sure, what is your name?\nUser: John Doe"
	if conv.Transcript != wantTranscript {
		t.Fatalf("unexpected transcript: %q", conv.Transcript)
	}

	if len(conv.Steps) != 2 {
		t.Fatalf("expected 2 steps, got %d: %+v", len(conv.Steps), conv.Steps)
	}
	if conv.Steps[0].Utterance != "I want to confirm my appointment" || conv.Steps[0].AudioURL != "https://files.test/segment-1.mp3" {
		t.Fatalf("unexpected first step: %+v", conv.Steps[0])
	}
	if conv.Steps[1].Utterance != "John Doe" || conv.Steps[1].AudioURL != "https://files.test/segment-2.mp3" {
		t.Fatalf("unexpected second step: %+v", conv.Steps[1])
	}
}
