package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDownloadStepAudioWritesFiles(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/audio/1":
			w.Write([]byte("first-audio"))
		case "/audio/2":
			w.Write([]byte("second-audio-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	dir := t.TempDir()
	stale := filepath.Join(dir, "step_9.mp3")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatalf("failed to seed stale file: %v", err)
	}

	client, err := NewClient(server.URL, "ch-1", WithAccessToken("secret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	steps := []StepAudio{
		{Step: 1, Utterance: "hello", AudioURL: server.URL + "/audio/1"},
		{Step: 2, Utterance: "my name is Jane", AudioURL: server.URL + "/audio/2"},
	}
	downloads, err := client.DownloadStepAudio(context.Background(), steps, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("expected stale audio to be cleared")
	}
	if len(downloads) != 2 {
		t.Fatalf("expected 2 downloads, got %d", len(downloads))
	}
	for i, want := range []string{"first-audio", "second-audio-bytes"} {
		if downloads[i].Err != nil {
			t.Fatalf("unexpected download error for step %d: %v", i+1, downloads[i].Err)
		}
		data, err := os.ReadFile(downloads[i].Path)
		if err != nil {
			t.Fatalf("failed to read downloaded file: %v", err)
		}
		if string(data) != want {
			t.Fatalf("unexpected file content for step %d: %q", i+1, data)
		}
		if downloads[i].Size != int64(len(want)) {
			t.Fatalf("unexpected size for step %d: %d", i+1, downloads[i].Size)
		}
	}
	if filepath.Base(downloads[0].Path) != "step_1.mp3" {
		t.Fatalf("unexpected file name: %q", downloads[0].Path)
	}
}

func TestDownloadStepAudioRecordsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ok" {
			w.Write([]byte("fine"))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	client, err := NewClient(server.URL, "ch-1", WithAccessToken("secret"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	steps := []StepAudio{
		{Step: 1, Utterance: "a", AudioURL: server.URL + "/missing"},
		{Step: 2, Utterance: "b", AudioURL: server.URL + "/ok"},
		{Step: 3, Utterance: "c"},
	}
	downloads, err := client.DownloadStepAudio(context.Background(), steps, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(downloads) != 3 {
		t.Fatalf("expected 3 downloads, got %d", len(downloads))
	}
	if downloads[0].Err == nil {
		t.Fatal("expected an error for the missing file")
	}
	if downloads[1].Err != nil {
		t.Fatalf("unexpected error for the good file: %v", downloads[1].Err)
	}
	if downloads[2].Err == nil {
		t.Fatal("expected an error for the step without a URL")
	}
}
