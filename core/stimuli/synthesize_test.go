package stimuli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/callwright/callwright/core/texttospeech"
)

type fakeSynthesizer struct {
	failOn string
	calls  []string
}

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text string, opts ...texttospeech.SynthesisOption) ([]byte, error) {
	f.calls = append(f.calls, text)
	if text == f.failOn {
		return nil, errors.New("synthesis rejected")
	}
	return []byte("audio for " + text), nil
}

func TestSynthesizeWritesSteps(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "step_9.wav")
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	synth := &fakeSynthesizer{}

	prepared, err := Synthesize(context.Background(), synth, []string{"hello", "goodbye"}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Fatal("expected stale render to be removed")
	}
	if len(prepared.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(prepared.Items))
	}
	for i, want := range []string{"audio for hello", "audio for goodbye"} {
		item := prepared.Items[i]
		if item.Err != nil {
			t.Fatalf("unexpected item error: %v", item.Err)
		}
		if filepath.Base(item.AudioPath) != fmt.Sprintf("step_%d.wav", i+1) {
			t.Fatalf("unexpected audio path: %q", item.AudioPath)
		}
		data, err := os.ReadFile(item.AudioPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != want {
			t.Fatalf("unexpected audio contents: %q", data)
		}
	}
	if prepared.Golden != "Synthetic run (no golden transcript)" {
		t.Fatalf("unexpected golden transcript: %q", prepared.Golden)
	}
}

func TestSynthesizeCarriesStepFailure(t *testing.T) {
	dir := t.TempDir()
	synth := &fakeSynthesizer{failOn: "goodbye"}

	prepared, err := Synthesize(context.Background(), synth, []string{"hello", "goodbye", "again"}, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(prepared.Items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(prepared.Items))
	}
	if prepared.Items[0].Err != nil || prepared.Items[2].Err != nil {
		t.Fatalf("expected surrounding steps to succeed: %+v", prepared.Items)
	}
	if prepared.Items[1].Err == nil || prepared.Items[1].AudioPath != "" {
		t.Fatalf("expected failed step to carry its error: %+v", prepared.Items[1])
	}
	if len(synth.calls) != 3 {
		t.Fatalf("expected all texts synthesized, got %v", synth.calls)
	}
}

func TestSynthesizeErrorsWithoutTexts(t *testing.T) {
	if _, err := Synthesize(context.Background(), &fakeSynthesizer{}, nil, t.TempDir()); err == nil {
		t.Fatal("expected an error for empty texts")
	}
}
