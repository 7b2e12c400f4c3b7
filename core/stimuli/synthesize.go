package stimuli

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	harness "github.com/callwright/callwright/core"
	"github.com/callwright/callwright/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
)

// Synthesize renders each text to step_<n>.wav in dir and returns the
// audio-backed stimuli. Previous renders are cleared first. A step that
// fails to synthesize carries the error on its item; the rest continue.
func Synthesize(ctx context.Context, synth texttospeech.Synthesizer, texts []string, dir string) (Prepared, error) {
	ctx, span := tracer.Start(ctx, "synthesize stimuli")
	defer span.End()

	if len(texts) == 0 {
		err := fmt.Errorf("no texts to synthesize")
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return Prepared{}, err
	}
	if err := clearRenders(dir); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return Prepared{}, err
	}

	items := make([]harness.StimulusItem, 0, len(texts))
	failed := 0
	for i, text := range texts {
		item := harness.StimulusItem{Step: i + 1, Utterance: text}
		if data, err := synth.Synthesize(ctx, text); err != nil {
			item.Err = fmt.Errorf("failed to synthesize step %d: %w", i+1, err)
		} else {
			path := filepath.Join(dir, fmt.Sprintf("step_%d.wav", i+1))
			if err := os.WriteFile(path, data, 0o644); err != nil {
				item.Err = fmt.Errorf("failed to write step %d audio: %w", i+1, err)
			} else {
				item.AudioPath = path
			}
		}
		if item.Err != nil {
			failed++
			log.Println(item.Err)
		}
		items = append(items, item)
	}

	span.SetAttributes(
		attribute.Int("stimuli.steps", len(items)),
		attribute.Int("stimuli.failed", failed),
	)
	return Prepared{Items: items, Golden: "Synthetic run (no golden transcript)"}, nil
}

// clearRenders removes WAV files left over from a previous synthesis run.
func clearRenders(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create synthesis directory: %w", err)
	}
	stale, err := filepath.Glob(filepath.Join(dir, "*.wav"))
	if err != nil {
		return err
	}
	for _, path := range stale {
		if err := os.Remove(path); err != nil {
			log.Printf("Could not remove %s: %v", filepath.Base(path), err)
		}
	}
	return nil
}
