package channel

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"go.opentelemetry.io/otel/attribute"
)

// StepDownload records one attempted step-audio download. A failed step
// keeps its position so the run can report it without shifting the rest.
type StepDownload struct {
	Step      int
	Utterance string
	Path      string
	Size      int64
	Err       error
}

// DownloadStepAudio fetches each step's audio segment into dir, clearing
// the previous run's files first. Failed steps are recorded and the rest
// continue.
func (c *Client) DownloadStepAudio(ctx context.Context, steps []StepAudio, dir string) ([]StepDownload, error) {
	ctx, span := tracer.Start(ctx, "download step audio")
	defer span.End()

	if err := clearAudioDir(dir); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return nil, err
	}

	downloads := make([]StepDownload, 0, len(steps))
	failed := 0
	for _, step := range steps {
		download := StepDownload{Step: step.Step, Utterance: step.Utterance}
		if step.AudioURL == "" {
			download.Err = fmt.Errorf("no audio URL for step %d", step.Step)
		} else {
			path := filepath.Join(dir, fmt.Sprintf("step_%d.mp3", step.Step))
			size, err := c.downloadFile(ctx, step.AudioURL, path)
			if err != nil {
				download.Err = fmt.Errorf("failed to download audio for step %d: %w", step.Step, err)
			} else {
				download.Path = path
				download.Size = size
			}
		}
		if download.Err != nil {
			failed++
			log.Println(download.Err)
		}
		downloads = append(downloads, download)
	}

	span.SetAttributes(
		attribute.Int("download.steps", len(downloads)),
		attribute.Int("download.failed", failed),
	)
	return downloads, nil
}

// clearAudioDir removes audio left over from a previous run so stale steps
// cannot leak into this one.
func clearAudioDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create audio directory: %w", err)
	}
	stale, err := filepath.Glob(filepath.Join(dir, "*.mp3"))
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
