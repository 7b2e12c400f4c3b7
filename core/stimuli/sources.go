package stimuli

import (
	"context"
	"fmt"

	harness "github.com/callwright/callwright/core"
	"github.com/callwright/callwright/core/channel"
	"go.opentelemetry.io/otel/attribute"
)

// Prepared is a fixed set of stimuli. It satisfies the harness stimulus
// source interface and ignores the conversation ID.
type Prepared struct {
	Items  []harness.StimulusItem
	Golden string
}

func (p Prepared) Prepare(ctx context.Context, conversationID string) (harness.PreparedStimuli, error) {
	if len(p.Items) == 0 {
		return harness.PreparedStimuli{}, fmt.Errorf("no stimuli prepared")
	}
	return harness.PreparedStimuli{Items: p.Items, Golden: p.Golden}, nil
}

// FromTexts builds text-backed stimuli, one step per utterance.
func FromTexts(texts []string) Prepared {
	items := make([]harness.StimulusItem, 0, len(texts))
	for i, text := range texts {
		items = append(items, harness.StimulusItem{Step: i + 1, Utterance: text, Text: text})
	}
	return Prepared{Items: items, Golden: "Synthetic text run (no audio)"}
}

// FromDownloads maps downloaded step audio to audio-backed stimuli,
// carrying per-step download errors through so a failed download fails its
// own step instead of the whole run.
func FromDownloads(downloads []channel.StepDownload) []harness.StimulusItem {
	items := make([]harness.StimulusItem, 0, len(downloads))
	for _, download := range downloads {
		items = append(items, harness.StimulusItem{
			Step:      download.Step,
			Utterance: download.Utterance,
			AudioPath: download.Path,
			Err:       download.Err,
		})
	}
	return items
}

// ArchiveClient is the slice of the channel client archive replay needs.
type ArchiveClient interface {
	FetchConversation(ctx context.Context, conversationID string) (*channel.Conversation, error)
	DownloadStepAudio(ctx context.Context, steps []channel.StepAudio, dir string) ([]channel.StepDownload, error)
}

// Archive replays a recorded conversation: it fetches the archive, downloads
// each user audio segment into dir, and pairs them with the transcript's
// user lines. The cleaned transcript doubles as the golden transcript.
type Archive struct {
	client ArchiveClient
	dir    string
}

func NewArchive(client ArchiveClient, dir string) *Archive {
	return &Archive{client: client, dir: dir}
}

func (a *Archive) Prepare(ctx context.Context, conversationID string) (harness.PreparedStimuli, error) {
	ctx, span := tracer.Start(ctx, "prepare archive stimuli")
	defer span.End()
	span.SetAttributes(attribute.String("conversation.id", conversationID))

	conv, err := a.client.FetchConversation(ctx, conversationID)
	if err != nil {
		err = fmt.Errorf("failed to fetch conversation: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return harness.PreparedStimuli{}, err
	}

	downloads, err := a.client.DownloadStepAudio(ctx, conv.Steps, a.dir)
	if err != nil {
		err = fmt.Errorf("failed to download step audio: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return harness.PreparedStimuli{}, err
	}

	items := FromDownloads(downloads)
	span.SetAttributes(attribute.Int("stimuli.steps", len(items)))
	return harness.PreparedStimuli{Items: items, Golden: conv.Transcript}, nil
}
