package harness

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/callwright/callwright/core/wire"
)

// StimulusItem is one prepared conversation step. Audio-backed items carry
// the path of a WAV file to send; text-backed items carry the utterance
// itself. Err marks a stimulus whose preparation already failed upstream.
type StimulusItem struct {
	Step      int
	Utterance string
	AudioPath string
	Text      string
	Err       error
}

// StepResult records one dispatched step and the turn that followed it.
type StepResult struct {
	Step       int
	Utterance  string
	AudioBytes int
	Outcome    Outcome
	Err        error
	Timestamp  time.Time
}

// Success reports whether the stimulus was delivered. Whether the agent
// answered well is the judge's business, not the dispatcher's.
func (r StepResult) Success() bool { return r.Err == nil }

// Dispatch plays the prepared stimuli in order, one turn each.
//
// A stimulus that cannot be prepared or read fails its own step and the run
// moves on; only a session observed closed before a send aborts the
// remainder. The inter-step delay is skipped after the final item.
func Dispatch(ctx context.Context, sess *Session, items []StimulusItem, opts ...DispatchOption) []StepResult {
	options := DispatchOptions{stepDelay: DefaultStepDelay}
	for _, opt := range opts {
		opt(&options)
	}

	results := make([]StepResult, 0, len(items))
	span := trace.SpanFromContext(ctx)

	for i, item := range items {
		if !sess.IsOpen() {
			log.Println("Session closed before sending next stimulus, aborting sequence")
			result := StepResult{
				Step:      item.Step,
				Utterance: item.Utterance,
				Err:       fmt.Errorf("step %d not sent: %w", item.Step, ErrSessionClosed),
				Timestamp: time.Now(),
			}
			results = append(results, result)
			if options.onStep != nil {
				options.onStep(result)
			}
			break
		}

		result := dispatchStep(ctx, sess, item, options)
		span.AddEvent("step dispatched", trace.WithAttributes(
			attribute.Int("step.number", result.Step),
			attribute.String("turn.status", string(result.Outcome.Status)),
		))
		results = append(results, result)
		if options.onStep != nil {
			options.onStep(result)
		}

		if i < len(items)-1 {
			select {
			case <-time.After(options.stepDelay):
			case <-ctx.Done():
				return results
			}
		}
	}

	return results
}

func dispatchStep(ctx context.Context, sess *Session, item StimulusItem, options DispatchOptions) StepResult {
	result := StepResult{
		Step:      item.Step,
		Utterance: item.Utterance,
		Timestamp: time.Now(),
	}

	if item.Err != nil {
		result.Err = fmt.Errorf("stimulus unavailable for step %d: %w", item.Step, item.Err)
		return result
	}

	var send func() error
	if item.AudioPath != "" {
		data, err := os.ReadFile(item.AudioPath)
		if err != nil {
			result.Err = fmt.Errorf("failed to read stimulus audio for step %d: %w", item.Step, err)
			return result
		}
		result.AudioBytes = len(data)
		send = func() error { return sess.SendAudio(data) }
	} else {
		send = func() error { return sess.SendText(item.Text) }
	}

	if options.transcript != nil {
		options.transcript.Log("User", item.Utterance)
	}

	if dropped := sess.Drain(); dropped > 0 {
		log.Printf("Dropped %d stale frame(s) before step %d", dropped, item.Step)
	}
	if err := send(); err != nil {
		result.Err = fmt.Errorf("failed to send step %d: %w", item.Step, err)
		return result
	}

	result.Outcome = sess.AwaitTurn(options.policy)

	if result.Outcome.Text == "" && options.recognizer != nil {
		if data := collectAudio(result.Outcome.Frames); len(data) > 0 {
			if text, err := options.recognizer.Transcribe(ctx, data); err != nil {
				log.Println("Failed to transcribe reply audio:", err)
			} else {
				result.Outcome.Text = text
			}
		}
	}

	if options.transcript != nil && result.Outcome.Replied() {
		options.transcript.Log("Agent", result.Outcome.Text)
	}

	return result
}

// collectAudio concatenates the audio payloads of a turn in arrival order.
func collectAudio(frames []wire.Frame) []byte {
	var data []byte
	for _, frame := range frames {
		if audioFrame, ok := frame.(wire.Audio); ok {
			data = append(data, audioFrame.Data...)
		}
	}
	return data
}
