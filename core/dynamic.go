package harness

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/callwright/callwright/core/texttospeech"
)

// UtteranceRequest is what the caller generator knows when producing the
// next thing to say.
type UtteranceRequest struct {
	Scenario          string
	AgentLastMessage  string
	ConversationSoFar string
	RemainingSteps    int
	// InitialOpening is set on the first step, where the generator opens the
	// scenario instead of reacting to the agent.
	InitialOpening bool
}

// UtteranceGenerator produces the QA caller's next utterance. An empty
// utterance ends the conversation cleanly.
type UtteranceGenerator interface {
	NextUtterance(ctx context.Context, req UtteranceRequest) (string, error)
}

// DynamicConfig drives an LLM-generated conversation.
type DynamicConfig struct {
	Scenario string
	MaxSteps int
	// Pacing separates turns. Non-positive means DefaultPacingDelay.
	Pacing time.Duration
	// Policy bounds each turn wait.
	Policy TurnPolicy
	// ScratchDir receives the synthesized per-step audio files. Empty means
	// the OS temp directory.
	ScratchDir string
}

// RunDynamic drives the conversation with generated utterances until the
// step budget is exhausted or the generator has nothing more to say.
//
// When the agent repeats its previous prompt the logical step is retried
// with a fresh generation instead of burning the budget. Turn policy and
// pacing come from cfg; options contribute the transcript, recognizer, and
// step callback. A nil synth sends the utterances as text frames.
func RunDynamic(
	ctx context.Context,
	sess *Session,
	gen UtteranceGenerator,
	synth texttospeech.Synthesizer,
	cfg DynamicConfig,
	opts ...DispatchOption,
) []StepResult {
	options := DispatchOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	options.policy = cfg.Policy

	pacing := cfg.Pacing
	if pacing <= 0 {
		pacing = DefaultPacingDelay
	}
	scratchDir := cfg.ScratchDir
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}

	var (
		results      []StepResult
		conversation strings.Builder
		lastReply    string
	)

	for step := 1; step <= cfg.MaxSteps; {
		utterance, err := gen.NextUtterance(ctx, UtteranceRequest{
			Scenario:          cfg.Scenario,
			AgentLastMessage:  lastReply,
			ConversationSoFar: conversation.String(),
			RemainingSteps:    cfg.MaxSteps - step + 1,
			InitialOpening:    step == 1,
		})
		if err != nil {
			log.Printf("Failed to generate utterance at step %d, ending conversation: %v", step, err)
			break
		}
		utterance = strings.TrimSpace(utterance)
		if utterance == "" {
			log.Printf("Empty utterance generated at step %d, ending conversation", step)
			break
		}

		item := StimulusItem{Step: step, Utterance: utterance, Text: utterance}
		if synth != nil {
			path, err := synthesizeStep(ctx, synth, utterance, scratchDir, step)
			if err != nil {
				result := StepResult{
					Step:      step,
					Utterance: utterance,
					Err:       fmt.Errorf("failed to synthesize step %d: %w", step, err),
					Timestamp: time.Now(),
				}
				results = append(results, result)
				if options.onStep != nil {
					options.onStep(result)
				}
				break
			}
			item.AudioPath = path
		}

		result := dispatchStep(ctx, sess, item, options)
		results = append(results, result)
		if options.onStep != nil {
			options.onStep(result)
		}

		reply := result.Outcome.Text
		conversation.WriteString("\nUser: " + utterance + "\n")
		conversation.WriteString("Agent: " + reply + "\n")

		if !sess.IsOpen() {
			break
		}

		if repeatsPrevious(lastReply, reply) {
			log.Printf("Agent repeated its prompt at step %d, retrying with fresh generation", step)
		} else {
			lastReply = reply
			step++
		}

		select {
		case <-time.After(pacing):
		case <-ctx.Done():
			return results
		}
	}

	return results
}

// repeatsPrevious reports whether the agent's reply repeats the previous
// one: equal after trimming and lowercasing, or one side longer than 20
// characters and contained in the other.
func repeatsPrevious(previous, current string) bool {
	if current == "" || previous == "" {
		return false
	}
	a := strings.ToLower(strings.TrimSpace(current))
	b := strings.ToLower(strings.TrimSpace(previous))
	return a == b ||
		(len(a) > 20 && strings.Contains(b, a)) ||
		(len(b) > 20 && strings.Contains(a, b))
}

// synthesizeStep renders one utterance into the scratch directory, replacing
// any previous file for the same step number.
func synthesizeStep(ctx context.Context, synth texttospeech.Synthesizer, utterance, dir string, step int) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("temp_step_%d.wav", step))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to clear previous step audio: %w", err)
	}

	data, err := synth.Synthesize(ctx, utterance)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write step audio: %w", err)
	}
	return path, nil
}
