package harness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/callwright/callwright/core/texttospeech"
	"github.com/callwright/callwright/core/wire"
)

type scriptedGenerator struct {
	utterances []string
	err        error
	requests   []UtteranceRequest
}

func (g *scriptedGenerator) NextUtterance(_ context.Context, req UtteranceRequest) (string, error) {
	g.requests = append(g.requests, req)
	call := len(g.requests)
	if call > len(g.utterances) {
		return "", g.err
	}
	return g.utterances[call-1], nil
}

type fakeSynth struct {
	err   error
	calls []string
}

func (s *fakeSynth) Synthesize(_ context.Context, text string, _ ...texttospeech.SynthesisOption) ([]byte, error) {
	s.calls = append(s.calls, text)
	if s.err != nil {
		return nil, s.err
	}
	return []byte("wav:" + text), nil
}

func dynamicTestConfig(scenario string, maxSteps int) DynamicConfig {
	return DynamicConfig{
		Scenario: scenario,
		MaxSteps: maxSteps,
		Pacing:   time.Millisecond,
		Policy:   quickTurns,
	}
}

func TestRunDynamicWalksScenario(t *testing.T) {
	endpoint, _ := replyingAgent(t, []string{"Hi! Which day suits you?", "Confirmed for nine."})

	sess, err := Connect(context.Background(), endpoint, "token", ModeText, WithGreetingDelay(0))
	if err != nil {
		t.Fatalf("unexpected connect error: %+v", err)
	}
	defer sess.Close()

	gen := &scriptedGenerator{utterances: []string{
		"Hello, I am calling about my booking.",
		"Tomorrow at nine.",
	}}
	results := RunDynamic(context.Background(), sess, gen, nil, dynamicTestConfig("reschedule a booking", 6))

	if len(results) != 2 {
		t.Fatalf("expected 2 steps, got %+v", results)
	}
	if results[0].Outcome.Text != "Hi! Which day suits you?" || results[1].Outcome.Text != "Confirmed for nine." {
		t.Fatalf("unexpected replies: %+v", results)
	}

	if len(gen.requests) != 3 {
		t.Fatalf("expected 3 generator calls, got %d", len(gen.requests))
	}
	first := gen.requests[0]
	if !first.InitialOpening || first.Scenario != "reschedule a booking" || first.RemainingSteps != 6 {
		t.Fatalf("unexpected opening request: %+v", first)
	}
	second := gen.requests[1]
	if second.InitialOpening || second.AgentLastMessage != "Hi! Which day suits you?" || second.RemainingSteps != 5 {
		t.Fatalf("unexpected follow-up request: %+v", second)
	}
	if !strings.Contains(second.ConversationSoFar, "User: Hello, I am calling about my booking.") ||
		!strings.Contains(second.ConversationSoFar, "Agent: Hi! Which day suits you?") {
		t.Fatalf("unexpected conversation context:\n%s", second.ConversationSoFar)
	}
}

func TestRunDynamicRetriesRepeatedAgentPrompt(t *testing.T) {
	prompt := "Please tell me your date of birth to verify your identity."
	endpoint, _ := replyingAgent(t, []string{prompt, prompt, "Thanks, all set."})

	sess, err := Connect(context.Background(), endpoint, "token", ModeText, WithGreetingDelay(0))
	if err != nil {
		t.Fatalf("unexpected connect error: %+v", err)
	}
	defer sess.Close()

	gen := &scriptedGenerator{utterances: []string{
		"Hello there.",
		"It is the fourth of May.",
		"May fourth, nineteen ninety.",
	}}
	results := RunDynamic(context.Background(), sess, gen, nil, dynamicTestConfig("identity check", 2))

	if len(results) != 3 {
		t.Fatalf("expected 3 dispatched steps, got %+v", results)
	}
	steps := []int{results[0].Step, results[1].Step, results[2].Step}
	if steps[0] != 1 || steps[1] != 2 || steps[2] != 2 {
		t.Fatalf("expected the repeated prompt to retry step 2, got %v", steps)
	}
	if gen.requests[2].AgentLastMessage != prompt {
		t.Fatalf("expected the retry to keep the previous agent message, got %+v", gen.requests[2])
	}
}

func TestRunDynamicStopsWhenGeneratorIsDone(t *testing.T) {
	endpoint, _ := replyingAgent(t, nil)

	sess, err := Connect(context.Background(), endpoint, "token", ModeText, WithGreetingDelay(0))
	if err != nil {
		t.Fatalf("unexpected connect error: %+v", err)
	}
	defer sess.Close()

	gen := &scriptedGenerator{}
	results := RunDynamic(context.Background(), sess, gen, nil, dynamicTestConfig("anything", 4))

	if len(results) != 0 {
		t.Fatalf("expected no steps, got %+v", results)
	}
	if len(gen.requests) != 1 {
		t.Fatalf("expected a single generator call, got %d", len(gen.requests))
	}
}

func TestRunDynamicStopsOnGeneratorError(t *testing.T) {
	endpoint, _ := replyingAgent(t, nil)

	sess, err := Connect(context.Background(), endpoint, "token", ModeText, WithGreetingDelay(0))
	if err != nil {
		t.Fatalf("unexpected connect error: %+v", err)
	}
	defer sess.Close()

	gen := &scriptedGenerator{err: errors.New("generation backend down")}
	results := RunDynamic(context.Background(), sess, gen, nil, dynamicTestConfig("anything", 4))

	if len(results) != 0 {
		t.Fatalf("expected no steps after a generator failure, got %+v", results)
	}
}

func TestRunDynamicSynthesizesVoiceSteps(t *testing.T) {
	endpoint, messages := replyingAgent(t, []string{"Hello!"})

	sess, err := Connect(context.Background(), endpoint, "token", ModeVoice, WithGreetingDelay(0))
	if err != nil {
		t.Fatalf("unexpected connect error: %+v", err)
	}
	defer sess.Close()

	scratch := t.TempDir()
	gen := &scriptedGenerator{utterances: []string{"Hi there"}}
	synth := &fakeSynth{}

	cfg := dynamicTestConfig("greeting", 3)
	cfg.ScratchDir = scratch
	results := RunDynamic(context.Background(), sess, gen, synth, cfg)

	if len(results) != 1 || !results[0].Success() {
		t.Fatalf("unexpected results: %+v", results)
	}
	if results[0].AudioBytes != len("wav:Hi there") {
		t.Fatalf("unexpected audio byte count: %d", results[0].AudioBytes)
	}

	data, err := os.ReadFile(filepath.Join(scratch, "temp_step_1.wav"))
	if err != nil {
		t.Fatalf("unexpected error reading step audio: %+v", err)
	}
	if string(data) != "wav:Hi there" {
		t.Fatalf("unexpected step audio: %q", data)
	}

	if msg := expectClientMessage(t, messages); msg.Type != wire.TypeSessionGreeting {
		t.Fatalf("expected the greeting first, got %+v", msg)
	}
	if msg := expectClientMessage(t, messages); string(msg.Binary) != "wav:Hi there" {
		t.Fatalf("expected the synthesized audio on the wire, got %+v", msg)
	}
}

func TestRunDynamicSynthesisFailureEndsRun(t *testing.T) {
	endpoint, _ := replyingAgent(t, nil)

	sess, err := Connect(context.Background(), endpoint, "token", ModeVoice, WithGreetingDelay(0))
	if err != nil {
		t.Fatalf("unexpected connect error: %+v", err)
	}
	defer sess.Close()

	gen := &scriptedGenerator{utterances: []string{"Hi", "never reached"}}
	synth := &fakeSynth{err: errors.New("engine offline")}

	cfg := dynamicTestConfig("greeting", 3)
	cfg.ScratchDir = t.TempDir()
	results := RunDynamic(context.Background(), sess, gen, synth, cfg)

	if len(results) != 1 || results[0].Success() {
		t.Fatalf("expected a single failed step, got %+v", results)
	}
	if !strings.Contains(results[0].Err.Error(), "failed to synthesize step 1") {
		t.Fatalf("unexpected error text: %v", results[0].Err)
	}
	if len(synth.calls) != 1 {
		t.Fatalf("expected one synthesis attempt, got %v", synth.calls)
	}
}
