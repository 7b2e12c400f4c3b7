package harness

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/callwright/callwright/core/evaluation"
	"github.com/callwright/callwright/core/results"
	"github.com/callwright/callwright/core/texttospeech"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoGreeting reports that the agent never opened the conversation.
var ErrNoGreeting = errors.New("no initial greeting received")

// RunType selects how stimuli are produced for a conversation.
type RunType string

const (
	// RunTypeHuman replays step audio recorded from a real conversation.
	RunTypeHuman RunType = "human"
	// RunTypeSynthetic sends provided audio files or texts.
	RunTypeSynthetic RunType = "synthetic"
	// RunTypeDynamic generates the caller side turn by turn with an LLM.
	RunTypeDynamic RunType = "dynamic"
	// RunTypeTranslation behaves like synthetic but is judged on language
	// clarity instead of a golden path.
	RunTypeTranslation RunType = "translation"
)

// SessionCreator obtains a fresh session token from the platform before
// each conversation.
type SessionCreator interface {
	CreateSession(ctx context.Context) (string, error)
}

// PreparedStimuli is the ordered input for one conversation.
type PreparedStimuli struct {
	Items []StimulusItem
	// Golden is the expected transcript for human runs, and a short
	// description of the input otherwise.
	Golden string
}

// StimulusSource prepares the stimuli for one conversation.
type StimulusSource interface {
	Prepare(ctx context.Context, conversationID string) (PreparedStimuli, error)
}

// Recognizer transcribes agent reply audio.
type Recognizer interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Evaluator judges a finished conversation.
type Evaluator interface {
	Evaluate(ctx context.Context, req evaluation.Request) (*evaluation.Verdict, error)
}

// AudioMonitor plays agent reply audio as it arrives.
type AudioMonitor interface {
	Play(data []byte) error
}

// RunOutcome classifies a whole conversation run.
type RunOutcome string

const (
	RunPassed  RunOutcome = "pass"
	RunFailed  RunOutcome = "fail"
	RunErrored RunOutcome = "error"
)

// RunReport summarizes one conversation run.
type RunReport struct {
	ConversationID string
	TestID         string
	Steps          []StepResult
	Outcome        RunOutcome
	// Verdict is set when an evaluator judged the run.
	Verdict  *evaluation.Verdict
	Duration time.Duration
	// Err is the failure that stopped the run before or after dispatch.
	// Per-step failures live in Steps instead.
	Err error
}

// RunnerConfig carries the scalar knobs of a run. Zero durations mean
// defaults; negative durations mean none.
type RunnerConfig struct {
	// Endpoint is the agent WebSocket URL.
	Endpoint string
	// ChannelID tags judged results.
	ChannelID string
	// RunType selects how stimuli are produced. Default RunTypeHuman.
	RunType RunType
	// Mode is the conversation flavor requested from the agent. Default
	// ModeVoice. Text mode never synthesizes stimulus audio.
	Mode Mode
	// Scenario drives dynamic runs and their judging.
	Scenario string
	// MaxSteps bounds dynamic runs. Default DefaultDynamicMaxSteps.
	MaxSteps int

	Policy            TurnPolicy
	StepDelay         time.Duration
	Pacing            time.Duration
	ConversationGap   time.Duration
	ConnectTimeout    time.Duration
	GreetingDelay     time.Duration
	KeepaliveInterval time.Duration

	// LogDir receives conversation history files. Default "logs".
	LogDir string
	// ScratchDir receives synthesized dynamic-step audio.
	ScratchDir string
}

func (c RunnerConfig) withDefaults() RunnerConfig {
	if c.RunType == "" {
		c.RunType = RunTypeHuman
	}
	if c.Mode == "" {
		c.Mode = ModeVoice
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = DefaultDynamicMaxSteps
	}
	c.Policy = c.Policy.withDefaults()
	c.StepDelay = defaultDuration(c.StepDelay, DefaultStepDelay)
	c.Pacing = defaultDuration(c.Pacing, DefaultPacingDelay)
	c.ConversationGap = defaultDuration(c.ConversationGap, DefaultConversationGap)
	c.GreetingDelay = defaultDuration(c.GreetingDelay, DefaultGreetingDelay)
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.KeepaliveInterval <= 0 {
		c.KeepaliveInterval = DefaultKeepaliveInterval
	}
	if c.LogDir == "" {
		c.LogDir = "logs"
	}
	return c
}

func defaultDuration(d, fallback time.Duration) time.Duration {
	if d == 0 {
		return fallback
	}
	if d < 0 {
		return 0
	}
	return d
}

// Runner drives complete conversation runs end to end: session creation,
// connection, greeting, stimulus dispatch, evaluation, and persistence.
// Collaborators are optional; a missing evaluator skips judging, a missing
// monitor skips playback, a missing recognizer leaves audio-only replies
// untranscribed.
type Runner struct {
	cfg RunnerConfig

	sessions    SessionCreator
	stimuli     StimulusSource
	generator   UtteranceGenerator
	synthesizer texttospeech.Synthesizer
	evaluator   Evaluator
	recognizer  Recognizer
	monitor     AudioMonitor
	store       *results.Store
	onStep      func(StepResult)
}

type RunnerOption func(*Runner)

// WithSessionCreator resolves a fresh session token through the platform
// before each conversation.
func WithSessionCreator(creator SessionCreator) RunnerOption {
	return func(r *Runner) { r.sessions = creator }
}

// WithStimulusSource supplies the per-conversation stimuli for fixed runs.
func WithStimulusSource(source StimulusSource) RunnerOption {
	return func(r *Runner) { r.stimuli = source }
}

// WithUtteranceGenerator drives dynamic runs.
func WithUtteranceGenerator(generator UtteranceGenerator) RunnerOption {
	return func(r *Runner) { r.generator = generator }
}

// WithSynthesizer voices dynamic-run utterances before dispatch.
func WithSynthesizer(synthesizer texttospeech.Synthesizer) RunnerOption {
	return func(r *Runner) { r.synthesizer = synthesizer }
}

// WithEvaluator judges each finished conversation.
func WithEvaluator(evaluator Evaluator) RunnerOption {
	return func(r *Runner) { r.evaluator = evaluator }
}

// WithReplyRecognizer transcribes audio-only agent replies so they appear
// in the transcript.
func WithReplyRecognizer(recognizer Recognizer) RunnerOption {
	return func(r *Runner) { r.recognizer = recognizer }
}

// WithAudioMonitor plays agent audio while the run is in progress.
func WithAudioMonitor(monitor AudioMonitor) RunnerOption {
	return func(r *Runner) { r.monitor = monitor }
}

// WithResultStore persists judged results and the run summary.
func WithResultStore(store *results.Store) RunnerOption {
	return func(r *Runner) { r.store = store }
}

// WithStepObserver reports every recorded step, for live views.
func WithStepObserver(observer func(StepResult)) RunnerOption {
	return func(r *Runner) { r.onStep = observer }
}

func NewRunner(cfg RunnerConfig, opts ...RunnerOption) *Runner {
	r := &Runner{cfg: cfg.withDefaults()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunConversation executes one full conversation and reports how it went.
// Failures before the first stimulus yield an errored report with nothing
// dispatched; dispatch failures are recorded per step.
func (r *Runner) RunConversation(ctx context.Context, conversationID string) (report RunReport) {
	ctx, span := tracer.Start(ctx, "run conversation")
	defer span.End()
	span.SetAttributes(
		attribute.String("request.conversation_id", conversationID),
		attribute.String("request.run_type", string(r.cfg.RunType)),
	)

	started := time.Now()
	report = RunReport{
		ConversationID: conversationID,
		TestID:         results.NewTestID(conversationID),
		Outcome:        RunErrored,
	}
	defer func() {
		report.Duration = time.Since(started)
		if report.Err != nil {
			span.RecordError(report.Err)
			span.SetAttributes(attribute.String("error", report.Err.Error()))
		}
	}()

	if r.cfg.Endpoint == "" {
		report.Err = errors.New("no agent endpoint configured")
		return report
	}

	token := ""
	if r.sessions != nil {
		t, err := r.sessions.CreateSession(ctx)
		if err != nil {
			report.Err = fmt.Errorf("failed to create session: %w", err)
			return report
		}
		token = t
	}

	var prepared PreparedStimuli
	if r.cfg.RunType == RunTypeDynamic {
		if r.generator == nil {
			report.Err = errors.New("no utterance generator configured")
			return report
		}
	} else {
		if r.stimuli == nil {
			report.Err = errors.New("no stimulus source configured")
			return report
		}
		p, err := r.stimuli.Prepare(ctx, conversationID)
		if err != nil {
			report.Err = fmt.Errorf("failed to prepare stimuli: %w", err)
			return report
		}
		prepared = p
	}

	transcript := NewTranscriptLog(r.cfg.LogDir, conversationID)
	defer transcript.Close()

	sessionOpts := []SessionOption{
		WithConnectTimeout(r.cfg.ConnectTimeout),
		WithGreetingDelay(r.cfg.GreetingDelay),
	}
	if r.monitor != nil {
		sessionOpts = append(sessionOpts, WithAudioCallback(func(data []byte) {
			if err := r.monitor.Play(data); err != nil {
				log.Println("Failed to play reply audio:", err)
			}
		}))
	}

	sess, err := Connect(ctx, r.cfg.Endpoint, token, r.cfg.Mode, sessionOpts...)
	if err != nil {
		report.Err = fmt.Errorf("failed to connect: %w", err)
		return report
	}
	keepalive := StartKeepalive(sess, r.cfg.KeepaliveInterval)
	defer sess.Close()
	defer keepalive.Stop()

	greeting := sess.AwaitTurn(r.cfg.Policy)
	switch greeting.Status {
	case StatusSessionClosed:
		report.Err = greeting.Err
		return report
	case StatusTimedOutEmpty:
		report.Err = ErrNoGreeting
		return report
	case StatusError:
		report.Err = fmt.Errorf("failed waiting for greeting: %w", greeting.Err)
		return report
	}
	span.AddEvent("greeting received", trace.WithAttributes(
		attribute.String("turn.status", string(greeting.Status))))
	if text := r.replyText(ctx, greeting); text != "" {
		transcript.Log("Agent", text)
	}

	dispatchOpts := []DispatchOption{
		WithTurnPolicy(r.cfg.Policy),
		WithStepDelay(r.cfg.StepDelay),
		WithTranscript(transcript),
	}
	if r.recognizer != nil {
		dispatchOpts = append(dispatchOpts, WithRecognizer(r.recognizer))
	}
	if r.onStep != nil {
		dispatchOpts = append(dispatchOpts, WithStepCallback(r.onStep))
	}

	if r.cfg.RunType == RunTypeDynamic {
		synth := r.synthesizer
		if r.cfg.Mode == ModeText {
			synth = nil
		}
		report.Steps = RunDynamic(ctx, sess, r.generator, synth, DynamicConfig{
			Scenario:   r.cfg.Scenario,
			MaxSteps:   r.cfg.MaxSteps,
			Pacing:     r.cfg.Pacing,
			Policy:     r.cfg.Policy,
			ScratchDir: r.cfg.ScratchDir,
		}, dispatchOpts...)
	} else {
		report.Steps = Dispatch(ctx, sess, prepared.Items, dispatchOpts...)
	}

	// The agent should see the disconnect before the verdict is requested.
	keepalive.Stop()
	sess.Close()

	if r.evaluator == nil {
		report.Outcome = unevaluatedOutcome(report.Steps)
		return report
	}

	verdict, err := r.evaluator.Evaluate(ctx, evaluation.Request{
		TestID:           report.TestID,
		ChannelID:        r.cfg.ChannelID,
		RunType:          string(r.cfg.RunType),
		Scenario:         r.cfg.Scenario,
		Transcript:       results.CleanTranscript(transcript.Render()),
		GoldenTranscript: r.golden(prepared),
	})
	if err != nil {
		report.Err = fmt.Errorf("failed to evaluate conversation: %w", err)
		return report
	}

	report.Verdict = verdict
	if verdict.Passed() {
		report.Outcome = RunPassed
	} else {
		report.Outcome = RunFailed
	}
	return report
}

// replyText resolves the text of a turn, transcribing reply audio when the
// agent sent none and a recognizer is available.
func (r *Runner) replyText(ctx context.Context, outcome Outcome) string {
	if outcome.Text != "" || r.recognizer == nil {
		return outcome.Text
	}
	audio := collectAudio(outcome.Frames)
	if len(audio) == 0 {
		return ""
	}
	text, err := r.recognizer.Transcribe(ctx, audio)
	if err != nil {
		log.Println("Failed to transcribe reply audio:", err)
		return ""
	}
	return text
}

// golden resolves the reference transcript handed to the judge.
func (r *Runner) golden(prepared PreparedStimuli) string {
	if r.cfg.RunType == RunTypeDynamic {
		scenario := r.cfg.Scenario
		if scenario == "" {
			scenario = "Unknown scenario"
		}
		return "Dynamic synthetic run: " + scenario
	}
	if prepared.Golden == "" {
		return "No golden transcript available"
	}
	return prepared.Golden
}

// unevaluatedOutcome classifies a run when no judge is configured: it
// passes when at least one step ran and every stimulus was delivered.
func unevaluatedOutcome(steps []StepResult) RunOutcome {
	if len(steps) == 0 {
		return RunErrored
	}
	for _, step := range steps {
		if !step.Success() {
			return RunFailed
		}
	}
	return RunPassed
}

// Run executes every conversation in order, persists judged results, and
// returns the per-conversation reports. A cancelled context returns the
// reports collected so far.
func (r *Runner) Run(ctx context.Context, conversationIDs []string) ([]RunReport, error) {
	ctx, span := tracer.Start(ctx, "run conversations")
	defer span.End()
	span.SetAttributes(attribute.Int("request.conversations", len(conversationIDs)))

	if len(conversationIDs) == 0 {
		err := errors.New("no conversation ids provided")
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return nil, err
	}

	reports := make([]RunReport, 0, len(conversationIDs))
	saved := make([]results.TestResult, 0, len(conversationIDs))

	for i, conversationID := range conversationIDs {
		if i > 0 && r.cfg.ConversationGap > 0 {
			select {
			case <-time.After(r.cfg.ConversationGap):
			case <-ctx.Done():
				return reports, ctx.Err()
			}
		}

		report := r.RunConversation(ctx, conversationID)
		reports = append(reports, report)

		if report.Verdict == nil {
			continue
		}
		result := results.FromVerdict(report.Verdict, results.Metadata{
			DurationMS:      report.Duration.Milliseconds(),
			AudioFilesSent:  countAudioSteps(report.Steps),
			TotalMessages:   len(report.Steps),
			EvaluationModel: r.evaluationModel(),
		})
		saved = append(saved, result)
		if r.store == nil {
			continue
		}
		if _, err := r.store.Save(result, conversationID); err != nil {
			log.Println("Failed to save test result:", err)
		}
	}

	if r.store != nil && len(saved) > 0 {
		if _, err := r.store.SaveSummary(results.Summarize(saved)); err != nil {
			log.Println("Failed to save run summary:", err)
		}
	}

	return reports, nil
}

func countAudioSteps(steps []StepResult) int {
	count := 0
	for _, step := range steps {
		if step.AudioBytes > 0 {
			count++
		}
	}
	return count
}

func (r *Runner) evaluationModel() string {
	if named, ok := r.evaluator.(interface{ Model() string }); ok {
		return named.Model()
	}
	return "unknown"
}
