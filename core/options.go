package harness

import "time"

const (
	// DefaultConnectTimeout bounds the WebSocket handshake.
	DefaultConnectTimeout = 10 * time.Second
	// DefaultGreetingDelay is the pause between connecting and sending the
	// greeting control frame.
	DefaultGreetingDelay = 1 * time.Second
	// DefaultResponseTimeout is the ceiling on waiting for an agent turn.
	DefaultResponseTimeout = 60 * time.Second
	// DefaultSettleDelay is how long a turn keeps collecting frames after
	// the first complete text before it resolves.
	DefaultSettleDelay = 500 * time.Millisecond
	// DefaultStepDelay separates consecutive fixed-mode stimuli.
	DefaultStepDelay = 5 * time.Second
	// DefaultKeepaliveInterval spaces application-level pings.
	DefaultKeepaliveInterval = 30 * time.Second
	// DefaultPacingDelay separates dynamic-mode turns.
	DefaultPacingDelay = 2 * time.Second
	// DefaultConversationGap separates consecutive conversations in a
	// multi-conversation run.
	DefaultConversationGap = 2 * time.Second
	// DefaultDynamicMaxSteps bounds dynamic conversations.
	DefaultDynamicMaxSteps = 6
)

// Mode selects the conversation flavor requested from the agent.
type Mode string

const (
	ModeVoice Mode = "voice"
	ModeText  Mode = "text"
)

// TurnPolicy bounds a single turn wait.
type TurnPolicy struct {
	// Timeout is the ceiling on the whole wait. Non-positive means
	// DefaultResponseTimeout.
	Timeout time.Duration
	// SettleDelay is the collection window after the first complete text.
	// Non-positive means DefaultSettleDelay.
	SettleDelay time.Duration
}

func (p TurnPolicy) withDefaults() TurnPolicy {
	if p.Timeout <= 0 {
		p.Timeout = DefaultResponseTimeout
	}
	if p.SettleDelay <= 0 {
		p.SettleDelay = DefaultSettleDelay
	}
	return p
}

type SessionOptions struct {
	connectTimeout time.Duration
	greetingDelay  time.Duration
	onAudio        func(data []byte)
}

type SessionOption func(*SessionOptions)

// WithConnectTimeout bounds the WebSocket handshake.
func WithConnectTimeout(timeout time.Duration) SessionOption {
	return func(o *SessionOptions) {
		if timeout > 0 {
			o.connectTimeout = timeout
		}
	}
}

// WithGreetingDelay overrides the pause before the greeting frame is sent.
func WithGreetingDelay(delay time.Duration) SessionOption {
	return func(o *SessionOptions) {
		if delay >= 0 {
			o.greetingDelay = delay
		}
	}
}

// WithAudioCallback registers a callback for inbound reply audio.
//
// The payload slice is passed through as-is and the callback runs inline on
// the receive path, so it must not block.
func WithAudioCallback(callback func(data []byte)) SessionOption {
	return func(o *SessionOptions) {
		o.onAudio = callback
	}
}

// DispatchOptions configure Dispatch and RunDynamic.
type DispatchOptions struct {
	policy     TurnPolicy
	stepDelay  time.Duration
	transcript *TranscriptLog
	recognizer Recognizer
	onStep     func(StepResult)
}

type DispatchOption func(*DispatchOptions)

// WithTurnPolicy overrides the per-turn wait policy.
func WithTurnPolicy(policy TurnPolicy) DispatchOption {
	return func(o *DispatchOptions) { o.policy = policy }
}

// WithStepDelay overrides the pause between consecutive stimuli.
func WithStepDelay(delay time.Duration) DispatchOption {
	return func(o *DispatchOptions) {
		if delay >= 0 {
			o.stepDelay = delay
		}
	}
}

// WithTranscript mirrors both sides of every step into the transcript log.
func WithTranscript(transcript *TranscriptLog) DispatchOption {
	return func(o *DispatchOptions) { o.transcript = transcript }
}

// WithRecognizer transcribes reply audio into Outcome.Text for turns where
// the agent answered with audio only.
func WithRecognizer(recognizer Recognizer) DispatchOption {
	return func(o *DispatchOptions) { o.recognizer = recognizer }
}

// WithStepCallback observes every step result as it is recorded.
func WithStepCallback(callback func(StepResult)) DispatchOption {
	return func(o *DispatchOptions) { o.onStep = callback }
}
