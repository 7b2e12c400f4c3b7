// Package dialogue generates the QA caller's side of a dynamic
// conversation with an LLM: the next utterance to speak given the turn
// history, and optionally a full fixed plan of steps up front.
package dialogue

import (
	"context"
	"fmt"
	"strings"

	harness "github.com/callwright/callwright/core"
	"github.com/callwright/callwright/core/llms"
	"go.opentelemetry.io/otel/attribute"
)

const (
	defaultTemperature = 0.2
	utteranceMaxTokens = 120
)

// PromptClient is the slice of the LLM client this package needs.
type PromptClient interface {
	Prompt(ctx context.Context, prompt string, opts ...llms.PromptOption) (string, error)
}

// Caller impersonates the person calling in: it produces the next thing
// the caller would say, pursuing the scenario goal without narration.
// It implements [harness.UtteranceGenerator].
type Caller struct {
	client      PromptClient
	temperature float64
}

type CallerOption func(*Caller)

// WithTemperature overrides the sampling temperature used for utterance
// generation.
func WithTemperature(temperature float64) CallerOption {
	return func(c *Caller) {
		c.temperature = temperature
	}
}

func NewCaller(client PromptClient, opts ...CallerOption) *Caller {
	caller := &Caller{
		client:      client,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(caller)
	}
	return caller
}

// NextUtterance produces the caller's next line. The opening turn states
// the scenario; later turns react to the agent's last message and the
// conversation so far, nudged by the remaining step budget.
func (c *Caller) NextUtterance(ctx context.Context, req harness.UtteranceRequest) (string, error) {
	ctx, span := tracer.Start(ctx, "generate caller utterance")
	defer span.End()
	span.SetAttributes(
		attribute.Bool("utterance.opening", req.InitialOpening),
		attribute.Int("utterance.steps_remaining", req.RemainingSteps),
	)

	system := "You are the QA caller in a phone call. Speak concisely in natural phrases. " +
		"Goal: " + req.Scenario + ". " +
		"Respond only with what the caller would say next. Do not include narration. " +
		"If the agent repeats the same verification question, repeat or clarify succinctly rather than introducing new information. " +
		"Never acknowledge you are an AI."

	var prompt string
	if req.InitialOpening {
		prompt = fmt.Sprintf("Agent greeted you. Start the conversation by saying you want to %s. Keep it brief and natural.", strings.ToLower(req.Scenario))
	} else {
		var b strings.Builder
		if req.AgentLastMessage != "" {
			fmt.Fprintf(&b, "Agent said: %s\n", req.AgentLastMessage)
		}
		if req.ConversationSoFar != "" {
			fmt.Fprintf(&b, "Conversation so far:\n%s\n", req.ConversationSoFar)
		}
		fmt.Fprintf(&b, "You have %d step(s) remaining. Keep it brief and move forward.", req.RemainingSteps)
		prompt = b.String()
	}

	text, err := c.client.Prompt(ctx, prompt,
		llms.WithSystemPrompt(system),
		llms.WithTemperature(c.temperature),
		llms.WithMaxTokens(utteranceMaxTokens),
	)
	if err != nil {
		err = fmt.Errorf("failed to generate caller utterance: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return "", err
	}
	return text, nil
}
