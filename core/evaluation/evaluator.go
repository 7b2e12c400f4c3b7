package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/callwright/callwright/core/llms"
	"github.com/callwright/callwright/core/llms/openai"
	"go.opentelemetry.io/otel/attribute"
)

// Request carries one finished conversation to the judge.
type Request struct {
	TestID    string
	ChannelID string
	// RunType selects the prompt family. Empty or unrecognized values are
	// judged as human runs.
	RunType string
	// Scenario is the dynamic-run goal, unused for other run types.
	Scenario         string
	Transcript       string
	GoldenTranscript string
}

// CoverStory explains a verdict in reviewer-facing terms.
type CoverStory struct {
	FailureReason string `json:"failure_reason"`
	WhatWentWell  string `json:"what_went_well"`
	WhatToImprove string `json:"what_to_improve"`
}

// Verdict is the judged result, shaped exactly like the JSON the judge is
// asked to return.
type Verdict struct {
	TestID           string     `json:"test_id"`
	ChannelID        string     `json:"channelId"`
	Scenario         string     `json:"scenario"`
	ScenarioResult   string     `json:"scenario_result"`
	Transcript       string     `json:"transcript"`
	GoldenTranscript string     `json:"golden_transcript"`
	CoverStory       CoverStory `json:"cover_story"`
}

// Passed reports whether the judge ruled the conversation a pass.
func (v *Verdict) Passed() bool {
	return strings.EqualFold(strings.TrimSpace(v.ScenarioResult), "pass")
}

// Evaluator judges finished conversations with an LLM.
type Evaluator struct {
	client *openai.Client
}

func NewEvaluator(client *openai.Client) *Evaluator {
	return &Evaluator{client: client}
}

// Model reports the judge model, recorded in result metadata.
func (e *Evaluator) Model() string { return e.client.Model() }

var jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// Evaluate judges req and always produces a verdict: when the judge call or
// its output cannot be used, the verdict describes that failure instead of
// the conversation.
func (e *Evaluator) Evaluate(ctx context.Context, req Request) (*Verdict, error) {
	ctx, span := tracer.Start(ctx, "evaluate conversation")
	defer span.End()

	span.SetAttributes(
		attribute.String("request.model", e.client.Model()),
		attribute.String("request.run_type", normalizeRunType(req.RunType)),
	)

	prompt := buildPrompt(req)
	opts := []llms.PromptOption{
		llms.WithSystemPrompt(systemPrompt),
		llms.WithTemperature(0.1),
		llms.WithMaxTokens(1000),
	}

	verdict, err := openai.PromptJSONSchema[Verdict](ctx, e.client, prompt, opts...)
	if err == nil {
		finalizeVerdict(verdict, req)
		return verdict, nil
	}

	err = fmt.Errorf("failed to judge with structured output: %w", err)
	span.RecordError(err)
	span.SetAttributes(attribute.String("error", err.Error()))

	return e.salvage(ctx, req, prompt, opts), nil
}

// salvage retries with an unconstrained completion and digs the verdict out
// of whatever came back.
func (e *Evaluator) salvage(ctx context.Context, req Request, prompt string, opts []llms.PromptOption) *Verdict {
	raw, err := e.client.Prompt(ctx, prompt, opts...)
	if err != nil {
		return apiFailureVerdict(req, err)
	}

	var direct Verdict
	if err := json.Unmarshal([]byte(raw), &direct); err == nil {
		finalizeVerdict(&direct, req)
		return &direct
	}

	if match := jsonObjectPattern.FindString(raw); match != "" {
		var extracted Verdict
		if err := json.Unmarshal([]byte(match), &extracted); err == nil {
			finalizeVerdict(&extracted, req)
			return &extracted
		}
	}

	return parseFailureVerdict(req)
}

// finalizeVerdict repairs the fields the judge tends to echo back wrong.
func finalizeVerdict(v *Verdict, req Request) {
	switch v.Transcript {
	case "", "Copy actual transcript here", "Copy the actual conversation transcript here":
		v.Transcript = req.Transcript
	}

	if normalizeRunType(req.RunType) == RunTypeHuman {
		v.GoldenTranscript = req.GoldenTranscript
	} else {
		v.GoldenTranscript = ""
	}
}

func parseFailureVerdict(req Request) *Verdict {
	return &Verdict{
		TestID:           req.TestID,
		ChannelID:        req.ChannelID,
		Scenario:         "Evaluation parsing failed",
		ScenarioResult:   "fail",
		Transcript:       req.Transcript,
		GoldenTranscript: req.GoldenTranscript,
		CoverStory: CoverStory{
			FailureReason: "LLM evaluation response could not be parsed",
			WhatWentWell:  "Audio files were sent successfully",
			WhatToImprove: "Fix evaluation response parsing",
		},
	}
}

func apiFailureVerdict(req Request, err error) *Verdict {
	return &Verdict{
		TestID:           req.TestID,
		ChannelID:        req.ChannelID,
		Scenario:         "LLM evaluation failed",
		ScenarioResult:   "fail",
		Transcript:       req.Transcript,
		GoldenTranscript: req.GoldenTranscript,
		CoverStory: CoverStory{
			FailureReason: fmt.Sprintf("LLM API error: %v", err),
			WhatWentWell:  "Audio files were sent and conversation was logged",
			WhatToImprove: "Fix LLM API connection and retry evaluation",
		},
	}
}
