package dialogue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/callwright/callwright/core/llms"
	"go.opentelemetry.io/otel/attribute"
)

const (
	plannerSystemPrompt = "You are a conversation designer. Generate natural, realistic user utterances for phone calls. Return only valid JSON arrays."
	plannerTemperature  = 0.3
	plannerMaxTokens    = 500

	// fillerStep pads plans the model cut short.
	fillerStep = "Thank you, that's all I needed."
)

const planPromptTemplate = `
Generate %d conversation steps for a phone call scenario: "%s"

Requirements:
- Start with "I want to confirm the appointment" or similar opening
- Each step should be a natural, concise user utterance
- Steps should progress logically through the conversation
- Keep each step under 50 words
- Make it sound like a real person calling

Return ONLY a JSON array of strings, one per step. Example:
["I want to confirm my appointment", "My name is John Doe", "My date of birth is January 1st, 1990"]

Generate exactly %d steps:
`

// PlanSteps asks the model for a complete fixed conversation plan for the
// scenario: exactly maxSteps caller utterances, in order. A JSON-array
// reply is truncated or padded to maxSteps; a prose reply falls back to
// line extraction and may come back shorter. Trailing opts override the
// planner's prompt settings.
func PlanSteps(ctx context.Context, client PromptClient, scenario string, maxSteps int, opts ...llms.PromptOption) ([]string, error) {
	ctx, span := tracer.Start(ctx, "plan conversation steps")
	defer span.End()

	promptOpts := append([]llms.PromptOption{
		llms.WithSystemPrompt(plannerSystemPrompt),
		llms.WithTemperature(plannerTemperature),
		llms.WithMaxTokens(plannerMaxTokens),
	}, opts...)

	prompt := fmt.Sprintf(planPromptTemplate, maxSteps, scenario, maxSteps)
	response, err := client.Prompt(ctx, prompt, promptOpts...)
	if err != nil {
		err = fmt.Errorf("failed to plan conversation steps: %w", err)
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return nil, err
	}

	steps, err := extractSteps(response, maxSteps)
	if err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error", err.Error()))
		return nil, err
	}
	span.SetAttributes(attribute.Int("plan.steps", len(steps)))
	return steps, nil
}

// extractSteps decodes the planner reply. Valid JSON must be a non-empty
// array of strings. Anything else is scanned line by line, with numbering
// and quoting stripped and fragments of five characters or fewer dropped.
func extractSteps(response string, maxSteps int) ([]string, error) {
	trimmed := strings.TrimSpace(response)
	if json.Valid([]byte(trimmed)) {
		var steps []string
		if err := json.Unmarshal([]byte(trimmed), &steps); err != nil || len(steps) == 0 {
			return nil, fmt.Errorf("planner returned JSON that is not a list of steps")
		}
		if len(steps) > maxSteps {
			steps = steps[:maxSteps]
		}
		for len(steps) < maxSteps {
			steps = append(steps, fillerStep)
		}
		return steps, nil
	}

	log.Println("Planner reply is not a JSON array, extracting steps from text")
	var steps []string
	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.Trim(strings.TrimLeft(line, "0123456789.- "), `"'`)
		if len(line) > 5 {
			steps = append(steps, line)
			if len(steps) >= maxSteps {
				break
			}
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("could not extract steps from planner reply")
	}
	return steps, nil
}
