package evaluation

import (
	"fmt"
	"strings"
)

// Run types selecting the judge prompt family.
const (
	RunTypeHuman       = "human"
	RunTypeSynthetic   = "synthetic"
	RunTypeDynamic     = "dynamic"
	RunTypeTranslation = "translation"
)

func normalizeRunType(runType string) string {
	runType = strings.ToLower(strings.TrimSpace(runType))
	if runType == "" {
		return RunTypeHuman
	}
	return runType
}

const systemPrompt = "You are an expert QA conversation analyst. Evaluate conversation paths with precision and provide results in exact JSON format. Be strict but fair in your evaluation."

const humanPromptTemplate = `
GOLDEN CONVERSATION (Expected Path):
%s

ACTUAL CONVERSATION (User Test Run):
%s

Task: Evaluate whether the User run followed the golden conversation path.

STRICT EVALUATION CRITERIA:
1. Logical sequence alignment with golden steps
2. Key information points requested and provided
3. Agent consistency with golden behavior
4. Critical steps missed or added unexpectedly
5. Be strict in evaluation - minor deviations should still be "pass" but major flow changes should be "fail"
6. Keep all text concise and professional.


Return ONLY this JSON:
{
  "test_id": "%s",
  "channelId": "%s",
  "scenario": "One-line summary",
  "scenario_result": should be "pass" if the conversation path matched closely, "fail" if it deviated significantly,
  "transcript": "Copy actual transcript here",
  "cover_story": {
    "failure_reason": "Specific reason if failed, empty string if passed",
    "what_went_well": "What aspects of the conversation worked correctly",
    "what_to_improve": "Specific actionable improvements needed"
  }
}`

const syntheticPromptTemplate = `
ACTUAL CONVERSATION:
%s

Task: Evaluate the conversation quality without a golden transcript. Focus on whether the conversation logically progressed and completed the user's request effectively.

STRICT EVALUATION CRITERIA:
1. Goal completion with required confirmations/information
2. Coherence and forward progression (avoid loops or derailments)
3. Politeness, appropriateness, and safety adherence
4. Efficiency (keep unnecessary back-and-forth minimal)

Return ONLY this JSON:
{
  "test_id": "%s",
  "channelId": "%s",
  "scenario": "One-line summary",
  "scenario_result": "pass",
  "transcript": "Copy actual transcript here",
  "cover_story": {
    "failure_reason": "If failed, explain precisely; else empty",
    "what_went_well": "Brief bullets",
    "what_to_improve": "Actionable bullets"
  }
}`

const dynamicPromptTemplate = `
SCENARIO: %s

ACTUAL CONVERSATION:
%s

Task: Evaluate whether the conversation successfully accomplished the scenario intent using an efficient, natural dialog. No golden transcript exists.

STRICT EVALUATION CRITERIA:
1. Goal completion with required confirmations/information
2. Coherence and progression toward the scenario
3. Appropriateness and safety policy adherence
4. Efficiency (no unnecessary loops or derailments)
5. Be strict in evaluation - minor deviations should still be "pass" but major flow changes should be "fail"
6. Keep all text concise and professional.

Return ONLY this JSON:
{
  "test_id": "%s",
  "channelId": "%s",
  "scenario": "One-line summary",
  "scenario_result": should be "pass" if the conversation path matched closely, "fail" if it deviated significantly,
  "transcript": "Copy actual transcript here",
  "cover_story": {
    "failure_reason": "Specific reason if failed, empty string if passed",
    "what_went_well": "What aspects of the conversation worked correctly",
    "what_to_improve": "Specific actionable improvements needed"
  }
}`

const translationPromptTemplate = `
ACTUAL CONVERSATION (Translated/Non-English context):
%s

Task: Evaluate conversation quality without a golden transcript. Focus on task completion and language clarity.

STRICT EVALUATION CRITERIA:
1. Intent understanding and task completion
2. Language correctness and clarity (assess based on the provided text transcript)
3. Appropriate responses and safety
4. Efficiency and lack of repetition

Return ONLY this JSON:
{
  "test_id": "%s",
  "channelId": "%s",
  "scenario": "One-line summary",
  "scenario_result": "pass",
  "transcript": "Copy actual transcript here",
  "cover_story": {
    "failure_reason": "Specific reason if failed, empty string if passed",
    "what_went_well": "What aspects of the conversation worked correctly",
    "what_to_improve": "Specific actionable improvements needed"
  }
}`

func buildPrompt(req Request) string {
	switch normalizeRunType(req.RunType) {
	case RunTypeSynthetic:
		return fmt.Sprintf(syntheticPromptTemplate, req.Transcript, req.TestID, req.ChannelID)
	case RunTypeDynamic:
		scenario := req.Scenario
		if scenario == "" {
			scenario = "Unknown"
		}
		return fmt.Sprintf(dynamicPromptTemplate, scenario, req.Transcript, req.TestID, req.ChannelID)
	case RunTypeTranslation:
		return fmt.Sprintf(translationPromptTemplate, req.Transcript, req.TestID, req.ChannelID)
	default:
		return fmt.Sprintf(humanPromptTemplate, req.GoldenTranscript, req.Transcript, req.TestID, req.ChannelID)
	}
}
