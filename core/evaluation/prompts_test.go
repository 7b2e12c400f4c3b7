package evaluation

import (
	"strings"
	"testing"
)

func TestBuildPromptHumanIncludesGolden(t *testing.T) {
	prompt := buildPrompt(Request{
		TestID:           "t1",
		ChannelID:        "c1",
		RunType:          RunTypeHuman,
		Transcript:       "Agent: Hi",
		GoldenTranscript: "Agent: Hello there",
	})

	if !strings.Contains(prompt, "GOLDEN CONVERSATION (Expected Path):") {
		t.Fatalf("golden section missing:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Agent: Hello there") {
		t.Fatalf("golden transcript missing:\n%s", prompt)
	}
	if !strings.Contains(prompt, `"test_id": "t1"`) || !strings.Contains(prompt, `"channelId": "c1"`) {
		t.Fatalf("identifiers missing:\n%s", prompt)
	}
}

func TestBuildPromptDefaultsToHuman(t *testing.T) {
	prompt := buildPrompt(Request{RunType: ""})
	if !strings.Contains(prompt, "GOLDEN CONVERSATION") {
		t.Fatalf("empty run type should judge as human:\n%s", prompt)
	}
}

func TestBuildPromptSyntheticHasNoGoldenSection(t *testing.T) {
	prompt := buildPrompt(Request{RunType: RunTypeSynthetic, Transcript: "Agent: Hi"})
	if strings.Contains(prompt, "GOLDEN CONVERSATION") {
		t.Fatalf("synthetic prompt should not reference a golden transcript:\n%s", prompt)
	}
	if !strings.Contains(prompt, `"scenario_result": "pass"`) {
		t.Fatalf("synthetic template changed:\n%s", prompt)
	}
}

func TestBuildPromptDynamicFallsBackToUnknownScenario(t *testing.T) {
	prompt := buildPrompt(Request{RunType: RunTypeDynamic})
	if !strings.Contains(prompt, "SCENARIO: Unknown") {
		t.Fatalf("missing scenario fallback:\n%s", prompt)
	}

	prompt = buildPrompt(Request{RunType: RunTypeDynamic, Scenario: "Reschedule the visit"})
	if !strings.Contains(prompt, "SCENARIO: Reschedule the visit") {
		t.Fatalf("scenario not injected:\n%s", prompt)
	}
}

func TestBuildPromptRunTypeIsCaseInsensitive(t *testing.T) {
	prompt := buildPrompt(Request{RunType: "Translation"})
	if !strings.Contains(prompt, "Translated/Non-English context") {
		t.Fatalf("translation prompt not selected:\n%s", prompt)
	}
}
