// Package results persists judged test runs and renders reports over them.
package results

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/callwright/callwright/core/evaluation"
	"github.com/jinzhu/copier"
)

// NewTestID builds a unique test identifier for one conversation run.
func NewTestID(conversationID string) string {
	return fmt.Sprintf("test_%s_%s", conversationID, time.Now().Format("20060102_150405"))
}

// EvaluationDetails carries the judge's explanation of the verdict.
type EvaluationDetails struct {
	FailureReason string `json:"failure_reason"`
	WhatWentWell  string `json:"what_went_well"`
	WhatToImprove string `json:"what_to_improve"`
}

// Metadata records how the run behaved, independent of the verdict.
type Metadata struct {
	DurationMS      int64  `json:"duration_ms"`
	AudioFilesSent  int    `json:"audio_files_sent"`
	TotalMessages   int    `json:"total_messages"`
	EvaluationModel string `json:"evaluation_model"`
	Timestamp       string `json:"timestamp"`
}

// TestResult is the saved shape of one judged conversation run.
type TestResult struct {
	TestID           string            `json:"test_id"`
	ChannelID        string            `json:"channel_id"`
	Scenario         string            `json:"scenario"`
	ScenarioResult   string            `json:"scenario_result"`
	Transcript       string            `json:"transcript"`
	GoldenTranscript string            `json:"golden_transcript"`
	Details          EvaluationDetails `json:"evaluation_details"`
	Metadata         Metadata          `json:"metadata"`
}

// Passed reports whether the saved result was ruled a pass.
func (r TestResult) Passed() bool { return r.ScenarioResult == "pass" }

// FromVerdict folds a judge verdict and run metadata into a saveable result.
func FromVerdict(verdict *evaluation.Verdict, meta Metadata) TestResult {
	result := TestResult{}
	if verdict != nil {
		copier.Copy(&result, verdict)
		result.Details = EvaluationDetails(verdict.CoverStory)
	}

	if result.TestID == "" {
		result.TestID = "unknown"
	}
	if result.ChannelID == "" {
		result.ChannelID = "unknown"
	}
	if result.Scenario == "" {
		result.Scenario = "Unknown scenario"
	}
	if result.ScenarioResult == "" {
		result.ScenarioResult = "unknown"
	}

	result.Metadata = meta
	if result.Metadata.Timestamp == "" {
		result.Metadata.Timestamp = time.Now().Format(time.RFC3339Nano)
	}
	return result
}

var transcriptLinePattern = regexp.MustCompile(`^(?:\[[^\]]+\]\s*)?(Agent|User|Target Bot|QA Bot):\s*(.+)$`)

// CleanTranscript keeps only the spoken lines of a conversation log,
// stripping timestamps, headers, and blank lines. Lines may carry an
// `[timestamp]` prefix or start directly with the speaker.
func CleanTranscript(content string) string {
	if content == "" {
		return ""
	}

	var lines []string
	for _, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		match := transcriptLinePattern.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		if text := strings.TrimSpace(match[2]); text != "" {
			lines = append(lines, match[1]+": "+text)
		}
	}
	return strings.Join(lines, "\n")
}

// Store reads and writes run artifacts under a single directory.
type Store struct {
	dir string
}

func NewStore(dir string) *Store { return &Store{dir: dir} }

// Dir reports the directory the store writes into.
func (s *Store) Dir() string { return s.dir }

// Save writes the result as pretty-printed JSON and returns the file path.
func (s *Store) Save(result TestResult, conversationID string) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("test_result_%s_%s.json", conversationID, fileTimestamp(time.Now())))
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode test result: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write test result: %w", err)
	}
	return path, nil
}

// LoadAll reads every saved test result in the store directory, in name
// order. Files that cannot be parsed are skipped.
func (s *Store) LoadAll() ([]TestResult, error) {
	matches, err := filepath.Glob(filepath.Join(s.dir, "test_result_*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list test results: %w", err)
	}
	sort.Strings(matches)

	results := make([]TestResult, 0, len(matches))
	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var result TestResult
		if err := json.Unmarshal(data, &result); err != nil {
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// fileTimestamp renders a timestamp safe for filenames on every platform.
func fileTimestamp(t time.Time) string {
	stamp := t.Format("2006-01-02T15:04:05.000000")
	return strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
}
