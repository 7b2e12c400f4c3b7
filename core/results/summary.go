package results

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"
)

// Summary aggregates verdicts across a multi-conversation run.
type Summary struct {
	TotalTests  int     `json:"total_tests"`
	PassedTests int     `json:"passed_tests"`
	FailedTests int     `json:"failed_tests"`
	SuccessRate float64 `json:"success_rate"`
}

// Summarize counts passes against everything else. The rate is a percentage
// rounded to two decimals.
func Summarize(results []TestResult) Summary {
	summary := Summary{TotalTests: len(results)}
	for _, result := range results {
		if result.Passed() {
			summary.PassedTests++
		} else {
			summary.FailedTests++
		}
	}
	if summary.TotalTests > 0 {
		rate := float64(summary.PassedTests) / float64(summary.TotalTests) * 100
		summary.SuccessRate = math.Round(rate*100) / 100
	}
	return summary
}

// SaveSummary writes the summary next to the per-test results and returns
// the file path.
func (s *Store) SaveSummary(summary Summary) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("test_summary_%s.json", fileTimestamp(time.Now())))
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write summary: %w", err)
	}
	return path, nil
}
