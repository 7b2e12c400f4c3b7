// Package stimuli prepares the conversation steps a run plays: archived
// recordings, synthesized speech, or bare text.
package stimuli

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var stepLinePattern = regexp.MustCompile(`(?i)^step\s*\d+\s*:\s*(.+)$`)

// ParseStepsFile reads utterances from a plain-text steps file. Lines in
// the form "step N: utterance" keep only the utterance; any other
// non-empty line is taken whole. Blank lines and # comments are skipped.
func ParseStepsFile(path string) ([]string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read steps file: %w", err)
	}

	var steps []string
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if match := stepLinePattern.FindStringSubmatch(line); match != nil {
			steps = append(steps, strings.TrimSpace(match[1]))
		} else {
			steps = append(steps, line)
		}
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("no steps found in %s", path)
	}
	return steps, nil
}
