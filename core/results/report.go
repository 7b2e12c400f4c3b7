package results

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"
)

//go:embed report.html.tmpl
var reportTemplate string

var reportTmpl = template.Must(template.New("report").Parse(reportTemplate))

type reportData struct {
	GeneratedAt string
	Summary     Summary
	Results     []TestResult
}

// RenderReport writes a standalone HTML report for the given results to w.
func RenderReport(w io.Writer, results []TestResult, summary Summary) error {
	data := reportData{
		GeneratedAt: time.Now().Format("2006-01-02 15:04:05"),
		Summary:     summary,
		Results:     results,
	}
	if err := reportTmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}
	return nil
}

// WriteReport renders the report into the store directory and returns the
// file path.
func (s *Store) WriteReport(results []TestResult, summary Summary) (string, error) {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create results directory: %w", err)
	}

	path := filepath.Join(s.dir, fmt.Sprintf("test_report_%s.html", fileTimestamp(time.Now())))
	file, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create report file: %w", err)
	}
	defer file.Close()

	if err := RenderReport(file, results, summary); err != nil {
		return "", err
	}
	return path, nil
}
