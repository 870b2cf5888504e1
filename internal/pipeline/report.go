package pipeline

import (
	"time"

	"github.com/bytedance/sonic"

	"github.com/texforge/nbprep/core/errors"
	"github.com/texforge/nbprep/internal/fileutil"
)

// Result is one document's outcome within a batch run.
type Result struct {
	Path          string `json:"path"`
	Output        string `json:"output,omitempty"`
	Skipped       bool   `json:"skipped"`
	Changed       bool   `json:"changed"`
	MarkdownCells int    `json:"markdown_cells,omitempty"`
	InputDigest   string `json:"input_digest,omitempty"`
	OutputDigest  string `json:"output_digest,omitempty"`
	DurationMS    int64  `json:"duration_ms"`
	Error         string `json:"error,omitempty"`
}

// Report summarizes a batch run. Processed counts documents actually
// sanitized this run; Skipped counts ledger hits whose output was already
// on disk; Failed counts documents that errored.
type Report struct {
	RunID       string    `json:"run_id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Profile     string    `json:"profile,omitempty"`
	Fingerprint string    `json:"fingerprint"`
	Processed   int       `json:"processed"`
	Changed     int       `json:"changed"`
	Skipped     int       `json:"skipped"`
	Failed      int       `json:"failed"`
	Results     []Result  `json:"results"`
}

// WriteReport renders the report as indented JSON and writes it atomically.
func WriteReport(rep *Report, path string) error {
	data, err := sonic.MarshalIndent(rep, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode report")
	}
	if err := fileutil.WriteFileAtomic(path, data, 0644); err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}
