// Package pipeline runs the sanitizer over batches of notebooks.
//
// Documents are processed in parallel at document granularity. Per-document
// failures never abort the run: they are logged, recorded in the report,
// and aggregated into the error the run returns, so one broken notebook
// cannot hide the outcome of the rest.
package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/texforge/nbprep/core/errors"
	"github.com/texforge/nbprep/core/sanitize"
	"github.com/texforge/nbprep/internal/backup"
	"github.com/texforge/nbprep/internal/cache"
	"github.com/texforge/nbprep/internal/digest"
	"github.com/texforge/nbprep/internal/fileutil"
	"github.com/texforge/nbprep/internal/formats"
	"github.com/texforge/nbprep/internal/logging"
	"github.com/texforge/nbprep/internal/notebook"
)

// Options configure a batch run. Exactly one of OutDir or InPlace must be
// set.
type Options struct {
	// OutDir writes sanitized copies under this directory, mirroring the
	// layout of each walked input directory.
	OutDir string

	// InPlace rewrites inputs where they are. Unchanged documents are not
	// rewritten.
	InPlace bool

	// Backup snapshots a document before an in-place rewrite.
	Backup bool

	// Jobs bounds parallel document work; zero or negative means one
	// worker per CPU.
	Jobs int
}

func (o Options) validate() error {
	if o.InPlace && o.OutDir != "" {
		return errors.NewValidation("mode", "in-place and out-dir are mutually exclusive")
	}
	if !o.InPlace && o.OutDir == "" {
		return errors.NewValidation("mode", "one of out-dir or in-place is required")
	}
	if o.Backup && !o.InPlace {
		return errors.NewValidation("backup", "backup only applies to in-place runs")
	}
	return nil
}

// Runner sanitizes batches of notebooks.
type Runner struct {
	// Sanitizer performs the per-document rewrites.
	Sanitizer *sanitize.Sanitizer

	// Ledger records outcomes so later runs can skip unchanged documents.
	// Optional; a nil ledger disables skipping.
	Ledger *cache.Ledger

	// Profile names the configuration in the run report.
	Profile string
}

// job pairs an input document with where its sanitized form goes.
type job struct {
	input  string
	output string
}

// Run sanitizes every notebook reachable from inputs. Directory inputs are
// walked for notebooks; file inputs are always attempted. The returned
// error aggregates per-document failures and is nil only when every
// document succeeded; the report is returned either way.
func (r *Runner) Run(ctx context.Context, inputs []string, opts Options) (*Report, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if len(inputs) == 0 {
		return nil, errors.NewValidation("inputs", "no input paths given")
	}

	jobs, err := collectJobs(inputs, opts)
	if err != nil {
		return nil, err
	}

	runID := uuid.New().String()
	ctx = logging.WithRunID(ctx, runID)
	start := time.Now()

	report := &Report{
		RunID:       runID,
		StartedAt:   start.UTC(),
		Profile:     r.Profile,
		Fingerprint: r.Sanitizer.Fingerprint(),
		Results:     []Result{},
	}

	logging.InfoContext(ctx, "batch started",
		"documents", len(jobs),
		"in_place", opts.InPlace,
		"fingerprint", report.Fingerprint,
	)

	pool := newWorkerPool[job, Result](opts.Jobs, len(jobs))
	pool.Start(func(jb job) Result {
		return r.processOne(ctx, jb, opts, runID)
	})
	for _, jb := range jobs {
		pool.Submit(jb)
	}
	pool.Close()

	for res := range pool.Results() {
		report.Results = append(report.Results, res)
	}
	sort.Slice(report.Results, func(i, j int) bool {
		return report.Results[i].Path < report.Results[j].Path
	})

	var errs *multierror.Error
	for _, res := range report.Results {
		switch {
		case res.Error != "":
			report.Failed++
			errs = multierror.Append(errs, fmt.Errorf("%s: %s", res.Path, res.Error))
		case res.Skipped:
			report.Skipped++
		default:
			report.Processed++
			if res.Changed {
				report.Changed++
			}
		}
	}
	report.FinishedAt = time.Now().UTC()

	logging.RunSummary(runID, report.Processed, report.Changed, report.Skipped, report.Failed,
		report.FinishedAt.Sub(report.StartedAt))

	return report, errs.ErrorOrNil()
}

// collectJobs expands the input paths into (input, output) document pairs.
// Explicit file arguments are always attempted; directory walks only pick
// up files the notebook handler recognizes. Duplicate inputs collapse.
func collectJobs(inputs []string, opts Options) ([]job, error) {
	var jobs []job
	seen := make(map[string]bool)

	add := func(in, out string) {
		if seen[in] {
			return
		}
		seen[in] = true
		jobs = append(jobs, job{input: in, output: out})
	}

	for _, input := range inputs {
		info, err := os.Stat(input)
		if err != nil {
			return nil, errors.NewIO("stat", input, err)
		}

		if !info.IsDir() {
			in := filepath.Clean(input)
			out := in
			if opts.OutDir != "" {
				out = filepath.Join(opts.OutDir, filepath.Base(in))
			}
			add(in, out)
			continue
		}

		root := filepath.Clean(input)
		walkErr := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !formats.IsNotebook(p) {
				return nil
			}
			out := p
			if opts.OutDir != "" {
				rel, err := filepath.Rel(root, p)
				if err != nil {
					return err
				}
				out = filepath.Join(opts.OutDir, rel)
			}
			add(p, out)
			return nil
		})
		if walkErr != nil {
			return nil, errors.NewIO("walk", input, walkErr)
		}
	}

	sort.Slice(jobs, func(i, j int) bool { return jobs[i].input < jobs[j].input })
	return jobs, nil
}

// processOne sanitizes a single document. All failures land in the result
// rather than aborting the batch.
func (r *Runner) processOne(ctx context.Context, jb job, opts Options, runID string) Result {
	start := time.Now()
	res := Result{Path: jb.input, Output: jb.output}

	if err := ctx.Err(); err != nil {
		res.Error = err.Error()
		return res
	}

	data, err := os.ReadFile(jb.input)
	if err != nil {
		logging.DocumentError(ctx, jb.input, "read", err)
		res.Error = errors.NewIO("read", jb.input, err).Error()
		return res
	}
	res.InputDigest = digest.Sum(data)
	fingerprint := r.Sanitizer.Fingerprint()

	if r.skippable(jb, res.InputDigest, fingerprint, &res) {
		logging.DocumentSkipped(ctx, jb.input, "ledger hit and output unchanged")
		res.DurationMS = time.Since(start).Milliseconds()
		return res
	}

	nb, err := notebook.Parse(data, jb.input)
	if err != nil {
		logging.DocumentError(ctx, jb.input, "decode", err)
		res.Error = err.Error()
		return res
	}

	res.Changed = nb.SanitizeMarkdown(r.Sanitizer)
	res.MarkdownCells = nb.MarkdownCellCount()

	out, err := nb.Encode()
	if err != nil {
		logging.DocumentError(ctx, jb.input, "encode", err)
		res.Error = err.Error()
		return res
	}
	res.OutputDigest = digest.Sum(out)

	if opts.InPlace {
		if res.Changed {
			if opts.Backup {
				if _, err := backup.Create(jb.input); err != nil {
					logging.DocumentError(ctx, jb.input, "backup", err)
					res.Error = err.Error()
					return res
				}
			}
			if err := writeDocument(jb.output, out); err != nil {
				logging.DocumentError(ctx, jb.input, "write", err)
				res.Error = err.Error()
				return res
			}
		}
	} else {
		if err := writeDocument(jb.output, out); err != nil {
			logging.DocumentError(ctx, jb.input, "write", err)
			res.Error = err.Error()
			return res
		}
	}

	r.record(ctx, jb, res, fingerprint, runID, opts)
	logging.DocumentSanitized(ctx, jb.input, res.Changed, res.MarkdownCells, time.Since(start))

	res.DurationMS = time.Since(start).Milliseconds()
	return res
}

// skippable consults the ledger and verifies the recorded output is still
// on disk unchanged. Ledger trouble never fails a document; it just means
// no skip.
func (r *Runner) skippable(jb job, inputDigest, fingerprint string, res *Result) bool {
	if r.Ledger == nil {
		return false
	}
	entry, ok, err := r.Ledger.Lookup(jb.input, inputDigest, fingerprint)
	if err != nil || !ok {
		return false
	}
	outDigest, err := digest.SumFile(jb.output)
	if err != nil || outDigest != entry.OutputDigest {
		return false
	}
	res.Skipped = true
	res.Changed = entry.Changed
	res.OutputDigest = entry.OutputDigest
	return true
}

// record stores the outcome in the ledger. An in-place rewrite leaves the
// file at its output digest, so the post-state gets a second entry; the
// very next run then skips without re-sanitizing.
func (r *Runner) record(ctx context.Context, jb job, res Result, fingerprint, runID string, opts Options) {
	if r.Ledger == nil {
		return
	}
	entry := cache.Entry{
		Path:         jb.input,
		InputDigest:  res.InputDigest,
		Fingerprint:  fingerprint,
		OutputDigest: res.OutputDigest,
		Changed:      res.Changed,
		RunID:        runID,
	}
	if err := r.Ledger.Record(entry); err != nil {
		logging.WarnContext(ctx, "ledger record failed", "path", jb.input, "error", err)
		return
	}
	if opts.InPlace && res.Changed {
		entry.InputDigest = res.OutputDigest
		entry.Changed = false
		if err := r.Ledger.Record(entry); err != nil {
			logging.WarnContext(ctx, "ledger record failed", "path", jb.input, "error", err)
		}
	}
}

// writeDocument writes sanitized bytes atomically. Parent directories
// for mirrored out-dir layouts are created by the atomic writer.
func writeDocument(path string, data []byte) error {
	if err := fileutil.WriteFileAtomic(path, data, 0644); err != nil {
		return errors.NewIO("write", path, err)
	}
	return nil
}
