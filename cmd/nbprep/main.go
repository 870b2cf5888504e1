// Command nbprep is the CLI tool for notebook PDF preprocessing.
// It provides commands for sanitizing Jupyter notebooks, patching PDF
// metadata into LaTeX sources, and batch processing with a skip ledger.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/alecthomas/kong"

	"github.com/texforge/nbprep/core/errors"
	"github.com/texforge/nbprep/core/sanitize"
	"github.com/texforge/nbprep/internal/backup"
	"github.com/texforge/nbprep/internal/cache"
	"github.com/texforge/nbprep/internal/config"
	"github.com/texforge/nbprep/internal/digest"
	"github.com/texforge/nbprep/internal/logging"
	"github.com/texforge/nbprep/internal/notebook"
	"github.com/texforge/nbprep/internal/pipeline"
	"github.com/texforge/nbprep/internal/texdoc"
)

const version = "0.1.0"

// CLI defines the command-line interface for nbprep.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" help:"Log level (debug, info, warn, error)" enum:"debug,info,warn,error" default:"info"`
	LogFormat string `name:"log-format" help:"Log format (text, json)" enum:"text,json" default:"text"`

	Sanitize    SanitizeCmd    `cmd:"" help:"Sanitize a notebook for XeLaTeX PDF builds"`
	Text        TextCmd        `cmd:"" help:"Sanitize text from stdin to stdout"`
	FixMetadata FixMetadataCmd `cmd:"" name:"fix-metadata" help:"Add PDF title and author to a LaTeX hyperref setup"`
	Batch       BatchCmd       `cmd:"" help:"Sanitize many notebooks with parallel workers and a skip ledger"`
	Verify      VerifyCmd      `cmd:"" help:"Verify that sanitizing a notebook is idempotent"`
	Profiles    ProfilesGroup  `cmd:"" help:"Sanitizer profile operations"`
	Rules       RulesGroup     `cmd:"" help:"Rewrite rule file operations"`
	Cache       CacheGroup     `cmd:"" help:"Skip ledger operations"`
	Version     VersionCmd     `cmd:"" help:"Print version information"`
}

// SanitizerFlags are the flags shared by every command that builds a
// sanitizer: profile selection plus per-rewrite overrides. Overrides are
// additive on top of the profile except --no-unicode, which switches the
// one default-on rewrite off.
type SanitizerFlags struct {
	Profile           string   `help:"Sanitizer profile to start from" default:"default"`
	Config            string   `help:"Profiles file (YAML)" type:"existingfile"`
	NoUnicode         bool     `name:"no-unicode" help:"Disable Unicode normalization"`
	MathDelimiters    bool     `name:"math-delimiters" help:"Rewrite \\(..\\) and \\[..\\] to dollar math in prose"`
	EscapeUnderscores bool     `name:"escape-underscores" help:"Escape bare underscores in prose"`
	Rules             []string `help:"Rewrite rule file applied after the built-ins (repeatable)" type:"existingfile"`
}

// build resolves the profile and flag overrides into a ready sanitizer,
// returning the resolved profile name for reporting.
func (f *SanitizerFlags) build() (*sanitize.Sanitizer, string, error) {
	var file *config.File
	if f.Config != "" {
		loaded, err := config.Load(f.Config)
		if err != nil {
			return nil, "", err
		}
		file = loaded
	}

	prof, err := config.Resolve(f.Profile, file)
	if err != nil {
		return nil, "", err
	}

	opts := prof.Sanitize
	if f.NoUnicode {
		opts.NormalizeUnicode = false
	}
	if f.MathDelimiters {
		opts.NormalizeMathDelimiters = true
	}
	if f.EscapeUnderscores {
		opts.EscapeUnderscores = true
	}

	var extra []sanitize.Rule
	ruleFiles := append(append([]string{}, prof.Rules...), f.Rules...)
	for _, path := range ruleFiles {
		rules, err := sanitize.ParseRuleFile(path)
		if err != nil {
			return nil, "", err
		}
		extra = append(extra, rules...)
	}

	return sanitize.New(opts, extra...), prof.Name, nil
}

// SanitizeCmd sanitizes a single notebook.
type SanitizeCmd struct {
	Input  string `arg:"" help:"Notebook to sanitize" type:"existingfile"`
	Output string `arg:"" optional:"" help:"Output path (defaults to rewriting the input)" type:"path"`

	Backup bool `help:"Write a compressed backup before rewriting in place"`

	SanitizerFlags
}

func (c *SanitizeCmd) Run() error {
	s, _, err := c.build()
	if err != nil {
		return err
	}

	output := c.Output
	if output == "" {
		output = c.Input
	}
	inPlace := filepath.Clean(output) == filepath.Clean(c.Input)
	if c.Backup && !inPlace {
		return errors.NewValidation("backup", "backup only applies when rewriting in place")
	}

	nb, err := notebook.Load(c.Input)
	if err != nil {
		return err
	}

	changed := nb.SanitizeMarkdown(s)

	if changed {
		if c.Backup {
			backupPath, err := backup.Create(c.Input)
			if err != nil {
				return err
			}
			fmt.Printf("Backup written to: %s\n", backupPath)
		}
		if err := nb.Save(output); err != nil {
			return err
		}
		fmt.Printf("Sanitized notebook written to: %s (Unicode + math delimiter fixes)\n", output)
		return nil
	}

	// An unchanged notebook is still copied when a distinct output was
	// asked for; rewriting it in place would be a pointless churn.
	if !inPlace {
		if err := nb.Save(output); err != nil {
			return err
		}
	}
	fmt.Printf("Notebook copied to: %s (no changes needed)\n", output)
	return nil
}

// TextCmd sanitizes stdin to stdout for shell pipelines.
type TextCmd struct {
	SanitizerFlags
}

func (c *TextCmd) Run() error {
	s, _, err := c.build()
	if err != nil {
		return err
	}

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return errors.NewIO("read", "stdin", err)
	}

	if _, err := io.WriteString(os.Stdout, s.Text(string(data))); err != nil {
		return errors.NewIO("write", "stdout", err)
	}
	return nil
}

// FixMetadataCmd inserts pdftitle/pdfauthor into a hyperref setup block.
type FixMetadataCmd struct {
	Path   string `arg:"" help:"LaTeX file to patch" type:"existingfile"`
	Title  string `required:"" help:"PDF title"`
	Author string `required:"" help:"PDF author"`
	Backup bool   `help:"Write a compressed backup before patching"`
}

func (c *FixMetadataCmd) Run() error {
	meta := texdoc.Metadata{Title: c.Title, Author: c.Author}
	outcome, err := texdoc.PatchFile(c.Path, meta, c.Backup)
	if err != nil {
		return err
	}

	logging.MetadataPatched(c.Path, string(outcome))

	switch outcome {
	case texdoc.PatchApplied:
		fmt.Printf("Added PDF metadata to %s\n", c.Path)
	case texdoc.PatchAlreadyPresent:
		fmt.Printf("PDF metadata already present in %s\n", c.Path)
	case texdoc.PatchAnchorNotFound:
		fmt.Printf("Warning: no \\hypersetup{ block found in %s\n", c.Path)
	}
	return nil
}

// BatchCmd sanitizes notebooks in bulk.
type BatchCmd struct {
	Paths []string `arg:"" help:"Notebook files or directories to sanitize" type:"existingpath"`

	OutDir  string `name:"out-dir" help:"Write sanitized copies under this directory" type:"path"`
	InPlace bool   `name:"in-place" help:"Rewrite notebooks where they are"`
	Backup  bool   `help:"Write compressed backups before in-place rewrites"`
	Cache   string `help:"Ledger database path (default: user cache dir)" type:"path"`
	NoCache bool   `name:"no-cache" help:"Disable the skip ledger"`
	Jobs    int    `help:"Parallel documents (default: one per CPU)"`
	Report  string `help:"Write a JSON run report to this path" type:"path"`

	SanitizerFlags
}

func (c *BatchCmd) Run() error {
	s, profile, err := c.build()
	if err != nil {
		return err
	}

	var ledger *cache.Ledger
	if !c.NoCache {
		ledger, err = openLedger(c.Cache)
		if err != nil {
			return err
		}
		defer ledger.Close()
	}

	runner := &pipeline.Runner{
		Sanitizer: s,
		Ledger:    ledger,
		Profile:   profile,
	}

	report, runErr := runner.Run(context.Background(), c.Paths, pipeline.Options{
		OutDir:  c.OutDir,
		InPlace: c.InPlace,
		Backup:  c.Backup,
		Jobs:    c.Jobs,
	})
	if report == nil {
		return runErr
	}

	if c.Report != "" {
		if err := pipeline.WriteReport(report, c.Report); err != nil {
			return err
		}
		fmt.Printf("Report written to: %s\n", c.Report)
	}

	fmt.Printf("Processed: %d (%d changed)\n", report.Processed, report.Changed)
	fmt.Printf("Skipped:   %d\n", report.Skipped)
	if report.Failed > 0 {
		fmt.Printf("Failed:    %d\n", report.Failed)
	}

	return runErr
}

// VerifyCmd checks that sanitizing a notebook twice produces identical
// bytes.
type VerifyCmd struct {
	Input string `arg:"" help:"Notebook to verify" type:"existingfile"`

	SanitizerFlags
}

func (c *VerifyCmd) Run() error {
	s, _, err := c.build()
	if err != nil {
		return err
	}

	nb, err := notebook.Load(c.Input)
	if err != nil {
		return err
	}
	nb.SanitizeMarkdown(s)
	first, err := nb.Encode()
	if err != nil {
		return err
	}

	again, err := notebook.Parse(first, c.Input)
	if err != nil {
		return err
	}
	changed := again.SanitizeMarkdown(s)
	second, err := again.Encode()
	if err != nil {
		return err
	}

	firstDigest := digest.Both(first)
	secondDigest := digest.Both(second)

	fmt.Printf("Verifying sanitize idempotence: %s\n", c.Input)
	fmt.Printf("  Pass 1 SHA-256: %s\n", firstDigest.SHA256)
	fmt.Printf("  Pass 2 SHA-256: %s\n", secondDigest.SHA256)
	fmt.Println()

	if !changed && firstDigest == secondDigest {
		fmt.Println("Result: PASS")
		fmt.Println("  Sanitizing twice produces identical output.")
		return nil
	}

	fmt.Println("Result: FAIL")
	fmt.Println("  A second pass changed the document again!")
	return fmt.Errorf("sanitize is not idempotent for %s", c.Input)
}

// ProfilesGroup contains sanitizer profile operations.
type ProfilesGroup struct {
	List ProfilesListCmd `cmd:"" help:"List available sanitizer profiles"`
}

// ProfilesListCmd lists built-in and file-defined profiles.
type ProfilesListCmd struct {
	Config string `help:"Profiles file (YAML)" type:"existingfile"`
}

func (c *ProfilesListCmd) Run() error {
	var file *config.File
	if c.Config != "" {
		loaded, err := config.Load(c.Config)
		if err != nil {
			return err
		}
		file = loaded
	}

	profiles := config.All(file)

	fmt.Printf("%-12s %-8s %-6s %-12s %s\n", "NAME", "UNICODE", "MATH", "UNDERSCORES", "DESCRIPTION")
	fmt.Printf("%-12s %-8s %-6s %-12s %s\n", "----", "-------", "----", "-----------", "-----------")
	for _, p := range profiles {
		fmt.Printf("%-12s %-8s %-6s %-12s %s\n",
			p.Name,
			yesNo(p.Sanitize.NormalizeUnicode),
			yesNo(p.Sanitize.NormalizeMathDelimiters),
			yesNo(p.Sanitize.EscapeUnderscores),
			p.Description)
	}
	fmt.Printf("\nTotal: %d profile(s)\n", len(profiles))
	return nil
}

// RulesGroup contains rewrite rule file operations.
type RulesGroup struct {
	Check RulesCheckCmd `cmd:"" help:"Parse a rewrite rule file and list its rules"`
}

// RulesCheckCmd parses a rule file and reports what it found.
type RulesCheckCmd struct {
	Path string `arg:"" help:"Rule file to check" type:"existingfile"`
}

func (c *RulesCheckCmd) Run() error {
	rules, err := sanitize.ParseRuleFile(c.Path)
	if err != nil {
		return err
	}

	fmt.Printf("Rules in %s:\n\n", c.Path)
	for i, r := range rules {
		fmt.Printf("  [%d] %q -> %q (scope: %s)\n", i+1, r.Find, r.Replace, r.Scope)
	}
	fmt.Printf("\nTotal: %d rule(s)\n", len(rules))
	return nil
}

// CacheGroup contains skip ledger operations.
type CacheGroup struct {
	Info  CacheInfoCmd  `cmd:"" help:"Show ledger statistics"`
	Clear CacheClearCmd `cmd:"" help:"Delete all recorded ledger entries"`
}

// CacheInfoCmd shows ledger statistics.
type CacheInfoCmd struct {
	Cache string `help:"Ledger database path (default: user cache dir)" type:"path"`
}

func (c *CacheInfoCmd) Run() error {
	ledger, err := openLedger(c.Cache)
	if err != nil {
		return err
	}
	defer ledger.Close()

	stats, err := ledger.Stats()
	if err != nil {
		return err
	}

	fmt.Printf("Ledger: %s\n", stats.Path)
	fmt.Printf("  Driver: %s\n", stats.Driver)
	fmt.Printf("  Entries: %d\n", stats.Entries)
	fmt.Printf("  Size: %d bytes\n", stats.SizeBytes)
	return nil
}

// CacheClearCmd deletes all ledger entries.
type CacheClearCmd struct {
	Cache string `help:"Ledger database path (default: user cache dir)" type:"path"`
}

func (c *CacheClearCmd) Run() error {
	ledger, err := openLedger(c.Cache)
	if err != nil {
		return err
	}
	defer ledger.Close()

	removed, err := ledger.Clear()
	if err != nil {
		return err
	}

	fmt.Printf("Cleared %d entries from %s\n", removed, ledger.Path())
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("nbprep version %s\n", version)
	return nil
}

// Helper functions

func openLedger(path string) (*cache.Ledger, error) {
	if path == "" {
		def, err := cache.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = def
	}
	return cache.Open(path)
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("nbprep"),
		kong.Description("Notebook and LaTeX preprocessing for XeLaTeX PDF builds"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	logging.InitLogger(logging.ParseLevel(CLI.LogLevel), logging.ParseFormat(CLI.LogFormat))
	err := ctx.Run()
	ctx.FatalIfErrorf(err)
}
