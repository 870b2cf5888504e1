package sanitize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Options selects which rewrites a Sanitizer performs.
//
// The zero value disables everything. DefaultOptions enables only Unicode
// normalization, the one rewrite every XeLaTeX build wants; the two
// prose rewrites change how valid LaTeX is spelled and are opt-in.
type Options struct {
	// NormalizeUnicode applies the built-in Unicode replacement table to
	// all regions.
	NormalizeUnicode bool `json:"normalize_unicode"`

	// NormalizeMathDelimiters rewrites \(..\) and \[..\] math regions to
	// the $..$ and $$..$$ spellings nbconvert's markdown handling expects,
	// and converts unpaired LaTeX math delimiters left in prose.
	NormalizeMathDelimiters bool `json:"normalize_math_delimiters"`

	// EscapeUnderscores escapes bare underscores in prose so LaTeX does
	// not read them as subscript operators. Underscores already escaped
	// stay as written.
	EscapeUnderscores bool `json:"escape_underscores"`
}

// DefaultOptions returns the standard preprocessing configuration:
// Unicode normalization on, everything else off.
func DefaultOptions() Options {
	return Options{NormalizeUnicode: true}
}

// Sanitizer applies a fixed set of rewrites to markdown text. It is
// immutable after construction and safe for concurrent use.
type Sanitizer struct {
	opts       Options
	allRules   []Rule
	proseRules []Rule
}

// New builds a Sanitizer from options and optional extra rules. Extra
// all-scope rules run after the built-in Unicode table, in the order given;
// prose-scope rules run after the built-in prose rewrites.
func New(opts Options, extra ...Rule) *Sanitizer {
	s := &Sanitizer{opts: opts}
	for _, r := range extra {
		if r.Scope == ScopeProse {
			s.proseRules = append(s.proseRules, r)
		} else {
			s.allRules = append(s.allRules, r)
		}
	}
	return s
}

// Options returns the sanitizer's configuration.
func (s *Sanitizer) Options() Options {
	return s.opts
}

// Fingerprint identifies the effective configuration (options plus extra
// rules). Two sanitizers with the same fingerprint produce identical output
// for identical input, which is what lets cached runs be skipped safely.
func (s *Sanitizer) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "u=%t m=%t e=%t\n",
		s.opts.NormalizeUnicode, s.opts.NormalizeMathDelimiters, s.opts.EscapeUnderscores)
	for _, r := range s.allRules {
		fmt.Fprintf(h, "a %q %q\n", r.Find, r.Replace)
	}
	for _, r := range s.proseRules {
		fmt.Fprintf(h, "p %q %q\n", r.Find, r.Replace)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}

// Text sanitizes a flat markdown string and returns the rewritten text.
// The transform is pure and idempotent.
func (s *Sanitizer) Text(text string) string {
	if text == "" {
		return text
	}
	if s.opts.NormalizeUnicode {
		text = NormalizeUnicode(text)
	}
	for _, r := range s.allRules {
		text = strings.ReplaceAll(text, r.Find, r.Replace)
	}
	if !s.rewritesProse() {
		return text
	}

	var sb strings.Builder
	sb.Grow(len(text) + 16)
	for _, reg := range Classify(text) {
		span := text[reg.Start:reg.End]
		switch reg.Kind {
		case RegionProse:
			sb.WriteString(s.prose(span))
		case RegionMathDisplay:
			if s.opts.NormalizeMathDelimiters && strings.HasPrefix(span, `\[`) {
				sb.WriteString("$$")
				sb.WriteString(span[2 : len(span)-2])
				sb.WriteString("$$")
			} else {
				sb.WriteString(span)
			}
		case RegionMathInline:
			if s.opts.NormalizeMathDelimiters && strings.HasPrefix(span, `\(`) {
				sb.WriteString("$")
				sb.WriteString(span[2 : len(span)-2])
				sb.WriteString("$")
			} else {
				sb.WriteString(span)
			}
		default:
			sb.WriteString(span)
		}
	}
	return sb.String()
}

// rewritesProse reports whether any configured rewrite depends on region
// classification. When none does, Text skips the scan entirely.
func (s *Sanitizer) rewritesProse() bool {
	return s.opts.NormalizeMathDelimiters || s.opts.EscapeUnderscores || len(s.proseRules) > 0
}

// prose rewrites a single prose span.
func (s *Sanitizer) prose(span string) string {
	if s.opts.NormalizeMathDelimiters {
		span = looseMathReplacer.Replace(span)
	}
	if s.opts.EscapeUnderscores {
		span = escapeUnderscores(span)
	}
	for _, r := range s.proseRules {
		span = strings.ReplaceAll(span, r.Find, r.Replace)
	}
	return span
}

// looseMathReplacer converts LaTeX math delimiters that did not pair up
// into a region. Paired delimiters are rewritten when their region is
// emitted, so by the time a prose span reaches this replacer any remaining
// delimiter tokens are strays.
var looseMathReplacer = strings.NewReplacer(
	`\[`, "$$",
	`\]`, "$$",
	`\(`, "$",
	`\)`, "$",
)

// escapeUnderscores escapes each underscore that is not already escaped.
// An underscore counts as escaped when an odd number of backslashes
// immediately precedes it, so \_ survives a second pass unchanged and \\_
// (escaped backslash, bare underscore) gets its underscore escaped.
func escapeUnderscores(span string) string {
	if !strings.Contains(span, "_") {
		return span
	}
	var sb strings.Builder
	sb.Grow(len(span) + 8)
	backslashes := 0
	for i := 0; i < len(span); i++ {
		c := span[i]
		if c == '_' && backslashes%2 == 0 {
			sb.WriteByte('\\')
		}
		if c == '\\' {
			backslashes++
		} else {
			backslashes = 0
		}
		sb.WriteByte(c)
	}
	return sb.String()
}

// Fragments sanitizes a fragment-list source. The fragments are joined,
// sanitized as one string, and re-split on line boundaries with each line
// keeping its terminator, so the concatenation of the result equals
// Text(concatenation of frags) exactly and a trailing newline survives.
// The input slice is never modified.
func (s *Sanitizer) Fragments(frags []string) []string {
	if len(frags) == 0 {
		return nil
	}
	return SplitFragments(s.Text(strings.Join(frags, "")))
}

// SplitFragments splits flat text into notebook-style line fragments, each
// line keeping its trailing newline. Concatenating the result always yields
// text exactly. Empty text yields nil.
func SplitFragments(text string) []string {
	if text == "" {
		return nil
	}
	var frags []string
	for len(text) > 0 {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			frags = append(frags, text)
			break
		}
		frags = append(frags, text[:i+1])
		text = text[i+1:]
	}
	return frags
}
