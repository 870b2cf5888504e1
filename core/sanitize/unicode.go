package sanitize

import "strings"

// unicodeTable maps the characters that XeLaTeX builds of notebook content
// routinely choke on (missing glyphs, math-mode surprises, invisible
// characters) to ASCII-safe replacements. The table applies to every region:
// a no-break space inside a code listing breaks the PDF build just like one
// in prose. No replacement contains a character the table maps, so applying
// the table is idempotent.
var unicodeTable = []Rule{
	{Find: " ", Replace: " ", Scope: ScopeAll},   // no-break space
	{Find: "‘", Replace: "'", Scope: ScopeAll},   // left single quote
	{Find: "’", Replace: "'", Scope: ScopeAll},   // right single quote
	{Find: "“", Replace: `"`, Scope: ScopeAll},   // left double quote
	{Find: "”", Replace: `"`, Scope: ScopeAll},   // right double quote
	{Find: "–", Replace: "-", Scope: ScopeAll},   // en dash
	{Find: "—", Replace: "-", Scope: ScopeAll},   // em dash
	{Find: "…", Replace: "...", Scope: ScopeAll}, // horizontal ellipsis
	{Find: "→", Replace: "->", Scope: ScopeAll},  // rightwards arrow
	{Find: "⇒", Replace: "=>", Scope: ScopeAll},  // rightwards double arrow
	{Find: "↦", Replace: "|->", Scope: ScopeAll}, // rightwards arrow from bar
	{Find: "−", Replace: "-", Scope: ScopeAll},   // minus sign
	{Find: "​", Replace: "", Scope: ScopeAll},    // zero-width space
	{Find: "‌", Replace: "", Scope: ScopeAll},    // zero-width non-joiner
	{Find: "‍", Replace: "", Scope: ScopeAll},    // zero-width joiner
	{Find: "﻿", Replace: "", Scope: ScopeAll},    // byte order mark
}

// unicodeReplacer applies the whole table in a single pass.
var unicodeReplacer = newReplacer(unicodeTable)

func newReplacer(rules []Rule) *strings.Replacer {
	pairs := make([]string, 0, len(rules)*2)
	for _, r := range rules {
		pairs = append(pairs, r.Find, r.Replace)
	}
	return strings.NewReplacer(pairs...)
}

// NormalizeUnicode applies the built-in Unicode replacement table to text.
func NormalizeUnicode(text string) string {
	return unicodeReplacer.Replace(text)
}

// UnicodeRules returns a copy of the built-in Unicode replacement table.
func UnicodeRules() []Rule {
	out := make([]Rule, len(unicodeTable))
	copy(out, unicodeTable)
	return out
}
