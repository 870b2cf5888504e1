// Package sanitize rewrites markdown-flavored text so that XeLaTeX can
// compile it without font or math-mode surprises.
//
// The package is built around three ideas:
//
// # Regions
//
// Text is partitioned into disjoint regions by a greedy left-to-right scan
// over a fixed delimiter table:
//
//   - Fenced code (``` ... ```)
//   - Inline code (` ... `)
//   - Display math (\[ ... \] or $$ ... $$)
//   - Inline math (\( ... \) or $ ... $)
//   - Prose (everything else)
//
// At every step the earliest opener token in the remaining text is claimed,
// ties between kinds going to the table order above, so a fence shadows an
// inline backtick and display math shadows inline math at the same offset.
// A claimed opener either pairs with the first closer after it, becoming a
// region, or lapses into prose when no closer exists, which makes truncated
// or malformed markup degrade to prose instead of failing.
//
// # Rewrites
//
// Rewrites are literal find/replace rules tagged with a scope. The built-in
// Unicode table (no-break spaces, curly quotes, dashes, arrows, zero-width
// characters) applies to every region: a U+00A0 inside a code span breaks
// the PDF build just as surely as one in prose. Math delimiter normalization
// and underscore escaping apply only where LaTeX spelling is negotiable,
// which is prose and, for delimiters, the boundaries of \(..\)/\[..\] math
// regions. Additional rules can be loaded from rule files (see ParseRules).
//
// # Purity
//
// Every exported transform is a pure function of its input and the
// sanitizer's configuration, and idempotent: sanitizing already-sanitized
// text is a no-op. Fragment-list sources round-trip through Fragments with
// their concatenation and trailing newline preserved exactly.
package sanitize
