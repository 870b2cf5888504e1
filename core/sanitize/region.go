package sanitize

import "strings"

// RegionKind classifies a span of markdown text.
type RegionKind string

// Region kind constants, in scan priority order.
const (
	RegionCodeFence   RegionKind = "code_fence"
	RegionCodeInline  RegionKind = "code_inline"
	RegionMathDisplay RegionKind = "math_display"
	RegionMathInline  RegionKind = "math_inline"
	RegionProse       RegionKind = "prose"
)

// validRegionKinds is the set of valid region kinds.
var validRegionKinds = map[RegionKind]bool{
	RegionCodeFence:   true,
	RegionCodeInline:  true,
	RegionMathDisplay: true,
	RegionMathInline:  true,
	RegionProse:       true,
}

// IsValid returns true if the region kind is valid.
func (k RegionKind) IsValid() bool {
	return validRegionKinds[k]
}

// Protected returns true if the region's content must not be rewritten by
// prose-scoped rules.
func (k RegionKind) Protected() bool {
	return k != RegionProse && validRegionKinds[k]
}

// Region is a half-open byte range [Start, End) of classified text.
// Delimiters belong to the region they open and close.
type Region struct {
	Kind  RegionKind `json:"kind"`
	Start int        `json:"start"`
	End   int        `json:"end"`
}

// delimiter describes one opener/closer token pair. Tokens are all ASCII,
// so byte offsets stay valid on UTF-8 input.
type delimiter struct {
	kind   RegionKind
	opener string
	closer string
}

// delimiters in priority order: the order breaks ties between candidate
// pairs whose openers start at the same offset.
var delimiters = []delimiter{
	{RegionCodeFence, "```", "```"},
	{RegionCodeInline, "`", "`"},
	{RegionMathDisplay, `\[`, `\]`},
	{RegionMathDisplay, "$$", "$$"},
	{RegionMathInline, `\(`, `\)`},
	{RegionMathInline, "$", "$"},
}

// Classify partitions text into code, math, and prose regions.
//
// The scan is greedy and left to right. At each step the earliest opener
// token in the remaining text is claimed, ties between kinds going to table
// order (so the first backtick of ``` belongs to the fence kind, never to
// inline code, and the first $ of $$ belongs to display math). A claimed
// opener with a closer becomes a region and the scan resumes after the
// closer, so a delimiter token inside a consumed region can never open a
// new one. A claimed opener with no closer lapses into prose and the scan
// resumes after its token: an unclosed fence at end of text leaves the
// remainder as prose, and a stray $ in prose does not unprotect a code span
// that follows it. Classify never fails and never backtracks.
//
// The returned regions are ordered, disjoint, and cover every byte of text.
// Empty text yields nil.
func Classify(text string) []Region {
	var regions []Region
	proseStart := 0
	pos := 0
	for pos < len(text) {
		kind := -1
		start := -1
		for di, d := range delimiters {
			rel := strings.Index(text[pos:], d.opener)
			if rel < 0 {
				continue
			}
			if open := pos + rel; start < 0 || open < start {
				kind = di
				start = open
			}
		}
		if start < 0 {
			break
		}

		d := delimiters[kind]
		body := start + len(d.opener)
		rel := strings.Index(text[body:], d.closer)
		if rel < 0 {
			// Unterminated opener: the token is plain prose.
			pos = body
			continue
		}
		end := body + rel + len(d.closer)
		if start > proseStart {
			regions = append(regions, Region{Kind: RegionProse, Start: proseStart, End: start})
		}
		regions = append(regions, Region{Kind: d.kind, Start: start, End: end})
		pos = end
		proseStart = end
	}
	if proseStart < len(text) {
		regions = append(regions, Region{Kind: RegionProse, Start: proseStart, End: len(text)})
	}
	return regions
}
