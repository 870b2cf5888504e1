package sanitize

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/texforge/nbprep/core/errors"
)

// Scope restricts where a rewrite rule applies.
type Scope string

// Scope constants.
const (
	// ScopeAll applies a rule to the whole document before region
	// classification.
	ScopeAll Scope = "all"

	// ScopeProse applies a rule only inside prose regions.
	ScopeProse Scope = "prose"
)

// IsValid returns true if the scope is valid.
func (s Scope) IsValid() bool {
	return s == ScopeAll || s == ScopeProse
}

// Rule is a literal find/replace rewrite tagged with the scope it applies
// to. Rules never use pattern matching: Find is matched byte for byte.
type Rule struct {
	Find    string `json:"find"`
	Replace string `json:"replace"`
	Scope   Scope  `json:"scope"`
}

// ruleFileGrammar is the participle grammar for rewrite rule files.
// Example:
//
//	# strip soft hyphens everywhere
//	"­" => ""                  @all
//	"~"      => "\\textasciitilde{}" @prose
//
//nolint:govet // participle grammar tags are not standard struct tags
type ruleFileGrammar struct {
	Rules []*ruleGrammar `@@*`
}

//nolint:govet // participle grammar tags are not standard struct tags
type ruleGrammar struct {
	Find    string  `@String "=>"`
	Replace string  `@String`
	Scope   *string `@Scope?`
}

// ruleLexer tokenizes rule files. Strings use Go escape syntax, # starts a
// line comment, and the scope tag is a single token so a bare @ is a syntax
// error rather than a silent default.
var ruleLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"(\\.|[^"\\])*"`},
	{Name: "Arrow", Pattern: `=>`},
	{Name: "Scope", Pattern: `@(all|prose)`},
	{Name: "Whitespace", Pattern: `\s+`},
})

// ruleParser is the participle parser for rule files.
var ruleParser = participle.MustBuild[ruleFileGrammar](
	participle.Lexer(ruleLexer),
	participle.Elide("Whitespace", "Comment"),
	participle.Unquote("String"),
)

// ParseRules reads rewrite rules from r. One rule per line:
//
//	"<find>" => "<replace>" [@all|@prose]
//
// with Go string escape syntax inside the quotes. The scope defaults to
// @all. A file of only comments and blank lines yields no rules.
func ParseRules(r io.Reader) ([]Rule, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}
	return parseRules("rules", string(src))
}

// ParseRuleFile reads rewrite rules from the file at path.
func ParseRuleFile(path string) ([]Rule, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}
	return parseRules(path, string(src))
}

func parseRules(name, src string) ([]Rule, error) {
	parsed, err := ruleParser.ParseString(name, src)
	if err != nil {
		return nil, &errors.ParseError{
			Path:    name,
			Cell:    -1,
			Message: "invalid rule syntax: " + err.Error(),
			Err:     err,
		}
	}

	rules := make([]Rule, 0, len(parsed.Rules))
	for i, pr := range parsed.Rules {
		if pr.Find == "" {
			return nil, errors.NewParse(name, fmt.Sprintf("rule %d: empty find pattern", i+1))
		}
		rule := Rule{Find: pr.Find, Replace: pr.Replace, Scope: ScopeAll}
		if pr.Scope != nil {
			rule.Scope = Scope(strings.TrimPrefix(*pr.Scope, "@"))
		}
		rules = append(rules, rule)
	}
	return rules, nil
}
