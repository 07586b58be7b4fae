package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
)

// Rule is one pattern → replacement entry of a rule pack. Order is
// significant: rules are applied in the order they are listed, and each
// rule sees the output of the rules before it.
type Rule struct {
	Name        string `yaml:"name" json:"name"`
	Pattern     string `yaml:"pattern" json:"pattern"`
	Replacement string `yaml:"replacement" json:"replacement"`
}

// Finding reports matches of a single rule within one piece of text.
type Finding struct {
	Rule        string `json:"rule"`
	Replacement string `json:"replacement"`
	Count       int    `json:"count"`
}

// CompileError reports the first pattern that failed to compile.
type CompileError struct {
	Pattern string
	Err     error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("invalid regex pattern %q: %v", e.Pattern, e.Err)
}

func (e *CompileError) Unwrap() error { return e.Err }

type compiledRule struct {
	name        string
	re          *regexp.Regexp
	replacement string
}

// Set is an ordered, compiled rule set. A Set is immutable after Compile
// and safe for concurrent use.
type Set struct {
	rules       []compiledRule
	fingerprint string
}

// Compile compiles every rule in order. Compilation is all-or-nothing: the
// first invalid pattern aborts with a *CompileError and no Set is returned.
func Compile(list []Rule) (*Set, error) {
	set := &Set{rules: make([]compiledRule, 0, len(list))}

	h := sha256.New()
	for _, r := range list {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, &CompileError{Pattern: r.Pattern, Err: err}
		}

		name := r.Name
		if name == "" {
			name = r.Pattern
		}
		set.rules = append(set.rules, compiledRule{
			name:        name,
			re:          re,
			replacement: r.Replacement,
		})

		h.Write([]byte(r.Pattern))
		h.Write([]byte{0})
		h.Write([]byte(r.Replacement))
		h.Write([]byte{0})
	}
	set.fingerprint = hex.EncodeToString(h.Sum(nil))[:16]

	return set, nil
}

// Apply runs every rule in order over line, cumulatively: replacements made
// by earlier rules are visible to later ones. Replacement strings are
// regexp expansion templates, so $1 and ${name} refer to capture groups and
// a literal dollar sign is written $$.
func (s *Set) Apply(line string) string {
	for i := range s.rules {
		line = s.rules[i].re.ReplaceAllString(line, s.rules[i].replacement)
	}
	return line
}

// Inspect is Apply plus per-rule match counts. It walks the text twice per
// rule, so the file engines use Apply; Inspect serves the API path where
// findings are part of the response.
func (s *Set) Inspect(line string) (string, []Finding) {
	findings := make([]Finding, 0)
	for i := range s.rules {
		r := &s.rules[i]
		matches := r.re.FindAllStringIndex(line, -1)
		if len(matches) == 0 {
			continue
		}
		findings = append(findings, Finding{
			Rule:        r.name,
			Replacement: r.replacement,
			Count:       len(matches),
		})
		line = r.re.ReplaceAllString(line, r.replacement)
	}
	return line, findings
}

// Len returns the number of compiled rules.
func (s *Set) Len() int { return len(s.rules) }

// Fingerprint returns a stable hex digest of the ordered pattern and
// replacement pairs. Equal sets share a fingerprint; any reorder, edit,
// addition or removal changes it.
func (s *Set) Fingerprint() string { return s.fingerprint }

// Names returns the rule names in application order.
func (s *Set) Names() []string {
	names := make([]string, len(s.rules))
	for i := range s.rules {
		names[i] = s.rules[i].name
	}
	return names
}

// Rules returns the rule tuples in application order, for display.
func (s *Set) Rules() []Rule {
	out := make([]Rule, len(s.rules))
	for i := range s.rules {
		out[i] = Rule{
			Name:        s.rules[i].name,
			Pattern:     s.rules[i].re.String(),
			Replacement: s.rules[i].replacement,
		}
	}
	return out
}
