// Package filter implements the command filter §4.E delegates shell_exec
// and session-start commands through: a small table of named rule
// categories, each a list of compiled patterns, checked in order.
package filter

import "regexp"

// Verdict is the result of Check.
type Verdict struct {
	Allowed bool
	Reason  string
}

type category struct {
	name     string
	patterns []*regexp.Regexp
}

// Filter holds the compiled rule categories plus an optional additional
// operator blocklist loaded from configuration.
type Filter struct {
	categories []category
	extra      []*regexp.Regexp
}

// defaultCategoryPatterns groups exfiltration, destructive, and
// privilege-escalation heuristics, mirroring the corpus's category-table
// shape (a name mapped to a list of matchers) generalized from domain
// strings to command-line regular expressions.
var defaultCategoryPatterns = map[string][]string{
	"exfil": {
		`curl[^|]*\|\s*sh`,
		`wget[^|]*\|\s*sh`,
		`nc\s+-e`,
		`base64\s+-d.*\|\s*sh`,
	},
	"destructive": {
		`rm\s+-rf\s+/(\s|$)`,
		`mkfs\.`,
		`dd\s+if=.*of=/dev/`,
		`:\(\)\{.*\};:`, // fork bomb
	},
	"privilege-escalation": {
		`sudo\s+-s`,
		`chmod\s+(-R\s+)?777\s+/`,
		`/etc/passwd`,
		`/etc/shadow`,
	},
}

// New compiles the fixed category table plus any operator-supplied
// blocklist patterns.
func New(extraBlocklist []string) *Filter {
	f := &Filter{}
	for _, name := range []string{"exfil", "destructive", "privilege-escalation"} {
		cat := category{name: name}
		for _, p := range defaultCategoryPatterns[name] {
			cat.patterns = append(cat.patterns, regexp.MustCompile(p))
		}
		f.categories = append(f.categories, cat)
	}
	for _, p := range extraBlocklist {
		if re, err := regexp.Compile(p); err == nil {
			f.extra = append(f.extra, re)
		}
	}
	return f
}

// Check evaluates command against every category in order, returning the
// first rejection found.
func (f *Filter) Check(command string) Verdict {
	for _, cat := range f.categories {
		for _, re := range cat.patterns {
			if re.MatchString(command) {
				return Verdict{Allowed: false, Reason: "blocked by category: " + cat.name}
			}
		}
	}
	for _, re := range f.extra {
		if re.MatchString(command) {
			return Verdict{Allowed: false, Reason: "blocked by configured pattern"}
		}
	}
	return Verdict{Allowed: true}
}
