// Package search is the Query Engine of spec.md §4.7: pattern compilation,
// ordered SearchResult sets, and a cancellable, progress-reporting sort
// layered read-only over one or more finished internal/index.Index values.
package search

import (
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/volscan/volscan/internal/ntfsfmt"
)

// Mode selects how Pattern.text is interpreted (spec.md §4.7: "One of:
// verbatim, glob (?/*), regex").
type Mode int

const (
	Verbatim Mode = iota
	Glob
	Regex
)

// Pattern is a compiled search pattern (spec.md §4.7's Pattern matching
// bullet): it is handed a candidate tuple's (bytes, isASCII) pair by the
// Index's traversal and must cope with either ASCII or 16-bit-code-unit
// storage interchangeably, decoding before matching rather than matching
// raw bytes.
type Pattern struct {
	re          *regexp.Regexp
	wholeString bool
}

// Compile builds a Pattern from text under mode, with caseInsensitive and
// wholeString controlling the match semantics spec.md §4.7 names ("a
// case_insensitive flag and a match_whole_string vs match_any_substring
// flag").
func Compile(text string, mode Mode, caseInsensitive, wholeString bool) (*Pattern, error) {
	var body string
	switch mode {
	case Verbatim:
		body = regexp.QuoteMeta(text)
	case Glob:
		body = globToRegexp(text)
	case Regex:
		body = text
	default:
		return nil, errors.Errorf("search: unknown pattern mode %d", mode)
	}

	prefix := ""
	if caseInsensitive {
		prefix = "(?i)"
	}
	if wholeString {
		body = "^(?:" + body + ")$"
	}

	re, err := regexp.Compile(prefix + body)
	if err != nil {
		return nil, errors.Wrapf(err, "search: compiling pattern %q", text)
	}
	return &Pattern{re: re, wholeString: wholeString}, nil
}

// globToRegexp translates a shell-style glob (? matches one character, *
// matches any run, everything else literal) into a regexp body, grounded on
// the teacher's filter-pattern glob-to-regexp table: escape every regexp
// metacharacter except the two glob wildcards, which map to "." and ".*".
func globToRegexp(glob string) string {
	var sb strings.Builder
	for _, r := range glob {
		switch r {
		case '*':
			sb.WriteString(".*")
		case '?':
			sb.WriteByte('.')
		default:
			sb.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return sb.String()
}

// Match reports whether raw (ascii-directional name/path bytes, per
// internal/index's shared storage scheme) satisfies the pattern. Whole-
// string vs substring semantics were already baked into the compiled
// regexp by Compile.
func (p *Pattern) Match(raw []byte, ascii bool) bool {
	return p.re.MatchString(decode(raw, ascii))
}

// WholeString reports whether this pattern was compiled with match_whole_
// string semantics, for callers that display the active search mode.
func (p *Pattern) WholeString() bool { return p.wholeString }

func decode(raw []byte, ascii bool) string {
	if ascii {
		return string(raw)
	}
	return ntfsfmt.DecodeUTF16LE(raw)
}
