package reports

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	DefaultFilenamePattern     = `(?P<year>\d{4})[-_](?P<month>[a-z]+)[-_](?P<facility>\d{2}-\d{4})`
	AlternativeFilenamePattern = `(?P<facility>\d{2}-\d{4})[-_](?P<year>\d{4})[-_](?P<month>[a-z]+)`
)

// DefaultPatterns are inserted into an empty pattern table.
func DefaultPatterns() []RegexPattern {
	return []RegexPattern{
		{
			Name:        "Default Pattern",
			Pattern:     DefaultFilenamePattern,
			Description: "Default pattern for parsing refinery PDF filenames",
			IsActive:    true,
		},
		{
			Name:        "Alternative Pattern",
			Pattern:     AlternativeFilenamePattern,
			Description: "Alternative pattern for different filename format",
			IsActive:    true,
		},
	}
}

type PatternMatch struct {
	Matched   bool
	FullMatch string
	// Groups is nil when the pattern did not match.
	Groups map[string]string
}

// CompilePattern compiles p as a case-insensitive regular expression.
func CompilePattern(p string) (*regexp.Regexp, error) {
	if strings.TrimSpace(p) == "" {
		return nil, fmt.Errorf("%w: pattern is empty", ErrInvalidInput)
	}
	re, err := regexp.Compile("(?i)" + p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}
	return re, nil
}

// TestPattern searches filename with pattern and returns the named groups of
// the first match. The match does not have to cover the whole filename, so an
// extension after the captured fields is allowed.
func TestPattern(pattern, filename string) (PatternMatch, error) {
	re, err := CompilePattern(pattern)
	if err != nil {
		return PatternMatch{}, err
	}
	return matchNamed(re, filename), nil
}

func matchNamed(re *regexp.Regexp, s string) PatternMatch {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return PatternMatch{}
	}
	groups := map[string]string{}
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		groups[name] = m[i]
	}
	return PatternMatch{Matched: true, FullMatch: m[0], Groups: groups}
}

type FilenameFields struct {
	Year     string
	Month    string
	Facility string
	// Pattern is the name of the pattern that matched.
	Pattern string
}

// ParseFilename tries patterns in order and returns the fields of the first one
// that captures year, month and facility. Patterns that fail to compile are skipped.
func ParseFilename(patterns []RegexPattern, filename string) (FilenameFields, bool) {
	for _, p := range patterns {
		re, err := CompilePattern(p.Pattern)
		if err != nil {
			continue
		}
		m := matchNamed(re, filename)
		if !m.Matched {
			continue
		}
		year, month, facility := m.Groups["year"], m.Groups["month"], m.Groups["facility"]
		if year == "" || month == "" || facility == "" {
			continue
		}
		return FilenameFields{
			Year:     year,
			Month:    strings.ToLower(month),
			Facility: facility,
			Pattern:  p.Name,
		}, true
	}
	return FilenameFields{}, false
}
