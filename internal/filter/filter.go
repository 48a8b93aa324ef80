package filter

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"

	"menfess/internal/canonical"
)

// Filter matches canonicalized text against a fixed banned-term list. The list is
// loaded once at startup and is immutable afterwards, so Match is safe for
// concurrent use.
type Filter struct {
	terms    []string
	patterns []*regexp.Regexp
}

// New builds a filter from raw banned terms. Each term is canonicalized the same
// way messages are, then compiled as a whole-token pattern: a term must be bounded
// by non-alphanumeric characters or the string edges, never matched as a substring
// of a longer word.
func New(terms []string) *Filter {
	f := &Filter{}
	for _, term := range terms {
		folded := canonical.Fold(strings.TrimSpace(term))
		if folded == "" {
			continue
		}
		f.terms = append(f.terms, term)
		f.patterns = append(f.patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(folded)+`\b`))
	}
	return f
}

// LoadTerms reads a banned-term list, one term per line, skipping blank lines.
func LoadTerms(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open banned-term list: %w", err)
	}
	defer file.Close()

	var terms []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		terms = append(terms, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read banned-term list: %w", err)
	}
	return terms, nil
}

// Match returns the first banned term, in list order, found as a whole token in
// the canonical form of text. Linear scan over the list.
func (f *Filter) Match(text string) (string, bool) {
	folded := canonical.Fold(text)
	for i, pattern := range f.patterns {
		if pattern.MatchString(folded) {
			return f.terms[i], true
		}
	}
	return "", false
}

// Len reports the number of active terms, for startup logging.
func (f *Filter) Len() int {
	return len(f.patterns)
}
