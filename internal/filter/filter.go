// Package filter screens discovered keyword phrases before they enter a
// run's result set: minimum count, word-count range, include/exclude
// patterns, excluded substrings, and minus-words.
package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// Filter holds the active screening rules. The zero value accepts everything.
type Filter struct {
	minCount          int64
	minWords          int
	maxWords          int
	includeRe         *regexp.Regexp
	excludeRe         *regexp.Regexp
	excludeSubstrings []string
	minusWords        map[string]struct{}
}

// Config is the declarative form of a Filter, loaded from the config file.
type Config struct {
	MinCount          int64    `yaml:"min_count"`
	MinWords          int      `yaml:"min_words"`
	MaxWords          int      `yaml:"max_words"`
	IncludePattern    string   `yaml:"include_pattern"`
	ExcludePattern    string   `yaml:"exclude_pattern"`
	ExcludeSubstrings []string `yaml:"exclude_substrings"`
	MinusWords        []string `yaml:"minus_words"`
}

// New builds a Filter from cfg. Invalid regex patterns are an error; an
// empty pattern disables that rule.
func New(cfg Config) (*Filter, error) {
	f := &Filter{
		minCount: cfg.MinCount,
		minWords: cfg.MinWords,
		maxWords: cfg.MaxWords,
	}
	if cfg.MaxWords > 0 && cfg.MaxWords < cfg.MinWords {
		return nil, fmt.Errorf("max_words (%d) must be >= min_words (%d)", cfg.MaxWords, cfg.MinWords)
	}
	var err error
	if cfg.IncludePattern != "" {
		if f.includeRe, err = regexp.Compile("(?i)" + cfg.IncludePattern); err != nil {
			return nil, fmt.Errorf("invalid include_pattern: %w", err)
		}
	}
	if cfg.ExcludePattern != "" {
		if f.excludeRe, err = regexp.Compile("(?i)" + cfg.ExcludePattern); err != nil {
			return nil, fmt.Errorf("invalid exclude_pattern: %w", err)
		}
	}
	for _, s := range cfg.ExcludeSubstrings {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			f.excludeSubstrings = append(f.excludeSubstrings, s)
		}
	}
	if len(cfg.MinusWords) > 0 {
		f.minusWords = make(map[string]struct{}, len(cfg.MinusWords))
		for _, w := range cfg.MinusWords {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				f.minusWords[w] = struct{}{}
			}
		}
	}
	return f, nil
}

// Apply reports whether the phrase passes all rules; on rejection the reason
// names the rule that fired.
func (f *Filter) Apply(phrase string, count int64) (bool, string) {
	if f == nil {
		return true, ""
	}
	if count < f.minCount {
		return false, fmt.Sprintf("count %d below minimum %d", count, f.minCount)
	}
	words := strings.Fields(phrase)
	if f.minWords > 0 && len(words) < f.minWords {
		return false, fmt.Sprintf("%d words, minimum %d", len(words), f.minWords)
	}
	if f.maxWords > 0 && len(words) > f.maxWords {
		return false, fmt.Sprintf("%d words, maximum %d", len(words), f.maxWords)
	}
	if f.includeRe != nil && !f.includeRe.MatchString(phrase) {
		return false, "does not match include pattern"
	}
	if f.excludeRe != nil && f.excludeRe.MatchString(phrase) {
		return false, "matches exclude pattern"
	}
	lower := strings.ToLower(phrase)
	for _, sub := range f.excludeSubstrings {
		if strings.Contains(lower, sub) {
			return false, fmt.Sprintf("contains excluded substring %q", sub)
		}
	}
	if len(f.minusWords) > 0 {
		for _, w := range strings.Fields(lower) {
			if _, hit := f.minusWords[w]; hit {
				return false, fmt.Sprintf("contains minus-word %q", w)
			}
		}
	}
	return true, ""
}
