// Package cli provides CLI output utilities for Wordstat.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/komyaka/wordstat/internal/export"
	"github.com/komyaka/wordstat/internal/models"
)

// OutputFormat is the format for expansion result output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
	// OutputTSV is tab-separated values for spreadsheet import.
	OutputTSV OutputFormat = "tsv"
)

// ParseOutputFormat maps a flag value to an OutputFormat; empty means text.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON, OutputTSV:
		return OutputFormat(s), nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json, or tsv)", s)
}

// WriteResults writes expansion results to w in the given format.
func WriteResults(w io.Writer, records []models.KeywordRecord, format OutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case OutputTSV:
		return export.TSV(w, records)
	default:
		writeResultsText(w, records)
		return nil
	}
}

func writeResultsText(w io.Writer, records []models.KeywordRecord) {
	fmt.Fprintf(w, "\nCollected %d keywords\n\n", len(records))
	if len(records) == 0 {
		return
	}
	phraseWidth := len("Phrase")
	for _, r := range records {
		if n := len([]rune(r.Phrase)); n > phraseWidth {
			phraseWidth = n
		}
	}
	if phraseWidth > 60 {
		phraseWidth = 60
	}
	fmt.Fprintf(w, "%-*s  %10s  %5s  %-6s  %s\n", phraseWidth, "Phrase", "Count", "Depth", "Source", "Seed")
	fmt.Fprintln(w, strings.Repeat("─", phraseWidth+40))
	for _, r := range records {
		fmt.Fprintf(w, "%-*s  %10d  %5d  %-6s  %s\n",
			phraseWidth, Truncate(r.Phrase, 60), r.Count, r.Depth, r.Source, r.Seed)
	}
}

// PrintResults prints expansion results to stdout in text format.
func PrintResults(records []models.KeywordRecord) {
	_ = WriteResults(os.Stdout, records, OutputText)
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	runes := []rune(s)
	if maxLen <= 0 || len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// ReadSeeds reads one seed phrase per line from r, skipping blank lines and
// lines starting with '#'.
func ReadSeeds(r io.Reader) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read seeds: %w", err)
	}
	var seeds []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		seeds = append(seeds, line)
	}
	return seeds, nil
}
