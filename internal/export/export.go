// Package export renders run results to Excel and TSV.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/komyaka/wordstat/internal/models"
)

const (
	keywordsSheet = "Keywords"
	summarySheet  = "Summary"
)

var keywordHeaders = []string{"Phrase", "Count", "Depth", "Seed", "Source"}

// byCountDesc returns a copy of records sorted by count descending, ties by
// phrase for a stable layout.
func byCountDesc(records []models.KeywordRecord) []models.KeywordRecord {
	out := append([]models.KeywordRecord(nil), records...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Phrase < out[j].Phrase
	})
	return out
}

// Excel writes an xlsx workbook with a Keywords sheet (count descending) and
// a Summary sheet with aggregate stats.
func Excel(w io.Writer, records []models.KeywordRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", keywordsSheet); err != nil {
		return fmt.Errorf("failed to create keywords sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF", Size: 12},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4A90E2"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		return fmt.Errorf("failed to build header style: %w", err)
	}

	for col, h := range keywordHeaders {
		cell, _ := excelize.CoordinatesToCellName(col+1, 1)
		if err := f.SetCellValue(keywordsSheet, cell, h); err != nil {
			return fmt.Errorf("failed to write header: %w", err)
		}
	}
	if err := f.SetCellStyle(keywordsSheet, "A1", "E1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	sorted := byCountDesc(records)
	for i, r := range sorted {
		row := i + 2
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(keywordsSheet, cell, &[]interface{}{
			r.Phrase, r.Count, r.Depth, r.Seed, string(r.Source),
		}); err != nil {
			return fmt.Errorf("failed to write row %d: %w", row, err)
		}
	}

	f.SetColWidth(keywordsSheet, "A", "A", 45)
	f.SetColWidth(keywordsSheet, "B", "C", 15)
	f.SetColWidth(keywordsSheet, "D", "D", 35)
	f.SetColWidth(keywordsSheet, "E", "E", 12)

	if err := writeSummary(f, headerStyle, sorted); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, headerStyle int, sorted []models.KeywordRecord) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}

	var maxCount, minCount, total int64
	if len(sorted) > 0 {
		maxCount = sorted[0].Count
		minCount = sorted[len(sorted)-1].Count
		for _, r := range sorted {
			total += r.Count
		}
	}
	var avg int64
	if len(sorted) > 0 {
		avg = total / int64(len(sorted))
	}

	rows := [][]interface{}{
		{"Parameter", "Value"},
		{"Exported at", time.Now().Format("2006-01-02 15:04:05")},
		{"Total keywords", len(sorted)},
		{"Max count", maxCount},
		{"Min count", minCount},
		{"Average count", avg},
	}
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(summarySheet, cell, &r); err != nil {
			return fmt.Errorf("failed to write summary row: %w", err)
		}
	}
	if err := f.SetCellStyle(summarySheet, "A1", "B1", headerStyle); err != nil {
		return fmt.Errorf("failed to style summary header: %w", err)
	}
	f.SetColWidth(summarySheet, "A", "A", 30)
	f.SetColWidth(summarySheet, "B", "B", 45)
	return nil
}

// TSV writes records as tab-separated values with a header row, count
// descending. Tabs and newlines inside phrases are collapsed to spaces so
// the output stays one record per line.
func TSV(w io.Writer, records []models.KeywordRecord) error {
	if _, err := fmt.Fprintln(w, strings.Join(keywordHeaders, "\t")); err != nil {
		return err
	}
	for _, r := range byCountDesc(records) {
		line := fmt.Sprintf("%s\t%d\t%d\t%s\t%s\n",
			sanitizeField(r.Phrase), r.Count, r.Depth, sanitizeField(r.Seed), r.Source)
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}

func sanitizeField(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\n', '\r':
			return ' '
		}
		return r
	}, s)
}
