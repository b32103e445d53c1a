package utils

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"
)

// RoundToTwoDecimals rounds half to even at two decimals.
func RoundToTwoDecimals(f float64) float64 {
	return math.RoundToEven(f*100) / 100
}

// Truncate shortens s to at most n runes, marking the cut with an ellipsis.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	if n == 1 {
		return "…"
	}
	return string([]rune(s)[:n-1]) + "…"
}

// WriteMarkdownTable writes a padded markdown table. Pipes and newlines in
// cells are escaped so every row stays on one line.
func WriteMarkdownTable(w io.Writer, columns []string, rows [][]string) error {
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = max(3, utf8.RuneCountInString(c))
	}
	clean := make([][]string, len(rows))
	for r, row := range rows {
		clean[r] = make([]string, len(columns))
		for i := range columns {
			cell := ""
			if i < len(row) {
				cell = escapeCell(row[i])
			}
			clean[r][i] = cell
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	var b strings.Builder
	writeLine(&b, columns, widths)
	sep := make([]string, len(columns))
	for i, n := range widths {
		sep[i] = strings.Repeat("-", n)
	}
	writeLine(&b, sep, widths)
	for _, row := range clean {
		writeLine(&b, row, widths)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// WriteCSVTable writes columns then rows as CSV.
func WriteCSVTable(w io.Writer, columns []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return err
	}
	for _, row := range rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveMarkdown writes a titled markdown report to path.
func SaveMarkdown(path, title string, columns []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating report: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "# %s\n\n", title); err != nil {
		return err
	}
	if err := WriteMarkdownTable(f, columns, rows); err != nil {
		return fmt.Errorf("error writing report: %w", err)
	}
	return f.Close()
}

func writeLine(b *strings.Builder, cells []string, widths []int) {
	b.WriteString("|")
	for i, cell := range cells {
		b.WriteString(" ")
		b.WriteString(cell)
		b.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
		b.WriteString(" |")
	}
	b.WriteString("\n")
}

func escapeCell(s string) string {
	s = strings.ReplaceAll(s, "|", `\|`)
	s = strings.ReplaceAll(s, "\r\n", " ")
	return strings.ReplaceAll(s, "\n", " ")
}
