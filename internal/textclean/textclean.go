// Package textclean fixes common mojibake in Reddit-style CSV exports
// (e.g. "I‚Äôm" -> "I'm") and normalizes quotes and whitespace.
package textclean

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// mojibake covers the frequent UTF-8-read-as-latin1/mac-roman casualties.
// Longer sequences come before their "â€" prefix so the replacer never
// clips them short.
var mojibake = strings.NewReplacer(
	"â€™", "'",
	"â€˜", "'",
	"â€œ", `"`,
	"â€¦", "...",
	"â€”", "-",
	"â€“", "-",
	"â€", `"`,
	"Â ", " ",
	"‚Äô", "'",
	"‚Ä¶", "...",
	"‚Äì", "-",
	"Ã©", "é",
	"Ã±", "ñ",
	"Ã¼", "ü",
	"Ã¶", "ö",
	"Ã¤", "ä",
)

var (
	spaces        = regexp.MustCompile(`[ \t]+`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
)

// Normalize repairs mojibake, applies NFKC normalization, and collapses
// excessive whitespace.
func Normalize(s string) string {
	s = mojibake.Replace(s)
	s = norm.NFKC.String(s)
	s = spaces.ReplaceAllString(s, " ")
	s = trailingSpace.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// CleanFile reads a dataset CSV, normalizes the title and content columns,
// and writes a clean copy. Other columns pass through untouched.
func CleanFile(inPath, outPath string) (int, error) {
	in, err := os.Open(inPath)
	if err != nil {
		return 0, fmt.Errorf("opening input: %w", err)
	}
	defer in.Close()

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("creating output: %w", err)
	}
	defer out.Close()

	r := csv.NewReader(in)
	w := csv.NewWriter(out)

	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("reading header: %w", err)
	}
	if err := w.Write(header); err != nil {
		return 0, fmt.Errorf("writing header: %w", err)
	}

	textCols := make(map[int]bool)
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case "title", "content":
			textCols[i] = true
		}
	}

	rows := 0
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return rows, fmt.Errorf("reading row %d: %w", rows, err)
		}
		for i := range record {
			if textCols[i] {
				record[i] = Normalize(record[i])
			}
		}
		if err := w.Write(record); err != nil {
			return rows, fmt.Errorf("writing row %d: %w", rows, err)
		}
		rows++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return rows, fmt.Errorf("flushing output: %w", err)
	}
	return rows, nil
}

// DeriveCleanPath maps an input path to its cleaned sibling,
// e.g. dataset.csv -> dataset_clean.csv.
func DeriveCleanPath(inPath string) string {
	if strings.HasSuffix(inPath, ".csv") {
		return strings.TrimSuffix(inPath, ".csv") + "_clean.csv"
	}
	return inPath + "_clean"
}
