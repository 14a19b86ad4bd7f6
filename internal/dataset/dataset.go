// Package dataset reads the tabular input records the pipeline classifies.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Record is one input row. Identity is RowID, which comes from an explicit
// row_id column when the file has one and the 0-based row index otherwise.
type Record struct {
	RowID   int64
	Title   string
	Content string
}

// Text returns the combined title and content used for filtering and
// classification.
func (r Record) Text() string {
	return strings.TrimSpace(r.Title + "\n\n" + r.Content)
}

// SchemaError reports required columns missing from the input file.
type SchemaError struct {
	Missing []string
	Found   []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("input missing required columns %v (found %v)", e.Missing, e.Found)
}

// Load reads all records from a CSV file. The file must have title and
// content columns; loading fails with a *SchemaError if either is absent.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("reading input header: %w", err)
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, required := range []string{"title", "content"} {
		if _, ok := cols[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, &SchemaError{Missing: missing, Found: header}
	}

	titleIdx := cols["title"]
	contentIdx := cols["content"]
	idIdx, hasID := cols["row_id"]

	var records []Record
	for i := 0; ; i++ {
		row, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("reading input row %d: %w", i, err)
		}

		rec := Record{RowID: int64(i)}
		if hasID {
			// A bad explicit id must not fall back to the index: the
			// fallback could collide with another row's real id and make
			// the checkpoint skip an unprocessed row.
			id, err := strconv.ParseInt(strings.TrimSpace(row[idIdx]), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("input row %d: invalid row_id %q", i, row[idIdx])
			}
			rec.RowID = id
		}
		if titleIdx < len(row) {
			rec.Title = row[titleIdx]
		}
		if contentIdx < len(row) {
			rec.Content = row[contentIdx]
		}
		records = append(records, rec)
	}

	return records, nil
}
