// Package checkpoint persists pipeline results to an append-only CSV file.
// The output file doubles as the resumption checkpoint: the set of row_ids
// already present is exactly the set of rows a restarted run may skip.
package checkpoint

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// Header is the column layout of the classification output file.
var Header = []string{"row_id", "label", "confidence", "reason", "title", "content"}

// Row is one committed classification.
type Row struct {
	RowID      int64
	Label      string
	Confidence float64
	Reason     string
	Title      string
	Content    string
}

// Fields returns the row in Header order.
func (r Row) Fields() []string {
	return []string{
		strconv.FormatInt(r.RowID, 10),
		r.Label,
		strconv.FormatFloat(r.Confidence, 'g', -1, 64),
		r.Reason,
		r.Title,
		r.Content,
	}
}

// ParseRow parses a CSV record back into a Row. It reports false for
// anything short of a complete, well-typed record.
func ParseRow(fields []string) (Row, bool) {
	if len(fields) != len(Header) {
		return Row{}, false
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Row{}, false
	}
	conf, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return Row{}, false
	}
	return Row{
		RowID:      id,
		Label:      fields[1],
		Confidence: conf,
		Reason:     fields[3],
		Title:      fields[4],
		Content:    fields[5],
	}, true
}

// LoadDoneIDs scans an output file and returns the row_ids of every fully
// written row. The file's own header determines the expected column count
// and the row_id position, so the classification and translation layouts
// share this scan. Malformed rows (short, unparseable, or a half-written
// tail from a crash) are skipped individually; a missing file yields an
// empty set. Only the id set is retained, not the rows.
func LoadDoneIDs(path string) (map[int64]struct{}, error) {
	done := make(map[int64]struct{})

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return done, nil
		}
		return nil, fmt.Errorf("opening checkpoint: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	width := len(Header)
	idCol := 0
	first := true
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// Damaged line; resumption must survive it.
			continue
		}
		if first {
			first = false
			if idx := indexOf(fields, "row_id"); idx >= 0 {
				width = len(fields)
				idCol = idx
				continue
			}
		}
		if len(fields) != width || idCol >= len(fields) {
			continue
		}
		if id, err := strconv.ParseInt(fields[idCol], 10, 64); err == nil {
			done[id] = struct{}{}
		}
	}

	return done, nil
}

func indexOf(fields []string, name string) int {
	for i, f := range fields {
		if f == name {
			return i
		}
	}
	return -1
}

// ReadAll returns every valid classification row in the output file,
// skipping malformed lines the same way LoadDoneIDs does.
func ReadAll(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows []Row
	first := true
	for {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}
		if first {
			first = false
			if len(fields) > 0 && fields[0] == Header[0] {
				continue
			}
		}
		if row, ok := ParseRow(fields); ok {
			rows = append(rows, row)
		}
	}

	return rows, nil
}

// Writer appends rows to an output file. Appends are mutex-serialized so
// concurrent completions cannot interleave a row or write the header twice.
type Writer struct {
	mu     sync.Mutex
	f      *os.File
	w      *csv.Writer
	header []string
}

// NewWriter opens the output file for appending, creating it (and its
// directory) if needed. The header is written only when the file is empty.
func NewWriter(path string, header []string) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening output: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat output: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("writing header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flushing header: %w", err)
		}
	}

	return &Writer{f: f, w: w, header: header}, nil
}

// NewResultWriter opens a writer with the classification layout.
func NewResultWriter(path string) (*Writer, error) {
	return NewWriter(path, Header)
}

// Append durably commits one record. Each record is flushed before
// returning so a crash never loses an acknowledged commit.
func (w *Writer) Append(fields []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(fields) != len(w.header) {
		return fmt.Errorf("expected %d fields, got %d", len(w.header), len(fields))
	}
	if err := w.w.Write(fields); err != nil {
		return fmt.Errorf("appending record: %w", err)
	}
	w.w.Flush()
	if err := w.w.Error(); err != nil {
		return fmt.Errorf("flushing record: %w", err)
	}
	return nil
}

// AppendRow commits one classification row.
func (w *Writer) AppendRow(row Row) error {
	return w.Append(row.Fields())
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.w.Flush()
	return w.f.Close()
}

// WriteConfidentSubset recomputes the confident subset from the complete
// output file and fully rewrites it to subsetPath. It returns the number of
// rows written. The subset is a derived view: label is "elderly" and
// confidence meets the threshold.
func WriteConfidentSubset(outputPath, subsetPath string, threshold float64) (int, error) {
	rows, err := ReadAll(outputPath)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(subsetPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("creating subset file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		return 0, fmt.Errorf("writing subset header: %w", err)
	}

	count := 0
	for _, row := range rows {
		if row.Label != "elderly" || row.Confidence < threshold {
			continue
		}
		if err := w.Write(row.Fields()); err != nil {
			return count, fmt.Errorf("writing subset row %d: %w", row.RowID, err)
		}
		count++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return count, fmt.Errorf("flushing subset: %w", err)
	}
	return count, nil
}
