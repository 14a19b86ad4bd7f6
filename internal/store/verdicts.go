package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/mkoessler/eldersift/internal/checkpoint"
)

// importBatchSize bounds how many rows go into one insert transaction.
const importBatchSize = 500

// Verdict is one classified record as stored in the database.
type Verdict struct {
	RowID      int64
	Label      string
	Confidence float64
	Reason     string
	Title      string
	Content    string
	ImportedAt string
}

// Stats summarizes the verdicts table for the status command and the server.
type Stats struct {
	Total       int
	ByLabel     map[string]int
	Confident   int
	LastImport  string
	LastSource  string
}

// ImportCSV replaces the verdicts table with the rows of a classification
// output file. The previous import is cleared first so the table always
// mirrors exactly one run.
func (s *Store) ImportCSV(path string) (int, error) {
	rows, err := checkpoint.ReadAll(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}

	tx, err := s.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin import: %w", err)
	}
	if _, err := tx.Exec("DELETE FROM verdicts"); err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("clearing verdicts: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit clear: %w", err)
	}

	for start := 0; start < len(rows); start += importBatchSize {
		end := start + importBatchSize
		if end > len(rows) {
			end = len(rows)
		}
		if err := s.insertBatch(rows[start:end]); err != nil {
			return start, err
		}
	}

	if _, err := s.conn.Exec(
		"INSERT INTO imports (source_path, row_count) VALUES (?, ?)",
		path, len(rows),
	); err != nil {
		return len(rows), fmt.Errorf("recording import: %w", err)
	}
	return len(rows), nil
}

func (s *Store) insertBatch(rows []checkpoint.Row) error {
	tx, err := s.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO verdicts (row_id, label, confidence, reason, title, content)
		VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.Exec(r.RowID, r.Label, r.Confidence, r.Reason, r.Title, r.Content); err != nil {
			tx.Rollback()
			return fmt.Errorf("inserting row %d: %w", r.RowID, err)
		}
	}
	return tx.Commit()
}

// GetVerdict returns a single verdict by row id, or nil if absent.
func (s *Store) GetVerdict(rowID int64) (*Verdict, error) {
	row := s.conn.QueryRow(
		`SELECT row_id, label, confidence, reason, title, content, imported_at
		FROM verdicts WHERE row_id = ?`, rowID,
	)
	var v Verdict
	err := row.Scan(&v.RowID, &v.Label, &v.Confidence, &v.Reason, &v.Title, &v.Content, &v.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// TopConfident returns the highest-confidence verdicts for a label,
// ordered by confidence descending.
func (s *Store) TopConfident(label string, limit int) ([]Verdict, error) {
	rows, err := s.conn.Query(
		`SELECT row_id, label, confidence, reason, title, content, imported_at
		FROM verdicts WHERE label = ?
		ORDER BY confidence DESC, row_id ASC LIMIT ?`, label, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanVerdicts(rows)
}

// GetStats returns aggregate counts over the verdicts table.
func (s *Store) GetStats(threshold float64) (*Stats, error) {
	stats := &Stats{ByLabel: make(map[string]int)}

	if err := s.conn.QueryRow("SELECT COUNT(*) FROM verdicts").Scan(&stats.Total); err != nil {
		return nil, err
	}

	rows, err := s.conn.Query("SELECT label, COUNT(*) FROM verdicts GROUP BY label")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var label string
		var count int
		if err := rows.Scan(&label, &count); err != nil {
			return nil, err
		}
		stats.ByLabel[label] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := s.conn.QueryRow(
		"SELECT COUNT(*) FROM verdicts WHERE label = 'elderly' AND confidence >= ?",
		threshold,
	).Scan(&stats.Confident); err != nil {
		return nil, err
	}

	err = s.conn.QueryRow(
		"SELECT source_path, imported_at FROM imports ORDER BY id DESC LIMIT 1",
	).Scan(&stats.LastSource, &stats.LastImport)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	return stats, nil
}

// VerifyIssue describes one integrity problem found by Verify.
type VerifyIssue struct {
	RowID   int64
	Problem string
}

// Verify checks the imported verdicts for integrity: every label in the
// known set, every confidence within [0,1]. Duplicate row ids cannot occur
// because row_id is the primary key, so the check is over values only.
func (s *Store) Verify() ([]VerifyIssue, error) {
	var issues []VerifyIssue

	rows, err := s.conn.Query(
		`SELECT row_id, label FROM verdicts
		WHERE label NOT IN ('elderly', 'not_elderly', 'uncertain')`,
	)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var id int64
		var label string
		if err := rows.Scan(&id, &label); err != nil {
			rows.Close()
			return nil, err
		}
		issues = append(issues, VerifyIssue{RowID: id, Problem: fmt.Sprintf("unknown label %q", label)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.conn.Query(
		"SELECT row_id, confidence FROM verdicts WHERE confidence < 0 OR confidence > 1",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var conf float64
		if err := rows.Scan(&id, &conf); err != nil {
			return nil, err
		}
		issues = append(issues, VerifyIssue{RowID: id, Problem: fmt.Sprintf("confidence %.2f out of range", conf)})
	}
	return issues, rows.Err()
}

// FormatIssues renders verify issues one per line for CLI output.
func FormatIssues(issues []VerifyIssue) string {
	var b strings.Builder
	for _, issue := range issues {
		fmt.Fprintf(&b, "row %d: %s\n", issue.RowID, issue.Problem)
	}
	return b.String()
}

func scanVerdicts(rows *sql.Rows) ([]Verdict, error) {
	var verdicts []Verdict
	for rows.Next() {
		var v Verdict
		if err := rows.Scan(&v.RowID, &v.Label, &v.Confidence, &v.Reason, &v.Title, &v.Content, &v.ImportedAt); err != nil {
			return nil, err
		}
		verdicts = append(verdicts, v)
	}
	return verdicts, rows.Err()
}
