package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mkoessler/eldersift/internal/checkpoint"
	"github.com/mkoessler/eldersift/internal/classify"
	"github.com/mkoessler/eldersift/internal/retry"
)

// mockClassifier implements Classifier and counts API-path invocations.
type mockClassifier struct {
	result *classify.Result
	err    error
	calls  int
}

func (m *mockClassifier) Classify(_ context.Context, _ string) (*classify.Result, error) {
	m.calls++
	return m.result, m.err
}

func writeInput(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "input.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing input: %v", err)
	}
	return path
}

var fastRetry = retry.Config{MaxAttempts: 5, BaseDelay: time.Millisecond}

const mixedInput = "title,content\n" +
	"My grandmother 82,She lives alone and forgets things\n" +
	"car trouble,my car broke down on the highway\n" +
	"nursing home visit,We visited the nursing home yesterday\n"

func newTestPipeline(t *testing.T, mock *mockClassifier, input string) (*Pipeline, string) {
	t.Helper()
	dir := t.TempDir()
	inputPath := writeInput(t, dir, input)
	outputPath := filepath.Join(dir, "results.csv")
	p := New(mock, Options{
		InputPath:  inputPath,
		OutputPath: outputPath,
		Threshold:  0.6,
		Retry:      fastRetry,
	})
	return p, outputPath
}

func TestRunCommitsEveryRowExactlyOnce(t *testing.T) {
	mock := &mockClassifier{result: &classify.Result{Label: "elderly", Confidence: 0.92, Reason: "age"}}
	p, outputPath := newTestPipeline(t, mock, mixedInput)

	r, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Total != 3 {
		t.Errorf("expected 3 total, got %d", r.Total)
	}
	if r.Heuristic != 1 || r.Classified != 2 {
		t.Errorf("expected 1 heuristic and 2 classified, got %d/%d", r.Heuristic, r.Classified)
	}

	rows, _ := checkpoint.ReadAll(outputPath)
	if len(rows) != 3 {
		t.Fatalf("expected 3 output rows, got %d", len(rows))
	}
	seen := make(map[int64]bool)
	for _, row := range rows {
		if seen[row.RowID] {
			t.Errorf("duplicate row_id %d", row.RowID)
		}
		seen[row.RowID] = true
	}
	for id := int64(0); id < 3; id++ {
		if !seen[id] {
			t.Errorf("missing row_id %d", id)
		}
	}
}

func TestPrefilterNegativeSkipsAPICall(t *testing.T) {
	mock := &mockClassifier{result: &classify.Result{Label: "elderly", Confidence: 0.9}}
	input := "title,content\ncar trouble,my car broke down\nwork stress,deadline pressure again\n"
	p, outputPath := newTestPipeline(t, mock, input)

	r, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if mock.calls != 0 {
		t.Errorf("expected zero API calls, got %d", mock.calls)
	}
	if r.Heuristic != 2 {
		t.Errorf("expected 2 heuristic rows, got %d", r.Heuristic)
	}

	rows, _ := checkpoint.ReadAll(outputPath)
	for _, row := range rows {
		if row.Label != "not_elderly" || row.Confidence != 0.3 || row.Reason != "keyword prefilter negative" {
			t.Errorf("unexpected heuristic row: %+v", row)
		}
	}
}

func TestRunIsIdempotent(t *testing.T) {
	mock := &mockClassifier{result: &classify.Result{Label: "elderly", Confidence: 0.92}}
	p, outputPath := newTestPipeline(t, mock, mixedInput)

	if _, err := p.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstData, _ := os.ReadFile(outputPath)
	callsAfterFirst := mock.calls

	r, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if r.AlreadyDone != 3 {
		t.Errorf("expected all 3 rows already done, got %d", r.AlreadyDone)
	}
	if mock.calls != callsAfterFirst {
		t.Errorf("expected no new API calls, got %d extra", mock.calls-callsAfterFirst)
	}

	secondData, _ := os.ReadFile(outputPath)
	if string(firstData) != string(secondData) {
		t.Error("expected output file unchanged after idempotent rerun")
	}
}

func TestResumptionProcessesOnlyRemainingRows(t *testing.T) {
	mock := &mockClassifier{result: &classify.Result{Label: "elderly", Confidence: 0.9}}
	p, outputPath := newTestPipeline(t, mock, mixedInput)

	// Simulate an interrupted earlier run that committed row 0 only.
	w, _ := checkpoint.NewResultWriter(outputPath)
	w.AppendRow(checkpoint.Row{RowID: 0, Label: "elderly", Confidence: 0.7, Reason: "earlier run"})
	w.Close()

	r, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.AlreadyDone != 1 {
		t.Errorf("expected 1 already done, got %d", r.AlreadyDone)
	}

	rows, _ := checkpoint.ReadAll(outputPath)
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows after resumption, got %d", len(rows))
	}
	// Row 0 keeps the earlier run's verdict.
	for _, row := range rows {
		if row.RowID == 0 && row.Reason != "earlier run" {
			t.Error("expected committed row not to be reclassified")
		}
	}
}

func TestRetryExhaustionCommitsUncertain(t *testing.T) {
	mock := &mockClassifier{err: errors.New("connection refused")}
	input := "title,content\nMy grandmother 82,She lives alone\n"
	p, outputPath := newTestPipeline(t, mock, input)

	r, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("expected run to survive per-row failure, got %v", err)
	}
	if r.Exhausted != 1 {
		t.Errorf("expected 1 exhausted row, got %d", r.Exhausted)
	}
	if mock.calls != 5 {
		t.Errorf("expected 5 attempts, got %d", mock.calls)
	}

	rows, _ := checkpoint.ReadAll(outputPath)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0].Label != "uncertain" || rows[0].Confidence != 0.0 || rows[0].Reason != "API failed" {
		t.Errorf("unexpected degraded row: %+v", rows[0])
	}
}

func TestConfidentSubsetWritten(t *testing.T) {
	mock := &mockClassifier{result: &classify.Result{Label: "elderly", Confidence: 0.92, Reason: "age"}}
	p, _ := newTestPipeline(t, mock, mixedInput)

	r, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Confident != 2 {
		t.Errorf("expected 2 confident rows, got %d", r.Confident)
	}

	rows, err := checkpoint.ReadAll(p.SubsetPath())
	if err != nil {
		t.Fatalf("reading subset: %v", err)
	}
	for _, row := range rows {
		if row.Label != "elderly" || row.Confidence < 0.6 {
			t.Errorf("row does not belong in confident subset: %+v", row)
		}
	}
}

func TestMissingInputColumnsAbortsRun(t *testing.T) {
	mock := &mockClassifier{}
	input := "headline,body\nA,B\n"
	p, outputPath := newTestPipeline(t, mock, input)

	if _, err := p.Run(context.Background()); err == nil {
		t.Fatal("expected schema error")
	}
	if _, err := os.Stat(outputPath); !errors.Is(err, os.ErrNotExist) {
		t.Error("expected no output produced on fatal pre-run error")
	}
}

func TestDeriveSubsetPath(t *testing.T) {
	if got := DeriveSubsetPath("results.csv"); got != "results_confident.csv" {
		t.Errorf("unexpected subset path %q", got)
	}
	if got := DeriveSubsetPath("results"); got != "results_confident" {
		t.Errorf("unexpected subset path %q", got)
	}
}
