// Package pipeline drives the classification run: load records, skip
// committed rows, prefilter, classify with retry, append each outcome, and
// derive the confident subset.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkoessler/eldersift/internal/checkpoint"
	"github.com/mkoessler/eldersift/internal/classify"
	"github.com/mkoessler/eldersift/internal/dataset"
	"github.com/mkoessler/eldersift/internal/prefilter"
	"github.com/mkoessler/eldersift/internal/retry"
)

// heuristicReason marks rows the prefilter settled without an API call. The
// fixed 0.3 confidence flags them as unreliable downstream.
const (
	heuristicReason     = "keyword prefilter negative"
	heuristicConfidence = 0.3
	exhaustedReason     = "API failed"
)

// Classifier is the slice of the classifier the pipeline needs.
type Classifier interface {
	Classify(ctx context.Context, text string) (*classify.Result, error)
}

// Options configures a run.
type Options struct {
	InputPath  string
	OutputPath string
	// SubsetPath is where the confident subset goes; empty derives it from
	// OutputPath.
	SubsetPath string
	Threshold  float64
	Retry      retry.Config
}

// Result holds the counters of a completed run.
type Result struct {
	Total       int
	AlreadyDone int
	Heuristic   int
	Classified  int
	Exhausted   int
	Confident   int
}

// Pipeline orchestrates one resumable classification run.
type Pipeline struct {
	classifier Classifier
	opts       Options
}

// New creates a pipeline. The caller is responsible for verifying the
// credential before constructing one; by the time Run starts, only per-row
// failures remain recoverable.
func New(classifier Classifier, opts Options) *Pipeline {
	if opts.Threshold == 0 {
		opts.Threshold = 0.6
	}
	return &Pipeline{classifier: classifier, opts: opts}
}

// SubsetPath returns the effective confident-subset path.
func (p *Pipeline) SubsetPath() string {
	if p.opts.SubsetPath != "" {
		return p.opts.SubsetPath
	}
	return DeriveSubsetPath(p.opts.OutputPath)
}

// DeriveSubsetPath maps an output path to its confident-subset sibling,
// e.g. results.csv -> results_confident.csv.
func DeriveSubsetPath(outputPath string) string {
	if strings.HasSuffix(outputPath, ".csv") {
		return strings.TrimSuffix(outputPath, ".csv") + "_confident.csv"
	}
	return outputPath + "_confident"
}

// Run executes the full pass. Every input row ends with exactly one output
// row: committed rows are skipped outright, prefilter negatives get the
// fixed low-confidence verdict, and retry exhaustion degrades to uncertain
// instead of aborting the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	records, err := dataset.Load(p.opts.InputPath)
	if err != nil {
		return nil, err
	}

	done, err := checkpoint.LoadDoneIDs(p.opts.OutputPath)
	if err != nil {
		return nil, err
	}

	w, err := checkpoint.NewResultWriter(p.opts.OutputPath)
	if err != nil {
		return nil, err
	}
	defer w.Close()

	r := &Result{Total: len(records)}
	if len(done) > 0 {
		slog.Info("resuming from checkpoint", "already_done", len(done))
	}

	for _, rec := range records {
		if _, ok := done[rec.RowID]; ok {
			r.AlreadyDone++
			continue
		}

		row, err := p.processRecord(ctx, rec, r)
		if err != nil {
			return r, err
		}

		if err := w.AppendRow(row); err != nil {
			return r, fmt.Errorf("committing row %d: %w", rec.RowID, err)
		}
	}

	subsetPath := p.SubsetPath()
	confident, err := checkpoint.WriteConfidentSubset(p.opts.OutputPath, subsetPath, p.opts.Threshold)
	if err != nil {
		return r, fmt.Errorf("writing confident subset: %w", err)
	}
	r.Confident = confident

	slog.Info("run complete",
		"total", r.Total,
		"already_done", r.AlreadyDone,
		"heuristic", r.Heuristic,
		"classified", r.Classified,
		"exhausted", r.Exhausted,
		"confident", r.Confident,
	)
	return r, nil
}

// processRecord produces the row to commit for one record. Only context
// cancellation propagates as an error; API failure degrades to an uncertain
// verdict after the retry budget is spent.
func (p *Pipeline) processRecord(ctx context.Context, rec dataset.Record, r *Result) (checkpoint.Row, error) {
	text := rec.Text()

	if !prefilter.MaybeRelevant(text) {
		r.Heuristic++
		return checkpoint.Row{
			RowID:      rec.RowID,
			Label:      classify.LabelNotElderly,
			Confidence: heuristicConfidence,
			Reason:     heuristicReason,
			Title:      rec.Title,
			Content:    rec.Content,
		}, nil
	}

	result, err := retry.Do(ctx, p.opts.Retry, func() (*classify.Result, error) {
		return p.classifier.Classify(ctx, text)
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if !errors.As(err, &exhausted) {
			return checkpoint.Row{}, err
		}
		slog.Warn("retries exhausted, committing uncertain verdict",
			"row_id", rec.RowID, "error", exhausted.Err)
		r.Exhausted++
		return checkpoint.Row{
			RowID:      rec.RowID,
			Label:      classify.LabelUncertain,
			Confidence: 0.0,
			Reason:     exhaustedReason,
			Title:      rec.Title,
			Content:    rec.Content,
		}, nil
	}

	r.Classified++
	return checkpoint.Row{
		RowID:      rec.RowID,
		Label:      result.Label,
		Confidence: result.Confidence,
		Reason:     result.Reason,
		Title:      rec.Title,
		Content:    rec.Content,
	}, nil
}
