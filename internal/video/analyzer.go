// Package video describes batches of video frames with a vision-language
// model and memorizes each description as a document.
package video

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/HarrySoteriou/gallery/internal/llm"
	"github.com/HarrySoteriou/gallery/internal/logger"
)

const (
	DefaultBatchSize   = 5
	DefaultConcurrency = 2
	DefaultPrompt      = "Describe what happens in these video frames in detail."
)

// Describer turns a set of images into text.
type Describer interface {
	Describe(ctx context.Context, prompt string, images []llm.Image) (string, error)
}

// Memorizer stores chunks as one document.
type Memorizer interface {
	Memorize(ctx context.Context, chunks []string) error
}

type Config struct {
	BatchSize   int
	Concurrency int
	Prompt      string
}

// Result is the outcome for one batch. Err is set when describing or
// memorizing that batch failed.
type Result struct {
	Batch       int
	Start, End  string
	Description string
	Err         error
}

type Analyzer struct {
	desc Describer
	mem  Memorizer
	cfg  Config
	log  logger.Logger
}

func NewAnalyzer(desc Describer, mem Memorizer, cfg Config, log logger.Logger) (*Analyzer, error) {
	if desc == nil || mem == nil {
		return nil, errors.New("video: describer and memorizer are required")
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}
	return &Analyzer{desc: desc, mem: mem, cfg: cfg, log: logger.OrDefault(log)}, nil
}

// Segment formats a batch description the way it is memorized.
func Segment(b Batch, description string) string {
	return fmt.Sprintf("Video segment [%s - %s]: %s", FormatTimestamp(b.Start), FormatTimestamp(b.End), description)
}

// Analyze describes and memorizes every batch of frames, at most
// Concurrency batches at a time. Results are in batch order. It returns an
// error only when ctx is cancelled.
func (a *Analyzer) Analyze(ctx context.Context, frames []Frame) ([]Result, error) {
	batches := Split(frames, a.cfg.BatchSize)
	results := make([]Result, len(batches))

	var g errgroup.Group
	g.SetLimit(a.cfg.Concurrency)
	for i, b := range batches {
		results[i] = Result{Batch: b.Index, Start: FormatTimestamp(b.Start), End: FormatTimestamp(b.End)}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			desc, err := a.process(ctx, b)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				a.log.Error("Failed to analyze video segment", "batch", b.Index, "error", err)
				results[i].Err = err
				return nil
			}
			results[i].Description = desc
			a.log.Debug("Memorized video segment", "batch", b.Index, "start", results[i].Start, "end", results[i].End)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, fmt.Errorf("analyze video: %w", err)
	}
	return results, nil
}

func (a *Analyzer) process(ctx context.Context, b Batch) (string, error) {
	images := make([]llm.Image, len(b.Frames))
	for i, f := range b.Frames {
		images[i] = llm.Image{MIMEType: f.MIMEType, Data: f.Data}
	}
	desc, err := a.desc.Describe(ctx, a.cfg.Prompt, images)
	if err != nil {
		return "", fmt.Errorf("describe batch %d: %w", b.Index, err)
	}
	if err := a.mem.Memorize(ctx, []string{Segment(b, desc)}); err != nil {
		return "", fmt.Errorf("memorize batch %d: %w", b.Index, err)
	}
	return desc, nil
}
