package pipeline

import (
	"context"
	"sync/atomic"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/docrecon/internal/model"
)

// Job is one document to run through the pipeline. Load is called inside the
// worker so conversion and parsing share the concurrency bound. Run, when
// set, replaces Load and the batch's ProcessFunc for artifacts that are not
// documents.
type Job struct {
	Artifact model.Artifact
	Load     func(ctx context.Context) (model.Document, error)
	Run      func(ctx context.Context) (*Result, error)
}

// BatchResult is the outcome of one Job. Exactly one of Result and Err is set.
type BatchResult struct {
	Artifact model.Artifact
	Result   *Result
	Err      error
}

// ProcessFunc runs one loaded document.
type ProcessFunc func(ctx context.Context, art model.Artifact, doc model.Document) (*Result, error)

// RunBatch runs p.Process over jobs. See RunBatchWith.
func (p *Pipeline) RunBatch(ctx context.Context, jobs []Job, concurrency int) []BatchResult {
	return RunBatchWith(ctx, jobs, concurrency, p.Process)
}

// RunBatchWith processes jobs with at most concurrency in flight. Results are
// returned in job order. A failing or panicking job is reported in its own
// BatchResult and never stops the others.
func RunBatchWith(ctx context.Context, jobs []Job, concurrency int, process ProcessFunc) []BatchResult {
	results := make([]BatchResult, len(jobs))
	if len(jobs) == 0 {
		return results
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("pipeline: processing batch",
		zap.Int("documents", len(jobs)),
		zap.Int("concurrency", concurrency),
	)

	var g errgroup.Group
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, job := range jobs {
		results[i].Artifact = job.Artifact
		g.Go(func() error {
			log := zap.L().With(zap.String("artifact_id", job.Artifact.ID))

			res, err := runJob(ctx, job, process)
			if err != nil {
				failed.Add(1)
				log.Error("pipeline: document failed", zap.Error(err))
				results[i].Err = err
				return nil // don't abort batch on individual failure
			}
			succeeded.Add(1)
			results[i].Result = res
			return nil
		})
	}
	_ = g.Wait()

	zap.L().Info("pipeline: batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results
}

func runJob(ctx context.Context, job Job, process ProcessFunc) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = nil
			err = eris.Errorf("pipeline: panic processing %s: %v", job.Artifact.ID, r)
		}
	}()

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrapf(err, "pipeline: skipped %s", job.Artifact.ID)
	}
	if job.Run != nil {
		res, err = job.Run(ctx)
		if err != nil {
			return nil, err
		}
		if res == nil {
			res = &Result{Artifact: job.Artifact}
		}
		return res, nil
	}
	if job.Load == nil {
		return nil, eris.Errorf("pipeline: job %s has no loader", job.Artifact.ID)
	}

	doc, err := job.Load(ctx)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: load %s", job.Artifact.SourcePath)
	}
	res, err = process(ctx, job.Artifact, doc)
	if err != nil {
		return nil, err
	}
	return res, nil
}
