package larch

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"
)

// workItem holds one file's content for a parallel analysis worker.
type workItem struct {
	path    string
	content []byte
}

// checkFilesParallel analyzes files with a three-phase pipeline:
//
//	Phase A (serial):  read file contents.
//	Phase B (parallel): parse and analyze via worker pool.
//	Phase C (serial):  merge results, sort by path, apply baseline.
//
// tree-sitter parsers are not goroutine-safe, so each worker parses with its
// own parser (CheckSource creates one per call).
func (e *Engine) checkFilesParallel(ctx context.Context, paths []string) (*Report, error) {
	// ---- Phase A: serial read ----
	items := make([]workItem, 0, len(paths))
	for _, path := range paths {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
		items = append(items, workItem{path: path, content: content})
	}
	if len(items) == 0 {
		return &Report{}, nil
	}

	// ---- Phase B: parallel analysis ----
	numWorkers := e.workers
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	if numWorkers > len(items) {
		numWorkers = len(items)
	}

	workCh := make(chan workItem, len(items))
	for _, item := range items {
		workCh <- item
	}
	close(workCh)

	type result struct {
		res FileResult
		err error
	}
	resultCh := make(chan result, len(items))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range workCh {
				res, err := e.CheckSource(ctx, item.path, item.content)
				resultCh <- result{res: res, err: err}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	// ---- Phase C: serial merge ----
	report := &Report{}
	var errs []error
	for r := range resultCh {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		report.Results = append(report.Results, r.res)
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("analysis had %d error(s): %w", len(errs), errs[0])
	}

	report.sort()
	if err := e.applyBaseline(report); err != nil {
		return nil, err
	}
	e.log.Debug("parallel analysis complete",
		zap.Int("files", len(report.Results)),
		zap.Int("workers", numWorkers))
	return report, nil
}
