package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/scrapbox-rag/internal/core/domain"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driven"
	"github.com/custodia-labs/scrapbox-rag/internal/core/ports/driving"
	"github.com/custodia-labs/scrapbox-rag/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// Default ingestion parameters.
const (
	DefaultBatchSize   = 10
	DefaultConcurrency = 5

	// maxFinishedRuns bounds how many completed runs Status remembers.
	maxFinishedRuns = 100
)

// IngestOptions tunes batching and encode concurrency.
type IngestOptions struct {
	// BatchSize is the number of chunks encoded and written per bulk call.
	BatchSize int

	// Concurrency caps in-flight encode calls across a batch.
	Concurrency int
}

// IngestService chunks projects, encodes chunks with bounded concurrency
// and writes them to the index one batch at a time.
type IngestService struct {
	index   driven.SparseIndex
	encoder driven.SparseEncoder
	chunker driven.Chunker
	metrics driven.Metrics
	opts    IngestOptions

	// Background runs share this lifetime; Close cancels it.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Status tracking
	mu       sync.RWMutex
	runs     map[string]*driving.IngestStatus
	finished []string

	newID func() string
	now   func() time.Time
}

// NewIngestService creates a new ingestion service.
// metrics is optional - if nil, progress is only logged.
func NewIngestService(
	index driven.SparseIndex,
	encoder driven.SparseEncoder,
	chunker driven.Chunker,
	metrics driven.Metrics,
	opts IngestOptions,
) *IngestService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &IngestService{
		index:   index,
		encoder: encoder,
		chunker: chunker,
		metrics: metrics,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		runs:    make(map[string]*driving.IngestStatus),
		newID:   uuid.NewString,
		now:     time.Now,
	}
}

// Ingest runs a full ingestion and returns its report. Only index creation
// failure, invalid input and cancellation are returned as errors; chunks
// that fail to encode and batches that fail to write are counted in the
// report instead.
func (s *IngestService) Ingest(ctx context.Context, project *domain.Project) (*domain.IngestReport, error) {
	return s.run(ctx, s.newID(), project)
}

// IngestAsync starts an ingestion in the background and returns its run ID.
// The run is bound to the service lifetime, not to the caller.
func (s *IngestService) IngestAsync(project *domain.Project) string {
	runID := s.newID()
	s.setStatus(&driving.IngestStatus{
		IngestReport: domain.IngestReport{RunID: runID, Project: projectName(project), StartedAt: s.now()},
		Running:      true,
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if _, err := s.run(s.ctx, runID, project); err != nil {
			logger.Error("Ingestion run %s failed: %v", runID, err)
		}
	}()
	return runID
}

// Status returns a copy of the state of a run started by this service.
func (s *IngestService) Status(runID string) (*driving.IngestStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status, ok := s.runs[runID]
	if !ok {
		return nil, false
	}
	cp := *status
	return &cp, true
}

// Close cancels background runs and waits for them to stop.
func (s *IngestService) Close() error {
	s.cancel()
	s.wg.Wait()
	return nil
}

//nolint:gocyclo // Orchestration function with necessary sequential steps
func (s *IngestService) run(ctx context.Context, runID string, project *domain.Project) (*domain.IngestReport, error) {
	report := &domain.IngestReport{
		RunID:     runID,
		Project:   projectName(project),
		StartedAt: s.now(),
	}

	fail := func(err error) (*domain.IngestReport, error) {
		report.FinishedAt = s.now()
		s.finish(report, err)
		s.metrics.RunFinished(false, report.Duration())
		return report, err
	}

	// 1. Validate input
	if project == nil {
		return fail(fmt.Errorf("%w: nil project", domain.ErrInvalidInput))
	}
	if err := project.Validate(); err != nil {
		return fail(err)
	}

	// 2. Ensure the index exists; failure aborts the run
	if err := s.index.EnsureIndex(ctx); err != nil {
		return fail(fmt.Errorf("ensure index: %w", err))
	}

	// 3. Chunk every page
	chunks := s.chunker.ChunkProject(project)
	report.TotalChunks = len(chunks)
	s.update(report)

	logger.Info("Ingesting project %s: %d pages, %d chunks (run %s)",
		project.Name, len(project.Pages), len(chunks), runID)

	// 4. Encode and write batch by batch
	for start := 0; start < len(chunks); start += s.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		end := min(start+s.opts.BatchSize, len(chunks))
		ready, failed := s.encodeBatch(ctx, chunks[start:end])
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		report.Failed += failed

		if len(ready) > 0 {
			n, err := s.index.BulkIndex(ctx, ready)
			report.Indexed += n
			if err != nil {
				report.BatchErrors++
				logger.Error("Bulk index failed for chunks %d-%d: %v", start, end-1, err)
				s.metrics.BatchIndexed(len(ready), false)
			} else {
				s.metrics.BatchIndexed(n, true)
			}
		}

		report.Processed = end
		logger.Info("Progress: %d/%d", report.Processed, report.TotalChunks)
		s.metrics.Progress(report.Project, report.Processed, report.TotalChunks)
		s.update(report)
	}

	// 5. Finish
	report.FinishedAt = s.now()
	s.finish(report, nil)
	s.metrics.RunFinished(true, report.Duration())

	logger.Info("Ingestion complete: %d indexed, %d skipped, %d failed batches in %s",
		report.Indexed, report.Failed, report.BatchErrors, report.Duration().Round(time.Millisecond))
	return report, nil
}

// encodeBatch encodes every chunk of the batch through the bounded pool and
// waits for all of them to settle. It returns the chunks that got a
// non-empty vector, in batch order, and the number skipped.
func (s *IngestService) encodeBatch(ctx context.Context, batch []domain.Chunk) ([]domain.Chunk, int) {
	vectors := make([]domain.SparseVector, len(batch))
	errs := make([]error, len(batch))

	var g errgroup.Group
	g.SetLimit(s.opts.Concurrency)
	for i := range batch {
		g.Go(func() error {
			started := s.now()
			vectors[i], errs[i] = s.encoder.Encode(ctx, batch[i].Text)
			s.metrics.ChunkEncoded(errs[i] == nil && len(vectors[i]) > 0, s.now().Sub(started))
			return nil
		})
	}
	_ = g.Wait()

	ready := make([]domain.Chunk, 0, len(batch))
	failed := 0
	for i := range batch {
		switch {
		case errs[i] != nil:
			if ctx.Err() == nil {
				logger.Warn("Failed to encode chunk %s: %v", batch[i].ID, errs[i])
			}
			failed++
		case len(vectors[i]) == 0:
			logger.Warn("Empty sparse vector for chunk %s, skipping", batch[i].ID)
			failed++
		default:
			c := batch[i]
			c.SparseVector = vectors[i]
			ready = append(ready, c)
		}
	}
	return ready, failed
}

func (s *IngestService) update(report *domain.IngestReport) {
	s.setStatus(&driving.IngestStatus{IngestReport: *report, Running: true})
}

func (s *IngestService) finish(report *domain.IngestReport, err error) {
	status := &driving.IngestStatus{IngestReport: *report}
	if err != nil {
		status.Error = err.Error()
	}
	s.setStatus(status)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, report.RunID)
	for len(s.finished) > maxFinishedRuns {
		delete(s.runs, s.finished[0])
		s.finished = s.finished[1:]
	}
}

func (s *IngestService) setStatus(status *driving.IngestStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[status.RunID] = status
}

// Runs lists the known run IDs, most recently started first.
func (s *IngestService) Runs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.runs))
	for id := range s.runs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return s.runs[ids[i]].StartedAt.After(s.runs[ids[j]].StartedAt)
	})
	return ids
}

func projectName(p *domain.Project) string {
	if p == nil {
		return ""
	}
	return p.Name
}
