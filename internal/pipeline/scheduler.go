package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driven"
	"github.com/viseme-labs/talksync/internal/logger"
)

// Scheduler groups extracted segments into batches and dispatches them
// to the inference engine. Dispatches run concurrently up to the
// in-flight cap; acquiring a slot blocks, which backpressures the whole
// pipeline through the bounded stage channels.
type Scheduler struct {
	engine   driven.InferenceEngine
	mode     domain.Mode
	cfg      domain.PipelineConfig
	jobID    string
	stats    *Stats
	limiter  *rate.Limiter
	batchMax int
}

// NewScheduler creates a scheduler for one job.
func NewScheduler(engine driven.InferenceEngine, mode domain.Mode, cfg domain.PipelineConfig, jobID string, stats *Stats) *Scheduler {
	batchMax := cfg.MaxBatchSize
	if m := engine.MaxBatchSize(); m > 0 && m < batchMax {
		batchMax = m
	}

	var limiter *rate.Limiter
	if cfg.SubmitRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.SubmitRate), 1)
	}

	return &Scheduler{
		engine:   engine,
		mode:     mode,
		cfg:      cfg,
		jobID:    jobID,
		stats:    stats,
		limiter:  limiter,
		batchMax: batchMax,
	}
}

// pendingItem is one extracted segment waiting for a batch slot.
type pendingItem struct {
	seg    domain.Segment
	tensor domain.FeatureTensor
}

// Run consumes extracted segments until the input closes, then flushes
// the remainder and waits for all dispatched batches to resolve.
//
// prodCtx stops intake and new dispatches; flightCtx governs work
// already dispatched. Keeping them separate lets offline cancellation
// drain in-flight batches while online cancellation abandons them.
func (s *Scheduler) Run(prodCtx, flightCtx context.Context, in <-chan extracted, out chan<- domain.Frame) error {
	tokens := make(chan struct{}, s.cfg.MaxInFlight)
	slots := make(chan struct{}, s.cfg.EngineConcurrency)

	var wg sync.WaitGroup
	defer wg.Wait()

	var (
		pending    []pendingItem
		flushTimer *time.Timer
		flushC     <-chan time.Time
	)

	stopTimer := func() {
		if flushTimer != nil {
			flushTimer.Stop()
			flushTimer = nil
			flushC = nil
		}
	}
	defer stopTimer()

	flush := func() error {
		stopTimer()
		if len(pending) == 0 {
			return nil
		}

		batch := domain.FeatureBatch{
			JobID: s.jobID,
			Items: make([]domain.BatchItem, len(pending)),
		}
		segs := make([]domain.Segment, len(pending))
		for i, p := range pending {
			batch.Items[i] = domain.BatchItem{Index: p.seg.Index, Tensor: p.tensor, Visual: p.seg.Visual}
			segs[i] = p.seg
		}
		pending = nil

		// Blocking slot acquisition is the hard in-flight cap.
		select {
		case <-prodCtx.Done():
			return prodCtx.Err()
		case tokens <- struct{}{}:
		}

		s.stats.addBatch()
		s.stats.enterFlight()
		logger.Debug("Dispatching batch of %d (segments %v)", batch.Size(), batch.Indices())

		wg.Add(1)
		go s.dispatch(flightCtx, &wg, batch, segs, out, tokens, slots)
		return nil
	}

	for {
		select {
		case <-prodCtx.Done():
			return prodCtx.Err()

		case <-flushC:
			flushTimer = nil
			flushC = nil
			if err := flush(); err != nil {
				return err
			}

		case item, ok := <-in:
			if !ok {
				// Input exhausted: flush the partial batch in both modes.
				return flush()
			}

			if item.err != nil {
				marker := markerFrame(item.seg, "extract", item.err)
				select {
				case <-prodCtx.Done():
					return prodCtx.Err()
				case out <- marker:
				}
				continue
			}

			pending = append(pending, pendingItem{seg: item.seg, tensor: item.tensor})
			if s.mode == domain.ModeOnline && flushTimer == nil {
				flushTimer = time.NewTimer(s.cfg.MaxWait)
				flushC = flushTimer.C
			}
			if len(pending) >= s.batchMax {
				if err := flush(); err != nil {
					return err
				}
			}
		}
	}
}

// dispatch runs one batch through the engine and emits its frames.
func (s *Scheduler) dispatch(
	ctx context.Context,
	wg *sync.WaitGroup,
	batch domain.FeatureBatch,
	segs []domain.Segment,
	out chan<- domain.Frame,
	tokens, slots chan struct{},
) {
	defer func() {
		<-tokens
		s.stats.leaveFlight()
		wg.Done()
	}()

	select {
	case <-ctx.Done():
		return
	case slots <- struct{}{}:
	}
	defer func() { <-slots }()

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}
	}

	results, err := s.inferWithRetry(ctx, batch)
	if err != nil {
		if ctx.Err() != nil {
			// Abandoned: frames for this batch are dropped, not marked.
			return
		}
		logger.Warn("Batch of %d failed for good: %v", batch.Size(), err)
		for _, seg := range segs {
			if !s.emit(ctx, out, markerFrame(seg, "infer", err)) {
				return
			}
		}
		return
	}

	for _, seg := range segs {
		of, ok := results[seg.Index]
		var frame domain.Frame
		if ok {
			frame = resultFrame(seg, of)
		} else {
			missing := &domain.EngineError{Op: "infer", Err: errors.New("segment missing from response")}
			frame = markerFrame(seg, "infer", missing)
		}
		if !s.emit(ctx, out, frame) {
			return
		}
	}
}

// inferWithRetry calls the engine, retrying transient failures with
// exponential backoff up to the configured attempt budget.
func (s *Scheduler) inferWithRetry(ctx context.Context, batch domain.FeatureBatch) (map[int64]domain.OutputFrame, error) {
	backoff := s.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 50 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		results, err := s.engine.Infer(ctx, batch)
		if err == nil {
			return results, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !domain.IsTransientEngineError(err) {
			return nil, err
		}
		if attempt >= s.cfg.MaxRetries {
			return nil, fmt.Errorf("%w: %d attempts: %v", domain.ErrEngineExhausted, attempt+1, err)
		}

		s.stats.addRetry()
		logger.Debug("Retrying batch %v in %s (attempt %d/%d): %v",
			batch.Indices(), backoff, attempt+1, s.cfg.MaxRetries, err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}
}

// emit sends one frame downstream, honouring cancellation.
func (s *Scheduler) emit(ctx context.Context, out chan<- domain.Frame, f domain.Frame) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- f:
		return true
	}
}

// resultFrame builds the output frame for a rendered segment.
func resultFrame(seg domain.Segment, of domain.OutputFrame) domain.Frame {
	return domain.Frame{
		Index:    seg.Index,
		PTS:      seg.Start,
		Duration: seg.Duration,
		Visual:   of,
		Audio:    seg.OwnedAudio(),
	}
}

// markerFrame builds the error marker occupying a failed segment's
// position. The audio window rides along so the substitution policy can
// still mux it.
func markerFrame(seg domain.Segment, stage string, err error) domain.Frame {
	return domain.Frame{
		Index:    seg.Index,
		PTS:      seg.Start,
		Duration: seg.Duration,
		Audio:    seg.OwnedAudio(),
		Err:      &domain.SegmentError{Index: seg.Index, Stage: stage, Err: err},
	}
}
