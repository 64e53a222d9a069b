package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/viseme-labs/talksync/internal/core/domain"
	"github.com/viseme-labs/talksync/internal/core/ports/driven"
	"github.com/viseme-labs/talksync/internal/logger"
)

// Pipeline wires the five stages for one job and runs them to
// completion. It does not own the source, engine or sink lifecycles;
// the caller opens and closes those.
type Pipeline struct {
	source    driven.MediaSource
	engine    driven.InferenceEngine
	sink      driven.FrameSink
	extractor Extractor

	jobID string
	mode  domain.Mode
	cfg   domain.PipelineConfig
	stats *Stats

	mu            sync.Mutex
	started       bool
	cancelled     bool
	cancelProduce context.CancelFunc
}

// Option configures a pipeline.
type Option func(*Pipeline)

// WithExtractor overrides the default spectral extractor.
func WithExtractor(ex Extractor) Option {
	return func(p *Pipeline) {
		if ex != nil {
			p.extractor = ex
		}
	}
}

// New creates a pipeline for one job.
func New(jobID string, mode domain.Mode, cfg domain.PipelineConfig,
	source driven.MediaSource, engine driven.InferenceEngine, sink driven.FrameSink,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		source: source,
		engine: engine,
		sink:   sink,
		jobID:  jobID,
		mode:   mode,
		cfg:    cfg,
		stats:  NewStats(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Stats returns a snapshot of the live pipeline counters.
func (p *Pipeline) Stats() domain.PipelineStats {
	return p.stats.Snapshot()
}

// CancelJob requests cancellation. Online mode abandons in-flight
// engine work; offline mode lets it drain so the partial output is
// preserved. Safe to call at any time, from any goroutine.
func (p *Pipeline) CancelJob() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = true
	if p.cancelProduce != nil {
		p.cancelProduce()
	}
}

// firstErr keeps the first fatal error reported by any stage.
type firstErr struct {
	mu  sync.Mutex
	err error
}

// set records err if no error is held yet. Returns true when err won.
func (f *firstErr) set(err error) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false
	}
	f.err = err
	return true
}

// get returns the held error, if any.
func (f *firstErr) get() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Run executes the pipeline until the input is exhausted, a fatal error
// aborts it, or it is cancelled. Must be called once. Returns nil on
// completion, context.Canceled on cancellation, the fatal error
// otherwise. Per-segment failures do not surface here; they are counted
// and written as markers.
//
//nolint:gocyclo // Stage wiring with necessary lifecycle plumbing
func (p *Pipeline) Run(ctx context.Context) error {
	if err := p.cfg.Validate(); err != nil {
		return err
	}

	chunker, err := NewChunker(p.source, p.cfg, p.stats)
	if err != nil {
		return err
	}

	props := p.source.Properties()
	if p.extractor == nil {
		p.extractor = NewSpectralExtractor(props.SampleRate)
	}

	header := domain.StreamHeader{
		JobID:      p.jobID,
		SampleRate: props.SampleRate,
		FrameRate:  props.FrameRate,
	}
	if ref, refErr := p.source.ReferenceFrame(ctx, 0); refErr == nil && ref != nil {
		header.Width = ref.Width
		header.Height = ref.Height
	}

	// Producing stages stop on the first cancel. Dispatched engine work
	// runs under its own scope so offline cancellation can drain it.
	prodCtx, cancelProduce := context.WithCancel(ctx)
	defer cancelProduce()

	flightParent := ctx
	if p.mode == domain.ModeOffline {
		flightParent = context.WithoutCancel(ctx)
	}
	flightCtx, cancelFlight := context.WithCancel(flightParent)
	defer cancelFlight()

	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return errors.New("pipeline already ran")
	}
	p.started = true
	p.cancelProduce = cancelProduce
	wasCancelled := p.cancelled
	p.mu.Unlock()
	if wasCancelled {
		cancelProduce()
	}

	fail := &firstErr{}
	abort := func(err error) {
		if fail.set(err) {
			logger.Warn("Job %s aborting: %v", p.jobID, err)
			cancelProduce()
			cancelFlight()
		}
	}

	// On cancellation, bound the offline drain so a hung engine call
	// cannot park the job forever.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-done:
		case <-prodCtx.Done():
			if fail.get() != nil {
				return
			}
			if p.mode == domain.ModeOnline {
				cancelFlight()
				return
			}
			drain := time.AfterFunc(p.cfg.StallTimeout, cancelFlight)
			defer drain.Stop()
			<-done
		}
	}()

	sched := NewScheduler(p.engine, p.mode, p.cfg, p.jobID, p.stats)
	reorder := NewReorder(p.cfg, p.stats, func() bool {
		return prodCtx.Err() != nil && fail.get() == nil
	})
	asm := NewAssembler(p.sink, header, p.mode, p.cfg, p.stats)

	segs := make(chan domain.Segment, p.cfg.QueueDepth)
	exts := make(chan extracted, p.cfg.QueueDepth)
	completions := make(chan domain.Frame, p.cfg.QueueDepth)
	ordered := make(chan domain.Frame, p.cfg.QueueDepth)

	benign := func(err error) bool {
		return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
	}

	var wg sync.WaitGroup
	wg.Add(5)

	go func() {
		defer wg.Done()
		defer close(segs)
		if err := chunker.Run(prodCtx, segs); !benign(err) {
			abort(err)
		}
	}()

	go func() {
		defer wg.Done()
		defer close(exts)
		if err := runExtractor(prodCtx, p.extractor, segs, exts); !benign(err) {
			abort(err)
		}
	}()

	go func() {
		defer wg.Done()
		defer close(completions)
		if err := sched.Run(prodCtx, flightCtx, exts, completions); !benign(err) {
			abort(err)
		}
	}()

	go func() {
		defer wg.Done()
		defer close(ordered)
		if err := reorder.Run(flightCtx, completions, ordered); !benign(err) {
			abort(err)
		}
	}()

	go func() {
		defer wg.Done()
		if err := asm.Run(flightCtx, ordered); !benign(err) {
			abort(err)
		}
	}()

	wg.Wait()

	if err := fail.get(); err != nil {
		return err
	}
	p.mu.Lock()
	cancelled := p.cancelled
	p.mu.Unlock()
	if cancelled || ctx.Err() != nil {
		return context.Canceled
	}

	logger.Debug("Job %s pipeline complete: %d frames, %d segment errors",
		p.jobID, p.stats.FramesEmitted(), p.stats.SegmentErrors())
	return nil
}
