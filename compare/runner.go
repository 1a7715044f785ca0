// CLAUDE:SUMMARY Comparison orchestrator: measures both sessions, walks the scroll plan, captures frame pairs in parallel, diffs and analyzes, folds the summary.
// Package compare drives a full viewport-by-viewport comparison run across
// two browser sessions: geometry measurement, scroll scheduling, synchronized
// frame capture, pixel diffing, optional vision analysis, and result
// aggregation.
//
// Only a geometry-measurement failure aborts a run. Every later condition —
// a failed capture, a rejected diff, an unavailable analysis — is folded into
// the affected record and the run continues, so a single bad offset never
// loses the rest of the comparison.
package compare

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/viewdiff/audit"
	"github.com/hazyhaar/viewdiff/idgen"
	"github.com/hazyhaar/viewdiff/imagediff"
	"github.com/hazyhaar/viewdiff/scrollplan"
	"github.com/hazyhaar/viewdiff/vision"
)

// Session is one ready, already-navigated browser session. The runner owns
// both sessions exclusively for the run's duration and drives each one
// strictly sequentially; only operations on different sessions overlap.
type Session interface {
	URL() string
	ScrollTo(ctx context.Context, x, y int) error
	ScrollPosition(ctx context.Context) (x, y int, err error)
	Geometry(ctx context.Context, settle time.Duration) (scrollplan.Geometry, error)
	CaptureViewport(ctx context.Context) (image.Image, error)
	DismissInterstitial(ctx context.Context)
}

// Differ compares two equally-sized bitmaps.
type Differ interface {
	Diff(a, b image.Image) (*imagediff.Result, error)
}

// Runner executes comparison runs. Safe to reuse across runs; per-run state
// lives on the stack of Run.
type Runner struct {
	cfg      Config
	differ   Differ
	analyzer vision.Analyzer
	auditLog *audit.Log
	logger   *slog.Logger
	newRunID idgen.Generator

	framesCaptured  atomic.Int64
	captureErrors   atomic.Int64
	analysisFailed  atomic.Int64
	regionsDetected atomic.Int64
}

// Stats are point-in-time counters across all runs of this Runner.
type Stats struct {
	FramesCaptured   int64 `json:"frames_captured"`
	CaptureErrors    int64 `json:"capture_errors"`
	AnalysisFailures int64 `json:"analysis_failures"`
	RegionsDetected  int64 `json:"regions_detected"`
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithDiffer replaces the default diff engine.
func WithDiffer(d Differ) RunnerOption {
	return func(r *Runner) { r.differ = d }
}

// WithAnalyzer enables vision analysis of each frame pair.
func WithAnalyzer(a vision.Analyzer) RunnerOption {
	return func(r *Runner) { r.analyzer = a }
}

// WithAuditLog enables run-event auditing.
func WithAuditLog(l *audit.Log) RunnerOption {
	return func(r *Runner) { r.auditLog = l }
}

// WithLogger overrides the default slog logger.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// WithRunIDGenerator sets a custom run ID generator.
func WithRunIDGenerator(gen idgen.Generator) RunnerOption {
	return func(r *Runner) { r.newRunID = gen }
}

// NewRunner creates a Runner for the given configuration.
func NewRunner(cfg Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		cfg:      cfg,
		logger:   slog.Default(),
		newRunID: idgen.Prefixed("run_", idgen.Default),
	}
	for _, o := range opts {
		o(r)
	}
	if r.differ == nil {
		r.differ = imagediff.New(imagediff.Options{
			PixelThreshold: cfg.DiffPixelThreshold,
			MinRegionArea:  cfg.MinRegionAreaPx,
			Logger:         r.logger,
		})
	}
	return r
}

// Stats returns the current counters.
func (r *Runner) Stats() Stats {
	return Stats{
		FramesCaptured:   r.framesCaptured.Load(),
		CaptureErrors:    r.captureErrors.Load(),
		AnalysisFailures: r.analysisFailed.Load(),
		RegionsDetected:  r.regionsDetected.Load(),
	}
}

// Run executes one full comparison across both sessions.
//
// State machine: reset+measure both sessions (fatal on failure), compute the
// scroll plan, then per offset: guard against geometry drift, capture both
// sides in parallel, diff and analyze the pair, append the record. Records
// are appended only by this goroutine; sub-task results are joined first.
func (r *Runner) Run(ctx context.Context, sessA, sessB Session) (*RunResult, error) {
	if err := r.cfg.Validate(); err != nil {
		return nil, err
	}

	runID := r.newRunID()
	log := r.logger.With("run_id", runID)
	started := time.Now()

	r.audit(ctx, audit.Event{RunID: runID, Type: "run_started", Offset: -1, Success: true,
		Detail: fmt.Sprintf(`{"url_a":%q,"url_b":%q}`, sessA.URL(), sessB.URL())})

	geomA, geomB, err := r.measureBoth(ctx, sessA, sessB)
	if err != nil {
		r.audit(ctx, audit.Event{RunID: runID, Type: "run_finished", Offset: -1, Success: false, Detail: err.Error()})
		return nil, fmt.Errorf("%w: %v", ErrGeometry, err)
	}
	r.audit(ctx, audit.Event{RunID: runID, Type: "geometry_measured", Offset: -1, Success: true,
		Detail: fmt.Sprintf(`{"height_a":%d,"height_b":%d}`, geomA.ContentHeight, geomB.ContentHeight)})

	plan := scrollplan.Plan(geomA.ContentHeight, geomB.ContentHeight, r.cfg.ViewportHeight)
	log.Info("compare: plan computed",
		"height_a", geomA.ContentHeight, "height_b", geomB.ContentHeight,
		"viewport_height", r.cfg.ViewportHeight, "frames", len(plan))

	// One dismissal attempt per session before the first capture. A stuck
	// interstitial degrades accuracy but must not abort the run.
	sessA.DismissInterstitial(ctx)
	sessB.DismissInterstitial(ctx)

	minHeight := geomA.ContentHeight
	if geomB.ContentHeight < minHeight {
		minHeight = geomB.ContentHeight
	}

	records := make([]*Record, 0, len(plan))
	stopped := false

	for _, offset := range plan {
		// Cooperative cancellation boundary.
		if ctx.Err() != nil {
			log.Warn("compare: run cancelled", "offset", offset)
			stopped = true
			break
		}

		// Geometry drift guard: an offset at or past the shorter page's
		// measured end means content changed after measurement. Stop and
		// finalize with what we have instead of capturing degenerate frames.
		if offset >= minHeight+r.cfg.GuardMargin {
			log.Warn("compare: offset beyond measured content, stopping",
				"offset", offset, "min_height", minHeight, "guard_margin", r.cfg.GuardMargin)
			stopped = true
			break
		}

		frameA, frameB := r.captureBoth(ctx, sessA, sessB, offset)

		// A cancellation that surfaced as capture errors is not a real
		// per-offset failure; finalize without appending a partial record.
		if ctx.Err() != nil {
			stopped = true
			break
		}

		rec := r.buildRecord(ctx, len(records)+1, offset, frameA, frameB, log)
		// Diff-failed records keep their bitmaps: they have no composite, so
		// the raw frames are the only visual evidence for that offset.
		if !r.cfg.KeepFrames && rec.Status != StatusDiffFailed {
			frameA.Image = nil
			frameB.Image = nil
		}
		records = append(records, rec)

		r.audit(ctx, audit.Event{RunID: runID, Type: "frame_captured", Offset: offset,
			Success: rec.Status != StatusCaptureFailed, Detail: string(rec.Status)})
	}

	result := &RunResult{
		RunID:   runID,
		Records: records,
		Summary: r.summarize(sessA.URL(), sessB.URL(), geomA, geomB, len(plan), records, started, stopped),
	}

	r.audit(ctx, audit.Event{RunID: runID, Type: "run_finished", Offset: -1, Success: true,
		Detail: fmt.Sprintf(`{"frames":%d,"complete":%t}`, len(records), result.Summary.Complete)})
	log.Info("compare: run finished",
		"frames", len(records), "planned", len(plan), "complete", result.Summary.Complete)
	return result, nil
}

// measureBoth runs the geometry probe on both sessions in parallel. Either
// failure is fatal: there is nothing to plan against.
func (r *Runner) measureBoth(ctx context.Context, sessA, sessB Session) (scrollplan.Geometry, scrollplan.Geometry, error) {
	type out struct {
		geom scrollplan.Geometry
		err  error
	}
	probe := func(sess Session, ch chan<- out) {
		mctx, cancel := context.WithTimeout(ctx, r.cfg.Timeouts.Measure)
		defer cancel()
		g, err := sess.Geometry(mctx, r.cfg.ResetSettle)
		if err == nil {
			err = g.Validate()
		}
		if err != nil {
			err = fmt.Errorf("%s: %w", sess.URL(), err)
		}
		ch <- out{g, err}
	}

	chA := make(chan out, 1)
	chB := make(chan out, 1)
	go probe(sessA, chA)
	go probe(sessB, chB)
	resA, resB := <-chA, <-chB

	if resA.err != nil {
		return scrollplan.Geometry{}, scrollplan.Geometry{}, resA.err
	}
	if resB.err != nil {
		return scrollplan.Geometry{}, scrollplan.Geometry{}, resB.err
	}
	return resA.geom, resB.geom, nil
}

// captureBoth drives both sessions to the same offset in parallel and joins
// before returning: the diff step needs both frames simultaneously.
func (r *Runner) captureBoth(ctx context.Context, sessA, sessB Session, offset int) (*Frame, *Frame) {
	chA := make(chan *Frame, 1)
	chB := make(chan *Frame, 1)
	go func() { chA <- r.captureOne(ctx, sessA, offset) }()
	go func() { chB <- r.captureOne(ctx, sessB, offset) }()
	return <-chA, <-chB
}

// captureOne scrolls one session to offset, waits for settle, verifies the
// landed position, and captures the viewport. Failures are recorded on the
// frame, never raised: one bad frame must not lose the rest of the run.
func (r *Runner) captureOne(ctx context.Context, sess Session, offset int) *Frame {
	frame := &Frame{RequestedOffset: offset, ActualOffset: offset}

	cctx, cancel := context.WithTimeout(ctx, r.cfg.Timeouts.Capture)
	defer cancel()

	if err := sess.ScrollTo(cctx, 0, offset); err != nil {
		frame.Error = err.Error()
		r.captureErrors.Add(1)
		return frame
	}
	if err := sleepCtx(cctx, r.cfg.SettleTime); err != nil {
		frame.Error = err.Error()
		r.captureErrors.Add(1)
		return frame
	}

	if _, actualY, err := sess.ScrollPosition(cctx); err != nil {
		// Position readback is diagnostics only; degrade rather than fail.
		r.logger.Warn("compare: scroll position readback failed",
			"url", sess.URL(), "offset", offset, "error", err)
	} else {
		frame.ActualOffset = actualY
		if drift := actualY - offset; drift > r.cfg.DriftTolerance || drift < -r.cfg.DriftTolerance {
			frame.DriftWarning = true
			r.logger.Warn("compare: scroll drift",
				"url", sess.URL(), "requested", offset, "actual", actualY)
		}
	}

	img, err := sess.CaptureViewport(cctx)
	if err != nil {
		frame.Error = err.Error()
		r.captureErrors.Add(1)
		return frame
	}

	b := img.Bounds()
	frame.Width, frame.Height = b.Dx(), b.Dy()
	frame.Image = img
	r.framesCaptured.Add(1)
	return frame
}

// buildRecord assembles one ComparisonRecord from a captured frame pair.
// Diff and analysis run concurrently; both are joined before the record is
// returned to the single control goroutine.
func (r *Runner) buildRecord(ctx context.Context, index, offset int, frameA, frameB *Frame, log *slog.Logger) *Record {
	rec := &Record{
		Index:        index,
		ScrollOffset: offset,
		FrameA:       frameA,
		FrameB:       frameB,
	}

	if !frameA.OK() || !frameB.OK() {
		rec.Status = StatusCaptureFailed
		log.Warn("compare: capture failed for offset",
			"offset", offset, "error_a", frameA.Error, "error_b", frameB.Error)
		return rec
	}

	// Analysis is independent of diffing; run it alongside.
	var analysisCh chan analysisResult
	if r.analyzer != nil {
		analysisCh = make(chan analysisResult, 1)
		go r.analyzePair(ctx, frameA.Image, frameB.Image, analysisCh)
	}

	res, err := r.differ.Diff(frameA.Image, frameB.Image)
	if err != nil {
		rec.Status = StatusDiffFailed
		rec.DiffError = err.Error()
		log.Warn("compare: diff failed", "offset", offset, "error", err)
	} else {
		rec.Status = StatusOK
		score := res.Score
		rec.Score = &score
		rec.Regions = res.Regions
		rec.Composite = res.Composite
		r.regionsDetected.Add(int64(len(res.Regions)))
	}

	if analysisCh != nil {
		out := <-analysisCh
		if out.err != nil {
			r.analysisFailed.Add(1)
			log.Debug("compare: analysis unavailable", "offset", offset, "error", out.err)
		} else {
			rec.AnalysisText = out.text
			rec.AnalysisOK = true
		}
	}
	return rec
}

type analysisResult struct {
	text string
	err  error
}

func (r *Runner) analyzePair(ctx context.Context, imgA, imgB image.Image, ch chan<- analysisResult) {
	actx, cancel := context.WithTimeout(ctx, r.cfg.Timeouts.Analyze)
	defer cancel()

	pngA, errA := encodePNG(imgA)
	pngB, errB := encodePNG(imgB)
	if errA != nil || errB != nil {
		ch <- analysisResult{err: fmt.Errorf("encode frames: %v / %v", errA, errB)}
		return
	}

	text, err := r.analyzer.Analyze(actx, pngA, pngB)
	ch <- analysisResult{text: text, err: err}
}

// summarize folds all records into the run summary.
func (r *Runner) summarize(urlA, urlB string, geomA, geomB scrollplan.Geometry, planned int, records []*Record, started time.Time, stopped bool) Summary {
	s := Summary{
		URLA:          urlA,
		URLB:          urlB,
		ViewportLabel: r.cfg.ViewportLabel,
		Width:         r.cfg.ViewportWidth,
		Height:        r.cfg.ViewportHeight,
		HeightA:       geomA.ContentHeight,
		HeightB:       geomB.ContentHeight,
		PlannedFrames: planned,
		FrameCount:    len(records),
		StartedAt:     started,
		FinishedAt:    time.Now(),
	}

	var scoreSum float64
	var scored int
	for _, rec := range records {
		s.TotalRegions += len(rec.Regions)
		if rec.Status == StatusCaptureFailed {
			s.CaptureFailures++
		}
		if rec.Score != nil {
			scoreSum += *rec.Score
			scored++
		}
	}
	if scored > 0 {
		mean := scoreSum / float64(scored)
		s.MeanSimilarity = &mean
	}
	s.Complete = !stopped && s.CaptureFailures == 0 && len(records) == planned
	return s
}

func (r *Runner) audit(ctx context.Context, ev audit.Event) {
	if r.auditLog != nil {
		r.auditLog.Event(ctx, ev)
	}
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// sleepCtx sleeps for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
