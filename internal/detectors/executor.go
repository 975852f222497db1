package detectors

// Executor: fans the seven analyzers out over one shared Artifacts
// value. Concurrency is capped at GOMAXPROCS, each analyzer gets its
// own deadline, and a panicking or overrunning analyzer degrades to a
// neutral report instead of failing the request.

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/truthsnap/forensics-engine/internal/config"
	"github.com/truthsnap/forensics-engine/pkg/models"
)

// DetectorTimeout bounds a single analyzer. OCR and the spectral
// checks dominate; everything else finishes in milliseconds.
const DetectorTimeout = 30 * time.Second

// Results carries every analyzer's output for one request. Fields are
// written exactly once, before Run returns.
type Results struct {
	Heuristic models.DetectorReport
	Metadata  models.ValidatorReport
	Visual    VWResult
	Crypto    CWResult
	Frequency models.DetectorReport
	FaceSwap  models.FaceSwapReport
	Intrinsic models.DetectorReport
}

// AllFailed reports whether every analyzer degraded to a terminal
// error, which forces an inconclusive verdict downstream.
func (r *Results) AllFailed() bool {
	return r.Heuristic.TerminalError &&
		r.Metadata.TerminalError &&
		r.Visual.Report.TerminalError &&
		r.Crypto.Report.TerminalError &&
		r.Frequency.TerminalError &&
		r.FaceSwap.TerminalError &&
		r.Intrinsic.TerminalError
}

// Executor owns the analyzer collaborators. Safe for concurrent use.
type Executor struct {
	validator *Validator
	visual    *VisualWatermark
	crypto    *CryptoWatermark
	faceswap  *FaceSwap

	timeout  time.Duration
	parallel int64
}

func NewExecutor(cfg *config.Config, ocr TextExtractor, finder FaceFinder, probers ...WatermarkProber) *Executor {
	return &Executor{
		validator: NewValidator(cfg),
		visual:    NewVisualWatermark(ocr),
		crypto:    NewCryptoWatermark(probers...),
		faceswap:  NewFaceSwap(finder),
		timeout:   DetectorTimeout,
		parallel:  int64(runtime.GOMAXPROCS(0)),
	}
}

// Run executes all analyzers and blocks until each has produced a
// report. Cancellation of ctx degrades the still-running analyzers to
// neutral reports; Run itself never returns an error.
func (e *Executor) Run(ctx context.Context, art *Artifacts) *Results {
	res := &Results{}
	sem := semaphore.NewWeighted(e.parallel)
	g, gctx := errgroup.WithContext(ctx)

	launch := func(task func(context.Context)) {
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				// Context died while queued; the task's bounded runner
				// fills in the neutral report.
				task(gctx)
				return nil
			}
			defer sem.Release(1)
			task(gctx)
			return nil
		})
	}

	launch(func(ctx context.Context) {
		res.Heuristic = runBounded(ctx, e.timeout, NameHeuristic,
			func(ctx context.Context) models.DetectorReport {
				return AnalyzeHeuristics(ctx, art)
			},
			func(reason string) models.DetectorReport {
				return models.NeutralReport(NameHeuristic, reason)
			})
	})
	launch(func(ctx context.Context) {
		res.Metadata = runBounded(ctx, e.timeout, NameMetadata,
			func(ctx context.Context) models.ValidatorReport {
				return e.validator.Validate(ctx, art)
			},
			neutralValidator)
	})
	launch(func(ctx context.Context) {
		res.Visual = runBounded(ctx, e.timeout, NameVisualWatermark,
			func(ctx context.Context) VWResult {
				return e.visual.Detect(ctx, art)
			},
			func(reason string) VWResult {
				return VWResult{Report: models.NeutralReport(NameVisualWatermark, reason)}
			})
	})
	launch(func(ctx context.Context) {
		res.Crypto = runBounded(ctx, e.timeout, NameCryptoWatermark,
			func(ctx context.Context) CWResult {
				return e.crypto.Probe(ctx, art)
			},
			func(reason string) CWResult {
				return CWResult{Report: models.NeutralReport(NameCryptoWatermark, reason)}
			})
	})
	launch(func(ctx context.Context) {
		res.Frequency = runBounded(ctx, e.timeout, NameFrequency,
			func(ctx context.Context) models.DetectorReport {
				return AnalyzeFrequency(ctx, art)
			},
			func(reason string) models.DetectorReport {
				return models.NeutralReport(NameFrequency, reason)
			})
	})
	launch(func(ctx context.Context) {
		res.FaceSwap = runBounded(ctx, e.timeout, NameFaceSwap,
			func(ctx context.Context) models.FaceSwapReport {
				return e.faceswap.Analyze(ctx, art)
			},
			func(reason string) models.FaceSwapReport {
				return models.FaceSwapReport{DetectorReport: models.NeutralReport(NameFaceSwap, reason)}
			})
	})
	launch(func(ctx context.Context) {
		res.Intrinsic = runBounded(ctx, e.timeout, NameIntrinsic,
			func(ctx context.Context) models.DetectorReport {
				return AnalyzeIntrinsic(ctx, art)
			},
			func(reason string) models.DetectorReport {
				return models.NeutralReport(NameIntrinsic, reason)
			})
	})

	g.Wait()
	return res
}

func neutralValidator(reason string) models.ValidatorReport {
	return models.ValidatorReport{
		DetectorReport: models.NeutralReport(NameMetadata, reason),
		FraudScore:     50,
		RiskLevel:      models.RiskMedium,
	}
}

// runBounded runs one analyzer under its own deadline, converting
// panics and overruns into the neutral fallback. A late result from an
// abandoned analyzer lands in the buffered channel and is dropped.
func runBounded[T any](ctx context.Context, timeout time.Duration, name string, fn func(context.Context) T, neutral func(reason string) T) T {
	dctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out := make(chan T, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[Engine] detector %s panicked: %v", name, r)
				out <- neutral("detector_panic")
			}
		}()
		out <- fn(dctx)
	}()

	select {
	case v := <-out:
		return v
	case <-dctx.Done():
		reason := "detector_timeout"
		if ctx.Err() != nil {
			reason = fmt.Sprintf("cancelled: %v", ctx.Err())
		}
		log.Printf("[Engine] detector %s abandoned: %s", name, reason)
		return neutral(reason)
	}
}
