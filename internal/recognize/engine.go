// Package recognize is the mock recognition engine for scanned FORM-A claim
// forms. It does not read the document: it checks the file exists, scores a
// plausible confidence from the media type and size, synthesizes a field set
// and degrades it the way a poor scan would.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/fratlas/internal/extract"
	"github.com/ppiankov/fratlas/internal/model"
	"github.com/ppiankov/fratlas/internal/sim"
)

// ErrNotFound is returned when the file to recognize does not exist
var ErrNotFound = errors.New("file not found for recognition")

const (
	// MinConfidence and MaxConfidence bound the simulated score
	MinConfidence = 15
	MaxConfidence = 98

	// LowConfidence and MediumConfidence are the degradation thresholds
	LowConfidence    = 50
	MediumConfidence = 75

	// ReviewedConfidence is assigned once a human has corrected a result
	ReviewedConfidence = 100

	unclearDistrict   = "[UNCLEAR]"
	illegibleSurvey   = "[ILLEGIBLE]"
	unclearNote       = "\n[Some text unclear due to image quality]"
	illegibleDigit    = "?"
	digitDropRate     = 0.3
	confidenceNoise   = 10.0
	largeFileKiB      = 1000
	smallFileKiB      = 100
	defaultMinDelay   = 1500 * time.Millisecond
	defaultMaxDelay   = 3500 * time.Millisecond
	reprocessMimeType = "application/pdf"
)

// Extractor recovers entities from raw text for the back-fill pass
type Extractor interface {
	Extract(ctx context.Context, text string) (model.Entities, error)
}

// StatFunc reports file metadata; os.Stat in production
type StatFunc func(name string) (fs.FileInfo, error)

// Options configures an Engine. Zero values fall back to production defaults.
type Options struct {
	Rand      sim.Rand
	Clock     sim.Clock
	Extractor Extractor
	Stat      StatFunc
	Logger    *zap.Logger
	MinDelay  time.Duration
	MaxDelay  time.Duration
}

// Engine produces recognition results for scanned claim forms
type Engine struct {
	rnd       sim.Rand
	clock     sim.Clock
	extractor Extractor
	stat      StatFunc
	logger    *zap.Logger
	minDelay  time.Duration
	maxDelay  time.Duration
}

// NewEngine creates an engine from opts
func NewEngine(opts Options) *Engine {
	e := &Engine{
		rnd:       opts.Rand,
		clock:     opts.Clock,
		extractor: opts.Extractor,
		stat:      opts.Stat,
		logger:    opts.Logger,
		minDelay:  opts.MinDelay,
		maxDelay:  opts.MaxDelay,
	}
	if e.rnd == nil {
		e.rnd = sim.NewRand(0)
	}
	if e.clock == nil {
		e.clock = sim.SystemClock{}
	}
	if e.extractor == nil {
		e.extractor = extract.NewEntityExtractor(e.clock, extract.DefaultDelay)
	}
	if e.stat == nil {
		e.stat = os.Stat
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.minDelay <= 0 && e.maxDelay <= 0 {
		e.minDelay, e.maxDelay = defaultMinDelay, defaultMaxDelay
	}
	if e.maxDelay < e.minDelay {
		e.maxDelay = e.minDelay
	}
	return e
}

// Process recognizes the file at path. The declared mimeType and the file size
// shape the confidence score. A missing file fails with ErrNotFound and no
// partial result.
func (e *Engine) Process(ctx context.Context, path, mimeType string) (*model.RecognitionResult, error) {
	// 1. Emulate processing cost
	if err := e.clock.Sleep(ctx, e.processingDelay()); err != nil {
		return nil, fmt.Errorf("recognize %s: %w", path, err)
	}

	// 2. The file must still be there
	info, err := e.stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	// 3. Score
	raw := e.confidence(mimeType, info.Size())

	// 4-5. Fields and transcript
	result := synthesize(e.rnd, newClaimID(e.clock.Now()), raw)

	// 6. Degrade by confidence
	e.degrade(&result)

	e.logger.Info("recognized claim form",
		zap.String("path", path),
		zap.String("mime", mimeType),
		zap.Int64("bytes", info.Size()),
		zap.Int("confidence", result.Confidence))

	// 7. Best-effort back-fill
	e.backfill(ctx, &result)

	return &result, nil
}

// Reprocess runs recognition again and lays reviewer corrections over the
// fresh result. Reviewed output is ground truth, so confidence becomes 100.
func (e *Engine) Reprocess(ctx context.Context, path string, corrections model.Corrections) (*model.RecognitionResult, error) {
	result, err := e.Process(ctx, path, reprocessMimeType)
	if err != nil {
		return nil, err
	}

	corrections.Apply(result)
	result.Confidence = ReviewedConfidence

	return result, nil
}

func (e *Engine) processingDelay() time.Duration {
	span := e.maxDelay - e.minDelay
	if span <= 0 {
		return e.minDelay
	}
	return e.minDelay + time.Duration(e.rnd.Float64()*float64(span))
}

// baseConfidence scores the media type: documents read better than photos
func baseConfidence(mimeType string) float64 {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case mt == "application/pdf":
		return 90
	case strings.HasPrefix(mt, "image/"):
		return 75
	default:
		return 85
	}
}

// sizeAdjustment rewards high-resolution scans and penalizes tiny ones
func sizeAdjustment(size int64) float64 {
	kib := float64(size) / 1024
	switch {
	case kib > largeFileKiB:
		return 5
	case kib < smallFileKiB:
		return -10
	default:
		return 0
	}
}

// confidence returns the unrounded score clamped to [MinConfidence, MaxConfidence]
func (e *Engine) confidence(mimeType string, size int64) float64 {
	c := baseConfidence(mimeType) + sizeAdjustment(size)
	c += e.rnd.Float64()*2*confidenceNoise - confidenceNoise
	return math.Max(MinConfidence, math.Min(MaxConfidence, c))
}

func (e *Engine) degrade(r *model.RecognitionResult) {
	switch {
	case r.Confidence < LowConfidence:
		if r.District != "" {
			r.District = unclearDistrict
		}
		r.SurveyNumber = illegibleSurvey
		r.RawText = e.blurDigits(r.RawText)
	case r.Confidence < MediumConfidence:
		r.RawText += unclearNote
	}
}

// blurDigits replaces each digit with "?" at digitDropRate
func (e *Engine) blurDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, c := range s {
		if c >= '0' && c <= '9' && e.rnd.Float64() < digitDropRate {
			b.WriteString(illegibleDigit)
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

// backfill fills empty key fields from entities found in the raw text.
// Failures are logged and swallowed: the result stands as generated.
func (e *Engine) backfill(ctx context.Context, r *model.RecognitionResult) {
	entities, err := e.extractor.Extract(ctx, r.RawText)
	if err != nil {
		e.logger.Warn("entity extraction failed", zap.Error(err))
		return
	}

	fillFirst(&r.ClaimantName, entities.Names)
	fillFirst(&r.Village, entities.Villages)
	fillFirst(&r.ClaimID, entities.IDs)
	fillFirst(&r.Area, entities.Areas)
}

func fillFirst(dst *string, candidates []string) {
	if *dst == "" && len(candidates) > 0 {
		*dst = candidates[0]
	}
}
