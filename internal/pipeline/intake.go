// Package pipeline runs claim intake: storing scans, recognizing them and
// turning reviewed results into persisted claims with synthesized boundaries.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/fratlas/internal/cache"
	"github.com/ppiankov/fratlas/internal/model"
	"github.com/ppiankov/fratlas/internal/store"
	"github.com/ppiankov/fratlas/internal/upload"
)

// ReviewThreshold is the recognition confidence below which a new claim is
// flagged for review
const ReviewThreshold = 75

// ErrValidation marks input rejected before any state changed
var ErrValidation = errors.New("validation failed")

// ValidationError lists the offending fields
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Recognizer turns a stored scan into a recognition result
type Recognizer interface {
	Process(ctx context.Context, path, mimeType string) (*model.RecognitionResult, error)
	Reprocess(ctx context.Context, path string, corrections model.Corrections) (*model.RecognitionResult, error)
}

// BoundaryGenerator synthesizes a claim polygon
type BoundaryGenerator interface {
	Generate(village string, areaHectares float64) model.Polygon
}

// ClaimRepository persists claims
type ClaimRepository interface {
	Create(ctx context.Context, c *model.Claim) error
	Get(ctx context.Context, id string) (*model.Claim, error)
	GetByClaimID(ctx context.Context, claimID string) (*model.Claim, error)
	List(ctx context.Context, f store.ClaimFilter) ([]model.Claim, error)
	Update(ctx context.Context, c *model.Claim) error
	UpdateStatus(ctx context.Context, id string, status model.ClaimStatus) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (model.DashboardStats, error)
	Analytics(ctx context.Context) (model.Analytics, error)
}

// FileRepository tracks uploaded scans
type FileRepository interface {
	Create(ctx context.Context, f *model.UploadedFile) error
	Get(ctx context.Context, id string) (*model.UploadedFile, error)
	UpdateStatus(ctx context.Context, id string, status model.FileStatus) error
	AttachClaim(ctx context.Context, id, claimID string) error
	ListByClaim(ctx context.Context, claimID string) ([]model.UploadedFile, error)
}

// Deps wires an Intake
type Deps struct {
	Recognizer Recognizer
	Boundaries BoundaryGenerator
	Claims     ClaimRepository
	Files      FileRepository
	Uploads    *upload.Store
	Cache      cache.Cache
	StatsTTL   time.Duration
	Logger     *zap.Logger
}

// Intake orchestrates uploads, recognition and claim persistence
type Intake struct {
	recognizer Recognizer
	boundaries BoundaryGenerator
	claims     ClaimRepository
	files      FileRepository
	uploads    *upload.Store
	cache      cache.Cache
	statsTTL   time.Duration
	gen        cache.Generation // Bumped on every claim write
	logger     *zap.Logger
}

// NewIntake creates an Intake from deps
func NewIntake(deps Deps) *Intake {
	in := &Intake{
		recognizer: deps.Recognizer,
		boundaries: deps.Boundaries,
		claims:     deps.Claims,
		files:      deps.Files,
		uploads:    deps.Uploads,
		cache:      deps.Cache,
		statsTTL:   deps.StatsTTL,
		logger:     deps.Logger,
	}
	if in.cache == nil {
		in.cache = cache.NewMemoryCache(time.Minute, 5*time.Minute)
	}
	if in.statsTTL <= 0 {
		in.statsTTL = 30 * time.Second
	}
	if in.logger == nil {
		in.logger = zap.NewNop()
	}
	return in
}

// UploadInput is a scan arriving from a client
type UploadInput struct {
	Body         io.Reader
	OriginalName string
	MimeType     string
}

// Recognition pairs the stored file with what was read from it
type Recognition struct {
	File   *model.UploadedFile      `json:"file"`
	Result *model.RecognitionResult `json:"result"`
}

// Recognize stores an uploaded scan and recognizes it
func (in *Intake) Recognize(ctx context.Context, input UploadInput) (*Recognition, error) {
	// 1-2. Validate type and size while storing
	saved, err := in.uploads.Save(input.Body, input.OriginalName, input.MimeType)
	if err != nil {
		if errors.Is(err, upload.ErrUnsupportedType) || errors.Is(err, upload.ErrTooLarge) || errors.Is(err, upload.ErrEmpty) {
			return nil, &ValidationError{Reason: err.Error()}
		}
		return nil, fmt.Errorf("save upload: %w", err)
	}

	// 3. Record the file
	file := &model.UploadedFile{
		Filename:     saved.Filename,
		OriginalName: input.OriginalName,
		MimeType:     saved.MimeType,
		Size:         saved.Size,
		Status:       model.FileUploaded,
	}
	if err := in.files.Create(ctx, file); err != nil {
		_ = in.uploads.Remove(saved.Filename)
		return nil, fmt.Errorf("record upload: %w", err)
	}

	return in.recognizeStored(ctx, file, func(ctx context.Context) (*model.RecognitionResult, error) {
		return in.recognizer.Process(ctx, saved.Path, saved.MimeType)
	})
}

// Reprocess recognizes a stored scan again with reviewer corrections applied
func (in *Intake) Reprocess(ctx context.Context, fileID string, corrections model.Corrections) (*Recognition, error) {
	file, err := in.files.Get(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", fileID, err)
	}

	path := in.uploads.Path(file.Filename)
	return in.recognizeStored(ctx, file, func(ctx context.Context) (*model.RecognitionResult, error) {
		return in.recognizer.Reprocess(ctx, path, corrections)
	})
}

// File returns the upload record for id
func (in *Intake) File(ctx context.Context, id string) (*model.UploadedFile, error) {
	return in.files.Get(ctx, id)
}

func (in *Intake) recognizeStored(ctx context.Context, file *model.UploadedFile, run func(context.Context) (*model.RecognitionResult, error)) (*Recognition, error) {
	// 4. Mark processing and run the engine
	if err := in.setFileStatus(ctx, file, model.FileProcessing); err != nil {
		return nil, err
	}

	result, err := run(ctx)

	// 5. Final state; a cancelled request still records the failure
	if err != nil {
		if statusErr := in.setFileStatus(context.WithoutCancel(ctx), file, model.FileFailed); statusErr != nil {
			in.logger.Warn("failed to mark upload failed", zap.String("file", file.ID), zap.Error(statusErr))
		}
		return nil, fmt.Errorf("recognize %s: %w", file.ID, err)
	}
	if err := in.setFileStatus(ctx, file, model.FileProcessed); err != nil {
		return nil, err
	}

	in.logger.Info("upload recognized",
		zap.String("file", file.ID),
		zap.String("claim_id", result.ClaimID),
		zap.Int("confidence", result.Confidence))

	return &Recognition{File: file, Result: result}, nil
}

func (in *Intake) setFileStatus(ctx context.Context, file *model.UploadedFile, status model.FileStatus) error {
	if err := in.files.UpdateStatus(ctx, file.ID, status); err != nil {
		return fmt.Errorf("mark %s %s: %w", file.ID, status, err)
	}
	file.Status = status
	return nil
}

// ClaimInput is a reviewed recognition result submitted as a claim. Confidence
// zero means the claim was entered by hand.
type ClaimInput struct {
	model.RecognitionResult
	FileID string `json:"fileId,omitempty"`
}

// SaveClaim validates input, synthesizes its boundary and persists it
func (in *Intake) SaveClaim(ctx context.Context, input ClaimInput) (*model.Claim, error) {
	// 1. Validate
	area, err := validateClaim(input.RecognitionResult)
	if err != nil {
		return nil, err
	}

	// 2. Build the record with a synthesized boundary
	claim := claimFromResult(input.RecognitionResult, area)
	boundary := in.boundaries.Generate(claim.Village, area)
	claim.BoundaryGeometry = &boundary

	// 3. Status from confidence
	claim.Status = model.ClaimPending
	if input.Confidence > 0 {
		confidence := input.Confidence
		claim.OCRConfidence = &confidence
		if confidence < ReviewThreshold {
			claim.Status = model.ClaimReviewRequired
		}
	}

	// 4. Persist and link the source scan
	if err := in.claims.Create(ctx, claim); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, &ValidationError{Reason: "claim ID already exists", Fields: []string{"claimId"}}
		}
		return nil, fmt.Errorf("save claim: %w", err)
	}
	if input.FileID != "" {
		if err := in.files.AttachClaim(ctx, input.FileID, claim.ID); err != nil {
			in.logger.Warn("failed to link upload to claim",
				zap.String("file", input.FileID), zap.String("claim", claim.ID), zap.Error(err))
		}
	}

	// 5. Dashboards are stale now
	in.invalidate()

	in.logger.Info("claim saved",
		zap.String("id", claim.ID),
		zap.String("claim_id", claim.ClaimID),
		zap.String("status", string(claim.Status)))

	return claim, nil
}

// UpdateClaim replaces the editable fields of claim id. The boundary is
// regenerated when the village or area changes.
func (in *Intake) UpdateClaim(ctx context.Context, id string, input ClaimInput) (*model.Claim, error) {
	area, err := validateClaim(input.RecognitionResult)
	if err != nil {
		return nil, err
	}

	existing, err := in.claims.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", id, err)
	}

	updated := claimFromResult(input.RecognitionResult, area)
	updated.ID = existing.ID
	updated.Status = existing.Status
	updated.OCRConfidence = existing.OCRConfidence
	updated.CreatedAt = existing.CreatedAt
	updated.BoundaryGeometry = existing.BoundaryGeometry
	if updated.RawOCRText == "" {
		updated.RawOCRText = existing.RawOCRText
	}

	if existing.BoundaryGeometry == nil ||
		!strings.EqualFold(strings.TrimSpace(existing.Village), strings.TrimSpace(updated.Village)) ||
		existing.Area != updated.Area {
		boundary := in.boundaries.Generate(updated.Village, area)
		updated.BoundaryGeometry = &boundary
	}

	if err := in.claims.Update(ctx, updated); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, &ValidationError{Reason: "claim ID already exists", Fields: []string{"claimId"}}
		}
		return nil, fmt.Errorf("update claim: %w", err)
	}

	in.invalidate()
	return updated, nil
}

// SetStatus records a review decision
func (in *Intake) SetStatus(ctx context.Context, id string, status model.ClaimStatus) error {
	if !status.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("unknown status %q", status), Fields: []string{"status"}}
	}
	if err := in.claims.UpdateStatus(ctx, id, status); err != nil {
		return fmt.Errorf("claim %s: %w", id, err)
	}
	in.invalidate()
	return nil
}

// DeleteClaim removes claim id
func (in *Intake) DeleteClaim(ctx context.Context, id string) error {
	if err := in.claims.Delete(ctx, id); err != nil {
		return fmt.Errorf("claim %s: %w", id, err)
	}
	in.invalidate()
	return nil
}

// Claim returns claim id with its source files
func (in *Intake) Claim(ctx context.Context, id string) (*model.ClaimWithFiles, error) {
	c, err := in.claims.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", id, err)
	}
	return in.withFiles(ctx, c)
}

// ClaimByClaimID returns the claim filed under a form's claim ID, e.g.
// FRA-2024-0042
func (in *Intake) ClaimByClaimID(ctx context.Context, claimID string) (*model.ClaimWithFiles, error) {
	c, err := in.claims.GetByClaimID(ctx, strings.TrimSpace(claimID))
	if err != nil {
		return nil, fmt.Errorf("claim %s: %w", claimID, err)
	}
	return in.withFiles(ctx, c)
}

func (in *Intake) withFiles(ctx context.Context, c *model.Claim) (*model.ClaimWithFiles, error) {
	files, err := in.files.ListByClaim(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	return &model.ClaimWithFiles{Claim: *c, Files: files}, nil
}

// Claims lists claims matching f
func (in *Intake) Claims(ctx context.Context, f store.ClaimFilter) ([]model.Claim, error) {
	return in.claims.List(ctx, f)
}

// Stats returns the dashboard counters, cached for the stats TTL
func (in *Intake) Stats(ctx context.Context) (model.DashboardStats, error) {
	return cache.LoadVersioned(in.cache, cache.StatsKey, in.statsTTL, &in.gen, func() (model.DashboardStats, error) {
		return in.claims.Stats(ctx)
	})
}

// Analytics returns the chart aggregates, cached for the stats TTL
func (in *Intake) Analytics(ctx context.Context) (model.Analytics, error) {
	return cache.LoadVersioned(in.cache, cache.AnalyticsKey, in.statsTTL, &in.gen, func() (model.Analytics, error) {
		return in.claims.Analytics(ctx)
	})
}

func (in *Intake) invalidate() {
	in.gen.Bump()
	_ = in.cache.DeletePrefix(cache.ClaimsPrefix)
}

// validateClaim checks the required fields and returns the parsed area
func validateClaim(r model.RecognitionResult) (float64, error) {
	var missing []string
	if strings.TrimSpace(r.ClaimantName) == "" {
		missing = append(missing, "claimantName")
	}
	if strings.TrimSpace(r.Village) == "" {
		missing = append(missing, "village")
	}
	if strings.TrimSpace(r.ClaimID) == "" {
		missing = append(missing, "claimId")
	}
	if strings.TrimSpace(r.Area) == "" {
		missing = append(missing, "area")
	}
	if len(missing) > 0 {
		return 0, &ValidationError{Reason: "missing required fields", Fields: missing}
	}

	area, err := strconv.ParseFloat(strings.TrimSpace(r.Area), 64)
	if err != nil || area <= 0 || math.IsInf(area, 0) || math.IsNaN(area) {
		return 0, &ValidationError{Reason: "area must be a positive number of hectares", Fields: []string{"area"}}
	}
	return area, nil
}

func claimFromResult(r model.RecognitionResult, area float64) *model.Claim {
	return &model.Claim{
		ClaimID:                          strings.TrimSpace(r.ClaimID),
		ClaimantName:                     strings.TrimSpace(r.ClaimantName),
		SpouseName:                       r.SpouseName,
		FatherMotherName:                 r.FatherMotherName,
		Address:                          r.Address,
		Village:                          strings.TrimSpace(r.Village),
		GramPanchayat:                    r.GramPanchayat,
		TehsilTaluka:                     r.TehsilTaluka,
		District:                         r.District,
		State:                            r.State,
		ScheduledTribe:                   r.ScheduledTribe,
		ScheduledTribeCertificate:        r.ScheduledTribeCertificate,
		OtherTraditionalForestDweller:    r.OtherTraditionalForestDweller,
		SpouseScheduledTribe:             r.SpouseScheduledTribe,
		FamilyMembers:                    r.FamilyMembers,
		LandForHabitation:                r.LandForHabitation,
		LandForSelfCultivation:           r.LandForSelfCultivation,
		DisputedLands:                    r.DisputedLands,
		PattasLeasesGrants:               r.PattasLeasesGrants,
		LandForRehabilitationAlternative: r.LandForRehabilitationAlternative,
		LandDisplacedWithoutCompensation: r.LandDisplacedWithoutCompensation,
		Area:                             area,
		SurveyNumber:                     r.SurveyNumber,
		RawOCRText:                       r.RawText,
	}
}
