package pipeline

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/fratlas/internal/boundary"
	"github.com/ppiankov/fratlas/internal/model"
	"github.com/ppiankov/fratlas/internal/sim"
	"github.com/ppiankov/fratlas/internal/store"
	"github.com/ppiankov/fratlas/internal/upload"
)

var pdfBytes = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")

// stubRecognizer returns a fixed result or error
type stubRecognizer struct {
	result *model.RecognitionResult
	err    error
	paths  []string
}

func (s *stubRecognizer) Process(ctx context.Context, path, mimeType string) (*model.RecognitionResult, error) {
	s.paths = append(s.paths, path)
	if s.err != nil {
		return nil, s.err
	}
	r := *s.result
	return &r, nil
}

func (s *stubRecognizer) Reprocess(ctx context.Context, path string, c model.Corrections) (*model.RecognitionResult, error) {
	r, err := s.Process(ctx, path, "application/pdf")
	if err != nil {
		return nil, err
	}
	c.Apply(r)
	r.Confidence = 100
	return r, nil
}

type fixture struct {
	intake *Intake
	db     *sql.DB
	rec    *stubRecognizer
	claims *store.ClaimRepo
	files  *store.FileRepo
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := store.Open(ctx, model.DatabaseConfig{Driver: store.DriverSQLite, DSN: filepath.Join(dir, "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, store.Migrate(ctx, db, store.DriverSQLite))

	uploads, err := upload.NewStore(filepath.Join(dir, "uploads"), model.DefaultConfig().Uploads.AllowedTypes, 1<<20)
	require.NoError(t, err)

	rec := &stubRecognizer{result: &model.RecognitionResult{
		ClaimantName: "Geeta Bai",
		Village:      "Mendha",
		ClaimID:      "FRA-2024-0042",
		Area:         "2.5",
		Confidence:   88,
	}}

	f := &fixture{db: db, rec: rec, claims: store.NewClaimRepo(db), files: store.NewFileRepo(db)}
	f.intake = NewIntake(Deps{
		Recognizer: rec,
		Boundaries: boundary.NewSynthesizer(sim.NewRand(7)),
		Claims:     f.claims,
		Files:      f.files,
		Uploads:    uploads,
	})
	return f
}

func validInput() ClaimInput {
	return ClaimInput{RecognitionResult: model.RecognitionResult{
		ClaimantName: "Geeta Bai",
		Village:      "Mendha",
		ClaimID:      "FRA-2024-0042",
		Area:         "2.5",
		Confidence:   88,
	}}
}

func TestRecognize_StoresAndProcesses(t *testing.T) {
	f := newFixture(t)

	got, err := f.intake.Recognize(context.Background(), UploadInput{
		Body:         bytes.NewReader(pdfBytes),
		OriginalName: "form-a.pdf",
	})
	require.NoError(t, err)

	assert.Equal(t, model.FileProcessed, got.File.Status)
	assert.Equal(t, "application/pdf", got.File.MimeType)
	assert.Equal(t, "form-a.pdf", got.File.OriginalName)
	assert.Equal(t, "Geeta Bai", got.Result.ClaimantName)

	stored, err := f.files.Get(context.Background(), got.File.ID)
	require.NoError(t, err)
	assert.Equal(t, model.FileProcessed, stored.Status)
	require.Len(t, f.rec.paths, 1)
	assert.Equal(t, ".pdf", filepath.Ext(f.rec.paths[0]))
}

func TestRecognize_RejectsUnsupportedType(t *testing.T) {
	f := newFixture(t)

	_, err := f.intake.Recognize(context.Background(), UploadInput{
		Body:         bytes.NewReader([]byte("Village: Mendha")),
		OriginalName: "notes.txt",
		MimeType:     "text/plain",
	})
	assert.ErrorIs(t, err, ErrValidation)
	assert.Empty(t, f.rec.paths, "recognizer must not run")
}

func TestRecognize_FailureMarksFile(t *testing.T) {
	f := newFixture(t)
	f.rec.err = errors.New("engine down")

	_, err := f.intake.Recognize(context.Background(), UploadInput{Body: bytes.NewReader(pdfBytes), OriginalName: "a.pdf"})
	require.Error(t, err)

	var status string
	require.NoError(t, f.db.QueryRow(`select status from uploaded_files`).Scan(&status))
	assert.Equal(t, string(model.FileFailed), status)
}

func TestReprocess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.intake.Recognize(ctx, UploadInput{Body: bytes.NewReader(pdfBytes), OriginalName: "a.pdf"})
	require.NoError(t, err)

	village := "Pench"
	again, err := f.intake.Reprocess(ctx, first.File.ID, model.Corrections{Village: &village})
	require.NoError(t, err)
	assert.Equal(t, 100, again.Result.Confidence)
	assert.Equal(t, "Pench", again.Result.Village)
	assert.Equal(t, f.rec.paths[0], f.rec.paths[1], "reprocess reads the stored scan")

	_, err = f.intake.Reprocess(ctx, "missing", model.Corrections{})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSaveClaim_RequiredFields(t *testing.T) {
	f := newFixture(t)

	_, err := f.intake.SaveClaim(context.Background(), ClaimInput{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"claimantName", "village", "claimId", "area"}, verr.Fields)

	for _, area := range []string{"abc", "0", "-2", "NaN"} {
		in := validInput()
		in.Area = area
		_, err := f.intake.SaveClaim(context.Background(), in)
		assert.ErrorIs(t, err, ErrValidation, "area %q", area)
	}
}

func TestSaveClaim_BoundaryAndStatus(t *testing.T) {
	tests := []struct {
		name       string
		confidence int
		want       model.ClaimStatus
		wantConf   bool
	}{
		{"confident", 88, model.ClaimPending, true},
		{"threshold", 75, model.ClaimPending, true},
		{"low", 62, model.ClaimReviewRequired, true},
		{"manual entry", 0, model.ClaimPending, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := validInput()
			in.Confidence = tt.confidence

			c, err := f.intake.SaveClaim(context.Background(), in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Status)
			assert.Equal(t, tt.wantConf, c.OCRConfidence != nil)

			require.NotNil(t, c.BoundaryGeometry)
			ring := c.BoundaryGeometry.Ring()
			require.GreaterOrEqual(t, len(ring), 7)
			assert.Equal(t, ring[0], ring[len(ring)-1])
			// Mendha sits at 20.1376 N, 79.2963 E; ring positions are [lng, lat]
			assert.InDelta(t, 79.2963, ring[0].Lng(), 0.01)
			assert.InDelta(t, 20.1376, ring[0].Lat(), 0.01)

			stored, err := f.claims.Get(context.Background(), c.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, stored.Status)
			assert.InDelta(t, 2.5, stored.Area, 1e-9)
		})
	}
}

func TestSaveClaim_LinksFileAndRejectsDuplicate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.intake.Recognize(ctx, UploadInput{Body: bytes.NewReader(pdfBytes), OriginalName: "a.pdf"})
	require.NoError(t, err)

	in := ClaimInput{RecognitionResult: *rec.Result, FileID: rec.File.ID}
	c, err := f.intake.SaveClaim(ctx, in)
	require.NoError(t, err)

	detail, err := f.intake.Claim(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, detail.Files, 1)
	assert.Equal(t, rec.File.ID, detail.Files[0].ID)

	_, err = f.intake.SaveClaim(ctx, in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"claimId"}, verr.Fields)
}

func TestClaimByClaimID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rec, err := f.intake.Recognize(ctx, UploadInput{Body: bytes.NewReader(pdfBytes), OriginalName: "a.pdf"})
	require.NoError(t, err)
	c, err := f.intake.SaveClaim(ctx, ClaimInput{RecognitionResult: *rec.Result, FileID: rec.File.ID})
	require.NoError(t, err)

	detail, err := f.intake.ClaimByClaimID(ctx, " FRA-2024-0042 ")
	require.NoError(t, err)
	assert.Equal(t, c.ID, detail.ID)
	require.Len(t, detail.Files, 1)
	assert.Equal(t, rec.File.ID, detail.Files[0].ID)

	_, err = f.intake.ClaimByClaimID(ctx, "FRA-2024-9999")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStats_InvalidatedOnWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	before, err := f.intake.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, before.TotalClaims)

	c, err := f.intake.SaveClaim(ctx, validInput())
	require.NoError(t, err)

	after, err := f.intake.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, after.TotalClaims)
	assert.Equal(t, 1, after.Pending)
	assert.InDelta(t, 2.5, after.TotalArea, 1e-9)

	require.NoError(t, f.intake.SetStatus(ctx, c.ID, model.ClaimApproved))
	approved, err := f.intake.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, approved.Processed)
	assert.Equal(t, 0, approved.Pending)

	analytics, err := f.intake.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.NamedCount{{Name: "approved", Value: 1}}, analytics.ByStatus)

	require.NoError(t, f.intake.DeleteClaim(ctx, c.ID))
	gone, err := f.intake.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, gone.TotalClaims)
}

// racingClaims runs a write right after the first Stats query returns, before
// the intake caches the counters
type racingClaims struct {
	*store.ClaimRepo
	during func()
}

func (r *racingClaims) Stats(ctx context.Context) (model.DashboardStats, error) {
	s, err := r.ClaimRepo.Stats(ctx)
	if r.during != nil {
		during := r.during
		r.during = nil
		during()
	}
	return s, err
}

func TestStats_WriteDuringLoadNotCached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	claims := &racingClaims{ClaimRepo: f.claims}
	in := NewIntake(Deps{
		Recognizer: f.rec,
		Boundaries: boundary.NewSynthesizer(sim.NewRand(7)),
		Claims:     claims,
		Files:      f.files,
	})
	claims.during = func() {
		_, err := in.SaveClaim(ctx, validInput())
		require.NoError(t, err)
	}

	stale, err := in.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stale.TotalClaims)

	fresh, err := in.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fresh.TotalClaims)
}

func TestUpdateClaim_RegeneratesBoundaryOnMove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	c, err := f.intake.SaveClaim(ctx, validInput())
	require.NoError(t, err)

	same := validInput()
	same.SpouseName = "Mohan Singh"
	kept, err := f.intake.UpdateClaim(ctx, c.ID, same)
	require.NoError(t, err)
	assert.Equal(t, c.BoundaryGeometry.Coordinates, kept.BoundaryGeometry.Coordinates)
	assert.Equal(t, c.Status, kept.Status)

	moved := validInput()
	moved.Village = "Tadoba"
	got, err := f.intake.UpdateClaim(ctx, c.ID, moved)
	require.NoError(t, err)
	assert.InDelta(t, 20.2091, got.BoundaryGeometry.Ring()[0].Lat(), 0.01)
	assert.InDelta(t, 79.3370, got.BoundaryGeometry.Ring()[0].Lng(), 0.01)

	_, err = f.intake.UpdateClaim(ctx, "missing", validInput())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSetStatus_Invalid(t *testing.T) {
	f := newFixture(t)
	assert.ErrorIs(t, f.intake.SetStatus(context.Background(), "any", "archived"), ErrValidation)
	assert.ErrorIs(t, f.intake.SetStatus(context.Background(), "missing", model.ClaimApproved), store.ErrNotFound)
}
