package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/fratlas/internal/model"
	"github.com/ppiankov/fratlas/internal/pipeline"
	"github.com/ppiankov/fratlas/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
	batchSave    bool
	batchOut     string
	batchRate    float64
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <list-file|dir>",
	Short: "Recognize many scanned forms in parallel",
	Long: `Batch recognizes many scanned claim forms concurrently:
- Read paths from a list file (one per line, # comments allowed),
  or walk a directory for PDF, JPEG, PNG and TIFF scans
- Recognize files in parallel with a configurable worker count
- With --save, store each scan and save the result as a claim

Example:
  fratlas batch scans.txt
  fratlas batch ./scans --concurrency 8 --out results.json
  fratlas batch ./scans --save --rate 2`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 10*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&batchSave, "save", false, "store scans and save results as claims in the database")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "write all results as JSON to this path")
	batchCmd.Flags().Float64Var(&batchRate, "rate", 0, "max files recognized per second across all workers (0 = unlimited)")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	stderr := cmd.ErrOrStderr()
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  fratlas Batch Recognition\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Input:        %s\n", args[0])
	fmt.Fprintf(stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(stderr, "  Save claims:  %v\n", batchSave)
	if batchRate > 0 {
		fmt.Fprintf(stderr, "  Rate:         %.2g files/s\n", batchRate)
	}
	fmt.Fprintf(stderr, "\n")

	comp := newComponents(cfg, logger)

	var processor *worker.BatchProcessor
	if batchSave {
		db, err := openDatabase(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()

		intake, err := newIntake(cfg, db, comp, logger)
		if err != nil {
			return err
		}
		saver := newClaimSaver(intake)
		processor = worker.NewBatchProcessor(saver, concurrency, saver.Save)
	} else {
		processor = worker.NewBatchProcessor(comp.engine, concurrency, nil)
	}
	if batchRate > 0 {
		processor.WithLimiter(worker.NewLimiter(batchRate, 1))
	}

	results, err := processBatchInput(ctx, processor, args[0])
	if err != nil {
		return err
	}
	success, failure, skipped := reportBatch(stderr, results)

	// Summary
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "  Batch Complete\n")
	fmt.Fprintf(stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(stderr, "\n")
	fmt.Fprintf(stderr, "  Total:     %d files\n", len(results))
	fmt.Fprintf(stderr, "  Success:   %d\n", success)
	fmt.Fprintf(stderr, "  Failures:  %d\n", failure)
	if skipped > 0 {
		fmt.Fprintf(stderr, "  Skipped:   %d (timeout)\n", skipped)
	}
	fmt.Fprintf(stderr, "\n")

	if batchOut != "" {
		return writeOutput(cmd.OutOrStdout(), batchOut, batchRecords(results))
	}
	return nil
}

// processBatchInput recognizes the files named by a list file, or every scan
// under a directory
func processBatchInput(ctx context.Context, processor *worker.BatchProcessor, arg string) ([]*worker.FileResult, error) {
	info, err := os.Stat(arg)
	if err != nil {
		return nil, fmt.Errorf("batch input: %w", err)
	}

	var results []*worker.FileResult
	if info.IsDir() {
		results, err = processor.ProcessDir(ctx, arg)
	} else {
		results, err = processor.ProcessList(ctx, arg)
	}
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no files to process in %s", arg)
	}
	return results, nil
}

func reportBatch(w io.Writer, results []*worker.FileResult) (success, failure, skipped int) {
	for _, r := range results {
		if errors.Is(r.Error, worker.ErrSkipped) {
			skipped++
			continue
		}
		if r.Error != nil {
			failure++
			fmt.Fprintf(w, "✗ %s: %v\n", r.Path, r.Error)
			continue
		}
		success++
		fmt.Fprintf(w, "✓ %s %s %s (confidence: %d%%)\n", filepath.Base(r.Path), r.Result.ClaimID, r.Result.Village, r.Result.Confidence)
	}
	return success, failure, skipped
}

// batchRecord is the JSON shape of one batch result
type batchRecord struct {
	Path   string                   `json:"path"`
	Result *model.RecognitionResult `json:"result,omitempty"`
	Error  string                   `json:"error,omitempty"`
}

func batchRecords(results []*worker.FileResult) []batchRecord {
	out := make([]batchRecord, 0, len(results))
	for _, r := range results {
		rec := batchRecord{Path: r.Path, Result: r.Result}
		if r.Error != nil {
			rec.Error = r.Error.Error()
		}
		out = append(out, rec)
	}
	return out
}

// claimSaver routes batch files through the intake pipeline: each scan is
// stored and recognized, then saved as a claim linked to its upload
type claimSaver struct {
	intake  *pipeline.Intake
	mu      sync.Mutex
	fileIDs map[string]string
}

func newClaimSaver(intake *pipeline.Intake) *claimSaver {
	return &claimSaver{intake: intake, fileIDs: make(map[string]string)}
}

// Process stores and recognizes the file at path
func (s *claimSaver) Process(ctx context.Context, path, mimeType string) (*model.RecognitionResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	rec, err := s.intake.Recognize(ctx, pipeline.UploadInput{
		Body:         f,
		OriginalName: filepath.Base(path),
		MimeType:     mimeType,
	})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.fileIDs[path] = rec.File.ID
	s.mu.Unlock()

	return rec.Result, nil
}

// Save persists a recognized result as a claim
func (s *claimSaver) Save(ctx context.Context, path string, result *model.RecognitionResult) error {
	s.mu.Lock()
	fileID := s.fileIDs[path]
	s.mu.Unlock()

	_, err := s.intake.SaveClaim(ctx, pipeline.ClaimInput{RecognitionResult: *result, FileID: fileID})
	return err
}
