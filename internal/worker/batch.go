package worker

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/fratlas/internal/model"
)

// Recognizer recognizes a single scanned form
type Recognizer interface {
	Process(ctx context.Context, path, mimeType string) (*model.RecognitionResult, error)
}

// ErrSkipped marks files the batch never got to before its context ended
var ErrSkipped = errors.New("skipped")

// batchLimiterKey is the single limiter key a batch run draws from
const batchLimiterKey = "batch"

// AfterFunc runs on each successful recognition, e.g. to persist it as a claim
type AfterFunc func(ctx context.Context, path string, result *model.RecognitionResult) error

// typeByExt maps scan file extensions to MIME types
var typeByExt = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// MimeTypeFor guesses a scan's MIME type from its extension
func MimeTypeFor(path string) string {
	if t, ok := typeByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return "application/octet-stream"
}

// RecognizeJob recognizes one file
type RecognizeJob struct {
	Index      int
	Path       string
	Recognizer Recognizer
	After      AfterFunc
	Limiter    *Limiter // Optional throttle, shared by every job of a batch
}

// Execute executes the recognition job
func (j *RecognizeJob) Execute(ctx context.Context) Result {
	out := &FileResult{Index: j.Index, Path: j.Path}

	if j.Limiter != nil {
		if err := j.Limiter.Wait(ctx, batchLimiterKey); err != nil {
			out.Error = fmt.Errorf("rate limit: %w", err)
			return out
		}
	}

	result, err := j.Recognizer.Process(ctx, j.Path, MimeTypeFor(j.Path))
	if err != nil {
		out.Error = err
		return out
	}
	out.Result = result

	if j.After != nil {
		if err := j.After(ctx, j.Path, result); err != nil {
			out.Error = fmt.Errorf("after recognition: %w", err)
		}
	}
	return out
}

// FileResult represents the result of a recognition job
type FileResult struct {
	Index  int
	Path   string
	Result *model.RecognitionResult
	Error  error
}

// GetError returns the error from the recognition
func (r *FileResult) GetError() error {
	return r.Error
}

// BatchProcessor recognizes many files concurrently
type BatchProcessor struct {
	recognizer  Recognizer
	concurrency int
	after       AfterFunc
	limiter     *Limiter
}

// NewBatchProcessor creates a new batch processor. after may be nil.
func NewBatchProcessor(recognizer Recognizer, concurrency int, after AfterFunc) *BatchProcessor {
	return &BatchProcessor{
		recognizer:  recognizer,
		concurrency: concurrency,
		after:       after,
	}
}

// WithLimiter throttles recognition to the limiter's rate across all workers
func (b *BatchProcessor) WithLimiter(l *Limiter) *BatchProcessor {
	b.limiter = l
	return b
}

// ProcessFiles recognizes paths concurrently. There is one result per path, in
// input order; files not reached before ctx ends carry ErrSkipped.
func (b *BatchProcessor) ProcessFiles(ctx context.Context, paths []string) []*FileResult {
	if len(paths) == 0 {
		return []*FileResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, path := range paths {
		job := &RecognizeJob{
			Index:      i,
			Path:       path,
			Recognizer: b.recognizer,
			After:      b.after,
			Limiter:    b.limiter,
		}
		if !pool.Submit(job) {
			break
		}
	}

	results := pool.Wait()

	fileResults := make([]*FileResult, len(paths))
	for _, result := range results {
		fr := result.(*FileResult)
		fileResults[fr.Index] = fr
	}
	for i, fr := range fileResults {
		if fr == nil {
			fileResults[i] = &FileResult{Index: i, Path: paths[i], Error: fmt.Errorf("%w: %v", ErrSkipped, ctx.Err())}
		}
	}

	return fileResults
}

// ProcessList reads paths from a list file and recognizes them concurrently
func (b *BatchProcessor) ProcessList(ctx context.Context, listPath string) ([]*FileResult, error) {
	paths, err := ReadPathsFromFile(listPath)
	if err != nil {
		return nil, fmt.Errorf("read paths: %w", err)
	}

	return b.ProcessFiles(ctx, paths), nil
}

// ProcessDir recognizes every supported scan under dir concurrently
func (b *BatchProcessor) ProcessDir(ctx context.Context, dir string) ([]*FileResult, error) {
	paths, err := ScanDir(dir)
	if err != nil {
		return nil, fmt.Errorf("scan dir: %w", err)
	}

	return b.ProcessFiles(ctx, paths), nil
}

// ReadPathsFromFile reads file paths (one per line), skipping blanks, comments
// and duplicates. Relative paths resolve against the list file's directory.
func ReadPathsFromFile(listPath string) ([]string, error) {
	file, err := os.Open(listPath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	base := filepath.Dir(listPath)
	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}

		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return paths, nil
}

// ScanDir lists the recognizable scans under dir, recursively, in lexical order
func ScanDir(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := typeByExt[strings.ToLower(filepath.Ext(path))]; ok {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	return paths, nil
}
