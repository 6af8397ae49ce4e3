package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ppiankov/fratlas/internal/model"
)

// MockRecognizer implements Recognizer
type MockRecognizer struct {
	FailPaths map[string]bool

	mu    sync.Mutex
	mimes map[string]string
}

func (m *MockRecognizer) Process(ctx context.Context, path, mimeType string) (*model.RecognitionResult, error) {
	time.Sleep(time.Millisecond)
	m.mu.Lock()
	if m.mimes == nil {
		m.mimes = map[string]string{}
	}
	m.mimes[path] = mimeType
	m.mu.Unlock()

	if m.FailPaths[path] {
		return nil, errors.New("recognition error")
	}
	return &model.RecognitionResult{ClaimID: "FRA-2024-" + filepath.Base(path), Confidence: 80}, nil
}

func writeList(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scans.txt")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessor_ProcessFiles(t *testing.T) {
	rec := &MockRecognizer{}
	processor := NewBatchProcessor(rec, 2, nil)

	paths := []string{"/scans/a.pdf", "/scans/b.jpg", "/scans/c.png", "/scans/d.tiff"}
	results := processor.ProcessFiles(context.Background(), paths)

	if len(results) != len(paths) {
		t.Fatalf("expected %d results, got %d", len(paths), len(results))
	}
	for i, res := range results {
		if res.Path != paths[i] {
			t.Errorf("expected input order, got %s at %d", res.Path, i)
		}
		if res.Error != nil || res.Result == nil {
			t.Errorf("unexpected failure for %s: %v", res.Path, res.Error)
		}
	}

	if rec.mimes["/scans/b.jpg"] != "image/jpeg" || rec.mimes["/scans/d.tiff"] != "image/tiff" {
		t.Errorf("expected MIME types from extensions, got %v", rec.mimes)
	}
}

func TestBatchProcessor_ProcessFiles_Error(t *testing.T) {
	rec := &MockRecognizer{FailPaths: map[string]bool{"/scans/bad.pdf": true}}
	processor := NewBatchProcessor(rec, 2, nil)

	results := processor.ProcessFiles(context.Background(), []string{"/scans/ok.pdf", "/scans/bad.pdf"})

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Error != nil {
		t.Errorf("expected first file to succeed, got %v", results[0].Error)
	}
	if results[1].Error == nil || results[1].Result != nil {
		t.Error("expected error and no result for failed file")
	}
}

func TestBatchProcessor_AfterHook(t *testing.T) {
	var mu sync.Mutex
	saved := map[string]string{}
	after := func(ctx context.Context, path string, r *model.RecognitionResult) error {
		if strings.HasSuffix(path, "dup.pdf") {
			return errors.New("duplicate claim")
		}
		mu.Lock()
		saved[path] = r.ClaimID
		mu.Unlock()
		return nil
	}
	processor := NewBatchProcessor(&MockRecognizer{}, 3, after)

	results := processor.ProcessFiles(context.Background(), []string{"/s/one.pdf", "/s/dup.pdf"})

	if len(saved) != 1 || saved["/s/one.pdf"] != "FRA-2024-one.pdf" {
		t.Errorf("expected one saved result, got %v", saved)
	}
	if results[1].Error == nil || !strings.Contains(results[1].Error.Error(), "after recognition") {
		t.Errorf("expected hook error to be reported, got %v", results[1].Error)
	}
	if results[1].Result == nil {
		t.Error("expected recognition result kept when the hook fails")
	}
}

func TestBatchProcessor_ProcessFiles_Empty(t *testing.T) {
	processor := NewBatchProcessor(&MockRecognizer{}, 2, nil)

	results := processor.ProcessFiles(context.Background(), []string{})
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestBatchProcessor_CancelledMarksSkipped(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	paths := []string{"/scans/a.pdf", "/scans/b.pdf", "/scans/c.pdf"}
	results := NewBatchProcessor(&MockRecognizer{}, 2, nil).ProcessFiles(ctx, paths)

	if len(results) != len(paths) {
		t.Fatalf("expected one result per path, got %d", len(results))
	}
	for i, res := range results {
		if res.Path != paths[i] || res.Index != i {
			t.Errorf("expected %s at %d, got %s at %d", paths[i], i, res.Path, res.Index)
		}
		if !errors.Is(res.Error, ErrSkipped) {
			t.Errorf("expected ErrSkipped for %s, got %v", res.Path, res.Error)
		}
	}
}

func TestBatchProcessor_WithLimiter(t *testing.T) {
	// One token and practically no refill: only the first file gets through
	limiter := NewLimiter(0.001, 1)
	processor := NewBatchProcessor(&MockRecognizer{}, 1, nil).WithLimiter(limiter)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	results := processor.ProcessFiles(ctx, []string{"/scans/a.pdf", "/scans/b.pdf", "/scans/c.pdf"})

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Error != nil || results[0].Result == nil {
		t.Fatalf("expected first file recognized, got %v", results[0].Error)
	}
	for _, res := range results[1:] {
		if res.Error == nil || res.Result != nil {
			t.Errorf("expected %s throttled, got result %v", res.Path, res.Result)
		}
	}
	if !strings.Contains(results[1].Error.Error(), "rate limit") {
		t.Errorf("expected rate limit error, got %v", results[1].Error)
	}
}

func TestReadPathsFromFile(t *testing.T) {
	list := writeList(t, `/scans/a.pdf
# comment
relative/b.jpg

   /scans/c.png   
/scans/a.pdf`)

	paths, err := ReadPathsFromFile(list)
	if err != nil {
		t.Fatalf("ReadPathsFromFile failed: %v", err)
	}

	expected := []string{"/scans/a.pdf", filepath.Join(filepath.Dir(list), "relative/b.jpg"), "/scans/c.png"}
	if len(paths) != len(expected) {
		t.Fatalf("expected %d paths, got %d: %v", len(expected), len(paths), paths)
	}
	for i, p := range paths {
		if p != expected[i] {
			t.Errorf("expected %s at index %d, got %s", expected[i], i, p)
		}
	}
}

func TestReadPathsFromFile_NonExistent(t *testing.T) {
	if _, err := ReadPathsFromFile("non_existent_file.txt"); err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchProcessor_ProcessList(t *testing.T) {
	list := writeList(t, "/scans/a.pdf\n/scans/b.pdf\n")
	processor := NewBatchProcessor(&MockRecognizer{}, 2, nil)

	results, err := processor.ProcessList(context.Background(), list)
	if err != nil {
		t.Fatalf("ProcessList failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}

	if _, err := processor.ProcessList(context.Background(), "no_such_file.txt"); err == nil {
		t.Error("expected error for missing list file")
	}
}

func TestBatchProcessor_ProcessDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.pdf", "b.png", "readme.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	processor := NewBatchProcessor(&MockRecognizer{}, 2, nil)

	results, err := processor.ProcessDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("ProcessDir failed: %v", err)
	}
	if len(results) != 2 || results[0].Path != filepath.Join(dir, "a.pdf") || results[1].Path != filepath.Join(dir, "b.png") {
		t.Errorf("expected the two scans in order, got %d results", len(results))
	}

	if _, err := processor.ProcessDir(context.Background(), filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for missing directory")
	}
}

func TestScanDir(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.pdf", "a.JPG", "notes.txt", "sub/c.tif"} {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	paths, err := ScanDir(dir)
	if err != nil {
		t.Fatalf("ScanDir failed: %v", err)
	}

	expected := []string{filepath.Join(dir, "a.JPG"), filepath.Join(dir, "b.pdf"), filepath.Join(dir, "sub/c.tif")}
	if len(paths) != len(expected) {
		t.Fatalf("expected %v, got %v", expected, paths)
	}
	for i := range expected {
		if paths[i] != expected[i] {
			t.Errorf("expected %s at %d, got %s", expected[i], i, paths[i])
		}
	}
}

func TestMimeTypeFor(t *testing.T) {
	tests := map[string]string{
		"form.PDF":  "application/pdf",
		"scan.jpeg": "image/jpeg",
		"scan.tif":  "image/tiff",
		"notes.txt": "application/octet-stream",
		"noext":     "application/octet-stream",
	}
	for in, want := range tests {
		if got := MimeTypeFor(in); got != want {
			t.Errorf("MimeTypeFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFileResult_GetError(t *testing.T) {
	r1 := &FileResult{Path: "/a.pdf"}
	if r1.GetError() != nil {
		t.Errorf("expected nil error, got %v", r1.GetError())
	}

	expected := errors.New("recognition failed")
	r2 := &FileResult{Path: "/a.pdf", Error: expected}
	if r2.GetError() != expected {
		t.Errorf("expected %v, got %v", expected, r2.GetError())
	}
}
