// Package upload stores scanned claim forms on local disk under generated names.
package upload

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrTooLarge        = errors.New("file too large")
	ErrEmpty           = errors.New("empty file")
)

const sniffLen = 512

var extByType = map[string]string{
	"application/pdf": ".pdf",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/tiff":      ".tif",
}

// Saved describes a stored upload
type Saved struct {
	Filename string // Generated name under the store dir
	Path     string
	MimeType string
	Size     int64
}

// Store writes uploads into a directory
type Store struct {
	dir      string
	allowed  map[string]bool
	maxBytes int64
}

// NewStore creates dir if needed. maxBytes <= 0 disables the size check.
func NewStore(dir string, allowedTypes []string, maxBytes int64) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	allowed := make(map[string]bool, len(allowedTypes))
	for _, t := range allowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &Store{dir: dir, allowed: allowed, maxBytes: maxBytes}, nil
}

// Save streams r to disk. The declared type is trusted unless it is empty or
// generic, in which case the content is sniffed.
func (s *Store) Save(r io.Reader, originalName, declaredType string) (*Saved, error) {
	br := bufio.NewReaderSize(r, sniffLen)
	head, err := br.Peek(sniffLen)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if len(head) == 0 {
		return nil, ErrEmpty
	}

	mimeType := PickMIME(declaredType, head)
	if !s.Allowed(mimeType) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, mimeType)
	}

	name := uuid.NewString() + extension(originalName, mimeType)
	path := filepath.Join(s.dir, name)

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	var src io.Reader = br
	if s.maxBytes > 0 {
		src = io.LimitReader(br, s.maxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return nil, fmt.Errorf("write upload: %w", err)
	}
	if s.maxBytes > 0 && n > s.maxBytes {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrTooLarge, s.maxBytes)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	return &Saved{Filename: name, Path: path, MimeType: mimeType, Size: n}, nil
}

// Allowed reports whether mimeType may be stored
func (s *Store) Allowed(mimeType string) bool {
	return s.allowed[strings.ToLower(mimeType)]
}

// Path resolves a stored filename. Directory components are stripped.
func (s *Store) Path(filename string) string {
	return filepath.Join(s.dir, filepath.Base(filename))
}

// Remove deletes a stored file; a missing file is not an error
func (s *Store) Remove(filename string) error {
	err := os.Remove(s.Path(filename))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Sniff identifies scanned-form formats by magic bytes. Unknown content
// returns "".
func Sniff(b []byte) string {
	switch {
	case len(b) >= 2 && b[0] == 0xFF && b[1] == 0xD8:
		return "image/jpeg"
	case len(b) >= 8 &&
		b[0] == 0x89 && b[1] == 0x50 && b[2] == 0x4E && b[3] == 0x47 &&
		b[4] == 0x0D && b[5] == 0x0A && b[6] == 0x1A && b[7] == 0x0A:
		return "image/png"
	case len(b) >= 5 && string(b[:5]) == "%PDF-":
		return "application/pdf"
	case len(b) >= 4 && (string(b[:4]) == "II*\x00" || string(b[:4]) == "MM\x00*"):
		return "image/tiff"
	}
	return ""
}

// PickMIME takes the declared type, falling back to sniffing when the
// declaration is missing or generic
func PickMIME(declared string, head []byte) string {
	mt := strings.ToLower(strings.TrimSpace(declared))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	if mt != "" && mt != "application/octet-stream" {
		return mt
	}
	if sniffed := Sniff(head); sniffed != "" {
		return sniffed
	}
	if len(head) > 0 {
		if detected := http.DetectContentType(head); detected != "" {
			if i := strings.IndexByte(detected, ';'); i >= 0 {
				detected = detected[:i]
			}
			return detected
		}
	}
	return "application/octet-stream"
}

// typeByExt lists the extensions accepted as spellings of a stored type
var typeByExt = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// extension names the stored file after its accepted type. The uploader's
// extension is kept only when it spells the same type.
func extension(originalName, mimeType string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	if t, ok := typeByExt[ext]; ok && t == mimeType {
		return ext
	}
	return extByType[mimeType]
}
