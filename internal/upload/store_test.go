package upload

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	pdfBytes  = []byte("%PDF-1.7\n1 0 obj\n<<>>\nendobj\n")
	jpegBytes = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F'}
	pngBytes  = []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A, 0, 0, 0, 0x0D}
	tiffBytes = []byte{'I', 'I', '*', 0x00, 0x08, 0, 0, 0}
)

var defaultTypes = []string{"application/pdf", "image/jpeg", "image/png", "image/tiff"}

func newTestStore(t *testing.T, max int64) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "uploads"), defaultTypes, max)
	require.NoError(t, err)
	return s
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"pdf", pdfBytes, "application/pdf"},
		{"jpeg", jpegBytes, "image/jpeg"},
		{"png", pngBytes, "image/png"},
		{"tiff little endian", tiffBytes, "image/tiff"},
		{"tiff big endian", []byte{'M', 'M', 0x00, '*'}, "image/tiff"},
		{"text", []byte("Village: Mendha"), ""},
		{"short", []byte{0xFF}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sniff(tt.in))
		})
	}
}

func TestPickMIME(t *testing.T) {
	assert.Equal(t, "image/png", PickMIME("image/png", pdfBytes), "declared type wins")
	assert.Equal(t, "application/pdf", PickMIME("", pdfBytes))
	assert.Equal(t, "image/jpeg", PickMIME("application/octet-stream", jpegBytes))
	assert.Equal(t, "image/jpeg", PickMIME("Image/JPEG; charset=binary", nil))
	assert.Equal(t, "text/plain", PickMIME("", []byte("plain words")))
}

func TestStore_SaveSniffsAndNames(t *testing.T) {
	s := newTestStore(t, 0)

	saved, err := s.Save(bytes.NewReader(pdfBytes), "", "")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", saved.MimeType)
	assert.True(t, strings.HasSuffix(saved.Filename, ".pdf"), saved.Filename)
	assert.Equal(t, int64(len(pdfBytes)), saved.Size)

	data, err := os.ReadFile(s.Path(saved.Filename))
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, data)
}

func TestStore_SaveKeepsOriginalExtension(t *testing.T) {
	s := newTestStore(t, 0)

	saved, err := s.Save(bytes.NewReader(jpegBytes), "Form-A Scan.JPEG", "image/jpeg")
	require.NoError(t, err)
	assert.Equal(t, ".jpeg", filepath.Ext(saved.Filename))
	assert.NotContains(t, saved.Filename, "Scan")
}

func TestStore_ExtensionFollowsAcceptedType(t *testing.T) {
	s := newTestStore(t, 0)

	saved, err := s.Save(bytes.NewReader(pdfBytes), "form.html", "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, ".pdf", filepath.Ext(saved.Filename))

	saved, err = s.Save(bytes.NewReader(pdfBytes), "scan.jpg", "application/octet-stream")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", saved.MimeType)
	assert.Equal(t, ".pdf", filepath.Ext(saved.Filename))
}

func TestStore_Rejects(t *testing.T) {
	s := newTestStore(t, 16)

	_, err := s.Save(strings.NewReader("Village: Mendha"), "notes.txt", "text/plain")
	assert.True(t, errors.Is(err, ErrUnsupportedType))

	_, err = s.Save(bytes.NewReader(nil), "empty.pdf", "application/pdf")
	assert.ErrorIs(t, err, ErrEmpty)

	_, err = s.Save(bytes.NewReader(bytes.Repeat(pdfBytes, 4)), "big.pdf", "")
	assert.ErrorIs(t, err, ErrTooLarge)

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "rejected uploads leave nothing behind")
}

func TestStore_PathStripsDirectories(t *testing.T) {
	s := newTestStore(t, 0)
	assert.Equal(t, filepath.Join(s.dir, "passwd"), s.Path("../../etc/passwd"))
}

func TestStore_Remove(t *testing.T) {
	s := newTestStore(t, 0)
	saved, err := s.Save(bytes.NewReader(tiffBytes), "scan.tif", "")
	require.NoError(t, err)

	require.NoError(t, s.Remove(saved.Filename))
	_, err = os.Stat(saved.Path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, s.Remove(saved.Filename), "removing twice is fine")
}
