package uploads

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallest valid PNG: magic + empty IHDR-less body is enough for sniffing
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

var pdfBytes = []byte("%PDF-1.4\n%%EOF\n")

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return &Store{
		dir:     t.TempDir(),
		baseURL: "http://localhost:8000/uploads",
		maxSize: 1 << 20,
	}
}

func TestStore_SaveImage(t *testing.T) {
	s := newTestStore(t)

	t.Run("valid png", func(t *testing.T) {
		url, err := s.SaveImage(NSProfilePictures, "avatar.png", bytes.NewReader(pngBytes))
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(url, s.baseURL+"/"+NSProfilePictures+"/"), url)
		assert.True(t, strings.HasSuffix(url, ".png"), url)

		// file actually lands on disk
		rel := strings.TrimPrefix(url, s.baseURL+"/")
		_, err = os.Stat(filepath.Join(s.dir, rel))
		assert.NoError(t, err)
	})

	t.Run("extension not allowed", func(t *testing.T) {
		_, err := s.SaveImage(NSProfilePictures, "avatar.gif", bytes.NewReader(pngBytes))
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("content does not match extension", func(t *testing.T) {
		_, err := s.SaveImage(NSProfilePictures, "avatar.png", strings.NewReader("definitely not a png"))
		assert.ErrorIs(t, err, ErrUnsupportedType)
	})

	t.Run("too large", func(t *testing.T) {
		small := &Store{dir: t.TempDir(), baseURL: s.baseURL, maxSize: 4}
		_, err := small.SaveImage(NSProfilePictures, "avatar.png", bytes.NewReader(pngBytes))
		assert.ErrorIs(t, err, ErrFileTooLarge)
	})
}

func TestStore_SaveDocument(t *testing.T) {
	s := newTestStore(t)

	url, err := s.SaveDocument(NSSubmissions, "essay.pdf", bytes.NewReader(pdfBytes))
	require.NoError(t, err)
	assert.Contains(t, url, "/"+NSSubmissions+"/")

	_, err = s.SaveDocument(NSSubmissions, "essay.exe", bytes.NewReader(pdfBytes))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestStore_Remove(t *testing.T) {
	s := newTestStore(t)

	url, err := s.SaveImage(NSProfilePictures, "avatar.png", bytes.NewReader(pngBytes))
	require.NoError(t, err)

	require.NoError(t, s.Remove(url))
	rel := strings.TrimPrefix(url, s.baseURL+"/")
	_, err = os.Stat(filepath.Join(s.dir, rel))
	assert.True(t, os.IsNotExist(err))

	t.Run("missing file is fine", func(t *testing.T) {
		assert.NoError(t, s.Remove(s.baseURL+"/"+NSProfilePictures+"/gone.png"))
	})

	t.Run("traversal is rejected", func(t *testing.T) {
		assert.ErrorIs(t, s.Remove(s.baseURL+"/../../etc/passwd"), ErrOutsideUploadsRoot)
	})

	t.Run("foreign url is rejected", func(t *testing.T) {
		assert.ErrorIs(t, s.Remove("https://elsewhere.test/files/x.png"), ErrOutsideUploadsRoot)
	})
}
