package uploads

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/escolarhq/escolar/core"
)

// Upload namespaces; each maps to a directory under the uploads root.
const (
	NSProfilePictures = "profile_pictures"
	NSSubmissions     = "submissions"
	NSSubjectFiles    = "files"
)

var (
	ErrFileTooLarge       = errors.New("file exceeds the maximum allowed size")
	ErrUnsupportedType    = errors.New("unsupported file type")
	ErrOutsideUploadsRoot = errors.New("file reference outside the uploads root")

	// extension -> content type sniffed from the actual bytes. The
	// extension alone is never trusted.
	imageTypes = map[string]string{
		"jpg":  "image/jpeg",
		"jpeg": "image/jpeg",
		"png":  "image/png",
	}
	documentTypes = map[string]string{
		"pdf":  "application/pdf",
		"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	}
)

// Store keeps uploads on the local filesystem, namespaced per use, with
// random names. It hands back the public URL the row stores.
type Store struct {
	dir     string
	baseURL string
	maxSize int64
}

func NewStore(conf *core.Config) *Store {
	return &Store{
		dir:     conf.Uploads.Dir,
		baseURL: strings.TrimSuffix(conf.Uploads.BaseURL, "/"),
		maxSize: conf.Uploads.MaxSize,
	}
}

// SaveImage stores a jpg/jpeg/png upload and returns its public URL.
func (s *Store) SaveImage(namespace, filename string, r io.Reader) (string, error) {
	return s.save(namespace, filename, r, imageTypes)
}

// SaveDocument stores a pdf/docx upload and returns its public URL.
func (s *Store) SaveDocument(namespace, filename string, r io.Reader) (string, error) {
	return s.save(namespace, filename, r, documentTypes)
}

func (s *Store) save(namespace, filename string, r io.Reader, allowed map[string]string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxSize+1))
	if err != nil {
		return "", errors.Wrap(err, "reading upload")
	}
	if int64(len(data)) > s.maxSize {
		return "", ErrFileTooLarge
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	contentType, ok := allowed[ext]
	if !ok {
		return "", ErrUnsupportedType
	}
	if !mimetype.Detect(data).Is(contentType) {
		return "", ErrUnsupportedType
	}

	name := uuid.New().String() + "." + ext
	dir := filepath.Join(s.dir, namespace)
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "creating uploads dir")
	}
	if err = os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return "", errors.Wrap(err, "writing upload")
	}
	return s.baseURL + "/" + namespace + "/" + name, nil
}

// Remove deletes the file a stored URL points at. References outside the
// uploads root are rejected.
func (s *Store) Remove(path string) error {
	rel := strings.TrimPrefix(path, s.baseURL+"/")
	if rel == path && strings.Contains(path, "://") {
		return ErrOutsideUploadsRoot
	}

	full := filepath.Join(s.dir, filepath.FromSlash(rel))
	if !strings.HasPrefix(filepath.Clean(full), filepath.Clean(s.dir)+string(os.PathSeparator)) {
		return ErrOutsideUploadsRoot
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing upload")
	}
	return nil
}
