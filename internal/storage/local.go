package storage

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrFileTooLarge        = errors.New("file too large")
)

// AllowedExtensions are the image types accepted for listings
var AllowedExtensions = []string{".png", ".jpg", ".jpeg", ".gif", ".webp"}

// LocalStore keeps uploaded images on disk under dir and serves them below baseURL
type LocalStore struct {
	dir     string
	baseURL string
	maxSize int64
	logger  *logrus.Logger
}

func NewLocalStore(dir, baseURL string, maxSize int64, logger *logrus.Logger) (*LocalStore, error) {
	if logger == nil {
		logger = logrus.New()
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	return &LocalStore{
		dir:     dir,
		baseURL: "/" + strings.Trim(baseURL, "/"),
		maxSize: maxSize,
		logger:  logger,
	}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) BaseURL() string {
	return s.baseURL
}

// CheckExtension returns the normalized extension of filename if it is allowed
func CheckExtension(filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return ext, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFileType, filename)
}

// SaveUpload stores a multipart file and returns its public URL
func (s *LocalStore) SaveUpload(header *multipart.FileHeader) (string, error) {
	if _, err := CheckExtension(header.Filename); err != nil {
		return "", err
	}
	if s.maxSize > 0 && header.Size > s.maxSize {
		return "", fmt.Errorf("%w: %s", ErrFileTooLarge, header.Filename)
	}

	f, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer f.Close()

	return s.Save(header.Filename, f)
}

// Save writes r under a fresh name keeping the extension of filename
func (s *LocalStore) Save(filename string, r io.Reader) (string, error) {
	ext, err := CheckExtension(filename)
	if err != nil {
		return "", err
	}

	name := uuid.Must(uuid.NewV7()).String() + ext
	target := filepath.Join(s.dir, name)

	out, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	src := r
	if s.maxSize > 0 {
		src = io.LimitReader(r, s.maxSize+1)
	}
	written, err := io.Copy(out, src)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && s.maxSize > 0 && written > s.maxSize {
		err = fmt.Errorf("%w: %s", ErrFileTooLarge, filename)
	}
	if err != nil {
		os.Remove(target)
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"file":  name,
		"bytes": written,
	}).Debug("Stored upload")

	return path.Join(s.baseURL, name), nil
}

// Delete removes the file behind url. Missing files are not an error.
func (s *LocalStore) Delete(url string) error {
	name, ok := s.fileName(url)
	if !ok {
		return fmt.Errorf("url %q is not served from %s", url, s.baseURL)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// DeleteAll removes every url, logging failures
func (s *LocalStore) DeleteAll(urls []string) {
	for _, u := range urls {
		if err := s.Delete(u); err != nil {
			s.logger.WithError(err).WithField("url", u).Warn("Failed to delete image file")
		}
	}
}

func (s *LocalStore) fileName(url string) (string, bool) {
	prefix := s.baseURL + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	name := strings.TrimPrefix(url, prefix)
	if name == "" || strings.ContainsAny(name, `/\`) || name == ".." {
		return "", false
	}
	return name, true
}
