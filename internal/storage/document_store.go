package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const (
	FolderProofs  = "proofs"
	FolderLetters = "letters"

	// PublicPrefix is the route stored documents are served under.
	PublicPrefix = "/documents/"

	maxNameLength = 120
	createRetries = 3
)

var (
	ErrTooLarge    = errors.New("document exceeds the upload size limit")
	ErrInvalidPath = errors.New("invalid document path")
)

// Object is a stored document.
type Object struct {
	Path string
	URL  string
	Size int64
}

// DocumentStore keeps uploads under <owner>/<folder>/<unix millis>-<name>
// and hands out public URLs for them.
type DocumentStore struct {
	fs            afero.Fs
	publicBaseURL string
	maxBytes      int64
	logger        *slog.Logger
	now           func() time.Time
}

func NewDocumentStore(fs afero.Fs, publicBaseURL string, maxBytes int64, logger *slog.Logger) *DocumentStore {
	return &DocumentStore{
		fs:            fs,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		maxBytes:      maxBytes,
		logger:        logger,
		now:           time.Now,
	}
}

// NewLocalDocumentStore roots the store at baseDir on the OS filesystem.
func NewLocalDocumentStore(baseDir, publicBaseURL string, maxBytes int64, logger *slog.Logger) (*DocumentStore, error) {
	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", baseDir, err)
	}
	logger.Info("document storage ready", "path", baseDir)
	return NewDocumentStore(afero.NewBasePathFs(osFs, baseDir), publicBaseURL, maxBytes, logger), nil
}

// Check reports whether the document root can be reached.
func (s *DocumentStore) Check(_ context.Context) error {
	if _, err := s.fs.Stat("/"); err != nil {
		return fmt.Errorf("stat document root: %w", err)
	}
	return nil
}

// Upload writes body into the owner's namespace. Nothing is left behind
// when the write fails.
func (s *DocumentStore) Upload(ctx context.Context, ownerID, folder, filename string, body io.Reader) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	if !safeSegment(ownerID) || !safeSegment(folder) {
		return Object{}, ErrInvalidPath
	}

	dir := path.Join(ownerID, folder)
	if err := s.fs.MkdirAll(fsPath(dir), 0o755); err != nil {
		return Object{}, fmt.Errorf("create %s: %w", dir, err)
	}

	name := SanitizeFilename(filename)
	ts := s.now().UnixMilli()

	var (
		f   afero.File
		p   string
		err error
	)
	for i := 0; i < createRetries; i++ {
		p = path.Join(dir, fmt.Sprintf("%d-%s", ts+int64(i), name))
		f, err = s.fs.OpenFile(fsPath(p), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil || !errors.Is(err, os.ErrExist) {
			break
		}
	}
	if err != nil {
		return Object{}, fmt.Errorf("create %s: %w", p, err)
	}

	reader := body
	if s.maxBytes > 0 {
		reader = io.LimitReader(body, s.maxBytes+1)
	}
	n, copyErr := io.Copy(f, reader)
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		err = fmt.Errorf("write %s: %w", p, copyErr)
	case closeErr != nil:
		err = fmt.Errorf("close %s: %w", p, closeErr)
	case s.maxBytes > 0 && n > s.maxBytes:
		err = ErrTooLarge
	}
	if err != nil {
		if rmErr := s.fs.Remove(fsPath(p)); rmErr != nil {
			s.logger.Warn("failed to remove partial upload", "path", p, "error", rmErr)
		}
		return Object{}, err
	}

	s.logger.Debug("document stored", "path", p, "size", n)
	return Object{Path: p, URL: s.URLFor(p), Size: n}, nil
}

// Remove deletes a stored document. Missing files are not an error.
func (s *DocumentStore) Remove(_ context.Context, p string) error {
	clean := path.Clean("/" + p)[1:]
	if clean == "" || strings.HasPrefix(clean, "..") {
		return ErrInvalidPath
	}
	if err := s.fs.Remove(fsPath(clean)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", clean, err)
	}
	return nil
}

// URLFor turns a stored path into its public URL.
func (s *DocumentStore) URLFor(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.publicBaseURL + PublicPrefix + strings.Join(segments, "/")
}

// Handler serves stored documents read-only. Directory listings are not
// exposed.
func (s *DocumentStore) Handler() http.Handler {
	files := http.FileServer(afero.NewHttpFs(s.fs).Dir("/"))
	return http.StripPrefix(strings.TrimSuffix(PublicPrefix, "/"), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "" || strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		files.ServeHTTP(w, r)
	}))
}

// SanitizeFilename keeps the base name and replaces anything outside a
// conservative character set.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), ".")
	if out == "" {
		out = "document"
	}
	if len(out) > maxNameLength {
		out = out[len(out)-maxNameLength:]
	}
	return out
}

// fsPath roots a stored path so every afero backend resolves it the same
// way the HTTP file server does.
func fsPath(p string) string {
	return "/" + strings.TrimPrefix(p, "/")
}

func safeSegment(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, "/\\")
}
