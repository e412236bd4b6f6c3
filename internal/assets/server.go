// Package assets serves media files (audio, thumbnails, animation data) from
// the local assets directory to the renderer, with byte-range support so
// audio can be seeked.
package assets

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

var ErrOutsideRoot = errors.New("asset path escapes the assets directory")

type Server struct {
	root   string
	logger *slog.Logger
}

func NewServer(root string, logger *slog.Logger) *Server {
	return &Server{root: root, logger: logger}
}

func (s *Server) Root() string {
	return s.root
}

// Resolve maps a path relative to the assets directory onto the filesystem.
func (s *Server) Resolve(rel string) (string, error) {
	if rel == "" || filepath.IsAbs(rel) {
		return "", ErrOutsideRoot
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if part == ".." {
			return "", ErrOutsideRoot
		}
	}
	return filepath.Join(s.root, filepath.Clean(rel)), nil
}

// ServeFile writes the asset at rel. Missing files and bad ranges are answered
// directly; only I/O failures are returned.
func (s *Server) ServeFile(w http.ResponseWriter, r *http.Request, rel string) error {
	path, err := s.Resolve(rel)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		http.Error(w, "asset not found", http.StatusNotFound)
		return nil
	}
	if err != nil {
		return fmt.Errorf("open asset: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat asset: %w", err)
	}
	if info.IsDir() {
		http.Error(w, "asset not found", http.StatusNotFound)
		return nil
	}
	size := info.Size()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := w.Header()
	h.Set("Accept-Ranges", "bytes")
	h.Set("Content-Type", contentType)

	rng, err := ParseRange(r.Header.Get("Range"), size)
	switch {
	case errors.Is(err, ErrUnsatisfiable):
		h.Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		http.Error(w, "range not satisfiable", http.StatusRequestedRangeNotSatisfiable)
		return nil
	case errors.Is(err, ErrInvalidRange):
		// Malformed ranges are ignored and the whole asset is sent.
		rng = nil
	}

	status := http.StatusOK
	n := size
	if rng != nil {
		if _, err := f.Seek(rng.Start, io.SeekStart); err != nil {
			return fmt.Errorf("seek asset: %w", err)
		}
		status = http.StatusPartialContent
		n = rng.Length()
		h.Set("Content-Range", rng.Header(size))
	}
	h.Set("Content-Length", strconv.FormatInt(n, 10))
	w.WriteHeader(status)

	if r.Method == http.MethodHead {
		return nil
	}
	if _, err := io.CopyN(w, f, n); err != nil {
		s.logger.Debug("asset copy interrupted", "path", rel, "error", err)
	}
	return nil
}
