package export

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
)

// Saver performs the "save as" step for a decoded document and returns
// where it ended up.
type Saver interface {
	Save(ctx context.Context, f File) (string, error)
}

// DirSaver writes documents into a directory.
type DirSaver struct {
	Dir string
}

// Save writes f into the directory, replacing any file with the same name.
func (s DirSaver) Save(_ context.Context, f File) (string, error) {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}

	// Names come from the API; never let them leave the directory.
	path := filepath.Join(s.Dir, filepath.Base(f.Name))

	tmp, err := os.CreateTemp(s.Dir, ".download-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(f.Data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to move download into place: %w", err)
	}

	return path, nil
}

// ResponseSaver sends documents as an HTTP attachment.
type ResponseSaver struct {
	W http.ResponseWriter
}

// Save writes f as the response body with a Content-Disposition attachment.
// The returned location is empty because nothing is stored.
func (s ResponseSaver) Save(_ context.Context, f File) (string, error) {
	h := s.W.Header()
	h.Set("Content-Type", f.MIMEType)
	h.Set("Content-Length", strconv.Itoa(len(f.Data)))
	h.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(f.Name)))
	s.W.WriteHeader(http.StatusOK)

	if _, err := s.W.Write(f.Data); err != nil {
		return "", fmt.Errorf("failed to write response: %w", err)
	}
	return "", nil
}
