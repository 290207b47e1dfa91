// Package storage keeps chat attachments on the local filesystem when no
// object store is configured.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Disk writes attachments under root/<kind>/ and serves them from baseURL.
type Disk struct {
	root    string
	baseURL string
	logger  zerolog.Logger
}

// NewDisk prepares root for writing. baseURL is the public prefix the files
// are mounted under, for example "http://localhost:8080/files".
func NewDisk(root, baseURL string, logger zerolog.Logger) (*Disk, error) {
	if strings.TrimSpace(root) == "" {
		return nil, fmt.Errorf("storage root must not be empty")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Disk{
		root:    root,
		baseURL: strings.TrimRight(baseURL, "/"),
		logger:  logger.With().Str("component", "disk_storage").Logger(),
	}, nil
}

// Root is the directory files are written to.
func (d *Disk) Root() string { return d.root }

// Upload copies reader into a new file and returns its public URL.
func (d *Disk) Upload(ctx context.Context, name, kind string, reader io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	folder := kind
	if folder == "" {
		folder = "misc"
	}
	dir := filepath.Join(d.root, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create folder: %w", err)
	}

	stored := uuid.NewString() + strings.ToLower(filepath.Ext(name))
	target := filepath.Join(dir, stored)

	file, err := os.OpenFile(target, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(file, reader); err != nil {
		_ = file.Close()
		_ = os.Remove(target)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(target)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	d.logger.Info().Str("path", target).Str("kind", kind).Msg("attachment stored on disk")
	return d.baseURL + "/" + path.Join(folder, stored), nil
}
