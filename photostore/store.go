// Package photostore spools incoming Telegram photos to local disk so they
// can be attached to the outgoing notification and removed afterwards.
package photostore

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/m3rciful/intakebot/core/logger"
)

// Store writes photo payloads under a single configured directory.
type Store struct {
	dir string
}

// New ensures the spool directory exists and returns a store over it.
func New(dir string) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create photo dir %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Save streams one photo to disk and returns its reference path.
func (s *Store) Save(ctx context.Context, userID int64, r io.Reader) (string, error) {
	name := fmt.Sprintf("photo_%d_%s.jpg", userID, uuid.NewString())
	path := filepath.Join(s.dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create photo file: %w", err)
	}
	written, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write photo file: %w", err)
	}

	logger.Debug(ctx, "photos", "photo.saved",
		slog.String("photo", name),
		slog.Int64("bytes", written),
	)
	return path, nil
}

// Release deletes a spooled photo once the notification no longer needs it.
// Releasing an already-removed reference is not an error.
func (s *Store) Release(ctx context.Context, ref string) error {
	if err := os.Remove(ref); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("remove photo file: %w", err)
	}
	logger.Debug(ctx, "photos", "photo.released",
		slog.String("photo", filepath.Base(ref)),
	)
	return nil
}
