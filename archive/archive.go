// Package archive keeps a Postgres copy of finished intake records so that
// requests survive even when a notification email is lost.
package archive

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/m3rciful/intakebot/core/logger"
	"github.com/m3rciful/intakebot/intake"
)

// Store persists finished records and supplementary messages.
type Store struct {
	db *sqlx.DB
}

// New wraps an open connection pool.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

const insertRecord = `
INSERT INTO intake_requests (id, user_id, name, phone, description, language, attachments, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO NOTHING`

const insertSupplementary = `
INSERT INTO intake_supplements (id, user_id, name, phone, text, language, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`

// SaveRecord stores one finished record. Attachment paths are reduced to
// file names since the spool directory is transient.
func (a *Store) SaveRecord(ctx context.Context, rec intake.Record) error {
	names := make([]string, len(rec.Attachments))
	for i, ref := range rec.Attachments {
		names[i] = filepath.Base(ref)
	}

	_, err := a.db.ExecContext(ctx, insertRecord,
		rec.ID, rec.UserID, rec.Name, rec.Phone, rec.Description,
		string(rec.Language), pq.Array(names), rec.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("archive record %s: %w", rec.ID, err)
	}
	logger.Debug(ctx, "db", "archive.record",
		slog.String("record_id", rec.ID),
		slog.Int("photos", len(names)),
	)
	return nil
}

// SaveSupplementary stores a post-finish free-text message.
func (a *Store) SaveSupplementary(ctx context.Context, msg intake.Supplementary) error {
	_, err := a.db.ExecContext(ctx, insertSupplementary,
		msg.ID, msg.UserID, msg.Name, msg.Phone, msg.Text,
		string(msg.Language), msg.ReceivedAt,
	)
	if err != nil {
		return fmt.Errorf("archive supplementary %s: %w", msg.ID, err)
	}
	logger.Debug(ctx, "db", "archive.supplementary",
		slog.String("record_id", msg.ID),
	)
	return nil
}
