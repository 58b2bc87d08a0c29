// Package repository хранит журнал запусков в PostgreSQL.
package repository

import (
	"context"
	"fmt"

	"finishflow/internal/model"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// RunJournal - журнал запусков конвейера.
type RunJournal struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

// NewRunJournal создает журнал поверх пула.
func NewRunJournal(db *pgxpool.Pool, logger *zap.Logger) *RunJournal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunJournal{db: db, logger: logger}
}

// Record сохраняет итог запуска. Повторная запись с тем же ID обновляет строку.
func (r *RunJournal) Record(ctx context.Context, rec model.RunRecord) error {
	query := `
        INSERT INTO pipeline_runs
        (id, topic, tone, kind, status, error_kind, error, duration_sec, size_bytes,
         used_fallback, music_used, music_preset, started_at, completed_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
        ON CONFLICT (id) DO UPDATE SET
            status = EXCLUDED.status,
            error_kind = EXCLUDED.error_kind,
            error = EXCLUDED.error,
            duration_sec = EXCLUDED.duration_sec,
            size_bytes = EXCLUDED.size_bytes,
            used_fallback = EXCLUDED.used_fallback,
            music_used = EXCLUDED.music_used,
            music_preset = EXCLUDED.music_preset,
            completed_at = EXCLUDED.completed_at;
    `
	_, err := r.db.Exec(ctx, query,
		rec.ID, rec.Topic, rec.Tone, rec.Kind, string(rec.Status), rec.ErrorKind, rec.Error,
		rec.DurationSeconds, rec.SizeBytes, rec.UsedFallback, rec.MusicUsed, rec.MusicPreset,
		rec.StartedAt, rec.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Failed to save run record", zap.String("run_id", rec.ID), zap.Error(err))
		return fmt.Errorf("save run record %s: %w", rec.ID, err)
	}
	r.logger.Debug("Run record saved", zap.String("run_id", rec.ID), zap.String("status", string(rec.Status)))
	return nil
}
