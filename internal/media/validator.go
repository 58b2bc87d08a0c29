package media

import (
	"context"
	"errors"
	"fmt"
	"os"

	"finishflow/shared/models"

	"go.uber.org/zap"
)

// Thresholds - минимальные требования к готовому видео.
type Thresholds struct {
	MinBytes           int64
	MinDurationSeconds float64
}

// DefaultThresholds - 2.5 секунды и 32 KB.
var DefaultThresholds = Thresholds{MinBytes: 32 * 1024, MinDurationSeconds: 2.5}

// ValidationResult - итог проверки. Reason - одна из ошибок
// models.ErrOutputMissing, ErrOutputTooSmall, ErrNoVideoStream, ErrDurationTooShort.
type ValidationResult struct {
	OK              bool
	Reason          error
	DurationSeconds float64
	SizeBytes       int64
	VideoCodec      string
}

// Err возвращает nil для валидного файла, иначе ошибку с models.ErrOutputInvalid и причиной.
func (r ValidationResult) Err() error {
	if r.OK {
		return nil
	}
	reason := r.Reason
	if reason == nil {
		reason = errors.New("unknown reason")
	}
	return fmt.Errorf("%w: %w", models.ErrOutputInvalid, reason)
}

// Validator проверяет видео после рендера. Код выхода ffmpeg не учитывается:
// файл всегда пробится заново.
type Validator struct {
	prober     Prober
	thresholds Thresholds
	logger     *zap.Logger
}

// NewValidator создает Validator.
func NewValidator(prober Prober, thresholds Thresholds, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{prober: prober, thresholds: thresholds, logger: logger}
}

// Validate проверяет файл: существует и не пуст, есть видеопоток с кодеком,
// длительность не меньше порога, размер не меньше порога. Короткий маленький
// файл дает ErrDurationTooShort, а не ErrOutputTooSmall.
func (v *Validator) Validate(ctx context.Context, path string) ValidationResult {
	log := v.logger.With(zap.String("path", path))

	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		log.Warn("Rendered file is missing or empty", zap.Error(err))
		return ValidationResult{Reason: models.ErrOutputMissing}
	}
	res := ValidationResult{SizeBytes: info.Size()}

	probe, err := v.prober.Probe(ctx, path)
	if err != nil {
		log.Warn("Rendered file could not be probed", zap.Error(err))
		res.Reason = fmt.Errorf("%w: %v", models.ErrNoVideoStream, err)
		return res
	}
	res.DurationSeconds = probe.DurationSeconds

	video, ok := probe.PrimaryVideo()
	if !ok {
		log.Warn("Rendered file has no video stream")
		res.Reason = models.ErrNoVideoStream
		return res
	}
	res.VideoCodec = video.CodecName

	if res.DurationSeconds < v.thresholds.MinDurationSeconds {
		log.Warn("Rendered file is too short", zap.Float64("duration", res.DurationSeconds), zap.Float64("min", v.thresholds.MinDurationSeconds))
		res.Reason = fmt.Errorf("%w: %.2fs < %.2fs", models.ErrDurationTooShort, res.DurationSeconds, v.thresholds.MinDurationSeconds)
		return res
	}

	if v.thresholds.MinBytes > 0 && res.SizeBytes < v.thresholds.MinBytes {
		log.Warn("Rendered file is too small", zap.Int64("size", res.SizeBytes), zap.Int64("min", v.thresholds.MinBytes))
		res.Reason = fmt.Errorf("%w: %d < %d bytes", models.ErrOutputTooSmall, res.SizeBytes, v.thresholds.MinBytes)
		return res
	}

	res.OK = true
	log.Debug("Rendered file is valid",
		zap.Int64("size", res.SizeBytes),
		zap.Float64("duration", res.DurationSeconds),
		zap.String("codec", res.VideoCodec),
	)
	return res
}
