package model

import "time"

// Script - результат генерации текста.
type Script struct {
	Title string
	Body  string
}

// Narration - озвучка на диске.
type Narration struct {
	Path            string
	DurationSeconds float64 // после ограничения снизу
	MeasuredSeconds float64 // как вернул ffprobe
	SizeBytes       int64
	Fallback        bool
}

// Music - фоновая музыка на диске.
type Music struct {
	PresetID  string
	Path      string
	RemoteURL string
}

// SubmitResult - ответ на успешный запуск.
type SubmitResult struct {
	RunID           string    `json:"run_id"`
	Token           string    `json:"token"`
	DownloadURL     string    `json:"download_url"`
	ExpiresAt       time.Time `json:"expires_at"`
	Title           string    `json:"title"`
	DurationSeconds float64   `json:"duration_sec"`
	SizeBytes       int64     `json:"size_bytes"`
	UsedFallback    bool      `json:"used_fallback"`
	MusicUsed       bool      `json:"bgm_used"`
	MusicPreset     string    `json:"bgm_preset"`
	TTSInputPreview string    `json:"tts_input_preview"`
	Warnings        []string  `json:"warnings"`
}

// RunStatus - итог запуска для журнала.
type RunStatus string

const (
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// RunRecord - строка журнала запусков.
type RunRecord struct {
	ID              string    `db:"id"`
	Topic           string    `db:"topic"`
	Tone            string    `db:"tone"`
	Kind            string    `db:"kind"`
	Status          RunStatus `db:"status"`
	ErrorKind       string    `db:"error_kind"`
	Error           string    `db:"error"`
	DurationSeconds float64   `db:"duration_sec"`
	SizeBytes       int64     `db:"size_bytes"`
	UsedFallback    bool      `db:"used_fallback"`
	MusicUsed       bool      `db:"music_used"`
	MusicPreset     string    `db:"music_preset"`
	StartedAt       time.Time `db:"started_at"`
	CompletedAt     time.Time `db:"completed_at"`
}

// VideoReadyEvent - событие о готовом видео для внешних подписчиков.
type VideoReadyEvent struct {
	RunID           string    `json:"run_id"`
	Status          RunStatus `json:"status"`
	Title           string    `json:"title"`
	DurationSeconds float64   `json:"duration_sec"`
	ExpiresAt       time.Time `json:"expires_at"`
	DownloadURL     string    `json:"download_url"`
}
