package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"finishflow/shared/models"
)

// Tone - интонация ролика, влияет на выбор музыки.
type Tone string

const (
	ToneCalm        Tone = "CALM"
	ToneInfo        Tone = "INFO"
	ToneDocumentary Tone = "DOCUMENTARY"
	ToneUpbeat      Tone = "UPBEAT"
	ToneHealth      Tone = "HEALTH"
)

// Kind - тип ролика.
type Kind string

const (
	KindDefault     Kind = "default"
	KindShorts      Kind = "shorts"
	KindDocumentary Kind = "documentary"
)

const (
	// MaxTopicRunes - ограничение длины темы.
	MaxTopicRunes = 200

	DefaultLongFormSeconds  = 900
	DefaultShortFormSeconds = 90
)

// GenerationRequest - входные данные одного запуска.
type GenerationRequest struct {
	Topic                 string `json:"topic"`
	Tone                  Tone   `json:"tone,omitempty"`
	Kind                  Kind   `json:"kind,omitempty"`
	TargetDurationSeconds int    `json:"target_duration_sec,omitempty"`
}

// maxTargetSeconds - верхняя граница target_duration_sec при разборе JSON.
const maxTargetSeconds = 24 * 60 * 60

// UnmarshalJSON принимает дробный target_duration_sec и округляет его
// до ближайшей целой секунды.
func (r *GenerationRequest) UnmarshalJSON(data []byte) error {
	type plain GenerationRequest
	aux := struct {
		*plain
		TargetDurationSeconds *float64 `json:"target_duration_sec,omitempty"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.TargetDurationSeconds == nil {
		return nil
	}
	v := math.Round(*aux.TargetDurationSeconds)
	if math.Abs(v) > maxTargetSeconds {
		return fmt.Errorf("target_duration_sec %v is out of range", *aux.TargetDurationSeconds)
	}
	r.TargetDurationSeconds = int(v)
	return nil
}

// IsShortForm - явный признак короткого ролика.
func (k Kind) IsShortForm() bool {
	switch strings.ToLower(string(k)) {
	case "shorts", "short":
		return true
	}
	return false
}

// ParseTone приводит строку к Tone. Пустая строка дает CALM,
// незнакомые значения сохраняются в верхнем регистре.
func ParseTone(s string) Tone {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ToneCalm
	}
	return Tone(s)
}

// ParseKind приводит строку к Kind. Пустая строка дает default.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default", "long", "longform":
		return KindDefault, nil
	case "shorts", "short":
		return KindShorts, nil
	case "documentary":
		return KindDocumentary, nil
	default:
		return "", fmt.Errorf("%w: unknown kind %q", models.ErrInvalidInput, s)
	}
}

// Normalize проверяет запрос и проставляет значения по умолчанию.
// Все ошибки оборачивают models.ErrInvalidInput.
func (r GenerationRequest) Normalize() (GenerationRequest, error) {
	out := r
	out.Topic = strings.TrimSpace(r.Topic)
	if out.Topic == "" {
		return out, fmt.Errorf("%w: topic is required", models.ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(out.Topic); n > MaxTopicRunes {
		return out, fmt.Errorf("%w: topic is too long (%d > %d characters)", models.ErrInvalidInput, n, MaxTopicRunes)
	}

	out.Tone = ParseTone(string(r.Tone))

	kind, err := ParseKind(string(r.Kind))
	if err != nil {
		return out, err
	}
	out.Kind = kind

	switch {
	case r.TargetDurationSeconds < 0:
		return out, fmt.Errorf("%w: target_duration_sec must not be negative", models.ErrInvalidInput)
	case r.TargetDurationSeconds == 0 && out.Kind.IsShortForm():
		out.TargetDurationSeconds = DefaultShortFormSeconds
	case r.TargetDurationSeconds == 0:
		out.TargetDurationSeconds = DefaultLongFormSeconds
	}
	return out, nil
}
