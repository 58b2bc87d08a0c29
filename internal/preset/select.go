package preset

import (
	"strings"

	"finishflow/internal/model"
)

// ID - идентификатор музыкального пресета AudioFlow.
type ID string

const (
	UpbeatShorts ID = "UPBEAT_SHORTS"
	Documentary  ID = "DOCUMENTARY"
	CalmLoop     ID = "CALM_LOOP"
)

// All - все пресеты в порядке приоритета правил.
var All = []ID{UpbeatShorts, Documentary, CalmLoop}

// ShortFormMaxSeconds - ролики не длиннее считаются короткими.
const ShortFormMaxSeconds = 60

// Select выбирает пресет. Первое совпавшее правило побеждает:
// короткий ролик (по типу или длительности), затем INFO/DOCUMENTARY,
// иначе CALM_LOOP. Функция тотальна и не делает I/O.
// Новые правила добавлять только после проверки на короткий ролик.
func Select(kind model.Kind, tone model.Tone, durationSeconds float64) ID {
	if kind.IsShortForm() || (durationSeconds > 0 && durationSeconds <= ShortFormMaxSeconds) {
		return UpbeatShorts
	}
	switch model.Tone(strings.ToUpper(strings.TrimSpace(string(tone)))) {
	case model.ToneInfo, model.ToneDocumentary:
		return Documentary
	}
	return CalmLoop
}

// MapKind - старое отображение тип -> пресет без учета тона и длительности.
func MapKind(kind model.Kind) ID {
	switch strings.ToLower(strings.TrimSpace(string(kind))) {
	case "shorts", "short":
		return UpbeatShorts
	case "documentary":
		return Documentary
	default:
		return CalmLoop
	}
}
