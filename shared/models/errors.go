package models

import "errors"

// Общие ошибки сервиса. Пакеты оборачивают их через fmt.Errorf("%w: ...").
var (
	ErrInternalServer = errors.New("internal server error")
	ErrInvalidInput   = errors.New("invalid input data")

	// Отказ admission control: уже идет генерация.
	ErrBusy = errors.New("generation is already in progress")

	// Ошибки внешних сервисов
	ErrUpstreamScript = errors.New("script generation failed")
	ErrUpstreamSpeech = errors.New("speech synthesis failed")
	ErrUpstreamMusic  = errors.New("music generation failed")

	ErrRender = errors.New("render failed")

	// Рендер завершился успешно, но файл не прошел проверку.
	ErrOutputInvalid    = errors.New("rendered output is invalid")
	ErrOutputMissing    = errors.New("output file is missing or empty")
	ErrOutputTooSmall   = errors.New("output file is too small")
	ErrNoVideoStream    = errors.New("output has no video stream")
	ErrDurationTooShort = errors.New("output duration is too short")

	// Неизвестный и истекший токен не различаются.
	ErrTokenNotFound = errors.New("download token not found")
)

// Коды ошибок для JSON ответов.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeInvalidInput   = "invalid_input"
	ErrCodeBusy           = "busy"
	ErrCodeUpstreamScript = "upstream_script_failure"
	ErrCodeUpstreamSpeech = "upstream_speech_failure"
	ErrCodeRender         = "render_failure"
	ErrCodeOutputInvalid  = "output_invalid"
	ErrCodeNotFound       = "not_found"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeInternal       = "internal_error"
)

// ErrorCode возвращает стабильный код для ошибки. Используется в HTTP ответах,
// метриках и журнале запусков.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return ErrCodeInvalidInput
	case errors.Is(err, ErrBusy):
		return ErrCodeBusy
	case errors.Is(err, ErrUpstreamScript):
		return ErrCodeUpstreamScript
	case errors.Is(err, ErrUpstreamSpeech):
		return ErrCodeUpstreamSpeech
	case errors.Is(err, ErrRender):
		return ErrCodeRender
	case errors.Is(err, ErrOutputInvalid):
		return ErrCodeOutputInvalid
	case errors.Is(err, ErrTokenNotFound):
		return ErrCodeNotFound
	default:
		return ErrCodeInternal
	}
}
