package pipeline

import (
	"finishflow/shared/models"
)

// Ошибки запуска. Все они - алиасы общих ошибок из shared/models,
// чтобы обработчики могли проверять их через errors.Is без импорта pipeline.
var (
	ErrInvalidInput   = models.ErrInvalidInput
	ErrBusy           = models.ErrBusy
	ErrUpstreamScript = models.ErrUpstreamScript
	ErrUpstreamSpeech = models.ErrUpstreamSpeech
	ErrUpstreamMusic  = models.ErrUpstreamMusic
	ErrRender         = models.ErrRender
	ErrOutputInvalid  = models.ErrOutputInvalid
)

// ErrorKind - стабильный код ошибки для HTTP, метрик и журнала. nil дает "".
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	return models.ErrorCode(err)
}
