package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"finishflow/shared/models"

	openaigo "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// SpeechSynthesizer озвучивает текст и пишет аудио в файл.
type SpeechSynthesizer interface {
	// Synthesize возвращает размер записанного файла.
	Synthesize(ctx context.Context, text, outPath string) (int64, error)
}

// SpeechOptions - параметры TTS.
type SpeechOptions struct {
	APIKey  string
	BaseURL string
	Model   string
	Voice   string
	Speed   float64
	Timeout time.Duration
}

type openAISpeech struct {
	client *openaigo.Client
	opts   SpeechOptions
	logger *zap.Logger
}

// NewOpenAISpeech создает синтезатор на /v1/audio/speech.
func NewOpenAISpeech(opts SpeechOptions, logger *zap.Logger) SpeechSynthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	conf := openaigo.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		conf.BaseURL = strings.TrimSuffix(opts.BaseURL, "/")
	}
	conf.HTTPClient = &http.Client{Timeout: opts.Timeout}
	return &openAISpeech{
		client: openaigo.NewClientWithConfig(conf),
		opts:   opts,
		logger: logger.With(zap.String("tts_model", opts.Model), zap.String("voice", opts.Voice)),
	}
}

// Synthesize делает один запрос без повторов. При ошибке частично записанный файл удаляется.
func (s *openAISpeech) Synthesize(ctx context.Context, text, outPath string) (int64, error) {
	if strings.TrimSpace(text) == "" {
		return 0, fmt.Errorf("%w: empty input text", models.ErrUpstreamSpeech)
	}
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.client.CreateSpeech(ctx, openaigo.CreateSpeechRequest{
		Model:          openaigo.SpeechModel(s.opts.Model),
		Input:          text,
		Voice:          openaigo.SpeechVoice(s.opts.Voice),
		ResponseFormat: openaigo.SpeechResponseFormatMp3,
		Speed:          s.opts.Speed,
	})
	if err != nil {
		s.logger.Error("Speech request failed", zap.Duration("duration", time.Since(start)), zap.Error(err))
		return 0, fmt.Errorf("%w: %v", models.ErrUpstreamSpeech, err)
	}
	defer resp.Close()

	f, err := os.Create(outPath)
	if err != nil {
		return 0, fmt.Errorf("%w: create %s: %v", models.ErrUpstreamSpeech, outPath, err)
	}
	n, copyErr := io.Copy(f, resp)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(outPath)
		if copyErr == nil {
			copyErr = closeErr
		}
		s.logger.Error("Failed to save speech audio", zap.String("path", outPath), zap.Error(copyErr))
		return 0, fmt.Errorf("%w: save audio: %v", models.ErrUpstreamSpeech, copyErr)
	}

	s.logger.Info("Speech synthesized",
		zap.Duration("duration", time.Since(start)),
		zap.Int("input_chars", len([]rune(text))),
		zap.Int64("size_bytes", n),
	)
	return n, nil
}
