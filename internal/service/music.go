package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"finishflow/internal/model"
	"finishflow/shared/models"

	"go.uber.org/zap"
)

// ErrMusicRateLimited - AudioFlow ответил 429.
var ErrMusicRateLimited = fmt.Errorf("%w: rate limited", models.ErrUpstreamMusic)

// ErrMusicNoDownloadURL - в ответе нет ссылки на файл.
var ErrMusicNoDownloadURL = fmt.Errorf("%w: no download url", models.ErrUpstreamMusic)

// MusicRequest - параметры генерации фоновой музыки.
type MusicRequest struct {
	Topic           string
	Preset          string
	DurationSeconds float64
}

// MusicGenerator генерирует фоновую музыку и сохраняет ее в outPath.
type MusicGenerator interface {
	Generate(ctx context.Context, req MusicRequest, outPath string) (*model.Music, error)
}

type audioFlowMakeRequest struct {
	Topic       string `json:"topic"`
	Preset      string `json:"preset"`
	DurationSec int    `json:"duration_sec"`
}

type audioFlowMakeResponse struct {
	OK   bool   `json:"ok"`
	Code string `json:"code"`
	Data struct {
		Audio struct {
			DownloadURL string `json:"download_url"`
		} `json:"audio"`
	} `json:"data"`
}

type audioFlowClient struct {
	baseURL string
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewAudioFlowClient создает клиент AudioFlow. timeout действует на весь вызов,
// включая скачивание файла.
func NewAudioFlowClient(baseURL string, timeout time.Duration, logger *zap.Logger) MusicGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &audioFlowClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{},
		timeout: timeout,
		logger:  logger.With(zap.String("api_url", baseURL)),
	}
}

// Generate вызывает POST /make и скачивает полученный WAV.
func (c *audioFlowClient) Generate(ctx context.Context, req MusicRequest, outPath string) (*model.Music, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	log := c.logger.With(zap.String("preset", req.Preset))

	body, err := json.Marshal(audioFlowMakeRequest{
		Topic:       req.Topic,
		Preset:      req.Preset,
		DurationSec: int(math.Round(req.DurationSeconds)),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", models.ErrUpstreamMusic, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/make", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", models.ErrUpstreamMusic, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	log.Debug("Requesting background music")
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrUpstreamMusic, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrMusicRateLimited
	}

	var payload audioFlowMakeResponse
	decodeErr := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload)
	if resp.StatusCode != http.StatusOK || decodeErr != nil || !payload.OK {
		code := payload.Code
		if code == "" {
			code = fmt.Sprintf("HTTP_%d", resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: audioflow failed: %s", models.ErrUpstreamMusic, code)
	}
	dlPath := payload.Data.Audio.DownloadURL
	if dlPath == "" {
		return nil, ErrMusicNoDownloadURL
	}

	remote := dlPath
	if !strings.HasPrefix(dlPath, "http://") && !strings.HasPrefix(dlPath, "https://") {
		remote = c.baseURL + dlPath
	}
	if err := c.download(ctx, remote, outPath); err != nil {
		_ = os.Remove(outPath)
		return nil, err
	}
	log.Info("Background music downloaded", zap.String("path", outPath))
	return &model.Music{PresetID: req.Preset, Path: outPath, RemoteURL: remote}, nil
}

func (c *audioFlowClient) download(ctx context.Context, url, outPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: create download request: %v", models.ErrUpstreamMusic, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: download: %w", models.ErrUpstreamMusic, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: download returned HTTP_%d", models.ErrUpstreamMusic, resp.StatusCode)
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("%w: create %s: %w", models.ErrUpstreamMusic, outPath, err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("%w: save: %w", models.ErrUpstreamMusic, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %w", models.ErrUpstreamMusic, errors.New("downloaded file is empty"))
	}
	return nil
}
