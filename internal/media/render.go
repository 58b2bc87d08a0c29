package media

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"finishflow/internal/preset"
	"finishflow/shared/models"

	"go.uber.org/zap"
)

// maxTitleRunes - длина заголовка на кадре.
const maxTitleRunes = 22

// RenderJob - входные данные одного рендера.
type RenderJob struct {
	NarrationPath   string
	MusicPath       string // пусто, если музыки нет
	OutputPath      string
	DurationSeconds float64
	Title           string
	Profile         preset.Profile
}

// RenderResult - как именно был собран файл.
type RenderResult struct {
	MusicMixed     bool
	Attempts       int
	FallbackReason string
}

// Renderer собирает видео из озвучки и музыки.
type Renderer interface {
	Render(ctx context.Context, job RenderJob) (*RenderResult, error)
}

// FFmpegRenderer - Renderer на ffmpeg: однотонный фон, заголовок, голос и
// зацикленная тихая музыка.
type FFmpegRenderer struct {
	bin        string
	runner     Runner
	timeout    time.Duration // без музыки
	mixTimeout time.Duration // с микшированием
	logger     *zap.Logger
}

// NewFFmpegRenderer создает рендерер.
func NewFFmpegRenderer(bin string, runner Runner, timeout, mixTimeout time.Duration, logger *zap.Logger) *FFmpegRenderer {
	if bin == "" {
		bin = "ffmpeg"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FFmpegRenderer{bin: bin, runner: runner, timeout: timeout, mixTimeout: mixTimeout, logger: logger}
}

// Render запускает ffmpeg один раз. Если с музыкой граф микширования упал,
// делается одна попытка с прямым маппингом фона и голоса без музыки.
// Таймаут не повторяется.
func (r *FFmpegRenderer) Render(ctx context.Context, job RenderJob) (*RenderResult, error) {
	if job.NarrationPath == "" || job.OutputPath == "" {
		return nil, fmt.Errorf("%w: narration and output paths are required", models.ErrRender)
	}
	if job.DurationSeconds <= 0 {
		return nil, fmt.Errorf("%w: duration must be positive", models.ErrRender)
	}
	log := r.logger.With(zap.String("output", job.OutputPath), zap.Float64("duration", job.DurationSeconds))

	if job.MusicPath == "" {
		if err := r.run(ctx, r.timeout, DirectMapArgs(job)); err != nil {
			return nil, fmt.Errorf("%w: %w", models.ErrRender, err)
		}
		return &RenderResult{Attempts: 1}, nil
	}

	err := r.run(ctx, r.mixTimeout, MixArgs(job))
	if err == nil {
		return &RenderResult{MusicMixed: true, Attempts: 1}, nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.TimedOut {
		return nil, fmt.Errorf("%w: %w", models.ErrRender, err)
	}

	log.Warn("Mix filter graph failed, falling back to direct map without music", zap.Error(err))
	removeQuietly(job.OutputPath)
	if fbErr := r.run(ctx, r.timeout, DirectMapArgs(job)); fbErr != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrRender, fbErr)
	}
	return &RenderResult{Attempts: 2, FallbackReason: err.Error()}, nil
}

func (r *FFmpegRenderer) run(ctx context.Context, timeout time.Duration, args []string) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	_, err := r.runner.Run(ctx, r.bin, args...)
	return err
}

// DirectMapArgs - фон из lavfi и голос, без фильтров аудио.
func DirectMapArgs(job RenderJob) []string {
	p := job.Profile
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", backgroundSource(p, job.DurationSeconds),
		"-i", job.NarrationPath,
	}
	if vf := titleFilter(p, job.Title); vf != "" {
		args = append(args, "-vf", vf)
	}
	args = append(args, "-map", "0:v:0", "-map", "1:a:0")
	args = append(args, p.EncoderArgs()...)
	args = append(args, "-t", formatSeconds(job.DurationSeconds), "-shortest", job.OutputPath)
	return args
}

// MixArgs - голос на полной громкости и зацикленная музыка на громкости пресета,
// amix обрезает по длине голоса.
func MixArgs(job RenderJob) []string {
	p := job.Profile
	args := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", backgroundSource(p, job.DurationSeconds),
		"-i", job.NarrationPath,
		"-stream_loop", "-1", "-i", job.MusicPath,
		"-filter_complex", MixGraph(p, job.Title),
		"-map", "[vout]", "-map", "[aout]",
	}
	args = append(args, p.EncoderArgs()...)
	args = append(args, "-t", formatSeconds(job.DurationSeconds), "-shortest", job.OutputPath)
	return args
}

// MixGraph - filter_complex для фона с заголовком и двух аудиодорожек.
func MixGraph(p preset.Profile, title string) string {
	sampleRate := p.SampleRate
	if sampleRate <= 0 {
		sampleRate = 44100
	}
	format := fmt.Sprintf("aformat=sample_fmts=fltp:sample_rates=%d:channel_layouts=stereo", sampleRate)

	video := "[0:v]null[vout]"
	if vf := titleFilter(p, title); vf != "" {
		video = "[0:v]" + vf + "[vout]"
	}
	return strings.Join([]string{
		video,
		fmt.Sprintf("[1:a]%s,volume=1.0[a1]", format),
		fmt.Sprintf("[2:a]%s,volume=%s[a2]", format, strconv.FormatFloat(p.MusicGain, 'f', 2, 64)),
		"[a1][a2]amix=inputs=2:duration=first:dropout_transition=0[aout]",
	}, ";")
}

func backgroundSource(p preset.Profile, duration float64) string {
	bg := p.Background
	if bg == "" {
		bg = "black"
	}
	return fmt.Sprintf("color=c=%s:s=%s:r=%d:d=%s", bg, p.Size(), p.FrameRate, formatSeconds(duration))
}

func titleFilter(p preset.Profile, title string) string {
	text := EscapeDrawtext(title)
	if text == "" || p.FontSize <= 0 {
		return ""
	}
	color := p.FontColor
	if color == "" {
		color = "white"
	}
	return fmt.Sprintf("drawtext=fontcolor=%s:fontsize=%d:text='%s':x=(w-text_w)/2:y=(h-text_h)/2", color, p.FontSize, text)
}

// EscapeDrawtext обрезает заголовок и убирает символы, ломающие drawtext.
func EscapeDrawtext(title string) string {
	title = strings.Join(strings.Fields(title), " ")
	if r := []rune(title); len(r) > maxTitleRunes {
		title = string(r[:maxTitleRunes])
	}
	return strings.NewReplacer(
		`\`, "",
		"'", "’",
		":", `\:`,
		"%", `\%`,
	).Replace(title)
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

func removeQuietly(path string) {
	if path == "" {
		return
	}
	_ = os.Remove(path)
}
