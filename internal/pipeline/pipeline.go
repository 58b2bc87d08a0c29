// Package pipeline собирает видео по теме: сценарий, озвучка, фоновая музыка,
// рендер, проверка и выдача токена на скачивание.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"finishflow/internal/admission"
	"finishflow/internal/artifact"
	"finishflow/internal/media"
	"finishflow/internal/model"
	"finishflow/internal/preset"
	"finishflow/internal/service"
	"finishflow/internal/textproc"
	"finishflow/shared/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	previewRunes     = 120
	sideEffectBudget = 5 * time.Second
)

// OutputValidator проверяет готовое видео.
type OutputValidator interface {
	Validate(ctx context.Context, path string) media.ValidationResult
}

// Journal сохраняет итог запуска.
type Journal interface {
	Record(ctx context.Context, rec model.RunRecord) error
}

// Notifier публикует событие о готовом видео.
type Notifier interface {
	NotifyVideoReady(ctx context.Context, event model.VideoReadyEvent) error
}

// Dependencies - внешние исполнители. Music, Journal и Notifier могут быть nil.
type Dependencies struct {
	Script    service.ScriptGenerator
	Speech    service.SpeechSynthesizer
	Music     service.MusicGenerator
	Prober    media.Prober
	Renderer  media.Renderer
	Validator OutputValidator
	Store     *artifact.Store
	Gate      *admission.Gate
	Presets   *preset.Library
	Journal   Journal
	Notifier  Notifier
}

// Options - настройки запуска.
type Options struct {
	ScratchDir          string
	MusicEnabled        bool
	SpeechFallback      bool
	MinNarrationBytes   int64
	MinNarrationSeconds float64
	PublicBaseURL       string
	Rules               []textproc.Rule
}

// Pipeline выполняет не больше одного запуска одновременно (по Gate).
type Pipeline struct {
	deps   Dependencies
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// New проверяет зависимости и создает Pipeline.
func New(deps Dependencies, opts Options, logger *zap.Logger) (*Pipeline, error) {
	var missing []string
	if deps.Script == nil {
		missing = append(missing, "script generator")
	}
	if deps.Speech == nil {
		missing = append(missing, "speech synthesizer")
	}
	if deps.Prober == nil {
		missing = append(missing, "prober")
	}
	if deps.Renderer == nil {
		missing = append(missing, "renderer")
	}
	if deps.Validator == nil {
		missing = append(missing, "validator")
	}
	if deps.Store == nil {
		missing = append(missing, "artifact store")
	}
	if deps.Gate == nil {
		missing = append(missing, "admission gate")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("pipeline: missing dependencies: %s", strings.Join(missing, ", "))
	}
	if deps.Presets == nil {
		deps.Presets = preset.DefaultLibrary()
	}
	if opts.ScratchDir == "" {
		opts.ScratchDir = os.TempDir()
	}
	if opts.MinNarrationSeconds <= 0 {
		opts.MinNarrationSeconds = 3
	}
	if opts.Rules == nil {
		opts.Rules = textproc.DefaultRules
	}
	opts.PublicBaseURL = strings.TrimSuffix(opts.PublicBaseURL, "/")
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{deps: deps, opts: opts, logger: logger, now: time.Now}, nil
}

// scratch - временные файлы одного запуска.
type scratch struct {
	narration string
	fallback  string
	music     string
	video     string
}

func (p *Pipeline) scratchFor(runID string) scratch {
	base := filepath.Join(p.opts.ScratchDir, "finishflow_"+runID)
	return scratch{
		narration: base + "_voice.mp3",
		fallback:  base + "_voice_silent.wav",
		music:     base + "_bgm.wav",
		video:     base + "_video.mp4",
	}
}

// run - состояние одного запуска.
type run struct {
	id       string
	req      model.GenerationRequest
	log      *zap.Logger
	started  time.Time
	result   model.SubmitResult
	warnings []string
}

func (r *run) warn(msg string) {
	r.warnings = append(r.warnings, msg)
}

// Submit выполняет запуск синхронно. Если идет другой запуск, сразу
// возвращает ErrBusy. Отмена ctx после допуска запуск не прерывает:
// каждый шаг ограничен своим таймаутом.
func (p *Pipeline) Submit(ctx context.Context, req model.GenerationRequest) (*model.SubmitResult, error) {
	if !p.deps.Gate.TryAcquire() {
		runsTotal.WithLabelValues(string(model.RunStatusFailed), models.ErrCodeBusy).Inc()
		return nil, fmt.Errorf("%w: try again later", ErrBusy)
	}
	defer p.deps.Gate.Release()

	normalized, err := req.Normalize()
	if err != nil {
		runsTotal.WithLabelValues(string(model.RunStatusFailed), ErrorKind(err)).Inc()
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)
	r := &run{id: uuid.NewString(), req: normalized, started: p.now()}
	r.log = p.logger.With(zap.String("run_id", r.id))
	r.log.Info("Run started",
		zap.String("topic", textproc.Preview(normalized.Topic, 60)),
		zap.String("tone", string(normalized.Tone)),
		zap.String("kind", string(normalized.Kind)),
		zap.Int("target_duration_sec", normalized.TargetDurationSeconds),
	)

	err = p.execute(ctx, r)
	elapsed := p.now().Sub(r.started)
	runDuration.Observe(elapsed.Seconds())
	p.record(ctx, r, err)

	if err != nil {
		runsTotal.WithLabelValues(string(model.RunStatusFailed), ErrorKind(err)).Inc()
		r.log.Error("Run failed", zap.String("error_kind", ErrorKind(err)), zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, err
	}
	runsTotal.WithLabelValues(string(model.RunStatusSuccess), "").Inc()
	p.notify(ctx, r)
	r.log.Info("Run finished",
		zap.Duration("elapsed", elapsed),
		zap.Float64("duration_sec", r.result.DurationSeconds),
		zap.Bool("used_fallback", r.result.UsedFallback),
		zap.Bool("bgm_used", r.result.MusicUsed),
		zap.Int("warnings", len(r.warnings)),
	)
	res := r.result
	return &res, nil
}

func (p *Pipeline) execute(ctx context.Context, r *run) error {
	paths := p.scratchFor(r.id)
	registered := false
	defer func() {
		p.removeQuietly(r.log, paths.narration)
		p.removeQuietly(r.log, paths.fallback)
		p.removeQuietly(r.log, paths.music)
		if !registered {
			p.removeQuietly(r.log, paths.video)
		}
	}()

	script, err := p.generateScript(ctx, r)
	if err != nil {
		return err
	}

	narration, ttsInput, err := p.synthesize(ctx, r, script, paths)
	if err != nil {
		return err
	}

	presetID := preset.Select(r.req.Kind, r.req.Tone, narration.DurationSeconds)
	profile := p.deps.Presets.Get(presetID)
	music := p.fetchMusic(ctx, r, presetID, narration.DurationSeconds, paths.music)

	start := p.now()
	job := media.RenderJob{
		NarrationPath:   narration.Path,
		OutputPath:      paths.video,
		DurationSeconds: narration.DurationSeconds,
		Title:           script.Title,
		Profile:         profile,
	}
	if music != nil {
		job.MusicPath = music.Path
	}
	rendered, err := p.deps.Renderer.Render(ctx, job)
	observeStage("render", start)
	if err != nil {
		return wrapIfNot(err, ErrRender)
	}
	if rendered.FallbackReason != "" {
		r.warn("background music mix failed, rendered with narration only")
	}

	start = p.now()
	check := p.deps.Validator.Validate(ctx, paths.video)
	observeStage("validate", start)
	if !check.OK {
		return check.Err()
	}

	tok, err := p.deps.Store.Issue(paths.video)
	if err != nil {
		return fmt.Errorf("%w: register artifact: %v", models.ErrInternalServer, err)
	}
	registered = true

	r.result = model.SubmitResult{
		RunID:           r.id,
		Token:           tok.Value,
		DownloadURL:     p.opts.PublicBaseURL + "/download/" + tok.Value,
		ExpiresAt:       tok.ExpiresAt,
		Title:           script.Title,
		DurationSeconds: narration.DurationSeconds,
		SizeBytes:       check.SizeBytes,
		UsedFallback:    narration.Fallback,
		MusicUsed:       rendered.MusicMixed,
		TTSInputPreview: textproc.Preview(ttsInput, previewRunes),
		Warnings:        append([]string{}, r.warnings...),
	}
	if rendered.MusicMixed && music != nil {
		r.result.MusicPreset = music.PresetID
	}
	return nil
}

func (p *Pipeline) generateScript(ctx context.Context, r *run) (model.Script, error) {
	start := p.now()
	script, err := p.deps.Script.GenerateScript(ctx, r.req)
	observeStage("script", start)
	if err != nil {
		return model.Script{}, wrapIfNot(err, ErrUpstreamScript)
	}
	if strings.TrimSpace(script.Body) == "" {
		return model.Script{}, fmt.Errorf("%w: empty script", ErrUpstreamScript)
	}
	if strings.TrimSpace(script.Title) == "" {
		script.Title = r.req.Topic
	}

	script.Body = textproc.EnsureSection(script.Body, textproc.ClosingActionSection)
	for _, name := range textproc.Failed(textproc.Evaluate(script.Body, p.opts.Rules)) {
		r.warn("quality rule failed: " + name)
	}
	r.log.Debug("Script ready", zap.String("title", script.Title), zap.Int("body_chars", len([]rune(script.Body))))
	return script, nil
}

func (p *Pipeline) synthesize(ctx context.Context, r *run, script model.Script, paths scratch) (model.Narration, string, error) {
	ttsInput := textproc.NormalizeForSpeech(script.Body)
	narration := model.Narration{Path: paths.narration}

	start := p.now()
	size, err := p.deps.Speech.Synthesize(ctx, ttsInput, paths.narration)
	observeStage("speech", start)
	if err == nil && size < p.opts.MinNarrationBytes {
		err = fmt.Errorf("%w: narration is too small (%d bytes)", ErrUpstreamSpeech, size)
	}
	if err != nil {
		if !p.opts.SpeechFallback {
			return narration, ttsInput, wrapIfNot(err, ErrUpstreamSpeech)
		}
		r.log.Warn("Speech synthesis failed, using silent narration", zap.Error(err))
		p.removeQuietly(r.log, paths.narration)
		seconds := media.EstimateSpeechSeconds(ttsInput, p.opts.MinNarrationSeconds)
		size, err = media.WriteSilentWAV(paths.fallback, seconds)
		if err != nil {
			return narration, ttsInput, fmt.Errorf("%w: write silent narration: %v", ErrUpstreamSpeech, err)
		}
		speechFallbacksTotal.Inc()
		narration.Path = paths.fallback
		narration.Fallback = true
		r.warn("speech synthesis failed, silent narration used")
	}
	narration.SizeBytes = size

	start = p.now()
	probe, err := p.deps.Prober.Probe(ctx, narration.Path)
	observeStage("probe", start)
	if err != nil {
		return narration, ttsInput, fmt.Errorf("%w: probe narration: %v", ErrUpstreamSpeech, err)
	}
	if probe.DurationSeconds <= 0 {
		return narration, ttsInput, fmt.Errorf("%w: narration has no duration", ErrUpstreamSpeech)
	}
	narration.MeasuredSeconds = probe.DurationSeconds
	narration.DurationSeconds = math.Max(probe.DurationSeconds, p.opts.MinNarrationSeconds)
	r.log.Debug("Narration ready",
		zap.Float64("measured_sec", narration.MeasuredSeconds),
		zap.Float64("duration_sec", narration.DurationSeconds),
		zap.Bool("fallback", narration.Fallback),
	)
	return narration, ttsInput, nil
}

// fetchMusic никогда не прерывает запуск: любая ошибка дает nil и предупреждение.
func (p *Pipeline) fetchMusic(ctx context.Context, r *run, presetID preset.ID, seconds float64, path string) *model.Music {
	if !p.opts.MusicEnabled || p.deps.Music == nil {
		return nil
	}
	start := p.now()
	music, err := p.deps.Music.Generate(ctx, service.MusicRequest{
		Topic:           r.req.Topic,
		Preset:          string(presetID),
		DurationSeconds: seconds,
	}, path)
	observeStage("music", start)
	if err == nil && (music == nil || music.Path == "") {
		err = fmt.Errorf("%w: no file", ErrUpstreamMusic)
	}
	if err != nil {
		reason := musicFailureReason(err)
		musicFallbacksTotal.WithLabelValues(reason).Inc()
		r.log.Warn("Background music unavailable, continuing without it",
			zap.String("preset", string(presetID)),
			zap.String("reason", reason),
			zap.Error(err),
		)
		r.warn("background music unavailable: " + reason)
		p.removeQuietly(r.log, path)
		return nil
	}
	return music
}

func musicFailureReason(err error) string {
	switch {
	case errors.Is(err, service.ErrMusicRateLimited):
		return "rate_limited"
	case errors.Is(err, service.ErrMusicNoDownloadURL):
		return "no_download_url"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}

func (p *Pipeline) record(ctx context.Context, r *run, runErr error) {
	if p.deps.Journal == nil {
		return
	}
	rec := model.RunRecord{
		ID:          r.id,
		Topic:       r.req.Topic,
		Tone:        string(r.req.Tone),
		Kind:        string(r.req.Kind),
		Status:      model.RunStatusSuccess,
		StartedAt:   r.started.UTC(),
		CompletedAt: p.now().UTC(),
	}
	if runErr != nil {
		rec.Status = model.RunStatusFailed
		rec.ErrorKind = ErrorKind(runErr)
		rec.Error = runErr.Error()
	} else {
		rec.DurationSeconds = r.result.DurationSeconds
		rec.SizeBytes = r.result.SizeBytes
		rec.UsedFallback = r.result.UsedFallback
		rec.MusicUsed = r.result.MusicUsed
		rec.MusicPreset = r.result.MusicPreset
	}
	ctx, cancel := context.WithTimeout(ctx, sideEffectBudget)
	defer cancel()
	if err := p.deps.Journal.Record(ctx, rec); err != nil {
		r.log.Warn("Failed to record run in journal", zap.Error(err))
	}
}

func (p *Pipeline) notify(ctx context.Context, r *run) {
	if p.deps.Notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, sideEffectBudget)
	defer cancel()
	err := p.deps.Notifier.NotifyVideoReady(ctx, model.VideoReadyEvent{
		RunID:           r.id,
		Status:          model.RunStatusSuccess,
		Title:           r.result.Title,
		DurationSeconds: r.result.DurationSeconds,
		ExpiresAt:       r.result.ExpiresAt,
		DownloadURL:     r.result.DownloadURL,
	})
	if err != nil {
		r.log.Warn("Failed to publish video ready event", zap.Error(err))
	}
}

func (p *Pipeline) removeQuietly(log *zap.Logger, path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Debug("Failed to remove scratch file", zap.String("path", path), zap.Error(err))
	}
}

func wrapIfNot(err, target error) error {
	if errors.Is(err, target) {
		return err
	}
	return fmt.Errorf("%w: %w", target, err)
}
