package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"finishflow/internal/model"
	"finishflow/internal/textproc"
	"finishflow/shared/models"

	"go.uber.org/zap"
)

// ScriptGenerator пишет сценарий озвучки по теме.
type ScriptGenerator interface {
	GenerateScript(ctx context.Context, req model.GenerationRequest) (model.Script, error)
}

const scriptSystemPrompt = "You write Korean voiceover scripts that sound natural for middle-aged/older audiences. " +
	"Use short spoken sentences. Add natural pauses. " +
	"Sound like a calm YouTube narrator speaking slowly and clearly. Avoid hype."

// toneHints - пожелания к подаче по тону.
var toneHints = map[model.Tone]string{
	model.ToneCalm:        "차분하고 편안하게",
	model.ToneInfo:        "정보를 정확하고 알기 쉽게",
	model.ToneDocumentary: "다큐멘터리 내레이션처럼 담담하게",
	model.ToneUpbeat:      "밝고 활기차게",
	model.ToneHealth:      "건강 정보를 조심스럽고 정확하게",
}

// BuildScriptPrompts возвращает системный и пользовательский промпты.
func BuildScriptPrompts(req model.GenerationRequest) (system, user string) {
	hint, ok := toneHints[req.Tone]
	if !ok {
		hint = toneHints[model.ToneCalm]
	}
	var b strings.Builder
	fmt.Fprintf(&b, "주제: %q\n\n요구사항:\n", req.Topic)
	fmt.Fprintf(&b, "- %s 분량\n", durationLabel(req.TargetDurationSeconds))
	fmt.Fprintf(&b, "- 말투: %s\n", hint)
	b.WriteString("- 문장 짧게\n")
	b.WriteString("- 어려운 용어 금지\n")
	b.WriteString("- 마지막은 행동 1가지로 끝내기\n")
	b.WriteString("- 말하듯이 쓰기 (설명문체 금지)\n")
	b.WriteString("- 첫 줄은 \"제목: ...\" 형식의 짧은 제목\n\n")
	b.WriteString("스크립트만 출력")
	return scriptSystemPrompt, b.String()
}

func durationLabel(seconds int) string {
	switch {
	case seconds <= 0:
		return "45~60초"
	case seconds < 120:
		return fmt.Sprintf("약 %d초", seconds)
	default:
		return fmt.Sprintf("약 %d분", (seconds+30)/60)
	}
}

type scriptGenerator struct {
	ai          AIClient
	temperature float64
	timeout     time.Duration
	logger      *zap.Logger
}

// NewScriptGenerator создает генератор сценария поверх AIClient.
func NewScriptGenerator(ai AIClient, temperature float64, timeout time.Duration, logger *zap.Logger) ScriptGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &scriptGenerator{ai: ai, temperature: temperature, timeout: timeout, logger: logger}
}

// GenerateScript делает один запрос к модели, без повторов.
func (g *scriptGenerator) GenerateScript(ctx context.Context, req model.GenerationRequest) (model.Script, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	system, user := BuildScriptPrompts(req)
	temperature := g.temperature
	raw, _, err := g.ai.GenerateText(ctx, system, user, GenerationParams{Temperature: &temperature})
	if err != nil {
		return model.Script{}, fmt.Errorf("%w: %w", models.ErrUpstreamScript, err)
	}
	script := textproc.ParseScript(raw, req.Topic)
	if strings.TrimSpace(script.Body) == "" {
		return model.Script{}, fmt.Errorf("%w: empty script body", models.ErrUpstreamScript)
	}
	g.logger.Debug("Script generated", zap.String("title", script.Title), zap.Int("body_chars", len([]rune(script.Body))))
	return script, nil
}
