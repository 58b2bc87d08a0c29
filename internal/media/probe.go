package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ErrProbeFailed - ffprobe не смог разобрать файл.
var ErrProbeFailed = errors.New("probe failed")

// Stream - поток по данным ffprobe.
type Stream struct {
	Index           int
	CodecType       string
	CodecName       string
	Width           int
	Height          int
	DurationSeconds float64
}

// ProbeResult - разобранный вывод ffprobe.
type ProbeResult struct {
	FormatName      string
	DurationSeconds float64
	SizeBytes       int64
	Streams         []Stream
}

// PrimaryVideo - первый видеопоток с известным кодеком.
func (p *ProbeResult) PrimaryVideo() (Stream, bool) {
	for _, s := range p.Streams {
		if s.CodecType == "video" && s.CodecName != "" {
			return s, true
		}
	}
	return Stream{}, false
}

// HasAudio - есть ли аудиопоток.
func (p *ProbeResult) HasAudio() bool {
	for _, s := range p.Streams {
		if s.CodecType == "audio" {
			return true
		}
	}
	return false
}

// Prober измеряет медиафайл.
type Prober interface {
	Probe(ctx context.Context, path string) (*ProbeResult, error)
}

// FFprobe - Prober на ffprobe с JSON выводом.
type FFprobe struct {
	bin     string
	runner  Runner
	timeout time.Duration
}

// NewFFprobe создает FFprobe. timeout применяется к каждому вызову.
func NewFFprobe(bin string, runner Runner, timeout time.Duration) *FFprobe {
	if bin == "" {
		bin = "ffprobe"
	}
	return &FFprobe{bin: bin, runner: runner, timeout: timeout}
}

// Probe запускает ffprobe и разбирает результат.
func (f *FFprobe) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrProbeFailed)
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	res, err := f.runner.Run(ctx, f.bin,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProbeFailed, err)
	}
	return parseProbeOutput(res.Stdout)
}

type probeJSON struct {
	Streams []struct {
		Index     int    `json:"index"`
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		FormatName string `json:"format_name"`
		Duration   string `json:"duration"`
		Size       string `json:"size"`
	} `json:"format"`
}

func parseProbeOutput(data []byte) (*ProbeResult, error) {
	var raw probeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode ffprobe output: %v", ErrProbeFailed, err)
	}
	out := &ProbeResult{
		FormatName:      raw.Format.FormatName,
		DurationSeconds: parseSeconds(raw.Format.Duration),
	}
	if raw.Format.Size != "" {
		out.SizeBytes, _ = strconv.ParseInt(raw.Format.Size, 10, 64)
	}
	for _, s := range raw.Streams {
		out.Streams = append(out.Streams, Stream{
			Index:           s.Index,
			CodecType:       s.CodecType,
			CodecName:       s.CodecName,
			Width:           s.Width,
			Height:          s.Height,
			DurationSeconds: parseSeconds(s.Duration),
		})
	}
	// у некоторых контейнеров длительность есть только у потоков
	if out.DurationSeconds == 0 {
		for _, s := range out.Streams {
			if s.DurationSeconds > out.DurationSeconds {
				out.DurationSeconds = s.DurationSeconds
			}
		}
	}
	return out, nil
}

// parseSeconds разбирает строку ffprobe; "N/A" и мусор дают 0.
func parseSeconds(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
