package preset

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed presets.yaml
var defaultPresetsYAML []byte

// Profile - настройки рендера для пресета.
type Profile struct {
	ID           ID
	MusicGain    float64
	Width        int
	Height       int
	FrameRate    int
	Background   string
	VideoCodec   string
	AudioCodec   string
	AudioBitrate string
	PixelFormat  string
	SampleRate   int
	FontColor    string
	FontSize     int
	ExtraArgs    []string
}

// Size возвращает размер кадра в формате ffmpeg (WxH).
func (p Profile) Size() string {
	return strconv.Itoa(p.Width) + "x" + strconv.Itoa(p.Height)
}

// EncoderArgs - аргументы кодирования видео и аудио.
func (p Profile) EncoderArgs() []string {
	args := make([]string, 0, 10+len(p.ExtraArgs))
	if p.VideoCodec != "" {
		args = append(args, "-c:v", p.VideoCodec)
	}
	if p.PixelFormat != "" {
		args = append(args, "-pix_fmt", p.PixelFormat)
	}
	if p.AudioCodec != "" {
		args = append(args, "-c:a", p.AudioCodec)
	}
	if p.AudioBitrate != "" {
		args = append(args, "-b:a", p.AudioBitrate)
	}
	args = append(args, p.ExtraArgs...)
	return args
}

// Library хранит профили по пресетам.
type Library struct {
	profiles map[ID]Profile
	fallback Profile
}

type rawProfile struct {
	MusicGain    *float64 `yaml:"music_gain"`
	Width        *int     `yaml:"width"`
	Height       *int     `yaml:"height"`
	FrameRate    *int     `yaml:"frame_rate"`
	Background   *string  `yaml:"background"`
	VideoCodec   *string  `yaml:"video_codec"`
	AudioCodec   *string  `yaml:"audio_codec"`
	AudioBitrate *string  `yaml:"audio_bitrate"`
	PixelFormat  *string  `yaml:"pixel_format"`
	SampleRate   *int     `yaml:"sample_rate"`
	FontColor    *string  `yaml:"font_color"`
	FontSize     *int     `yaml:"font_size"`
	ExtraArgs    []string `yaml:"extra_args"`
}

func (r rawProfile) applyTo(p Profile) Profile {
	if r.MusicGain != nil {
		p.MusicGain = *r.MusicGain
	}
	if r.Width != nil {
		p.Width = *r.Width
	}
	if r.Height != nil {
		p.Height = *r.Height
	}
	if r.FrameRate != nil {
		p.FrameRate = *r.FrameRate
	}
	if r.Background != nil {
		p.Background = *r.Background
	}
	if r.VideoCodec != nil {
		p.VideoCodec = *r.VideoCodec
	}
	if r.AudioCodec != nil {
		p.AudioCodec = *r.AudioCodec
	}
	if r.AudioBitrate != nil {
		p.AudioBitrate = *r.AudioBitrate
	}
	if r.PixelFormat != nil {
		p.PixelFormat = *r.PixelFormat
	}
	if r.SampleRate != nil {
		p.SampleRate = *r.SampleRate
	}
	if r.FontColor != nil {
		p.FontColor = *r.FontColor
	}
	if r.FontSize != nil {
		p.FontSize = *r.FontSize
	}
	if r.ExtraArgs != nil {
		p.ExtraArgs = append([]string(nil), r.ExtraArgs...)
	}
	return p
}

// builtin - значения на случай пустого файла.
var builtin = Profile{
	MusicGain:    0.22,
	Width:        1280,
	Height:       720,
	FrameRate:    30,
	Background:   "black",
	VideoCodec:   "libx264",
	AudioCodec:   "aac",
	AudioBitrate: "192k",
	PixelFormat:  "yuv420p",
	SampleRate:   44100,
	FontColor:    "white",
	FontSize:     48,
}

// ParseLibrary разбирает YAML с секциями defaults и presets.
func ParseLibrary(data []byte) (*Library, error) {
	var payload struct {
		Defaults rawProfile            `yaml:"defaults"`
		Presets  map[string]rawProfile `yaml:"presets"`
	}
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("parse preset file: %w", err)
	}

	base := payload.Defaults.applyTo(builtin)
	lib := &Library{profiles: make(map[ID]Profile, len(payload.Presets)), fallback: base}
	for name, raw := range payload.Presets {
		p := raw.applyTo(base)
		p.ID = ID(name)
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("preset %s: %w", name, err)
		}
		lib.profiles[p.ID] = p
	}
	if cl, ok := lib.profiles[CalmLoop]; ok {
		lib.fallback = cl
	}
	return lib, nil
}

func (p Profile) validate() error {
	switch {
	case p.MusicGain < 0 || p.MusicGain > 1:
		return fmt.Errorf("music_gain %.2f out of range [0,1]", p.MusicGain)
	case p.Width <= 0 || p.Height <= 0:
		return errors.New("frame size must be positive")
	case p.FrameRate <= 0:
		return errors.New("frame_rate must be positive")
	}
	return nil
}

// DefaultLibrary - встроенный presets.yaml.
func DefaultLibrary() *Library {
	lib, err := ParseLibrary(defaultPresetsYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded presets.yaml is invalid: %v", err))
	}
	return lib
}

// LoadLibrary читает файл пресетов. Пустой путь дает встроенную библиотеку.
func LoadLibrary(path string) (*Library, error) {
	if path == "" {
		return DefaultLibrary(), nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("load preset file: %w", err)
	}
	return ParseLibrary(data)
}

// Get возвращает профиль пресета. Для неизвестного ID - профиль CALM_LOOP,
// поэтому рендер всегда получает настройки.
func (l *Library) Get(id ID) Profile {
	if l == nil {
		p := builtin
		p.ID = id
		return p
	}
	if p, ok := l.profiles[id]; ok {
		return p
	}
	p := l.fallback
	if p.ID == "" {
		p.ID = id
	}
	return p
}
