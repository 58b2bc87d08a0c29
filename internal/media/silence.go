package media

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"unicode/utf8"
)

const (
	silenceSampleRate = 16000
	// runesPerSecond - грубая оценка скорости речи.
	runesPerSecond = 6.0
)

// EstimateSpeechSeconds - ожидаемая длительность озвучки текста, не меньше minSeconds.
func EstimateSpeechSeconds(text string, minSeconds float64) float64 {
	sec := float64(utf8.RuneCountInString(text)) / runesPerSecond
	return math.Max(sec, minSeconds)
}

// SilentWAV - детерминированный PCM WAV с тишиной, 16 бит моно.
func SilentWAV(seconds float64, sampleRate int) []byte {
	if sampleRate <= 0 {
		sampleRate = silenceSampleRate
	}
	totalSamples := int(math.Ceil(seconds * float64(sampleRate)))
	if totalSamples < sampleRate {
		totalSamples = sampleRate
	}
	dataSize := totalSamples * 2

	buf := bytes.NewBuffer(make([]byte, 0, 44+dataSize))
	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataSize))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))           // размер fmt chunk
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))            // PCM
	_ = binary.Write(buf, binary.LittleEndian, uint16(1))            // моно
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))   // sample rate
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*2)) // byte rate
	_ = binary.Write(buf, binary.LittleEndian, uint16(2))            // block align
	_ = binary.Write(buf, binary.LittleEndian, uint16(16))           // бит на сэмпл
	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataSize))
	buf.Write(make([]byte, dataSize))
	return buf.Bytes()
}

// WriteSilentWAV пишет тишину нужной длительности в path.
func WriteSilentWAV(path string, seconds float64) (int64, error) {
	data := SilentWAV(seconds, silenceSampleRate)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}
