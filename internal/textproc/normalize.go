// Package textproc содержит обработку текста сценария: подготовку к озвучке,
// правила качества и вставку обязательных секций.
package textproc

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"finishflow/internal/model"
)

// speechReplacer - замены символов, которые TTS читает неправильно.
var speechReplacer = strings.NewReplacer(
	"~", "에서 ",
	"%", " 퍼센트",
	"&", " 그리고 ",
	"*", "",
	"#", "",
)

// aiWord - отдельное слово AI в любом регистре, но не часть OpenAI или EMAIL.
var aiWord = regexp.MustCompile(`(?i)\bAI\b`)

// SentencePause - разделитель предложений для TTS, дает паузу.
const SentencePause = ", "

// NormalizeForSpeech готовит текст сценария к озвучке: замены, схлопывание
// пробелов, разбиение на предложения и склейка через паузу.
func NormalizeForSpeech(text string) string {
	t := aiWord.ReplaceAllString(text, "에이아이")
	t = speechReplacer.Replace(t)
	t = strings.Join(strings.Fields(t), " ")
	if t == "" {
		return ""
	}
	return strings.Join(SplitSentences(t), SentencePause)
}

// SplitSentences режет текст после '.', '!', '?' и '…', если за ними идет пробел.
func SplitSentences(text string) []string {
	var out []string
	var b strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if !isSentenceEnd(r) {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func isSentenceEnd(r rune) bool {
	switch r {
	case '.', '!', '?', '…', '。':
		return true
	}
	return false
}

// Preview обрезает текст до n символов для логов и ответа.
func Preview(text string, n int) string {
	if utf8.RuneCountInString(text) <= n {
		return text
	}
	return string([]rune(text)[:n])
}

var titlePrefixes = []string{"제목:", "제목 :", "Title:", "title:"}

// ParseScript выделяет заголовок из ответа модели. Заголовком считается первая
// непустая строка с '#' или префиксом "제목:". Иначе заголовок - тема.
func ParseScript(raw, topic string) model.Script {
	raw = strings.TrimSpace(strings.ReplaceAll(raw, "\r\n", "\n"))
	lines := strings.Split(raw, "\n")
	first := strings.TrimSpace(lines[0])

	title := ""
	switch {
	case strings.HasPrefix(first, "#"):
		title = strings.TrimSpace(strings.TrimLeft(first, "#"))
	default:
		for _, p := range titlePrefixes {
			if strings.HasPrefix(first, p) {
				title = strings.TrimSpace(strings.TrimPrefix(first, p))
				break
			}
		}
	}
	if title == "" {
		return model.Script{Title: topic, Body: raw}
	}
	body := strings.TrimSpace(strings.Join(lines[1:], "\n"))
	return model.Script{Title: title, Body: body}
}
