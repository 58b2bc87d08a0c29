package textproc

import "strings"

// SectionSpec описывает обязательную часть сценария.
// Present должен возвращать true для текста, уже содержащего Content.
type SectionSpec struct {
	Name    string
	Present func(text string) bool
	Content string
}

// EnsureSection дописывает Content в конец, если секции нет.
// Существующий текст не меняется. Повторный вызов ничего не добавляет.
func EnsureSection(text string, section SectionSpec) string {
	content := strings.TrimSpace(section.Content)
	if content == "" {
		return text
	}
	if section.Present != nil && section.Present(text) {
		return text
	}
	trimmed := strings.TrimRight(text, " \t\r\n")
	if strings.HasSuffix(trimmed, content) {
		return text
	}
	if trimmed == "" {
		return content
	}
	return trimmed + "\n\n" + content
}

// ClosingActionSection - сценарий должен заканчиваться одним конкретным действием.
var ClosingActionSection = SectionSpec{
	Name:    "closing_action",
	Present: EndsWithAction,
	Content: "오늘 딱 한 가지만 기억하세요. 지금 바로 5분만 천천히 실천해 보세요.",
}
