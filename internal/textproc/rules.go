package textproc

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Rule - именованная проверка качества сценария.
type Rule struct {
	Name  string
	Check func(text string) bool
}

// RuleResult - результат одной проверки.
type RuleResult struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
}

var (
	digitRe  = regexp.MustCompile(`\d`)
	actionRe = regexp.MustCompile(`(세요|십시오|합시다|해요|보세요)[.!?…]*$`)
	anyActRe = regexp.MustCompile(`(세요|십시오|합시다)`)
)

const (
	minScriptRunes      = 80
	maxAvgSentenceRunes = 60
)

// DefaultRules - проверки сценария. Провал правила дает предупреждение, не ошибку.
var DefaultRules = []Rule{
	{Name: "not_empty", Check: func(s string) bool { return strings.TrimSpace(s) != "" }},
	{Name: "min_length", Check: func(s string) bool { return utf8.RuneCountInString(strings.TrimSpace(s)) >= minScriptRunes }},
	{Name: "has_number", Check: digitRe.MatchString},
	{Name: "has_action_verb", Check: anyActRe.MatchString},
	{Name: "short_sentences", Check: shortSentences},
	{Name: "ends_with_action", Check: EndsWithAction},
}

// Evaluate прогоняет все правила и возвращает результат каждого.
func Evaluate(text string, rules []Rule) []RuleResult {
	results := make([]RuleResult, 0, len(rules))
	for _, r := range rules {
		results = append(results, RuleResult{Name: r.Name, Passed: r.Check(text)})
	}
	return results
}

// Failed - имена непройденных правил.
func Failed(results []RuleResult) []string {
	var names []string
	for _, r := range results {
		if !r.Passed {
			names = append(names, r.Name)
		}
	}
	return names
}

// EndsWithAction - последнее предложение сценария является призывом к действию.
func EndsWithAction(text string) bool {
	sentences := SplitSentences(strings.Join(strings.Fields(text), " "))
	if len(sentences) == 0 {
		return false
	}
	return actionRe.MatchString(sentences[len(sentences)-1])
}

func shortSentences(text string) bool {
	sentences := SplitSentences(strings.Join(strings.Fields(text), " "))
	if len(sentences) == 0 {
		return false
	}
	total := 0
	for _, s := range sentences {
		total += utf8.RuneCountInString(s)
	}
	return total/len(sentences) <= maxAvgSentenceRunes
}
