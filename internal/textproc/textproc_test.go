package textproc

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeForSpeech(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "  \n\t ", ""},
		{"collapse whitespace", "무릎이   아플 때\n\n걷기", "무릎이 아플 때 걷기"},
		{"range and abbreviation", "하루 3~5분 AI 코치", "하루 3에서 5분 에이아이 코치"},
		{"lowercase abbreviation", "ai 기술을 써요", "에이아이 기술을 써요"},
		{"abbreviation before hangul", "AI코치와 걷기", "에이아이코치와 걷기"},
		{"abbreviation inside word kept", "OpenAI 서비스를 써 보세요.", "OpenAI 서비스를 써 보세요."},
		{"email kept", "EMAIL을 확인하세요.", "EMAIL을 확인하세요."},
		{"percent", "30% 줄어요", "30 퍼센트 줄어요"},
		{"markdown removed", "**천천히** 걸으세요", "천천히 걸으세요"},
		{"sentences joined with pause", "첫 문장입니다. 둘째 문장이죠! 셋째?", "첫 문장입니다., 둘째 문장이죠!, 셋째?"},
		{"decimal is not a sentence end", "1.5킬로미터 걸으세요.", "1.5킬로미터 걸으세요."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeForSpeech(tt.in))
		})
	}
}

func TestSplitSentences(t *testing.T) {
	assert.Equal(t, []string{"가.", "나!", "다"}, SplitSentences("가. 나! 다"))
	assert.Nil(t, SplitSentences("   "))
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "가나", Preview("가나", 5))
	assert.Equal(t, "가나다", Preview("가나다라마", 3))
}

func TestParseScript(t *testing.T) {
	t.Run("markdown heading", func(t *testing.T) {
		s := ParseScript("# 걷기의 힘\n\n무릎을 위해 걸으세요.", "topic")
		assert.Equal(t, "걷기의 힘", s.Title)
		assert.Equal(t, "무릎을 위해 걸으세요.", s.Body)
	})
	t.Run("korean title prefix", func(t *testing.T) {
		s := ParseScript("제목: 아침 걷기\r\n본문입니다.", "topic")
		assert.Equal(t, "아침 걷기", s.Title)
		assert.Equal(t, "본문입니다.", s.Body)
	})
	t.Run("no title falls back to topic", func(t *testing.T) {
		s := ParseScript("  그냥 본문입니다.  ", "무릎 통증")
		assert.Equal(t, "무릎 통증", s.Title)
		assert.Equal(t, "그냥 본문입니다.", s.Body)
	})
}

func TestEvaluate(t *testing.T) {
	good := strings.Repeat("무릎이 아플 때는 하루 10분씩 평지를 걸어요. ", 4) + "오늘 저녁 10분만 걸어 보세요."
	results := Evaluate(good, DefaultRules)
	assert.Len(t, results, len(DefaultRules))
	assert.Empty(t, Failed(results))

	bad := Evaluate("", DefaultRules)
	failed := Failed(bad)
	assert.Contains(t, failed, "not_empty")
	assert.Contains(t, failed, "has_number")
	assert.Contains(t, failed, "ends_with_action")

	// каждое правило наблюдаемо отдельно
	noNumber := Evaluate("천천히 걸으세요.", []Rule{DefaultRules[2], DefaultRules[3]})
	assert.Equal(t, []RuleResult{{Name: "has_number", Passed: false}, {Name: "has_action_verb", Passed: true}}, noNumber)
}

func TestShortSentencesRule(t *testing.T) {
	long := strings.Repeat("가", 120) + "."
	assert.False(t, shortSentences(long))
	assert.True(t, shortSentences("짧아요. 아주 짧아요."))
}

func TestEnsureSection(t *testing.T) {
	section := ClosingActionSection

	t.Run("appends missing section", func(t *testing.T) {
		in := "무릎 건강에 대해 알아봤습니다."
		out := EnsureSection(in, section)
		assert.True(t, strings.HasPrefix(out, in))
		assert.True(t, strings.HasSuffix(out, section.Content))
		assert.True(t, EndsWithAction(out))
	})

	t.Run("idempotent", func(t *testing.T) {
		inputs := []string{"", "본문.", "본문입니다.\n\n", "걸어 보세요.", "문장 하나. 문장 둘."}
		for _, in := range inputs {
			once := EnsureSection(in, section)
			assert.Equal(t, once, EnsureSection(once, section), "input %q", in)
		}
	})

	t.Run("keeps text that already has section", func(t *testing.T) {
		in := "설명입니다. 오늘 10분 걸어 보세요.\n"
		assert.Equal(t, in, EnsureSection(in, section))
	})

	t.Run("idempotent even when predicate never matches", func(t *testing.T) {
		never := SectionSpec{Name: "cases", Present: func(string) bool { return false }, Content: "사례: 70대 김씨."}
		once := EnsureSection("본문.", never)
		assert.Equal(t, "본문.\n\n사례: 70대 김씨.", once)
		assert.Equal(t, once, EnsureSection(once, never))
	})

	t.Run("empty content is a no-op", func(t *testing.T) {
		assert.Equal(t, "본문", EnsureSection("본문", SectionSpec{Name: "empty"}))
	})
}
