package model

import (
	"encoding/json"
	"strings"
	"testing"

	"finishflow/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerationRequest_Normalize(t *testing.T) {
	t.Run("defaults for long form", func(t *testing.T) {
		req, err := GenerationRequest{Topic: "  무릎 통증 줄이는 걷기 방법 "}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, "무릎 통증 줄이는 걷기 방법", req.Topic)
		assert.Equal(t, ToneCalm, req.Tone)
		assert.Equal(t, KindDefault, req.Kind)
		assert.Equal(t, DefaultLongFormSeconds, req.TargetDurationSeconds)
	})

	t.Run("defaults for shorts", func(t *testing.T) {
		req, err := GenerationRequest{Topic: "x", Kind: "Shorts", Tone: "info"}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, KindShorts, req.Kind)
		assert.Equal(t, ToneInfo, req.Tone)
		assert.Equal(t, DefaultShortFormSeconds, req.TargetDurationSeconds)
	})

	t.Run("explicit duration kept", func(t *testing.T) {
		req, err := GenerationRequest{Topic: "x", TargetDurationSeconds: 45}.Normalize()
		require.NoError(t, err)
		assert.Equal(t, 45, req.TargetDurationSeconds)
	})

	invalid := map[string]GenerationRequest{
		"empty topic":       {Topic: ""},
		"whitespace topic":  {Topic: " \t\n"},
		"too long topic":    {Topic: strings.Repeat("가", MaxTopicRunes+1)},
		"unknown kind":      {Topic: "x", Kind: "vertical"},
		"negative duration": {Topic: "x", TargetDurationSeconds: -1},
	}
	for name, in := range invalid {
		t.Run(name, func(t *testing.T) {
			_, err := in.Normalize()
			assert.ErrorIs(t, err, models.ErrInvalidInput)
		})
	}
}

func TestGenerationRequest_UnmarshalJSON(t *testing.T) {
	cases := []struct {
		name string
		body string
		want int
	}{
		{"integer", `{"topic":"x","target_duration_sec":60}`, 60},
		{"fraction rounds up", `{"topic":"x","target_duration_sec":90.5}`, 91},
		{"fraction rounds down", `{"topic":"x","target_duration_sec":44.4}`, 44},
		{"absent", `{"topic":"x"}`, 0},
		{"null", `{"topic":"x","target_duration_sec":null}`, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req GenerationRequest
			require.NoError(t, json.Unmarshal([]byte(tc.body), &req))
			assert.Equal(t, "x", req.Topic)
			assert.Equal(t, tc.want, req.TargetDurationSeconds)
		})
	}

	t.Run("other fields decoded", func(t *testing.T) {
		var req GenerationRequest
		require.NoError(t, json.Unmarshal([]byte(`{"topic":"수면","tone":"info","kind":"shorts","target_duration_sec":30.2}`), &req))
		assert.Equal(t, GenerationRequest{Topic: "수면", Tone: "info", Kind: "shorts", TargetDurationSeconds: 30}, req)
	})

	t.Run("negative fraction still rejected by Normalize", func(t *testing.T) {
		var req GenerationRequest
		require.NoError(t, json.Unmarshal([]byte(`{"topic":"x","target_duration_sec":-5.5}`), &req))
		_, err := req.Normalize()
		assert.ErrorIs(t, err, models.ErrInvalidInput)
	})

	invalid := map[string]string{
		"string duration": `{"topic":"x","target_duration_sec":"90"}`,
		"huge duration":   `{"topic":"x","target_duration_sec":1e300}`,
		"wrong topic":     `{"topic":42}`,
	}
	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			var req GenerationRequest
			assert.Error(t, json.Unmarshal([]byte(body), &req))
		})
	}
}

func TestParseTone(t *testing.T) {
	assert.Equal(t, ToneCalm, ParseTone(""))
	assert.Equal(t, ToneDocumentary, ParseTone(" documentary "))
	assert.Equal(t, Tone("SENIOR"), ParseTone("senior"))
}
