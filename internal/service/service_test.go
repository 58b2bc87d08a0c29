package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"finishflow/internal/config"
	"finishflow/internal/model"
	"finishflow/shared/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chatCompletionServer(t *testing.T, content string, status int) (*httptest.Server, *map[string]interface{}) {
	t.Helper()
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream exploded","type":"server_error"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]int{"prompt_tokens": 42, "completion_tokens": 120, "total_tokens": 162},
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &captured
}

func TestOpenAIClient_GenerateText(t *testing.T) {
	srv, captured := chatCompletionServer(t, "제목: 걷기\n천천히 걸어 보세요.", http.StatusOK)
	c := newOpenAIClient("test-key", srv.URL+"/v1", "gpt-4o-mini", 5*time.Second, zap.NewNop())

	temp := 0.4
	text, usage, err := c.GenerateText(context.Background(), "system", "user", GenerationParams{Temperature: &temp})
	require.NoError(t, err)
	assert.Equal(t, "제목: 걷기\n천천히 걸어 보세요.", text)
	assert.Equal(t, 162, usage.TotalTokens)
	assert.False(t, usage.Estimated)

	body := *captured
	assert.Equal(t, "gpt-4o-mini", body["model"])
	assert.InDelta(t, 0.4, body["temperature"], 1e-6)
	msgs := body["messages"].([]interface{})
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]interface{})["role"])
}

func TestOpenAIClient_Errors(t *testing.T) {
	t.Run("empty system prompt", func(t *testing.T) {
		c := newOpenAIClient("test-key", "http://127.0.0.1:1/v1", "gpt-4o-mini", time.Second, zap.NewNop())
		_, _, err := c.GenerateText(context.Background(), "  ", "user", GenerationParams{})
		assert.ErrorIs(t, err, ErrAIGenerationFailed)
		assert.ErrorIs(t, err, models.ErrUpstreamScript)
	})

	t.Run("server error", func(t *testing.T) {
		srv, _ := chatCompletionServer(t, "", http.StatusInternalServerError)
		c := newOpenAIClient("test-key", srv.URL+"/v1", "gpt-4o-mini", 5*time.Second, zap.NewNop())
		_, _, err := c.GenerateText(context.Background(), "system", "user", GenerationParams{})
		assert.ErrorIs(t, err, models.ErrUpstreamScript)
	})

	t.Run("empty content", func(t *testing.T) {
		srv, _ := chatCompletionServer(t, "   ", http.StatusOK)
		c := newOpenAIClient("test-key", srv.URL+"/v1", "gpt-4o-mini", 5*time.Second, zap.NewNop())
		_, _, err := c.GenerateText(context.Background(), "system", "user", GenerationParams{})
		assert.ErrorIs(t, err, ErrAIGenerationFailed)
	})
}

func TestOllamaClient_GenerateText(t *testing.T) {
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"llama3","message":{"role":"assistant","content":"천천히 걸어 보세요."},"done":true,"prompt_eval_count":30,"eval_count":12}` + "\n"))
	}))
	defer srv.Close()

	c, err := newOllamaClient(srv.URL+"/v1", "llama3", 5*time.Second, zap.NewNop())
	require.NoError(t, err)
	temp := 0.4
	text, usage, err := c.GenerateText(context.Background(), "system", "user", GenerationParams{Temperature: &temp})
	require.NoError(t, err)
	assert.Equal(t, "천천히 걸어 보세요.", text)
	assert.Equal(t, 42, usage.TotalTokens)
	assert.Equal(t, false, captured["stream"])
	assert.InDelta(t, 0.4, captured["options"].(map[string]interface{})["temperature"], 1e-6)
}

func TestNewAIClient(t *testing.T) {
	cfg := &config.Config{AIClientType: "OpenAI", AIModel: "gpt-4o-mini", AIBaseURL: "https://api.openai.com/v1", ScriptTimeout: time.Second}
	c, err := NewAIClient(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &openAIClient{}, c)

	cfg.AIClientType = "ollama"
	c, err = NewAIClient(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &ollamaClient{}, c)

	cfg.AIClientType = "gemini"
	_, err = NewAIClient(cfg, nil)
	assert.Error(t, err)
}

type stubAI struct {
	text   string
	err    error
	system string
	user   string
	params GenerationParams
	calls  int
}

func (s *stubAI) GenerateText(_ context.Context, system, user string, params GenerationParams) (string, UsageInfo, error) {
	s.calls++
	s.system, s.user, s.params = system, user, params
	return s.text, UsageInfo{}, s.err
}

func TestScriptGenerator(t *testing.T) {
	req := model.GenerationRequest{Topic: "무릎 통증 줄이는 걷기 방법", Tone: model.ToneHealth, Kind: model.KindShorts, TargetDurationSeconds: 90}

	t.Run("title from response", func(t *testing.T) {
		ai := &stubAI{text: "제목: 무릎을 지키는 걷기\n\n천천히 걸으세요. 하루 10분이면 충분합니다."}
		g := NewScriptGenerator(ai, 0.4, time.Second, nil)
		script, err := g.GenerateScript(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "무릎을 지키는 걷기", script.Title)
		assert.Equal(t, "천천히 걸으세요. 하루 10분이면 충분합니다.", script.Body)
		assert.Equal(t, 1, ai.calls)
		require.NotNil(t, ai.params.Temperature)
		assert.InDelta(t, 0.4, *ai.params.Temperature, 1e-9)
		assert.Contains(t, ai.user, req.Topic)
		assert.Contains(t, ai.user, "약 90초")
	})

	t.Run("topic is the fallback title", func(t *testing.T) {
		g := NewScriptGenerator(&stubAI{text: "천천히 걸으세요."}, 0.4, time.Second, nil)
		script, err := g.GenerateScript(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, req.Topic, script.Title)
	})

	t.Run("upstream error is not retried", func(t *testing.T) {
		ai := &stubAI{err: errors.New("connection reset")}
		g := NewScriptGenerator(ai, 0.4, time.Second, nil)
		_, err := g.GenerateScript(context.Background(), req)
		assert.ErrorIs(t, err, models.ErrUpstreamScript)
		assert.Equal(t, 1, ai.calls)
	})

	t.Run("title without body", func(t *testing.T) {
		g := NewScriptGenerator(&stubAI{text: "제목: 걷기"}, 0.4, time.Second, nil)
		_, err := g.GenerateScript(context.Background(), req)
		assert.ErrorIs(t, err, models.ErrUpstreamScript)
	})
}

func TestBuildScriptPrompts(t *testing.T) {
	system, user := BuildScriptPrompts(model.GenerationRequest{Topic: "수면", Tone: "UNKNOWN", TargetDurationSeconds: 900})
	assert.Contains(t, system, "Korean voiceover")
	assert.Contains(t, user, "약 15분")
	assert.Contains(t, user, toneHints[model.ToneCalm])
	assert.Contains(t, user, "마지막은 행동 1가지로 끝내기")
}

func TestOpenAISpeech_Synthesize(t *testing.T) {
	audio := strings.Repeat("ID3", 1000)
	var captured map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/audio/speech", r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&captured)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = io.WriteString(w, audio)
	}))
	defer srv.Close()

	s := NewOpenAISpeech(SpeechOptions{
		APIKey: "test-key", BaseURL: srv.URL + "/v1",
		Model: "gpt-4o-mini-tts", Voice: "alloy", Speed: 0.97, Timeout: 5 * time.Second,
	}, nil)
	out := filepath.Join(t.TempDir(), "voice.mp3")
	n, err := s.Synthesize(context.Background(), "천천히, 걸어 보세요.", out)
	require.NoError(t, err)
	assert.Equal(t, int64(len(audio)), n)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, audio, string(data))
	assert.Equal(t, "gpt-4o-mini-tts", captured["model"])
	assert.Equal(t, "alloy", captured["voice"])
	assert.Equal(t, "mp3", captured["response_format"])
	assert.InDelta(t, 0.97, captured["speed"], 1e-9)
}

func TestOpenAISpeech_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	s := NewOpenAISpeech(SpeechOptions{APIKey: "x", BaseURL: srv.URL + "/v1", Model: "tts", Voice: "alloy", Timeout: time.Second}, nil)
	out := filepath.Join(t.TempDir(), "voice.mp3")
	_, err := s.Synthesize(context.Background(), "안녕하세요", out)
	assert.ErrorIs(t, err, models.ErrUpstreamSpeech)
	assert.NoFileExists(t, out)

	_, err = s.Synthesize(context.Background(), " ", out)
	assert.ErrorIs(t, err, models.ErrUpstreamSpeech)
}

func TestAudioFlowClient_Generate(t *testing.T) {
	wav := strings.Repeat("RIFF", 256)
	var got audioFlowMakeRequest
	mux := http.NewServeMux()
	mux.HandleFunc("/make", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"ok":true,"data":{"audio":{"download_url":"/files/bgm.wav"}}}`))
	})
	mux.HandleFunc("/files/bgm.wav", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, wav)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewAudioFlowClient(srv.URL+"/", 5*time.Second, nil)
	out := filepath.Join(t.TempDir(), "bgm.wav")
	music, err := c.Generate(context.Background(), MusicRequest{Topic: "걷기", Preset: "CALM_LOOP", DurationSeconds: 10.4}, out)
	require.NoError(t, err)
	assert.Equal(t, "CALM_LOOP", music.PresetID)
	assert.Equal(t, out, music.Path)
	assert.Equal(t, srv.URL+"/files/bgm.wav", music.RemoteURL)
	assert.Equal(t, audioFlowMakeRequest{Topic: "걷기", Preset: "CALM_LOOP", DurationSec: 10}, got)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, wav, string(data))
}

func TestAudioFlowClient_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		target  error
		contain string
	}{
		{
			name:    "rate limited",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTooManyRequests) },
			target:  ErrMusicRateLimited,
		},
		{
			name: "ok false",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"ok":false,"code":"ENGINE_BUSY"}`))
			},
			contain: "ENGINE_BUSY",
		},
		{
			name: "malformed payload",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`<html>`))
			},
			contain: "HTTP_200",
		},
		{
			name: "missing download url",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"ok":true,"data":{}}`))
			},
			target: ErrMusicNoDownloadURL,
		},
		{
			name: "download fails",
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/make" {
					_, _ = w.Write([]byte(`{"ok":true,"data":{"audio":{"download_url":"/missing.wav"}}}`))
					return
				}
				w.WriteHeader(http.StatusNotFound)
			},
			contain: "HTTP_404",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			out := filepath.Join(t.TempDir(), "bgm.wav")
			_, err := NewAudioFlowClient(srv.URL, time.Second, nil).Generate(context.Background(), MusicRequest{Topic: "t", Preset: "CALM_LOOP", DurationSeconds: 5}, out)
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrUpstreamMusic)
			if tt.target != nil {
				assert.ErrorIs(t, err, tt.target)
			}
			if tt.contain != "" {
				assert.Contains(t, err.Error(), tt.contain)
			}
			assert.NoFileExists(t, out)
		})
	}

	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()
		_, err := NewAudioFlowClient(url, time.Second, nil).Generate(context.Background(), MusicRequest{Topic: "t", Preset: "CALM_LOOP"}, filepath.Join(t.TempDir(), "bgm.wav"))
		assert.ErrorIs(t, err, models.ErrUpstreamMusic)
	})
}

func TestAudioFlowClient_DownloadStallsPastTimeout(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/make", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"data":{"audio":{"download_url":"/files/bgm.wav"}}}`))
	})
	mux.HandleFunc("/files/bgm.wav", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "4096")
		_, _ = io.WriteString(w, "RIFF")
		w.(http.Flusher).Flush()
		// Тело не дописывается, пока клиент не отвалится
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	out := filepath.Join(t.TempDir(), "bgm.wav")
	start := time.Now()
	_, err := NewAudioFlowClient(srv.URL, 200*time.Millisecond, nil).Generate(context.Background(), MusicRequest{Topic: "t", Preset: "CALM_LOOP", DurationSeconds: 5}, out)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 4*time.Second)
	assert.ErrorIs(t, err, models.ErrUpstreamMusic)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "save")
	assert.NoFileExists(t, out)
}
