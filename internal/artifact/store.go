// Package artifact хранит готовые видео за одноразовыми или многоразовыми
// токенами скачивания. Данные только в памяти, рестарт обнуляет все токены.
package artifact

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"finishflow/shared/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// ErrNotFound - токен неизвестен, истек или файл пропал.
var ErrNotFound = models.ErrTokenNotFound

const (
	// TokenBytes - 256 бит случайности, 64 hex символа.
	TokenBytes = 32
	DefaultTTL = 30 * time.Minute
)

var (
	tokensIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finishflow_tokens_issued_total",
		Help: "Number of download tokens issued.",
	})
	tokensEvictedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "finishflow_tokens_evicted_total",
		Help: "Number of download tokens removed from the store.",
	}, []string{"reason"})
)

// Token - выданный токен и его срок.
type Token struct {
	Value     string
	Path      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Download - открытый файл для отдачи клиенту. Вызывающий закрывает File.
type Download struct {
	File    *os.File
	Name    string
	Size    int64
	ModTime time.Time
}

// Option настраивает Store.
type Option func(*Store)

// WithTTL задает срок жизни токена. Продления при обращении нет.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithSingleUse - токен удаляется после первого успешного открытия.
func WithSingleUse(on bool) Option { return func(s *Store) { s.singleUse = on } }

// WithOwnsFiles - удалять файлы вытесненных токенов.
func WithOwnsFiles(on bool) Option { return func(s *Store) { s.ownsFiles = on } }

// WithClock подменяет часы (для тестов).
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithLogger задает логгер.
func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.logger = l } }

// Store - реестр токен -> путь с ленивой очисткой. Таймеров нет: просроченные
// записи вычищаются при каждом обращении.
type Store struct {
	mu        sync.Mutex
	entries   map[string]Token
	refs      map[string]int // сколько живых токенов указывают на путь
	ttl       time.Duration
	singleUse bool
	ownsFiles bool
	now       func() time.Time
	logger    *zap.Logger
}

// NewStore создает хранилище. По умолчанию: TTL 30 минут, многоразовые токены,
// файлы принадлежат хранилищу.
func NewStore(opts ...Option) *Store {
	s := &Store{
		entries:   make(map[string]Token),
		refs:      make(map[string]int),
		ttl:       DefaultTTL,
		ownsFiles: true,
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL - срок жизни токенов этого хранилища.
func (s *Store) TTL() time.Duration { return s.ttl }

// SingleUse - режим одноразовых токенов.
func (s *Store) SingleUse() bool { return s.singleUse }

// Issue регистрирует файл и выдает новый токен. Старые токены на тот же путь
// остаются действительными.
func (s *Store) Issue(path string) (Token, error) {
	if path == "" {
		return Token{}, errors.New("artifact path is empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Token{}, fmt.Errorf("resolve artifact path: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	var value string
	for {
		value, err = newTokenValue()
		if err != nil {
			return Token{}, err
		}
		if _, exists := s.entries[value]; !exists {
			break
		}
	}

	tok := Token{Value: value, Path: abs, IssuedAt: now, ExpiresAt: now.Add(s.ttl)}
	s.entries[value] = tok
	s.refs[abs]++
	tokensIssuedTotal.Inc()

	s.logger.Debug("Download token issued",
		zap.String("path", abs),
		zap.Time("expires_at", tok.ExpiresAt),
		zap.Int("live_tokens", len(s.entries)),
	)
	return tok, nil
}

// Resolve возвращает путь по токену. Ошибок не бывает: неизвестный и
// истекший токен одинаково дают false.
func (s *Store) Resolve(token string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(s.now())
	tok, ok := s.entries[token]
	if !ok {
		return "", false
	}
	return tok.Path, true
}

// Open открывает файл по токену. В режиме single-use запись удаляется сразу,
// а файл (если на него больше нет токенов) удаляется после открытия:
// уже открытый дескриптор дочитывается.
func (s *Store) Open(token string) (*Download, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked(s.now())
	tok, ok := s.entries[token]
	if !ok {
		return nil, ErrNotFound
	}

	f, err := os.Open(tok.Path)
	if err != nil {
		s.logger.Warn("Artifact file is missing, dropping token", zap.String("path", tok.Path), zap.Error(err))
		s.dropLocked(token, tok, "missing")
		return nil, ErrNotFound
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	if s.singleUse {
		s.dropLocked(token, tok, "consumed")
	}

	return &Download{
		File:    f,
		Name:    filepath.Base(tok.Path),
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}, nil
}

// Sweep удаляет просроченные записи и возвращает их число.
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweepLocked(s.now())
}

// Len - число живых записей (без очистки).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) sweepLocked(now time.Time) int {
	evicted := 0
	for value, tok := range s.entries {
		if now.After(tok.ExpiresAt) {
			s.dropLocked(value, tok, "expired")
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Debug("Expired download tokens evicted", zap.Int("count", evicted), zap.Int("live_tokens", len(s.entries)))
	}
	return evicted
}

func (s *Store) dropLocked(value string, tok Token, reason string) {
	delete(s.entries, value)
	tokensEvictedTotal.WithLabelValues(reason).Inc()

	s.refs[tok.Path]--
	if s.refs[tok.Path] > 0 {
		return
	}
	delete(s.refs, tok.Path)
	if !s.ownsFiles {
		return
	}
	if err := os.Remove(tok.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Debug("Failed to remove artifact file", zap.String("path", tok.Path), zap.Error(err))
	}
}

func newTokenValue() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate download token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
