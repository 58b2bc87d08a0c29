// Package admission ограничивает число одновременных запусков генерации.
package admission

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/semaphore"
)

var (
	rejectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "finishflow_admission_rejections_total",
		Help: "Number of pipeline runs rejected because another run was in progress.",
	})
	inFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "finishflow_admission_in_flight",
		Help: "Number of admitted pipeline runs currently executing.",
	})
)

// Gate - семафор без очереди. TryAcquire либо сразу пускает, либо отказывает.
type Gate struct {
	sem  *semaphore.Weighted
	held atomic.Int64
}

// NewGate создает гейт на capacity одновременных запусков (минимум 1).
func NewGate(capacity int64) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	return &Gate{sem: semaphore.NewWeighted(capacity)}
}

// NewSingleFlight - гейт на один запуск.
func NewSingleFlight() *Gate { return NewGate(1) }

// TryAcquire не блокируется.
func (g *Gate) TryAcquire() bool {
	if !g.sem.TryAcquire(1) {
		rejectionsTotal.Inc()
		return false
	}
	g.held.Add(1)
	inFlight.Inc()
	return true
}

// Release освобождает слот. Вызов без захвата ничего не делает.
func (g *Gate) Release() {
	for {
		n := g.held.Load()
		if n <= 0 {
			return
		}
		if g.held.CompareAndSwap(n, n-1) {
			break
		}
	}
	inFlight.Dec()
	g.sem.Release(1)
}

// InFlight - число занятых слотов.
func (g *Gate) InFlight() int64 { return g.held.Load() }
