// Package correlate — буферизация событий сигналов по сессиям и
// сопоставление их с метками времени детекций в окне допуска.
package correlate

import (
	"math"
	"sync"

	"github.com/vrulab/rigsync/internal/signal"
)

// Значения по умолчанию: ёмкость кольца и окно корреляции.
const (
	DefaultCapacity    = 1000
	DefaultToleranceMs = 100
)

// Пороги рейтинга точности (мс). Значения фиксированы для совместимости
// вывода между запусками.
const (
	precisionHighMs   = 10
	precisionMediumMs = 50
)

// Metrics — временные метрики пары детекция/сигнал.
type Metrics struct {
	LatencyMs       float64 `json:"latency_ms"`
	WithinTolerance bool    `json:"within_tolerance"`
	PrecisionRating string  `json:"precision_rating"` // high <=10ms, medium <=50ms, low
}

// Engine — кольцевые буферы событий по сессиям.
// Переполнение не ошибка: старейшие записи молча вытесняются.
// Единая грубая блокировка: буферы трогают и фоновый поллер, и основной поток.
type Engine struct {
	mu          sync.Mutex
	capacity    int
	toleranceMs float64
	buffers     map[string][]signal.Event
}

// NewEngine создаёт движок; capacity <= 0 и toleranceMs <= 0 получают значения по умолчанию.
func NewEngine(capacity int, toleranceMs float64) *Engine {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if toleranceMs <= 0 {
		toleranceMs = DefaultToleranceMs
	}
	return &Engine{
		capacity:    capacity,
		toleranceMs: toleranceMs,
		buffers:     make(map[string][]signal.Event),
	}
}

// Add добавляет событие в буфер его сессии; при переполнении вытесняется старейшее.
func (e *Engine) Add(ev signal.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	buf := append(e.buffers[ev.SessionID], ev)
	if len(buf) > e.capacity {
		buf = buf[len(buf)-e.capacity:]
	}
	e.buffers[ev.SessionID] = buf
}

// Find ищет событие сессии с минимальным |timestamp - detectionTS| в окне
// допуска движка. Совпавшее событие удаляется из буфера.
func (e *Engine) Find(detectionTS float64, sessionID string) (signal.Event, bool) {
	return e.FindWithTolerance(detectionTS, sessionID, e.toleranceMs)
}

// FindWithTolerance — как Find, но с явным окном допуска (мс).
// Кандидат проходит только при минимальном расстоянии <= toleranceMs/1000;
// при равных расстояниях побеждает первый встреченный при сканировании.
func (e *Engine) FindWithTolerance(detectionTS float64, sessionID string, toleranceMs float64) (signal.Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	buf := e.buffers[sessionID]
	best := -1
	bestDist := math.Inf(1)
	for i := range buf {
		d := math.Abs(buf[i].Timestamp - detectionTS)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	if best < 0 || bestDist > toleranceMs/1000 {
		return signal.Event{}, false
	}
	ev := buf[best]
	e.buffers[sessionID] = append(buf[:best], buf[best+1:]...)
	return ev, true
}

// TimingMetrics считает метрики пары меток времени: задержку в мс,
// попадание в окно допуска движка и трёхуровневый рейтинг точности.
func (e *Engine) TimingMetrics(detectionTS, signalTS float64) Metrics {
	latency := math.Abs(detectionTS-signalTS) * 1000
	rating := "low"
	switch {
	case latency <= precisionHighMs:
		rating = "high"
	case latency <= precisionMediumMs:
		rating = "medium"
	}
	return Metrics{
		LatencyMs:       latency,
		WithinTolerance: latency <= e.toleranceMs,
		PrecisionRating: rating,
	}
}

// Len возвращает текущую длину буфера сессии.
func (e *Engine) Len(sessionID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buffers[sessionID])
}

// DropSession удаляет буфер сессии (конец сессии).
func (e *Engine) DropSession(sessionID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.buffers, sessionID)
}
