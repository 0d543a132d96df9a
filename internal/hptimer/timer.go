// Package hptimer — монотонный источник меток времени сессии.
package hptimer

import (
	"sync"
	"time"
)

// Шаг принудительного продвижения при совпадении/откате метки.
const minStep = 0.001 // 1 ms

// Объявляемая точность меток (метаданные precision_us, не гарантия источника).
const (
	PrecisionHighUs    = 1.0
	PrecisionDefaultUs = 1000.0
)

// Timer — монотонные секунды от момента создания.
// Метки строго возрастают: каждая метка = max(now, last + 1 мс),
// поэтому соседние метки разнесены не меньше чем на 1 мс.
type Timer struct {
	mu          sync.Mutex
	ref         time.Time
	last        float64
	precisionUs float64
}

// New создаёт таймер с опорным моментом "сейчас".
// precisionMode задаёт объявляемую точность (метаданные событий).
func New(precisionMode bool) *Timer {
	p := PrecisionDefaultUs
	if precisionMode {
		p = PrecisionHighUs
	}
	return &Timer{
		ref:         time.Now(),
		precisionUs: p,
	}
}

// Now возвращает метку в секундах от опорного момента.
// time.Since читает монотонные часы, поэтому метка не зависит от перевода
// системного времени; строгий рост форсируется нижней границей last + 1 мс.
func (t *Timer) Now() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	ts := time.Since(t.ref).Seconds()
	if floor := t.last + minStep; ts < floor {
		ts = floor
	}
	t.last = ts
	return ts
}

// PrecisionUs возвращает объявленную точность меток в микросекундах.
func (t *Timer) PrecisionUs() float64 {
	return t.precisionUs
}
